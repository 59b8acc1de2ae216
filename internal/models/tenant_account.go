package models

import (
	"time"

	"github.com/splitpos-next/internal/constants"

	"gorm.io/gorm"
)

// TenantAccount 租户收款账户
type TenantAccount struct {
	ID                uint           `gorm:"primarykey" json:"id"`                               // 主键
	UserID            uint           `gorm:"uniqueIndex;not null" json:"user_id"`                // 所属用户（一对一）
	AccountID         string         `gorm:"uniqueIndex;not null" json:"account_id"`             // 处理方账户 ID 或虚拟账户 ID
	AccountKind       string         `gorm:"type:varchar(20);not null" json:"account_kind"`      // 账户类型（processor/virtual）
	Country           string         `gorm:"type:varchar(2);not null" json:"country"`            // 所在国家/地区
	BusinessName      string         `gorm:"type:varchar(255)" json:"business_name"`             // 商户名称
	CommissionRate    *Rate          `gorm:"type:decimal(6,4)" json:"commission_rate,omitempty"` // 佣金比例（空则使用默认值）
	CanSplit          bool           `gorm:"not null" json:"can_split"`                          // 是否支持分账收款
	CanManualTransfer bool           `gorm:"not null" json:"can_manual_transfer"`                // 是否支持手动转账
	Status            string         `gorm:"index;not null" json:"status"`                       // 账户状态
	OnboardedAt       *time.Time     `gorm:"index" json:"onboarded_at,omitempty"`                // 入驻完成时间
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                            // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                            // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                     // 软删除时间
}

// TableName 指定表名
func (TenantAccount) TableName() string {
	return "tenant_accounts"
}

// IsVirtual 判断是否为虚拟账户（尚未持有真实处理方账户）
func (t *TenantAccount) IsVirtual() bool {
	return t != nil && t.AccountKind == constants.AccountKindVirtual
}
