package models

import (
	"time"

	"gorm.io/gorm"
)

// CommissionSale 抽佣销售记录
type CommissionSale struct {
	ID               uint           `gorm:"primarykey" json:"id"`                           // 主键
	TenantAccountID  uint           `gorm:"index;not null" json:"tenant_account_id"`        // 所属租户账户
	SessionID        string         `gorm:"uniqueIndex;not null" json:"session_id"`         // 处理方会话 ID
	PaymentIntentID  *string        `gorm:"uniqueIndex" json:"payment_intent_id,omitempty"` // 处理方支付意向 ID（确认前可为空）
	AmountTotal      int64          `gorm:"not null" json:"amount_total"`                   // 总金额（最小货币单位）
	CommissionAmount int64          `gorm:"not null" json:"commission_amount"`              // 佣金金额（最小货币单位）
	NetAmount        int64          `gorm:"not null" json:"net_amount"`                     // 净额（最小货币单位）
	Currency         string         `gorm:"type:varchar(3);not null" json:"currency"`       // 币种
	Description      string         `gorm:"type:varchar(255)" json:"description"`           // 摘要
	Status           string         `gorm:"index;not null" json:"status"`                   // 记录状态
	TransferID       *uint          `gorm:"index" json:"transfer_id,omitempty"`             // 结算转账 ID（结算后填写）
	PaidAt           *time.Time     `gorm:"index" json:"paid_at,omitempty"`                 // 支付确认时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                        // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                        // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                 // 软删除时间

	TenantAccount TenantAccount `gorm:"foreignKey:TenantAccountID" json:"tenant_account,omitempty"` // 所属租户
}

// TableName 指定表名
func (CommissionSale) TableName() string {
	return "commission_sales"
}
