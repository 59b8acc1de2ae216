package models

import (
	"time"

	"gorm.io/gorm"
)

// SettlementTransfer 手动结算转账记录
type SettlementTransfer struct {
	ID               uint           `gorm:"primarykey" json:"id"`                     // 主键
	ProviderRef      string         `gorm:"uniqueIndex;not null" json:"provider_ref"` // 处理方转账 ID
	CommissionSaleID uint           `gorm:"index;not null" json:"commission_sale_id"` // 对应销售记录
	TenantAccountID  uint           `gorm:"index;not null" json:"tenant_account_id"`  // 收款租户
	Amount           int64          `gorm:"not null" json:"amount"`                   // 转账金额（等于销售记录净额）
	Currency         string         `gorm:"type:varchar(3);not null" json:"currency"` // 币种
	Destination      string         `gorm:"not null" json:"destination"`              // 目标处理方账户 ID
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                  // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                  // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                           // 软删除时间
}

// TableName 指定表名
func (SettlementTransfer) TableName() string {
	return "settlement_transfers"
}

// SettlementRun 结算批次汇总
type SettlementRun struct {
	ID            uint      `gorm:"primarykey" json:"id"`              // 主键
	TransferCount int       `gorm:"not null" json:"transfer_count"`    // 成功转账笔数
	SkippedCount  int       `gorm:"not null" json:"skipped_count"`     // 跳过笔数
	FailedCount   int       `gorm:"not null" json:"failed_count"`      // 失败笔数
	TotalAmount   int64     `gorm:"not null" json:"total_amount"`      // 成功转账总金额（最小货币单位）
	StartedAt     time.Time `gorm:"index;not null" json:"started_at"`  // 批次开始时间
	FinishedAt    time.Time `gorm:"index;not null" json:"finished_at"` // 批次结束时间
	CreatedAt     time.Time `gorm:"index" json:"created_at"`           // 创建时间
}

// TableName 指定表名
func (SettlementRun) TableName() string {
	return "settlement_runs"
}
