package repository

import "time"

// TenantListFilter 查询租户列表的过滤条件
type TenantListFilter struct {
	Page        int
	PageSize    int
	Country     string
	AccountKind string
	Status      string
	CanSplit    *bool
}

// SaleListFilter 查询销售记录列表的过滤条件
type SaleListFilter struct {
	Page            int
	PageSize        int
	TenantAccountID uint
	Status          string
	Currency        string
	Unsettled       bool
	CreatedFrom     *time.Time
	CreatedTo       *time.Time
	PendingBefore   *time.Time // 超过该时间仍未确认的 pending 记录（孤儿会话排查）
}

// SettlementRunListFilter 查询结算批次列表的过滤条件
type SettlementRunListFilter struct {
	Page     int
	PageSize int
}
