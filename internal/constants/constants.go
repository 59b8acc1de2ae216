package constants

// 租户账户类型常量
const (
	AccountKindProcessor = "processor"
	AccountKindVirtual   = "virtual"
)

// 租户账户状态常量
const (
	TenantStatusPending  = "pending"
	TenantStatusActive   = "active"
	TenantStatusDisabled = "disabled"
)

// 佣金销售记录状态常量
const (
	SaleStatusPending   = "pending"
	SaleStatusCompleted = "completed"
	SaleStatusFailed    = "failed"
)

// 处理方会话状态常量
const (
	SessionStatusOpen     = "open"
	SessionStatusComplete = "complete"
	SessionStatusExpired  = "expired"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)

// 虚拟账户 ID 前缀
const VirtualAccountPrefix = "vt_"

// 异步任务类型常量
const (
	TaskPaymentCapturePoll = "payment:capture_poll"
	TaskSettlementRun      = "settlement:run"
)

// 队列名称常量
const (
	QueueDefault = "default"
)

// 结算跳过原因常量
const (
	SkipReasonNotTransferable = "not_yet_transferable"
)
