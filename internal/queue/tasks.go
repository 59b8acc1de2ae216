package queue

import (
	"encoding/json"

	"github.com/splitpos-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskPaymentCapturePoll 支付确认轮询任务
	TaskPaymentCapturePoll = constants.TaskPaymentCapturePoll
	// TaskSettlementRun 手动结算批次任务
	TaskSettlementRun = constants.TaskSettlementRun
)

// PaymentCapturePollPayload 支付确认轮询任务载荷
type PaymentCapturePollPayload struct {
	SessionID string `json:"session_id"`
	Attempt   int    `json:"attempt"`
}

// SettlementRunPayload 结算批次任务载荷
type SettlementRunPayload struct {
	Reason string `json:"reason"`
}

// NewPaymentCapturePollTask 构建支付确认轮询任务
func NewPaymentCapturePollTask(payload PaymentCapturePollPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentCapturePoll, data), nil
}

// NewSettlementRunTask 构建结算批次任务
func NewSettlementRunTask(payload SettlementRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementRun, data), nil
}
