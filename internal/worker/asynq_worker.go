package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/splitpos-next/internal/constants"
	"github.com/splitpos-next/internal/logger"
	"github.com/splitpos-next/internal/provider"
	"github.com/splitpos-next/internal/queue"
	"github.com/splitpos-next/internal/service"

	"github.com/hibiken/asynq"
)

// 轮询上限：超过后留给孤儿排查列表处理
const maxCapturePollAttempts = 5

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskPaymentCapturePoll, c.handlePaymentCapturePoll)
	mux.HandleFunc(queue.TaskSettlementRun, c.handleSettlementRun)
}

// handlePaymentCapturePoll 支付确认轮询。会话仍开放时按次数上限
// 重新延迟投递，已确认或已过期则停止。
func (c *Consumer) handlePaymentCapturePoll(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_capture_poll_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentCapturePollPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_capture_poll_unmarshal_failed", "error", err)
		return err
	}
	if payload.SessionID == "" {
		logger.Debugw("worker_capture_poll_skip_invalid_payload")
		return nil
	}

	result, err := c.SaleService.CapturePayment(ctx, payload.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSaleNotFound):
			logger.Debugw("worker_capture_poll_skip_sale_not_found", "session_id", payload.SessionID)
			return nil
		case errors.Is(err, service.ErrProcessorUnavailable):
			logger.Warnw("worker_capture_poll_processor_failed", "session_id", payload.SessionID, "error", err)
			return err
		default:
			logger.Warnw("worker_capture_poll_failed", "session_id", payload.SessionID, "error", err)
			return err
		}
	}

	if result.SessionStatus == constants.SessionStatusOpen {
		if payload.Attempt+1 >= maxCapturePollAttempts {
			logger.Infow("worker_capture_poll_attempts_exhausted", "session_id", payload.SessionID)
			return nil
		}
		delay := time.Duration(c.Config.Queue.CapturePollDelaySeconds) * time.Second
		if err := c.QueueClient.EnqueuePaymentCapturePoll(queue.PaymentCapturePollPayload{
			SessionID: payload.SessionID,
			Attempt:   payload.Attempt + 1,
		}, delay); err != nil {
			logger.Warnw("worker_capture_poll_reenqueue_failed", "session_id", payload.SessionID, "error", err)
			return err
		}
		return nil
	}

	logger.Infow("worker_capture_poll_settled",
		"session_id", payload.SessionID,
		"session_status", result.SessionStatus,
		"payment_status", result.PaymentStatus,
	)
	return nil
}

// handleSettlementRun 手动结算批次任务
func (c *Consumer) handleSettlementRun(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_settlement_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SettlementRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_settlement_unmarshal_failed", "error", err)
		return err
	}

	report, err := c.SettlementService.Run(ctx)
	if err != nil {
		logger.Warnw("worker_settlement_run_failed", "reason", payload.Reason, "error", err)
		return err
	}
	logger.Infow("worker_settlement_run_done",
		"reason", payload.Reason,
		"transfer_count", report.TransferCount,
		"total_amount", report.TotalAmount,
		"skipped", len(report.Skipped),
		"failed", len(report.Failures),
	)
	return nil
}
