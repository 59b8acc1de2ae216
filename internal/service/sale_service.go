package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/splitpos-next/internal/constants"
	"github.com/splitpos-next/internal/logger"
	"github.com/splitpos-next/internal/models"
	"github.com/splitpos-next/internal/processor"
	"github.com/splitpos-next/internal/queue"
	"github.com/splitpos-next/internal/repository"

	"gorm.io/gorm"
)

// SaleService 销售记录服务
type SaleService struct {
	saleRepo         repository.SaleRepository
	processorCfg     *processor.Config
	queueClient      *queue.Client
	capturePollDelay time.Duration
}

// NewSaleService 创建销售记录服务
func NewSaleService(saleRepo repository.SaleRepository, processorCfg *processor.Config, queueClient *queue.Client, capturePollDelay time.Duration) *SaleService {
	if capturePollDelay <= 0 {
		capturePollDelay = 2 * time.Minute
	}
	return &SaleService{
		saleRepo:         saleRepo,
		processorCfg:     processorCfg,
		queueClient:      queueClient,
		capturePollDelay: capturePollDelay,
	}
}

// RecordSale 幂等落库一条抽佣销售记录。同一检出请求（以支付意向 ID、
// 其次会话 ID 标识）至多产生一行，重复写入返回已有行且不视为错误。
func (s *SaleService) RecordSale(handle *SessionHandle) (*models.CommissionSale, bool, error) {
	if handle == nil || strings.TrimSpace(handle.SessionID) == "" {
		return nil, false, ErrSaleNotFound
	}
	if handle.AmountTotal != handle.CommissionAmount+handle.NetAmount {
		return nil, false, ErrAmountInvalid
	}

	now := time.Now()
	sale := &models.CommissionSale{
		TenantAccountID:  handle.TenantAccountID,
		SessionID:        strings.TrimSpace(handle.SessionID),
		AmountTotal:      handle.AmountTotal,
		CommissionAmount: handle.CommissionAmount,
		NetAmount:        handle.NetAmount,
		Currency:         strings.ToUpper(strings.TrimSpace(handle.Currency)),
		Description:      handle.Description,
		Status:           constants.SaleStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if intent := strings.TrimSpace(handle.PaymentIntentID); intent != "" {
		sale.PaymentIntentID = &intent
	}

	inserted, err := s.saleRepo.InsertIfAbsent(sale)
	if err != nil {
		return nil, false, err
	}
	if !inserted {
		existing, err := s.findExisting(handle.PaymentIntentID, handle.SessionID)
		if err != nil {
			return nil, false, err
		}
		logger.Debugw("sale_record_duplicate", "session_id", handle.SessionID)
		return existing, true, nil
	}

	if err := s.queueClient.EnqueuePaymentCapturePoll(queue.PaymentCapturePollPayload{
		SessionID: sale.SessionID,
	}, s.capturePollDelay); err != nil {
		logger.Warnw("sale_enqueue_capture_poll_failed", "session_id", sale.SessionID, "error", err)
	}

	logger.Infow("sale_recorded",
		"sale_id", sale.ID,
		"tenant_id", sale.TenantAccountID,
		"session_id", sale.SessionID,
		"amount_total", sale.AmountTotal,
		"commission", sale.CommissionAmount,
	)
	return sale, false, nil
}

func (s *SaleService) findExisting(paymentIntentID, sessionID string) (*models.CommissionSale, error) {
	if intent := strings.TrimSpace(paymentIntentID); intent != "" {
		sale, err := s.saleRepo.GetByPaymentIntentID(intent)
		if err != nil || sale != nil {
			return sale, err
		}
	}
	return s.saleRepo.GetBySessionID(strings.TrimSpace(sessionID))
}

// ConfirmPaymentInput 支付确认输入
type ConfirmPaymentInput struct {
	SessionID       string
	PaymentIntentID string
	PaidAt          *time.Time
}

// ConfirmPayment 处理方确认支付后的状态迁移：记录转为 completed 并
// 回填支付意向 ID。若同一检出请求在意向产生前已单独落库过一行，
// 以意向 ID 上的唯一索引裁决，败方行被收敛，最终只留一条完成记录。
func (s *SaleService) ConfirmPayment(input ConfirmPaymentInput) (*models.CommissionSale, error) {
	sessionID := strings.TrimSpace(input.SessionID)
	intent := strings.TrimSpace(input.PaymentIntentID)
	if sessionID == "" && intent == "" {
		return nil, ErrSaleNotFound
	}
	paidAt := input.PaidAt
	if paidAt == nil {
		now := time.Now()
		paidAt = &now
	}

	var confirmed *models.CommissionSale
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		repo := s.saleRepo.WithTx(tx)

		if intent != "" {
			winner, err := repo.GetByPaymentIntentID(intent)
			if err != nil {
				return err
			}
			if winner != nil {
				if err := s.complete(repo, winner, intent, paidAt); err != nil {
					return err
				}
				confirmed = winner
				return nil
			}
		}

		sale, err := repo.GetBySessionID(sessionID)
		if err != nil {
			return err
		}
		if sale == nil {
			return ErrSaleNotFound
		}
		if err := s.complete(repo, sale, intent, paidAt); err != nil {
			if intent != "" && errors.Is(err, gorm.ErrDuplicatedKey) {
				// 意向 ID 已被另一行占用：该行为同一请求的先行记录，
				// 收敛当前行并完成胜方
				winner, winnerErr := repo.GetByPaymentIntentID(intent)
				if winnerErr != nil {
					return winnerErr
				}
				if winner == nil {
					return err
				}
				if delErr := repo.SoftDelete(sale.ID); delErr != nil {
					return delErr
				}
				logger.Infow("sale_confirm_collapsed_duplicate",
					"kept_sale_id", winner.ID,
					"dropped_sale_id", sale.ID,
					"payment_intent_id", intent,
				)
				if err := s.complete(repo, winner, intent, paidAt); err != nil {
					return err
				}
				confirmed = winner
				return nil
			}
			return err
		}
		confirmed = sale
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("sale_confirmed",
		"sale_id", confirmed.ID,
		"session_id", confirmed.SessionID,
		"payment_intent_id", intent,
	)
	return confirmed, nil
}

func (s *SaleService) complete(repo repository.SaleRepository, sale *models.CommissionSale, intent string, paidAt *time.Time) error {
	if sale.Status == constants.SaleStatusCompleted && sale.PaymentIntentID != nil {
		return nil
	}
	fields := map[string]interface{}{
		"status":     constants.SaleStatusCompleted,
		"paid_at":    paidAt,
		"updated_at": time.Now(),
	}
	if intent != "" {
		fields["payment_intent_id"] = intent
	}
	if err := repo.UpdateFields(sale.ID, fields); err != nil {
		return err
	}
	sale.Status = constants.SaleStatusCompleted
	sale.PaidAt = paidAt
	if intent != "" {
		sale.PaymentIntentID = &intent
	}
	return nil
}

// FailSale 将未确认的记录标记为失败（会话过期/取消）
func (s *SaleService) FailSale(sessionID string) (*models.CommissionSale, error) {
	sale, err := s.saleRepo.GetBySessionID(strings.TrimSpace(sessionID))
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, ErrSaleNotFound
	}
	if sale.Status != constants.SaleStatusPending {
		return sale, nil
	}
	if err := s.saleRepo.UpdateFields(sale.ID, map[string]interface{}{
		"status":     constants.SaleStatusFailed,
		"updated_at": time.Now(),
	}); err != nil {
		return nil, err
	}
	sale.Status = constants.SaleStatusFailed
	logger.Infow("sale_failed", "sale_id", sale.ID, "session_id", sale.SessionID)
	return sale, nil
}

// CaptureResult 支付确认查询结果
type CaptureResult struct {
	Sale          *models.CommissionSale
	SessionStatus string
	PaymentStatus string
}

// CapturePayment 主动查询处理方会话状态并推进销售记录
func (s *SaleService) CapturePayment(ctx context.Context, sessionID string) (*CaptureResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrSaleNotFound
	}

	query, err := processor.QuerySession(ctx, s.processorCfg, sessionID)
	if err != nil {
		return nil, wrapProcessorError(err)
	}

	result := &CaptureResult{
		SessionStatus: query.Status,
		PaymentStatus: query.PaymentStatus,
	}
	switch {
	case query.PaymentStatus == "paid":
		sale, err := s.ConfirmPayment(ConfirmPaymentInput{
			SessionID:       sessionID,
			PaymentIntentID: query.PaymentIntentID,
			PaidAt:          query.PaidAt,
		})
		if err != nil {
			return nil, err
		}
		result.Sale = sale
	case query.Status == constants.SessionStatusExpired:
		sale, err := s.FailSale(sessionID)
		if err != nil {
			return nil, err
		}
		result.Sale = sale
	default:
		sale, err := s.saleRepo.GetBySessionID(sessionID)
		if err != nil {
			return nil, err
		}
		result.Sale = sale
	}
	return result, nil
}

// GetBySessionID 查询销售记录
func (s *SaleService) GetBySessionID(sessionID string) (*models.CommissionSale, error) {
	sale, err := s.saleRepo.GetBySessionID(strings.TrimSpace(sessionID))
	if err != nil {
		return nil, err
	}
	if sale == nil {
		return nil, ErrSaleNotFound
	}
	return sale, nil
}

// ListAdmin 管理端销售记录列表
func (s *SaleService) ListAdmin(filter repository.SaleListFilter) ([]models.CommissionSale, int64, error) {
	return s.saleRepo.ListAdmin(filter)
}
