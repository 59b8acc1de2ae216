package service

import (
	"context"
	"strconv"
	"time"

	"github.com/splitpos-next/internal/constants"
	"github.com/splitpos-next/internal/logger"
	"github.com/splitpos-next/internal/models"
	"github.com/splitpos-next/internal/processor"
	"github.com/splitpos-next/internal/repository"
)

// SettlementService 手动结算服务。离线批处理，将不支持自动分账的
// 租户已完成且未结算的净额逐笔转出。
type SettlementService struct {
	saleRepo       repository.SaleRepository
	tenantRepo     repository.TenantRepository
	settlementRepo repository.SettlementRepository
	processorCfg   *processor.Config
	pacing         time.Duration
	batchLimit     int
}

// NewSettlementService 创建手动结算服务
func NewSettlementService(saleRepo repository.SaleRepository, tenantRepo repository.TenantRepository, settlementRepo repository.SettlementRepository, processorCfg *processor.Config, pacing time.Duration, batchLimit int) *SettlementService {
	if pacing < 0 {
		pacing = 0
	}
	return &SettlementService{
		saleRepo:       saleRepo,
		tenantRepo:     tenantRepo,
		settlementRepo: settlementRepo,
		processorCfg:   processorCfg,
		pacing:         pacing,
		batchLimit:     batchLimit,
	}
}

// SettlementTransferDetail 单笔转账明细
type SettlementTransferDetail struct {
	SaleID      uint   `json:"sale_id"`
	TenantID    uint   `json:"tenant_id"`
	TransferID  uint   `json:"transfer_id"`
	ProviderRef string `json:"provider_ref"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
}

// SettlementFailureDetail 单笔失败明细
type SettlementFailureDetail struct {
	SaleID   uint   `json:"sale_id"`
	TenantID uint   `json:"tenant_id"`
	Amount   int64  `json:"amount"`
	Error    string `json:"error"`
}

// SettlementSkipDetail 单笔跳过明细
type SettlementSkipDetail struct {
	SaleID   uint   `json:"sale_id"`
	TenantID uint   `json:"tenant_id"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

// SettlementReport 结算批次汇总
type SettlementReport struct {
	TransferCount int                        `json:"transfer_count"`
	TotalAmount   int64                      `json:"total_amount"`
	Transfers     []SettlementTransferDetail `json:"transfers"`
	Failures      []SettlementFailureDetail  `json:"failures"`
	Skipped       []SettlementSkipDetail     `json:"skipped"`
	StartedAt     time.Time                  `json:"started_at"`
	FinishedAt    time.Time                  `json:"finished_at"`
}

// Run 执行一次结算批次。查询条件排除已带 transfer_id 的记录，
// 因此部分失败后重跑只会重试失败子集，不存在重复转账。单笔失败
// 只记入报告，不中断批次。
func (s *SettlementService) Run(ctx context.Context) (*SettlementReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	report := &SettlementReport{
		Transfers: []SettlementTransferDetail{},
		Failures:  []SettlementFailureDetail{},
		Skipped:   []SettlementSkipDetail{},
		StartedAt: time.Now(),
	}

	sales, err := s.saleRepo.ListUnsettled(s.batchLimit)
	if err != nil {
		return nil, err
	}

	for index := range sales {
		sale := &sales[index]
		if index > 0 && s.pacing > 0 {
			// 对处理方限速的礼让间隔，非正确性要求
			select {
			case <-ctx.Done():
				return s.finish(report, ctx.Err())
			case <-time.After(s.pacing):
			}
		}

		tenant := &sale.TenantAccount
		if tenant.ID == 0 {
			loaded, err := s.tenantRepo.GetByID(sale.TenantAccountID)
			if err != nil {
				report.Failures = append(report.Failures, SettlementFailureDetail{
					SaleID:   sale.ID,
					TenantID: sale.TenantAccountID,
					Amount:   sale.NetAmount,
					Error:    err.Error(),
				})
				continue
			}
			if loaded == nil {
				report.Failures = append(report.Failures, SettlementFailureDetail{
					SaleID:   sale.ID,
					TenantID: sale.TenantAccountID,
					Amount:   sale.NetAmount,
					Error:    ErrTenantNotFound.Error(),
				})
				continue
			}
			tenant = loaded
		}

		if tenant.IsVirtual() {
			// 尚未补建真实处理方账户，暂不可转账
			report.Skipped = append(report.Skipped, SettlementSkipDetail{
				SaleID:   sale.ID,
				TenantID: tenant.ID,
				Amount:   sale.NetAmount,
				Reason:   constants.SkipReasonNotTransferable,
			})
			continue
		}

		result, err := processor.CreateTransfer(ctx, s.processorCfg, processor.TransferInput{
			Amount:      sale.NetAmount,
			Currency:    sale.Currency,
			Destination: tenant.AccountID,
			SaleRef:     strconv.FormatUint(uint64(sale.ID), 10),
		})
		if err != nil {
			logger.Warnw("settlement_transfer_failed",
				"sale_id", sale.ID,
				"tenant_id", tenant.ID,
				"amount", sale.NetAmount,
				"error", err,
			)
			report.Failures = append(report.Failures, SettlementFailureDetail{
				SaleID:   sale.ID,
				TenantID: tenant.ID,
				Amount:   sale.NetAmount,
				Error:    err.Error(),
			})
			continue
		}

		now := time.Now()
		transfer := &models.SettlementTransfer{
			ProviderRef:      result.TransferID,
			CommissionSaleID: sale.ID,
			TenantAccountID:  tenant.ID,
			Amount:           sale.NetAmount,
			Currency:         sale.Currency,
			Destination:      tenant.AccountID,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if err := s.settlementRepo.CreateTransfer(transfer); err != nil {
			logger.Errorw("settlement_transfer_persist_failed",
				"sale_id", sale.ID,
				"provider_ref", result.TransferID,
				"error", err,
			)
			report.Failures = append(report.Failures, SettlementFailureDetail{
				SaleID:   sale.ID,
				TenantID: tenant.ID,
				Amount:   sale.NetAmount,
				Error:    err.Error(),
			})
			continue
		}
		if err := s.saleRepo.UpdateFields(sale.ID, map[string]interface{}{
			"transfer_id": transfer.ID,
			"updated_at":  now,
		}); err != nil {
			logger.Errorw("settlement_sale_update_failed",
				"sale_id", sale.ID,
				"transfer_id", transfer.ID,
				"error", err,
			)
			report.Failures = append(report.Failures, SettlementFailureDetail{
				SaleID:   sale.ID,
				TenantID: tenant.ID,
				Amount:   sale.NetAmount,
				Error:    err.Error(),
			})
			continue
		}

		report.Transfers = append(report.Transfers, SettlementTransferDetail{
			SaleID:      sale.ID,
			TenantID:    tenant.ID,
			TransferID:  transfer.ID,
			ProviderRef: result.TransferID,
			Amount:      sale.NetAmount,
			Currency:    sale.Currency,
			Destination: tenant.AccountID,
		})
		report.TransferCount++
		report.TotalAmount += sale.NetAmount
	}

	return s.finish(report, nil)
}

func (s *SettlementService) finish(report *SettlementReport, runErr error) (*SettlementReport, error) {
	report.FinishedAt = time.Now()

	run := &models.SettlementRun{
		TransferCount: report.TransferCount,
		SkippedCount:  len(report.Skipped),
		FailedCount:   len(report.Failures),
		TotalAmount:   report.TotalAmount,
		StartedAt:     report.StartedAt,
		FinishedAt:    report.FinishedAt,
		CreatedAt:     time.Now(),
	}
	if err := s.settlementRepo.CreateRun(run); err != nil {
		logger.Errorw("settlement_run_persist_failed", "error", err)
	}

	logger.Infow("settlement_run_finished",
		"transfer_count", report.TransferCount,
		"total_amount", report.TotalAmount,
		"skipped", len(report.Skipped),
		"failed", len(report.Failures),
	)
	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

// ListRuns 结算批次列表
func (s *SettlementService) ListRuns(filter repository.SettlementRunListFilter) ([]models.SettlementRun, int64, error) {
	return s.settlementRepo.ListRuns(filter)
}
