package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/splitpos-next/internal/config"
	"github.com/splitpos-next/internal/constants"
	"github.com/splitpos-next/internal/logger"
	"github.com/splitpos-next/internal/processor"
	"github.com/splitpos-next/internal/repository"

	"github.com/shopspring/decimal"
)

// CheckoutService 支付会话构建服务
type CheckoutService struct {
	tenantRepo      repository.TenantRepository
	tenantSvc       *TenantService
	processorCfg    *processor.Config
	defaultCurrency string
}

// NewCheckoutService 创建支付会话服务
func NewCheckoutService(tenantRepo repository.TenantRepository, tenantSvc *TenantService, processorCfg *processor.Config, commission config.CommissionConfig) *CheckoutService {
	currency := strings.ToUpper(strings.TrimSpace(commission.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}
	return &CheckoutService{
		tenantRepo:      tenantRepo,
		tenantSvc:       tenantSvc,
		processorCfg:    processorCfg,
		defaultCurrency: currency,
	}
}

// CreateSessionInput 创建支付会话请求
type CreateSessionInput struct {
	TenantID         uint
	Amount           int64
	Currency         string
	Description      string
	RequestingUserID uint
	Context          context.Context
}

// SessionHandle 支付会话句柄，携带已计算的分账金额
type SessionHandle struct {
	SessionID        string
	PayURL           string
	PaymentIntentID  string
	TenantAccountID  uint
	AmountTotal      int64
	CommissionAmount int64
	NetAmount        int64
	Currency         string
	Description      string
}

// SplitAmount 按比例计算佣金金额，对最小货币单位四舍五入
// （0.5 进位）。净额为差值，两者之和恒等于总额。
func SplitAmount(amount int64, rate decimal.Decimal) (commission int64, net int64) {
	if amount <= 0 {
		return 0, amount
	}
	commission = decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
	if commission < 0 {
		commission = 0
	}
	if commission > amount {
		commission = amount
	}
	return commission, amount - commission
}

// CreateSession 构建支付会话。对处理方至多发起一次调用，失败直接
// 透传给调用方：重试可能产生重复的在途会话。本方法不写销售记录。
func (s *CheckoutService) CreateSession(input CreateSessionInput) (*SessionHandle, error) {
	if input.Amount <= 0 {
		return nil, ErrAmountInvalid
	}
	tenant, err := s.tenantRepo.GetByID(input.TenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	if tenant.UserID != input.RequestingUserID {
		return nil, ErrTenantForbidden
	}
	if tenant.Status == constants.TenantStatusDisabled {
		return nil, ErrTenantDisabled
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.defaultCurrency
	}

	rate := s.tenantSvc.EffectiveRate(tenant)
	commission, net := SplitAmount(input.Amount, rate)

	sessionInput := processor.SessionInput{
		Amount:      input.Amount,
		Currency:    currency,
		Description: strings.TrimSpace(input.Description),
		Reference:   fmt.Sprintf("tenant_%d", tenant.ID),
	}
	if tenant.CanSplit {
		// 分账会话：佣金在扣款时直接落入平台，余额进入租户账户
		sessionInput.Destination = tenant.AccountID
		sessionInput.ApplicationFee = commission
	}

	result, err := processor.CreateSession(input.Context, s.processorCfg, sessionInput)
	if err != nil {
		logger.Warnw("checkout_create_session_failed",
			"tenant_id", tenant.ID,
			"amount", input.Amount,
			"currency", currency,
			"error", err,
		)
		return nil, wrapProcessorError(err)
	}

	logger.Infow("checkout_session_created",
		"tenant_id", tenant.ID,
		"session_id", result.SessionID,
		"amount", input.Amount,
		"commission", commission,
		"net", net,
		"split", tenant.CanSplit,
	)
	return &SessionHandle{
		SessionID:        result.SessionID,
		PayURL:           result.URL,
		PaymentIntentID:  result.PaymentIntentID,
		TenantAccountID:  tenant.ID,
		AmountTotal:      input.Amount,
		CommissionAmount: commission,
		NetAmount:        net,
		Currency:         currency,
		Description:      strings.TrimSpace(input.Description),
	}, nil
}

// wrapProcessorError 将处理方错误包装为上游错误并保留原因
func wrapProcessorError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrProcessorUnavailable, err)
}
