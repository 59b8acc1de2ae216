package service

import (
	"context"
	"strings"
	"time"

	"github.com/splitpos-next/internal/config"
	"github.com/splitpos-next/internal/constants"
	"github.com/splitpos-next/internal/logger"
	"github.com/splitpos-next/internal/models"
	"github.com/splitpos-next/internal/processor"
	"github.com/splitpos-next/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TenantService 租户账户服务
type TenantService struct {
	tenantRepo     repository.TenantRepository
	userRepo       repository.UserRepository
	processorCfg   *processor.Config
	defaultRate    decimal.Decimal
	splitCountries map[string]struct{}
}

// NewTenantService 创建租户账户服务
func NewTenantService(tenantRepo repository.TenantRepository, userRepo repository.UserRepository, processorCfg *processor.Config, commission config.CommissionConfig) *TenantService {
	return &TenantService{
		tenantRepo:     tenantRepo,
		userRepo:       userRepo,
		processorCfg:   processorCfg,
		defaultRate:    decimal.NewFromFloat(commission.DefaultRate),
		splitCountries: commission.SplitCountrySet(),
	}
}

// RegisterTenantInput 租户入驻请求
type RegisterTenantInput struct {
	UserID       uint
	Country      string
	BusinessName string
	Email        string
	Context      context.Context
}

// RegisterTenantResult 租户入驻结果
type RegisterTenantResult struct {
	Tenant        *models.TenantAccount
	OnboardingURL string
}

// Register 用户入驻为收款租户。能力标记由所在国家/地区在创建时
// 一次性决定，之后不随查询变化。重复入驻返回 ErrTenantExists，
// 结果中携带已有账户。
func (s *TenantService) Register(input RegisterTenantInput) (*RegisterTenantResult, error) {
	if input.UserID == 0 {
		return nil, ErrUserNotFound
	}
	user, err := s.userRepo.GetByID(input.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	existing, err := s.tenantRepo.GetByUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &RegisterTenantResult{Tenant: existing}, ErrTenantExists
	}

	country := strings.ToUpper(strings.TrimSpace(input.Country))
	if len(country) != 2 {
		return nil, ErrCountryInvalid
	}

	log := logger.SW("user_id", input.UserID, "country", country)

	if _, ok := s.splitCountries[country]; !ok {
		// 不支持自动分账的地区：本地生成虚拟账户，无需入驻流程
		now := time.Now()
		tenant := &models.TenantAccount{
			UserID:            input.UserID,
			AccountID:         constants.VirtualAccountPrefix + uuid.NewString(),
			AccountKind:       constants.AccountKindVirtual,
			Country:           country,
			BusinessName:      strings.TrimSpace(input.BusinessName),
			CanSplit:          false,
			CanManualTransfer: true,
			Status:            constants.TenantStatusActive,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.tenantRepo.Create(tenant); err != nil {
			return nil, err
		}
		log.Infow("tenant_registered_virtual", "tenant_id", tenant.ID, "account_id", tenant.AccountID)
		return &RegisterTenantResult{Tenant: tenant}, nil
	}

	email := strings.TrimSpace(input.Email)
	if email == "" {
		email = user.Email
	}
	account, err := processor.CreateAccount(input.Context, s.processorCfg, processor.AccountInput{
		Email:        email,
		Country:      country,
		BusinessName: strings.TrimSpace(input.BusinessName),
	})
	if err != nil {
		log.Warnw("tenant_register_create_account_failed", "error", err)
		return nil, wrapProcessorError(err)
	}

	now := time.Now()
	tenant := &models.TenantAccount{
		UserID:            input.UserID,
		AccountID:         account.AccountID,
		AccountKind:       constants.AccountKindProcessor,
		Country:           country,
		BusinessName:      strings.TrimSpace(input.BusinessName),
		CanSplit:          true,
		CanManualTransfer: true,
		Status:            constants.TenantStatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.tenantRepo.Create(tenant); err != nil {
		return nil, err
	}

	onboardingURL, err := processor.CreateAccountLink(input.Context, s.processorCfg, account.AccountID)
	if err != nil {
		// 账户已建立，引导链接可通过 OnboardingLink 重新签发
		log.Warnw("tenant_register_account_link_failed", "tenant_id", tenant.ID, "error", err)
		onboardingURL = ""
	}
	log.Infow("tenant_registered_processor", "tenant_id", tenant.ID, "account_id", tenant.AccountID)
	return &RegisterTenantResult{Tenant: tenant, OnboardingURL: onboardingURL}, nil
}

// GetByUserID 获取用户的租户账户
func (s *TenantService) GetByUserID(userID uint) (*models.TenantAccount, error) {
	if userID == 0 {
		return nil, ErrUserNotFound
	}
	tenant, err := s.tenantRepo.GetByUserID(userID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	return tenant, nil
}

// CommissionRate 返回用户的生效佣金比例（未单独设置时为默认值）
func (s *TenantService) CommissionRate(userID uint) (decimal.Decimal, error) {
	tenant, err := s.tenantRepo.GetByUserID(userID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.EffectiveRate(tenant), nil
}

// EffectiveRate 返回租户的生效佣金比例
func (s *TenantService) EffectiveRate(tenant *models.TenantAccount) decimal.Decimal {
	if tenant != nil && tenant.CommissionRate != nil {
		return tenant.CommissionRate.Decimal
	}
	return s.defaultRate
}

// OnboardingLink 重新签发入驻引导链接
func (s *TenantService) OnboardingLink(ctx context.Context, userID uint) (string, error) {
	tenant, err := s.GetByUserID(userID)
	if err != nil {
		return "", err
	}
	if tenant.IsVirtual() {
		return "", ErrTenantVirtual
	}
	link, err := processor.CreateAccountLink(ctx, s.processorCfg, tenant.AccountID)
	if err != nil {
		return "", wrapProcessorError(err)
	}
	return link, nil
}

// CompleteOnboarding 处理方确认资料提交后激活待入驻租户
func (s *TenantService) CompleteOnboarding(ctx context.Context, accountID string) (*models.TenantAccount, error) {
	tenant, err := s.tenantRepo.GetByAccountID(accountID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	if tenant.Status != constants.TenantStatusPending {
		return tenant, nil
	}
	account, err := processor.GetAccount(ctx, s.processorCfg, tenant.AccountID)
	if err != nil {
		return nil, wrapProcessorError(err)
	}
	if !account.DetailsSubmitted {
		return tenant, nil
	}
	now := time.Now()
	tenant.Status = constants.TenantStatusActive
	tenant.OnboardedAt = &now
	tenant.UpdatedAt = now
	if err := s.tenantRepo.Update(tenant); err != nil {
		return nil, err
	}
	logger.Infow("tenant_onboarding_completed", "tenant_id", tenant.ID, "account_id", tenant.AccountID)
	return tenant, nil
}

// UpdateRate 运营方调整租户佣金比例
func (s *TenantService) UpdateRate(tenantID uint, rate decimal.Decimal) (*models.TenantAccount, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrRateInvalid
	}
	tenant, err := s.tenantRepo.GetByID(tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	newRate := models.NewRateFromDecimal(rate)
	tenant.CommissionRate = &newRate
	tenant.UpdatedAt = time.Now()
	if err := s.tenantRepo.Update(tenant); err != nil {
		return nil, err
	}
	logger.Infow("tenant_rate_updated", "tenant_id", tenant.ID, "rate", newRate.String())
	return tenant, nil
}

// Promote 为虚拟账户租户补建真实处理方账户（显式重新入驻）。
// 账户类型切换为 processor，分账能力保持关闭，之后该租户即可
// 接收手动结算转账。
func (s *TenantService) Promote(ctx context.Context, tenantID uint) (*RegisterTenantResult, error) {
	tenant, err := s.tenantRepo.GetByID(tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	if !tenant.IsVirtual() {
		return nil, ErrTenantNotVirtual
	}

	user, err := s.userRepo.GetByID(tenant.UserID)
	if err != nil {
		return nil, err
	}
	email := ""
	if user != nil {
		email = user.Email
	}
	account, err := processor.CreateAccount(ctx, s.processorCfg, processor.AccountInput{
		Email:        email,
		Country:      tenant.Country,
		BusinessName: tenant.BusinessName,
	})
	if err != nil {
		return nil, wrapProcessorError(err)
	}

	tenant.AccountID = account.AccountID
	tenant.AccountKind = constants.AccountKindProcessor
	tenant.UpdatedAt = time.Now()
	if err := s.tenantRepo.Update(tenant); err != nil {
		return nil, err
	}

	onboardingURL, err := processor.CreateAccountLink(ctx, s.processorCfg, account.AccountID)
	if err != nil {
		logger.Warnw("tenant_promote_account_link_failed", "tenant_id", tenant.ID, "error", err)
		onboardingURL = ""
	}
	logger.Infow("tenant_promoted", "tenant_id", tenant.ID, "account_id", tenant.AccountID)
	return &RegisterTenantResult{Tenant: tenant, OnboardingURL: onboardingURL}, nil
}

// SetStatus 运营方调整租户状态（active/disabled）
func (s *TenantService) SetStatus(tenantID uint, status string) (*models.TenantAccount, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != constants.TenantStatusActive && status != constants.TenantStatusDisabled {
		return nil, ErrTenantStatusInvalid
	}
	tenant, err := s.tenantRepo.GetByID(tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	tenant.Status = status
	tenant.UpdatedAt = time.Now()
	if err := s.tenantRepo.Update(tenant); err != nil {
		return nil, err
	}
	return tenant, nil
}

// ListAdmin 管理端租户列表
func (s *TenantService) ListAdmin(filter repository.TenantListFilter) ([]models.TenantAccount, int64, error) {
	return s.tenantRepo.ListAdmin(filter)
}
