package provider

import (
	"time"

	"github.com/splitpos-next/internal/cache"
	"github.com/splitpos-next/internal/config"
	"github.com/splitpos-next/internal/logger"
	"github.com/splitpos-next/internal/models"
	"github.com/splitpos-next/internal/processor"
	"github.com/splitpos-next/internal/queue"
	"github.com/splitpos-next/internal/repository"
	"github.com/splitpos-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config       *config.Config
	QueueClient  *queue.Client
	ProcessorCfg *processor.Config

	// Repositories
	UserRepo       repository.UserRepository
	TenantRepo     repository.TenantRepository
	SaleRepo       repository.SaleRepository
	SettlementRepo repository.SettlementRepository

	// Services
	TenantService     *service.TenantService
	CheckoutService   *service.CheckoutService
	SaleService       *service.SaleService
	SettlementService *service.SettlementService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	processorCfg := &processor.Config{
		APIBaseURL: cfg.Processor.APIBaseURL,
		SecretKey:  cfg.Processor.SecretKey,
		SuccessURL: cfg.Processor.SuccessURL,
		CancelURL:  cfg.Processor.CancelURL,
		RefreshURL: cfg.Processor.RefreshURL,
		ReturnURL:  cfg.Processor.ReturnURL,
		TimeoutMS:  cfg.Processor.TimeoutMS,
	}
	if err := processor.ValidateConfig(processorCfg); err != nil {
		logger.Warnw("provider_processor_config_invalid", "error", err)
	}

	c := &Container{
		Config:       cfg,
		QueueClient:  queueClient,
		ProcessorCfg: processorCfg,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.UserRepo = repository.NewUserRepository(db)
	c.TenantRepo = repository.NewTenantRepository(db)
	c.SaleRepo = repository.NewSaleRepository(db)
	c.SettlementRepo = repository.NewSettlementRepository(db)
}

func (c *Container) initServices() {
	c.TenantService = service.NewTenantService(c.TenantRepo, c.UserRepo, c.ProcessorCfg, c.Config.Commission)
	c.CheckoutService = service.NewCheckoutService(c.TenantRepo, c.TenantService, c.ProcessorCfg, c.Config.Commission)
	c.SaleService = service.NewSaleService(c.SaleRepo, c.ProcessorCfg, c.QueueClient,
		time.Duration(c.Config.Queue.CapturePollDelaySeconds)*time.Second)
	c.SettlementService = service.NewSettlementService(c.SaleRepo, c.TenantRepo, c.SettlementRepo, c.ProcessorCfg,
		time.Duration(c.Config.Settlement.PacingMS)*time.Millisecond, c.Config.Settlement.BatchLimit)
}
