package router

import (
	"fmt"
	"strings"

	"github.com/splitpos-next/internal/cache"
	"github.com/splitpos-next/internal/config"
	adminhandlers "github.com/splitpos-next/internal/http/handlers/admin"
	publichandlers "github.com/splitpos-next/internal/http/handlers/public"
	"github.com/splitpos-next/internal/logger"
	"github.com/splitpos-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sp"
	}
	redisClient := cache.Client()
	paymentRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:payment", redisPrefix),
		WindowSeconds: cfg.Security.PaymentRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.PaymentRateLimit.MaxAttempts,
		Message:       "too many payment attempts",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 处理方回调（无鉴权，事件本身幂等）
		apiV1.POST("/payments/webhook", publicHandler.ProcessorWebhook)

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.POST("/tenants", publicHandler.RegisterTenant)
			user.GET("/tenants/me", publicHandler.GetMyTenant)
			user.POST("/tenants/me/onboarding-link", publicHandler.GetOnboardingLink)
			user.POST("/payments", RateLimitMiddleware(redisClient, paymentRule, KeyByUserID), publicHandler.CreatePayment)
			user.GET("/payments/:session_id", publicHandler.GetPayment)
			user.POST("/payments/:session_id/capture", publicHandler.CapturePayment)
		}

		// 管理员接口
		admin := apiV1.Group("/admin")
		admin.Use(AdminJWTAuthMiddleware(cfg.JWT.SecretKey))
		{
			admin.GET("/tenants", adminHandler.AdminListTenants)
			admin.PUT("/tenants/:id/rate", adminHandler.AdminUpdateTenantRate)
			admin.POST("/tenants/:id/promote", adminHandler.AdminPromoteTenant)
			admin.POST("/tenants/:id/activate", adminHandler.AdminUpdateTenantStatus)
			admin.GET("/sales", adminHandler.AdminListSales)
			admin.POST("/settlement/run", adminHandler.RunSettlement)
			admin.GET("/settlement/runs", adminHandler.ListSettlementRuns)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
