package main

import (
	"time"

	"github.com/splitpos-next/internal/auth"
	"github.com/splitpos-next/internal/config"
	"github.com/splitpos-next/internal/constants"
	"github.com/splitpos-next/internal/logger"
	"github.com/splitpos-next/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 添加演示用户
	users := []models.User{
		{Email: "merchant-us@splitpos.local", Status: constants.UserStatusActive},
		{Email: "merchant-ar@splitpos.local", Status: constants.UserStatusActive},
	}
	for index := range users {
		var existing models.User
		if err := models.DB.Where("email = ?", users[index].Email).First(&existing).Error; err != nil {
			if err := models.DB.Create(&users[index]).Error; err != nil {
				stdLog.Printf("Failed to create user %s: %v", users[index].Email, err)
				continue
			}
			stdLog.Printf("Created user: %s", users[index].Email)
		} else {
			users[index] = existing
			stdLog.Printf("User already exists: %s", existing.Email)
		}
	}

	// 添加演示租户：US 为可分账的处理方账户，AR 为虚拟账户
	customRate := models.NewRateFromDecimal(decimal.NewFromFloat(0.08))
	tenants := []models.TenantAccount{
		{
			UserID:            users[0].ID,
			AccountID:         "acct_seed_" + uuid.NewString()[:8],
			AccountKind:       constants.AccountKindProcessor,
			Country:           "US",
			BusinessName:      "Demo Coffee US",
			CommissionRate:    &customRate,
			CanSplit:          true,
			CanManualTransfer: true,
			Status:            constants.TenantStatusActive,
		},
		{
			UserID:            users[1].ID,
			AccountID:         constants.VirtualAccountPrefix + uuid.NewString(),
			AccountKind:       constants.AccountKindVirtual,
			Country:           "AR",
			BusinessName:      "Demo Kiosco AR",
			CanSplit:          false,
			CanManualTransfer: true,
			Status:            constants.TenantStatusActive,
		},
	}
	now := time.Now()
	for index := range tenants {
		if tenants[index].UserID == 0 {
			continue
		}
		var existing models.TenantAccount
		if err := models.DB.Where("user_id = ?", tenants[index].UserID).First(&existing).Error; err != nil {
			tenants[index].OnboardedAt = &now
			if err := models.DB.Create(&tenants[index]).Error; err != nil {
				stdLog.Printf("Failed to create tenant %s: %v", tenants[index].BusinessName, err)
				continue
			}
			stdLog.Printf("Created tenant: %s (%s)", tenants[index].BusinessName, tenants[index].AccountKind)
		} else {
			stdLog.Printf("Tenant already exists: %s", existing.BusinessName)
		}
	}

	// 签发开发调试用 Token
	for _, user := range users {
		if user.ID == 0 {
			continue
		}
		token, _, err := auth.GenerateUserToken(cfg.UserJWT.SecretKey, user.ID, user.Email, cfg.UserJWT.ExpireHours)
		if err != nil {
			stdLog.Printf("Failed to generate token for %s: %v", user.Email, err)
			continue
		}
		stdLog.Printf("User token (%s): %s", user.Email, token)
	}
	adminToken, _, err := auth.GenerateAdminToken(cfg.JWT.SecretKey, 1, "admin", cfg.JWT.ExpireHours)
	if err != nil {
		stdLog.Printf("Failed to generate admin token: %v", err)
	} else {
		stdLog.Printf("Admin token: %s", adminToken)
	}

	stdLog.Println("Seed finished")
}
