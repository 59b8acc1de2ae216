package config

import (
	"fmt"
	"strings"

	"github.com/splitpos-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	UserJWT    JWTConfig        `mapstructure:"user_jwt"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Queue      QueueConfig      `mapstructure:"queue"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Security   SecurityConfig   `mapstructure:"security"`
	Processor  ProcessorConfig  `mapstructure:"processor"`
	Commission CommissionConfig `mapstructure:"commission"`
	Settlement SettlementConfig `mapstructure:"settlement"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug / release
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled                   bool           `mapstructure:"enabled"`
	Host                      string         `mapstructure:"host"`
	Port                      int            `mapstructure:"port"`
	Password                  string         `mapstructure:"password"`
	DB                        int            `mapstructure:"db"`
	Concurrency               int            `mapstructure:"concurrency"`
	Queues                    map[string]int `mapstructure:"queues"`
	CapturePollDelaySeconds   int            `mapstructure:"capture_poll_delay_seconds"`
	SettlementIntervalMinutes int            `mapstructure:"settlement_interval_minutes"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	PaymentRateLimit RateLimitConfig `mapstructure:"payment_rate_limit"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxAttempts   int `mapstructure:"max_attempts"`
}

// ProcessorConfig 支付处理方配置
type ProcessorConfig struct {
	APIBaseURL string `mapstructure:"api_base_url"`
	SecretKey  string `mapstructure:"secret_key"`
	SuccessURL string `mapstructure:"success_url"`
	CancelURL  string `mapstructure:"cancel_url"`
	RefreshURL string `mapstructure:"refresh_url"` // 入驻链接失效后的返回地址
	ReturnURL  string `mapstructure:"return_url"`  // 入驻完成后的返回地址
	TimeoutMS  int    `mapstructure:"timeout_ms"`
}

// CommissionConfig 佣金配置
type CommissionConfig struct {
	DefaultRate     float64  `mapstructure:"default_rate"`     // 默认佣金比例（0~1 小数）
	SplitCountries  []string `mapstructure:"split_countries"`  // 支持自动分账的国家/地区
	DefaultCurrency string   `mapstructure:"default_currency"` // 默认币种
}

// SettlementConfig 手动结算配置
type SettlementConfig struct {
	PacingMS   int `mapstructure:"pacing_ms"`   // 转账调用之间的间隔
	BatchLimit int `mapstructure:"batch_limit"` // 单批最大处理条数
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")     // 从当前目录查找
	viper.AddConfigPath("../")   // 如果从 cmd/server 运行
	viper.AddConfigPath("./etc") // etc 文件夹

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("log.dir", "")
	viper.SetDefault("log.filename", "app.log")
	viper.SetDefault("log.max_size_mb", 100)
	viper.SetDefault("log.max_backups", 7)
	viper.SetDefault("log.max_age_days", 30)
	viper.SetDefault("log.compress", true)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "./db/splitpos.db")
	viper.SetDefault("database.pool.max_open_conns", 1)
	viper.SetDefault("database.pool.max_idle_conns", 1)
	viper.SetDefault("database.pool.conn_max_lifetime_seconds", 0)
	viper.SetDefault("database.pool.conn_max_idle_time_seconds", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expire_hours", 24)
	viper.SetDefault("user_jwt.secret", "user-change-me-in-production")
	viper.SetDefault("user_jwt.expire_hours", 24)
	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.prefix", "sp")
	viper.SetDefault("queue.enabled", true)
	viper.SetDefault("queue.host", "127.0.0.1")
	viper.SetDefault("queue.port", 6379)
	viper.SetDefault("queue.password", "")
	viper.SetDefault("queue.db", 1)
	viper.SetDefault("queue.concurrency", 10)
	viper.SetDefault("queue.queues", map[string]int{
		"default": 10,
	})
	viper.SetDefault("queue.capture_poll_delay_seconds", 120)
	viper.SetDefault("queue.settlement_interval_minutes", 0)
	viper.SetDefault("cors.allowed_origins", []string{"*"})
	viper.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	viper.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Content-Length",
		"Accept-Encoding",
		"Authorization",
		"Cache-Control",
		"X-Requested-With",
	})
	viper.SetDefault("cors.allow_credentials", true)
	viper.SetDefault("cors.max_age", 600)
	viper.SetDefault("security.payment_rate_limit.window_seconds", 60)
	viper.SetDefault("security.payment_rate_limit.max_attempts", 10)
	viper.SetDefault("processor.api_base_url", "https://api.stripe.com")
	viper.SetDefault("processor.secret_key", "")
	viper.SetDefault("processor.success_url", "")
	viper.SetDefault("processor.cancel_url", "")
	viper.SetDefault("processor.refresh_url", "")
	viper.SetDefault("processor.return_url", "")
	viper.SetDefault("processor.timeout_ms", 12000)
	viper.SetDefault("commission.default_rate", 0.05)
	// 处理方公开的可分账国家/地区列表
	viper.SetDefault("commission.split_countries", []string{
		"AT", "AU", "BE", "BG", "CA", "CH", "CY", "CZ", "DE", "DK",
		"EE", "ES", "FI", "FR", "GB", "GR", "HK", "HR", "HU", "IE",
		"IT", "JP", "LT", "LU", "LV", "MT", "MX", "NL", "NO", "NZ",
		"PL", "PT", "RO", "SE", "SG", "SI", "SK", "US",
	})
	viper.SetDefault("commission.default_currency", "USD")
	viper.SetDefault("settlement.pacing_ms", 200)
	viper.SetDefault("settlement.batch_limit", 500)

	// 环境变量支持
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // server.port -> SERVER_PORT

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}

	return &cfg
}

// SplitCountrySet 返回可分账国家集合
func (c CommissionConfig) SplitCountrySet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.SplitCountries))
	for _, country := range c.SplitCountries {
		country = strings.ToUpper(strings.TrimSpace(country))
		if country == "" {
			continue
		}
		set[country] = struct{}{}
	}
	return set
}
