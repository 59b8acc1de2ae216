package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/splitpos-next/internal/config"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client
var redisPrefix string
var redisEnabled bool

// InitRedis 初始化 Redis 客户端
func InitRedis(cfg *config.RedisConfig) error {
	if cfg == nil || !cfg.Enabled {
		redisEnabled = false
		redisClient = nil
		return nil
	}
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port <= 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		redisEnabled = false
		redisClient = nil
		return fmt.Errorf("redis ping failed: %w", err)
	}

	redisClient = client
	redisPrefix = strings.TrimSpace(cfg.Prefix)
	if redisPrefix == "" {
		redisPrefix = "sp"
	}
	redisEnabled = true
	return nil
}

// Enabled 判断 Redis 是否可用
func Enabled() bool {
	return redisEnabled && redisClient != nil
}

// Client 返回 Redis 客户端（未启用时为 nil）
func Client() *redis.Client {
	if !Enabled() {
		return nil
	}
	return redisClient
}

// Prefix 返回统一 key 前缀
func Prefix() string {
	if redisPrefix == "" {
		return "sp"
	}
	return redisPrefix
}

// Close 关闭 Redis 客户端
func Close() error {
	if redisClient == nil {
		return nil
	}
	err := redisClient.Close()
	redisClient = nil
	redisEnabled = false
	return err
}
