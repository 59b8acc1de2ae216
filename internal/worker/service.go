package worker

import (
	"context"
	"errors"
	"time"

	"github.com/splitpos-next/internal/config"
	"github.com/splitpos-next/internal/logger"
	"github.com/splitpos-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name               string
	server             *asynq.Server
	mux                *asynq.ServeMux
	consumer           *Consumer
	settlementInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:               "worker",
		server:             server,
		mux:                mux,
		consumer:           consumer,
		settlementInterval: time.Duration(cfg.SettlementIntervalMinutes) * time.Minute,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	if s.settlementInterval > 0 {
		go s.runSettlementLoop(ctx)
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// runSettlementLoop 周期触发结算批次（可选，默认关闭）
func (s *Service) runSettlementLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.QueueClient == nil {
		return
	}
	ticker := time.NewTicker(s.settlementInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.consumer.QueueClient.EnqueueSettlementRun(queue.SettlementRunPayload{
				Reason: "interval",
			}); err != nil {
				logger.Warnw("worker_settlement_enqueue_failed", "error", err)
			}
		}
	}
}
