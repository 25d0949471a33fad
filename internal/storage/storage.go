package storage

import (
	"context"
	"fmt"
	"strings"

	"interview-coach/internal/config"
	"interview-coach/internal/logger"
)

// Storage 聚合服务依赖的全部外部存储
type Storage struct {
	// 对象存储
	MinIO *MinIO

	// 消息队列
	RabbitMQ *RabbitMQ

	// 关系型数据库
	MySQL *MySQL

	// 键值存储
	Redis *Redis
}

// NewStorage 初始化存储组件
// MySQL 与 Redis 是会话读写的前提，失败即返回错误；
// MinIO 与 RabbitMQ 失败时仅告警，对应功能降级
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}
	log := logger.WithComponent("storage")
	s := &Storage{}
	var err error

	s.MySQL, err = NewMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("MySQL: %w", err)
	}

	s.Redis, err = NewRedis(&cfg.Redis)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("Redis: %w", err)
	}
	log.Info().Str("address", cfg.Redis.Address).Msg("Redis客户端初始化成功")

	var degraded []string
	if cfg.MinIO.Endpoint != "" {
		s.MinIO, err = NewMinIO(ctx, &cfg.MinIO)
		if err != nil {
			degraded = append(degraded, fmt.Sprintf("MinIO: %v", err))
		} else {
			log.Info().Str("endpoint", cfg.MinIO.Endpoint).Msg("MinIO客户端初始化成功")
		}
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			degraded = append(degraded, fmt.Sprintf("RabbitMQ: %v", err))
		} else if cfg.RabbitMQ.InterviewEventsExchange != "" {
			if err := s.RabbitMQ.EnsureExchange(cfg.RabbitMQ.InterviewEventsExchange, "topic", true); err != nil {
				degraded = append(degraded, fmt.Sprintf("RabbitMQ exchange: %v", err))
			}
		}
	}

	if len(degraded) > 0 {
		log.Warn().Str("components", strings.Join(degraded, "; ")).Msg("部分存储组件初始化失败，相关功能降级")
	}
	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	log := logger.WithComponent("storage")
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
