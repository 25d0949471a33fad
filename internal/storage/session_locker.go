package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"interview-coach/internal/constants"
	"interview-coach/internal/interview"
	"interview-coach/internal/logger"
)

// lockStore RedisSessionLocker 依赖的 Redis 子集
type lockStore interface {
	AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error)
	ReleaseLock(ctx context.Context, lockKey string, token string) error
}

// RedisSessionLocker 多实例部署时按会话串行化对话轮次
type RedisSessionLocker struct {
	store         lockStore
	ttl           time.Duration
	wait          time.Duration
	retryInterval time.Duration
}

var _ interview.SessionLocker = (*RedisSessionLocker)(nil)

// NewRedisSessionLocker ttl 需大于一轮对话的最长耗时（提取+生成）
func NewRedisSessionLocker(store lockStore, ttl, wait time.Duration) *RedisSessionLocker {
	return &RedisSessionLocker{
		store:         store,
		ttl:           ttl,
		wait:          wait,
		retryInterval: 50 * time.Millisecond,
	}
}

// SessionLockKey 会话锁的 key
func SessionLockKey(sessionID string) string {
	return fmt.Sprintf(constants.KeyInterviewSessionLock, sessionID)
}

// Lock 轮询获取锁，超过等待时间返回 interview.ErrSessionBusy
func (l *RedisSessionLocker) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := SessionLockKey(sessionID)
	deadline := time.Now().Add(l.wait)

	for {
		token, err := l.store.AcquireLock(ctx, key, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("获取会话锁失败: %w", err)
		}
		if token != "" {
			return l.unlocker(key, token), nil
		}
		if !time.Now().Before(deadline) {
			return nil, interview.ErrSessionBusy
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *RedisSessionLocker) unlocker(key, token string) func() {
	return func() {
		// 请求 ctx 可能已取消，释放锁使用独立的短超时
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.store.ReleaseLock(ctx, key, token); err != nil {
			if errors.Is(err, ErrLockNotHeld) {
				logger.Warn().Str("key", key).Msg("会话锁已过期，本轮处理时间超过锁有效期")
				return
			}
			logger.Error().Err(err).Str("key", key).Msg("释放会话锁失败")
		}
	}
}
