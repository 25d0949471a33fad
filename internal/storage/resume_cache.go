package storage

import (
	"context"
	"errors"
	"time"

	"interview-coach/internal/interview"

	"github.com/redis/go-redis/v9"
)

// stringStore ResumeTextCache 依赖的 Redis 子集
type stringStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
}

// ResumeTextCache 基于 Redis 的简历文本缓存，实现 interview.TextCache
type ResumeTextCache struct {
	store stringStore
}

var _ interview.TextCache = (*ResumeTextCache)(nil)

// NewResumeTextCache 创建缓存适配器
func NewResumeTextCache(store stringStore) *ResumeTextCache {
	return &ResumeTextCache{store: store}
}

// Get key 不存在时返回 ok=false 且无错误
func (c *ResumeTextCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// Set 写入并设置过期时间
func (c *ResumeTextCache) Set(ctx context.Context, key string, text string, ttl time.Duration) error {
	return c.store.Set(ctx, key, text, ttl)
}
