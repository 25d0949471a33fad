package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"
)

// RateLimitedChatModel 按每分钟请求数限制模型调用
type RateLimitedChatModel struct {
	inner   model.BaseChatModel
	limiter *rate.Limiter
}

var _ model.BaseChatModel = (*RateLimitedChatModel)(nil)

// WithRateLimit qpm<=0 时原样返回 inner
func WithRateLimit(inner model.BaseChatModel, qpm, burst int) model.BaseChatModel {
	if qpm <= 0 {
		return inner
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimitedChatModel{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(qpm)), burst),
	}
}

func (r *RateLimitedChatModel) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("等待模型调用配额失败: %w", err)
	}
	return nil
}

// Generate 取得配额后调用
func (r *RateLimitedChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Generate(ctx, input, opts...)
}

// Stream 取得配额后调用
func (r *RateLimitedChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Stream(ctx, input, opts...)
}
