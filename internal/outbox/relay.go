package outbox // 事务性发件箱：把与会话同事务写入的事件投递到 RabbitMQ

import (
	"context"
	"sync"
	"time"

	"interview-coach/internal/constants"
	"interview-coach/internal/logger"
	"interview-coach/internal/storage/models"
	"interview-coach/internal/tracing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultPollingInterval = 5 * time.Second
	defaultBatchSize       = 10
	maxRetryCount          = 5
)

// Publisher 消息发布端
type Publisher interface {
	PublishMessage(ctx context.Context, exchangeName, routingKey string, message []byte) error
}

// MessageRelay 轮询 outbox 表并发布消息，至少投递一次
type MessageRelay struct {
	db              *gorm.DB
	publisher       Publisher
	logger          zerolog.Logger
	pollingInterval time.Duration
	batchSize       int
	tracer          trace.Tracer
	now             func() time.Time

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

// Option 配置选项
type Option func(*MessageRelay)

// WithPollingInterval 轮询间隔，非正数时忽略
func WithPollingInterval(d time.Duration) Option {
	return func(r *MessageRelay) {
		if d > 0 {
			r.pollingInterval = d
		}
	}
}

// WithBatchSize 每批处理的消息数，非正数时忽略
func WithBatchSize(n int) Option {
	return func(r *MessageRelay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// NewMessageRelay 创建中继
func NewMessageRelay(db *gorm.DB, publisher Publisher, opts ...Option) *MessageRelay {
	r := &MessageRelay{
		db:              db,
		publisher:       publisher,
		logger:          logger.WithComponent("outbox-relay"),
		pollingInterval: defaultPollingInterval,
		batchSize:       defaultBatchSize,
		tracer:          otel.Tracer("interview-coach/outbox"),
		now:             time.Now,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start 在后台开始轮询
func (r *MessageRelay) Start() {
	r.logger.Info().Dur("interval", r.pollingInterval).Int("batch_size", r.batchSize).Msg("MessageRelay starting")
	ticker := time.NewTicker(r.pollingInterval)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-r.done:
				r.logger.Info().Msg("MessageRelay stopped")
				return
			case <-ticker.C:
				if err := r.processPendingMessages(context.Background()); err != nil {
					r.logger.Error().Err(err).Msg("处理待发送消息失败")
				}
			}
		}
	}()
}

// Stop 停止轮询并等待当前批次结束
func (r *MessageRelay) Stop() {
	r.stopOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}

// processPendingMessages 在一个事务内锁定一批消息、发布并更新状态
func (r *MessageRelay) processPendingMessages(ctx context.Context) error {
	var messages []models.OutboxMessage

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	defer tx.Rollback()

	// SKIP LOCKED 让多个实例可以并行中继而不重复领取
	err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", constants.OutboxStatusPending).
		Order("created_at asc").
		Limit(r.batchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		return tx.Commit().Error
	}

	ctx, span := r.tracer.Start(ctx, "outbox.ProcessBatch",
		trace.WithAttributes(attribute.Int("messaging.batch.message_count", len(messages))),
	)
	defer span.End()

	sent := r.publishBatch(ctx, messages)
	for i := range messages {
		if err := tx.Save(&messages[i]).Error; err != nil {
			tracing.RecordError(span, err, tracing.ErrorTypeDB)
			// 整批回滚，下一轮重新领取
			return err
		}
	}
	span.SetAttributes(attribute.Int("messaging.batch.sent_count", sent))
	return tx.Commit().Error
}

// publishBatch 逐条发布并就地更新状态，返回发送成功的数量
func (r *MessageRelay) publishBatch(ctx context.Context, messages []models.OutboxMessage) int {
	sent := 0
	for i := range messages {
		msg := &messages[i]
		err := r.publisher.PublishMessage(ctx, msg.TargetExchange, msg.TargetRoutingKey, []byte(msg.Payload))
		if err != nil {
			msg.RetryCount++
			msg.ErrorMessage = err.Error()
			if msg.RetryCount >= maxRetryCount {
				msg.Status = constants.OutboxStatusFailed
			}
			tracing.RecordError(trace.SpanFromContext(ctx), err, tracing.ErrorTypeRabbitMQ,
				attribute.Int64("outbox.message_id", int64(msg.ID)))
			r.logger.Warn().Err(err).
				Uint64("id", msg.ID).
				Str("aggregate_id", msg.AggregateID).
				Int("retries", msg.RetryCount).
				Str("status", msg.Status).
				Msg("发布outbox消息失败")
			continue
		}
		now := r.now()
		msg.Status = constants.OutboxStatusSent
		msg.ProcessedAt = &now
		msg.ErrorMessage = ""
		sent++
	}
	return sent
}
