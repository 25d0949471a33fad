package outbox

import (
	"context"
	"fmt"

	"interview-coach/internal/constants"
	"interview-coach/internal/storage/models"

	"gorm.io/gorm"
)

// FailedMessage 投递失败的消息摘要
type FailedMessage struct {
	ID           uint64
	AggregateID  string
	EventType    string
	RetryCount   int
	ErrorMessage string
}

// ListFailed 按 id 升序列出投递失败的消息，limit <= 0 表示不限
func ListFailed(ctx context.Context, db *gorm.DB, limit int) ([]FailedMessage, error) {
	var rows []models.OutboxMessage
	q := db.WithContext(ctx).
		Where("status = ?", constants.OutboxStatusFailed).
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("查询失败消息出错: %w", err)
	}

	out := make([]FailedMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, FailedMessage{
			ID:           row.ID,
			AggregateID:  row.AggregateID,
			EventType:    row.EventType,
			RetryCount:   row.RetryCount,
			ErrorMessage: row.ErrorMessage,
		})
	}
	return out, nil
}

// RequeueFailed 把给定的失败消息重置为待投递，返回实际更新的行数
func RequeueFailed(ctx context.Context, db *gorm.DB, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Model(&models.OutboxMessage{}).
		Where("id IN ? AND status = ?", ids, constants.OutboxStatusFailed).
		Updates(map[string]interface{}{
			"status":        constants.OutboxStatusPending,
			"retry_count":   0,
			"error_message": "",
		})
	if res.Error != nil {
		return 0, fmt.Errorf("重置失败消息出错: %w", res.Error)
	}
	return res.RowsAffected, nil
}
