package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"interview-coach/internal/constants"
	"interview-coach/internal/interview"
	"interview-coach/internal/storage/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CompletionEventTarget 会话完成事件投递的目标
type CompletionEventTarget struct {
	Exchange   string
	RoutingKey string
}

// InterviewRepository 基于 MySQL 的会话与简历存储
type InterviewRepository struct {
	db     *gorm.DB
	target CompletionEventTarget
}

var (
	_ interview.SessionStore = (*InterviewRepository)(nil)
	_ interview.ResumeStore  = (*InterviewRepository)(nil)
)

// NewInterviewRepository target.Exchange 为空时不写入完成事件
func NewInterviewRepository(db *gorm.DB, target CompletionEventTarget) *InterviewRepository {
	return &InterviewRepository{db: db, target: target}
}

// CompletedEvent 会话完成事件的消息体
type CompletedEvent struct {
	SessionID   string              `json:"session_id"`
	OwnerID     string              `json:"owner_id"`
	Kind        string              `json:"kind"`
	UserTurns   int                 `json:"user_turns"`
	Feedback    *interview.Feedback `json:"feedback,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt time.Time           `json:"completed_at"`
}

// CreateSession 写入新会话
func (r *InterviewRepository) CreateSession(ctx context.Context, session *interview.Session) error {
	row, err := sessionToModel(session)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("写入会话失败: %w", err)
	}
	return nil
}

// LoadSession 会话不存在或不属于该用户时返回 interview.ErrNotFound
func (r *InterviewRepository) LoadSession(ctx context.Context, sessionID, ownerID string) (*interview.Session, error) {
	var row models.InterviewSession
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND owner_id = ?", sessionID, ownerID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, interview.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话失败: %w", err)
	}
	return sessionFromModel(&row)
}

// SaveSession 按版本号条件更新；会话结束时在同一事务中写入 outbox 事件
func (r *InterviewRepository) SaveSession(ctx context.Context, session *interview.Session) error {
	row, err := sessionToModel(session)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.InterviewSession{}).
			Where("session_id = ? AND version = ?", session.ID, session.Version).
			Updates(map[string]interface{}{
				"messages":  row.Messages,
				"status":    row.Status,
				"feedback":  row.Feedback,
				"closed_at": row.ClosedAt,
				"version":   gorm.Expr("version + 1"),
			})
		if res.Error != nil {
			return fmt.Errorf("更新会话失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.InterviewSession{}).Where("session_id = ?", session.ID).Count(&count).Error; err != nil {
				return fmt.Errorf("检查会话是否存在失败: %w", err)
			}
			if count == 0 {
				return interview.ErrNotFound
			}
			return interview.ErrVersionConflict
		}

		if session.IsCompleted() && r.target.Exchange != "" {
			msg, err := completedOutboxMessage(session, r.target)
			if err != nil {
				return err
			}
			if err := tx.Create(msg).Error; err != nil {
				return fmt.Errorf("写入outbox消息失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	session.Version++
	return nil
}

// ListSessionsByOwner 按创建时间倒序
func (r *InterviewRepository) ListSessionsByOwner(ctx context.Context, ownerID string) ([]*interview.Session, error) {
	var rows []models.InterviewSession
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("查询会话列表失败: %w", err)
	}

	sessions := make([]*interview.Session, 0, len(rows))
	for i := range rows {
		s, err := sessionFromModel(&rows[i])
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// LoadResumeByID 读取简历记录
func (r *InterviewRepository) LoadResumeByID(ctx context.Context, resumeID string) (*interview.Resume, error) {
	var row models.Resume
	err := r.db.WithContext(ctx).Where("resume_id = ?", resumeID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, interview.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取简历失败: %w", err)
	}
	return resumeFromModel(&row), nil
}

// LoadLatestResumeForOwner 取最近上传的一份
func (r *InterviewRepository) LoadLatestResumeForOwner(ctx context.Context, ownerID string) (*interview.Resume, error) {
	var row models.Resume
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("uploaded_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, interview.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取最近简历失败: %w", err)
	}
	return resumeFromModel(&row), nil
}

func sessionToModel(s *interview.Session) (*models.InterviewSession, error) {
	messages, err := json.Marshal(s.Messages)
	if err != nil {
		return nil, fmt.Errorf("序列化会话消息失败: %w", err)
	}
	row := &models.InterviewSession{
		SessionID: s.ID,
		OwnerID:   s.OwnerID,
		Kind:      string(s.Kind),
		ResumeRef: s.ResumeRef,
		Messages:  datatypes.JSON(messages),
		Status:    string(s.Status),
		Version:   s.Version,
		ClosedAt:  s.ClosedAt,
		CreatedAt: s.CreatedAt,
	}
	if s.Feedback != nil {
		fb, err := json.Marshal(s.Feedback)
		if err != nil {
			return nil, fmt.Errorf("序列化反馈失败: %w", err)
		}
		row.Feedback = datatypes.JSON(fb)
	}
	return row, nil
}

func sessionFromModel(row *models.InterviewSession) (*interview.Session, error) {
	s := &interview.Session{
		ID:        row.SessionID,
		OwnerID:   row.OwnerID,
		Kind:      interview.Kind(row.Kind),
		ResumeRef: row.ResumeRef,
		Status:    interview.Status(row.Status),
		Version:   row.Version,
		ClosedAt:  row.ClosedAt,
		CreatedAt: row.CreatedAt,
	}
	if err := json.Unmarshal(row.Messages, &s.Messages); err != nil {
		return nil, fmt.Errorf("解析会话 %s 的消息失败: %w", row.SessionID, err)
	}
	if len(row.Feedback) > 0 && string(row.Feedback) != "null" {
		var fb interview.Feedback
		if err := json.Unmarshal(row.Feedback, &fb); err != nil {
			return nil, fmt.Errorf("解析会话 %s 的反馈失败: %w", row.SessionID, err)
		}
		s.Feedback = &fb
	}
	return s, nil
}

func resumeFromModel(row *models.Resume) *interview.Resume {
	return &interview.Resume{
		ID:               row.ResumeID,
		OwnerID:          row.OwnerID,
		DocumentLocation: row.DocumentLocation,
		UploadedAt:       row.UploadedAt,
	}
}

func completedOutboxMessage(s *interview.Session, target CompletionEventTarget) (*models.OutboxMessage, error) {
	event := CompletedEvent{
		SessionID: s.ID,
		OwnerID:   s.OwnerID,
		Kind:      string(s.Kind),
		UserTurns: s.UserTurnCount(),
		Feedback:  s.Feedback,
		CreatedAt: s.CreatedAt,
	}
	if s.ClosedAt != nil {
		event.CompletedAt = *s.ClosedAt
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("序列化完成事件失败: %w", err)
	}
	return &models.OutboxMessage{
		AggregateID:      s.ID,
		AggregateType:    constants.AggregateInterview,
		EventType:        constants.EventInterviewCompleted,
		Payload:          string(payload),
		TargetExchange:   target.Exchange,
		TargetRoutingKey: target.RoutingKey,
		Status:           constants.OutboxStatusPending,
	}, nil
}
