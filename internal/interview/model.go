package interview

import (
	"fmt"
	"strings"
	"time"
)

// Kind 面试类型
type Kind string

const (
	KindPersonal  Kind = "personal"
	KindTechnical Kind = "technical"
)

// ParseKind 解析面试类型，大小写不敏感
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPersonal:
		return KindPersonal, nil
	case KindTechnical:
		return KindTechnical, nil
	default:
		return "", fmt.Errorf("未知的面试类型: %q", s)
	}
}

// Role 消息作者
type Role string

const (
	RoleAssistant Role = "assistant"
	RoleUser      Role = "user"
)

// Status 会话状态，只能从 active 单向迁移到 completed
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Message 对话中的一轮
type Message struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Session 一次模拟面试的完整记录
type Session struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Kind      Kind       `json:"kind"`
	ResumeRef string     `json:"resume_id,omitempty"` // 空串表示未关联简历
	Messages  []Message  `json:"messages"`
	Status    Status     `json:"status"`
	Feedback  *Feedback  `json:"feedback,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`

	// Version 乐观锁版本号，每次成功保存后加一
	Version int64 `json:"-"`
}

// IsCompleted 会话是否已结束
func (s *Session) IsCompleted() bool {
	return s.Status == StatusCompleted
}

// UserTurnCount 用户消息数量，终止策略的唯一输入
func (s *Session) UserTurnCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}

// Clone 深拷贝，避免在持久化成功之前修改调用方持有的会话
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]Message(nil), s.Messages...)
	if s.Feedback != nil {
		fb := s.Feedback.clone()
		c.Feedback = &fb
	}
	if s.ClosedAt != nil {
		t := *s.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// Resume 简历记录，由上传服务写入，本模块只读
type Resume struct {
	ID               string    `json:"id"`
	OwnerID          string    `json:"owner_id"`
	DocumentLocation string    `json:"document_location"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// SessionSummary 列表视图
type SessionSummary struct {
	*Session
	MessageCount    int  `json:"message_count"`
	DurationMinutes *int `json:"duration_minutes,omitempty"`
}

// ContinueResult 一轮对话的结果
type ContinueResult struct {
	Session    *Session `json:"session"`
	IsComplete bool     `json:"is_complete"`
}

// TurnRequest 交给生成器的输入
type TurnRequest struct {
	Kind       Kind
	Messages   []Message
	ResumeText string
	ShouldEnd  bool
}

// TurnResult 生成器的输出，Feedback 为 nil 表示 NoFeedback
type TurnResult struct {
	ResponseText string
	Feedback     *Feedback
}
