package interview

import (
	"context"
	"time"
)

// SessionStore 会话持久化
type SessionStore interface {
	// CreateSession 写入新会话
	CreateSession(ctx context.Context, session *Session) error

	// LoadSession 按 id 与 owner 读取，不存在或不属于该 owner 时返回 ErrNotFound
	LoadSession(ctx context.Context, sessionID, ownerID string) (*Session, error)

	// SaveSession 按 session.Version 做乐观锁更新，成功后 Version 加一；
	// 版本不一致返回 ErrVersionConflict
	SaveSession(ctx context.Context, session *Session) error

	// ListSessionsByOwner 按 createdAt 倒序返回
	ListSessionsByOwner(ctx context.Context, ownerID string) ([]*Session, error)
}

// ResumeStore 简历只读访问
type ResumeStore interface {
	// LoadResumeByID 不存在时返回 ErrNotFound
	LoadResumeByID(ctx context.Context, resumeID string) (*Resume, error)

	// LoadLatestResumeForOwner 按 uploadedAt 倒序取第一份，没有时返回 ErrNotFound
	LoadLatestResumeForOwner(ctx context.Context, ownerID string) (*Resume, error)
}

// TextCache 简历文本缓存，仅作加速用
type TextCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, text string, ttl time.Duration) error
}

// TextExtractor 从文档位置提取纯文本
type TextExtractor interface {
	ExtractText(ctx context.Context, documentLocation string) (string, error)
}

// TurnGenerator 生成面试官的下一轮回复
type TurnGenerator interface {
	GenerateTurn(ctx context.Context, req TurnRequest) (*TurnResult, error)
}

// SessionLocker 按会话串行化对话轮次
type SessionLocker interface {
	// Lock 获取锁，等待超时返回 ErrSessionBusy
	Lock(ctx context.Context, sessionID string) (unlock func(), err error)
}

// Recorder 指标上报
type Recorder interface {
	SessionStarted(kind Kind, hasResume bool)
	TurnCompleted(kind Kind, duration time.Duration)
	SessionCompleted(kind Kind, userTurns int)
	ResumeTextResolved(source string)
	CollaboratorFailed(op string, kind string)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted(Kind, bool) {}
func (nopRecorder) TurnCompleted(Kind, time.Duration) {}
func (nopRecorder) SessionCompleted(Kind, int) {}
func (nopRecorder) ResumeTextResolved(string) {}
func (nopRecorder) CollaboratorFailed(string, string) {}
