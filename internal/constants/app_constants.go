package constants

import "time"

const (
	// ServiceName 服务名，写入追踪资源属性
	ServiceName = "interview-coach"
	// MetricsNamespace Prometheus 指标前缀，不能含连字符
	MetricsNamespace = "interview_coach"

	// ResumeTextCacheTTL 简历文本缓存的固定有效期
	ResumeTextCacheTTL = 48 * time.Hour

	// OwnerIDContextKey 认证中间件写入 RequestContext 的用户标识
	OwnerIDContextKey = "owner_id"

	// 会话完成事件
	EventInterviewCompleted = "interview.completed"
	AggregateInterview      = "interview_session"

	// Outbox 消息状态
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)
