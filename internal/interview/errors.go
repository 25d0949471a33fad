package interview

import (
	"errors"
	"fmt"
)

// 定义基础错误类型
var (
	ErrNotFound            = errors.New("面试会话或简历不存在")
	ErrAlreadyCompleted    = errors.New("面试会话已结束")
	ErrInvalidInput        = errors.New("请求参数不合法")
	ErrExtraction          = errors.New("简历文本提取失败")
	ErrCollaborator        = errors.New("外部服务调用失败")
	ErrCollaboratorTimeout = errors.New("外部服务调用超时")
	ErrSessionBusy         = errors.New("会话正在处理另一轮对话")

	// ErrVersionConflict 由 SessionStore.SaveSession 返回，表示记录已被其他请求修改
	ErrVersionConflict = errors.New("会话版本冲突")
)

// Error 面试流程中的错误，Error() 不包含底层原因，避免把存储或文档位置泄露给调用方
type Error struct {
	Op        string
	SessionID string
	BaseErr   error
	Detail    string
	cause     error
}

func (e *Error) Error() string {
	switch {
	case e.SessionID != "" && e.Detail != "":
		return fmt.Sprintf("%s (操作:%s, 会话:%s): %s", e.BaseErr, e.Op, e.SessionID, e.Detail)
	case e.SessionID != "":
		return fmt.Sprintf("%s (操作:%s, 会话:%s)", e.BaseErr, e.Op, e.SessionID)
	case e.Detail != "":
		return fmt.Sprintf("%s (操作:%s): %s", e.BaseErr, e.Op, e.Detail)
	default:
		return fmt.Sprintf("%s (操作:%s)", e.BaseErr, e.Op)
	}
}

func (e *Error) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口以支持错误比较
func (e *Error) Is(target error) bool {
	return errors.Is(e.BaseErr, target)
}

// Cause 返回底层原因，仅用于日志与追踪
func (e *Error) Cause() error {
	return e.cause
}

func newError(op, sessionID string, base error, cause error) error {
	return &Error{Op: op, SessionID: sessionID, BaseErr: base, cause: cause}
}

// collaboratorError 根据底层错误区分超时与普通失败
func collaboratorError(op, sessionID string, base error, cause error) error {
	if isTimeout(cause) {
		return &Error{Op: op, SessionID: sessionID, BaseErr: ErrCollaboratorTimeout, cause: cause}
	}
	return &Error{Op: op, SessionID: sessionID, BaseErr: base, cause: cause}
}

// PublicKind 返回给调用方的错误码
func PublicKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrVersionConflict):
		return "session_busy"
	case errors.Is(err, ErrCollaboratorTimeout):
		return "collaborator_timeout"
	case errors.Is(err, ErrExtraction):
		return "extraction_error"
	case errors.Is(err, ErrCollaborator):
		return "collaborator_error"
	default:
		return "internal_error"
	}
}

// CauseOf 取出用于日志的底层原因
func CauseOf(err error) error {
	var ie *Error
	if errors.As(err, &ie) && ie.cause != nil {
		return ie.cause
	}
	return err
}
