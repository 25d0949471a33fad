package handler

import (
	"context"
	"errors"
	"fmt"

	"interview-coach/internal/constants"
	"interview-coach/internal/interview"
	"interview-coach/internal/logger"
	"interview-coach/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"
)

// InterviewService 处理器依赖的会话编排能力
type InterviewService interface {
	StartSession(ctx context.Context, ownerID string, kind interview.Kind, resumeRef string) (*interview.Session, error)
	ContinueSession(ctx context.Context, sessionID, ownerID, userMessageText string) (*interview.ContinueResult, error)
	GetSession(ctx context.Context, sessionID, ownerID string) (*interview.Session, error)
	ListSessionsForOwner(ctx context.Context, ownerID string) ([]*interview.SessionSummary, error)
}

// InterviewHandler 模拟面试接口
type InterviewHandler struct {
	service InterviewService
}

// NewInterviewHandler 创建处理器
func NewInterviewHandler(service InterviewService) *InterviewHandler {
	return &InterviewHandler{service: service}
}

// StartSessionRequest 创建会话请求
type StartSessionRequest struct {
	Kind     string `json:"kind"`
	ResumeID string `json:"resume_id"`
}

// ContinueSessionRequest 提交回答请求
type ContinueSessionRequest struct {
	Message string `json:"message"`
}

// ErrorResponse 统一错误响应
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleStartSession POST /api/v1/interviews
func (h *InterviewHandler) HandleStartSession(ctx context.Context, c *app.RequestContext) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		writeUnauthorized(c)
		return
	}
	var req StartSessionRequest
	if err := c.BindJSON(&req); err != nil {
		writeBadRequest(c, "请求体不是合法的JSON")
		return
	}

	session, err := h.service.StartSession(ctx, ownerID, interview.Kind(req.Kind), req.ResumeID)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusCreated, session)
}

// HandleContinueSession POST /api/v1/interviews/:id/messages
func (h *InterviewHandler) HandleContinueSession(ctx context.Context, c *app.RequestContext) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		writeUnauthorized(c)
		return
	}
	var req ContinueSessionRequest
	if err := c.BindJSON(&req); err != nil {
		writeBadRequest(c, "请求体不是合法的JSON")
		return
	}

	result, err := h.service.ContinueSession(ctx, c.Param("id"), ownerID, req.Message)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, result)
}

// HandleGetSession GET /api/v1/interviews/:id
func (h *InterviewHandler) HandleGetSession(ctx context.Context, c *app.RequestContext) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		writeUnauthorized(c)
		return
	}
	session, err := h.service.GetSession(ctx, c.Param("id"), ownerID)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	c.JSON(consts.StatusOK, session)
}

// HandleListSessions GET /api/v1/interviews
func (h *InterviewHandler) HandleListSessions(ctx context.Context, c *app.RequestContext) {
	ownerID, ok := ownerFrom(c)
	if !ok {
		writeUnauthorized(c)
		return
	}
	sessions, err := h.service.ListSessionsForOwner(ctx, ownerID)
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	if sessions == nil {
		sessions = []*interview.SessionSummary{}
	}
	c.JSON(consts.StatusOK, utils.H{"sessions": sessions})
}

func ownerFrom(c *app.RequestContext) (string, bool) {
	v, exists := c.Get(constants.OwnerIDContextKey)
	if !exists {
		return "", false
	}
	owner, ok := v.(string)
	return owner, ok && owner != ""
}

func writeUnauthorized(c *app.RequestContext) {
	c.JSON(consts.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "缺少或无效的访问令牌"})
}

func writeBadRequest(c *app.RequestContext, msg string) {
	c.JSON(consts.StatusBadRequest, ErrorResponse{Error: "invalid_input", Message: msg})
}

// statusFor 错误码到 HTTP 状态码
func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return consts.StatusNotFound
	case "invalid_input":
		return consts.StatusBadRequest
	case "already_completed", "session_busy":
		return consts.StatusConflict
	case "extraction_error", "collaborator_error":
		return consts.StatusBadGateway
	case "collaborator_timeout":
		return consts.StatusGatewayTimeout
	default:
		return consts.StatusInternalServerError
	}
}

// publicMessage 只暴露固定文案，底层原因只进日志
func publicMessage(kind string, err error) string {
	switch kind {
	case "not_found":
		return interview.ErrNotFound.Error()
	case "already_completed":
		return interview.ErrAlreadyCompleted.Error()
	case "session_busy":
		return interview.ErrSessionBusy.Error()
	case "extraction_error":
		return interview.ErrExtraction.Error()
	case "collaborator_error":
		return interview.ErrCollaborator.Error()
	case "collaborator_timeout":
		return interview.ErrCollaboratorTimeout.Error()
	case "invalid_input":
		var ie *interview.Error
		if errors.As(err, &ie) && ie.Detail != "" {
			return fmt.Sprintf("%s: %s", interview.ErrInvalidInput, ie.Detail)
		}
		return interview.ErrInvalidInput.Error()
	default:
		return "服务内部错误"
	}
}

func (h *InterviewHandler) writeError(ctx context.Context, c *app.RequestContext, err error) {
	kind := interview.PublicKind(err)
	status := statusFor(kind)

	if status >= consts.StatusInternalServerError {
		logger.Ctx(ctx).Error().
			Err(err).
			AnErr("cause", interview.CauseOf(err)).
			Str("path", string(c.Path())).
			Int("status", status).
			Msg("面试接口请求失败")
		tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)
	} else {
		logger.Ctx(ctx).Debug().Err(err).Str("path", string(c.Path())).Int("status", status).Msg("面试接口请求被拒绝")
	}
	c.JSON(status, ErrorResponse{Error: kind, Message: publicMessage(kind, err)})
}
