package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"interview-coach/internal/api/handler"
	"interview-coach/internal/constants"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/keyauth"
)

var errUnknownAPIKey = errors.New("unknown api key")

// Pinger 健康检查依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options 路由依赖
type Options struct {
	// APIKeys 访问令牌 -> 用户标识
	APIKeys map[string]string
	// MetricsHandler 为空时不注册 /metrics
	MetricsHandler http.Handler
	// HealthChecks 名称 -> 依赖
	HealthChecks map[string]Pinger
}

// NewOwnerAuth Bearer 令牌鉴权，通过后把用户标识写入请求上下文
func NewOwnerAuth(apiKeys map[string]string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			owner, ok := apiKeys[key]
			if !ok || owner == "" {
				return false, errUnknownAPIKey
			}
			c.Set(constants.OwnerIDContextKey, owner)
			return true, nil
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			c.AbortWithStatusJSON(consts.StatusUnauthorized, handler.ErrorResponse{
				Error:   "unauthorized",
				Message: "缺少或无效的访问令牌",
			})
		}),
	)
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, interviewHandler *handler.InterviewHandler, opts Options) {
	api := h.Group("/api/v1")

	api.GET("/health", healthHandler(opts.HealthChecks))

	if opts.MetricsHandler != nil {
		h.GET("/metrics", wrapHTTPHandler(opts.MetricsHandler))
	}

	interviews := api.Group("/interviews", NewOwnerAuth(opts.APIKeys))
	interviews.POST("", interviewHandler.HandleStartSession)
	interviews.GET("", interviewHandler.HandleListSessions)
	interviews.GET("/:id", interviewHandler.HandleGetSession)
	interviews.POST("/:id/messages", interviewHandler.HandleContinueSession)
}

func healthHandler(checks map[string]Pinger) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		status := consts.StatusOK
		details := make(map[string]string, len(checks))
		for name, p := range checks {
			if err := p.Ping(pingCtx); err != nil {
				hlog.CtxWarnf(ctx, "健康检查失败 %s: %v", name, err)
				details[name] = "down"
				status = consts.StatusServiceUnavailable
				continue
			}
			details[name] = "up"
		}

		overall := "ok"
		if status != consts.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, utils.H{"status": overall, "dependencies": details})
	}
}

// wrapHTTPHandler 把 net/http 的处理器挂到 Hertz 上
func wrapHTTPHandler(h http.Handler) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		req, err := adaptor.GetCompatRequest(&c.Request)
		if err != nil {
			c.String(consts.StatusInternalServerError, err.Error())
			return
		}
		h.ServeHTTP(adaptor.GetCompatResponseWriter(&c.Response), req.WithContext(ctx))
	}
}
