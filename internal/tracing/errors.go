package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType span 上 error.type 属性的取值
type ErrorType string

const (
	ErrorTypeHTTP       ErrorType = "http"
	ErrorTypeDB         ErrorType = "db"
	ErrorTypeRedis      ErrorType = "redis"
	ErrorTypeRabbitMQ   ErrorType = "rabbitmq"
	ErrorTypeLLM        ErrorType = "llm"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeExternal   ErrorType = "external_system"
	ErrorTypeInternal   ErrorType = "internal"
)

// ErrorTypeForKind 面试接口对外错误码到 span 错误类型
func ErrorTypeForKind(kind string) ErrorType {
	switch kind {
	case "not_found", "already_completed", "invalid_input":
		return ErrorTypeValidation
	case "session_busy":
		return ErrorTypeConflict
	case "collaborator_timeout":
		return ErrorTypeTimeout
	case "extraction_error", "collaborator_error":
		return ErrorTypeExternal
	default:
		return ErrorTypeInternal
	}
}

// RecordError 记录错误事件并把 span 状态置为 Error，可附带额外属性
func RecordError(span trace.Span, err error, errorType ErrorType, attrs ...attribute.KeyValue) {
	if span == nil || err == nil || !span.IsRecording() {
		return
	}
	msg := TruncateString(err.Error(), DefaultMaxLength)
	span.RecordError(err)
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", msg),
	)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	span.SetStatus(codes.Error, msg)
}

// RecordHTTPError 额外记录状态码和 client_error / server_error 分类
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	category := "unknown"
	switch {
	case statusCode >= 500:
		category = "server_error"
	case statusCode >= 400:
		category = "client_error"
	}
	RecordError(span, err, ErrorTypeHTTP,
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", category),
	)
}
