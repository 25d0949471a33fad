package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"interview-coach/internal/interview"
	"interview-coach/internal/logger"
	"interview-coach/internal/tracing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var interviewerTracer = otel.Tracer("interview-coach/agent")

// defaultClosingText 模型只给出反馈没有结束语时使用
const defaultClosingText = "感谢参加本次模拟面试，以下是本次面试的反馈。"

// LLMInterviewer 基于 eino ChatModel 的面试官，实现 interview.TurnGenerator
type LLMInterviewer struct {
	chatModel      model.BaseChatModel
	maxResumeRunes int
	logger         zerolog.Logger
}

var _ interview.TurnGenerator = (*LLMInterviewer)(nil)

// InterviewerOption 配置选项
type InterviewerOption func(*LLMInterviewer)

// WithMaxResumeRunes 系统提示中简历文本的最大字符数
func WithMaxResumeRunes(n int) InterviewerOption {
	return func(i *LLMInterviewer) {
		i.maxResumeRunes = n
	}
}

// WithInterviewerLogger 自定义日志
func WithInterviewerLogger(l zerolog.Logger) InterviewerOption {
	return func(i *LLMInterviewer) {
		i.logger = l
	}
}

// NewLLMInterviewer 创建面试官
func NewLLMInterviewer(chatModel model.BaseChatModel, opts ...InterviewerOption) (*LLMInterviewer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chatModel 不能为空")
	}
	i := &LLMInterviewer{
		chatModel:      chatModel,
		maxResumeRunes: 12000,
		logger:         logger.WithComponent("interviewer"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// GenerateTurn 把完整对话历史交给模型，解析出回复与可选反馈
func (i *LLMInterviewer) GenerateTurn(ctx context.Context, req interview.TurnRequest) (*interview.TurnResult, error) {
	messages := make([]*schema.Message, 0, len(req.Messages)+1)
	messages = append(messages, schema.SystemMessage(buildSystemPrompt(req.Kind, req.ResumeText, req.ShouldEnd, i.maxResumeRunes)))
	for _, m := range req.Messages {
		switch m.Role {
		case interview.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		case interview.RoleUser:
			messages = append(messages, schema.UserMessage(m.Content))
		}
	}

	ctx, span := interviewerTracer.Start(ctx, "Interviewer.GenerateTurn", trace.WithAttributes(
		attribute.String("interview.kind", string(req.Kind)),
		attribute.Int("llm.input_messages", len(messages)),
		attribute.Bool("interview.should_end", req.ShouldEnd),
	))
	defer span.End()
	if n := len(req.Messages); n > 0 {
		span.SetAttributes(attribute.String("interview.last_message", tracing.SafeMessageContent(req.Messages[n-1].Content)))
	}

	start := time.Now()
	resp, err := i.chatModel.Generate(ctx, messages)
	if err != nil {
		err = fmt.Errorf("调用面试官模型失败: %w", err)
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}
	if resp == nil {
		err = fmt.Errorf("面试官模型返回空消息")
		tracing.RecordError(span, err, tracing.ErrorTypeLLM)
		return nil, err
	}

	evt := i.logger.Debug().
		Str("kind", string(req.Kind)).
		Int("history", len(req.Messages)).
		Bool("should_end", req.ShouldEnd).
		Dur("latency", time.Since(start))
	if resp.ResponseMeta != nil && resp.ResponseMeta.Usage != nil {
		evt = evt.Int("total_tokens", resp.ResponseMeta.Usage.TotalTokens)
		span.SetAttributes(attribute.Int("llm.total_tokens", resp.ResponseMeta.Usage.TotalTokens))
	}
	evt.Msg("面试官模型调用完成")

	result := parseTurnOutput(resp.Content)
	if result.Feedback != nil && strings.TrimSpace(result.ResponseText) == "" {
		result.ResponseText = defaultClosingText
	}
	span.SetAttributes(attribute.Bool("interview.has_feedback", result.Feedback != nil))
	return result, nil
}

// turnOutput 模型输出的 JSON 结构
type turnOutput struct {
	Response string          `json:"response"`
	Feedback *feedbackOutput `json:"feedback"`
}

type feedbackOutput struct {
	Rating      flexibleInt `json:"rating"`
	Strengths   []string    `json:"strengths"`
	Suggestions []string    `json:"suggestions"`
	Summary     string      `json:"summary"`
}

// flexibleInt 兼容模型把数字写成字符串或小数
type flexibleInt int

func (f *flexibleInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("无法解析评分 %q: %w", s, err)
	}
	*f = flexibleInt(int(v + 0.5))
	return nil
}

// parseTurnOutput 优先按 JSON 解析，失败时整段文本作为回复且不带反馈
func parseTurnOutput(content string) *interview.TurnResult {
	content = strings.TrimSpace(content)
	jsonStr := extractJSONObject(stripCodeFence(content))
	if jsonStr == "" {
		return &interview.TurnResult{ResponseText: content}
	}

	var out turnOutput
	if err := json.Unmarshal([]byte(jsonStr), &out); err != nil {
		if err := json.Unmarshal([]byte(sanitizeJSON(jsonStr)), &out); err != nil {
			return &interview.TurnResult{ResponseText: content}
		}
	}
	if out.Response == "" && out.Feedback == nil {
		return &interview.TurnResult{ResponseText: content}
	}

	result := &interview.TurnResult{ResponseText: strings.TrimSpace(out.Response)}
	if out.Feedback != nil {
		result.Feedback = &interview.Feedback{
			Rating:      int(out.Feedback.Rating),
			Strengths:   out.Feedback.Strengths,
			Suggestions: out.Feedback.Suggestions,
			Summary:     out.Feedback.Summary,
		}
	}
	return result
}
