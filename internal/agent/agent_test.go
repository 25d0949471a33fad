package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"interview-coach/internal/config"
	"interview-coach/internal/interview"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingChatModel 记录输入并返回预设内容
type recordingChatModel struct {
	content string
	err     error
	inputs  [][]*schema.Message
}

func (r *recordingChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	r.inputs = append(r.inputs, input)
	if r.err != nil {
		return nil, r.err
	}
	return schema.AssistantMessage(r.content, nil), nil
}

func (r *recordingChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := r.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func history() []interview.Message {
	now := time.Now()
	return []interview.Message{
		{Role: interview.RoleAssistant, Content: "请介绍一下自己", OccurredAt: now},
		{Role: interview.RoleUser, Content: "我是后端工程师", OccurredAt: now},
	}
}

func TestLLMInterviewer_GenerateTurn(t *testing.T) {
	t.Run("组装消息并解析回复", func(t *testing.T) {
		chat := &recordingChatModel{content: `{"response": "讲讲你做过的缓存设计？", "feedback": null}`}
		iv, err := NewLLMInterviewer(chat)
		require.NoError(t, err)

		res, err := iv.GenerateTurn(context.Background(), interview.TurnRequest{
			Kind:       interview.KindTechnical,
			Messages:   history(),
			ResumeText: "五年 Go 经验，负责订单系统",
		})
		require.NoError(t, err)
		assert.Equal(t, "讲讲你做过的缓存设计？", res.ResponseText)
		assert.Nil(t, res.Feedback)

		require.Len(t, chat.inputs, 1)
		input := chat.inputs[0]
		require.Len(t, input, 3)
		assert.Equal(t, schema.System, input[0].Role)
		assert.Contains(t, input[0].Content, "五年 Go 经验")
		assert.NotContains(t, input[0].Content, finalTurnMarker)
		assert.Equal(t, schema.Assistant, input[1].Role)
		assert.Equal(t, schema.User, input[2].Role)
		assert.Equal(t, "我是后端工程师", input[2].Content)
	})

	t.Run("最后一轮带反馈", func(t *testing.T) {
		chat := &recordingChatModel{content: "```json\n" + `{"response":"谢谢","feedback":{"rating":"8","strengths":["清晰"],"suggestions":["量化"],"summary":"不错"}}` + "\n```"}
		iv, _ := NewLLMInterviewer(chat)

		res, err := iv.GenerateTurn(context.Background(), interview.TurnRequest{
			Kind:       interview.KindPersonal,
			Messages:   history(),
			ResumeText: interview.NoResumeText,
			ShouldEnd:  true,
		})
		require.NoError(t, err)
		assert.Equal(t, "谢谢", res.ResponseText)
		require.NotNil(t, res.Feedback)
		assert.Equal(t, 8, res.Feedback.Rating)
		assert.Equal(t, []string{"清晰"}, res.Feedback.Strengths)

		system := chat.inputs[0][0].Content
		assert.Contains(t, system, finalTurnMarker)
		assert.Contains(t, system, "没有提供简历")
	})

	t.Run("只有反馈时补全结束语", func(t *testing.T) {
		chat := &recordingChatModel{content: `{"feedback":{"rating":6,"strengths":["a"]}}`}
		iv, _ := NewLLMInterviewer(chat)
		res, err := iv.GenerateTurn(context.Background(), interview.TurnRequest{Kind: interview.KindTechnical, ShouldEnd: true})
		require.NoError(t, err)
		assert.Equal(t, defaultClosingText, res.ResponseText)
		require.NotNil(t, res.Feedback)
	})

	t.Run("非JSON输出作为纯文本回复", func(t *testing.T) {
		chat := &recordingChatModel{content: "你好，请说说你的项目经历。"}
		iv, _ := NewLLMInterviewer(chat)
		res, err := iv.GenerateTurn(context.Background(), interview.TurnRequest{Kind: interview.KindTechnical})
		require.NoError(t, err)
		assert.Equal(t, "你好，请说说你的项目经历。", res.ResponseText)
		assert.Nil(t, res.Feedback)
	})

	t.Run("模型错误", func(t *testing.T) {
		boom := errors.New("upstream 500")
		iv, _ := NewLLMInterviewer(&recordingChatModel{err: boom})
		_, err := iv.GenerateTurn(context.Background(), interview.TurnRequest{Kind: interview.KindTechnical})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("简历过长被截断", func(t *testing.T) {
		chat := &recordingChatModel{content: `{"response":"ok"}`}
		iv, _ := NewLLMInterviewer(chat, WithMaxResumeRunes(10))
		_, err := iv.GenerateTurn(context.Background(), interview.TurnRequest{
			Kind:       interview.KindTechnical,
			ResumeText: strings.Repeat("简", 50),
		})
		require.NoError(t, err)
		system := chat.inputs[0][0].Content
		assert.Contains(t, system, strings.Repeat("简", 10)+"\n...(简历内容已截断)")
		assert.NotContains(t, system, strings.Repeat("简", 11))
	})

	_, err := NewLLMInterviewer(nil)
	assert.Error(t, err)
}

func TestParseTurnOutput(t *testing.T) {
	tests := []struct {
		name         string
		content      string
		wantResponse string
		wantRating   int
		wantFeedback bool
	}{
		{"标准JSON", `{"response":"问题一"}`, "问题一", 0, false},
		{"前后有说明文字", `好的：{"response":"问题二","feedback":null} 以上`, "问题二", 0, false},
		{"字符串中包含括号", `{"response":"用 {key} 表示占位"}`, "用 {key} 表示占位", 0, false},
		{"未转义引号", `{"response":"他说"好"就行"}`, `他说"好"就行`, 0, false},
		{"小数评分", `{"response":"结束","feedback":{"rating":7.6,"strengths":["x"]}}`, "结束", 8, true},
		{"无关JSON", `{"foo":"bar"}`, `{"foo":"bar"}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := parseTurnOutput(tt.content)
			assert.Equal(t, tt.wantResponse, res.ResponseText)
			if !tt.wantFeedback {
				assert.Nil(t, res.Feedback)
				return
			}
			require.NotNil(t, res.Feedback)
			assert.Equal(t, tt.wantRating, res.Feedback.Rating)
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", stripCodeFence("  plain "))
}

func TestMockChatModel(t *testing.T) {
	iv, err := NewLLMInterviewer(MockChatModel{})
	require.NoError(t, err)

	res, err := iv.GenerateTurn(context.Background(), interview.TurnRequest{Kind: interview.KindTechnical, Messages: history()})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ResponseText)
	assert.Nil(t, res.Feedback)

	res, err = iv.GenerateTurn(context.Background(), interview.TurnRequest{Kind: interview.KindTechnical, Messages: history(), ShouldEnd: true})
	require.NoError(t, err)
	require.NotNil(t, res.Feedback)
	assert.NoError(t, res.Feedback.Validate(), "离线模型的反馈应能通过校验")
}

func TestRateLimitedChatModel(t *testing.T) {
	inner := &recordingChatModel{content: "ok"}
	assert.Same(t, inner, WithRateLimit(inner, 0, 1).(*recordingChatModel), "qpm 为 0 时不包装")

	// 每分钟一次，突发 1：第二次调用在短超时内拿不到配额
	limited := WithRateLimit(inner, 1, 1)
	_, err := limited.Generate(context.Background(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = limited.Generate(ctx, nil)
	assert.Error(t, err)
	assert.Len(t, inner.inputs, 1, "未取得配额时不调用模型")
}

func TestNewChatModel(t *testing.T) {
	m, err := NewChatModel(&config.LLMConfig{Provider: "mock"})
	require.NoError(t, err)
	_, ok := m.(MockChatModel)
	assert.True(t, ok)

	m, err = NewChatModel(&config.LLMConfig{Provider: "openai", Model: "gpt-4o-mini", QPM: 60, Burst: 2})
	require.NoError(t, err)
	_, ok = m.(*RateLimitedChatModel)
	assert.True(t, ok)

	_, err = NewChatModel(&config.LLMConfig{Provider: "openai"})
	assert.Error(t, err, "缺少模型名")

	_, err = NewChatModel(&config.LLMConfig{Provider: "claude"})
	assert.Error(t, err)
}
