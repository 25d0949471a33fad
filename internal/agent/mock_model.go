package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var mockQuestions = []string{
	"请先简单介绍一下你最近负责的项目，以及你在其中承担的角色。",
	"这个项目里遇到的最棘手的问题是什么？你是怎么定位和解决的？",
	"如果流量增长十倍，你会优先改造哪一部分？为什么？",
	"说一次你和同事意见不一致的经历，最后是怎么达成一致的？",
	"你如何保证自己交付的代码质量？",
	"回头看这个项目，有哪些地方你会用不同的方式去做？",
	"未来一两年你希望在哪些方向继续成长？",
}

// MockChatModel 本地调试用的离线模型，按用户轮次轮换固定问题，
// 系统提示要求结束时输出固定反馈
type MockChatModel struct{}

var _ model.BaseChatModel = MockChatModel{}

// Generate 生成 JSON 格式的回复
func (MockChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	userTurns := 0
	final := false
	for _, m := range input {
		switch m.Role {
		case schema.User:
			userTurns++
		case schema.System:
			final = final || strings.Contains(m.Content, finalTurnMarker)
		}
	}

	out := turnOutput{}
	if final {
		out.Response = "今天的模拟面试到这里结束，感谢你的参与。"
		out.Feedback = &feedbackOutput{
			Rating:      7,
			Strengths:   []string{"回答结构清晰", "能结合具体项目说明"},
			Suggestions: []string{"多用数据量化成果", "回答前先给出结论"},
			Summary:     "整体表现稳定，细节还可以更具体。",
		}
	} else {
		out.Response = mockQuestions[userTurns%len(mockQuestions)]
	}

	body, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(string(body), nil), nil
}

// Stream 单元素流
func (m MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}
