package agent

import (
	"fmt"

	"interview-coach/internal/config"

	"github.com/cloudwego/eino/components/model"
)

// NewChatModel 按配置创建面试官使用的模型，并套上限流
func NewChatModel(cfg *config.LLMConfig) (model.BaseChatModel, error) {
	var chatModel model.BaseChatModel
	switch cfg.Provider {
	case "openai":
		m, err := NewOpenAIChatModel(OpenAIConfig{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			JSONMode:    true,
		})
		if err != nil {
			return nil, err
		}
		chatModel = m
	case "mock":
		chatModel = MockChatModel{}
	default:
		return nil, fmt.Errorf("不支持的模型提供方: %s", cfg.Provider)
	}
	return WithRateLimit(chatModel, cfg.QPM, cfg.Burst), nil
}
