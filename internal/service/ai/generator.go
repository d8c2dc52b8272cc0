package ai

import (
	"context"
	"fmt"

	"github.com/zhouzirui/swipesafe/backend/internal/config"
	"github.com/zhouzirui/swipesafe/backend/internal/model/scenario"
)

// 对话历史中的角色名，与人设服务 conversation_history 一致。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior turn handed to a generator.
type Message struct {
	Role    string
	Content string
}

// Request carries the scenario and conversation needed to produce the caller's next line.
type Request struct {
	Scenario  scenario.Scenario
	History   []Message
	Utterance string
}

// Generator produces persona replies with a large language model.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// NewGenerator 按配置构造回复生成器；未配置密钥时返回 nil, nil，调用方应退回脚本台词。
func NewGenerator(ctx context.Context, cfg config.AIConfig) (Generator, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiGenerator(ctx, cfg)
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(cfg), nil
	case config.ProviderArk:
		return NewArkGenerator(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider %q", cfg.Provider)
	}
}
