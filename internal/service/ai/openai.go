package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/swipesafe/backend/internal/config"
)

// OpenAIGenerator calls any OpenAI-compatible chat completion endpoint.
type OpenAIGenerator struct {
	client       *openai.Client
	model        string
	historyLimit int
}

func NewOpenAIGenerator(cfg config.AIConfig) *OpenAIGenerator {
	clientCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.OpenAIBaseURL, "/")
	}
	return &OpenAIGenerator{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        cfg.OpenAIModel,
		historyLimit: cfg.HistoryLimit,
	}
}

func (g *OpenAIGenerator) Name() string { return config.ProviderOpenAI }

func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (string, error) {
	history := TrimHistory(req.History, req.Utterance, g.historyLimit)

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: BuildSystemPrompt(req.Scenario),
	})
	for _, msg := range history {
		role := openai.ChatMessageRoleUser
		if msg.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Utterance})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
