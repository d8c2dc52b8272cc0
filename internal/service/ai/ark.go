package ai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/swipesafe/backend/internal/config"
)

// ArkGenerator runs an eino chain (prompt template → Ark chat model).
type ArkGenerator struct {
	chain        compose.Runnable[map[string]any, *schema.Message]
	historyLimit int
}

// NewArkGenerator compiles the reply chain against the configured Ark model.
func NewArkGenerator(ctx context.Context, cfg config.AIConfig) (*ArkGenerator, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile reply chain: %w", err)
	}

	return &ArkGenerator{chain: runnable, historyLimit: cfg.HistoryLimit}, nil
}

func (g *ArkGenerator) Name() string { return config.ProviderArk }

func (g *ArkGenerator) Generate(ctx context.Context, req Request) (string, error) {
	input := map[string]any{
		"system":  BuildSystemPrompt(req.Scenario),
		"history": toSchemaMessages(TrimHistory(req.History, req.Utterance, g.historyLimit)),
		"query":   req.Utterance,
	}

	response, err := g.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run reply chain: %w", err)
	}

	slog.Debug("[ai] ark reply generated", "scenario", req.Scenario.ID, "length", len(response.Content))
	return strings.TrimSpace(response.Content), nil
}

func toSchemaMessages(history []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case RoleUser:
			out = append(out, schema.UserMessage(msg.Content))
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}
