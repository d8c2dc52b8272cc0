package ai

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/zhouzirui/swipesafe/backend/internal/config"
)

// GeminiGenerator calls the Gemini API.
type GeminiGenerator struct {
	client       *genai.Client
	model        string
	historyLimit int
}

func NewGeminiGenerator(ctx context.Context, cfg config.AIConfig) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, model: cfg.GeminiModel, historyLimit: cfg.HistoryLimit}, nil
}

func (g *GeminiGenerator) Name() string { return config.ProviderGemini }

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	history := TrimHistory(req.History, req.Utterance, g.historyLimit)

	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: msg.Content}}})
	}
	contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: req.Utterance}}})

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: BuildSystemPrompt(req.Scenario)}}},
	})
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}

	var out strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			out.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(out.String()), nil
}
