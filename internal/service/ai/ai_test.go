package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/swipesafe/backend/internal/config"
	"github.com/zhouzirui/swipesafe/backend/internal/model/scenario"
)

func TestBuildSystemPromptScam(t *testing.T) {
	s := scenario.Scenario{
		ID:           "irs_scam",
		Type:         scenario.TypeScam,
		CallerName:   "Agent Michael Torres",
		Company:      "IRS",
		InfoRequests: []string{"ssn", "bank", "birthdate"},
	}

	got := BuildSystemPrompt(s)
	assert.Contains(t, got, "You are Agent Michael Torres, a scam caller from IRS.")
	assert.Contains(t, got, "personal information (ssn, bank)")
	assert.NotContains(t, got, "birthdate")
}

func TestBuildSystemPromptLegitimate(t *testing.T) {
	got := BuildSystemPrompt(scenario.Scenario{Type: scenario.TypeLegitimate, CallerName: "Jennifer Murphy", Company: "Your Bank"})
	assert.True(t, strings.HasPrefix(got, "You are Jennifer Murphy from Your Bank, a legitimate"))
	assert.Contains(t, got, "NEVER ask for passwords")
}

func TestTrimHistory(t *testing.T) {
	history := []Message{
		{Role: RoleAssistant, Content: "1"},
		{Role: RoleUser, Content: "2"},
		{Role: RoleAssistant, Content: "3"},
		{Role: RoleUser, Content: "4"},
		{Role: RoleAssistant, Content: "5"},
		{Role: RoleUser, Content: "6"},
		{Role: RoleAssistant, Content: "7"},
		{Role: RoleUser, Content: "now"},
	}

	got := TrimHistory(history, "now", 6)
	require.Len(t, got, 6)
	assert.Equal(t, "2", got[0].Content)
	assert.Equal(t, "7", got[5].Content)

	got = TrimHistory(history[:2], "something else", 6)
	assert.Len(t, got, 2)

	assert.Empty(t, TrimHistory(nil, "x", 6))
}

func TestNewGeneratorDisabledWithoutCredentials(t *testing.T) {
	gen, err := NewGenerator(context.Background(), config.AIConfig{Provider: config.ProviderOpenAI})
	require.NoError(t, err)
	assert.Nil(t, gen)
}

func TestNewGeneratorOpenAI(t *testing.T) {
	gen, err := NewGenerator(context.Background(), config.AIConfig{
		Provider:      config.ProviderOpenAI,
		OpenAIAPIKey:  "sk-test",
		OpenAIBaseURL: "http://localhost:9999/v1/",
		OpenAIModel:   "gpt-4o-mini",
		HistoryLimit:  6,
	})
	require.NoError(t, err)
	require.NotNil(t, gen)
	assert.Equal(t, config.ProviderOpenAI, gen.Name())
}
