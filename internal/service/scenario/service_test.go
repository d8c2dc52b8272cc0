package scenario

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/swipesafe/backend/internal/analysis/outcome"
	"github.com/zhouzirui/swipesafe/backend/internal/model/scenario"
	"github.com/zhouzirui/swipesafe/backend/internal/service/ai"
	"github.com/zhouzirui/swipesafe/backend/internal/service/persona"
	"github.com/zhouzirui/swipesafe/backend/internal/service/speech"
)

type stubGenerator struct {
	reply string
	err   error
	got   []ai.Request
}

func (g *stubGenerator) Name() string { return "stub" }

func (g *stubGenerator) Generate(_ context.Context, req ai.Request) (string, error) {
	g.got = append(g.got, req)
	return g.reply, g.err
}

func testScenarios() []scenario.Scenario {
	return []scenario.Scenario{
		{
			ID:         "bank_scam",
			Type:       scenario.TypeScam,
			Difficulty: "easy",
			Gender:     "female",
			CallerName: "Jane Doe",
			Company:    "Bank Security",
			Phone:      "+1 (800) 555-0100",
			Opening:    "This is your bank calling about suspicious activity.",
			Followups:  []string{"Please confirm your card number.", "And the CVV on the back?"},
		},
		{
			ID:         "clinic_reminder",
			Type:       scenario.TypeLegitimate,
			CallerName: "Tom",
			Company:    "City Clinic",
			Opening:    "Hi, this is City Clinic confirming your appointment.",
		},
	}
}

func newTestService(gen ai.Generator) *Service {
	svc := NewService(scenario.NewMemoryStore(testScenarios()), gen)
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 15, 4, 0, 0, time.UTC) }
	return svc
}

func TestRespondRequiresMessage(t *testing.T) {
	svc := newTestService(nil)

	_, err := svc.Respond(context.Background(), persona.RespondRequest{Message: "   ", ScenarioID: "bank_scam"})
	assert.ErrorIs(t, err, ErrMessageRequired)
}

func TestRespondScriptedFollowupByMessageCount(t *testing.T) {
	svc := newTestService(nil)

	resp, err := svc.Respond(context.Background(), persona.RespondRequest{
		Message:      "who is this?",
		ScenarioID:   "bank_scam",
		MessageCount: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.Success)
	assert.True(t, *resp.Success)
	assert.Equal(t, "And the CVV on the back?", resp.Response)
	assert.Equal(t, 2, resp.MessageCount)
	assert.Equal(t, "Bank Security", resp.Persona)
	assert.Equal(t, "bank_scam", resp.ScenarioID)
}

func TestRespondScriptedFallbackLines(t *testing.T) {
	svc := newTestService(nil)
	shortHistory := []persona.HistoryEntry{{Role: "assistant", Content: "hello"}, {Role: "user", Content: "hi"}}
	longHistory := append(shortHistory, shortHistory...)

	cases := []struct {
		name     string
		scenario string
		history  []persona.HistoryEntry
		want     string
	}{
		{"scam early", "bank_scam", shortHistory, scamFollowup},
		{"legit early", "clinic_reminder", shortHistory, legitimateFollowup},
		{"scam late", "bank_scam", longHistory, closingFollowup},
		{"legit late", "clinic_reminder", longHistory, closingFollowup},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := svc.Respond(context.Background(), persona.RespondRequest{
				Message:             "ok",
				ScenarioID:          tc.scenario,
				ConversationHistory: tc.history,
				MessageCount:        5,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.Response)
			assert.Equal(t, 6, resp.MessageCount)
		})
	}
}

func TestRespondUnknownScenarioUsesFirst(t *testing.T) {
	svc := newTestService(nil)

	resp, err := svc.Respond(context.Background(), persona.RespondRequest{Message: "hello", ScenarioID: "nope"})
	require.NoError(t, err)
	assert.Equal(t, "bank_scam", resp.ScenarioID)
	assert.Equal(t, "Please confirm your card number.", resp.Response)
}

func TestRespondEmptyCatalog(t *testing.T) {
	svc := NewService(scenario.NewMemoryStore(nil), nil)

	_, err := svc.Respond(context.Background(), persona.RespondRequest{Message: "hello"})
	assert.ErrorIs(t, err, ErrNoScenarios)

	_, err = svc.Greeting(context.Background())
	assert.ErrorIs(t, err, ErrNoScenarios)
}

func TestRespondUsesGenerator(t *testing.T) {
	gen := &stubGenerator{reply: "Sir, I need your account number right now."}
	svc := newTestService(gen)

	resp, err := svc.Respond(context.Background(), persona.RespondRequest{
		Message:             " why? ",
		ScenarioID:          "bank_scam",
		ConversationHistory: []persona.HistoryEntry{{Role: "assistant", Content: "hello"}, {Role: "user", Content: "why?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, gen.reply, resp.Response)
	assert.Equal(t, 1, resp.MessageCount)

	require.Len(t, gen.got, 1)
	assert.Equal(t, "why?", gen.got[0].Utterance)
	assert.Equal(t, "bank_scam", gen.got[0].Scenario.ID)
	assert.Equal(t, []ai.Message{{Role: "assistant", Content: "hello"}, {Role: "user", Content: "why?"}}, gen.got[0].History)
}

func TestRespondGeneratorFailureFallsBackToScript(t *testing.T) {
	cases := []struct {
		name string
		gen  *stubGenerator
	}{
		{"error", &stubGenerator{err: errors.New("quota exceeded")}},
		{"empty", &stubGenerator{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(tc.gen)
			resp, err := svc.Respond(context.Background(), persona.RespondRequest{Message: "hi", ScenarioID: "bank_scam"})
			require.NoError(t, err)
			assert.Equal(t, "Please confirm your card number.", resp.Response)
			assert.Len(t, tc.gen.got, 1)
		})
	}
}

func TestGreetingFields(t *testing.T) {
	svc := newTestService(nil)

	resp, err := svc.Greeting(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.ScenarioID)
	assert.Equal(t, "3:04 PM", resp.CallTime)

	sc, ok := svc.store.FindByID(resp.ScenarioID)
	require.True(t, ok)
	assert.Equal(t, sc.Type, resp.CallType)
	assert.Equal(t, sc.Company, resp.Persona)
	assert.Equal(t, sc.Opening, resp.Greeting)
	assert.Equal(t, sc.CallerName, resp.CallerName)
	assert.Equal(t, speech.VoiceFor(sc.Gender), resp.Voice)
}

func TestLocalClientRoundTrip(t *testing.T) {
	store := scenario.NewMemoryStore(testScenarios()[:1])
	client := persona.NewLocalClient(NewService(store, nil))

	greeting, err := client.Greeting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bank_scam", greeting.ScenarioID)
	assert.Equal(t, outcome.Scam, greeting.CallType)
	assert.Equal(t, speech.VoiceFemale, greeting.Voice)
	assert.False(t, greeting.Fallback)

	reply, err := client.Reply(context.Background(), persona.ReplyRequest{
		Utterance:    "who is this?",
		ScenarioID:   greeting.ScenarioID,
		MessageCount: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "Please confirm your card number.", reply.Text)
	assert.Equal(t, 1, reply.MessageCount)
}

func TestScenariosListsCatalog(t *testing.T) {
	svc := newTestService(nil)
	assert.Len(t, svc.Scenarios(), 2)
}
