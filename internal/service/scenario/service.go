package scenario

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/zhouzirui/swipesafe/backend/internal/model/scenario"
	"github.com/zhouzirui/swipesafe/backend/internal/service/ai"
	"github.com/zhouzirui/swipesafe/backend/internal/service/persona"
	"github.com/zhouzirui/swipesafe/backend/internal/service/speech"
)

var (
	ErrMessageRequired = errors.New("message is required")
	ErrNoScenarios     = errors.New("scenario catalog is empty")
)

// 脚本兜底台词。
const (
	legitimateFollowup = "Thank you for confirming that. Is there anything else I can help you with today?"
	scamFollowup       = "I understand. Now I really need to proceed with verification. Can you provide that information?"
	closingFollowup    = "Okay, thank you for that. Let me proceed with the next step."
)

// Service is the reference persona service: it picks scenarios and writes
// the caller's lines, via a Generator when one is configured and from the
// scenario script otherwise.
type Service struct {
	store     scenario.Store
	generator ai.Generator
	now       func() time.Time
}

// NewService 创建人设服务，generator 可以为 nil。
func NewService(store scenario.Store, generator ai.Generator) *Service {
	return &Service{store: store, generator: generator, now: time.Now}
}

// Scenarios lists the catalog.
func (s *Service) Scenarios() []scenario.Scenario {
	return s.store.List()
}

// Greeting selects a random scenario and returns its opening line.
func (s *Service) Greeting(_ context.Context) (persona.GreetingResponse, error) {
	sc, ok := s.store.Random()
	if !ok {
		return persona.GreetingResponse{}, ErrNoScenarios
	}

	return persona.GreetingResponse{
		Success:    true,
		ScenarioID: sc.ID,
		CallType:   sc.Type,
		Persona:    sc.Company,
		Greeting:   sc.Opening,
		CallerName: sc.CallerName,
		CallTime:   persona.FormatCallTime(s.now()),
		Difficulty: sc.Difficulty,
		Phone:      sc.Phone,
		Voice:      speech.VoiceFor(sc.Gender),
	}, nil
}

// Respond 生成来电方的下一句。生成器缺失或失败时退回脚本台词，永不返回空回复。
func (s *Service) Respond(ctx context.Context, req persona.RespondRequest) (persona.RespondResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return persona.RespondResponse{}, ErrMessageRequired
	}

	sc, err := s.resolve(req.ScenarioID)
	if err != nil {
		return persona.RespondResponse{}, err
	}

	reply := ""
	if s.generator != nil {
		history := make([]ai.Message, 0, len(req.ConversationHistory))
		for _, h := range req.ConversationHistory {
			history = append(history, ai.Message{Role: h.Role, Content: h.Content})
		}

		generated, genErr := s.generator.Generate(ctx, ai.Request{Scenario: sc, History: history, Utterance: message})
		switch {
		case genErr != nil:
			slog.Warn("[scenario] generator failed, using script", "provider", s.generator.Name(), "scenario", sc.ID, "err", genErr)
		case generated == "":
			slog.Warn("[scenario] generator returned empty reply, using script", "provider", s.generator.Name(), "scenario", sc.ID)
		default:
			reply = generated
		}
	}
	if reply == "" {
		reply = scriptedReply(sc, req.MessageCount, len(req.ConversationHistory))
	}

	ok := true
	return persona.RespondResponse{
		Success:      &ok,
		Response:     reply,
		MessageCount: max(req.MessageCount, 0) + 1,
		Persona:      sc.Company,
		ScenarioID:   sc.ID,
	}, nil
}

func (s *Service) resolve(id string) (scenario.Scenario, error) {
	if sc, ok := s.store.FindByID(id); ok {
		return sc, nil
	}
	items := s.store.List()
	if len(items) == 0 {
		return scenario.Scenario{}, ErrNoScenarios
	}
	slog.Debug("[scenario] unknown scenario, using first", "scenario", id, "fallback", items[0].ID)
	return items[0], nil
}

func scriptedReply(sc scenario.Scenario, messageCount, historyLen int) string {
	if line, ok := sc.Followup(messageCount); ok {
		return line
	}
	if historyLen < 4 {
		if sc.IsLegitimate() {
			return legitimateFollowup
		}
		return scamFollowup
	}
	return closingFollowup
}
