package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/swipesafe/backend/internal/model/scenario"
)

// BuildSystemPrompt 根据场景类型生成来电方的系统提示词。
func BuildSystemPrompt(s scenario.Scenario) string {
	if s.IsLegitimate() {
		return fmt.Sprintf(`You are %s from %s, a legitimate customer support representative.
You are helpful, professional, and genuinely trying to help the customer.
You NEVER ask for passwords, full SSN, or sensitive banking information.
You only verify information that was already provided by the customer.
Keep responses VERY SHORT (1 sentence max).
Adapt to what the customer says and respond genuinely to their concerns.
If they seem confused or suspicious, reassure them and explain everything clearly.
Respond briefly. Be helpful and honest.`, s.CallerName, s.Company)
	}

	targets := s.InfoRequests
	if len(targets) > 2 {
		targets = targets[:2]
	}
	goal := "personal information"
	if len(targets) > 0 {
		goal = fmt.Sprintf("personal information (%s)", strings.Join(targets, ", "))
	}

	return fmt.Sprintf(`You are %s, a %s caller from %s.
Your ONLY goal is to get %s.
Be AGGRESSIVE, pushy, and create URGENCY. Use pressure tactics.
Sound like a real scammer - be manipulative and threatening.
Keep responses VERY SHORT (1 sentence max - like 10-15 words).
Interrupt them. Don't take no for an answer. Demand the information NOW.
If they refuse or hesitate, threaten consequences or say it's their last chance.
Respond in 1 short sentence. Be aggressive and pushy. DEMAND what you need.`, s.CallerName, s.Type, s.Company, goal)
}

// TrimHistory keeps the last limit turns before the current utterance. A
// trailing user turn equal to the utterance is dropped since it is sent as
// the query itself.
func TrimHistory(history []Message, utterance string, limit int) []Message {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Role == RoleUser && strings.TrimSpace(last.Content) == strings.TrimSpace(utterance) {
			history = history[:n-1]
		}
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return append([]Message(nil), history...)
}
