package call

import (
	"time"

	"github.com/zhouzirui/swipesafe/backend/internal/analysis/disclosure"
	"github.com/zhouzirui/swipesafe/backend/internal/analysis/outcome"
)

// Snapshot is a point-in-time, read-only view of one call session.
type Snapshot struct {
	ID                      string                `json:"id"`
	PlayerID                string                `json:"playerId,omitempty"`
	ScenarioID              string                `json:"scenarioId"`
	CallType                outcome.CallType      `json:"callType"`
	Persona                 string                `json:"persona"`
	CallerName              string                `json:"callerName"`
	CallerNumber            string                `json:"callerNumber"`
	Phase                   Phase                 `json:"phase"`
	CreatedAt               time.Time             `json:"createdAt"`
	StartedAt               *time.Time            `json:"startedAt,omitempty"`
	EndedAt                 *time.Time            `json:"endedAt,omitempty"`
	MessageCount            int                   `json:"messageCount"`
	UserDisclosedInfo       bool                  `json:"userDisclosedInfo"`
	RequestedInfoCategories []disclosure.Category `json:"requestedInfoCategories"`
	Conversation            []Turn                `json:"conversation"`
	Pending                 bool                  `json:"pending"`
	Result                  *outcome.Result       `json:"result,omitempty"`
}

// EndReason 记录通话结束的原因。
type EndReason string

const (
	EndHangUp   EndReason = "hang_up"
	EndDeclined EndReason = "declined"
	EndTimeout  EndReason = "timeout"
	EndShutdown EndReason = "shutdown"
)
