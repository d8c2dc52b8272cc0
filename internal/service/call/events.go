package call

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zhouzirui/swipesafe/backend/internal/analysis/disclosure"
	"github.com/zhouzirui/swipesafe/backend/internal/analysis/outcome"
	model "github.com/zhouzirui/swipesafe/backend/internal/model/call"
	"github.com/zhouzirui/swipesafe/backend/internal/service/speech"
)

// EventType 标识推送给前端的事件种类。
type EventType string

const (
	EventPhase      EventType = "phase"
	EventTurn       EventType = "turn"
	EventCategory   EventType = "category"
	EventDisclosure EventType = "disclosure"
	EventPrime      EventType = "prime"
	EventSpeak      EventType = "speak"
	EventCancel     EventType = "cancel"
	EventResult     EventType = "result"
)

// Event is one state change of a call, as pushed to websocket/SSE clients.
type Event struct {
	Type       EventType             `json:"type"`
	SessionID  string                `json:"sessionId"`
	Phase      model.Phase           `json:"phase,omitempty"`
	Reason     model.EndReason       `json:"reason,omitempty"`
	Turn       *model.Turn           `json:"turn,omitempty"`
	Categories []disclosure.Category `json:"categories,omitempty"`
	Utterance  *speech.Utterance     `json:"utterance,omitempty"`
	Result     *outcome.Result       `json:"result,omitempty"`
	At         time.Time             `json:"at"`
}

// Hub fans session events out to subscribers. Publish never blocks:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe 注册订阅者，返回事件通道与取消函数。Hub 关闭后通道会被关闭。
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, max(buffer, 1))
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.next
	h.next++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub)
			}
		})
	}
}

func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for id, ch := range h.subs {
		select {
		case ch <- e:
		default:
			slog.Debug("[call] subscriber lagging, event dropped", "subscriber", id, "type", e.Type, "session", e.SessionID)
		}
	}
}

// Close 关闭所有订阅通道，之后的 Publish 均被忽略。
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}

// hubOutput turns speech requests into events for the browser to play.
type hubOutput struct {
	hub       *Hub
	sessionID string
	now       func() time.Time
}

func (o hubOutput) Prime(context.Context) error {
	o.hub.Publish(Event{Type: EventPrime, SessionID: o.sessionID, At: o.now()})
	return nil
}

func (o hubOutput) Speak(_ context.Context, u speech.Utterance) error {
	o.hub.Publish(Event{Type: EventSpeak, SessionID: o.sessionID, Utterance: &u, At: o.now()})
	return nil
}

func (o hubOutput) Cancel() {
	o.hub.Publish(Event{Type: EventCancel, SessionID: o.sessionID, At: o.now()})
}
