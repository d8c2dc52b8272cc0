package call

import (
	"sync"
	"time"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser    Speaker = "user"
	SpeakerPersona Speaker = "persona"
)

// Role 返回人设服务 conversation_history 使用的角色名。
func (s Speaker) Role() string {
	if s == SpeakerUser {
		return "user"
	}
	return "assistant"
}

// Turn 是对话记录中的一条发言，写入后不可修改。
type Turn struct {
	Seq       int       `json:"seq"`
	Speaker   Speaker   `json:"speaker"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConversationLog is an append-only ordered record of turns.
// Once frozen, further appends are rejected.
type ConversationLog struct {
	mu     sync.RWMutex
	turns  []Turn
	frozen bool
}

// NewConversationLog returns an empty log.
func NewConversationLog() *ConversationLog {
	return &ConversationLog{turns: make([]Turn, 0, 16)}
}

// Append 追加一条发言并返回其副本；日志已冻结时返回 false。
func (l *ConversationLog) Append(speaker Speaker, text string, at time.Time) (Turn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.frozen {
		return Turn{}, false
	}

	turn := Turn{
		Seq:       len(l.turns) + 1,
		Speaker:   speaker,
		Text:      text,
		CreatedAt: at,
	}
	l.turns = append(l.turns, turn)
	return turn, true
}

// Turns returns a copy of the recorded turns in insertion order.
func (l *ConversationLog) Turns() []Turn {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Turn(nil), l.turns...)
}

// Len returns the number of recorded turns.
func (l *ConversationLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.turns)
}

// Freeze 冻结日志，之后的 Append 都会被拒绝。
func (l *ConversationLog) Freeze() {
	l.mu.Lock()
	l.frozen = true
	l.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (l *ConversationLog) Frozen() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frozen
}
