package persona

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zhouzirui/swipesafe/backend/internal/analysis/outcome"
)

var (
	// ErrTransport 表示请求被拒绝、超时或服务返回失败状态。
	ErrTransport = errors.New("persona service unavailable")
	// ErrMalformed 表示响应体无法解析或缺少必需字段。
	ErrMalformed = errors.New("persona service returned a malformed body")
)

// StallPhrase 是回复请求失败时替代的来电方台词。
const StallPhrase = "I didn't catch that. Can you repeat please? This is very urgent."

// 离线兜底场景。
const (
	DefaultScenarioID = "paypal_scam"
	DefaultCallerName = "David Richardson"
	DefaultPersona    = "PayPal Security"
)

// Greeting is the opening of a freshly selected scenario.
type Greeting struct {
	ScenarioID   string
	CallType     outcome.CallType
	Persona      string
	CallerName   string
	CallerNumber string
	Text         string
	CallTime     string
	Voice        string
	Fallback     bool
}

// HistoryEntry is one turn as sent to the persona service.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ReplyRequest carries everything the persona service needs to continue a call.
type ReplyRequest struct {
	Utterance    string
	History      []HistoryEntry
	ScenarioID   string
	MessageCount int
}

// Reply is the persona's next line.
type Reply struct {
	Text         string
	MessageCount int
}

// Client 是人设应答服务的调用契约。实现不得修改会话状态。
type Client interface {
	Greeting(ctx context.Context) (Greeting, error)
	Reply(ctx context.Context, req ReplyRequest) (Reply, error)
}

// DefaultGreeting 返回服务不可用时使用的固定开场白。
func DefaultGreeting(now time.Time) Greeting {
	return Greeting{
		ScenarioID: DefaultScenarioID,
		CallType:   outcome.Scam,
		Persona:    DefaultPersona,
		CallerName: DefaultCallerName,
		Text: fmt.Sprintf("Hello, this is %s. The time is %s. I'm calling about your account security. "+
			"We've detected suspicious activity. Do you have a moment to verify your information?",
			DefaultCallerName, FormatCallTime(now)),
		CallTime: FormatCallTime(now),
		Fallback: true,
	}
}

// FormatCallTime renders a wall-clock time the way caller ID shows it, e.g. "3:04 PM".
func FormatCallTime(t time.Time) string {
	return t.Format("3:04 PM")
}

func greetingFromWire(resp GreetingResponse) (Greeting, error) {
	if !resp.Success {
		return Greeting{}, fmt.Errorf("%w: greeting rejected: %s", ErrTransport, resp.Error)
	}
	text := strings.TrimSpace(resp.Greeting)
	if text == "" || strings.TrimSpace(resp.ScenarioID) == "" {
		return Greeting{}, fmt.Errorf("%w: greeting or scenario_id missing", ErrMalformed)
	}

	callType, ok := outcome.ParseCallType(resp.CallType)
	if !ok {
		return Greeting{}, fmt.Errorf("%w: unknown call_type %q", ErrMalformed, resp.CallType)
	}

	return Greeting{
		ScenarioID:   resp.ScenarioID,
		CallType:     callType,
		Persona:      resp.Persona,
		CallerName:   resp.CallerName,
		CallerNumber: resp.Phone,
		Text:         text,
		CallTime:     resp.CallTime,
		Voice:        resp.Voice,
	}, nil
}

func replyFromWire(resp RespondResponse, sent int) (Reply, error) {
	if resp.Rejected() {
		return Reply{}, fmt.Errorf("%w: reply rejected: %s", ErrTransport, resp.Error)
	}
	text := strings.TrimSpace(resp.Response)
	if text == "" {
		return Reply{}, fmt.Errorf("%w: empty response", ErrMalformed)
	}

	count := resp.MessageCount
	if count <= 0 {
		count = sent + 1
	}
	return Reply{Text: text, MessageCount: count}, nil
}
