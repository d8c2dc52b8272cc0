package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/zhouzirui/swipesafe/backend/internal/analysis/disclosure"
	"github.com/zhouzirui/swipesafe/backend/internal/analysis/outcome"
	"github.com/zhouzirui/swipesafe/backend/internal/concurrency"
	model "github.com/zhouzirui/swipesafe/backend/internal/model/call"
	"github.com/zhouzirui/swipesafe/backend/internal/model/progress"
	"github.com/zhouzirui/swipesafe/backend/internal/service/persona"
	"github.com/zhouzirui/swipesafe/backend/internal/service/speech"
)

var (
	ErrInvalidPhase    = errors.New("operation not allowed in current call phase")
	ErrReplyPending    = errors.New("persona reply still pending")
	ErrSessionNotFound = errors.New("call session not found")
)

// Recorder receives exactly one attempt per finished session.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt progress.Attempt) error
}

// Options 配置单个通话会话。零值字段使用默认值。
type Options struct {
	PlayerID      string
	MaxDuration   time.Duration
	FallbackDelay time.Duration
	ReplyDelay    func() time.Duration
	Clock         Clock
	Detector      disclosure.Detector
	Output        speech.Output
	Recorder      Recorder
	Hub           *Hub
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	if o.Detector == nil {
		o.Detector = disclosure.KeywordDetector{}
	}
	if o.ReplyDelay == nil {
		o.ReplyDelay = UniformDelay(500*time.Millisecond, 1500*time.Millisecond)
	}
	if o.FallbackDelay <= 0 {
		o.FallbackDelay = 600 * time.Millisecond
	}
	if o.Hub == nil {
		o.Hub = NewHub()
	}
	return o
}

// Session drives one simulated call. All state lives behind mu; every
// asynchronous completion re-acquires mu and checks the phase before acting,
// so nothing is appended or spoken once the call has ended.
type Session struct {
	id     string
	opts   Options
	client persona.Client
	output speech.Output
	hub    *Hub

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	mu           sync.Mutex
	phase        model.Phase
	scenarioID   string
	callType     outcome.CallType
	personaName  string
	callerName   string
	callerNumber string
	greeting     string
	voice        string
	fallback     bool
	createdAt    time.Time
	startedAt    *time.Time
	endedAt      *time.Time
	messageCount int
	disclosed    bool
	requested    *model.CategorySet
	log          *model.ConversationLog
	pending      bool
	round        uint64
	countdown    Timer
	replyTimer   Timer
	result       *outcome.Result
	reason       model.EndReason
}

// NewSession 创建处于 idle 阶段的会话。
func NewSession(id string, client persona.Client, opts Options) *Session {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:        id,
		opts:      opts,
		client:    client,
		hub:       opts.Hub,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		phase:     model.PhaseIdle,
		createdAt: opts.Clock.Now(),
		requested: model.NewCategorySet(),
		log:       model.NewConversationLog(),
	}

	out := opts.Output
	if out == nil {
		out = hubOutput{hub: s.hub, sessionID: id, now: opts.Clock.Now}
	}
	s.output = speech.NewExclusiveOutput(out)
	return s
}

func (s *Session) ID() string { return s.id }

// Events returns the hub the session publishes to.
func (s *Session) Events() *Hub { return s.hub }

// Done is closed once the session reaches ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Wait blocks until every background completion of the session has returned.
func (s *Session) Wait() { s.wg.Wait() }

// Start 拉取开场白并进入 ringing。服务失败时使用离线兜底场景，Start 本身不会因此失败。
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != model.PhaseIdle {
		s.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidPhase, s.phase)
	}
	s.mu.Unlock()

	greeting, err := s.client.Greeting(mergeCancel(ctx, s.ctx))
	if err != nil {
		slog.Warn("[call] greeting request failed, using offline scenario", "session", s.id, "err", err)
		greeting = persona.DefaultGreeting(s.opts.Clock.Now())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != model.PhaseIdle {
		return fmt.Errorf("%w: start from %s", ErrInvalidPhase, s.phase)
	}

	s.scenarioID = greeting.ScenarioID
	s.callType = greeting.CallType
	s.personaName = greeting.Persona
	s.callerName = greeting.CallerName
	if s.callerName == "" {
		s.callerName = "Unknown Caller"
	}
	s.callerNumber = greeting.CallerNumber
	if s.callerNumber == "" {
		s.callerNumber = syntheticCallerNumber()
	}
	s.greeting = greeting.Text
	s.voice = greeting.Voice
	s.fallback = greeting.Fallback

	s.transitionLocked(model.PhaseRinging, "")
	if s.opts.MaxDuration > 0 {
		s.countdown = s.opts.Clock.AfterFunc(s.opts.MaxDuration, s.expire)
	}

	slog.Info("[call] ringing", "session", s.id, "scenario", s.scenarioID, "type", s.callType, "fallback", s.fallback)
	return nil
}

// Accept 接听来电：记录开始时间、播放并记录开场白、扫描开场白中的索取措辞。
func (s *Session) Accept(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != model.PhaseRinging {
		s.mu.Unlock()
		return fmt.Errorf("%w: accept from %s", ErrInvalidPhase, s.phase)
	}

	now := s.opts.Clock.Now()
	s.startedAt = &now
	s.transitionLocked(model.PhaseActive, "")
	u, ok := s.appendPersonaLocked(s.greeting, now)
	s.mu.Unlock()

	// 语音输出在锁外进行，播放阻塞时 End 仍可立即执行
	if err := s.output.Prime(ctx); err != nil {
		slog.Warn("[call] speech prime failed", "session", s.id, "err", err)
	}
	if ok {
		s.speak(u)
	}
	return nil
}

// Decline 在接听前挂断。
func (s *Session) Decline() (outcome.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseRinging {
		return outcome.Result{}, fmt.Errorf("%w: decline from %s", ErrInvalidPhase, s.phase)
	}
	return s.finishLocked(model.EndDeclined), nil
}

// Submit records a user utterance and asks the persona for a reply. It returns
// as soon as the request is dispatched; the reply lands asynchronously.
// Blank input is ignored.
func (s *Session) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseActive {
		return fmt.Errorf("%w: submit in %s", ErrInvalidPhase, s.phase)
	}
	if text == "" {
		return nil
	}
	if s.pending {
		return ErrReplyPending
	}

	now := s.opts.Clock.Now()
	if s.opts.Detector.ClassifyDisclosure(text) && !s.disclosed {
		s.disclosed = true
		s.hub.Publish(Event{Type: EventDisclosure, SessionID: s.id, At: now})
		slog.Info("[call] user disclosed sensitive information", "session", s.id)
	}

	turn, _ := s.log.Append(model.SpeakerUser, text, now)
	s.hub.Publish(Event{Type: EventTurn, SessionID: s.id, Turn: &turn, At: now})

	s.pending = true
	s.round++
	round := s.round
	req := persona.ReplyRequest{
		Utterance:    text,
		History:      historyOf(s.log.Turns()),
		ScenarioID:   s.scenarioID,
		MessageCount: s.messageCount,
	}

	reqCtx := mergeCancel(context.WithoutCancel(ctx), s.ctx)
	s.wg.Add(1)
	concurrency.SafeGo(func() {
		s.fetchReply(reqCtx, round, req)
	}, func(any) {
		s.scheduleReply(round, persona.StallPhrase, 0, true)
	})
	return nil
}

// End 挂断通话并返回计分结果。ringing 阶段等同于拒接，已结束时直接返回原结果。
func (s *Session) End() (outcome.Result, error) {
	return s.end(model.EndHangUp)
}

func (s *Session) end(reason model.EndReason) (outcome.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case model.PhaseEnded:
		return *s.result, nil
	case model.PhaseRinging:
		if reason == model.EndHangUp {
			reason = model.EndDeclined
		}
		return s.finishLocked(reason), nil
	case model.PhaseActive:
		return s.finishLocked(reason), nil
	default:
		return outcome.Result{}, fmt.Errorf("%w: end from %s", ErrInvalidPhase, s.phase)
	}
}

// Result returns the verdict once the call has ended.
func (s *Session) Result() (outcome.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return outcome.Result{}, false
	}
	return *s.result, true
}

// ResultEvent rebuilds the result event for subscribers that joined after the call ended.
func (s *Session) ResultEvent() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return Event{}, false
	}
	res := *s.result
	return Event{Type: EventResult, SessionID: s.id, Reason: s.reason, Result: &res, At: *s.endedAt}, true
}

// Phase returns the current phase.
func (s *Session) Phase() model.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := model.Snapshot{
		ID:                      s.id,
		PlayerID:                s.opts.PlayerID,
		ScenarioID:              s.scenarioID,
		CallType:                s.callType,
		Persona:                 s.personaName,
		CallerName:              s.callerName,
		CallerNumber:            s.callerNumber,
		Phase:                   s.phase,
		CreatedAt:               s.createdAt,
		StartedAt:               copyTime(s.startedAt),
		EndedAt:                 copyTime(s.endedAt),
		MessageCount:            s.messageCount,
		UserDisclosedInfo:       s.disclosed,
		RequestedInfoCategories: s.requested.List(),
		Conversation:            s.log.Turns(),
		Pending:                 s.pending,
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	return snap
}

func (s *Session) fetchReply(ctx context.Context, round uint64, req persona.ReplyRequest) {
	reply, err := s.client.Reply(ctx, req)
	if err != nil {
		if s.ctx.Err() == nil {
			slog.Warn("[call] persona reply failed, using stall phrase", "session", s.id, "err", err)
		}
		s.scheduleReply(round, persona.StallPhrase, 0, true)
		return
	}
	s.scheduleReply(round, reply.Text, reply.MessageCount, false)
}

// scheduleReply arms the presentation delay. It owns one wg slot, released
// either by completeReply or by finishLocked stopping the timer.
func (s *Session) scheduleReply(round uint64, text string, remoteCount int, fallback bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != model.PhaseActive || round != s.round || s.replyTimer != nil {
		slog.Debug("[call] stale reply dropped", "session", s.id, "round", round)
		s.wg.Done()
		return
	}

	delay := s.opts.FallbackDelay
	if !fallback {
		delay = s.opts.ReplyDelay()
	}
	s.replyTimer = s.opts.Clock.AfterFunc(delay, func() {
		s.completeReply(round, text, remoteCount, fallback)
	})
}

func (s *Session) completeReply(round uint64, text string, remoteCount int, fallback bool) {
	defer s.wg.Done()

	s.mu.Lock()
	if s.phase != model.PhaseActive || round != s.round {
		s.mu.Unlock()
		slog.Debug("[call] reply arrived after call ended", "session", s.id, "round", round)
		return
	}

	s.replyTimer = nil
	s.pending = false
	// 优先采用服务端返回的 message_count，缺失或兜底回复时本地加一
	next := s.messageCount + 1
	if !fallback && remoteCount > 0 {
		if remoteCount != next {
			slog.Debug("[call] adopting persona message_count", "session", s.id, "local", next, "remote", remoteCount)
		}
		next = remoteCount
	}
	s.messageCount = next
	u, ok := s.appendPersonaLocked(text, s.opts.Clock.Now())
	s.mu.Unlock()

	if ok {
		s.speak(u)
	}
}

// appendPersonaLocked records and scans one persona line and returns the
// utterance the caller speaks once mu is released.
func (s *Session) appendPersonaLocked(text string, at time.Time) (speech.Utterance, bool) {
	turn, ok := s.log.Append(model.SpeakerPersona, text, at)
	if !ok {
		return speech.Utterance{}, false
	}
	s.hub.Publish(Event{Type: EventTurn, SessionID: s.id, Turn: &turn, At: at})

	if added := s.requested.AddAll(s.opts.Detector.ClassifySolicitation(text)); len(added) > 0 {
		s.hub.Publish(Event{Type: EventCategory, SessionID: s.id, Categories: added, At: at})
	}
	return speech.Utterance{Text: text, Voice: s.voice}, true
}

// speak 必须在未持有 mu 时调用。会话结束后 s.ctx 已取消，ExclusiveOutput 不会再开始播放。
func (s *Session) speak(u speech.Utterance) {
	if err := s.output.Speak(s.ctx, u); err != nil && s.ctx.Err() == nil {
		slog.Warn("[call] speech output failed", "session", s.id, "err", err)
	}
}

func (s *Session) expire() {
	if _, err := s.end(model.EndTimeout); err == nil {
		slog.Info("[call] countdown expired", "session", s.id)
	}
}

func (s *Session) finishLocked(reason model.EndReason) outcome.Result {
	now := s.opts.Clock.Now()
	declined := s.phase == model.PhaseRinging

	s.endedAt = &now
	s.reason = reason
	s.log.Freeze()
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
	if s.replyTimer != nil {
		if s.replyTimer.Stop() {
			s.wg.Done()
		}
		s.replyTimer = nil
	}
	s.pending = false
	s.cancel()
	s.output.Cancel()

	duration := 0
	if s.startedAt != nil {
		duration = int(now.Sub(*s.startedAt) / time.Second)
	}

	result := outcome.Score(outcome.Input{
		CallType:        s.callType,
		DurationSeconds: duration,
		Disclosed:       s.disclosed,
		Requested:       s.requested.List(),
		Declined:        declined,
	})
	s.result = &result

	s.transitionLocked(model.PhaseEnded, reason)
	s.hub.Publish(Event{Type: EventResult, SessionID: s.id, Result: &result, At: now})
	close(s.done)

	slog.Info("[call] ended", "session", s.id, "reason", reason, "duration", duration, "points", result.Points, "correct", result.IsCorrect)

	if s.opts.Recorder != nil {
		attempt := progress.Attempt{
			PlayerID:        s.opts.PlayerID,
			Mode:            progress.ModeNetwork,
			SessionID:       s.id,
			ScenarioID:      s.scenarioID,
			CallType:        string(s.callType),
			Success:         result.IsCorrect,
			PointsEarned:    result.Points,
			Accuracy:        result.Accuracy,
			DurationSeconds: duration,
			Declined:        declined,
			Disclosed:       s.disclosed,
			CreatedAt:       now,
		}
		s.wg.Add(1)
		concurrency.SafeGo(func() {
			defer s.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.opts.Recorder.RecordAttempt(ctx, attempt); err != nil {
				slog.Error("[call] record attempt failed", "session", s.id, "err", err)
			}
		}, nil)
	}
	return result
}

func (s *Session) transitionLocked(next model.Phase, reason model.EndReason) {
	if !s.phase.CanTransition(next) {
		panic(fmt.Sprintf("call: illegal transition %s -> %s", s.phase, next))
	}
	s.phase = next
	s.hub.Publish(Event{Type: EventPhase, SessionID: s.id, Phase: next, Reason: reason, At: s.opts.Clock.Now()})
}

func historyOf(turns []model.Turn) []persona.HistoryEntry {
	history := make([]persona.HistoryEntry, 0, len(turns))
	for _, t := range turns {
		history = append(history, persona.HistoryEntry{Role: t.Speaker.Role(), Content: t.Text})
	}
	return history
}

// mergeCancel returns a context that is cancelled when either parent is.
func mergeCancel(parent, other context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(other, cancel)
	context.AfterFunc(ctx, func() { stop() })
	return ctx
}

func syntheticCallerNumber() string {
	return fmt.Sprintf("+1 (%03d) 555-%04d", 200+rand.IntN(800), rand.IntN(10000))
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
