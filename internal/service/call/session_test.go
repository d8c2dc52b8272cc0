package call

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/swipesafe/backend/internal/analysis/disclosure"
	"github.com/zhouzirui/swipesafe/backend/internal/analysis/outcome"
	model "github.com/zhouzirui/swipesafe/backend/internal/model/call"
	"github.com/zhouzirui/swipesafe/backend/internal/model/progress"
	"github.com/zhouzirui/swipesafe/backend/internal/service/persona"
	"github.com/zhouzirui/swipesafe/backend/internal/service/speech"
)

// fakeClock fires timers only when the test advances it.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	fired   bool
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 15, 4, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

type fakeClient struct {
	mu            sync.Mutex
	greeting      persona.Greeting
	greetingErr   error
	greetingCalls int
	reply         func(ctx context.Context, req persona.ReplyRequest) (persona.Reply, error)
	requests      []persona.ReplyRequest
}

func (c *fakeClient) Greeting(context.Context) (persona.Greeting, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.greetingCalls++
	return c.greeting, c.greetingErr
}

func (c *fakeClient) Reply(ctx context.Context, req persona.ReplyRequest) (persona.Reply, error) {
	c.mu.Lock()
	c.requests = append(c.requests, req)
	fn := c.reply
	c.mu.Unlock()
	if fn == nil {
		return persona.Reply{Text: "Okay.", MessageCount: req.MessageCount + 1}, nil
	}
	return fn(ctx, req)
}

func (c *fakeClient) GreetingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.greetingCalls
}

type fakeRecorder struct {
	mu       sync.Mutex
	attempts []progress.Attempt
}

func (r *fakeRecorder) RecordAttempt(_ context.Context, a progress.Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
	return nil
}

func (r *fakeRecorder) Attempts() []progress.Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]progress.Attempt(nil), r.attempts...)
}

const scamOpening = "This is PayPal Security. Can you confirm the last 4 digits of the credit card on file?"

func scamGreeting() persona.Greeting {
	return persona.Greeting{
		ScenarioID: "paypal_scam",
		CallType:   outcome.Scam,
		Persona:    "PayPal Security",
		CallerName: "David Richardson",
		Text:       scamOpening,
	}
}

func legitGreeting() persona.Greeting {
	return persona.Greeting{
		ScenarioID: "legitimate_call",
		CallType:   outcome.Legitimate,
		Persona:    "Your Bank",
		CallerName: "Jennifer Murphy",
		Text:       "Hi, this is your bank doing a routine check. Have you noticed anything unusual?",
	}
}

type harness struct {
	session  *Session
	clock    *fakeClock
	client   *fakeClient
	recorder *fakeRecorder
	events   <-chan Event
}

const replyDelay = 700 * time.Millisecond

func newHarness(t *testing.T, client *fakeClient, maxDuration time.Duration) *harness {
	t.Helper()
	clock := newFakeClock()
	recorder := &fakeRecorder{}
	hub := NewHub()
	events, _ := hub.Subscribe(256)

	session := NewSession("call-1", client, Options{
		PlayerID:      "player-1",
		MaxDuration:   maxDuration,
		FallbackDelay: 600 * time.Millisecond,
		ReplyDelay:    func() time.Duration { return replyDelay },
		Clock:         clock,
		Recorder:      recorder,
		Hub:           hub,
	})
	return &harness{session: session, clock: clock, client: client, recorder: recorder, events: events}
}

// awaitTimers waits until the async reply path has armed its delay timer.
func (h *harness) awaitTimers(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.clock.Pending() >= n }, time.Second, time.Millisecond)
}

func (h *harness) drain() []Event {
	var out []Event
	for {
		select {
		case e, ok := <-h.events:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func phasesOf(events []Event) []model.Phase {
	var phases []model.Phase
	for _, e := range events {
		if e.Type == EventPhase {
			phases = append(phases, e.Phase)
		}
	}
	return phases
}

func TestSessionScamCallHappyPath(t *testing.T) {
	h := newHarness(t, &fakeClient{greeting: scamGreeting()}, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	assert.Equal(t, model.PhaseRinging, h.session.Phase())

	require.NoError(t, h.session.Accept(ctx))
	snap := h.session.Snapshot()
	require.Len(t, snap.Conversation, 1)
	assert.Equal(t, model.SpeakerPersona, snap.Conversation[0].Speaker)
	assert.Equal(t, []disclosure.Category{disclosure.CreditCard, disclosure.Payment}, snap.RequestedInfoCategories)
	require.NotNil(t, snap.StartedAt)

	require.NoError(t, h.session.Submit(ctx, "who is this?"))
	h.awaitTimers(t, 1)
	assert.True(t, h.session.Snapshot().Pending)

	h.clock.Advance(replyDelay)
	snap = h.session.Snapshot()
	assert.False(t, snap.Pending)
	assert.Equal(t, 1, snap.MessageCount)
	assert.Len(t, snap.Conversation, snap.MessageCount*2+1)

	h.clock.Advance(9 * time.Second)
	res, err := h.session.End()
	require.NoError(t, err)
	assert.Equal(t, 300, res.Points)
	assert.Equal(t, 100, res.Accuracy)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 9, res.DurationSeconds)

	h.session.Wait()
	attempts := h.recorder.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, progress.ModeNetwork, attempts[0].Mode)
	assert.Equal(t, 300, attempts[0].PointsEarned)
	assert.True(t, attempts[0].Success)
	assert.Equal(t, "player-1", attempts[0].PlayerID)

	events := h.drain()
	assert.Equal(t, []model.Phase{model.PhaseRinging, model.PhaseActive, model.PhaseEnded}, phasesOf(events))
}

func TestSessionReplyRequestCarriesHistory(t *testing.T) {
	client := &fakeClient{greeting: scamGreeting()}
	h := newHarness(t, client, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	require.NoError(t, h.session.Accept(ctx))
	require.NoError(t, h.session.Submit(ctx, "why?"))
	h.awaitTimers(t, 1)
	h.clock.Advance(replyDelay)

	require.NoError(t, h.session.Submit(ctx, "still no"))
	h.awaitTimers(t, 1)

	client.mu.Lock()
	requests := append([]persona.ReplyRequest(nil), client.requests...)
	client.mu.Unlock()

	require.Len(t, requests, 2)
	assert.Equal(t, "paypal_scam", requests[1].ScenarioID)
	assert.Equal(t, 1, requests[1].MessageCount)
	require.Len(t, requests[1].History, 4)
	assert.Equal(t, "assistant", requests[1].History[0].Role)
	assert.Equal(t, persona.HistoryEntry{Role: "user", Content: "still no"}, requests[1].History[3])

	_, _ = h.session.End()
	h.session.Wait()
}

func TestSessionDeclineScoring(t *testing.T) {
	cases := []struct {
		name     string
		greeting persona.Greeting
		points   int
		accuracy int
		correct  bool
	}{
		{name: "scam", greeting: scamGreeting(), points: 300, accuracy: 100, correct: true},
		{name: "legitimate", greeting: legitGreeting(), points: 0, accuracy: 0, correct: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeClient{greeting: tc.greeting}
			h := newHarness(t, client, 0)
			require.NoError(t, h.session.Start(context.Background()))

			res, err := h.session.Decline()
			require.NoError(t, err)
			assert.Equal(t, tc.points, res.Points)
			assert.Equal(t, tc.accuracy, res.Accuracy)
			assert.Equal(t, tc.correct, res.IsCorrect)
			assert.True(t, res.Declined)
			assert.Equal(t, 1, client.GreetingCalls())

			snap := h.session.Snapshot()
			assert.Nil(t, snap.StartedAt)
			assert.Empty(t, snap.Conversation)

			h.session.Wait()
			assert.Len(t, h.recorder.Attempts(), 1)
			assert.Equal(t, []model.Phase{model.PhaseRinging, model.PhaseEnded}, phasesOf(h.drain()))
		})
	}
}

func TestSessionDisclosureIsMonotonic(t *testing.T) {
	h := newHarness(t, &fakeClient{greeting: legitGreeting()}, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	require.NoError(t, h.session.Accept(ctx))

	require.NoError(t, h.session.Submit(ctx, "my card number is 4111 1111 1111 1111"))
	assert.True(t, h.session.Snapshot().UserDisclosedInfo)
	h.awaitTimers(t, 1)
	h.clock.Advance(replyDelay)

	for _, text := range []string{"actually never mind", "goodbye"} {
		require.NoError(t, h.session.Submit(ctx, text))
		h.awaitTimers(t, 1)
		h.clock.Advance(replyDelay)
		assert.True(t, h.session.Snapshot().UserDisclosedInfo)
	}

	h.clock.Advance(90 * time.Second)
	res, err := h.session.End()
	require.NoError(t, err)
	assert.Zero(t, res.Points)
	assert.Zero(t, res.Accuracy)
	assert.False(t, res.IsCorrect)
	assert.True(t, h.session.Snapshot().UserDisclosedInfo)
	h.session.Wait()
}

func TestSessionFailedReplyAppendsStallPhraseOnce(t *testing.T) {
	client := &fakeClient{
		greeting: scamGreeting(),
		reply: func(context.Context, persona.ReplyRequest) (persona.Reply, error) {
			return persona.Reply{}, persona.ErrTransport
		},
	}
	h := newHarness(t, client, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	require.NoError(t, h.session.Accept(ctx))
	require.NoError(t, h.session.Submit(ctx, "hello?"))
	h.awaitTimers(t, 1)

	h.clock.Advance(599 * time.Millisecond)
	assert.Len(t, h.session.Snapshot().Conversation, 2)

	h.clock.Advance(time.Millisecond)
	snap := h.session.Snapshot()
	require.Len(t, snap.Conversation, 3)
	assert.Equal(t, persona.StallPhrase, snap.Conversation[2].Text)
	assert.Equal(t, model.SpeakerPersona, snap.Conversation[2].Speaker)
	assert.Equal(t, model.PhaseActive, snap.Phase)
	assert.False(t, snap.Pending)

	h.clock.Advance(time.Minute)
	assert.Len(t, h.session.Snapshot().Conversation, 3)

	_, err := h.session.End()
	require.NoError(t, err)
	h.session.Wait()
}

func TestSessionEndWhileReplyInFlightAppendsNothing(t *testing.T) {
	release := make(chan struct{})
	client := &fakeClient{
		greeting: scamGreeting(),
		reply: func(context.Context, persona.ReplyRequest) (persona.Reply, error) {
			<-release
			return persona.Reply{Text: "Give me your SSN", MessageCount: 1}, nil
		},
	}
	h := newHarness(t, client, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	require.NoError(t, h.session.Accept(ctx))
	require.NoError(t, h.session.Submit(ctx, "who is this"))

	_, err := h.session.End()
	require.NoError(t, err)
	before := h.session.Snapshot().Conversation

	close(release)
	h.session.Wait()
	h.clock.Advance(time.Minute)

	after := h.session.Snapshot()
	assert.Equal(t, before, after.Conversation)
	assert.Equal(t, 0, after.MessageCount)
	assert.Equal(t, model.PhaseEnded, after.Phase)
}

func TestSessionEndCancelsInFlightRequest(t *testing.T) {
	client := &fakeClient{
		greeting: scamGreeting(),
		reply: func(ctx context.Context, _ persona.ReplyRequest) (persona.Reply, error) {
			<-ctx.Done()
			return persona.Reply{}, ctx.Err()
		},
	}
	h := newHarness(t, client, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	require.NoError(t, h.session.Accept(ctx))
	require.NoError(t, h.session.Submit(ctx, "hang on"))

	_, err := h.session.End()
	require.NoError(t, err)

	h.session.Wait()
	assert.Len(t, h.session.Snapshot().Conversation, 2)
}

func TestSessionEndDuringReplyDelay(t *testing.T) {
	h := newHarness(t, &fakeClient{greeting: scamGreeting()}, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	require.NoError(t, h.session.Accept(ctx))
	require.NoError(t, h.session.Submit(ctx, "hmm"))
	h.awaitTimers(t, 1)

	_, err := h.session.End()
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	h.session.Wait()

	snap := h.session.Snapshot()
	assert.Len(t, snap.Conversation, 2)
	assert.Equal(t, 0, snap.MessageCount)
}

func TestSessionInvalidOperations(t *testing.T) {
	h := newHarness(t, &fakeClient{greeting: scamGreeting()}, 0)
	ctx := context.Background()

	assert.ErrorIs(t, h.session.Accept(ctx), ErrInvalidPhase)
	assert.ErrorIs(t, h.session.Submit(ctx, "hi"), ErrInvalidPhase)
	_, err := h.session.End()
	assert.ErrorIs(t, err, ErrInvalidPhase)

	require.NoError(t, h.session.Start(ctx))
	assert.ErrorIs(t, h.session.Start(ctx), ErrInvalidPhase)
	assert.ErrorIs(t, h.session.Submit(ctx, "hi"), ErrInvalidPhase)

	require.NoError(t, h.session.Accept(ctx))
	assert.ErrorIs(t, h.session.Accept(ctx), ErrInvalidPhase)
	_, err = h.session.Decline()
	assert.ErrorIs(t, err, ErrInvalidPhase)

	require.NoError(t, h.session.Submit(ctx, "   "))
	assert.Len(t, h.session.Snapshot().Conversation, 1)

	require.NoError(t, h.session.Submit(ctx, "first"))
	assert.ErrorIs(t, h.session.Submit(ctx, "second"), ErrReplyPending)

	first, err := h.session.End()
	require.NoError(t, err)
	again, err := h.session.End()
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.ErrorIs(t, h.session.Submit(ctx, "late"), ErrInvalidPhase)

	h.session.Wait()
	assert.Len(t, h.recorder.Attempts(), 1)
}

func TestSessionEndWhileRingingCountsAsDecline(t *testing.T) {
	h := newHarness(t, &fakeClient{greeting: scamGreeting()}, 0)
	require.NoError(t, h.session.Start(context.Background()))

	res, err := h.session.End()
	require.NoError(t, err)
	assert.True(t, res.Declined)
	assert.Equal(t, 300, res.Points)
	h.session.Wait()
}

func TestSessionGreetingFailureUsesOfflineScenario(t *testing.T) {
	client := &fakeClient{greetingErr: errors.New("dial tcp: connection refused")}
	h := newHarness(t, client, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	snap := h.session.Snapshot()
	assert.Equal(t, persona.DefaultScenarioID, snap.ScenarioID)
	assert.Equal(t, outcome.Scam, snap.CallType)
	assert.Equal(t, persona.DefaultCallerName, snap.CallerName)
	assert.NotEmpty(t, snap.CallerNumber)

	require.NoError(t, h.session.Accept(ctx))
	snap = h.session.Snapshot()
	require.Len(t, snap.Conversation, 1)
	assert.Contains(t, snap.Conversation[0].Text, "The time is 3:04 PM.")

	_, _ = h.session.End()
	h.session.Wait()
}

func TestSessionCountdownForcesEnd(t *testing.T) {
	h := newHarness(t, &fakeClient{greeting: scamGreeting()}, 300*time.Second)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	require.NoError(t, h.session.Accept(ctx))

	h.clock.Advance(300 * time.Second)
	select {
	case <-h.session.Done():
	default:
		t.Fatal("countdown did not end the call")
	}

	res, ok := h.session.Result()
	require.True(t, ok)
	assert.Equal(t, 50, res.Points)
	assert.False(t, res.IsCorrect)

	var reason model.EndReason
	for _, e := range h.drain() {
		if e.Type == EventPhase && e.Phase == model.PhaseEnded {
			reason = e.Reason
		}
	}
	assert.Equal(t, model.EndTimeout, reason)
	h.session.Wait()
}

func TestSessionCountdownWhileRingingDeclines(t *testing.T) {
	h := newHarness(t, &fakeClient{greeting: legitGreeting()}, 30*time.Second)
	require.NoError(t, h.session.Start(context.Background()))

	h.clock.Advance(30 * time.Second)
	res, ok := h.session.Result()
	require.True(t, ok)
	assert.True(t, res.Declined)
	assert.Zero(t, res.Points)
	h.session.Wait()
}

func TestSessionRequestedCategoriesGrowWithoutDuplicates(t *testing.T) {
	replies := []string{
		"Now I need your social security number.",
		"Read me the card number and your SSN again.",
		"What's your email address?",
	}
	var idx int
	var mu sync.Mutex
	client := &fakeClient{
		greeting: scamGreeting(),
		reply: func(_ context.Context, req persona.ReplyRequest) (persona.Reply, error) {
			mu.Lock()
			defer mu.Unlock()
			text := replies[idx]
			idx++
			return persona.Reply{Text: text, MessageCount: req.MessageCount + 1}, nil
		},
	}
	h := newHarness(t, client, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	require.NoError(t, h.session.Accept(ctx))

	prev := len(h.session.Snapshot().RequestedInfoCategories)
	for range replies {
		require.NoError(t, h.session.Submit(ctx, "no"))
		h.awaitTimers(t, 1)
		h.clock.Advance(replyDelay)

		got := h.session.Snapshot().RequestedInfoCategories
		assert.GreaterOrEqual(t, len(got), prev)
		seen := map[disclosure.Category]bool{}
		for _, c := range got {
			assert.False(t, seen[c], "duplicate category %s", c)
			seen[c] = true
		}
		prev = len(got)
	}

	assert.Equal(t,
		[]disclosure.Category{disclosure.CreditCard, disclosure.Payment, disclosure.SSN, disclosure.Email, disclosure.Address},
		h.session.Snapshot().RequestedInfoCategories)

	_, _ = h.session.End()
	h.session.Wait()
}

func TestSessionSpeechEvents(t *testing.T) {
	h := newHarness(t, &fakeClient{greeting: scamGreeting()}, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	require.NoError(t, h.session.Accept(ctx))
	_, _ = h.session.End()
	h.session.Wait()

	var kinds []EventType
	for _, e := range h.drain() {
		switch e.Type {
		case EventPrime, EventSpeak, EventCancel:
			kinds = append(kinds, e.Type)
		}
	}
	assert.Equal(t, []EventType{EventPrime, EventSpeak, EventCancel}, kinds)
}

func TestSessionAdoptsPersonaMessageCount(t *testing.T) {
	client := &fakeClient{
		greeting: scamGreeting(),
		reply: func(_ context.Context, req persona.ReplyRequest) (persona.Reply, error) {
			if req.Utterance == "stall" {
				return persona.Reply{}, persona.ErrTransport
			}
			return persona.Reply{Text: "Stay on the line.", MessageCount: 5}, nil
		},
	}
	h := newHarness(t, client, 0)
	ctx := context.Background()

	require.NoError(t, h.session.Start(ctx))
	require.NoError(t, h.session.Accept(ctx))

	require.NoError(t, h.session.Submit(ctx, "what now?"))
	h.awaitTimers(t, 1)
	h.clock.Advance(replyDelay)
	assert.Equal(t, 5, h.session.Snapshot().MessageCount)

	require.NoError(t, h.session.Submit(ctx, "stall"))
	h.awaitTimers(t, 1)
	h.clock.Advance(600 * time.Millisecond)
	assert.Equal(t, 6, h.session.Snapshot().MessageCount)

	client.mu.Lock()
	requests := append([]persona.ReplyRequest(nil), client.requests...)
	client.mu.Unlock()
	require.Len(t, requests, 2)
	assert.Equal(t, 5, requests[1].MessageCount)

	_, _ = h.session.End()
	h.session.Wait()
}

// blockingOutput plays until the session context is cancelled.
type blockingOutput struct {
	started chan struct{}
	once    sync.Once
}

func (o *blockingOutput) Prime(context.Context) error { return nil }

func (o *blockingOutput) Speak(ctx context.Context, _ speech.Utterance) error {
	o.once.Do(func() { close(o.started) })
	<-ctx.Done()
	return ctx.Err()
}

func (o *blockingOutput) Cancel() {}

func TestSessionEndNotBlockedBySpeech(t *testing.T) {
	clock := newFakeClock()
	out := &blockingOutput{started: make(chan struct{})}
	session := NewSession("call-2", &fakeClient{greeting: scamGreeting()}, Options{
		Clock:  clock,
		Output: out,
	})
	ctx := context.Background()
	require.NoError(t, session.Start(ctx))

	accepted := make(chan error, 1)
	go func() { accepted <- session.Accept(ctx) }()

	select {
	case <-out.started:
	case <-time.After(time.Second):
		t.Fatal("greeting was never spoken")
	}

	ended := make(chan outcome.Result, 1)
	go func() {
		res, _ := session.End()
		ended <- res
	}()

	select {
	case res := <-ended:
		assert.Equal(t, outcome.Scam, res.CallType)
	case <-time.After(time.Second):
		t.Fatal("End blocked behind speech output")
	}
	require.NoError(t, <-accepted)
	assert.Equal(t, model.PhaseEnded, session.Phase())
	session.Wait()
}
