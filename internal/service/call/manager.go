package call

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/zhouzirui/swipesafe/backend/internal/config"
	model "github.com/zhouzirui/swipesafe/backend/internal/model/call"
	"github.com/zhouzirui/swipesafe/backend/internal/service/persona"
)

// Manager owns the live call sessions. Sessions share no mutable state with
// each other; the manager only indexes them.
type Manager struct {
	client   persona.Client
	recorder Recorder
	cfg      config.CallConfig
	clock    Clock

	mu       sync.RWMutex
	sessions map[string]*Session

	cron *cron.Cron
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithClock overrides the wall clock, mainly for tests.
func WithClock(c Clock) ManagerOption {
	return func(m *Manager) { m.clock = c }
}

// NewManager 创建会话管理器，recorder 可以为 nil。
func NewManager(client persona.Client, recorder Recorder, cfg config.CallConfig, opts ...ManagerOption) *Manager {
	m := &Manager{
		client:   client,
		recorder: recorder,
		cfg:      cfg,
		clock:    SystemClock(),
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRequest 描述新建通话的参数。
type CreateRequest struct {
	PlayerID string `json:"playerId"`
}

// Create 新建会话并立即拉取开场白，返回时会话处于 ringing。
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*Session, error) {
	id := uuid.NewString()
	session := NewSession(id, m.client, Options{
		PlayerID:      req.PlayerID,
		MaxDuration:   m.cfg.MaxDuration,
		FallbackDelay: m.cfg.FallbackDelay,
		ReplyDelay:    UniformDelay(m.cfg.ReplyDelayMin, m.cfg.ReplyDelayMax),
		Clock:         m.clock,
		Recorder:      m.recorder,
	})

	if err := session.Start(ctx); err != nil {
		return nil, fmt.Errorf("start call: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = session
	m.mu.Unlock()

	return session, nil
}

// Get retrieves a session by identifier.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// List returns snapshots of all tracked sessions, newest first.
func (m *Manager) List() []model.Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	snaps := make([]model.Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})
	return snaps
}

// Reap 移除已结束超过 ReapAfter 的会话，返回移除数量。
func (m *Manager) Reap() int {
	cutoff := m.clock.Now().Add(-m.cfg.ReapAfter)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		snap := s.Snapshot()
		if snap.Phase != model.PhaseEnded || snap.EndedAt == nil || snap.EndedAt.After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		s.hub.Close()
		removed++
	}
	if removed > 0 {
		slog.Info("[call] reaped ended sessions", "count", removed)
	}
	return removed
}

// StartReaper schedules Reap on the configured cron schedule.
func (m *Manager) StartReaper() error {
	if m.cfg.ReapSchedule == "" {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(m.cfg.ReapSchedule, func() { m.Reap() }); err != nil {
		return fmt.Errorf("invalid CALL_REAP_SCHEDULE %q: %w", m.cfg.ReapSchedule, err)
	}
	c.Start()
	m.cron = c
	return nil
}

// Shutdown 停止定时任务并结束所有未完成的通话，等待后台任务退出。
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.cron != nil {
		<-m.cron.Stop().Done()
	}

	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		if s.Phase() != model.PhaseEnded {
			if _, err := s.end(model.EndShutdown); err != nil {
				slog.Warn("[call] end on shutdown failed", "session", s.id, "err", err)
			}
		}
	}

	done := make(chan struct{})
	go func() {
		for _, s := range sessions {
			s.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
