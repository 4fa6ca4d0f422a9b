// Package session keeps one game per id: its store, its decision timer and
// the wiring that publishes both to the presentation.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/papal-schism/internal/decision"
	"github.com/jwebster45206/papal-schism/internal/engine"
	"github.com/jwebster45206/papal-schism/pkg/ending"
	"github.com/jwebster45206/papal-schism/pkg/story"
	"github.com/jwebster45206/papal-schism/pkg/storage"
)

// ErrSessionNotFound is returned for an id with neither a live session nor a save.
var ErrSessionNotFound = errors.New("session not found")

// Publisher forwards views and countdowns to remote presentations.
type Publisher interface {
	PublishView(ctx context.Context, gameID uuid.UUID, v engine.View) error
	PublishCountdown(ctx context.Context, gameID uuid.UUID, cd decision.Countdown) error
}

// Gauge tracks how many sessions are live.
type Gauge interface {
	SessionOpened()
	SessionClosed()
}

// Session is one player's game.
type Session struct {
	ID        uuid.UUID
	Store     *engine.Store
	Timer     *decision.Controller
	CreatedAt time.Time

	lastSeen atomic.Int64
	out      outbox
}

// LastSeen is when the session was last looked up.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// outbox holds back a session's publishes until the manager registers it.
// Only the latest held view is kept; countdown steps are kept in order.
type outbox struct {
	mu         sync.Mutex
	open       bool
	view       *engine.View
	countdowns []decision.Countdown
}

// Options configures a Manager. Storage and Graph are required.
type Options struct {
	Storage        storage.Storage
	Graph          *story.Graph
	Resolver       *ending.Resolver
	Logger         *slog.Logger
	Recorder       engine.Recorder
	Gauge          Gauge
	Publisher      Publisher
	Tick           time.Duration
	PersistTimeout time.Duration
	PublishTimeout time.Duration
	// IdleTimeout is how long a session may go unused before Sweep evicts
	// it. Zero keeps sessions until Delete or Close.
	IdleTimeout time.Duration
	Strict      bool
	// OnView and OnTick are local hooks, called after publishing.
	OnView func(uuid.UUID, engine.View)
	OnTick func(uuid.UUID, decision.Countdown)
}

// Manager owns the live sessions.
type Manager struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	// closing holds ids whose evicted session is still flushing its saves.
	closing map[uuid.UUID]chan struct{}
	closed  bool
}

// NewManager creates a new session manager
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 2 * time.Second
	}
	return &Manager{
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[uuid.UUID]*Session),
		closing:  make(map[uuid.UUID]chan struct{}),
	}
}

// Create starts a session with a new id and no save.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s, _, err := m.Open(ctx, uuid.New())
	return s, err
}

// Get returns the live session for id, restoring it from its save if needed.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	s, ok, err := m.live(ctx, id)
	if err != nil || ok {
		return s, err
	}

	s, restored := m.build(ctx, id)
	if !restored {
		m.shutdown(s)
		return nil, ErrSessionNotFound
	}
	return m.adopt(s)
}

// Open returns the session for id, creating a fresh one when there is no save.
// It reports whether a save was restored.
func (m *Manager) Open(ctx context.Context, id uuid.UUID) (*Session, bool, error) {
	s, ok, err := m.live(ctx, id)
	if err != nil || ok {
		return s, false, err
	}
	s, restored := m.build(ctx, id)
	s, err = m.adopt(s)
	return s, restored, err
}

// Delete restarts the game, which clears its save, and drops the session.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		m.closing[id] = make(chan struct{})
	}
	m.mu.Unlock()

	if !ok {
		found, err := m.opts.Storage.LoadGameState(ctx, id)
		if err != nil {
			return err
		}
		if found == nil {
			return ErrSessionNotFound
		}
		return m.opts.Storage.DeleteGameState(ctx, id)
	}

	s.Timer.Stop()
	if _, err := s.Store.Restart(); err != nil {
		m.logger.Warn("Failed to restart deleted session", "session_id", id, "error", err)
	}
	m.retire(s)
	m.logger.Info("Session deleted", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session and flushes pending saves.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[uuid.UUID]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		m.shutdown(s)
		if m.opts.Gauge != nil {
			m.opts.Gauge.SessionClosed()
		}
	}
}

// Sweep evicts sessions unused since now minus the idle timeout, flushing
// their saves. Sessions with a running countdown are kept. A later Get
// restores an evicted session from its save. It returns the number evicted.
func (m *Manager) Sweep(now time.Time) int {
	if m.opts.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-m.opts.IdleTimeout).UnixNano()

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.lastSeen.Load() > cutoff {
			continue
		}
		if _, ticking := s.Timer.Active(); ticking {
			continue
		}
		delete(m.sessions, id)
		m.closing[id] = make(chan struct{})
		idle = append(idle, s)
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.retire(s)
		m.logger.Info("Idle session evicted", "session_id", s.ID, "last_seen", s.LastSeen())
	}
	return len(idle)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if m.opts.IdleTimeout <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				m.logger.Debug("Swept idle sessions", "evicted", n, "live", m.Len())
			}
		}
	}
}

// live returns the registered session for id and marks it used. While an
// evicted session for id is still flushing, it waits so that a rebuild
// reads the final save.
func (m *Manager) live(ctx context.Context, id uuid.UUID) (*Session, bool, error) {
	for {
		m.mu.Lock()
		if s, ok := m.sessions[id]; ok {
			s.touch(time.Now())
			m.mu.Unlock()
			return s, true, nil
		}
		done, closing := m.closing[id]
		m.mu.Unlock()
		if !closing {
			return nil, false, nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// retire shuts down a session already removed from the registry.
func (m *Manager) retire(s *Session) {
	m.shutdown(s)
	if m.opts.Gauge != nil {
		m.opts.Gauge.SessionClosed()
	}
	m.mu.Lock()
	if done, ok := m.closing[s.ID]; ok {
		close(done)
		delete(m.closing, s.ID)
	}
	m.mu.Unlock()
}

// adopt registers s unless another caller got there first, in which case
// s is discarded in favour of the existing session.
func (m *Manager) adopt(s *Session) (*Session, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		m.shutdown(s)
		return nil, errors.New("session manager closed")
	}
	if existing, ok := m.sessions[s.ID]; ok {
		m.mu.Unlock()
		m.shutdown(s)
		return existing, nil
	}
	s.touch(time.Now())
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.release(s)
	if m.opts.Gauge != nil {
		m.opts.Gauge.SessionOpened()
	}
	m.logger.Debug("Session opened", "session_id", s.ID)
	return s, nil
}

// build wires a store and timer for id and loads its save.
func (m *Manager) build(ctx context.Context, id uuid.UUID) (*Session, bool) {
	log := m.logger.With("session_id", id.String())
	s := &Session{ID: id, CreatedAt: time.Now()}

	store := engine.New(m.opts.Graph, engine.Options{
		Persistence:    engine.SaveSlot{Storage: m.opts.Storage, ID: id},
		Resolver:       m.opts.Resolver,
		Logger:         log,
		Recorder:       m.opts.Recorder,
		PersistTimeout: m.opts.PersistTimeout,
		Strict:         m.opts.Strict,
	})
	timer := decision.New(store, decision.Options{
		Tick:   m.opts.Tick,
		Logger: log,
		OnTick: func(cd decision.Countdown) { m.deliverCountdown(s, cd) },
	})
	s.Store, s.Timer = store, timer

	store.Subscribe(timer.Observe)
	store.Subscribe(func(v engine.View) { m.deliverView(s, v) })

	restored := store.Load(ctx)
	return s, restored
}

// deliverView publishes v, or holds it while s is not yet registered.
func (m *Manager) deliverView(s *Session, v engine.View) {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	if !s.out.open {
		s.out.view = &v
		return
	}
	m.publishView(s.ID, v)
}

func (m *Manager) deliverCountdown(s *Session, cd decision.Countdown) {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	if !s.out.open {
		s.out.countdowns = append(s.out.countdowns, cd)
		return
	}
	m.publishCountdown(s.ID, cd)
}

// release opens s's outbox and publishes what it held.
func (m *Manager) release(s *Session) {
	s.out.mu.Lock()
	defer s.out.mu.Unlock()
	s.out.open = true
	if v := s.out.view; v != nil {
		s.out.view = nil
		m.publishView(s.ID, *v)
	}
	for _, cd := range s.out.countdowns {
		m.publishCountdown(s.ID, cd)
	}
	s.out.countdowns = nil
}

func (m *Manager) shutdown(s *Session) {
	s.Timer.Stop()
	s.Store.Close()
}

func (m *Manager) publishView(id uuid.UUID, v engine.View) {
	if m.opts.Publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.PublishTimeout)
		defer cancel()
		if err := m.opts.Publisher.PublishView(ctx, id, v); err != nil {
			m.logger.Warn("Failed to publish view", "session_id", id, "error", err)
		}
	}
	if m.opts.OnView != nil {
		m.opts.OnView(id, v)
	}
}

func (m *Manager) publishCountdown(id uuid.UUID, cd decision.Countdown) {
	if m.opts.Publisher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.PublishTimeout)
		defer cancel()
		if err := m.opts.Publisher.PublishCountdown(ctx, id, cd); err != nil {
			m.logger.Warn("Failed to publish countdown", "session_id", id, "error", err)
		}
	}
	if m.opts.OnTick != nil {
		m.opts.OnTick(id, cd)
	}
}
