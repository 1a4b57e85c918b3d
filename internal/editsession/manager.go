package editsession

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("edit session not found")

type managedSession struct {
	session  *Session
	lastSeen time.Time
}

// Manager keeps the open edit sessions of this process keyed by id.
type Manager struct {
	mu       sync.Mutex
	deps     Deps
	opts     []Option
	sessions map[string]*managedSession
	idleTTL  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewManager constructs a Manager. Sessions idle longer than idleTTL are
// closed by Reap; zero disables reaping.
func NewManager(deps Deps, idleTTL time.Duration, opts ...Option) *Manager {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		deps:     deps,
		opts:     opts,
		sessions: make(map[string]*managedSession),
		idleTTL:  idleTTL,
		now:      time.Now,
		logger:   logger,
	}
}

// Open starts a session and returns its id.
func (m *Manager) Open(ctx context.Context, params OpenParams) (string, *Session, error) {
	sess, err := Open(ctx, m.deps, params, m.opts...)
	if err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	m.mu.Lock()
	m.sessions[id] = &managedSession{session: sess, lastSeen: m.now()}
	m.mu.Unlock()
	m.logger.Info("edit session opened",
		slog.String("session_id", id),
		slog.Int64("record_id", params.EditingID),
		slog.String("direction", string(params.Direction)))
	return id, sess, nil
}

// Get returns the session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	entry.lastSeen = m.now()
	return entry.session, nil
}

// Close flushes and removes the session.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	entry, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	m.logger.Info("edit session closed", slog.String("session_id", id))
	return entry.session.Close(ctx)
}

// Forget removes a session that already closed itself.
func (m *Manager) Forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// CloseAll closes every session, flushing pending edits. Used on shutdown.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	entries := m.sessions
	m.sessions = make(map[string]*managedSession)
	m.mu.Unlock()

	var errs []error
	for id, entry := range entries {
		if err := entry.session.Close(ctx); err != nil {
			errs = append(errs, err)
			m.logger.Warn("close edit session", slog.String("session_id", id), slog.Any("error", err))
		}
	}
	return errors.Join(errs...)
}

// Reap closes sessions idle for longer than the TTL and returns how many.
func (m *Manager) Reap(ctx context.Context) int {
	if m.idleTTL <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTTL)
	m.mu.Lock()
	var expired []*Session
	for id, entry := range m.sessions {
		if entry.lastSeen.Before(cutoff) {
			expired = append(expired, entry.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()
	for _, sess := range expired {
		if err := sess.Close(ctx); err != nil {
			m.logger.Warn("reap edit session", slog.Any("error", err))
		}
	}
	return len(expired)
}

// Run reaps on interval until ctx ends.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || m.idleTTL <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Reap(ctx); n > 0 {
				m.logger.Info("reaped idle edit sessions", slog.Int("count", n))
			}
		}
	}
}

// Len reports how many sessions are open.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
