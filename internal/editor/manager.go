// Package editor exposes reconcile sessions over HTTP and keeps track of the
// sessions each user has open.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"resume-editor/internal/reconcile"
	"resume-editor/internal/resumes"
	"resume-editor/internal/shared/telemetry"
)

const (
	// DefaultIdleTimeout closes sessions nobody touched for this long.
	DefaultIdleTimeout = 30 * time.Minute

	minReapInterval = time.Second
)

// ErrSessionNotFound is returned for unknown or already closed sessions.
var ErrSessionNotFound = errors.New("session not found")

type entry struct {
	session  *reconcile.Session
	lastSeen time.Time
	streams  int
}

// Manager owns the open editing sessions of the process.
type Manager struct {
	deps        reconcile.Deps
	idleTimeout time.Duration
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

// NewManager constructs a Manager. A non-positive idle timeout uses the default.
func NewManager(deps reconcile.Deps, idleTimeout time.Duration) *Manager {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		deps:        deps,
		idleTimeout: idleTimeout,
		now:         now,
		sessions:    make(map[string]*entry),
	}
}

// Open starts a session for userID. An empty resumeID opens the user's
// current resume.
func (m *Manager) Open(ctx context.Context, userID, resumeID string) (*reconcile.Session, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, reconcile.ErrClosed
	}

	s, err := reconcile.Open(ctx, m.deps, reconcile.OpenRequest{UserID: userID, ResumeID: resumeID})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		go s.Close()
		return nil, reconcile.ErrClosed
	}
	m.sessions[s.ID()] = &entry{session: s, lastSeen: m.now()}
	return s, nil
}

// Get returns an open session owned by userID.
func (m *Manager) Get(userID, sessionID string) (*reconcile.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(userID, sessionID)
	if err != nil {
		return nil, err
	}
	e.lastSeen = m.now()
	return e.session, nil
}

// Attach returns the session and pins it against idle reaping until release
// is called. Event streams hold an attachment for their lifetime.
func (m *Manager) Attach(userID, sessionID string) (*reconcile.Session, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	e.streams++
	e.lastSeen = m.now()

	var once sync.Once
	release := func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			e.streams--
			e.lastSeen = m.now()
		})
	}
	return e.session, release, nil
}

func (m *Manager) lookup(userID, sessionID string) (*entry, error) {
	e, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	select {
	case <-e.session.Done():
		delete(m.sessions, sessionID)
		return nil, ErrSessionNotFound
	default:
	}
	if e.session.UserID() != userID {
		return nil, resumes.ErrForbidden
	}
	return e, nil
}

// CloseSession closes one session owned by userID.
func (m *Manager) CloseSession(userID, sessionID string) error {
	m.mu.Lock()
	e, err := m.lookup(userID, sessionID)
	if err == nil {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if err != nil {
		return err
	}
	e.session.Close()
	return nil
}

// Len reports the number of tracked sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Reap closes sessions idle since before now minus the idle timeout and
// returns how many were closed. Attached sessions are never reaped.
func (m *Manager) Reap(now time.Time) int {
	var stale []*reconcile.Session
	m.mu.Lock()
	for id, e := range m.sessions {
		select {
		case <-e.session.Done():
			delete(m.sessions, id)
			continue
		default:
		}
		if e.streams > 0 || now.Sub(e.lastSeen) < m.idleTimeout {
			continue
		}
		delete(m.sessions, id)
		stale = append(stale, e.session)
	}
	m.mu.Unlock()

	for _, s := range stale {
		telemetry.Info("session.reaped", map[string]any{
			"session_id": s.ID(),
			"resume_id":  s.ResumeID(),
			"user_id":    s.UserID(),
		})
		s.Close()
	}
	return len(stale)
}

// Run reaps idle sessions until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.idleTimeout / 4
	if interval < minReapInterval {
		interval = minReapInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap(m.now())
		}
	}
}

// Close closes every session. Pending debounced saves are dropped, so callers
// that care should Save first.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*reconcile.Session, 0, len(m.sessions))
	for id, e := range m.sessions {
		sessions = append(sessions, e.session)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(s *reconcile.Session) {
			defer wg.Done()
			s.Close()
		}(s)
	}
	wg.Wait()
}

// Flush saves pending edits of every open session. Errors are logged.
func (m *Manager) Flush(ctx context.Context) {
	m.mu.Lock()
	sessions := make([]*reconcile.Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		sessions = append(sessions, e.session)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Save(ctx); err != nil && !errors.Is(err, reconcile.ErrClosed) {
			telemetry.Warn("session.flush_failed", map[string]any{
				"session_id": s.ID(),
				"resume_id":  s.ResumeID(),
				"error":      err.Error(),
			})
		}
	}
}

// CloseUser saves and closes every session owned by userID and returns how
// many were closed.
func (m *Manager) CloseUser(ctx context.Context, userID string) int {
	m.mu.Lock()
	var owned []*reconcile.Session
	for id, e := range m.sessions {
		if e.session.UserID() != userID {
			continue
		}
		delete(m.sessions, id)
		owned = append(owned, e.session)
	}
	m.mu.Unlock()

	for _, s := range owned {
		if err := s.Save(ctx); err != nil && !errors.Is(err, reconcile.ErrClosed) {
			telemetry.Warn("session.flush_failed", map[string]any{
				"session_id": s.ID(),
				"resume_id":  s.ResumeID(),
				"error":      err.Error(),
			})
		}
		s.Close()
	}
	return len(owned)
}
