// Package session tracks signed-in identities and their profiles. State
// changes fan out on channels so interested components observe logins,
// logouts, and profile refreshes without polling.
package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nabeul-archive/poemap/internal/profile"
)

// Session is one signed-in identity and its profile row.
type Session struct {
	UserID  string           `json:"user_id"`
	Profile *profile.Profile `json:"profile"`
}

// Change is a session state transition delivered to subscribers. Session is
// nil when the user signed out.
type Change struct {
	UserID  string
	Session *Session
}

// Manager owns the active sessions. Thread-safe.
type Manager struct {
	mu       sync.Mutex
	profiles profile.Repository
	active   map[string]*Session
	subs     map[chan Change]struct{}
	logger   *slog.Logger
}

// NewManager creates a session manager over the profile repository.
func NewManager(profiles profile.Repository, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		profiles: profiles,
		active:   make(map[string]*Session),
		subs:     make(map[chan Change]struct{}),
		logger:   logger,
	}
}

// Login resolves the identity's profile, lazily creating it with defaults,
// and publishes the new session.
func (m *Manager) Login(ctx context.Context, userID string) (*Session, error) {
	p, err := m.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	s := &Session{UserID: userID, Profile: p}
	m.mu.Lock()
	m.active[userID] = s
	m.fanOut(Change{UserID: userID, Session: s})
	m.mu.Unlock()

	m.logger.Info("session started",
		slog.String("user_id", userID),
		slog.String("role", p.Role))
	return s, nil
}

// Logout removes the user's session. Subscribers see a nil session.
func (m *Manager) Logout(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.active[userID]; !ok {
		return
	}
	delete(m.active, userID)
	m.fanOut(Change{UserID: userID})
	m.logger.Info("session ended", slog.String("user_id", userID))
}

// Refresh re-reads the user's profile row, picking up balance or role
// changes, and publishes the updated session. Signed-out users are a no-op.
func (m *Manager) Refresh(ctx context.Context, userID string) (*Session, error) {
	m.mu.Lock()
	_, ok := m.active[userID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}

	p, err := m.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s := &Session{UserID: userID, Profile: p}
	m.mu.Lock()
	m.active[userID] = s
	m.fanOut(Change{UserID: userID, Session: s})
	m.mu.Unlock()
	return s, nil
}

// Get returns the user's active session, or nil when signed out.
func (m *Manager) Get(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[userID]
}

// Subscribe registers a listener for session changes. The returned cancel
// func must be called to release the channel. Slow consumers drop changes
// rather than block logins.
func (m *Manager) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, 16)

	m.mu.Lock()
	m.subs[ch] = struct{}{}
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[ch]; ok {
			delete(m.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

// fanOut delivers a change to all subscribers. Callers hold mu.
func (m *Manager) fanOut(c Change) {
	for ch := range m.subs {
		select {
		case ch <- c:
		default:
		}
	}
}
