package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/sportsedu-client/domain/user"
	"github.com/example/sportsedu-client/gateway"
	"github.com/go-monolith/mono/pkg/types"
)

// Manager owns the bearer token and the current Session.
// It is the gateway's TokenSource.
type Manager struct {
	mu      sync.RWMutex
	store   TokenStore
	token   string
	current *Session
	logger  types.Logger
	now     func() time.Time
}

var _ gateway.TokenSource = (*Manager)(nil)

// NewManager creates a Manager over store.
func NewManager(store TokenStore, logger types.Logger) *Manager {
	if logger == nil {
		logger = gateway.NopLogger()
	}
	return &Manager{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// SetStore replaces the persistence backend. The held token is kept.
func (m *Manager) SetStore(store TokenStore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
}

// Token implements gateway.TokenSource.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// HasToken reports whether a token is held.
func (m *Manager) HasToken() bool {
	return m.Token() != ""
}

// Current returns the established session, or nil.
func (m *Manager) Current() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Load reads the persisted token into memory.
// An expired JWT is cleared from the store and reported as an AuthError.
func (m *Manager) Load(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store == nil {
		return "", nil
	}
	token, err := m.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}
	if token == "" {
		return "", nil
	}
	if tokenExpired(token, m.now()) {
		m.logger.Info("Stored token expired, clearing")
		if err := m.store.Clear(ctx); err != nil {
			m.logger.Warn("Failed to clear expired token", "error", err)
		}
		return "", &gateway.AuthError{Reason: "stored token", Err: gateway.ErrTokenExpired}
	}

	m.token = token
	return token, nil
}

// Adopt persists token and holds it for subsequent requests.
func (m *Manager) Adopt(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Save(ctx, token); err != nil {
			return err
		}
	}
	m.token = token
	m.current = nil
	return nil
}

// Establish creates the Session for u from the held token.
func (m *Manager) Establish(u user.User) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token == "" {
		return nil, &gateway.AuthError{Reason: "establish session", Err: gateway.ErrMissingToken}
	}
	m.current = New(m.token, u, m.now())
	m.logger.Info("Session established", "userID", u.UserID, "role", string(u.Role))
	return m.current, nil
}

// Refresh replaces the user of the current session.
func (m *Manager) Refresh(u user.User) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	m.current = m.current.WithUser(u)
	return m.current
}

// End discards the session and removes the persisted token.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = ""
	m.current = nil
	if m.store == nil {
		return nil
	}
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("Failed to clear stored token", "error", err)
		return err
	}
	return nil
}
