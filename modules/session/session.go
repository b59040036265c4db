package session

import (
	"time"

	"github.com/example/sportsedu-client/domain/user"
)

// Session is the signed-in state. It is never mutated; a profile change produces a new Session.
type Session struct {
	token     string
	user      user.User
	startedAt time.Time
}

// New creates a Session.
func New(token string, u user.User, startedAt time.Time) *Session {
	return &Session{token: token, user: u, startedAt: startedAt}
}

// Token returns the bearer token.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.token
}

// User returns the signed-in user.
func (s *Session) User() user.User {
	return s.user
}

// UserID returns the signed-in user's id.
func (s *Session) UserID() int64 {
	return s.user.UserID
}

// IsAdmin reports whether the user has the ADMIN role.
func (s *Session) IsAdmin() bool {
	return s != nil && s.user.Role.IsAdmin()
}

// StartedAt returns when the session was established.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Owns reports whether senderID is the signed-in user.
func (s *Session) Owns(senderID int64) bool {
	return s != nil && senderID == s.user.UserID
}

// WithUser returns a copy carrying an updated profile.
func (s *Session) WithUser(u user.User) *Session {
	return &Session{token: s.token, user: u, startedAt: s.startedAt}
}
