// Package session holds the client-side OFS session token.
package session

import "sync"

// Session is the token issued by a successful login. The zero value is an
// empty session. Callers pass the same *Session to every builder call.
type Session struct {
	mu    sync.RWMutex
	token string
}

// New returns a session seeded with token, which may be empty.
func New(token string) *Session {
	return &Session{token: token}
}

// Token returns the current token, or "" for a nil or empty session.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Active reports whether a token is held.
func (s *Session) Active() bool {
	return s.Token() != ""
}

func (s *Session) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) Clear() {
	s.Set("")
}
