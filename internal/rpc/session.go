package rpc

import (
	"sync"
	"sync/atomic"
)

// HeaderSessionID is the HTTP header stateful backends use to communicate a
// session token. Once a backend emits it, the same header is echoed on every
// subsequent request to that backend.
const HeaderSessionID = "Mcp-Session-Id"

// SessionStore owns per-backend session tokens and the process-wide request
// ID counter. It is safe for concurrent use by multiple goroutines.
// NewSessionStore should be used to create instances of SessionStore.
type SessionStore struct {
	mu        sync.RWMutex
	tokens    map[string]string
	requestID atomic.Int64
}

// NewSessionStore creates an empty, concurrency-safe SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		tokens: make(map[string]string),
	}
}

// Token returns the session token held for a backend, if any.
// Absence of a token is valid: the backend is stateless.
func (s *SessionStore) Token(backendID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[backendID]
	return token, ok
}

// Set stores the session token for a backend, replacing any previous one.
func (s *SessionStore) Set(backendID, token string) {
	if backendID == "" || token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[backendID] = token
}

// Invalidate clears the stored token for a backend. The next stateful call
// re-runs the initialize handshake.
func (s *SessionStore) Invalidate(backendID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, backendID)
}

// NextRequestID returns a process-wide monotonically increasing request ID,
// unique across all backends for the process lifetime.
func (s *SessionStore) NextRequestID() int64 {
	return s.requestID.Add(1)
}
