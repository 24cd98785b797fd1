package client

import (
	"context"
	"sync"
)

// CredentialProvider supplies the bearer token for outgoing requests.
// An empty token sends the request unauthenticated.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
	// Invalidate is called after the server rejected the token with 401
	Invalidate(ctx context.Context)
}

// TokenSink is implemented by providers that accept the token issued by Login
type TokenSink interface {
	SetToken(token string)
}

// StaticCredentials always returns the same token
type StaticCredentials string

// Token returns the fixed token
func (s StaticCredentials) Token(context.Context) (string, error) {
	return string(s), nil
}

// Invalidate is a no-op; a fixed token cannot be refreshed
func (s StaticCredentials) Invalidate(context.Context) {}

// MemoryCredentials holds a token in memory, safe for concurrent use
type MemoryCredentials struct {
	mu    sync.RWMutex
	token string
}

// Token returns the current token, empty when signed out
func (m *MemoryCredentials) Token(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

// SetToken replaces the stored token
func (m *MemoryCredentials) SetToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
}

// Invalidate forgets the stored token
func (m *MemoryCredentials) Invalidate(context.Context) {
	m.SetToken("")
}
