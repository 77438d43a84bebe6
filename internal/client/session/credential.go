package session

import "sync"

// Credential is the pipeline's cached copy of the active bearer token.
// The manager writes it; the HTTP transport reads it on every request.
// It deliberately holds a copy, never a reference into the store, so the
// store remains the sole owner of the persisted token.
type Credential struct {
	mu  sync.RWMutex
	tok string
}

func NewCredential() *Credential {
	return &Credential{}
}

// Set replaces the cached token.
func (c *Credential) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tok = token
}

// Get returns the cached token, or "" when no session is active.
func (c *Credential) Get() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tok
}

// Clear drops the cached token.
func (c *Credential) Clear() {
	c.Set("")
}
