package authserver

import "sync"

// Credentials holds the bearer token a Client presents to the authorization
// server. Each Client owns its holder; there is no process-wide token.
type Credentials struct {
	mu    sync.RWMutex
	token string
}

// NewCredentials creates a holder, optionally pre-loaded with token
func NewCredentials(token string) *Credentials {
	return &Credentials{token: token}
}

// Set replaces the token; an empty token clears it
func (c *Credentials) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Clear drops the token
func (c *Credentials) Clear() {
	c.Set("")
}

// Token returns the current token, empty when none is set
func (c *Credentials) Token() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}
