// Package session owns the process-wide POS operator session: the bearer
// credential obtained at login and the last reservation identifier kept for
// convenience reuse. The value is injected into every component that needs
// it instead of living in ambient globals, so tests can build a fresh one.
package session

import "sync"

type Context struct {
	mu         sync.RWMutex
	credential string
	lastID     string
}

func New() *Context { return &Context{} }

// SetCredential stores the bearer token. Re-authentication overwrites the
// previous credential; there is no explicit expiry handling.
func (c *Context) SetCredential(token string) {
	c.mu.Lock()
	c.credential = token
	c.mu.Unlock()
}

// Credential returns the active bearer token, or "" when not authenticated.
// Callers must treat the value as current at call time, not snapshotted.
func (c *Context) Credential() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credential
}

func (c *Context) Authenticated() bool { return c.Credential() != "" }

// SetLastReservationID records the identifier returned by the most recent
// reservation creation. Only reservation creation writes this value.
func (c *Context) SetLastReservationID(id string) {
	c.mu.Lock()
	c.lastID = id
	c.mu.Unlock()
}

func (c *Context) LastReservationID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastID
}

// ResolveOrderID falls back to the last reservation identifier when the
// caller supplied none, matching the terminal's default-identifier reuse.
func (c *Context) ResolveOrderID(id string) string {
	if id != "" {
		return id
	}
	return c.LastReservationID()
}
