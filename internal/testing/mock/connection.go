package mock

import (
	"context"
	"sync"
	"time"
)

// Reauth records a call to FakeConnection.Reauthenticate.
type Reauth struct {
	Username string
	Token    string
}

// FakeConnection is an in-memory data-plane connection that records
// re-authentication attempts.
type FakeConnection struct {
	id          string
	identityKey string

	mu     sync.Mutex
	expiry time.Time
	err    error
	hook   func(ctx context.Context) error
	calls  []Reauth
	closed bool
}

// NewFakeConnection creates a connection bound to identityKey that last
// authenticated with a token expiring at expiry.
func NewFakeConnection(id, identityKey string, expiry time.Time) *FakeConnection {
	return &FakeConnection{id: id, identityKey: identityKey, expiry: expiry}
}

func (c *FakeConnection) ID() string          { return c.id }
func (c *FakeConnection) IdentityKey() string { return c.identityKey }

func (c *FakeConnection) CachedTokenExpiry() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiry
}

func (c *FakeConnection) SetCachedTokenExpiry(expiresOn time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.expiry = expiresOn
}

// FailWith makes every following Reauthenticate call return err.
func (c *FakeConnection) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// OnReauthenticate installs a hook that runs inside Reauthenticate before the
// result is decided. A non-nil return value becomes the call's error.
func (c *FakeConnection) OnReauthenticate(hook func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hook = hook
}

func (c *FakeConnection) Reauthenticate(ctx context.Context, username, token string) error {
	c.mu.Lock()
	c.calls = append(c.calls, Reauth{Username: username, Token: token})
	hook := c.hook
	err := c.err
	c.mu.Unlock()

	if hook != nil {
		if hookErr := hook(ctx); hookErr != nil {
			return hookErr
		}
	}
	return err
}

// Reauths returns the recorded Reauthenticate calls.
func (c *FakeConnection) Reauths() []Reauth {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Reauth(nil), c.calls...)
}

func (c *FakeConnection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// Closed reports whether Close was called.
func (c *FakeConnection) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
