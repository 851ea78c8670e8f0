// Package reauth re-authenticates live data-plane connections whenever a new
// token is acquired for the identity they are bound to.
package reauth

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redis/redisinsight-azure-auth/internal/dataplane"
	"github.com/redis/redisinsight-azure-auth/internal/events"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// DefaultTimeout bounds re-authentication of a single connection.
const DefaultTimeout = 30 * time.Second

// ConnectionSource reports the live connections bound to an identity.
type ConnectionSource interface {
	ConnectionsByIdentity(identityKey string) []dataplane.Connection
}

// Outcome summarizes one fan-out.
type Outcome struct {
	Reauthenticated int
	Skipped         int
	Failed          int
}

// Reauthenticator pushes newly acquired tokens to live connections.
type Reauthenticator struct {
	connections ConnectionSource
	timeout     time.Duration
}

// New creates a Reauthenticator. A non-positive timeout selects DefaultTimeout.
func New(connections ConnectionSource, timeout time.Duration) *Reauthenticator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Reauthenticator{connections: connections, timeout: timeout}
}

// OnTokenAcquired re-authenticates the identity's stale connections.
func (r *Reauthenticator) OnTokenAcquired(ctx context.Context, event events.TokenAcquired) error {
	if event.Result == nil {
		return nil
	}
	r.Reauthenticate(ctx, event.IdentityKey, event.Result)
	return nil
}

// Reauthenticate sends result to every connection bound to identityKey whose
// cached token expiry differs from result.ExpiresOn. Connections are handled
// in parallel and a failure on one does not affect the others.
func (r *Reauthenticator) Reauthenticate(ctx context.Context, identityKey string, result *pkgoauth.TokenResult) Outcome {
	var stale []dataplane.Connection
	var outcome Outcome
	for _, c := range r.connections.ConnectionsByIdentity(identityKey) {
		if c.CachedTokenExpiry().Equal(result.ExpiresOn) {
			outcome.Skipped++
			continue
		}
		stale = append(stale, c)
	}
	if len(stale) == 0 {
		return outcome
	}

	username := result.Identity.LocalAccountID
	var succeeded, failed atomic.Int32

	// Each goroutine reports success so one failure never cancels siblings.
	var g errgroup.Group
	for _, c := range stale {
		g.Go(func() error {
			connCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
			defer cancel()

			if err := c.Reauthenticate(connCtx, username, result.Token); err != nil {
				failed.Add(1)
				logging.Warn("Reauth", "Re-authentication of connection %s for identity %s failed: %v",
					c.ID(), logging.TruncateKey(identityKey), err)
				return nil
			}
			c.SetCachedTokenExpiry(result.ExpiresOn)
			succeeded.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	outcome.Reauthenticated = int(succeeded.Load())
	outcome.Failed = int(failed.Load())
	logging.Info("Reauth", "Identity %s: %d connections re-authenticated, %d failed, %d already current",
		logging.TruncateKey(identityKey), outcome.Reauthenticated, outcome.Failed, outcome.Skipped)
	return outcome
}
