package oauth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/redis/redisinsight-azure-auth/internal/clock"
	"github.com/redis/redisinsight-azure-auth/internal/events"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// Session binds a caller-supplied session identifier to the identity that
// signed in through it and to its interactive token.
type Session struct {
	ID       string
	Identity pkgoauth.IdentityReference
	Result   *pkgoauth.TokenResult

	// identities holds every identity that signed in through this session.
	identities []string
}

// TokenCacheConfig configures a TokenCache.
type TokenCacheConfig struct {
	// RefreshBuffer is how long before expiry a session token is refreshed.
	RefreshBuffer time.Duration
	Clock         clock.Clock
}

// TokenCache owns the per-session token material, performs silent refresh
// through the IdentityProvider and publishes TokenAcquired after every
// successful acquisition.
//
// Refresh operations are best-effort: failures are logged and reported as a
// nil result, never as an error.
type TokenCache struct {
	provider IdentityProvider
	notifier *events.Notifier
	buffer   time.Duration
	clock    clock.Clock

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewTokenCache creates a token cache publishing to notifier.
func NewTokenCache(provider IdentityProvider, notifier *events.Notifier, cfg TokenCacheConfig) *TokenCache {
	buffer := cfg.RefreshBuffer
	if buffer <= 0 {
		buffer = pkgoauth.DefaultRefreshBuffer
	}
	if notifier == nil {
		notifier = events.NewNotifier()
	}
	return &TokenCache{
		provider: provider,
		notifier: notifier,
		buffer:   buffer,
		clock:    clock.Or(cfg.Clock),
		sessions: make(map[string]*Session),
	}
}

// Subscribe registers h for acquired notifications.
func (c *TokenCache) Subscribe(h events.Handler) (unsubscribe func()) {
	return c.notifier.Subscribe(h)
}

// Store creates or replaces the session for sessionID and publishes the acquisition.
func (c *TokenCache) Store(ctx context.Context, sessionID string, result *pkgoauth.TokenResult) {
	key := result.Identity.HomeAccountID

	c.mu.Lock()
	session, ok := c.sessions[sessionID]
	if !ok {
		session = &Session{ID: sessionID}
	}
	identities := session.identities
	if !slices.Contains(identities, key) {
		identities = append(slices.Clone(identities), key)
	}
	c.sessions[sessionID] = &Session{
		ID:         sessionID,
		Identity:   result.Identity,
		Result:     result,
		identities: identities,
	}
	c.mu.Unlock()

	logging.Debug("TokenCache", "Stored session=%s identity=%s", logging.TruncateSessionID(sessionID), logging.TruncateKey(key))
	c.publish(ctx, result)
}

// Session returns a copy of the session for sessionID.
func (c *TokenCache) Session(sessionID string) (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	session, ok := c.sessions[sessionID]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// GetValid returns the session token if it is outside the refresh buffer.
// Otherwise it refreshes the token silently and returns the new one, or nil
// when the session is unknown or the refresh fails.
func (c *TokenCache) GetValid(ctx context.Context, sessionID string) *pkgoauth.TokenResult {
	c.mu.RLock()
	session, ok := c.sessions[sessionID]
	c.mu.RUnlock()

	if !ok {
		return nil
	}
	if !session.Result.IsExpiredWithMargin(c.clock.Now(), c.buffer) {
		return session.Result
	}

	result, err := c.provider.AcquireTokenSilent(ctx, SilentRequest{
		HomeAccountID: session.Identity.HomeAccountID,
		Scopes:        session.Result.Scopes,
		ForceRefresh:  true,
	})
	if err != nil {
		logSilentFailure("session="+logging.TruncateSessionID(sessionID), err)
		return nil
	}

	c.mu.Lock()
	current, stillThere := c.sessions[sessionID]
	sameIdentity := stillThere && current.Identity.HomeAccountID == session.Identity.HomeAccountID
	if sameIdentity {
		updated := *current
		updated.Result = result
		c.sessions[sessionID] = &updated
	}
	c.mu.Unlock()

	if !stillThere {
		logging.Debug("TokenCache", "Session=%s was evicted during refresh, discarding token", logging.TruncateSessionID(sessionID))
		return nil
	}
	if !sameIdentity {
		logging.Debug("TokenCache", "Session=%s changed identity during refresh, discarding token", logging.TruncateSessionID(sessionID))
		return nil
	}

	c.publish(ctx, result)
	return result
}

// RefreshFor requests a new token for identityKey and scopes without user
// interaction, bypassing any cached access token. It returns nil on any failure.
func (c *TokenCache) RefreshFor(ctx context.Context, identityKey string, scopes pkgoauth.ScopeSet) *pkgoauth.TokenResult {
	return c.acquire(ctx, identityKey, scopes, true)
}

// AcquireFor is like RefreshFor but returns a cached access token when it is
// still outside the refresh buffer.
func (c *TokenCache) AcquireFor(ctx context.Context, identityKey string, scopes pkgoauth.ScopeSet) *pkgoauth.TokenResult {
	return c.acquire(ctx, identityKey, scopes, false)
}

func (c *TokenCache) acquire(ctx context.Context, identityKey string, scopes pkgoauth.ScopeSet, force bool) *pkgoauth.TokenResult {
	if _, ok := c.provider.Account(identityKey); !ok {
		logging.Debug("TokenCache", "No cached identity %s", logging.TruncateKey(identityKey))
		return nil
	}

	result, err := c.provider.AcquireTokenSilent(ctx, SilentRequest{
		HomeAccountID: identityKey,
		Scopes:        scopes,
		ForceRefresh:  force,
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			logging.Debug("TokenCache", "Identity %s was removed during refresh", logging.TruncateKey(identityKey))
		} else {
			logSilentFailure(fmt.Sprintf("identity=%s scopes=%q", logging.TruncateKey(identityKey), scopes.String()), err)
		}
		return nil
	}

	c.mu.Lock()
	for id, session := range c.sessions {
		if session.Identity.HomeAccountID == identityKey && session.Result.Scopes.Equal(scopes) {
			updated := *session
			updated.Result = result
			c.sessions[id] = &updated
		}
	}
	c.mu.Unlock()

	c.publish(ctx, result)
	return result
}

// EvictAll removes the session and every identity that signed in through it
// and is not referenced by another session. It returns the removed identity
// keys. Calling it for an unknown session is a no-op.
func (c *TokenCache) EvictAll(sessionID string) []string {
	c.mu.Lock()
	session, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.sessions, sessionID)

	var removed []string
	for _, key := range session.identities {
		if !c.referencedLocked(key) {
			removed = append(removed, key)
		}
	}
	c.mu.Unlock()

	for _, key := range removed {
		c.provider.RemoveAccount(key)
	}

	logging.Info("TokenCache", "Evicted session=%s (%d identities removed)", logging.TruncateSessionID(sessionID), len(removed))
	return removed
}

func (c *TokenCache) referencedLocked(identityKey string) bool {
	for _, s := range c.sessions {
		if slices.Contains(s.identities, identityKey) {
			return true
		}
	}
	return false
}

// logSilentFailure logs a failed silent acquisition. A provider answer that
// asks the user to sign in again is reported at info level.
func logSilentFailure(subject string, err error) {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.IsInteractionRequired() {
		logging.Info("TokenCache", "Sign-in required for %s: %s", subject, pe.Code)
		return
	}
	logging.Warn("TokenCache", "Silent acquisition failed for %s: %v", subject, err)
}

func (c *TokenCache) publish(ctx context.Context, result *pkgoauth.TokenResult) {
	c.notifier.Publish(ctx, events.TokenAcquired{
		IdentityKey: result.Identity.HomeAccountID,
		Result:      result,
	})
}
