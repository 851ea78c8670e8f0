package oauth

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/redis/redisinsight-azure-auth/internal/clock"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// FlowManager drives the PKCE authorization-code exchange.
type FlowManager struct {
	provider IdentityProvider
	store    *StateStore
	cache    *TokenCache
	scopes   pkgoauth.ScopeSet
	clock    clock.Clock
}

// NewFlowManager creates a flow manager that signs users in for scopes.
func NewFlowManager(provider IdentityProvider, store *StateStore, cache *TokenCache, scopes pkgoauth.ScopeSet, clk clock.Clock) *FlowManager {
	return &FlowManager{
		provider: provider,
		store:    store,
		cache:    cache,
		scopes:   scopes,
		clock:    clock.Or(clk),
	}
}

// BeginAuthorization stores a new pending request for sessionID and returns
// the authorization URL the user should visit.
func (m *FlowManager) BeginAuthorization(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		sessionID = pkgoauth.DefaultSessionID
	}

	verifier, _ := pkgoauth.GeneratePKCERaw()
	state, err := pkgoauth.GenerateState()
	if err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}

	authURL, err := m.provider.AuthCodeURL(state, verifier, m.scopes)
	if err != nil {
		return "", fmt.Errorf("failed to build authorization URL: %w", err)
	}

	m.store.Put(&PendingAuthRequest{
		State:     state,
		Verifier:  verifier,
		SessionID: sessionID,
		Scopes:    m.scopes,
		CreatedAt: m.clock.Now(),
	})

	logging.Debug("OAuth", "Began authorization for session=%s", logging.TruncateSessionID(sessionID))
	return authURL, nil
}

// CompleteAuthorization consumes the pending request for state and exchanges
// code for tokens. The pending request is removed before the exchange, so a
// second call with the same state always fails with ErrInvalidOrExpiredRequest.
func (m *FlowManager) CompleteAuthorization(ctx context.Context, code, state string) (*pkgoauth.TokenResult, error) {
	req, ok := m.store.Take(state)
	if !ok {
		return nil, ErrInvalidOrExpiredRequest
	}

	result, err := m.provider.ExchangeCode(ctx, code, req.Verifier, req.Scopes)
	if err != nil {
		logging.Error("OAuth", err, "Authorization code exchange failed for session=%s", logging.TruncateSessionID(req.SessionID))
		return nil, &ExchangeFailedError{Reason: exchangeReason(err), Err: err}
	}

	m.cache.Store(ctx, req.SessionID, result)

	logging.Info("OAuth", "Successfully completed authorization for session=%s", logging.TruncateSessionID(req.SessionID))
	return result, nil
}

// HandleRedirect processes the query of the redirect target. A redirect
// carrying error abandons the flow and fails with AuthorizationDeniedError.
func (m *FlowManager) HandleRedirect(ctx context.Context, redirectURL string) (*pkgoauth.TokenResult, error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URL: %w", err)
	}
	query := u.Query()

	if code := query.Get("error"); code != "" {
		if state := query.Get("state"); state != "" {
			m.store.Discard(state)
		}
		denied := &AuthorizationDeniedError{Code: code, Description: query.Get("error_description")}
		logging.Warn("OAuth", "Authorization was not granted: %s", denied.Code)
		return nil, denied
	}

	code, state := query.Get("code"), query.Get("state")
	if code == "" {
		return nil, errors.New("redirect is missing the authorization code")
	}
	return m.CompleteAuthorization(ctx, code, state)
}
