package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/redis/redisinsight-azure-auth/internal/clock"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// EntraConfig configures an EntraProvider.
type EntraConfig struct {
	ClientID    string
	Authority   string
	RedirectURI string

	// RefreshMargin is how close to expiry a cached access token may be
	// before a silent request redeems the refresh token instead.
	RefreshMargin time.Duration

	HTTPClient *http.Client
	Clock      clock.Clock
}

type account struct {
	identity     pkgoauth.IdentityReference
	refreshToken string
}

// EntraProvider talks to the Microsoft identity platform v2.0 endpoints of a
// tenant-scoped authority and keeps the accounts that signed in through it.
type EntraProvider struct {
	oauthConfig   *oauth2.Config
	tokenEndpoint string
	httpClient    *http.Client
	clock         clock.Clock
	margin        time.Duration

	mu           sync.RWMutex
	accounts     map[string]*account
	accessTokens map[string]*pkgoauth.TokenResult

	refreshGroup singleflight.Group
}

var _ IdentityProvider = (*EntraProvider)(nil)

// NewEntraProvider creates a provider for the given authority, for example
// https://login.microsoftonline.com/organizations.
func NewEntraProvider(cfg EntraConfig) *EntraProvider {
	authority := strings.TrimSuffix(cfg.Authority, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	margin := cfg.RefreshMargin
	if margin <= 0 {
		margin = pkgoauth.DefaultRefreshBuffer
	}

	p := &EntraProvider{
		oauthConfig: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authority + "/oauth2/v2.0/authorize",
				TokenURL:  authority + "/oauth2/v2.0/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		tokenEndpoint: authority + "/oauth2/v2.0/token",
		httpClient:    httpClient,
		clock:         clock.Or(cfg.Clock),
		margin:        margin,
		accounts:      make(map[string]*account),
		accessTokens:  make(map[string]*pkgoauth.TokenResult),
	}

	logging.Debug("OAuth", "Entra provider initialized (authority=%s, clientID=%s)", authority, cfg.ClientID)
	return p
}

// AuthCodeURL builds the authorization URL with an S256 PKCE challenge.
func (p *EntraProvider) AuthCodeURL(state, verifier string, scopes pkgoauth.ScopeSet) (string, error) {
	if state == "" || verifier == "" {
		return "", fmt.Errorf("state and verifier are required")
	}
	if len(scopes) == 0 {
		return "", fmt.Errorf("at least one scope is required")
	}

	return p.oauthConfig.AuthCodeURL(state,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("scope", scopes.String()),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	), nil
}

// ExchangeCode redeems code and records the account described by the ID token.
func (p *EntraProvider) ExchangeCode(ctx context.Context, code, verifier string, scopes pkgoauth.ScopeSet) (*pkgoauth.TokenResult, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.oauthConfig.Exchange(ctx, code,
		oauth2.VerifierOption(verifier),
		oauth2.SetAuthURLParam("scope", scopes.String()),
	)
	if err != nil {
		return nil, providerErrorFrom(err)
	}

	idToken, _ := tok.Extra("id_token").(string)
	claims, err := pkgoauth.ParseIDTokenClaims(idToken)
	if err != nil {
		return nil, fmt.Errorf("token response did not identify the account: %w", err)
	}
	identity, err := claims.Identity()
	if err != nil {
		return nil, fmt.Errorf("token response did not identify the account: %w", err)
	}

	result := &pkgoauth.TokenResult{
		Token:     tok.AccessToken,
		ExpiresOn: p.expiresOn(tok.ExpiresIn, tok.Expiry),
		Identity:  identity,
		Scopes:    scopes,
	}

	p.mu.Lock()
	p.accounts[identity.HomeAccountID] = &account{identity: identity, refreshToken: tok.RefreshToken}
	p.accessTokens[tokenKey(identity.HomeAccountID, scopes)] = result
	p.mu.Unlock()

	logging.Info("OAuth", "Signed in %s (account=%s)", identity.Username, logging.TruncateKey(identity.HomeAccountID))
	return result, nil
}

// AcquireTokenSilent returns a cached access token that is outside the
// refresh margin, or redeems the account's refresh token for req.Scopes.
// Concurrent requests for the same account and scope set share one redemption.
func (p *EntraProvider) AcquireTokenSilent(ctx context.Context, req SilentRequest) (*pkgoauth.TokenResult, error) {
	key := tokenKey(req.HomeAccountID, req.Scopes)

	p.mu.RLock()
	_, known := p.accounts[req.HomeAccountID]
	cached := p.accessTokens[key]
	p.mu.RUnlock()

	if !known {
		return nil, ErrAccountNotFound
	}
	if !req.ForceRefresh && cached != nil && !cached.IsExpiredWithMargin(p.clock.Now(), p.margin) {
		return cached, nil
	}

	result, err, _ := p.refreshGroup.Do(key, func() (interface{}, error) {
		return p.redeemRefreshToken(ctx, req.HomeAccountID, req.Scopes)
	})
	if err != nil {
		return nil, err
	}
	return result.(*pkgoauth.TokenResult), nil
}

func (p *EntraProvider) redeemRefreshToken(ctx context.Context, homeAccountID string, scopes pkgoauth.ScopeSet) (*pkgoauth.TokenResult, error) {
	p.mu.RLock()
	acct, ok := p.accounts[homeAccountID]
	var refreshToken string
	if ok {
		refreshToken = acct.refreshToken
	}
	p.mu.RUnlock()

	if !ok {
		return nil, ErrAccountNotFound
	}
	if refreshToken == "" {
		return nil, fmt.Errorf("no refresh token available for account")
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", p.oauthConfig.ClientID)
	data.Set("refresh_token", refreshToken)
	data.Set("scope", scopes.String())

	resp, err := p.doTokenRequest(ctx, data)
	if err != nil {
		return nil, err
	}

	result := &pkgoauth.TokenResult{
		Token:     resp.AccessToken,
		ExpiresOn: p.expiresOn(resp.ExpiresIn, time.Time{}),
		Identity:  acct.identity,
		Scopes:    scopes,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// The account may have been removed while the request was in flight.
	if p.accounts[homeAccountID] != acct {
		logging.Debug("OAuth", "Discarding refreshed token for removed account=%s", logging.TruncateKey(homeAccountID))
		return nil, ErrAccountNotFound
	}
	if resp.RefreshToken != "" {
		acct.refreshToken = resp.RefreshToken
	}
	p.accessTokens[tokenKey(homeAccountID, scopes)] = result

	logging.Debug("OAuth", "Refreshed token for account=%s scopes=%q (expires_in=%d)",
		logging.TruncateKey(homeAccountID), scopes.String(), resp.ExpiresIn)
	return result, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// doTokenRequest posts a form to the token endpoint and decodes the response.
func (p *EntraProvider) doTokenRequest(ctx context.Context, data url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp tokenErrorResponse
		_ = json.Unmarshal(body, &errResp)
		if errResp.Error == "" {
			errResp.Error = "server_error"
		}
		return nil, &ProviderError{
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
			StatusCode:  resp.StatusCode,
		}
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("token response is missing access_token")
	}
	return &token, nil
}

// Account returns the identity for homeAccountID.
func (p *EntraProvider) Account(homeAccountID string) (pkgoauth.IdentityReference, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	acct, ok := p.accounts[homeAccountID]
	if !ok {
		return pkgoauth.IdentityReference{}, false
	}
	return acct.identity, true
}

// Accounts returns every known identity.
func (p *EntraProvider) Accounts() []pkgoauth.IdentityReference {
	p.mu.RLock()
	defer p.mu.RUnlock()

	identities := make([]pkgoauth.IdentityReference, 0, len(p.accounts))
	for _, acct := range p.accounts {
		identities = append(identities, acct.identity)
	}
	return identities
}

// RemoveAccount drops the account, its refresh token and its access tokens.
func (p *EntraProvider) RemoveAccount(homeAccountID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.accounts, homeAccountID)
	prefix := homeAccountID + "|"
	for key := range p.accessTokens {
		if strings.HasPrefix(key, prefix) {
			delete(p.accessTokens, key)
		}
	}
}

func (p *EntraProvider) expiresOn(expiresIn int64, fallback time.Time) time.Time {
	if expiresIn > 0 {
		return p.clock.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	if !fallback.IsZero() {
		return fallback
	}
	return p.clock.Now().Add(time.Hour)
}

func tokenKey(homeAccountID string, scopes pkgoauth.ScopeSet) string {
	return homeAccountID + "|" + scopes.Key()
}
