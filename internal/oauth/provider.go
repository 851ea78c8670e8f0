package oauth

import (
	"context"

	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// SilentRequest asks the provider for a token without user interaction.
type SilentRequest struct {
	HomeAccountID string
	Scopes        pkgoauth.ScopeSet

	// ForceRefresh bypasses the access-token cache and redeems the refresh token.
	ForceRefresh bool
}

// IdentityProvider is the OAuth authorization server plus the account store
// holding the refresh material for each signed-in identity.
type IdentityProvider interface {
	// AuthCodeURL returns the authorization URL for state, embedding the S256
	// challenge derived from verifier and the requested scopes.
	AuthCodeURL(state, verifier string, scopes pkgoauth.ScopeSet) (string, error)

	// ExchangeCode redeems an authorization code and records the signed-in account.
	ExchangeCode(ctx context.Context, code, verifier string, scopes pkgoauth.ScopeSet) (*pkgoauth.TokenResult, error)

	// AcquireTokenSilent returns a token for a known account. It returns
	// ErrAccountNotFound when the account is unknown or was removed while the
	// request was in flight.
	AcquireTokenSilent(ctx context.Context, req SilentRequest) (*pkgoauth.TokenResult, error)

	// Account returns the identity for homeAccountID.
	Account(homeAccountID string) (pkgoauth.IdentityReference, bool)

	// Accounts returns every known identity.
	Accounts() []pkgoauth.IdentityReference

	// RemoveAccount drops the account and all of its tokens.
	RemoveAccount(homeAccountID string)
}
