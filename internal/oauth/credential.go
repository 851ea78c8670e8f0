package oauth

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"

	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// ErrNoToken is returned by Credential when no token could be acquired.
var ErrNoToken = errors.New("no token available for identity")

// TokenSource acquires tokens for a known identity without user interaction.
type TokenSource interface {
	AcquireFor(ctx context.Context, identityKey string, scopes pkgoauth.ScopeSet) *pkgoauth.TokenResult
}

// Credential adapts a TokenSource to azcore.TokenCredential for one identity
// and one scope set.
type Credential struct {
	source      TokenSource
	identityKey string
	scopes      pkgoauth.ScopeSet
}

var _ azcore.TokenCredential = (*Credential)(nil)

// NewCredential returns a credential that always requests scopes, whatever
// scopes the calling pipeline asks for.
func NewCredential(source TokenSource, identityKey string, scopes pkgoauth.ScopeSet) *Credential {
	return &Credential{source: source, identityKey: identityKey, scopes: scopes}
}

// GetToken implements azcore.TokenCredential.
func (c *Credential) GetToken(ctx context.Context, _ policy.TokenRequestOptions) (azcore.AccessToken, error) {
	result := c.source.AcquireFor(ctx, c.identityKey, c.scopes)
	if result == nil {
		return azcore.AccessToken{}, ErrNoToken
	}
	return azcore.AccessToken{
		Token:     result.Token,
		ExpiresOn: result.ExpiresOn,
	}, nil
}
