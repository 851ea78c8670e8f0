// Package credentials resolves how to authenticate to a discovered Redis
// database: with a data-plane identity token when one can be acquired,
// otherwise with the database's access key.
package credentials

import (
	"context"
	"errors"

	"github.com/redis/redisinsight-azure-auth/internal/discovery"
	"github.com/redis/redisinsight-azure-auth/pkg/logging"
	pkgoauth "github.com/redis/redisinsight-azure-auth/pkg/oauth"
)

// ErrNoCredential means neither an identity token nor an access key could be
// obtained for the resource.
var ErrNoCredential = errors.New("could not resolve connection credentials")

// AuthKind identifies how a ConnectionCredential authenticates.
type AuthKind string

const (
	AuthKindIdentityToken AuthKind = "identity-token"
	AuthKindAccessKey     AuthKind = "access-key"
)

// ConnectionCredential describes how to connect to a resource. It is derived
// on every (re)connection and never stored.
type ConnectionCredential struct {
	Host     string   `json:"host"`
	Port     int      `json:"port"`
	TLS      bool     `json:"tls"`
	AuthKind AuthKind `json:"authKind"`

	Username string `json:"username,omitempty"`
	// Password holds the access key for access-key credentials.
	Password string `json:"-"`

	// IdentityKey and Token are set for identity-token credentials. The
	// token is sent as the AUTH password when dialing.
	IdentityKey string                `json:"identityKey,omitempty"`
	Token       *pkgoauth.TokenResult `json:"-"`
}

// TokenSource acquires data-plane tokens without user interaction.
type TokenSource interface {
	AcquireFor(ctx context.Context, identityKey string, scopes pkgoauth.ScopeSet) *pkgoauth.TokenResult
}

// KeySource retrieves a resource's primary access key from the management plane.
type KeySource interface {
	GetAccessKey(ctx context.Context, identityKey string, resource discovery.Resource) (string, error)
}

// Resolver applies the identity-token then access-key fallback chain.
type Resolver struct {
	tokens TokenSource
	keys   KeySource
	scopes pkgoauth.ScopeSet
}

// NewResolver creates a resolver requesting dataPlaneScopes for identity tokens.
func NewResolver(tokens TokenSource, keys KeySource, dataPlaneScopes pkgoauth.ScopeSet) *Resolver {
	return &Resolver{tokens: tokens, keys: keys, scopes: dataPlaneScopes}
}

// Resolve returns a credential for resource, or ErrNoCredential when both
// steps of the chain fail.
func (r *Resolver) Resolve(ctx context.Context, identityKey string, resource discovery.Resource) (*ConnectionCredential, error) {
	port := resource.EffectiveTLSPort()

	if token := r.tokens.AcquireFor(ctx, identityKey, r.scopes); token != nil {
		logging.Debug("Credentials", "Using identity token for %s", resource.DisplayName())
		return &ConnectionCredential{
			Host:        resource.Host,
			Port:        port,
			TLS:         true,
			AuthKind:    AuthKindIdentityToken,
			Username:    token.Identity.LocalAccountID,
			IdentityKey: identityKey,
			Token:       token,
		}, nil
	}
	logging.Info("Credentials", "No data-plane token for identity %s, trying access key for %s",
		logging.TruncateKey(identityKey), resource.DisplayName())

	key, err := r.keys.GetAccessKey(ctx, identityKey, resource)
	if err != nil {
		logging.Warn("Credentials", "Access key retrieval for %s failed: %v", resource.DisplayName(), err)
		return nil, ErrNoCredential
	}

	return &ConnectionCredential{
		Host:     resource.Host,
		Port:     port,
		TLS:      true,
		AuthKind: AuthKindAccessKey,
		Password: key,
	}, nil
}
