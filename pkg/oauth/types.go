package oauth

import (
	"slices"
	"strings"
	"time"
)

// DefaultRefreshBuffer is how long before expiry a token is treated as stale.
// Cached tokens inside this window are refreshed, and the refresh scheduler
// fires this long before a token expires.
const DefaultRefreshBuffer = 5 * time.Minute

// DefaultSessionID is the session identifier used by single-user clients.
const DefaultSessionID = "default"

// ScopeSet is an explicit list of scopes requested in one acquisition.
// A token is only ever valid for the scope set it was requested with.
type ScopeSet []string

// String returns the space-separated scope parameter value.
func (s ScopeSet) String() string {
	return strings.Join(s, " ")
}

// Key returns an order-independent key for the scope set.
func (s ScopeSet) Key() string {
	sorted := slices.Clone([]string(s))
	slices.Sort(sorted)
	return strings.Join(slices.Compact(sorted), " ")
}

// Equal reports whether two scope sets contain the same scopes.
func (s ScopeSet) Equal(other ScopeSet) bool {
	return s.Key() == other.Key()
}

// IdentityReference identifies an authenticated account at the identity provider.
// It is immutable once obtained and is the join key between the token cache,
// the refresh scheduler and discovered resources.
type IdentityReference struct {
	// HomeAccountID is unique per identity, tenant and environment ("<oid>.<tid>").
	HomeAccountID string `json:"homeAccountId"`

	// LocalAccountID is the object ID of the user in its tenant. Redis uses it
	// as the username for identity-token authentication.
	LocalAccountID string `json:"localAccountId"`

	TenantID    string `json:"tenantId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// Key returns the identity key used across components.
func (r IdentityReference) Key() string {
	return r.HomeAccountID
}

// TokenResult is produced by every successful acquisition, interactive or silent.
// It is superseded wholesale on refresh and never mutated.
type TokenResult struct {
	Token     string            `json:"-"`
	ExpiresOn time.Time         `json:"expiresOn"`
	Identity  IdentityReference `json:"identity"`
	Scopes    ScopeSet          `json:"scopes"`
}

// IsExpiredWithMargin reports whether the token expires within margin of now.
func (r *TokenResult) IsExpiredWithMargin(now time.Time, margin time.Duration) bool {
	if r == nil {
		return true
	}
	return !now.Before(r.ExpiresOn.Add(-margin))
}
