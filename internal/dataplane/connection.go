package dataplane

import (
	"context"
	"time"
)

// Connection is a live data-plane connection bound to one identity.
type Connection interface {
	// ID uniquely identifies the connection within a Registry.
	ID() string

	// IdentityKey is the home account ID of the identity the connection
	// authenticated with. It is empty for access-key connections.
	IdentityKey() string

	// CachedTokenExpiry is the expiry of the token the connection last
	// authenticated with.
	CachedTokenExpiry() time.Time
	SetCachedTokenExpiry(expiresOn time.Time)

	// Reauthenticate re-runs authentication on the open connection.
	Reauthenticate(ctx context.Context, username, token string) error

	Close()
}
