// Package dataplane tracks live connections to Redis data-plane endpoints.
//
// A Connection is bound to the identity whose token it authenticated with and
// remembers the expiry of that token. The Registry answers which live
// connections use an identity, which is what the refresh scheduler and the
// reauthenticator need to decide whether an identity is still in use.
//
// ValkeyConnection is the production Connection, built on valkey-go.
package dataplane
