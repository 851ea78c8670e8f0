// Package discovery enumerates Azure subscriptions and the Redis resources
// inside them through Azure Resource Manager.
//
// Two resource families are discovered: single-node caches
// (Microsoft.Cache/Redis) and clustered caches (Microsoft.Cache/redisEnterprise),
// whose databases are listed with one call per cluster. Both families and
// the per-cluster calls run through the same bounded fan-out, and a failing
// unit only removes its own results.
//
// Discovery is advisory: listing operations never return errors. Failures
// are logged and yield empty results.
//
// Requests go through an azcore ARM pipeline whose bearer policy obtains
// management-plane tokens from the token cache for the calling identity.
package discovery
