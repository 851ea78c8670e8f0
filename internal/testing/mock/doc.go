// Package mock provides test doubles for time, the Microsoft identity
// platform, Azure Resource Manager and data-plane connections.
//
// FakeClock implements clock.Clock with a manually advanced time. Timers
// registered through AfterFunc fire synchronously inside Advance, in due
// order, so tests observe refresh scheduling deterministically.
//
// IdentityServer is an httptest-backed authorization server that speaks the
// v2.0 authorize and token endpoints used by the Entra provider. It enforces
// PKCE, issues unsigned ID tokens carrying oid/tid claims, supports the
// refresh_token grant with an explicit scope, and can simulate failures.
//
// ARMServer serves subscription listing, single-node and clustered cache
// listing and listKeys, with paging and injectable failures.
//
// FakeConnection records re-authentications instead of talking to Redis.
package mock
