// Package oauth implements Entra ID sign-in and the per-identity token
// lifecycle for Azure Cache for Redis connections.
//
// # Architecture
//
// The package follows the OAuth 2.0 Authorization Code flow with PKCE for a
// public client:
//
//  1. FlowManager.BeginAuthorization generates a PKCE verifier and a random
//     state, stores a PendingAuthRequest keyed by the state and returns the
//     provider authorization URL
//  2. The user signs in through their browser
//  3. The browser is redirected to the loopback CallbackServer with code and state
//  4. FlowManager.CompleteAuthorization removes the pending request and then
//     exchanges the code and verifier for tokens
//  5. TokenCache stores the resulting session and publishes a TokenAcquired
//     notification
//
// # Components
//
//   - IdentityProvider / EntraProvider: v2.0 authorize and token endpoints, the
//     account store (identity + refresh token) and an access-token cache per
//     account and scope set
//   - StateStore: pending authorization requests, consumed at most once
//   - FlowManager: begins and completes interactive sign-in
//   - TokenCache: sessions, silent refresh and the acquired-notification channel
//   - Credential: azcore.TokenCredential backed by the TokenCache
//   - CallbackServer: temporary loopback HTTP server for the redirect
//
// # Scopes
//
// Every acquisition names one explicit scope set. Management-plane and
// data-plane tokens for the same identity are separate tokens with separate
// expiries; a token is never assumed valid for both.
//
// # Security
//
// Tokens are held in process memory only and are never persisted or logged.
// A pending request is removed from the StateStore before the code exchange is
// attempted, so a state value is consumed at most once even when a callback is
// delivered twice.
package oauth
