// Package oauth holds the protocol-level building blocks shared by the
// identity federation subsystem: PKCE and state generation, scope sets,
// identity references, token results and ID token claim extraction.
//
// Nothing in this package performs network I/O. The provider client, the
// token cache and the refresh loop live in internal/oauth and internal/refresh.
package oauth
