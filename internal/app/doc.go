// Package app wires the identity federation and token lifecycle components
// into one application object.
//
// # Architecture Overview
//
// New builds, leaves first:
//
//  1. **EntraProvider**: talks to the identity platform and holds the signed-in accounts
//  2. **StateStore** and **FlowManager**: the PKCE authorization-code exchange
//  3. **TokenCache**: sessions, silent refresh and the TokenAcquired notifications
//  4. **Registry**: the live data-plane connections
//  5. **Scheduler**: proactive refresh of data-plane tokens in use
//  6. **Reauthenticator**: pushes new tokens to live connections
//  7. **Discovery** and **Credentials** resolvers: management-plane lookups
//
// The Scheduler and the Reauthenticator are subscribed to the TokenCache for
// data-plane acquisitions only. They never call each other; every new token
// reaches them through the notification.
//
// # Lifecycle
//
//	a, err := app.New(cfg)
//	if err != nil {
//	    return err
//	}
//	defer a.Shutdown()
//
//	result, err := a.Login(ctx, oauth.DefaultSessionID)
//	...
//	conn, err := a.Connect(ctx, result.Identity.HomeAccountID, resource)
//
// Logout evicts a session, cancels the refresh cycles of the identities it
// removed and closes their connections. Shutdown tears everything down and is
// safe to call more than once.
package app
