// Package events carries token acquisition notifications between the token
// cache and its subscribers.
//
// The token cache publishes a TokenAcquired notification after every
// successful acquisition, interactive or silent. The refresh scheduler uses it
// to re-arm timers and the re-authentication coordinator uses it to push fresh
// tokens to open data-plane connections. Because notifications are emitted for
// both management and data-plane scopes, subscribers that care only about one
// scope set wrap their handler with ForScopes.
//
// Handlers run sequentially on the publishing goroutine. A failing or
// panicking handler is logged and does not prevent the remaining handlers from
// running.
package events
