// Package refresh keeps data-plane tokens fresh while they are in use.
//
// The Scheduler holds at most one timer per identity. Each timer fires
// RefreshBuffer before the identity's token expires. When it fires and the
// identity still has live connections, the Scheduler asks the token cache for
// a new token; the acquisition notification that follows schedules the next
// timer, so the cycle continues for as long as connections exist. When no
// connection uses the identity, or the refresh fails, the cycle ends.
//
// Per identity the Scheduler moves through Idle, Scheduled and Firing:
//
//	Idle --Schedule--> Scheduled --timer--> Firing --acquired--> Scheduled
//	                                               \--no connections / failure--> Idle
package refresh
