// Package rate implements rolling-window attempt limiters for the login
// flow.
//
// # Window semantics
//
// Every call to Allow records one attempt under key and then counts the
// attempts recorded within the trailing Window. When that count exceeds
// Max the call fails with [ErrRateLimited]. Rejected attempts are recorded
// too, so a client hammering the endpoint stays locked out until it backs
// off for a full window.
//
// Redis keys are sorted sets scored by attempt time in milliseconds, under
// the prefix "grl:".
//
// # What this package must NOT do
//
//   - Decide what a key means (callers build "login:<ip>" and similar).
//   - Be imported outside the goGate module.
package rate
