// Package middleware adapts goGate gates to net/http.
//
// # Adapters
//
//   - [Guard] / [Edge] run a [goGate.Gate] in front of a handler.
//   - [RequireSession] is the legacy admin guard over a session gate.
//   - [VerifyHandler] answers the verify-redirect endpoint used by reverse
//     proxy rewrites.
//   - [RequestLogger] writes one slog line per request.
//
// # Architecture boundaries
//
// Decisions come from the gate. This package only translates them into
// redirects, forwarded identity headers, and request context.
//
// # What this package must NOT do
//
//   - Forward client-supplied identity headers.
//   - Put rejection reasons in responses.
package middleware
