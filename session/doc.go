// Package session persists the server-side state behind the legacy session
// cookie.
//
// A [State] is written once at login and never mutated; readers receive
// copies, so a request observes one consistent snapshot. Two [Store]
// implementations are provided: [MemoryStore] for single-process and test
// use, and [RedisStore] for shared deployments.
//
// # What this package must NOT do
//
//   - Import goGate or the jwt package (no upward imports).
//   - Make authorization decisions.
//   - Store password material in [State].
package session
