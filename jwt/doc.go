// Package jwt issues and verifies the signed auth-token cookie used by the
// edge gate. Verification is strict: the algorithm is pinned, exp is
// required, and issuer/audience are checked when configured.
//
// # What this package must NOT do
//
//   - Import goGate (no upward imports).
//   - Interpret roles; the role claim is returned as the raw string.
package jwt
