// Package goGate is a request authentication and role-authorization gate.
//
// Every inbound request is classified against a [RouteTable], its
// credential is checked, and a [Decision] is returned: continue with
// identity headers, redirect to login, or redirect to the forbidden page.
// Two gates share that decision logic:
//
//   - [TokenGate] verifies a signed JWT in the auth-token cookie. It runs
//     at the edge and holds no per-request state.
//   - [SessionGate] resolves an opaque session cookie through a
//     [session.Store]. It backs the legacy admin server.
//
// [Authenticator] implements the legacy login flow that creates those
// sessions.
//
// # Architecture boundaries
//
// Gates never write responses. The middleware package adapts a [Gate] to
// net/http, and the cmd servers wire it into chi and gin.
//
// # What this package must NOT do
//
//   - Trust client-set identity headers or the user_role cookie.
//   - Tell clients why a credential was rejected.
//   - Let a request through when the session store cannot answer.
package goGate
