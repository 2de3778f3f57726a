package goGate

import (
	"net/http"
	"net/url"
)

const (
	// HeaderUserID carries the verified subject to downstream handlers.
	HeaderUserID = "X-User-Id"
	// HeaderUserRole carries the verified role to downstream handlers.
	HeaderUserRole = "X-User-Role"

	// NextParam is the query parameter holding the post-login destination.
	NextParam = "next"

	DefaultLoginPath     = "/login"
	DefaultForbiddenPath = "/unauthorized"

	LegacyLoginPath     = "/admin/login"
	LegacyLogoutPath    = "/admin/logout"
	LegacyForbiddenPath = "/admin/forbidden"
	LegacyHomePath      = "/admin/dashboard"
)

// DecisionKind enumerates the three outcomes a gate can produce.
type DecisionKind uint8

const (
	Continue DecisionKind = iota
	RedirectToLogin
	RedirectToForbidden
)

func (k DecisionKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case RedirectToLogin:
		return "redirect_login"
	case RedirectToForbidden:
		return "redirect_forbidden"
	default:
		return "unknown"
	}
}

// Identity is the authenticated principal behind a request.
type Identity struct {
	Subject string
	Name    string
	Role    Role
}

// Decision is the only thing downstream collaborators observe from a gate.
//
// Location is set for both redirect kinds. Headers is set only when the
// request passed a protected path. Reason records why the request was not
// continued and is meant for logs and metrics, never for clients.
type Decision struct {
	Kind     DecisionKind
	Location string
	Headers  http.Header
	Identity *Identity
	Reason   error
}

// Authorizer turns a classification and an optional identity into a
// [Decision]. The zero value uses [DefaultLoginPath] and [DefaultForbiddenPath].
type Authorizer struct {
	LoginPath     string
	ForbiddenPath string
}

// Decide applies the decision table:
//
//	public                          -> Continue, no headers
//	protected, no identity          -> RedirectToLogin(next=path)
//	protected, role != required     -> RedirectToForbidden
//	protected, otherwise            -> Continue with identity headers
func (a Authorizer) Decide(c Classification, id *Identity, path string) Decision {
	if c.Public {
		return Decision{Kind: Continue}
	}

	if id == nil {
		return Decision{
			Kind:     RedirectToLogin,
			Location: LoginLocation(a.loginPath(), path),
			Reason:   ErrNoCredential,
		}
	}

	if c.HasRequirement && id.Role != c.Required {
		return Decision{
			Kind:     RedirectToForbidden,
			Location: a.forbiddenPath(),
			Identity: id,
			Reason:   ErrInsufficientRole,
		}
	}

	headers := make(http.Header, 2)
	headers.Set(HeaderUserID, id.Subject)
	headers.Set(HeaderUserRole, id.Role.String())
	return Decision{Kind: Continue, Headers: headers, Identity: id}
}

// deny is Decide for a failed credential check; reason replaces the default
// ErrNoCredential so logs keep the real cause.
func (a Authorizer) deny(c Classification, path string, reason error) Decision {
	d := a.Decide(c, nil, path)
	if d.Kind != Continue && reason != nil {
		d.Reason = reason
	}
	return d
}

func (a Authorizer) loginPath() string {
	if a.LoginPath == "" {
		return DefaultLoginPath
	}
	return a.LoginPath
}

func (a Authorizer) forbiddenPath() string {
	if a.ForbiddenPath == "" {
		return DefaultForbiddenPath
	}
	return a.ForbiddenPath
}

// LoginLocation builds the login redirect target with next as the
// return destination.
func LoginLocation(loginPath, next string) string {
	return loginPath + "?" + NextParam + "=" + url.QueryEscape(next)
}
