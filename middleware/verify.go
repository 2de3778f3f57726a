package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	goGate "github.com/MrEthical07/goGate"
)

// RoleParam is the verify endpoint query parameter naming the required role.
const RoleParam = "role"

// VerifyHandler serves GET ?role=<ROLE>&next=<path>. It redirects to next
// when the auth-token cookie carries the role (or any valid token when role
// is empty), to the login page when the token is missing or invalid, and to
// the forbidden page otherwise. next must be a local path; anything else
// becomes "/".
func VerifyHandler(verifier *goGate.TokenVerifier, authz goGate.Authorizer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	login := authz.LoginPath
	if login == "" {
		login = goGate.DefaultLoginPath
	}
	forbidden := authz.ForbiddenPath
	if forbidden == "" {
		forbidden = goGate.DefaultForbiddenPath
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		next := SafeNext(q.Get(goGate.NextParam))

		var cookie string
		if c, err := r.Cookie(goGate.TokenCookie); err == nil {
			cookie = c.Value
		}
		id, err := verifier.Verify(r.Context(), cookie)
		if err != nil {
			redirect(w, r, goGate.LoginLocation(login, next))
			return
		}

		if rawRole := q.Get(RoleParam); rawRole != "" {
			required, known := goGate.LookupRole(rawRole)
			if !known {
				logger.WarnContext(r.Context(), "verify called with unknown role",
					slog.String("role", rawRole),
					slog.String("subject", id.Subject),
				)
				redirect(w, r, forbidden)
				return
			}
			if id.Role != required {
				redirect(w, r, forbidden)
				return
			}
		}

		redirect(w, r, next)
	})
}

// SafeNext returns next when it is a local absolute path and "/" otherwise.
// Scheme-relative ("//host") and backslash forms are rejected.
func SafeNext(next string) string {
	if next == "" || next[0] != '/' {
		return "/"
	}
	if len(next) > 1 && (next[1] == '/' || next[1] == '\\') {
		return "/"
	}
	if strings.ContainsAny(next, "\r\n") {
		return "/"
	}
	return next
}
