package middleware

import (
	"net/http"
	"time"

	goGate "github.com/MrEthical07/goGate"
)

// RequireSession guards the legacy admin area with a session gate.
func RequireSession(gate *goGate.SessionGate, opts Options) func(http.Handler) http.Handler {
	return Guard(gate, opts)
}

// CookieOptions controls the session cookie attributes.
type CookieOptions struct {
	Name   string
	MaxAge time.Duration
	Secure bool
}

func (o CookieOptions) name() string {
	if o.Name == "" {
		return goGate.SessionCookie
	}
	return o.Name
}

// SetSessionCookie writes the session cookie: HttpOnly, SameSite=Lax,
// Path=/, and MaxAge from o (24h when zero).
func SetSessionCookie(w http.ResponseWriter, sessionID string, o CookieOptions) {
	maxAge := o.MaxAge
	if maxAge <= 0 {
		maxAge = goGate.DefaultSessionTTL
	}
	http.SetCookie(w, &http.Cookie{
		Name:     o.name(),
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(w http.ResponseWriter, o CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     o.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionID returns the session cookie value, or "".
func SessionID(r *http.Request, o CookieOptions) string {
	c, err := r.Cookie(o.name())
	if err != nil {
		return ""
	}
	return c.Value
}
