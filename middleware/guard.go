package middleware

import (
	"log/slog"
	"net/http"
	"net/url"

	goGate "github.com/MrEthical07/goGate"
)

// Options tunes [Guard].
type Options struct {
	Logger  *slog.Logger
	Metrics *goGate.Metrics
}

// Guard runs gate for every request. Inbound identity headers are always
// removed first; on Continue the gate's headers are set on the request
// passed to next and the identity is stored in its context. Redirect
// decisions are answered with 302 Found. Requests for a non-canonical path
// are redirected to the cleaned path before the gate runs.
func Guard(gate goGate.Gate, opts Options) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if stripIdentityHeaders(r) {
				opts.Metrics.Inc(goGate.MetricSpoofedHeaderStripped)
				logger.WarnContext(r.Context(), "client sent identity headers",
					slog.String("path", r.URL.Path),
					slog.String("remote", r.RemoteAddr),
				)
			}

			if clean := goGate.CleanPath(r.URL.Path); clean != r.URL.Path {
				redirectCanonical(w, r, clean)
				return
			}

			d := gate.Decide(r)
			if d.Kind != goGate.Continue {
				redirect(w, r, d.Location)
				return
			}

			for name, values := range d.Headers {
				for _, v := range values {
					r.Header.Add(name, v)
				}
			}
			if d.Identity != nil {
				r = r.WithContext(goGate.WithIdentity(r.Context(), d.Identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func stripIdentityHeaders(r *http.Request) bool {
	found := false
	for _, name := range []string{goGate.HeaderUserID, goGate.HeaderUserRole} {
		if _, ok := r.Header[http.CanonicalHeaderKey(name)]; ok {
			r.Header.Del(name)
			found = true
		}
	}
	return found
}

func redirect(w http.ResponseWriter, r *http.Request, location string) {
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, location, http.StatusFound)
}

// redirectCanonical keeps the query. GET and HEAD get 301; other methods get
// 308 so the body is resent.
func redirectCanonical(w http.ResponseWriter, r *http.Request, clean string) {
	target := url.URL{Path: clean, RawQuery: r.URL.RawQuery}
	code := http.StatusMovedPermanently
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		code = http.StatusPermanentRedirect
	}
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target.String(), code)
}
