package goGate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/MrEthical07/goGate/session"
)

const (
	// TokenCookie holds the signed auth token read by [TokenGate].
	TokenCookie = "auth-token"
	// RoleHintCookie is a client-readable role hint set by the frontend. It
	// is never used for authorization.
	RoleHintCookie = "user_role"
	// SessionCookie holds the opaque session ID read by [SessionGate].
	SessionCookie = "gate_sid"
)

const (
	DefaultStoreAttempts       = 2
	DefaultStoreAttemptTimeout = 250 * time.Millisecond
	DefaultStoreBackoff        = 50 * time.Millisecond
)

// Gate decides what happens to a request. Implementations never write to
// the response; adapters in the middleware package do.
type Gate interface {
	Decide(r *http.Request) Decision
}

type gateOptions struct {
	logger         *slog.Logger
	metrics        *Metrics
	authz          Authorizer
	cookie         string
	attempts       int
	attemptTimeout time.Duration
	backoff        time.Duration
}

// GateOption configures a gate.
type GateOption func(*gateOptions)

// WithLogger sets the gate logger. The default is slog.Default().
func WithLogger(l *slog.Logger) GateOption {
	return func(o *gateOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics makes the gate record decision counters and latency.
func WithMetrics(m *Metrics) GateOption {
	return func(o *gateOptions) { o.metrics = m }
}

// WithAuthorizer overrides the login and forbidden redirect targets.
func WithAuthorizer(a Authorizer) GateOption {
	return func(o *gateOptions) { o.authz = a }
}

// WithCookieName overrides the cookie the gate reads its credential from.
func WithCookieName(name string) GateOption {
	return func(o *gateOptions) {
		if name != "" {
			o.cookie = name
		}
	}
}

// WithStoreRetry bounds session lookups: at most attempts tries, each
// limited to timeout, with backoff between them. Non-positive attempts or
// timeout and a negative backoff keep the defaults.
func WithStoreRetry(attempts int, timeout, backoff time.Duration) GateOption {
	return func(o *gateOptions) {
		if attempts > 0 {
			o.attempts = attempts
		}
		if timeout > 0 {
			o.attemptTimeout = timeout
		}
		if backoff >= 0 {
			o.backoff = backoff
		}
	}
}

func newGateOptions(cookie string, opts []GateOption) gateOptions {
	o := gateOptions{
		logger:         slog.Default(),
		cookie:         cookie,
		attempts:       DefaultStoreAttempts,
		attemptTimeout: DefaultStoreAttemptTimeout,
		backoff:        DefaultStoreBackoff,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TokenGate authenticates requests with the signed auth-token cookie.
type TokenGate struct {
	routes   RouteTable
	verifier *TokenVerifier
	opts     gateOptions
}

// NewTokenGate builds the edge gate.
func NewTokenGate(routes RouteTable, verifier *TokenVerifier, opts ...GateOption) *TokenGate {
	return &TokenGate{routes: routes, verifier: verifier, opts: newGateOptions(TokenCookie, opts)}
}

func (g *TokenGate) Decide(r *http.Request) Decision {
	start := time.Now()
	path := r.URL.Path
	c := g.routes.Classify(path)

	var d Decision
	if c.Public {
		d = Decision{Kind: Continue}
	} else if id, err := g.verifier.Verify(r.Context(), cookieValue(r, g.opts.cookie)); err != nil {
		d = g.opts.authz.deny(c, path, err)
	} else {
		g.checkRoleHint(r, id)
		d = g.opts.authz.Decide(c, id, path)
	}

	g.opts.metrics.recordDecision(d, time.Since(start))
	logDecision(r.Context(), g.opts.logger, "edge", path, d)
	return d
}

// checkRoleHint warns when the client-side role cookie disagrees with the
// signed claim. The signed claim always wins.
func (g *TokenGate) checkRoleHint(r *http.Request, id *Identity) {
	hint := cookieValue(r, RoleHintCookie)
	if hint == "" {
		return
	}
	if hinted, ok := LookupRole(hint); ok && hinted == id.Role {
		return
	}
	g.opts.metrics.Inc(MetricRoleCookieMismatch)
	g.opts.logger.WarnContext(r.Context(), "role hint cookie disagrees with signed role",
		slog.String("subject", id.Subject),
		slog.String("signed_role", id.Role.String()),
		slog.String("cookie_role", hint),
	)
}

// SessionGate authenticates requests with the opaque session cookie.
type SessionGate struct {
	routes RouteTable
	store  session.Store
	opts   gateOptions
}

// NewSessionGate builds the legacy gate.
func NewSessionGate(routes RouteTable, store session.Store, opts ...GateOption) *SessionGate {
	return &SessionGate{routes: routes, store: store, opts: newGateOptions(SessionCookie, opts)}
}

func (g *SessionGate) Decide(r *http.Request) Decision {
	start := time.Now()
	path := r.URL.Path
	c := g.routes.Classify(path)

	var d Decision
	if c.Public {
		d = Decision{Kind: Continue}
	} else if id, err := g.Identify(r.Context(), cookieValue(r, g.opts.cookie)); err != nil {
		d = g.opts.authz.deny(c, path, err)
	} else {
		d = g.opts.authz.Decide(c, id, path)
	}

	g.opts.metrics.recordDecision(d, time.Since(start))
	logDecision(r.Context(), g.opts.logger, "session", path, d)
	return d
}

// Identify resolves a session ID to an identity. It returns
// ErrNoCredential for empty or unknown IDs and ErrStoreUnavailable once the
// retry budget is spent.
func (g *SessionGate) Identify(ctx context.Context, sid string) (*Identity, error) {
	if sid == "" {
		return nil, ErrNoCredential
	}

	ctx, span := startSpan(ctx, "goGate.SessionGate.Identify")
	defer span.End()

	st, err := g.load(ctx, sid)
	if err != nil {
		if errors.Is(err, ErrStoreUnavailable) {
			span.SetStatus(codes.Error, err.Error())
		}
		return nil, err
	}
	return &Identity{Subject: st.UserID, Name: st.Username, Role: ParseRole(st.Role)}, nil
}

func (g *SessionGate) load(ctx context.Context, sid string) (*session.State, error) {
	var lastErr error
	for attempt := 1; attempt <= g.opts.attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, g.opts.attemptTimeout)
		st, err := g.store.Get(attemptCtx, sid)
		cancel()

		if err == nil {
			return st, nil
		}
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNoCredential
		}
		lastErr = err

		if attempt == g.opts.attempts || ctx.Err() != nil {
			break
		}
		g.opts.metrics.Inc(MetricStoreRetry)

		timer := time.NewTimer(g.opts.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
		case <-timer.C:
			continue
		}
		break
	}

	g.opts.metrics.Inc(MetricStoreUnavailable)
	g.opts.logger.ErrorContext(ctx, "session store unavailable",
		slog.Int("attempts", g.opts.attempts),
		slog.String("error", fmt.Sprint(lastErr)),
	)
	return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, lastErr)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func logDecision(ctx context.Context, logger *slog.Logger, gate, path string, d Decision) {
	if d.Kind == Continue {
		if d.Identity != nil {
			logger.DebugContext(ctx, "request allowed",
				slog.String("gate", gate),
				slog.String("path", path),
				slog.String("subject", d.Identity.Subject),
				slog.String("role", d.Identity.Role.String()),
			)
		}
		return
	}

	attrs := []any{
		slog.String("gate", gate),
		slog.String("path", path),
		slog.String("decision", d.Kind.String()),
	}
	if d.Reason != nil {
		attrs = append(attrs, slog.String("reason", d.Reason.Error()))
	}
	if d.Identity != nil {
		attrs = append(attrs, slog.String("subject", d.Identity.Subject))
	}
	logger.InfoContext(ctx, "request redirected", attrs...)
}
