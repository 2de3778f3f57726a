package goGate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/session"
)

var gateTestSecret = []byte("0123456789abcdef0123456789abcdef")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t testing.TB) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{TTL: time.Hour, SigningMethod: jwt.MethodHS256, PrivateKey: gateTestSecret})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func issue(t testing.TB, m *jwt.Manager, subject string, role Role) string {
	t.Helper()
	token, err := m.Issue(subject, role.String())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return token
}

func newTestTokenGate(t testing.TB, opts ...GateOption) (*TokenGate, *jwt.Manager) {
	t.Helper()
	m := newTestManager(t)
	opts = append([]GateOption{WithLogger(discardLogger())}, opts...)
	return NewTokenGate(DefaultRouteTable(), NewTokenVerifier(m, discardLogger(), nil), opts...), m
}

func requestWithCookies(path string, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return r
}

// tamper replaces one character in the middle of the signature segment.
func tamper(token string) string {
	b := []byte(token)
	i := len(b) - 10
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestTokenGateValidAdmin(t *testing.T) {
	g, m := newTestTokenGate(t)
	token := issue(t, m, "u-1", RoleAdmin)

	d := g.Decide(requestWithCookies("/admin/dashboard", &http.Cookie{Name: TokenCookie, Value: token}))
	if d.Kind != Continue {
		t.Fatalf("kind = %v, reason = %v", d.Kind, d.Reason)
	}
	if d.Headers.Get(HeaderUserID) != "u-1" || d.Headers.Get(HeaderUserRole) != "ADMIN" {
		t.Fatalf("unexpected headers %v", d.Headers)
	}
}

func TestTokenGateWrongRoleIsForbidden(t *testing.T) {
	g, m := newTestTokenGate(t)
	token := issue(t, m, "u-2", RoleFranchise)

	d := g.Decide(requestWithCookies("/admin/dashboard", &http.Cookie{Name: TokenCookie, Value: token}))
	if d.Kind != RedirectToForbidden || d.Location != "/unauthorized" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestTokenGateNoCookieRedirectsToLogin(t *testing.T) {
	g, _ := newTestTokenGate(t)

	d := g.Decide(requestWithCookies("/franchise/orders"))
	if d.Kind != RedirectToLogin || d.Location != "/login?next=%2Ffranchise%2Forders" {
		t.Fatalf("unexpected decision %+v", d)
	}
	if !errors.Is(d.Reason, ErrNoCredential) {
		t.Fatalf("reason = %v", d.Reason)
	}
}

func TestTokenGateTamperedTokenIsTreatedAsAbsent(t *testing.T) {
	g, m := newTestTokenGate(t)
	token := issue(t, m, "u-1", RoleAdmin)

	tampered := g.Decide(requestWithCookies("/admin", &http.Cookie{Name: TokenCookie, Value: tamper(token)}))
	absent := g.Decide(requestWithCookies("/admin"))

	if tampered.Kind != absent.Kind || tampered.Location != absent.Location {
		t.Fatalf("tampered %+v differs from absent %+v", tampered, absent)
	}
	if !errors.Is(tampered.Reason, ErrInvalidCredential) {
		t.Fatalf("reason = %v", tampered.Reason)
	}
}

func TestTokenGateExpiredTokenRedirectsToLogin(t *testing.T) {
	g, _ := newTestTokenGate(t)
	expired, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, jwt.Claims{
		Role: "ADMIN",
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u-1",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(-time.Second)),
		},
	}).SignedString(gateTestSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	d := g.Decide(requestWithCookies("/admin", &http.Cookie{Name: TokenCookie, Value: expired}))
	if d.Kind != RedirectToLogin {
		t.Fatalf("expected login redirect for expired token, got %+v", d)
	}
}

func TestTokenGateIgnoresRoleHintCookie(t *testing.T) {
	metrics := NewMetrics(MetricsConfig{Enabled: true})
	g, m := newTestTokenGate(t, WithMetrics(metrics))
	token := issue(t, m, "u-3", RoleClient)

	d := g.Decide(requestWithCookies("/admin",
		&http.Cookie{Name: TokenCookie, Value: token},
		&http.Cookie{Name: RoleHintCookie, Value: "ADMIN"},
	))
	if d.Kind != RedirectToForbidden {
		t.Fatalf("role hint cookie must not grant access, got %+v", d)
	}
	if metrics.Value(MetricRoleCookieMismatch) != 1 {
		t.Fatalf("expected mismatch to be counted")
	}
}

func TestTokenGateMissingRoleClaimIsClient(t *testing.T) {
	g, m := newTestTokenGate(t)
	token, err := m.Issue("u-4", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	d := g.Decide(requestWithCookies("/account", &http.Cookie{Name: TokenCookie, Value: token}))
	if d.Kind != Continue || d.Headers.Get(HeaderUserRole) != "CLIENT" {
		t.Fatalf("expected CLIENT continue, got %+v", d)
	}
}

func TestTokenGatePublicPathSkipsVerification(t *testing.T) {
	metrics := NewMetrics(MetricsConfig{Enabled: true})
	m := newTestManager(t)
	g := NewTokenGate(DefaultRouteTable(), NewTokenVerifier(m, discardLogger(), metrics), WithLogger(discardLogger()), WithMetrics(metrics))

	d := g.Decide(requestWithCookies("/login", &http.Cookie{Name: TokenCookie, Value: "garbage"}))
	if d.Kind != Continue || d.Headers != nil {
		t.Fatalf("unexpected decision %+v", d)
	}
	if metrics.Value(MetricCredentialInvalid) != 0 {
		t.Fatal("public path must not verify credentials")
	}
	if metrics.Value(MetricDecisionContinue) != 1 {
		t.Fatal("expected continue to be counted")
	}
}

type flakyStore struct {
	session.Store
	failures int32
	calls    atomic.Int32
}

func (f *flakyStore) Get(ctx context.Context, id string) (*session.State, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, session.ErrUnavailable
	}
	return f.Store.Get(ctx, id)
}

type hangingStore struct {
	session.Store
	calls atomic.Int32
}

func (h *hangingStore) Get(ctx context.Context, _ string) (*session.State, error) {
	h.calls.Add(1)
	<-ctx.Done()
	return nil, ctx.Err()
}

func seedSession(t *testing.T, store session.Store, id, role string) {
	t.Helper()
	now := time.Now()
	err := store.Set(context.Background(), &session.State{
		ID: id, UserID: "u-" + id, Username: id, Role: role,
		CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}, time.Hour)
	if err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestSessionGateResolvesSession(t *testing.T) {
	store := session.NewMemoryStore()
	seedSession(t, store, "sid-admin", "ADMIN")
	g := NewSessionGate(DefaultRouteTable(), store, WithLogger(discardLogger()))

	d := g.Decide(requestWithCookies("/admin", &http.Cookie{Name: SessionCookie, Value: "sid-admin"}))
	if d.Kind != Continue || d.Headers.Get(HeaderUserID) != "u-sid-admin" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestSessionGateUnknownSessionIsNoCredential(t *testing.T) {
	g := NewSessionGate(DefaultRouteTable(), session.NewMemoryStore(), WithLogger(discardLogger()))

	d := g.Decide(requestWithCookies("/admin", &http.Cookie{Name: SessionCookie, Value: "nope"}))
	if d.Kind != RedirectToLogin || !errors.Is(d.Reason, ErrNoCredential) {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestSessionGateRetriesTransientFailure(t *testing.T) {
	inner := session.NewMemoryStore()
	seedSession(t, inner, "sid-1", "ADMIN")
	store := &flakyStore{Store: inner, failures: 1}
	metrics := NewMetrics(MetricsConfig{Enabled: true})
	g := NewSessionGate(DefaultRouteTable(), store,
		WithLogger(discardLogger()),
		WithMetrics(metrics),
		WithStoreRetry(2, 100*time.Millisecond, time.Millisecond),
	)

	d := g.Decide(requestWithCookies("/admin", &http.Cookie{Name: SessionCookie, Value: "sid-1"}))
	if d.Kind != Continue {
		t.Fatalf("expected retry to succeed, got %+v", d)
	}
	if store.calls.Load() != 2 || metrics.Value(MetricStoreRetry) != 1 {
		t.Fatalf("calls=%d retries=%d", store.calls.Load(), metrics.Value(MetricStoreRetry))
	}
}

func TestSessionGateFailsClosedWhenStoreHangs(t *testing.T) {
	store := &hangingStore{Store: session.NewMemoryStore()}
	metrics := NewMetrics(MetricsConfig{Enabled: true})
	g := NewSessionGate(DefaultRouteTable(), store,
		WithLogger(discardLogger()),
		WithMetrics(metrics),
		WithStoreRetry(2, 20*time.Millisecond, 5*time.Millisecond),
	)

	start := time.Now()
	d := g.Decide(requestWithCookies("/admin", &http.Cookie{Name: SessionCookie, Value: "sid-1"}))
	elapsed := time.Since(start)

	if d.Kind != RedirectToLogin || !errors.Is(d.Reason, ErrStoreUnavailable) {
		t.Fatalf("expected fail-closed login redirect, got %+v", d)
	}
	if store.calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", store.calls.Load())
	}
	if elapsed > time.Second {
		t.Fatalf("lookup budget not bounded: %v", elapsed)
	}
	if metrics.Value(MetricStoreUnavailable) != 1 {
		t.Fatal("expected store failure to be counted")
	}
}

func TestSessionGateStopsRetryingOnCanceledRequest(t *testing.T) {
	store := &flakyStore{Store: session.NewMemoryStore(), failures: 10}
	g := NewSessionGate(DefaultRouteTable(), store,
		WithLogger(discardLogger()),
		WithStoreRetry(3, 50*time.Millisecond, time.Second),
	)

	ctx, cancel := context.WithCancel(context.Background())
	r := requestWithCookies("/admin", &http.Cookie{Name: SessionCookie, Value: "sid-1"}).WithContext(ctx)
	time.AfterFunc(20*time.Millisecond, cancel)

	d := g.Decide(r)
	if d.Kind != RedirectToLogin {
		t.Fatalf("expected login redirect, got %+v", d)
	}
	if store.calls.Load() != 1 {
		t.Fatalf("expected retries to stop after cancel, calls=%d", store.calls.Load())
	}
}
