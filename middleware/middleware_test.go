package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/session"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newManager(t *testing.T) *jwt.Manager {
	t.Helper()
	m, err := jwt.NewManager(jwt.Config{TTL: time.Hour, SigningMethod: jwt.MethodHS256, PrivateKey: testSecret})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	return m
}

func token(t *testing.T, m *jwt.Manager, subject, role string) *http.Cookie {
	t.Helper()
	raw, err := m.Issue(subject, role)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return &http.Cookie{Name: goGate.TokenCookie, Value: raw}
}

// echoIdentity writes the identity headers the downstream handler sees.
func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := goGate.IdentityFromContext(r.Context())
		subject := ""
		if id != nil {
			subject = id.Subject
		}
		_, _ = io.WriteString(w, r.Header.Get(goGate.HeaderUserID)+"|"+r.Header.Get(goGate.HeaderUserRole)+"|"+subject)
	})
}

func newEdge(t *testing.T, metrics *goGate.Metrics) (http.Handler, *jwt.Manager) {
	t.Helper()
	m := newManager(t)
	gate := goGate.NewTokenGate(goGate.DefaultRouteTable(), goGate.NewTokenVerifier(m, quietLogger(), nil), goGate.WithLogger(quietLogger()))
	return Edge(gate, Options{Logger: quietLogger(), Metrics: metrics})(echoIdentity()), m
}

func TestEdgeForwardsIdentityHeaders(t *testing.T) {
	h, m := newEdge(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(token(t, m, "u-1", "ADMIN"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Body.String(); got != "u-1|ADMIN|u-1" {
		t.Fatalf("downstream saw %q", got)
	}
}

func TestEdgeStripsSpoofedHeaders(t *testing.T) {
	metrics := goGate.NewMetrics(goGate.MetricsConfig{Enabled: true})
	h, m := newEdge(t, metrics)

	req := httptest.NewRequest(http.MethodGet, "/franchise", nil)
	req.Header.Set("x-user-id", "attacker")
	req.Header.Set("x-user-role", "ADMIN")
	req.AddCookie(token(t, m, "u-2", "FRANCHISE"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Body.String(); got != "u-2|FRANCHISE|u-2" {
		t.Fatalf("downstream saw %q", got)
	}
	if metrics.Value(goGate.MetricSpoofedHeaderStripped) != 1 {
		t.Fatal("expected stripped header to be counted")
	}

	public := httptest.NewRequest(http.MethodGet, "/", nil)
	public.Header.Set("x-user-id", "attacker")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, public)
	if got := rec.Body.String(); got != "||" {
		t.Fatalf("public path must not forward client headers, saw %q", got)
	}
}

func TestEdgeRedirects(t *testing.T) {
	h, m := newEdge(t, nil)

	cases := []struct {
		path     string
		cookie   *http.Cookie
		location string
	}{
		{"/admin/users", nil, "/login?next=%2Fadmin%2Fusers"},
		{"/admin/users", token(t, m, "u-3", "CLIENT"), "/unauthorized"},
		{"/admin/users", &http.Cookie{Name: goGate.TokenCookie, Value: "not-a-token"}, "/login?next=%2Fadmin%2Fusers"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		if tc.cookie != nil {
			req.AddCookie(tc.cookie)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusFound {
			t.Fatalf("%s: status = %d", tc.location, rec.Code)
		}
		if got := rec.Header().Get("Location"); got != tc.location {
			t.Fatalf("location = %q, want %q", got, tc.location)
		}
		if rec.Header().Get("Cache-Control") != "no-store" {
			t.Fatal("redirects must not be cached")
		}
	}
}

func TestRequireSession(t *testing.T) {
	store := session.NewMemoryStore()
	now := time.Now()
	_ = store.Set(t.Context(), &session.State{ID: "sid", UserID: "7", Username: "ed", Role: "CLIENT", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}, time.Hour)

	gate := goGate.NewSessionGate(goGate.LegacyRouteTable(), store,
		goGate.WithLogger(quietLogger()),
		goGate.WithAuthorizer(goGate.Authorizer{LoginPath: goGate.LegacyLoginPath, ForbiddenPath: goGate.LegacyForbiddenPath}),
	)
	h := RequireSession(gate, Options{Logger: quietLogger()})(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: goGate.SessionCookie, Value: "sid"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Body.String() != "7|CLIENT|7" {
		t.Fatalf("dashboard: %d %q", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
	req.AddCookie(&http.Cookie{Name: goGate.SessionCookie, Value: "sid"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != goGate.LegacyForbiddenPath {
		t.Fatalf("settings: %d %q", rec.Code, rec.Header().Get("Location"))
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Location") != "/admin/login?next=%2Fadmin%2Fdashboard" {
		t.Fatalf("anonymous: %q", rec.Header().Get("Location"))
	}
}

func TestSessionCookieAttributes(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "abc", CookieOptions{Secure: true})

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != goGate.SessionCookie || c.Value != "abc" || !c.HttpOnly || !c.Secure ||
		c.SameSite != http.SameSiteLaxMode || c.Path != "/" || c.MaxAge != 86400 {
		t.Fatalf("unexpected cookie %+v", c)
	}

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, CookieOptions{})
	if c := rec.Result().Cookies()[0]; c.MaxAge >= 0 {
		t.Fatalf("expected expired cookie, got MaxAge %d", c.MaxAge)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	h := RequestLogger(LogOptions{
		Logger:    logger,
		SkipPaths: []string{"/healthz"},
		RequestID: func(*http.Request) string { return "req-1" },
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, "ok")
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Fatalf("skipped path logged: %s", buf.String())
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/page", nil))
	if !strings.Contains(buf.String(), "status=200") || !strings.Contains(buf.String(), "request_id=req-1") {
		t.Fatalf("unexpected log line: %s", buf.String())
	}

	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "status=500") {
		t.Fatalf("expected error line: %s", buf.String())
	}
}

func TestGuardRedirectsNonCanonicalPaths(t *testing.T) {
	h, m := newEdge(t, nil)

	cases := []struct {
		method, target string
		code           int
		location       string
	}{
		{http.MethodGet, "/static/../admin/dashboard", http.StatusMovedPermanently, "/admin/dashboard"},
		{http.MethodGet, "/_next/../admin/dashboard?tab=1", http.StatusMovedPermanently, "/admin/dashboard?tab=1"},
		{http.MethodGet, "//admin", http.StatusMovedPermanently, "/admin"},
		{http.MethodPost, "/x/../admin/users", http.StatusPermanentRedirect, "/admin/users"},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.target, nil)
		req.AddCookie(token(t, m, "u-1", "CLIENT"))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != tc.code {
			t.Errorf("%s %s: status = %d, want %d", tc.method, tc.target, rec.Code, tc.code)
			continue
		}
		if got := rec.Header().Get("Location"); got != tc.location {
			t.Errorf("%s %s: Location = %q, want %q", tc.method, tc.target, got, tc.location)
		}
		if rec.Body.Len() > 0 && strings.Contains(rec.Body.String(), "|") {
			t.Errorf("%s %s reached downstream: %q", tc.method, tc.target, rec.Body.String())
		}
	}
}
