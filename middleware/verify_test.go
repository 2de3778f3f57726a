package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	goGate "github.com/MrEthical07/goGate"
)

func TestVerifyHandler(t *testing.T) {
	m := newManager(t)
	h := VerifyHandler(goGate.NewTokenVerifier(m, quietLogger(), nil), goGate.Authorizer{}, quietLogger())

	admin := token(t, m, "u-1", "ADMIN")
	franchise := token(t, m, "u-2", "FRANCHISE")

	cases := []struct {
		name     string
		query    string
		cookie   *http.Cookie
		location string
	}{
		{"admin to admin area", "role=ADMIN&next=/admin/users", admin, "/admin/users"},
		{"franchise to admin area", "role=ADMIN&next=/admin/users", franchise, "/unauthorized"},
		{"anonymous", "role=ADMIN&next=/admin/users", nil, "/login?next=%2Fadmin%2Fusers"},
		{"invalid token", "role=FRANCHISE&next=/franchise", &http.Cookie{Name: goGate.TokenCookie, Value: "x.y.z"}, "/login?next=%2Ffranchise"},
		{"no role only authenticates", "next=/account", franchise, "/account"},
		{"lowercase role", "role=franchise&next=/franchise", franchise, "/franchise"},
		{"unknown role forbids everyone", "role=OWNER&next=/admin", admin, "/unauthorized"},
		{"missing next", "role=ADMIN", admin, "/"},
		{"absolute next", "role=ADMIN&next=https://evil.example/", admin, "/"},
		{"scheme-relative next", "role=ADMIN&next=//evil.example/", admin, "/"},
		{"backslash next", "role=ADMIN&next=/%5Cevil.example", admin, "/"},
		{"anonymous with bad next", "next=https://evil.example/", nil, "/login?next=%2F"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/verify?"+tc.query, nil)
			if tc.cookie != nil {
				req.AddCookie(tc.cookie)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != http.StatusFound {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := rec.Header().Get("Location"); got != tc.location {
				t.Fatalf("location = %q, want %q", got, tc.location)
			}
		})
	}
}

func TestVerifyHandlerMatchesEdgeGate(t *testing.T) {
	m := newManager(t)
	verifier := goGate.NewTokenVerifier(m, quietLogger(), nil)
	verify := VerifyHandler(verifier, goGate.Authorizer{}, quietLogger())
	table := goGate.DefaultRouteTable()
	gate := goGate.NewTokenGate(table, verifier, goGate.WithLogger(quietLogger()))

	cookies := []*http.Cookie{nil, token(t, m, "a", "ADMIN"), token(t, m, "f", "FRANCHISE"), token(t, m, "c", "CLIENT")}
	for _, rule := range table.RewriteRules("/api/auth/verify") {
		path := rule.Prefix + "/page"
		for _, c := range cookies {
			gateReq := httptest.NewRequest(http.MethodGet, path, nil)
			verifyReq := httptest.NewRequest(http.MethodGet, "/api/auth/verify?role="+rule.Role.String()+"&next="+path, nil)
			if c != nil {
				gateReq.AddCookie(c)
				verifyReq.AddCookie(c)
			}

			d := gate.Decide(gateReq)
			rec := httptest.NewRecorder()
			verify.ServeHTTP(rec, verifyReq)
			got := rec.Header().Get("Location")

			want := d.Location
			if d.Kind == goGate.Continue {
				want = path
			}
			if got != want {
				t.Fatalf("%s with %v: verify -> %q, gate -> %q", path, c, got, want)
			}
		}
	}
}

func TestVerifyHandlerRejectsPost(t *testing.T) {
	m := newManager(t)
	h := VerifyHandler(goGate.NewTokenVerifier(m, quietLogger(), nil), goGate.Authorizer{}, quietLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/verify", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                  "/",
		"/":                 "/",
		"/admin?x=1":        "/admin?x=1",
		"admin":             "/",
		"//evil":            "/",
		"/\\evil":           "/",
		"https://evil":      "/",
		"/ok\r\nSet-Cookie": "/",
	}
	for in, want := range cases {
		if got := SafeNext(in); got != want {
			t.Errorf("SafeNext(%q) = %q, want %q", in, got, want)
		}
	}
}
