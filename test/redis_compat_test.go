//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/internal/server"
	"github.com/MrEthical07/goGate/internal/users/memory"
	"github.com/MrEthical07/goGate/session"
)

func TestRedisSessionRoundTrip(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			ctx := context.Background()
			store := session.NewRedisStore(rdb, "it:")
			now := time.Now()
			for _, id := range []string{"sid-a", "sid-b"} {
				st := &session.State{ID: id, UserID: "u1", Username: "root", Role: "ADMIN", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
				if err := store.Set(ctx, st, time.Hour); err != nil {
					t.Fatalf("set %s: %v", id, err)
				}
			}

			got, err := store.Get(ctx, "sid-a")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.UserID != "u1" || got.Role != "ADMIN" {
				t.Fatalf("unexpected state: %+v", got)
			}

			n, err := store.DeleteAllForUser(ctx, "u1")
			if err != nil || n != 2 {
				t.Fatalf("delete all: n=%d err=%v", n, err)
			}
			if _, err := store.Get(ctx, "sid-b"); !errors.Is(err, session.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestRedisLimiterSharedAcrossInstances(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			ctx := context.Background()
			cfg := rate.Config{Max: 3, Window: time.Minute}
			a := rate.NewRedisLimiter(rdb, cfg, "it-rl:")
			b := rate.NewRedisLimiter(rdb, cfg, "it-rl:")

			for i, l := range []*rate.RedisLimiter{a, b, a} {
				if err := l.Allow(ctx, "login:198.51.100.7"); err != nil {
					t.Fatalf("attempt %d: %v", i+1, err)
				}
			}
			if err := b.Allow(ctx, "login:198.51.100.7"); !errors.Is(err, rate.ErrRateLimited) {
				t.Fatalf("expected ErrRateLimited, got %v", err)
			}
			if err := a.Allow(ctx, "login:198.51.100.8"); err != nil {
				t.Fatalf("other key limited: %v", err)
			}
		})
	}
}

func TestSessionGateFailsClosedOnRedisError(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	metrics := goGate.NewMetrics(goGate.MetricsConfig{Enabled: true})
	gate := goGate.NewSessionGate(goGate.LegacyRouteTable(), session.NewRedisStore(rdb, ""),
		goGate.WithLogger(quietLogger()),
		goGate.WithMetrics(metrics),
		goGate.WithStoreRetry(3, 100*time.Millisecond, 0),
		goGate.WithAuthorizer(goGate.Authorizer{LoginPath: goGate.LegacyLoginPath, ForbiddenPath: goGate.LegacyForbiddenPath}),
	)

	mr.SetError("ERR injected failure")

	req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: goGate.SessionCookie, Value: "sid-any"})
	d := gate.Decide(req)

	if d.Kind != goGate.RedirectToLogin {
		t.Fatalf("expected login redirect, got %s", d.Kind)
	}
	if !errors.Is(d.Reason, goGate.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", d.Reason)
	}
	if got := metrics.Value(goGate.MetricStoreRetry); got != 2 {
		t.Fatalf("retries: got %d want 2", got)
	}
	if got := metrics.Value(goGate.MetricStoreUnavailable); got != 1 {
		t.Fatalf("unavailable: got %d want 1", got)
	}
}

func TestLegacyServerOverRedis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			hasher := fastHasher(t)
			hash, err := hasher.Hash("correct-horse")
			if err != nil {
				t.Fatalf("hash: %v", err)
			}
			users := memory.New()
			users.Add(goGate.User{ID: "u-1", Username: "root", PasswordHash: hash, Role: "admin"})

			cfg := goGate.DefaultConfig()
			cfg.Login.MaxAttempts = 2
			sessions := session.NewRedisStore(rdb, "it-sess:")
			auth, err := goGate.NewAuthenticator(goGate.AuthenticatorConfig{
				Users:     users,
				Sessions:  sessions,
				Limiter:   rate.NewRedisLimiter(rdb, cfg.LimiterConfig(), "it-login:"),
				Passwords: hasher,
				Logger:    quietLogger(),
			})
			if err != nil {
				t.Fatalf("authenticator: %v", err)
			}
			router, err := server.BuildLegacyRouter(server.LegacyDeps{Config: cfg, Sessions: sessions, Auth: auth, Logger: quietLogger()})
			if err != nil {
				t.Fatalf("router: %v", err)
			}

			login := func(ip, pass string) *httptest.ResponseRecorder {
				form := url.Values{"username": {"root"}, "password": {pass}, "next": {"/admin/team"}}
				req := httptest.NewRequest(http.MethodPost, goGate.LegacyLoginPath, strings.NewReader(form.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				req.RemoteAddr = ip + ":5000"
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, req)
				return rec
			}

			rec := login("203.0.113.1", "correct-horse")
			if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/admin/team" {
				t.Fatalf("login: %d %q", rec.Code, rec.Header().Get("Location"))
			}
			var cookie *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == goGate.SessionCookie {
					cookie = c
				}
			}
			if cookie == nil {
				t.Fatal("no session cookie")
			}

			req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
			req.AddCookie(cookie)
			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("settings with redis session: %d", rec.Code)
			}

			// The budget is per client IP and counts every attempt.
			if rec := login("203.0.113.1", "correct-horse"); rec.Code != http.StatusFound {
				t.Fatalf("second attempt: %d", rec.Code)
			}
			if rec := login("203.0.113.1", "correct-horse"); rec.Code != http.StatusTooManyRequests {
				t.Fatalf("third attempt: %d", rec.Code)
			}
			if rec := login("203.0.113.2", "wrong"); rec.Code != http.StatusUnauthorized {
				t.Fatalf("other ip: %d", rec.Code)
			}
		})
	}
}
