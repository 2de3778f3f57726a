// Package server assembles the HTTP routers of the edge and legacy gate
// servers.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/middleware"
)

// EdgeDeps wires the edge router.
type EdgeDeps struct {
	Config   goGate.Config
	Verifier *goGate.TokenVerifier
	Metrics  *goGate.Metrics
	Logger   *slog.Logger
	// Upstream serves every request the gate lets through, usually a
	// reverse proxy to the site.
	Upstream http.Handler
	// TraceService enables otelhttp server spans under that name.
	TraceService string
}

// BuildEdgeRouter mounts the health check and the verify endpoint, then
// sends everything else through the token gate to Upstream.
func BuildEdgeRouter(d EdgeDeps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// baseline
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.CleanPath)
	r.Use(middleware.RequestLogger(middleware.LogOptions{
		Logger:    logger,
		SkipPaths: []string{"/healthz"},
		RequestID: func(r *http.Request) string { return chimw.GetReqID(r.Context()) },
	}))

	r.Get("/healthz", healthCheckHandler)

	authz := d.Config.Authorizer()
	r.Handle(d.Config.Paths.Verify, middleware.VerifyHandler(d.Verifier, authz, logger))

	gate := goGate.NewTokenGate(d.Config.Routes, d.Verifier,
		goGate.WithLogger(logger),
		goGate.WithMetrics(d.Metrics),
		goGate.WithAuthorizer(authz),
	)
	opts := middleware.Options{Logger: logger, Metrics: d.Metrics}
	r.With(middleware.Edge(gate, opts)).Handle("/*", d.Upstream)

	if d.TraceService != "" {
		return otelhttp.NewHandler(r, d.TraceService)
	}
	return r
}

// BuildMetricsRouter serves /metrics on the internal listener.
func BuildMetricsRouter(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Method(http.MethodGet, "/metrics", metrics)
	r.Get("/healthz", healthCheckHandler)
	return r
}

func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
