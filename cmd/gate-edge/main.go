// Command gate-edge runs the JWT cookie gate in front of the site and
// serves the verify endpoint.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal/config"
	"github.com/MrEthical07/goGate/internal/logger"
	"github.com/MrEthical07/goGate/internal/server"
	"github.com/MrEthical07/goGate/internal/tracing"
	"github.com/MrEthical07/goGate/jwt"
	otelexport "github.com/MrEthical07/goGate/metrics/export/otel"
	promexport "github.com/MrEthical07/goGate/metrics/export/prometheus"
)

func main() {
	configPath := flag.String("config", "", "config file (default ./gogate.yaml when present)")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(settings.Observability.LogLevel, settings.Observability.LogFormat, settings.Observability.LogSource)
	slog.SetDefault(log)

	if err := run(settings, log); err != nil {
		log.Error("gate-edge stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(settings *config.Settings, log *slog.Logger) error {
	cfg, err := settings.GateConfig(log)
	if err != nil {
		return err
	}
	shutdownTracing, err := tracing.Init(context.Background(), settings.TracingConfig("gate-edge"))
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Error("tracing shutdown", slog.Any("error", err))
		}
	}()
	traceService := ""
	if settings.Observability.TraceEnabled {
		traceService = "gate-edge"
	}

	for _, w := range cfg.Lint() {
		log.Warn("config lint", slog.String("code", w.Code), slog.String("message", w.Message))
	}

	manager, err := jwt.NewManager(cfg.JWTManagerConfig())
	if err != nil {
		return err
	}
	metrics := goGate.NewMetrics(cfg.Metrics)
	verifier := goGate.NewTokenVerifier(manager, log, metrics)

	upstream, err := url.Parse(settings.Server.Upstream)
	if err != nil {
		return err
	}
	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorLog = slog.NewLogLogger(log.Handler(), slog.LevelError)

	provider := sdkmetric.NewMeterProvider()
	otel.SetMeterProvider(provider)
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			log.Error("meter provider shutdown", slog.Any("error", err))
		}
	}()
	exporter, err := otelexport.NewOTelExporter(otel.Meter("github.com/MrEthical07/goGate"), metrics)
	if err != nil {
		return err
	}
	defer exporter.Close()

	edge := &http.Server{
		Addr: settings.Server.EdgeAddr,
		Handler: server.BuildEdgeRouter(server.EdgeDeps{
			Config:       cfg,
			Verifier:     verifier,
			Metrics:      metrics,
			Logger:       log,
			Upstream:     proxy,
			TraceService: traceService,
		}),
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
	}
	servers := []*http.Server{edge}
	if cfg.Metrics.Enabled && settings.Server.MetricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:    settings.Server.MetricsAddr,
			Handler: server.BuildMetricsRouter(promexport.NewPrometheusExporter(metrics).Handler()),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("gate-edge starting",
		slog.String("env", cfg.Environment),
		slog.String("signing", cfg.JWT.SigningMethod),
		slog.String("upstream", upstream.String()),
	)
	return server.Run(ctx, log, servers...)
}
