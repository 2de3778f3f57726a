// Command gate-legacy serves the session-cookie admin area with its login
// and logout flow.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal/config"
	"github.com/MrEthical07/goGate/internal/logger"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/internal/server"
	"github.com/MrEthical07/goGate/internal/tracing"
	"github.com/MrEthical07/goGate/internal/users/memory"
	"github.com/MrEthical07/goGate/internal/users/postgres"
	promexport "github.com/MrEthical07/goGate/metrics/export/prometheus"
	"github.com/MrEthical07/goGate/password"
	"github.com/MrEthical07/goGate/session"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file (default ./gogate.yaml when present)")
		dev        = flag.Bool("dev", false, "use in-process redis and a seeded admin account")
	)
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(settings.Observability.LogLevel, settings.Observability.LogFormat, settings.Observability.LogSource)
	slog.SetDefault(log)

	if err := run(settings, log, *dev); err != nil {
		log.Error("gate-legacy stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(settings *config.Settings, log *slog.Logger, dev bool) error {
	cfg, err := settings.GateConfig(log)
	if err != nil {
		return err
	}
	if dev && cfg.IsProduction() {
		return fmt.Errorf("-dev is not allowed in %s", cfg.Environment)
	}
	shutdownTracing, err := tracing.Init(context.Background(), settings.TracingConfig("gate-legacy"))
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
		traceService = "gate-legacy"
	}

	for _, w := range cfg.Lint() {
		log.Warn("config lint", slog.String("code", w.Code), slog.String("message", w.Message))
	}

	hasher, err := password.New(cfg.Password)
	if err != nil {
		return err
	}
	metrics := goGate.NewMetrics(cfg.Metrics)

	var (
		client redis.UniversalClient
		users  goGate.UserProvider
	)
	if dev {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})

		users, err = seedDevUsers(hasher, log)
		if err != nil {
			return err
		}
	} else {
		opts, err := redis.ParseURL(settings.Redis.URL)
		if err != nil {
			return fmt.Errorf("redis url: %w", err)
		}
		if settings.Redis.PoolSize > 0 {
			opts.PoolSize = settings.Redis.PoolSize
		}
		client = redis.NewClient(opts)

		if settings.Database.URL != "" {
			pool, err := pgxpool.New(context.Background(), settings.Database.URL)
			if err != nil {
				return fmt.Errorf("database: %w", err)
			}
			defer pool.Close()
			users = postgres.New(pool)
		} else {
			log.Warn("no database configured, login is unavailable")
		}
	}
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	err = client.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		log.Error("redis unreachable at startup, sessions fail closed until it recovers", slog.Any("error", err))
	}

	sessions := session.NewRedisStore(client, cfg.Session.RedisPrefix)

	var auth *goGate.Authenticator
	if users != nil {
		auth, err = goGate.NewAuthenticator(goGate.AuthenticatorConfig{
			Users:         users,
			Sessions:      sessions,
			Limiter:       rate.NewRedisLimiter(client, cfg.LimiterConfig(), settings.Login.LimiterPrefix),
			Passwords:     hasher,
			SessionTTL:    cfg.Session.TTL,
			UpgradeHashes: cfg.Login.UpgradeHashes,
			Logger:        log,
			Metrics:       metrics,
		})
		if err != nil {
			return err
		}
	}

	router, err := server.BuildLegacyRouter(server.LegacyDeps{
		Config:         cfg,
		Sessions:       sessions,
		Auth:           auth,
		Metrics:        metrics,
		Logger:         log,
		TrustedProxies: settings.Server.TrustedProxies,
		Release:        cfg.IsProduction(),
		TraceService:   traceService,
	})
	if err != nil {
		return err
	}

	servers := []*http.Server{{
		Addr:         settings.Server.LegacyAddr,
		Handler:      router,
		ReadTimeout:  settings.Server.ReadTimeout,
		WriteTimeout: settings.Server.WriteTimeout,
	}}
	if cfg.Metrics.Enabled && settings.Server.LegacyMetricsAddr != "" {
		servers = append(servers, &http.Server{
			Addr:    settings.Server.LegacyMetricsAddr,
			Handler: server.BuildMetricsRouter(promexport.NewPrometheusExporter(metrics).Handler()),
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("gate-legacy starting",
		slog.String("env", cfg.Environment),
		slog.Bool("dev", dev),
		slog.Bool("login_enabled", auth != nil),
	)
	return server.Run(ctx, log, servers...)
}

// seedDevUsers creates an in-memory "admin" account with a random password
// that is printed once.
func seedDevUsers(hasher *password.Hasher, log *slog.Logger) (goGate.UserProvider, error) {
	pw := uuid.NewString()
	hash, err := hasher.Hash(pw)
	if err != nil {
		return nil, err
	}
	users := memory.New()
	users.Add(goGate.User{Username: "admin", PasswordHash: hash, Role: goGate.RoleAdmin.String()})
	log.Warn("dev mode: seeded admin account", slog.String("username", "admin"), slog.String("password", pw))
	return users, nil
}
