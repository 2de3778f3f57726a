// Package config loads gate settings from an optional YAML file and
// GOGATE_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	goGate "github.com/MrEthical07/goGate"
	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/internal/tracing"
)

// EnvPrefix prefixes every environment override: auth.secret is read from
// GOGATE_AUTH_SECRET.
const EnvPrefix = "GOGATE"

// LegacySecretEnv is the secret variable read when GOGATE_AUTH_SECRET is unset.
const LegacySecretEnv = "JWT_SECRET"

type Settings struct {
	Env string `mapstructure:"env"`

	Server struct {
		EdgeAddr    string `mapstructure:"edge_addr"`
		LegacyAddr  string `mapstructure:"legacy_addr"`
		MetricsAddr string `mapstructure:"metrics_addr"`
		// LegacyMetricsAddr lets both servers run on one host.
		LegacyMetricsAddr string        `mapstructure:"legacy_metrics_addr"`
		TrustedProxies    []string      `mapstructure:"trusted_proxies"`
		Upstream          string        `mapstructure:"upstream"`
		ReadTimeout       time.Duration `mapstructure:"read_timeout"`
		WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	Auth struct {
		Secret         string        `mapstructure:"secret"`
		SigningMethod  string        `mapstructure:"signing_method"`
		PrivateKeyFile string        `mapstructure:"private_key_file"`
		PublicKeyFile  string        `mapstructure:"public_key_file"`
		TTL            time.Duration `mapstructure:"ttl"`
		Issuer         string        `mapstructure:"issuer"`
		Audience       string        `mapstructure:"audience"`
		Leeway         time.Duration `mapstructure:"leeway"`
		VerifyPath     string        `mapstructure:"verify_path"`
	} `mapstructure:"auth"`

	Session struct {
		CookieName          string        `mapstructure:"cookie_name"`
		TTL                 time.Duration `mapstructure:"ttl"`
		Prefix              string        `mapstructure:"prefix"`
		Secure              bool          `mapstructure:"secure"`
		StoreAttempts       int           `mapstructure:"store_attempts"`
		StoreAttemptTimeout time.Duration `mapstructure:"store_attempt_timeout"`
		StoreBackoff        time.Duration `mapstructure:"store_backoff"`
	} `mapstructure:"session"`

	Login struct {
		MaxAttempts   int           `mapstructure:"max_attempts"`
		Window        time.Duration `mapstructure:"window"`
		UpgradeHashes bool          `mapstructure:"upgrade_hashes"`
		LimiterPrefix string        `mapstructure:"limiter_prefix"`
	} `mapstructure:"login"`

	Redis struct {
		URL      string `mapstructure:"url"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Database struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"database"`

	Observability struct {
		LogLevel          string  `mapstructure:"log_level"`
		LogFormat         string  `mapstructure:"log_format"`
		LogSource         bool    `mapstructure:"log_source"`
		MetricsEnabled    bool    `mapstructure:"metrics_enabled"`
		LatencyHistograms bool    `mapstructure:"latency_histograms"`
		TraceEnabled      bool    `mapstructure:"trace_enabled"`
		TraceEndpoint     string  `mapstructure:"trace_endpoint"`
		TraceSampleRatio  float64 `mapstructure:"trace_sample_ratio"`
		TraceInsecure     bool    `mapstructure:"trace_insecure"`
	} `mapstructure:"observability"`
}

// Load reads path when given, otherwise an optional gogate.yaml from the
// working directory or ./config, then applies environment overrides.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("gogate")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if s.Auth.Secret == "" {
		s.Auth.Secret = os.Getenv(LegacySecretEnv)
	}
	return &s, nil
}

func setDefaults(v *viper.Viper) {
	d := goGate.DefaultConfig()

	v.SetDefault("env", d.Environment)

	v.SetDefault("server.edge_addr", ":8080")
	v.SetDefault("server.legacy_addr", ":3000")
	v.SetDefault("server.metrics_addr", ":9090")
	v.SetDefault("server.legacy_metrics_addr", ":9091")
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.upstream", "http://127.0.0.1:3001")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.signing_method", d.JWT.SigningMethod)
	v.SetDefault("auth.private_key_file", "")
	v.SetDefault("auth.public_key_file", "")
	v.SetDefault("auth.ttl", d.JWT.TTL)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.leeway", d.JWT.Leeway)
	v.SetDefault("auth.verify_path", d.Paths.Verify)

	v.SetDefault("session.cookie_name", d.Session.CookieName)
	v.SetDefault("session.ttl", d.Session.TTL)
	v.SetDefault("session.prefix", d.Session.RedisPrefix)
	v.SetDefault("session.secure", d.Session.SecureCookie)
	v.SetDefault("session.store_attempts", d.Session.StoreAttempts)
	v.SetDefault("session.store_attempt_timeout", d.Session.StoreAttemptTimeout)
	v.SetDefault("session.store_backoff", d.Session.StoreBackoff)

	v.SetDefault("login.max_attempts", d.Login.MaxAttempts)
	v.SetDefault("login.window", d.Login.Window)
	v.SetDefault("login.upgrade_hashes", d.Login.UpgradeHashes)
	v.SetDefault("login.limiter_prefix", rate.DefaultPrefix)

	v.SetDefault("redis.url", "redis://127.0.0.1:6379/0")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("database.url", "")

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
	v.SetDefault("observability.log_source", false)
	v.SetDefault("observability.metrics_enabled", d.Metrics.Enabled)
	v.SetDefault("observability.latency_histograms", d.Metrics.EnableLatencyHistograms)
	v.SetDefault("observability.trace_enabled", false)
	v.SetDefault("observability.trace_endpoint", "")
	v.SetDefault("observability.trace_sample_ratio", 1.0)
	v.SetDefault("observability.trace_insecure", true)
}

// GateConfig builds and validates the library configuration. An empty hs256
// secret falls back to [goGate.DevelopmentSecret] with a warning, logged at
// error level outside development; production then fails validation.
func (s *Settings) GateConfig(logger *slog.Logger) (goGate.Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := goGate.DefaultConfig()
	cfg.Environment = strings.ToLower(s.Env)

	cfg.Paths.Verify = s.Auth.VerifyPath

	cfg.JWT.SigningMethod = strings.ToLower(s.Auth.SigningMethod)
	cfg.JWT.TTL = s.Auth.TTL
	cfg.JWT.Issuer = s.Auth.Issuer
	cfg.JWT.Audience = s.Auth.Audience
	cfg.JWT.Leeway = s.Auth.Leeway
	cfg.JWT.Secret = []byte(s.Auth.Secret)

	if s.Auth.PrivateKeyFile != "" {
		key, err := os.ReadFile(s.Auth.PrivateKeyFile)
		if err != nil {
			return goGate.Config{}, fmt.Errorf("read private key: %w", err)
		}
		cfg.JWT.PrivateKey = key
	}
	if s.Auth.PublicKeyFile != "" {
		key, err := os.ReadFile(s.Auth.PublicKeyFile)
		if err != nil {
			return goGate.Config{}, fmt.Errorf("read public key: %w", err)
		}
		cfg.JWT.PublicKey = key
	}

	if cfg.JWT.SigningMethod == "hs256" && len(cfg.JWT.Secret) == 0 {
		cfg.JWT.Secret = []byte(goGate.DevelopmentSecret)
		level := slog.LevelWarn
		if cfg.Environment != goGate.EnvDevelopment {
			level = slog.LevelError
		}
		logger.Log(context.Background(), level, "no auth secret configured, using the development secret",
			slog.String("env", cfg.Environment),
			slog.String("variable", EnvPrefix+"_AUTH_SECRET"),
		)
	}

	cfg.Session.CookieName = s.Session.CookieName
	cfg.Session.TTL = s.Session.TTL
	cfg.Session.RedisPrefix = s.Session.Prefix
	cfg.Session.SecureCookie = s.Session.Secure
	cfg.Session.StoreAttempts = s.Session.StoreAttempts
	cfg.Session.StoreAttemptTimeout = s.Session.StoreAttemptTimeout
	cfg.Session.StoreBackoff = s.Session.StoreBackoff

	cfg.Login.MaxAttempts = s.Login.MaxAttempts
	cfg.Login.Window = s.Login.Window
	cfg.Login.UpgradeHashes = s.Login.UpgradeHashes

	cfg.Metrics.Enabled = s.Observability.MetricsEnabled
	cfg.Metrics.EnableLatencyHistograms = s.Observability.LatencyHistograms

	if err := cfg.Validate(); err != nil {
		return goGate.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// TracingConfig returns the tracer settings for service.
func (s *Settings) TracingConfig(service string) tracing.Config {
	return tracing.Config{
		ServiceName: service,
		EndpointURL: s.Observability.TraceEndpoint,
		Enabled:     s.Observability.TraceEnabled,
		SampleRatio: s.Observability.TraceSampleRatio,
		Insecure:    s.Observability.TraceInsecure,
		Environment: strings.ToLower(s.Env),
	}
}
