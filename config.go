package goGate

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/jwt"
	"github.com/MrEthical07/goGate/password"
)

// DevelopmentSecret signs tokens when no secret is configured. It is public
// knowledge; any deployment using it accepts forged tokens.
const DevelopmentSecret = "gogate-development-secret-change-me"

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the full gate configuration. Build one with [DefaultConfig],
// override fields, then call [Config.Validate].
type Config struct {
	Environment string
	Routes      RouteTable
	Paths       PathConfig
	JWT         JWTConfig
	Session     SessionConfig
	Login       LoginConfig
	Password    password.Config
	Metrics     MetricsConfig
}

/*
====================================
PATHS
====================================
*/

// PathConfig names the redirect targets and the verify endpoint.
type PathConfig struct {
	Login     string
	Forbidden string
	Verify    string
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the edge token verifier. Secret is used for hs256;
// PrivateKey/PublicKey for ed25519.
type JWTConfig struct {
	SigningMethod string
	Secret        []byte
	PrivateKey    []byte
	PublicKey     []byte
	TTL           time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the legacy session cookie and store lookups.
type SessionConfig struct {
	CookieName          string
	TTL                 time.Duration
	RedisPrefix         string
	SecureCookie        bool
	StoreAttempts       int
	StoreAttemptTimeout time.Duration
	StoreBackoff        time.Duration
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig configures the login rate limit and hash upgrades.
type LoginConfig struct {
	MaxAttempts   int
	Window        time.Duration
	UpgradeHashes bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns a development configuration signed with
// [DevelopmentSecret].
func DefaultConfig() Config {
	return Config{
		Environment: EnvDevelopment,
		Routes:      DefaultRouteTable(),
		Paths: PathConfig{
			Login:     DefaultLoginPath,
			Forbidden: DefaultForbiddenPath,
			Verify:    "/api/auth/verify",
		},
		JWT: JWTConfig{
			SigningMethod: string(jwt.MethodHS256),
			Secret:        []byte(DevelopmentSecret),
			TTL:           24 * time.Hour,
		},
		Session: SessionConfig{
			CookieName:          SessionCookie,
			TTL:                 DefaultSessionTTL,
			RedisPrefix:         "gs:",
			StoreAttempts:       DefaultStoreAttempts,
			StoreAttemptTimeout: DefaultStoreAttemptTimeout,
			StoreBackoff:        DefaultStoreBackoff,
		},
		Login: LoginConfig{
			MaxAttempts:   rate.DefaultConfig().Max,
			Window:        rate.DefaultConfig().Window,
			UpgradeHashes: true,
		},
		Password: password.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// IsProduction reports whether Environment is production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// CookieSecure reports whether cookies must carry the Secure attribute.
// Production always does.
func (c Config) CookieSecure() bool {
	return c.Session.SecureCookie || c.IsProduction()
}

// UsesDevelopmentSecret reports whether tokens are signed with the public
// development secret.
func (c Config) UsesDevelopmentSecret() bool {
	return c.JWT.SigningMethod == string(jwt.MethodHS256) && string(c.JWT.Secret) == DevelopmentSecret
}

// Authorizer returns the authorizer for the configured redirect paths.
func (c Config) Authorizer() Authorizer {
	return Authorizer{LoginPath: c.Paths.Login, ForbiddenPath: c.Paths.Forbidden}
}

// JWTManagerConfig translates the JWT section for [jwt.NewManager].
func (c Config) JWTManagerConfig() jwt.Config {
	out := jwt.Config{
		TTL:           c.JWT.TTL,
		SigningMethod: jwt.SigningMethod(c.JWT.SigningMethod),
		Issuer:        c.JWT.Issuer,
		Audience:      c.JWT.Audience,
		Leeway:        c.JWT.Leeway,
		PublicKey:     cloneBytes(c.JWT.PublicKey),
	}
	if out.SigningMethod == jwt.MethodHS256 {
		out.PrivateKey = cloneBytes(c.JWT.Secret)
	} else {
		out.PrivateKey = cloneBytes(c.JWT.PrivateKey)
	}
	return out
}

// LimiterConfig translates the login section for the rate limiters.
func (c Config) LimiterConfig() rate.Config {
	return rate.Config{Max: c.Login.MaxAttempts, Window: c.Login.Window}
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the gate cannot run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Environment) {
	case EnvDevelopment, EnvProduction, "staging", "test":
	default:
		return fmt.Errorf("unknown environment %q", c.Environment)
	}

	if err := c.Routes.Validate(); err != nil {
		return fmt.Errorf("routes: %w", err)
	}
	for name, p := range map[string]string{"login": c.Paths.Login, "forbidden": c.Paths.Forbidden, "verify": c.Paths.Verify} {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("%s path %q must start with /", name, p)
		}
	}
	if !c.Routes.Classify(c.Paths.Login).Public {
		return errors.New("login path must be public")
	}
	if !c.Routes.Classify(c.Paths.Forbidden).Public {
		return errors.New("forbidden path must be public")
	}

	// JWT
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodHS256:
		if len(c.JWT.Secret) < jwt.MinSecretBytes {
			return fmt.Errorf("JWT Secret must be at least %d bytes", jwt.MinSecretBytes)
		}
	case jwt.MethodEd25519:
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PublicKey or PrivateKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}
	if c.IsProduction() && c.UsesDevelopmentSecret() {
		return errors.New("production must not use the development secret")
	}

	// Session
	if c.Session.CookieName == "" {
		return errors.New("Session CookieName must not be empty")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.StoreAttempts < 1 || c.Session.StoreAttempts > 5 {
		return errors.New("Session StoreAttempts must be within [1, 5]")
	}
	if c.Session.StoreAttemptTimeout <= 0 || c.Session.StoreAttemptTimeout > 5*time.Second {
		return errors.New("Session StoreAttemptTimeout must be within (0, 5s]")
	}
	if c.Session.StoreBackoff < 0 {
		return errors.New("Session StoreBackoff must be >= 0")
	}

	// Login
	if err := c.LimiterConfig().Validate(); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	// Password
	if _, err := password.New(c.Password); err != nil {
		return err
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is a non-fatal configuration finding.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.Code
	}
	return out
}

// Lint reports settings that are valid but risky.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) { ws = append(ws, LintWarning{Code: code, Message: msg}) }

	if c.UsesDevelopmentSecret() {
		add("development_secret", "tokens are signed with the public development secret")
	}
	if !c.CookieSecure() {
		add("insecure_cookie", "session cookie is sent over plain HTTP")
	}
	if c.JWT.TTL > 7*24*time.Hour {
		add("token_ttl_long", "auth tokens live longer than a week")
	}
	if c.JWT.Leeway > 60*time.Second {
		add("leeway_large", "JWT leeway above 60s")
	}
	if c.Login.MaxAttempts > 20 {
		add("login_limit_loose", "more than 20 login attempts allowed per window")
	}
	if c.Session.StoreAttempts*int(c.Session.StoreAttemptTimeout/time.Millisecond) > 2000 {
		add("store_budget_long", "a session lookup can hold a request for more than 2s")
	}
	return ws
}
