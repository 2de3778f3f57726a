package goGate

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/goGate/internal/rate"
	"github.com/MrEthical07/goGate/session"
)

const instrumentationName = "github.com/MrEthical07/goGate"

// startSpan looks up the global tracer on every call.
func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name)
}

// DefaultSessionTTL is the lifetime of a legacy admin session.
const DefaultSessionTTL = 24 * time.Hour

// User is an admin account as seen by the login flow.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Role         string
}

// UserProvider looks up admin accounts. FindByUsername returns
// ErrUserNotFound for unknown usernames.
type UserProvider interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}

// PasswordUpdater is implemented by providers that can store a re-hashed
// password after a successful login.
type PasswordUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// PasswordVerifier compares a password with a stored hash.
type PasswordVerifier interface {
	Verify(password, encoded string) (bool, error)
}

type passwordUpgrader interface {
	NeedsUpgrade(encoded string) (bool, error)
	Hash(password string) (string, error)
}

// LoginLimiter records one attempt under key and fails once the budget for
// key is spent.
type LoginLimiter interface {
	Allow(ctx context.Context, key string) error
}

// LoginRequest is one login attempt.
type LoginRequest struct {
	Username string
	Password string
	// ClientIP keys the rate limit. When empty the IP from
	// [WithClientIP] is used.
	ClientIP string
}

// AuthenticatorConfig wires the login flow.
type AuthenticatorConfig struct {
	Users     UserProvider
	Sessions  session.Store
	Limiter   LoginLimiter
	Passwords PasswordVerifier

	SessionTTL time.Duration
	// DummyHash is compared against for unknown usernames so both failure
	// paths spend the same hashing time. When empty and Passwords can hash,
	// one is generated at construction.
	DummyHash string
	// UpgradeHashes re-hashes passwords whose stored hash is outdated, when
	// Users implements [PasswordUpdater].
	UpgradeHashes bool

	Logger  *slog.Logger
	Metrics *Metrics
	Now     func() time.Time
}

// Authenticator runs the legacy login state machine:
//
//	Anonymous -> (valid credentials) -> Authenticated(session)
//	Anonymous -> (invalid credentials) -> Anonymous + ErrInvalidCredentials
//	Authenticated -> Logout -> Anonymous
type Authenticator struct {
	cfg AuthenticatorConfig
}

// NewAuthenticator validates cfg and returns an Authenticator.
func NewAuthenticator(cfg AuthenticatorConfig) (*Authenticator, error) {
	if cfg.Users == nil {
		return nil, errors.New("authenticator: user provider is required")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("authenticator: session store is required")
	}
	if cfg.Limiter == nil {
		return nil, errors.New("authenticator: login limiter is required")
	}
	if cfg.Passwords == nil {
		return nil, errors.New("authenticator: password verifier is required")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DummyHash == "" {
		if h, ok := cfg.Passwords.(passwordUpgrader); ok {
			dummy, err := newDummyHash(h)
			if err != nil {
				return nil, fmt.Errorf("authenticator: dummy hash: %w", err)
			}
			cfg.DummyHash = dummy
		}
	}

	return &Authenticator{cfg: cfg}, nil
}

// Login authenticates req and creates a session. Failures carry one of
// ErrCredentialsRequired, ErrLoginRateLimited, ErrInvalidCredentials or
// ErrLoginUnavailable; unknown users and wrong passwords are
// indistinguishable.
func (a *Authenticator) Login(ctx context.Context, req LoginRequest) (*session.State, error) {
	ctx, span := startSpan(ctx, "goGate.Login")
	defer span.End()

	st, err := a.login(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("gogate.role", st.Role))
	return st, nil
}

func (a *Authenticator) login(ctx context.Context, req LoginRequest) (*session.State, error) {
	start := a.cfg.Now()
	defer func() { a.cfg.Metrics.Observe(MetricLoginLatency, a.cfg.Now().Sub(start)) }()

	// Empty submissions stop here without spending limiter budget; they
	// never reach a lookup or a hash.
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, ErrCredentialsRequired
	}

	ip := req.ClientIP
	if ip == "" {
		ip = ClientIPFromContext(ctx)
	}
	if err := a.cfg.Limiter.Allow(ctx, "login:"+ip); err != nil {
		a.cfg.Metrics.Inc(MetricLoginRateLimited)
		if !errors.Is(err, rate.ErrRateLimited) {
			a.cfg.Logger.ErrorContext(ctx, "login limiter unavailable, rejecting attempt",
				slog.String("error", err.Error()),
			)
		} else {
			a.cfg.Logger.WarnContext(ctx, "login rate limited", slog.String("client_ip", ip))
		}
		return nil, ErrLoginRateLimited
	}

	user, err := a.cfg.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.burnHash(req.Password)
			return nil, a.fail(ctx, username, "unknown_user")
		}
		a.cfg.Metrics.Inc(MetricLoginUnavailable)
		a.cfg.Logger.ErrorContext(ctx, "user lookup failed", slog.String("error", err.Error()))
		return nil, ErrLoginUnavailable
	}

	ok, err := a.cfg.Passwords.Verify(req.Password, user.PasswordHash)
	if err != nil {
		a.cfg.Logger.ErrorContext(ctx, "stored password hash unreadable",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, a.fail(ctx, username, "bad_hash")
	}
	if !ok {
		return nil, a.fail(ctx, username, "wrong_password")
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginUnavailable, err)
	}

	id, err := session.NewID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoginUnavailable, err)
	}
	now := a.cfg.Now()
	st := &session.State{
		ID:        id,
		UserID:    user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      ParseRole(user.Role).String(),
		CreatedAt: now,
		ExpiresAt: now.Add(a.cfg.SessionTTL),
	}
	if err := a.cfg.Sessions.Set(ctx, st, a.cfg.SessionTTL); err != nil {
		a.cfg.Metrics.Inc(MetricLoginUnavailable)
		a.cfg.Logger.ErrorContext(ctx, "session create failed", slog.String("error", err.Error()))
		return nil, ErrLoginUnavailable
	}

	if err := a.cfg.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		a.cfg.Logger.WarnContext(ctx, "last login update failed",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	a.maybeUpgrade(ctx, user, req.Password)

	a.cfg.Metrics.Inc(MetricLoginSuccess)
	a.cfg.Logger.InfoContext(ctx, "login succeeded",
		slog.String("user_id", user.ID),
		slog.String("role", st.Role),
	)
	return st, nil
}

// Logout deletes the session. Unknown or empty IDs are not an error.
func (a *Authenticator) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := a.cfg.Sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	a.cfg.Metrics.Inc(MetricLogout)
	return nil
}

func (a *Authenticator) fail(ctx context.Context, username, reason string) error {
	a.cfg.Metrics.Inc(MetricLoginFailure)
	a.cfg.Logger.InfoContext(ctx, "login failed",
		slog.String("username", username),
		slog.String("reason", reason),
	)
	return ErrInvalidCredentials
}

func (a *Authenticator) burnHash(password string) {
	if a.cfg.DummyHash == "" {
		return
	}
	_, _ = a.cfg.Passwords.Verify(password, a.cfg.DummyHash)
}

func (a *Authenticator) maybeUpgrade(ctx context.Context, user User, password string) {
	if !a.cfg.UpgradeHashes {
		return
	}
	updater, ok := a.cfg.Users.(PasswordUpdater)
	if !ok {
		return
	}
	hasher, ok := a.cfg.Passwords.(passwordUpgrader)
	if !ok {
		return
	}

	needs, err := hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		a.cfg.Logger.WarnContext(ctx, "password rehash failed", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		return
	}
	if err := updater.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		a.cfg.Logger.WarnContext(ctx, "password hash upgrade not stored", slog.String("user_id", user.ID), slog.String("error", err.Error()))
	}
}

func newDummyHash(h passwordUpgrader) (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return h.Hash(base64.RawStdEncoding.EncodeToString(buf))
}
