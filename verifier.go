package goGate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MrEthical07/goGate/jwt"
)

// TokenVerifier turns a raw auth-token cookie value into an [Identity].
// It is safe for concurrent use.
type TokenVerifier struct {
	manager *jwt.Manager
	logger  *slog.Logger
	metrics *Metrics
}

// NewTokenVerifier wraps manager. A nil logger means slog.Default().
func NewTokenVerifier(manager *jwt.Manager, logger *slog.Logger, metrics *Metrics) *TokenVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenVerifier{manager: manager, logger: logger, metrics: metrics}
}

// Verify returns ErrNoCredential for an empty raw value and
// ErrInvalidCredential for any token that fails verification. The specific
// failure is logged, never returned.
func (v *TokenVerifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	if raw == "" {
		return nil, ErrNoCredential
	}

	claims, err := v.manager.Parse(raw)
	if err != nil {
		v.metrics.Inc(MetricCredentialInvalid)
		v.logger.WarnContext(ctx, "auth token rejected",
			slog.String("reason", jwt.FailureReason(err)),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredential, jwt.FailureReason(err))
	}

	return &Identity{
		Subject: claims.Subject,
		Name:    claims.Name,
		Role:    ParseRole(claims.Role),
	}, nil
}
