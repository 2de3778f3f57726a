package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"time"
)

var (
	// ErrNotFound is returned by Get for unknown or expired session IDs.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("session store unavailable")
)

// IDBytes is the number of random bytes behind a session ID.
const IDBytes = 32

// State is the server-side record of a logged-in admin user.
type State struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the state is past its expiry at now.
func (s *State) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists session state keyed by session ID.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Set(ctx context.Context, state *State, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh unguessable session ID.
func NewID() (string, error) {
	buf := make([]byte, IDBytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
