// Package postgres reads admin accounts from the admin_users table.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	goGate "github.com/MrEthical07/goGate"
)

const (
	findByUsernameSQL = `SELECT id::text, username, COALESCE(email, ''), password_hash, role
FROM admin_users WHERE username = $1`
	touchLastLoginSQL     = `UPDATE admin_users SET last_login = $2 WHERE id::text = $1`
	updatePasswordHashSQL = `UPDATE admin_users SET password_hash = $2 WHERE id::text = $1`
)

// Querier is the subset of *pgxpool.Pool and pgx.Tx the provider uses.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ goGate.UserProvider    = (*Provider)(nil)
	_ goGate.PasswordUpdater = (*Provider)(nil)
)

// Provider implements goGate.UserProvider and goGate.PasswordUpdater.
type Provider struct {
	db Querier
}

func New(db Querier) *Provider {
	return &Provider{db: db}
}

// FindByUsername returns goGate.ErrUserNotFound when no row matches.
func (p *Provider) FindByUsername(ctx context.Context, username string) (goGate.User, error) {
	var u goGate.User
	err := p.db.QueryRow(ctx, findByUsernameSQL, username).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return goGate.User{}, goGate.ErrUserNotFound
	}
	if err != nil {
		return goGate.User{}, fmt.Errorf("find admin user: %w", err)
	}
	return u, nil
}

// TouchLastLogin sets last_login to at. Repeating it with the same value
// leaves the row unchanged.
func (p *Provider) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	tag, err := p.db.Exec(ctx, touchLastLoginSQL, userID, at.UTC())
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return goGate.ErrUserNotFound
	}
	return nil
}

func (p *Provider) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	tag, err := p.db.Exec(ctx, updatePasswordHashSQL, userID, hash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return goGate.ErrUserNotFound
	}
	return nil
}
