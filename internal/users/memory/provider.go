// Package memory is an in-process user provider for development servers
// and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	goGate "github.com/MrEthical07/goGate"
)

var (
	_ goGate.UserProvider    = (*Provider)(nil)
	_ goGate.PasswordUpdater = (*Provider)(nil)
)

// Provider keeps users in a map keyed by username. It is safe for
// concurrent use.
type Provider struct {
	mu        sync.RWMutex
	byName    map[string]goGate.User
	lastLogin map[string]time.Time
}

func New() *Provider {
	return &Provider{
		byName:    make(map[string]goGate.User),
		lastLogin: make(map[string]time.Time),
	}
}

// Add stores u, assigning a random ID when u.ID is empty, and returns the
// stored copy.
func (p *Provider) Add(u goGate.User) goGate.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	p.mu.Lock()
	p.byName[u.Username] = u
	p.mu.Unlock()
	return u
}

func (p *Provider) FindByUsername(ctx context.Context, username string) (goGate.User, error) {
	if err := ctx.Err(); err != nil {
		return goGate.User{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	u, ok := p.byName[username]
	if !ok {
		return goGate.User{}, goGate.ErrUserNotFound
	}
	return u, nil
}

func (p *Provider) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.findID(userID); !ok {
		return goGate.ErrUserNotFound
	}
	p.lastLogin[userID] = at
	return nil
}

func (p *Provider) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.findID(userID)
	if !ok {
		return goGate.ErrUserNotFound
	}
	u.PasswordHash = hash
	p.byName[u.Username] = u
	return nil
}

// LastLogin returns the time recorded by TouchLastLogin.
func (p *Provider) LastLogin(userID string) (time.Time, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	at, ok := p.lastLogin[userID]
	return at, ok
}

// findID scans by ID; callers hold mu.
func (p *Provider) findID(id string) (goGate.User, bool) {
	for _, u := range p.byName {
		if strings.EqualFold(u.ID, id) {
			return u, true
		}
	}
	return goGate.User{}, false
}
