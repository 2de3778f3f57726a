package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Entries expire lazily on
// read.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]State
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]State), now: time.Now}
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	st, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	if st.Expired(m.now()) {
		m.mu.Lock()
		if cur, ok := m.sessions[id]; ok && cur.Expired(m.now()) {
			delete(m.sessions, id)
		}
		m.mu.Unlock()
		return nil, ErrNotFound
	}

	return &st, nil
}

func (m *MemoryStore) Set(ctx context.Context, state *State, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state == nil || state.ID == "" {
		return errors.New("session id required")
	}

	st := *state
	if ttl > 0 {
		st.ExpiresAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.sessions[st.ID] = st
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
