package auth

import (
	"context"
	"sync"
	"time"
)

type tokenState struct {
	revoked   bool
	expiresAt time.Time
}

// MemoryTokenStore implements TokenStore using in-memory storage.
// This is suitable for single-instance deployments, development and tests.
// Multi-instance deployments use RedisTokenStore.
type MemoryTokenStore struct {
	tokens map[string]tokenState
	mutex  sync.RWMutex
	now    func() time.Time
	stop   chan struct{}
	once   sync.Once
}

// NewMemoryTokenStore creates a new in-memory token store and starts its cleanup loop
func NewMemoryTokenStore() *MemoryTokenStore {
	store := &MemoryTokenStore{
		tokens: make(map[string]tokenState),
		now:    time.Now,
		stop:   make(chan struct{}),
	}

	go store.cleanupLoop(time.Hour)

	return store
}

// Allow whitelists a token id for ttl
func (m *MemoryTokenStore) Allow(ctx context.Context, tokenID string, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.tokens[tokenID] = tokenState{expiresAt: m.now().Add(ttl)}
	return nil
}

// Revoke marks a token id as revoked until ttl elapses
func (m *MemoryTokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.tokens[tokenID] = tokenState{revoked: true, expiresAt: m.now().Add(ttl)}
	return nil
}

// IsValid reports whether the token id is whitelisted, unexpired and not revoked
func (m *MemoryTokenStore) IsValid(ctx context.Context, tokenID string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	state, exists := m.tokens[tokenID]
	if !exists || state.revoked {
		return false, nil
	}
	return m.now().Before(state.expiresAt), nil
}

// CleanExpired removes expired entries
func (m *MemoryTokenStore) CleanExpired() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := m.now()
	for id, state := range m.tokens {
		if !now.Before(state.expiresAt) {
			delete(m.tokens, id)
		}
	}
}

// Len returns the number of tracked token ids
func (m *MemoryTokenStore) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.tokens)
}

// Close stops the cleanup loop
func (m *MemoryTokenStore) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

// cleanupLoop runs periodically to clean up expired entries
func (m *MemoryTokenStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.CleanExpired()
		case <-m.stop:
			return
		}
	}
}
