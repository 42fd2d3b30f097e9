package auth

import (
	"context"
	"sync"
	"time"
)

// RefreshStore holds the set of live refresh tokens. Implementations must
// make Add, Remove and Contains atomic with respect to each other so a
// revoked token is never accepted in a race with logout.
type RefreshStore interface {
	Add(ctx context.Context, token string, expiresAt time.Time) error
	Remove(ctx context.Context, token string) error
	Contains(ctx context.Context, token string) (bool, error)
	// Prune drops tokens whose expiry is before now and reports how many.
	Prune(ctx context.Context, now time.Time) (int, error)
	Len(ctx context.Context) (int, error)
}

var _ RefreshStore = (*MemoryRefreshStore)(nil)

// MemoryRefreshStore keeps refresh tokens in process memory. Its contents
// do not survive a restart.
type MemoryRefreshStore struct {
	mu     sync.RWMutex
	tokens map[string]time.Time
}

// NewMemoryRefreshStore constructs an empty in-memory refresh token set.
func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{tokens: make(map[string]time.Time)}
}

func (s *MemoryRefreshStore) Add(_ context.Context, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = expiresAt
	return nil
}

// Remove deletes the exact token. Removing an absent token is not an error.
func (s *MemoryRefreshStore) Remove(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}

func (s *MemoryRefreshStore) Contains(_ context.Context, token string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tokens[token]
	return ok, nil
}

func (s *MemoryRefreshStore) Prune(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for token, expiresAt := range s.tokens {
		if expiresAt.Before(now) {
			delete(s.tokens, token)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryRefreshStore) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens), nil
}
