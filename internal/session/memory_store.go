package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"portfolio/api/internal/store"
)

type memoryEntry struct {
	user      store.User
	expiresAt time.Time
}

// MemoryStore keeps refresh tokens in process. Used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) SaveRefreshSession(_ context.Context, tokenHash string, user store.User, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[tokenHash] = memoryEntry{user: user, expiresAt: expiresAt}
	return nil
}

func (s *MemoryStore) LookupRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[tokenHash]
	if !ok || !s.now().Before(entry.expiresAt) {
		delete(s.entries, tokenHash)
		return store.User{}, fmt.Errorf("refresh token: %w", store.ErrNotFound)
	}
	return entry.user, nil
}

func (s *MemoryStore) ConsumeRefreshSession(_ context.Context, tokenHash string) (store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[tokenHash]
	delete(s.entries, tokenHash)
	if !ok || !s.now().Before(entry.expiresAt) {
		return store.User{}, fmt.Errorf("refresh token: %w", store.ErrNotFound)
	}
	return entry.user, nil
}

func (s *MemoryStore) RevokeRefreshSession(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, tokenHash)
	return nil
}
