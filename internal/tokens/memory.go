package tokens

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	path      string
	expiresAt time.Time
}

// MemoryStore is a process-local Store for single-node setups and tests.
// Expiry is lazy: entries are checked on Resolve and swept on Issue.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryStoreWithClock injects the clock, for tests that move time.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	s := NewMemoryStore()
	s.now = now
	return s
}

func (s *MemoryStore) Issue(_ context.Context, path string, ttl time.Duration) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.entries[token] = memoryEntry{path: path, expiresAt: s.now().Add(ttl)}
	return token, nil
}

func (s *MemoryStore) Resolve(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return "", ErrNotFound
	}
	// Consume unconditionally: an expired entry is dead either way.
	delete(s.entries, token)
	if !e.expiresAt.After(s.now()) {
		return "", ErrNotFound
	}
	return e.path, nil
}

func (s *MemoryStore) sweepLocked() {
	now := s.now()
	for token, e := range s.entries {
		if !e.expiresAt.After(now) {
			delete(s.entries, token)
		}
	}
}
