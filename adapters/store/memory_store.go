package store

import (
	"context"
	"sync"
	"time"

	"github.com/ArtCertify/ArtCertify-sub001/core"
	"github.com/ArtCertify/ArtCertify-sub001/ports"
	"github.com/jonboulle/clockwork"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	entries map[string]memoryEntry
	clock   clockwork.Clock
	mu      sync.RWMutex
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(clock clockwork.Clock) ports.Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		clock:   clock,
	}
}

func (s *MemoryStore) live(key string) (memoryEntry, bool) {
	entry, exists := s.entries[key]
	if !exists {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !s.clock.Now().Before(entry.expiresAt) {
		return memoryEntry{}, false
	}
	return entry, true
}

// Get returns the value stored under key
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.live(key)
	if !ok {
		return "", core.ErrNotFound
	}
	return entry.value, nil
}

// Set stores value under key, replacing any previous value
func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = s.clock.Now().Add(ttl)
	}
	s.entries[key] = entry
	return nil
}

// Delete removes keys; missing keys are ignored
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		delete(s.entries, key)
	}
	return nil
}

// CompareAndDelete removes key only if it holds expected
func (s *MemoryStore) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.live(key)
	if !ok || entry.value != expected {
		return false, nil
	}
	delete(s.entries, key)
	return true, nil
}
