package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory storage adapter.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewMemoryStore creates a new in-memory storage adapter.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*Entry),
	}
}

// Get retrieves an entry. Returns (nil, false, nil) on miss or expiry.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}

	// Expired - clean up lazily
	if entry.Expired(time.Now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}

	return entry, true, nil
}

// Set stores an entry, overwriting any existing entry under the same key.
func (s *MemoryStore) Set(_ context.Context, entry *Entry) error {
	if err := ValidateKey(entry.Key); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[entry.Key] = entry
	s.mu.Unlock()
	return nil
}

// Delete removes an entry. Idempotent - reports whether a removal happened.
func (s *MemoryStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	_, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()
	return ok, nil
}

// Has reports whether a live entry exists for the key.
func (s *MemoryStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Clear removes every entry.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]*Entry)
	s.mu.Unlock()
	return nil
}

// Iterate calls fn for each live entry until fn returns false.
func (s *MemoryStore) Iterate(ctx context.Context, fn func(entry *Entry) bool) error {
	s.mu.RLock()
	snapshot := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		snapshot = append(snapshot, entry)
	}
	s.mu.RUnlock()

	now := time.Now()
	for _, entry := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.Expired(now) {
			continue
		}
		if !fn(entry) {
			return nil
		}
	}
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
