package store

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

// SturdycConfig holds the configuration for the sturdyc storage adapter.
type SturdycConfig struct {
	// Capacity defines the maximum number of entries the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0.
	NumShards int

	// TTL is the client-wide upper bound on entry lifetime. Entries also
	// carry their own TTL which this adapter enforces on read.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int
}

// DefaultSturdycConfig returns a SturdycConfig with sensible defaults.
func DefaultSturdycConfig() SturdycConfig {
	return SturdycConfig{
		Capacity:           10000,
		NumShards:          256,
		TTL:                time.Hour,
		EvictionPercentage: 10,
	}
}

// SturdycStore is a storage adapter backed by a sharded sturdyc client.
// It suits hosts that want capacity-bounded caching with background eviction
// instead of the unbounded MemoryStore.
type SturdycStore struct {
	client *sturdyc.Client[*Entry]
}

// NewSturdycStore creates a sturdyc-backed storage adapter.
func NewSturdycStore(cfg SturdycConfig) (*SturdycStore, error) {
	if cfg.Capacity <= 0 || cfg.NumShards <= 0 || cfg.TTL <= 0 {
		return nil, ErrInvalidConfig
	}
	if cfg.EvictionPercentage < 1 || cfg.EvictionPercentage > 100 {
		return nil, ErrInvalidConfig
	}

	client := sturdyc.New[*Entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
	)
	return &SturdycStore{client: client}, nil
}

// Get retrieves an entry. Returns (nil, false, nil) on miss or expiry.
func (s *SturdycStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	entry, ok := s.client.Get(key)
	if !ok {
		return nil, false, nil
	}
	// Per-entry TTL can be shorter than the client-wide TTL.
	if entry.Expired(time.Now()) {
		s.client.Delete(key)
		return nil, false, nil
	}
	return entry, true, nil
}

// Set stores an entry, overwriting any existing entry under the same key.
func (s *SturdycStore) Set(_ context.Context, entry *Entry) error {
	if err := ValidateKey(entry.Key); err != nil {
		return err
	}
	s.client.Set(entry.Key, entry)
	return nil
}

// Delete removes an entry. Idempotent - reports whether a removal happened.
func (s *SturdycStore) Delete(_ context.Context, key string) (bool, error) {
	_, ok := s.client.Get(key)
	s.client.Delete(key)
	return ok, nil
}

// Has reports whether a live entry exists for the key.
func (s *SturdycStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Clear removes every entry.
func (s *SturdycStore) Clear(_ context.Context) error {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
	return nil
}

// Iterate calls fn for each live entry until fn returns false.
func (s *SturdycStore) Iterate(ctx context.Context, fn func(entry *Entry) bool) error {
	now := time.Now()
	for _, key := range s.client.ScanKeys() {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry, ok := s.client.Get(key)
		if !ok || entry.Expired(now) {
			continue
		}
		if !fn(entry) {
			return nil
		}
	}
	return nil
}

// Ensure SturdycStore implements Store
var _ Store = (*SturdycStore)(nil)
