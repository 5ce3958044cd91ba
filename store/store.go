package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for store operations.
var (
	ErrNilStore   = errors.New("store: store is nil")
	ErrInvalidKey = errors.New("store: key is invalid")
	ErrKeyTooLong = errors.New("store: key exceeds max length")
	ErrClosed     = errors.New("store: store is closed")

	ErrInvalidConfig = errors.New("store: invalid configuration")
)

// Entry is a single cached record. The adapter owns it once Set returns;
// callers must not mutate Tags or Value afterwards.
type Entry struct {
	Key       string
	Value     any
	Tags      []string
	CreatedAt time.Time
	// TTL of zero means the entry does not expire.
	TTL time.Duration
}

// Expired reports whether the entry's TTL has elapsed relative to now.
func (e *Entry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Store is the storage adapter contract the caching layer consumes.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Misses: Get returns (nil, false, nil); a miss is never an error.
// - Errors: I/O failures are returned as errors and are recoverable from
//   the caller's perspective; the caching layer collects them.
type Store interface {
	// Get retrieves an entry. Returns (nil, false, nil) on miss or expiry.
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Set stores an entry, overwriting any existing entry under the same key.
	Set(ctx context.Context, entry *Entry) error

	// Delete removes an entry. Returns true if an entry was removed.
	Delete(ctx context.Context, key string) (bool, error)

	// Has reports whether a live (non-expired) entry exists for the key.
	Has(ctx context.Context, key string) (bool, error)

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Iterate calls fn for each live entry until fn returns false or the
	// sequence is exhausted. Iteration order is unspecified.
	Iterate(ctx context.Context, fn func(entry *Entry) bool) error
}

// ValidateKey checks if a key is valid for storage.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Reject keys with newlines or carriage returns
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
