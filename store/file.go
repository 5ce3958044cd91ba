package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// fileEntry is the on-disk shape of an Entry. Values round-trip through
// msgpack, so non-primitive payloads come back as maps/slices rather than
// their original concrete types; structural equality is preserved.
type fileEntry struct {
	Key       string        `msgpack:"key"`
	Value     any           `msgpack:"value"`
	Tags      []string      `msgpack:"tags"`
	CreatedAt time.Time     `msgpack:"created_at"`
	TTL       time.Duration `msgpack:"ttl"`
}

// FileStore is a file-backed storage adapter. Entries live in memory and
// every mutation rewrites a msgpack snapshot, so contents survive restarts.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]*Entry
	closed  bool
}

// NewFileStore opens (or creates) a file-backed storage adapter at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, ErrInvalidConfig
	}

	s := &FileStore{
		path:    path,
		entries: make(map[string]*Entry),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("store: failed to load snapshot: %w", err)
	}
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var raw []*fileEntry
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return err
	}

	now := time.Now()
	for _, fe := range raw {
		entry := &Entry{
			Key:       fe.Key,
			Value:     fe.Value,
			Tags:      fe.Tags,
			CreatedAt: fe.CreatedAt,
			TTL:       fe.TTL,
		}
		if entry.Expired(now) {
			continue
		}
		s.entries[entry.Key] = entry
	}
	return nil
}

// flush rewrites the snapshot. Caller must hold s.mu.
func (s *FileStore) flush() error {
	raw := make([]*fileEntry, 0, len(s.entries))
	for _, entry := range s.entries {
		raw = append(raw, &fileEntry{
			Key:       entry.Key,
			Value:     entry.Value,
			Tags:      entry.Tags,
			CreatedAt: entry.CreatedAt,
			TTL:       entry.TTL,
		})
	}

	data, err := msgpack.Marshal(raw)
	if err != nil {
		return err
	}

	// Write to a temp file and rename so readers never see a torn snapshot.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Get retrieves an entry. Returns (nil, false, nil) on miss or expiry.
func (s *FileStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, ErrClosed
	}

	entry, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if entry.Expired(time.Now()) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return entry, true, nil
}

// Set stores an entry and persists the snapshot.
func (s *FileStore) Set(_ context.Context, entry *Entry) error {
	if err := ValidateKey(entry.Key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.entries[entry.Key] = entry
	return s.flush()
}

// Delete removes an entry and persists the snapshot.
func (s *FileStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, ErrClosed
	}
	_, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	delete(s.entries, key)
	return true, s.flush()
}

// Has reports whether a live entry exists for the key.
func (s *FileStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Clear removes every entry and truncates the snapshot.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.entries = make(map[string]*Entry)
	return s.flush()
}

// Iterate calls fn for each live entry until fn returns false.
func (s *FileStore) Iterate(ctx context.Context, fn func(entry *Entry) bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	snapshot := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		snapshot = append(snapshot, entry)
	}
	s.mu.Unlock()

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

// Close flushes the snapshot and marks the store closed.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	err := s.flush()
	s.closed = true
	return err
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return filepath.Clean(s.path)
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)
