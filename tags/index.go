package tags

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/jonwraymond/cachelayer/store"
)

// indexKeyPrefix namespaces index records inside the same storage adapter
// that holds the cache entries themselves.
const indexKeyPrefix = "cachelayer:tagindex:"

// IsIndexKey reports whether a storage key belongs to the tag index rather
// than to a cache entry.
func IsIndexKey(key string) bool {
	return strings.HasPrefix(key, indexKeyPrefix)
}

// Index maintains the reverse mapping from tag to the set of cache keys
// carrying it. Writes are additive (set union) and therefore commutative;
// persistence atomicity is whatever the storage adapter provides.
type Index struct {
	mu    sync.Mutex
	store store.Store
}

// NewIndex creates a tag index persisted through the given storage adapter.
func NewIndex(s store.Store) *Index {
	return &Index{store: s}
}

// Add registers key under each tag.
func (i *Index) Add(ctx context.Context, key string, tagList []string) error {
	if len(tagList) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, tag := range tagList {
		keySet, err := i.load(ctx, tag)
		if err != nil {
			return err
		}
		if keySet.Contains(key) {
			continue
		}
		keySet.Add(key)
		if err := i.save(ctx, tag, keySet); err != nil {
			return err
		}
	}
	return nil
}

// Remove deregisters key from each tag, dropping tags that become empty.
func (i *Index) Remove(ctx context.Context, key string, tagList []string) error {
	if len(tagList) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, tag := range tagList {
		keySet, err := i.load(ctx, tag)
		if err != nil {
			return err
		}
		if !keySet.Contains(key) {
			continue
		}
		keySet.Remove(key)
		if keySet.Cardinality() == 0 {
			if _, err := i.store.Delete(ctx, indexKeyPrefix+tag); err != nil {
				return err
			}
			continue
		}
		if err := i.save(ctx, tag, keySet); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns the cache keys registered under tag, sorted for stable
// output. An unknown tag yields an empty slice.
func (i *Index) Keys(ctx context.Context, tag string) ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	keySet, err := i.load(ctx, tag)
	if err != nil {
		return nil, err
	}
	out := keySet.ToSlice()
	sort.Strings(out)
	return out, nil
}

// Drop removes the index record for tag.
func (i *Index) Drop(ctx context.Context, tag string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	_, err := i.store.Delete(ctx, indexKeyPrefix+tag)
	return err
}

// Rebuild reconstructs the index from the storage adapter's iterate
// sequence, for adapters that lost the index records.
func (i *Index) Rebuild(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	// Collect first: mutating the store while iterating it is undefined
	// for some adapters.
	byTag := make(map[string]mapset.Set[string])
	var staleIndexKeys []string
	err := i.store.Iterate(ctx, func(entry *store.Entry) bool {
		if IsIndexKey(entry.Key) {
			staleIndexKeys = append(staleIndexKeys, entry.Key)
			return true
		}
		for _, tag := range entry.Tags {
			keySet, ok := byTag[tag]
			if !ok {
				keySet = mapset.NewThreadUnsafeSet[string]()
				byTag[tag] = keySet
			}
			keySet.Add(entry.Key)
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("tags: index rebuild iteration failed: %w", err)
	}

	for _, key := range staleIndexKeys {
		if _, err := i.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	for tag, keySet := range byTag {
		if err := i.save(ctx, tag, keySet); err != nil {
			return err
		}
	}
	return nil
}

// load reads a tag's key set. Caller must hold i.mu.
func (i *Index) load(ctx context.Context, tag string) (mapset.Set[string], error) {
	entry, ok, err := i.store.Get(ctx, indexKeyPrefix+tag)
	if err != nil {
		return nil, err
	}
	keySet := mapset.NewThreadUnsafeSet[string]()
	if !ok {
		return keySet, nil
	}

	// Adapters that serialize values may hand back []any instead of the
	// []string that was stored.
	switch stored := entry.Value.(type) {
	case []string:
		keySet.Append(stored...)
	case []any:
		for _, v := range stored {
			if s, ok := v.(string); ok {
				keySet.Add(s)
			}
		}
	}
	return keySet, nil
}

// save writes a tag's key set. Caller must hold i.mu.
func (i *Index) save(ctx context.Context, tag string, keySet mapset.Set[string]) error {
	keys := keySet.ToSlice()
	sort.Strings(keys)
	return i.store.Set(ctx, &store.Entry{
		Key:       indexKeyPrefix + tag,
		Value:     keys,
		CreatedAt: time.Now(),
	})
}
