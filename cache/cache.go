package cache

import (
	"context"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/cachelayer/config"
	"github.com/jonwraymond/cachelayer/keys"
	"github.com/jonwraymond/cachelayer/metrics"
	"github.com/jonwraymond/cachelayer/observe"
	"github.com/jonwraymond/cachelayer/store"
	"github.com/jonwraymond/cachelayer/tags"
)

// deleteConcurrency bounds parallel store deletions during tag invalidation.
const deleteConcurrency = 4

// Config holds the static configuration for a cache instance. Runtime
// toggles live in config.Manager and may change at any time; everything
// here is fixed at construction.
type Config struct {
	// Name identifies the instance in metrics and rollups.
	Name string

	// DefaultTTL applies when an orchestrated call specifies none.
	// Zero means entries do not expire by default.
	DefaultTTL time.Duration

	// MaxTTL clamps per-call TTL overrides. Zero means no maximum.
	MaxTTL time.Duration

	// MaxLatencySamples caps the metrics sample buffer per outcome.
	MaxLatencySamples int

	// FailOnStoreErrors is the instance-wide equivalent of the per-call
	// FailOnErrors option: storage failures abort orchestrated calls
	// instead of degrading them.
	FailOnStoreErrors bool

	// Mirror, if set, receives a copy of every recorded metric.
	Mirror metrics.Recorder

	// Logger receives storage degradation and persistence reports.
	// Nil means silent.
	Logger observe.Logger
}

// Validate checks the static configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 128)),
		validation.Field(&c.DefaultTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxTTL, validation.Min(time.Duration(0))),
		validation.Field(&c.MaxLatencySamples, validation.Min(0)),
	)
}

// DefaultConfig returns a Config with sensible defaults for name.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		DefaultTTL:        5 * time.Minute,
		MaxTTL:            time.Hour,
		MaxLatencySamples: metrics.DefaultMaxSamples,
	}
}

// effectiveTTL applies the default and clamps to the maximum.
func (c Config) effectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = c.DefaultTTL
	}
	if c.MaxTTL > 0 && ttl > c.MaxTTL {
		ttl = c.MaxTTL
	}
	return ttl
}

// Cache is one caching instance: the read-through orchestrator plus the
// direct key-value facade, sharing one storage adapter, tag index, and
// metrics engine.
type Cache struct {
	cfg     Config
	store   store.Store
	runtime *config.Manager
	engine  *metrics.Engine
	keygen  *keys.Generator
	index   *tags.Index
	logger  observe.Logger

	hookMu sync.RWMutex
	hooks  hookSet
}

// New creates a cache instance over the given storage adapter. The runtime
// manager may be shared across components; every operation reads it live.
func New(cfg Config, st store.Store, runtime *config.Manager) (*Cache, error) {
	if st == nil {
		return nil, ErrNilStore
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if runtime == nil {
		runtime = config.NewManager(config.DefaultRuntime())
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observe.NopLogger()
	}

	return &Cache{
		cfg:     cfg,
		store:   st,
		runtime: runtime,
		logger:  logger,
		engine: metrics.NewEngine(metrics.EngineConfig{
			CacheName:  cfg.Name,
			MaxSamples: cfg.MaxLatencySamples,
			Mirror:     cfg.Mirror,
		}, runtime),
		keygen: keys.NewGenerator(runtime),
		index:  tags.NewIndex(st),
	}, nil
}

// Name returns the instance name.
func (c *Cache) Name() string { return c.cfg.Name }

// Runtime returns the live runtime configuration manager.
func (c *Cache) Runtime() *config.Manager { return c.runtime }

// Metrics returns the instance's metrics engine.
func (c *Cache) Metrics() *metrics.Engine { return c.engine }

// Intercept registers lifecycle hooks. Hooks run in subscription order; a
// hook error aborts the operation and propagates to the caller.
func (c *Cache) Intercept(hooks Hooks) {
	c.hookMu.Lock()
	c.hooks.add(hooks)
	c.hookMu.Unlock()
}

func (c *Cache) snapshotHooks() hookSet {
	c.hookMu.RLock()
	defer c.hookMu.RUnlock()
	return c.hooks
}

// Set stores value under key unconditionally, registering any tags for
// later bulk invalidation. TTL zero means Config.DefaultTTL.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration, tagList ...string) error {
	hooks := c.snapshotHooks()
	event := &SetEvent{Key: key, Value: value, TTL: c.cfg.effectiveTTL(ttl), Tags: tagList}
	if err := runHooks(ctx, hooks.beforeSet, event); err != nil {
		return err
	}

	entry := &store.Entry{
		Key:       event.Key,
		Value:     event.Value,
		Tags:      event.Tags,
		CreatedAt: time.Now(),
		TTL:       event.TTL,
	}
	if err := c.store.Set(ctx, entry); err != nil {
		c.engine.RecordNativeError(ctx, metrics.NativeSet)
		return err
	}
	if err := c.index.Add(ctx, event.Key, event.Tags); err != nil {
		c.engine.RecordNativeError(ctx, metrics.NativeSet)
		return err
	}
	c.engine.RecordNative(ctx, metrics.NativeSet, event.Key)

	return runHooks(ctx, hooks.afterSet, event)
}

// Get retrieves the value under key. Returns (nil, false, nil) on miss.
func (c *Cache) Get(ctx context.Context, key string) (any, bool, error) {
	hooks := c.snapshotHooks()
	event := &GetEvent{Key: key}
	if err := runHooks(ctx, hooks.beforeGet, event); err != nil {
		return nil, false, err
	}

	entry, ok, err := c.store.Get(ctx, event.Key)
	if err != nil {
		c.engine.RecordNativeError(ctx, metrics.NativeGet)
		return nil, false, err
	}
	c.engine.RecordNative(ctx, metrics.NativeGet, event.Key)

	if ok {
		event.Value = entry.Value
		event.Found = true
	}
	if err := runHooks(ctx, hooks.afterGet, event); err != nil {
		return nil, false, err
	}
	return event.Value, event.Found, nil
}

// Delete removes the entry under key and its tag registrations.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	hooks := c.snapshotHooks()
	event := &DeleteEvent{Key: key}
	if err := runHooks(ctx, hooks.beforeDelete, event); err != nil {
		return false, err
	}

	// Read first: the index needs the entry's tags to deregister it.
	entry, found, err := c.store.Get(ctx, event.Key)
	if err != nil {
		c.engine.RecordNativeError(ctx, metrics.NativeDelete)
		return false, err
	}

	deleted, err := c.store.Delete(ctx, event.Key)
	if err != nil {
		c.engine.RecordNativeError(ctx, metrics.NativeDelete)
		return false, err
	}
	if found {
		if err := c.index.Remove(ctx, event.Key, entry.Tags); err != nil {
			c.engine.RecordNativeError(ctx, metrics.NativeDelete)
			return deleted, err
		}
	}
	c.engine.RecordNative(ctx, metrics.NativeDelete, event.Key)

	event.Deleted = deleted
	if err := runHooks(ctx, hooks.afterDelete, event); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// Has reports whether a live entry exists under key.
func (c *Cache) Has(ctx context.Context, key string) (bool, error) {
	ok, err := c.store.Has(ctx, key)
	if err != nil {
		c.engine.RecordNativeError(ctx, metrics.NativeGet)
		return false, err
	}
	return ok, nil
}

// Clear removes every entry, including the tag index.
func (c *Cache) Clear(ctx context.Context) error {
	hooks := c.snapshotHooks()
	event := &ClearEvent{}
	if err := runHooks(ctx, hooks.beforeClear, event); err != nil {
		return err
	}

	// Counting is best-effort and only paid for when an after hook wants it.
	if len(hooks.afterClear) > 0 {
		count := 0
		if err := c.Iterate(ctx, func(*store.Entry) bool { count++; return true }); err == nil {
			event.EntriesBefore = count
		}
	}

	if err := c.store.Clear(ctx); err != nil {
		c.engine.RecordNativeError(ctx, metrics.NativeClear)
		return err
	}
	c.engine.RecordNative(ctx, metrics.NativeClear, "")

	return runHooks(ctx, hooks.afterClear, event)
}

// Entry returns the raw stored entry under key, including its tags and
// creation time. Index bookkeeping records are not surfaced.
func (c *Cache) Entry(ctx context.Context, key string) (*store.Entry, bool, error) {
	if tags.IsIndexKey(key) {
		return nil, false, nil
	}
	return c.store.Get(ctx, key)
}

// Iterate calls fn for each cache entry. Tag index records are internal
// and are not surfaced.
func (c *Cache) Iterate(ctx context.Context, fn func(entry *store.Entry) bool) error {
	return c.store.Iterate(ctx, func(entry *store.Entry) bool {
		if tags.IsIndexKey(entry.Key) {
			return true
		}
		return fn(entry)
	})
}

// DeleteByTags removes every entry carrying any of the given tags and
// returns the number of entries removed. Deletions across keys run in
// parallel; tag sets on concurrent writers merge commutatively.
func (c *Cache) DeleteByTags(ctx context.Context, tagList ...string) (int, error) {
	start := time.Now()
	deleted := 0

	for _, tag := range tagList {
		tagged, err := c.index.Keys(ctx, tag)
		if err != nil {
			c.engine.RecordNativeError(ctx, metrics.NativeDeleteByTags)
			return deleted, err
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(deleteConcurrency)

		var mu sync.Mutex
		for _, key := range tagged {
			key := key
			g.Go(func() error {
				removed, err := c.store.Delete(gctx, key)
				if err != nil {
					return err
				}
				if removed {
					mu.Lock()
					deleted++
					mu.Unlock()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			c.engine.RecordNativeError(ctx, metrics.NativeDeleteByTags)
			return deleted, err
		}

		if err := c.index.Drop(ctx, tag); err != nil {
			c.engine.RecordNativeError(ctx, metrics.NativeDeleteByTags)
			return deleted, err
		}
	}

	c.engine.RecordNative(ctx, metrics.NativeDeleteByTags, "")
	c.engine.RecordDelete(ctx, "", metrics.KeyMeta{Kind: "native"}, time.Since(start))
	return deleted, nil
}
