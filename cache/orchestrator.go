package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonwraymond/cachelayer/keys"
	"github.com/jonwraymond/cachelayer/metrics"
	"github.com/jonwraymond/cachelayer/observe"
	"github.com/jonwraymond/cachelayer/store"
	"github.com/jonwraymond/cachelayer/tags"
)

// KeySpec selects how the cache key is derived: a static value, a
// placeholder template, or (zero value) the default derived from the
// producer's identity and the call arguments.
type KeySpec struct {
	// Value is used verbatim as the base key.
	Value string

	// Template is expanded with {hash} bound to the base key; see keys.Expand.
	Template string
}

// Options tunes one orchestrated call.
type Options struct {
	// TTL for the stored result. Zero means Config.DefaultTTL.
	TTL time.Duration

	// Tags are resolved against the producer's result after a miss.
	Tags []tags.Spec

	// Key overrides the default key derivation.
	Key KeySpec

	// Params are the named call parameters tag resolution extracts from.
	Params map[string]any

	// Context carries explicit tenant/user/locale/args for key and tag
	// derivation; ambient context values are the fallback. The call's own
	// arguments are bound for {args[n]} expansion when Args is empty.
	Context *keys.Context

	// FailOnErrors rethrows storage failures instead of collecting them.
	FailOnErrors bool
}

// Metadata describes how an orchestrated call was served.
type Metadata struct {
	Hit     bool          `json:"hit"`
	Latency time.Duration `json:"-"`
}

// MarshalJSON reports latency in milliseconds, the unit the admin surface
// and historical rollups use.
func (m Metadata) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Hit     bool    `json:"hit"`
		Latency float64 `json:"latency"`
	}{
		Hit:     m.Hit,
		Latency: float64(m.Latency) / float64(time.Millisecond),
	})
}

// Result is the detailed envelope of an orchestrated call. CacheKey is
// empty when the producer was non-cacheable and the call degraded to plain
// execution.
type Result struct {
	Result      any          `json:"result"`
	CacheKey    string       `json:"cacheKey,omitempty"`
	Metadata    Metadata     `json:"metadata"`
	CacheErrors []CacheError `json:"cacheErrors,omitempty"`
}

// Do is the plain entry point: it runs the read-through algorithm and
// returns just the producer's (or cached) value. Use Execute for the
// detailed envelope.
func (c *Cache) Do(ctx context.Context, producer Producer, args []any, opts Options) (any, error) {
	res, err := c.Execute(ctx, producer, args, opts)
	if err != nil {
		return nil, err
	}
	return res.Result, nil
}

// Execute runs one read-through call: derive the key, try the store,
// short-circuit on a hit, otherwise run the producer, store its result
// with derived tags, and record metrics either way.
//
// Producer failures are never cached and never suppressed. Storage
// failures are collected into the envelope's CacheErrors unless
// FailOnErrors (or the instance-wide equivalent) is set; degraded cache
// availability must never become functional unavailability.
func (c *Cache) Execute(ctx context.Context, producer Producer, args []any, opts Options) (*Result, error) {
	if producer == nil {
		return nil, ErrNilProducer
	}

	start := time.Now()
	kctx := callContext(opts, args)
	name, key, cacheable := c.resolveKey(ctx, producer, args, opts, kctx)
	res := &Result{CacheKey: key}
	meta := c.keyMeta(ctx, producer, name, kctx)

	// Non-cacheable producer class: always execute, never touch the store.
	if !cacheable {
		value, err := producer.Invoke(ctx, args)
		if err != nil {
			return nil, err
		}
		res.Result = value
		res.Metadata = Metadata{Hit: false, Latency: time.Since(start)}
		return res, nil
	}

	failFast := opts.FailOnErrors || c.cfg.FailOnStoreErrors

	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		if failFast {
			return nil, newCacheError("get", err)
		}
		res.CacheErrors = append(res.CacheErrors, newCacheError("get", err))
		c.engine.RecordError(ctx, "get", key, meta)
		c.logger.Warn(ctx, "cache read degraded",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "error", Value: err.Error()})
	}

	if found {
		latency := time.Since(start)
		c.engine.RecordHit(ctx, key, meta, latency)
		res.Result = entry.Value
		res.Metadata = Metadata{Hit: true, Latency: latency}
		return res, nil
	}

	// Miss: run the producer. Its errors propagate unchanged.
	value, err := producer.Invoke(ctx, args)
	if err != nil {
		return nil, err
	}

	// Miss latency deliberately includes producer cost; the hit/miss gap
	// is the signal.
	missLatency := time.Since(start)
	c.engine.RecordMiss(ctx, key, meta, missLatency)
	res.Result = value
	res.Metadata = Metadata{Hit: false, Latency: missLatency}

	resolved := tags.Resolve(ctx, opts.Tags, value, opts.Params, kctx)

	setStart := time.Now()
	writeErr := c.store.Set(ctx, &store.Entry{
		Key:       key,
		Value:     value,
		Tags:      resolved,
		CreatedAt: setStart,
		TTL:       c.cfg.effectiveTTL(opts.TTL),
	})
	if writeErr == nil && len(resolved) > 0 {
		writeErr = c.index.Add(ctx, key, resolved)
	}
	if writeErr != nil {
		if failFast {
			return nil, newCacheError("set", writeErr)
		}
		res.CacheErrors = append(res.CacheErrors, newCacheError("set", writeErr))
		c.engine.RecordError(ctx, "set", key, meta)
		c.logger.Warn(ctx, "cache write degraded",
			observe.Field{Key: "key", Value: key},
			observe.Field{Key: "error", Value: writeErr.Error()})
		return res, nil
	}
	c.engine.RecordSet(ctx, key, meta, time.Since(setStart))

	return res, nil
}

// callContext binds the call's arguments into the derivation context so
// {args[n]} placeholders resolve in key templates and tag specs. Explicitly
// supplied Context.Args win over the call arguments.
func callContext(opts Options, args []any) *keys.Context {
	if len(args) == 0 {
		return opts.Context
	}
	if opts.Context == nil {
		return &keys.Context{Args: args}
	}
	if len(opts.Context.Args) > 0 {
		return opts.Context
	}
	clone := *opts.Context
	clone.Args = args
	return &clone
}

// resolveKey derives the cache key for one call. Under the default
// derivation, the call arguments are folded in so distinct argument tuples
// under the same logical operation receive distinct keys without caller
// effort. An explicit static key or a template is used as derived, with no
// fold; templates reference arguments via {args[n]}.
func (c *Cache) resolveKey(ctx context.Context, producer Producer, args []any, opts Options, kctx *keys.Context) (name, key string, cacheable bool) {
	name, input := producer.identity()

	if opts.Key.Value != "" {
		input = opts.Key.Value
	}

	key, cacheable = c.keygen.Generate(ctx, input, kctx, opts.Key.Template)
	if !cacheable {
		return name, "", false
	}
	if opts.Key.Template == "" && opts.Key.Value == "" && len(args) > 0 {
		key += ":" + keys.Digest(args)
	}
	return name, key, true
}

func (c *Cache) keyMeta(ctx context.Context, producer Producer, name string, kctx *keys.Context) metrics.KeyMeta {
	return metrics.KeyMeta{
		Kind:      producer.kind(),
		Construct: name,
		Tenant:    keys.TenantFrom(ctx, kctx),
		User:      keys.UserFrom(ctx, kctx),
		Locale:    keys.LocaleFrom(ctx, kctx),
	}
}
