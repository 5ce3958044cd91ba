// Package cache is the read-through caching layer: a hit/miss decision
// engine over a pluggable storage adapter, plus a direct key-value facade
// with typed interception hooks.
//
// Execute decides, per invocation, whether a previously computed result
// can be reused; on a miss it runs the producer, stores the result with
// derived tags, and reports the outcome to the metrics engine. Storage
// failures degrade the cache, never the call: the producer's result is
// returned even when the cache is unavailable.
//
// Concurrent calls racing on the same key are NOT deduplicated: both
// observe the miss, both run the producer, and the last write wins. This
// is an intentional trade-off favoring simplicity; callers needing
// exactly-once-per-key execution must serialize externally.
package cache
