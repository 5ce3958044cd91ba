package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CacheMetrics mirrors cache operations onto an OpenTelemetry meter. It is
// intended as the metrics engine's mirror: the engine keeps the exact
// in-process readouts, and this forwards every recorded operation to the
// configured exporter.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: recording must not panic.
type CacheMetrics struct {
	cacheName    string
	lookupCount  metric.Int64Counter
	nativeCount  metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewCacheMetrics creates a meter mirror for the named cache instance.
func NewCacheMetrics(meter metric.Meter, cacheName string) (*CacheMetrics, error) {
	lookupCount, err := meter.Int64Counter(
		"cache.lookup.total",
		metric.WithDescription("Total number of read-through cache lookups"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	nativeCount, err := meter.Int64Counter(
		"cache.native.total",
		metric.WithDescription("Total number of direct cache operations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"cache.errors",
		metric.WithDescription("Total number of cache storage errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"cache.lookup.duration_ms",
		metric.WithDescription("Read-through lookup duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &CacheMetrics{
		cacheName:    cacheName,
		lookupCount:  lookupCount,
		nativeCount:  nativeCount,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

// RecordLookup records one read-through outcome with its latency.
func (m *CacheMetrics) RecordLookup(ctx context.Context, outcome string, duration time.Duration) {
	opt := metric.WithAttributes(
		attribute.String("cache.name", m.cacheName),
		attribute.String("cache.outcome", outcome),
	)

	m.lookupCount.Add(ctx, 1, opt)
	m.durationHist.Record(ctx, float64(duration)/float64(time.Millisecond), opt)
}

// RecordNative records one direct facade operation.
func (m *CacheMetrics) RecordNative(ctx context.Context, op string) {
	m.nativeCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.name", m.cacheName),
		attribute.String("cache.op", op),
	))
}

// RecordError records one failed storage operation.
func (m *CacheMetrics) RecordError(ctx context.Context, op string) {
	m.errorCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache.name", m.cacheName),
		attribute.String("cache.op", op),
	))
}
