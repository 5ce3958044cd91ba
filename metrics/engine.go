package metrics

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/flowchartsman/retry"

	"github.com/jonwraymond/cachelayer/config"
)

// KeyMeta describes the construct behind a cache key for per-key readouts.
type KeyMeta struct {
	// Kind is the operation class: function, query, remote-call, or native.
	Kind string `json:"kind"`
	// Construct names the originating producer or caller.
	Construct string `json:"construct,omitempty"`
	Tenant    string `json:"tenant,omitempty"`
	User      string `json:"user,omitempty"`
	Locale    string `json:"locale,omitempty"`
}

// Recorder mirrors recorded operations into an external telemetry system.
// The engine calls it after its own bookkeeping; implementations must not
// block.
type Recorder interface {
	RecordLookup(ctx context.Context, outcome string, duration time.Duration)
	RecordNative(ctx context.Context, op string)
	RecordError(ctx context.Context, op string)
}

// latAccum keeps exact latency sums for weighted rollup merges, separate
// from the bounded percentile buffers.
type latAccum struct {
	sum float64
	n   uint64
}

func (a *latAccum) add(ms float64) {
	a.sum += ms
	a.n++
}

func (a latAccum) avg() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}

// window is the live measurement window. Replaced wholesale, never
// discarded, on clear or after a successful persist.
type window struct {
	start    time.Time
	counters Counters
	samples  map[Outcome]*sampleBuffer
	lat      map[Outcome]*latAccum
}

func newWindow(start time.Time, maxSamples int) *window {
	w := &window{
		start:   start,
		samples: make(map[Outcome]*sampleBuffer, len(outcomes)),
		lat:     make(map[Outcome]*latAccum, len(outcomes)),
	}
	for _, o := range outcomes {
		w.samples[o] = newSampleBuffer(maxSamples)
		w.lat[o] = &latAccum{}
	}
	return w
}

func (w *window) record(o Outcome, d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	w.samples[o].add(ms)
	w.lat[o].add(ms)
}

// keyEntry is the per-key counterpart of the window, plus metadata and a
// delta block tracking activity since the last persist.
type keyEntry struct {
	meta       KeyMeta
	lastAccess time.Time
	counters   Counters
	samples    map[Outcome]*sampleBuffer

	delta    Counters
	deltaLat map[Outcome]*latAccum
}

func newKeyEntry(meta KeyMeta, maxSamples int) *keyEntry {
	e := &keyEntry{
		meta:     meta,
		samples:  make(map[Outcome]*sampleBuffer, len(outcomes)),
		deltaLat: make(map[Outcome]*latAccum, len(outcomes)),
	}
	for _, o := range outcomes {
		e.samples[o] = newSampleBuffer(maxSamples)
		e.deltaLat[o] = &latAccum{}
	}
	return e
}

// EngineConfig configures a metrics engine.
type EngineConfig struct {
	// CacheName identifies this cache instance in historical rollups.
	CacheName string

	// MaxSamples caps the latency sample buffer per outcome.
	// Zero means DefaultMaxSamples.
	MaxSamples int

	// Mirror, if set, receives a copy of every recorded operation.
	Mirror Recorder
}

// Engine is the in-memory metrics engine for one cache instance.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Gating: every record call consults the live runtime configuration;
//   disabled domains are strict no-ops.
// - Readers: Snapshot and KeySnapshot return nil when the corresponding
//   toggle is off.
type Engine struct {
	mu         sync.Mutex
	cacheName  string
	runtime    *config.Manager
	maxSamples int
	mirror     Recorder
	window     *window
	keyStats   map[string]*keyEntry

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates a metrics engine bound to the given runtime configuration.
func NewEngine(cfg EngineConfig, runtime *config.Manager) *Engine {
	maxSamples := cfg.MaxSamples
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	now := time.Now
	return &Engine{
		cacheName:  cfg.CacheName,
		runtime:    runtime,
		maxSamples: maxSamples,
		mirror:     cfg.Mirror,
		window:     newWindow(now(), maxSamples),
		keyStats:   make(map[string]*keyEntry),
		now:        now,
	}
}

// RecordHit records an orchestrated lookup that was served from cache.
func (e *Engine) RecordHit(ctx context.Context, key string, meta KeyMeta, d time.Duration) {
	e.recordOutcome(ctx, OutcomeHit, key, meta, d)
}

// RecordMiss records an orchestrated lookup that ran the producer. The
// duration includes producer execution time; the hit/miss latency gap is
// the primary observability signal.
func (e *Engine) RecordMiss(ctx context.Context, key string, meta KeyMeta, d time.Duration) {
	e.recordOutcome(ctx, OutcomeMiss, key, meta, d)
}

// RecordSet records an orchestrated store write after a miss.
func (e *Engine) RecordSet(ctx context.Context, key string, meta KeyMeta, d time.Duration) {
	e.recordOutcome(ctx, OutcomeSet, key, meta, d)
}

// RecordDelete records an orchestrated (tag-driven) deletion.
func (e *Engine) RecordDelete(ctx context.Context, key string, meta KeyMeta, d time.Duration) {
	e.recordOutcome(ctx, OutcomeDelete, key, meta, d)
}

func (e *Engine) recordOutcome(ctx context.Context, o Outcome, key string, meta KeyMeta, d time.Duration) {
	rt := e.runtime.Current()
	if !rt.MetricsEnabled && !rt.KeyMetricsEnabled {
		return
	}

	e.mu.Lock()
	if rt.MetricsEnabled {
		e.bump(&e.window.counters, o)
		e.window.record(o, d)
	}
	if rt.KeyMetricsEnabled && key != "" {
		entry := e.keyEntry(key, meta)
		e.bump(&entry.counters, o)
		e.bump(&entry.delta, o)
		ms := float64(d) / float64(time.Millisecond)
		entry.samples[o].add(ms)
		entry.deltaLat[o].add(ms)
	}
	e.mu.Unlock()

	if rt.MetricsEnabled && e.mirror != nil {
		e.mirror.RecordLookup(ctx, o.String(), d)
	}
}

func (e *Engine) bump(c *Counters, o Outcome) {
	switch o {
	case OutcomeHit:
		c.Hits++
	case OutcomeMiss:
		c.Misses++
	case OutcomeSet:
		c.Sets++
	case OutcomeDelete:
		c.Deletes++
	}
}

// RecordError records a recoverable storage error on the read-through path.
// Errors never count as hits or misses.
func (e *Engine) RecordError(ctx context.Context, op string, key string, meta KeyMeta) {
	rt := e.runtime.Current()
	if !rt.MetricsEnabled && !rt.KeyMetricsEnabled {
		return
	}

	e.mu.Lock()
	if rt.MetricsEnabled {
		e.window.counters.Errors++
	}
	if rt.KeyMetricsEnabled && key != "" {
		entry := e.keyEntry(key, meta)
		entry.counters.Errors++
		entry.delta.Errors++
	}
	e.mu.Unlock()

	if rt.MetricsEnabled && e.mirror != nil {
		e.mirror.RecordError(ctx, op)
	}
}

// RecordNative records a direct facade operation. Native calls are counted
// but not latency-sampled.
func (e *Engine) RecordNative(ctx context.Context, op NativeOp, key string) {
	rt := e.runtime.Current()
	if !rt.MetricsEnabled && !rt.KeyMetricsEnabled {
		return
	}

	e.mu.Lock()
	if rt.MetricsEnabled {
		e.window.counters.bumpNative(op)
	}
	if rt.KeyMetricsEnabled && key != "" {
		entry := e.keyEntry(key, KeyMeta{Kind: "native"})
		entry.counters.bumpNative(op)
		entry.delta.bumpNative(op)
	}
	e.mu.Unlock()

	if rt.MetricsEnabled && e.mirror != nil {
		e.mirror.RecordNative(ctx, op.String())
	}
}

// RecordNativeError records a failed direct facade operation.
func (e *Engine) RecordNativeError(ctx context.Context, op NativeOp) {
	rt := e.runtime.Current()
	if !rt.MetricsEnabled {
		return
	}

	e.mu.Lock()
	e.window.counters.NativeErrors++
	e.mu.Unlock()

	if e.mirror != nil {
		e.mirror.RecordError(ctx, op.String())
	}
}

// keyEntry returns the entry for key, creating it on first access.
// Caller must hold e.mu.
func (e *Engine) keyEntry(key string, meta KeyMeta) *keyEntry {
	entry, ok := e.keyStats[key]
	if !ok {
		entry = newKeyEntry(meta, e.maxSamples)
		e.keyStats[key] = entry
	} else if entry.meta.Construct == "" && meta.Construct != "" {
		entry.meta = meta
	}
	entry.lastAccess = e.now()
	return entry
}

// Readout is a point-in-time view of the aggregate window with its derived
// metrics. Derived values are computed here, never stored.
type Readout struct {
	CacheName   string                  `json:"cacheName"`
	WindowStart time.Time               `json:"windowStart"`
	Counters    Counters                `json:"counters"`
	Latency     map[string]LatencyStats `json:"latency"`

	HitRatio        float64 `json:"hitRatio"`
	Throughput      float64 `json:"throughput"`
	ErrorRate       float64 `json:"errorRate"`
	CacheEfficiency float64 `json:"cacheEfficiency"`
}

// Snapshot returns the current aggregate readout, or nil when aggregate
// metrics are disabled.
func (e *Engine) Snapshot() *Readout {
	if !e.runtime.Current().MetricsEnabled {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r := &Readout{
		CacheName:   e.cacheName,
		WindowStart: e.window.start,
		Counters:    e.window.counters,
		Latency:     make(map[string]LatencyStats, len(outcomes)),
	}
	for _, o := range outcomes {
		r.Latency[o.String()] = e.window.samples[o].stats()
	}

	total := r.Counters.TotalRequests()
	if total > 0 {
		r.HitRatio = float64(r.Counters.Hits) / float64(total)
		r.ErrorRate = float64(r.Counters.Errors) / float64(total)
	}
	if elapsed := e.now().Sub(e.window.start).Seconds(); elapsed > 0 {
		r.Throughput = float64(total) / elapsed
	}
	hit := r.Latency[OutcomeHit.String()]
	miss := r.Latency[OutcomeMiss.String()]
	if hit.Count > 0 && miss.Count > 0 && hit.Avg > 0 {
		r.CacheEfficiency = miss.Avg / hit.Avg
	}
	return r
}

// KeyReadout is the per-key counterpart of Readout.
type KeyReadout struct {
	Key        string                  `json:"key"`
	Meta       KeyMeta                 `json:"meta"`
	LastAccess time.Time               `json:"lastAccess"`
	Counters   Counters                `json:"counters"`
	Latency    map[string]LatencyStats `json:"latency"`
	HitRatio   float64                 `json:"hitRatio"`
	ErrorRate  float64                 `json:"errorRate"`
}

// KeySnapshot returns the readout for one key, or nil when key metrics are
// disabled or the key has never been observed.
func (e *Engine) KeySnapshot(key string) *KeyReadout {
	if !e.runtime.Current().KeyMetricsEnabled {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry, ok := e.keyStats[key]
	if !ok {
		return nil
	}
	return e.keyReadout(key, entry)
}

// KeySnapshots returns readouts for every observed key, sorted by key, or
// nil when key metrics are disabled.
func (e *Engine) KeySnapshots() []*KeyReadout {
	if !e.runtime.Current().KeyMetricsEnabled {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*KeyReadout, 0, len(e.keyStats))
	for key, entry := range e.keyStats {
		out = append(out, e.keyReadout(key, entry))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// keyReadout builds a KeyReadout. Caller must hold e.mu.
func (e *Engine) keyReadout(key string, entry *keyEntry) *KeyReadout {
	r := &KeyReadout{
		Key:        key,
		Meta:       entry.meta,
		LastAccess: entry.lastAccess,
		Counters:   entry.counters,
		Latency:    make(map[string]LatencyStats, len(outcomes)),
	}
	for _, o := range outcomes {
		r.Latency[o.String()] = entry.samples[o].stats()
	}
	total := r.Counters.TotalRequests()
	if total > 0 {
		r.HitRatio = float64(r.Counters.Hits) / float64(total)
		r.ErrorRate = float64(r.Counters.Errors) / float64(total)
	}
	return r
}

// Clear replaces the window with a fresh zeroed one and drops the per-key
// table. This is the only way key entries are destroyed.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.window = newWindow(e.now(), e.maxSamples)
	e.keyStats = make(map[string]*keyEntry)
	e.mu.Unlock()
}

// Persist atomically snapshots the current window, merges it into the
// hourly, daily, and monthly rollups for the window's period, and replaces
// the in-memory window with a fresh zeroed one. Per-key activity since the
// last persist is merged into key-scoped rollups the same way. Persisting
// an empty window is a no-op merge that still resets. Deltas the store
// rejects after retries are folded back into the live accounting and their
// errors returned joined.
func (e *Engine) Persist(ctx context.Context, hs HistoryStore) error {
	e.mu.Lock()
	windowStart := e.window.start
	aggregate := e.deltaRecord("", e.window.counters, e.window.lat)
	var keyDeltas []*Record
	for key, entry := range e.keyStats {
		if entry.delta.empty() {
			continue
		}
		keyDeltas = append(keyDeltas, e.deltaRecord(key, entry.delta, entry.deltaLat))
		entry.delta = Counters{}
		for _, o := range outcomes {
			entry.deltaLat[o] = &latAccum{}
		}
	}
	e.window = newWindow(e.now(), e.maxSamples)
	e.mu.Unlock()

	sort.Slice(keyDeltas, func(i, j int) bool { return keyDeltas[i].Key < keyDeltas[j].Key })

	deltas := make([]*Record, 0, len(keyDeltas)+1)
	if !aggregate.Counters.empty() {
		deltas = append(deltas, aggregate)
	}
	deltas = append(deltas, keyDeltas...)

	// The window is already reset. Retry transient store failures; deltas
	// that still fail are folded back into the live accounting so the next
	// persist carries them instead of dropping the window's data.
	retrier := retry.NewRetrier(persistAttempts, persistRetryMin, persistRetryMax)
	var unsaved []*Record
	var errs []error
	for _, delta := range deltas {
		for _, period := range periods {
			delta, period := delta, period
			err := retrier.RunContext(ctx, func(ctx context.Context) error {
				return mergeIntoPeriod(ctx, hs, delta, period, windowStart)
			})
			if err != nil {
				errs = append(errs, err)
				unsaved = append(unsaved, delta)
				break
			}
		}
	}
	if len(unsaved) > 0 {
		e.refold(unsaved)
	}
	return errors.Join(errs...)
}

// refold returns unsaved deltas to the live window and per-key delta
// blocks. Counters and exact latency sums are restored; bounded percentile
// samples are not reconstructed.
func (e *Engine) refold(deltas []*Record) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, d := range deltas {
		if d.Key == "" {
			e.window.counters.add(d.Counters)
			refoldLatency(e.window.lat, d)
			continue
		}
		entry, ok := e.keyStats[d.Key]
		if !ok {
			// The key table was cleared meanwhile; nothing to return to.
			continue
		}
		entry.delta.add(d.Counters)
		refoldLatency(entry.deltaLat, d)
	}
}

func refoldLatency(lat map[Outcome]*latAccum, d *Record) {
	lat[OutcomeHit].sum += d.AvgHitLatencyMs * float64(d.HitSamples)
	lat[OutcomeHit].n += d.HitSamples
	lat[OutcomeMiss].sum += d.AvgMissLatencyMs * float64(d.MissSamples)
	lat[OutcomeMiss].n += d.MissSamples
	lat[OutcomeSet].sum += d.AvgSetLatencyMs * float64(d.SetSamples)
	lat[OutcomeSet].n += d.SetSamples
	lat[OutcomeDelete].sum += d.AvgDeleteLatencyMs * float64(d.DeleteSamples)
	lat[OutcomeDelete].n += d.DeleteSamples
}

const (
	persistAttempts = 3
	persistRetryMin = 50 * time.Millisecond
	persistRetryMax = time.Second
)

// deltaRecord builds an unscoped delta Record from counters and latency
// accumulators. Caller must hold e.mu.
func (e *Engine) deltaRecord(key string, counters Counters, lat map[Outcome]*latAccum) *Record {
	return &Record{
		CacheName:          e.cacheName,
		Key:                key,
		Counters:           counters,
		AvgHitLatencyMs:    lat[OutcomeHit].avg(),
		HitSamples:         lat[OutcomeHit].n,
		AvgMissLatencyMs:   lat[OutcomeMiss].avg(),
		MissSamples:        lat[OutcomeMiss].n,
		AvgSetLatencyMs:    lat[OutcomeSet].avg(),
		SetSamples:         lat[OutcomeSet].n,
		AvgDeleteLatencyMs: lat[OutcomeDelete].avg(),
		DeleteSamples:      lat[OutcomeDelete].n,
	}
}

func mergeIntoPeriod(ctx context.Context, hs HistoryStore, delta *Record, period Period, windowStart time.Time) error {
	periodID := PeriodID(period, windowStart)

	record, ok, err := hs.Load(ctx, delta.CacheName, period, periodID, delta.Key)
	if err != nil {
		return err
	}
	if !ok {
		record = &Record{
			CacheName:   delta.CacheName,
			Period:      period,
			PeriodID:    periodID,
			Key:         delta.Key,
			PeriodStart: periodStart(period, windowStart),
		}
	}
	record.Merge(delta)
	return hs.Save(ctx, record)
}
