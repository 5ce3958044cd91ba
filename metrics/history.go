package metrics

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

// Period scopes a historical rollup.
type Period string

const (
	PeriodHourly  Period = "hourly"
	PeriodDaily   Period = "daily"
	PeriodMonthly Period = "monthly"
)

// periods enumerates every rollup granularity a persist touches.
var periods = []Period{PeriodHourly, PeriodDaily, PeriodMonthly}

// PeriodID renders the bucket identifier for a period containing t (UTC).
func PeriodID(p Period, t time.Time) string {
	t = t.UTC()
	switch p {
	case PeriodHourly:
		return t.Format("2006-01-02T15")
	case PeriodDaily:
		return t.Format("2006-01-02")
	case PeriodMonthly:
		return t.Format("2006-01")
	default:
		return t.Format(time.RFC3339)
	}
}

// periodStart truncates t (UTC) to the start of its bucket.
func periodStart(p Period, t time.Time) time.Time {
	t = t.UTC()
	switch p {
	case PeriodHourly:
		return t.Truncate(time.Hour)
	case PeriodDaily:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case PeriodMonthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t
	}
}

// Record is a persisted, period-scoped rollup identified by
// (cache name, period, period id, key), where an empty key marks the
// aggregate rollup. Cumulative counters are monotonically non-decreasing
// within a period; ratios are derived at read time, never stored.
type Record struct {
	bun.BaseModel `bun:"table:cache_metrics_history"`

	CacheName   string    `json:"cacheName" bun:"cache_name,pk"`
	Period      Period    `json:"period" bun:"period,pk"`
	PeriodID    string    `json:"periodId" bun:"period_id,pk"`
	Key         string    `json:"key,omitempty" bun:"key,pk"`
	PeriodStart time.Time `json:"periodStart" bun:"period_start"`

	// Embedded so bun flattens the counter columns into the row.
	Counters

	AvgHitLatencyMs    float64 `json:"avgHitLatencyMs" bun:"avg_hit_latency_ms"`
	HitSamples         uint64  `json:"hitSamples" bun:"hit_samples"`
	AvgMissLatencyMs   float64 `json:"avgMissLatencyMs" bun:"avg_miss_latency_ms"`
	MissSamples        uint64  `json:"missSamples" bun:"miss_samples"`
	AvgSetLatencyMs    float64 `json:"avgSetLatencyMs" bun:"avg_set_latency_ms"`
	SetSamples         uint64  `json:"setSamples" bun:"set_samples"`
	AvgDeleteLatencyMs float64 `json:"avgDeleteLatencyMs" bun:"avg_delete_latency_ms"`
	DeleteSamples      uint64  `json:"deleteSamples" bun:"delete_samples"`

	UpdatedAt time.Time `json:"updatedAt" bun:"updated_at"`
}

// Merge folds delta into r: counters by summation, averaged latencies by
// weighted average. Merging an empty delta leaves r unchanged.
func (r *Record) Merge(delta *Record) {
	r.Counters.add(delta.Counters)

	r.AvgHitLatencyMs, r.HitSamples = weightedAvg(
		r.AvgHitLatencyMs, r.HitSamples, delta.AvgHitLatencyMs, delta.HitSamples)
	r.AvgMissLatencyMs, r.MissSamples = weightedAvg(
		r.AvgMissLatencyMs, r.MissSamples, delta.AvgMissLatencyMs, delta.MissSamples)
	r.AvgSetLatencyMs, r.SetSamples = weightedAvg(
		r.AvgSetLatencyMs, r.SetSamples, delta.AvgSetLatencyMs, delta.SetSamples)
	r.AvgDeleteLatencyMs, r.DeleteSamples = weightedAvg(
		r.AvgDeleteLatencyMs, r.DeleteSamples, delta.AvgDeleteLatencyMs, delta.DeleteSamples)
}

func weightedAvg(oldAvg float64, oldCount uint64, newAvg float64, newCount uint64) (float64, uint64) {
	total := oldCount + newCount
	if total == 0 {
		return 0, 0
	}
	avg := (oldAvg*float64(oldCount) + newAvg*float64(newCount)) / float64(total)
	return avg, total
}

// HitRatio derives hits/(hits+misses), 0 when no requests were observed.
func (r *Record) HitRatio() float64 {
	total := r.Counters.TotalRequests()
	if total == 0 {
		return 0
	}
	return float64(r.Counters.Hits) / float64(total)
}

// ErrorRate derives errors/totalRequests, 0 when no requests were observed.
func (r *Record) ErrorRate() float64 {
	total := r.Counters.TotalRequests()
	if total == 0 {
		return 0
	}
	return float64(r.Counters.Errors) / float64(total)
}

// CacheEfficiency derives avgMissLatency/avgHitLatency, 0 when either side
// has no samples.
func (r *Record) CacheEfficiency() float64 {
	if r.HitSamples == 0 || r.MissSamples == 0 || r.AvgHitLatencyMs == 0 {
		return 0
	}
	return r.AvgMissLatencyMs / r.AvgHitLatencyMs
}

// HistoryQuery selects rollups by time range and optional key filter.
// A zero To means "until now"; an empty Key matches aggregate and per-key
// records alike.
type HistoryQuery struct {
	CacheName string
	Period    Period
	From      time.Time
	To        time.Time
	Key       string
}

// HistoryStore persists rollup records.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Load returns (nil, false, nil) for an unknown bucket.
type HistoryStore interface {
	Load(ctx context.Context, cacheName string, period Period, periodID, key string) (*Record, bool, error)
	Save(ctx context.Context, record *Record) error
	Query(ctx context.Context, q HistoryQuery) ([]*Record, error)
}

// MemoryHistoryStore keeps rollups in process memory. Suited to tests and
// hosts that scrape rollups elsewhere.
type MemoryHistoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryHistoryStore creates an empty in-memory rollup store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{records: make(map[string]*Record)}
}

func historyKey(cacheName string, period Period, periodID, key string) string {
	return fmt.Sprintf("%s|%s|%s|%s", cacheName, period, periodID, key)
}

// Load fetches one bucket. Returns a copy; callers may mutate it freely.
func (s *MemoryHistoryStore) Load(_ context.Context, cacheName string, period Period, periodID, key string) (*Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[historyKey(cacheName, period, periodID, key)]
	if !ok {
		return nil, false, nil
	}
	clone := *record
	return &clone, true, nil
}

// Save upserts one bucket.
func (s *MemoryHistoryStore) Save(_ context.Context, record *Record) error {
	clone := *record
	s.mu.Lock()
	s.records[historyKey(record.CacheName, record.Period, record.PeriodID, record.Key)] = &clone
	s.mu.Unlock()
	return nil
}

// Query returns matching buckets sorted by period id then key.
func (s *MemoryHistoryStore) Query(_ context.Context, q HistoryQuery) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Record
	for _, record := range s.records {
		if !matchesQuery(record, q) {
			continue
		}
		clone := *record
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PeriodID != out[j].PeriodID {
			return out[i].PeriodID < out[j].PeriodID
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func matchesQuery(record *Record, q HistoryQuery) bool {
	if q.CacheName != "" && record.CacheName != q.CacheName {
		return false
	}
	if q.Period != "" && record.Period != q.Period {
		return false
	}
	if q.Key != "" && record.Key != q.Key {
		return false
	}
	if !q.From.IsZero() && record.PeriodStart.Before(periodStart(record.Period, q.From)) {
		return false
	}
	if !q.To.IsZero() && record.PeriodStart.After(q.To) {
		return false
	}
	return true
}

// Ensure MemoryHistoryStore implements HistoryStore
var _ HistoryStore = (*MemoryHistoryStore)(nil)
