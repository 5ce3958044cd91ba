package admin

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/cachelayer/cache"
	"github.com/jonwraymond/cachelayer/metrics"
	"github.com/jonwraymond/cachelayer/store"
)

// ErrNotFound is returned when the requested entry does not exist.
var ErrNotFound = errors.New("admin: entry not found")

// ErrNilCache is returned when a Surface is constructed without a cache.
var ErrNilCache = errors.New("admin: cache must not be nil")

// EntryView is the JSON shape of one cache entry.
type EntryView struct {
	Key       string    `json:"key"`
	Value     any       `json:"value"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"timestamp"`
	TTL       string    `json:"ttl,omitempty"`
}

func entryView(e *store.Entry) EntryView {
	v := EntryView{
		Key:       e.Key,
		Value:     e.Value,
		Tags:      e.Tags,
		CreatedAt: e.CreatedAt,
	}
	if e.TTL > 0 {
		v.TTL = e.TTL.String()
	}
	return v
}

// PutRequest is the JSON body for setting an entry.
type PutRequest struct {
	Value any      `json:"value"`
	Tags  []string `json:"tags,omitempty"`
	// TTL is a Go duration string, e.g. "5m". Empty means the instance
	// default.
	TTL string `json:"ttl,omitempty"`
}

// Surface is the administrative data contract over one cache instance.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: every method honors cancellation/deadlines.
// - Errors: lookups report absence via ErrNotFound, not nil results.
type Surface struct {
	cache   *cache.Cache
	history metrics.HistoryStore
}

// NewSurface creates the admin surface. The history store may be nil when
// rollup persistence is not configured; QueryHistory then returns empty.
func NewSurface(c *cache.Cache, history metrics.HistoryStore) (*Surface, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	return &Surface{cache: c, history: history}, nil
}

// ListEntries enumerates every live cache entry. Order follows the storage
// adapter's iteration order.
func (s *Surface) ListEntries(ctx context.Context) ([]EntryView, error) {
	var out []EntryView
	err := s.cache.Iterate(ctx, func(entry *store.Entry) bool {
		out = append(out, entryView(entry))
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetEntry fetches one entry by key.
func (s *Surface) GetEntry(ctx context.Context, key string) (EntryView, error) {
	entry, ok, err := s.cache.Entry(ctx, key)
	if err != nil {
		return EntryView{}, err
	}
	if !ok {
		return EntryView{}, ErrNotFound
	}
	return entryView(entry), nil
}

// PutEntry sets one entry unconditionally.
func (s *Surface) PutEntry(ctx context.Context, key string, req PutRequest) error {
	var ttl time.Duration
	if req.TTL != "" {
		var err error
		ttl, err = time.ParseDuration(req.TTL)
		if err != nil {
			return err
		}
	}
	return s.cache.Set(ctx, key, req.Value, ttl, req.Tags...)
}

// DeleteEntry removes one entry. Returns ErrNotFound when nothing was
// removed.
func (s *Surface) DeleteEntry(ctx context.Context, key string) error {
	deleted, err := s.cache.Delete(ctx, key)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

// Clear removes every entry.
func (s *Surface) Clear(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// SetMetricsEnabled toggles the aggregate metrics domain. The per-key
// domain is independent.
func (s *Surface) SetMetricsEnabled(enabled bool) {
	s.cache.Runtime().SetMetricsEnabled(enabled)
}

// SetKeyMetricsEnabled toggles the per-key metrics domain.
func (s *Surface) SetKeyMetricsEnabled(enabled bool) {
	s.cache.Runtime().SetKeyMetricsEnabled(enabled)
}

// ClearMetrics resets the live window and per-key table. Persisted rollups
// are untouched.
func (s *Surface) ClearMetrics() {
	s.cache.Metrics().Clear()
}

// Snapshot returns the live aggregate readout, nil when disabled.
func (s *Surface) Snapshot() *metrics.Readout {
	return s.cache.Metrics().Snapshot()
}

// KeySnapshots returns per-key readouts, nil when disabled.
func (s *Surface) KeySnapshots() []*metrics.KeyReadout {
	return s.cache.Metrics().KeySnapshots()
}

// QueryHistory returns persisted rollups for this instance matching the
// time range and optional key filter.
func (s *Surface) QueryHistory(ctx context.Context, period metrics.Period, from, to time.Time, key string) ([]*metrics.Record, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Query(ctx, metrics.HistoryQuery{
		CacheName: s.cache.Name(),
		Period:    period,
		From:      from,
		To:        to,
		Key:       key,
	})
}
