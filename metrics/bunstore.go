package metrics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

// BunHistoryStore persists rollups in a relational table through bun.
// The schema key is (cache_name, period, period_id, key); Save upserts.
type BunHistoryStore struct {
	db *bun.DB
}

// NewBunHistoryStore wraps an existing bun.DB.
func NewBunHistoryStore(db *bun.DB) *BunHistoryStore {
	return &BunHistoryStore{db: db}
}

// OpenSQLiteHistoryStore opens (or creates) a SQLite-backed rollup store at
// dsn and ensures the schema exists. Use ":memory:" for an ephemeral store.
func OpenSQLiteHistoryStore(ctx context.Context, dsn string) (*BunHistoryStore, error) {
	sqldb, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("metrics: failed to open sqlite store: %w", err)
	}

	store := NewBunHistoryStore(bun.NewDB(sqldb, sqlitedialect.New()))
	if err := store.EnsureSchema(ctx); err != nil {
		_ = sqldb.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema creates the rollup table if it does not exist.
func (s *BunHistoryStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*Record)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("metrics: failed to create history table: %w", err)
	}
	return nil
}

// Load fetches one bucket. Returns (nil, false, nil) for an unknown bucket.
func (s *BunHistoryStore) Load(ctx context.Context, cacheName string, period Period, periodID, key string) (*Record, bool, error) {
	record := new(Record)
	err := s.db.NewSelect().
		Model(record).
		Where("cache_name = ?", cacheName).
		Where("period = ?", period).
		Where("period_id = ?", periodID).
		Where("key = ?", key).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("metrics: failed to load rollup: %w", err)
	}
	return record, true, nil
}

// Save upserts one bucket. The caller performs the read-merge-write cycle;
// this replaces the whole row.
func (s *BunHistoryStore) Save(ctx context.Context, record *Record) error {
	record.UpdatedAt = time.Now().UTC()
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (cache_name, period, period_id, key) DO UPDATE").
		Set("period_start = EXCLUDED.period_start").
		Set("hits = EXCLUDED.hits").
		Set("misses = EXCLUDED.misses").
		Set("sets = EXCLUDED.sets").
		Set("deletes = EXCLUDED.deletes").
		Set("errors = EXCLUDED.errors").
		Set("native_sets = EXCLUDED.native_sets").
		Set("native_gets = EXCLUDED.native_gets").
		Set("native_deletes = EXCLUDED.native_deletes").
		Set("native_clears = EXCLUDED.native_clears").
		Set("native_delete_by_tags = EXCLUDED.native_delete_by_tags").
		Set("native_errors = EXCLUDED.native_errors").
		Set("avg_hit_latency_ms = EXCLUDED.avg_hit_latency_ms").
		Set("hit_samples = EXCLUDED.hit_samples").
		Set("avg_miss_latency_ms = EXCLUDED.avg_miss_latency_ms").
		Set("miss_samples = EXCLUDED.miss_samples").
		Set("avg_set_latency_ms = EXCLUDED.avg_set_latency_ms").
		Set("set_samples = EXCLUDED.set_samples").
		Set("avg_delete_latency_ms = EXCLUDED.avg_delete_latency_ms").
		Set("delete_samples = EXCLUDED.delete_samples").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("metrics: failed to save rollup: %w", err)
	}
	return nil
}

// Query returns matching buckets sorted by period id then key.
func (s *BunHistoryStore) Query(ctx context.Context, q HistoryQuery) ([]*Record, error) {
	var records []*Record
	sel := s.db.NewSelect().Model(&records)

	if q.CacheName != "" {
		sel = sel.Where("cache_name = ?", q.CacheName)
	}
	if q.Period != "" {
		sel = sel.Where("period = ?", q.Period)
	}
	if q.Key != "" {
		sel = sel.Where("key = ?", q.Key)
	}
	if !q.From.IsZero() {
		sel = sel.Where("period_start >= ?", periodStart(nonEmptyPeriod(q.Period), q.From))
	}
	if !q.To.IsZero() {
		sel = sel.Where("period_start <= ?", q.To.UTC())
	}

	if err := sel.Order("period_id ASC", "key ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("metrics: failed to query rollups: %w", err)
	}
	return records, nil
}

func nonEmptyPeriod(p Period) Period {
	if p == "" {
		return PeriodHourly
	}
	return p
}

// Close releases the underlying database handle.
func (s *BunHistoryStore) Close() error {
	return s.db.Close()
}

// Ensure BunHistoryStore implements HistoryStore
var _ HistoryStore = (*BunHistoryStore)(nil)
