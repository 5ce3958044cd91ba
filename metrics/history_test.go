package metrics

import (
	"context"
	"testing"
	"time"
)

// TestPeriodID verifies bucket identifiers per granularity.
func TestPeriodID(t *testing.T) {
	at := time.Date(2026, 3, 7, 14, 30, 0, 0, time.UTC)

	tests := []struct {
		period Period
		want   string
	}{
		{PeriodHourly, "2026-03-07T14"},
		{PeriodDaily, "2026-03-07"},
		{PeriodMonthly, "2026-03"},
	}
	for _, tt := range tests {
		if got := PeriodID(tt.period, at); got != tt.want {
			t.Errorf("PeriodID(%s) = %q, want %q", tt.period, got, tt.want)
		}
	}
}

// TestPeriodStart verifies bucket truncation.
func TestPeriodStart(t *testing.T) {
	at := time.Date(2026, 3, 7, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		period Period
		want   time.Time
	}{
		{PeriodHourly, time.Date(2026, 3, 7, 14, 0, 0, 0, time.UTC)},
		{PeriodDaily, time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)},
		{PeriodMonthly, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		if got := periodStart(tt.period, at); !got.Equal(tt.want) {
			t.Errorf("periodStart(%s) = %v, want %v", tt.period, got, tt.want)
		}
	}
}

// TestRecord_Merge verifies counter summation and weighted latency merging.
func TestRecord_Merge(t *testing.T) {
	r := &Record{
		Counters:         Counters{Hits: 10, Misses: 5, Errors: 1},
		AvgHitLatencyMs:  2.0,
		HitSamples:       10,
		AvgMissLatencyMs: 20.0,
		MissSamples:      5,
	}
	delta := &Record{
		Counters:         Counters{Hits: 30, Misses: 5},
		AvgHitLatencyMs:  4.0,
		HitSamples:       30,
		AvgMissLatencyMs: 40.0,
		MissSamples:      5,
	}

	r.Merge(delta)

	if r.Hits != 40 || r.Misses != 10 || r.Errors != 1 {
		t.Errorf("counters = %+v", r.Counters)
	}
	// (2*10 + 4*30) / 40 = 3.5
	if r.AvgHitLatencyMs != 3.5 || r.HitSamples != 40 {
		t.Errorf("hit latency = %v/%d, want 3.5/40", r.AvgHitLatencyMs, r.HitSamples)
	}
	// (20*5 + 40*5) / 10 = 30
	if r.AvgMissLatencyMs != 30 || r.MissSamples != 10 {
		t.Errorf("miss latency = %v/%d, want 30/10", r.AvgMissLatencyMs, r.MissSamples)
	}
}

// TestRecord_MergeEmptyDelta verifies an empty delta changes nothing.
func TestRecord_MergeEmptyDelta(t *testing.T) {
	r := &Record{
		Counters:        Counters{Hits: 10},
		AvgHitLatencyMs: 2.0,
		HitSamples:      10,
	}
	before := *r

	r.Merge(&Record{})

	if r.Counters != before.Counters || r.AvgHitLatencyMs != before.AvgHitLatencyMs || r.HitSamples != before.HitSamples {
		t.Errorf("empty merge changed the record: %+v", r)
	}
}

// TestRecord_DerivedRatios verifies derived values and their zero guards.
func TestRecord_DerivedRatios(t *testing.T) {
	r := &Record{
		Counters:         Counters{Hits: 80, Misses: 20, Errors: 5},
		AvgHitLatencyMs:  2.0,
		HitSamples:       80,
		AvgMissLatencyMs: 50.0,
		MissSamples:      20,
	}

	if got := r.HitRatio(); got != 0.8 {
		t.Errorf("HitRatio = %v, want 0.8", got)
	}
	if got := r.ErrorRate(); got != 0.05 {
		t.Errorf("ErrorRate = %v, want 0.05", got)
	}
	if got := r.CacheEfficiency(); got != 25 {
		t.Errorf("CacheEfficiency = %v, want 25", got)
	}

	empty := &Record{}
	if empty.HitRatio() != 0 || empty.ErrorRate() != 0 || empty.CacheEfficiency() != 0 {
		t.Error("derived ratios on an empty record must be 0, not NaN")
	}
}

// TestMemoryHistoryStore_LoadSave verifies the upsert cycle and miss shape.
func TestMemoryHistoryStore_LoadSave(t *testing.T) {
	ctx := context.Background()
	hs := NewMemoryHistoryStore()

	_, ok, err := hs.Load(ctx, "c", PeriodHourly, "2026-03-07T14", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Fatal("unknown bucket should be (nil, false, nil)")
	}

	record := &Record{
		CacheName: "c",
		Period:    PeriodHourly,
		PeriodID:  "2026-03-07T14",
		Counters:  Counters{Hits: 3},
	}
	if err := hs.Save(ctx, record); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, ok, err := hs.Load(ctx, "c", PeriodHourly, "2026-03-07T14", "")
	if err != nil || !ok {
		t.Fatalf("Load = (%v, %v), want found", err, ok)
	}
	if got.Hits != 3 {
		t.Errorf("Hits = %d, want 3", got.Hits)
	}

	// Load must return a copy; mutating it must not alter the store.
	got.Hits = 99
	again, _, _ := hs.Load(ctx, "c", PeriodHourly, "2026-03-07T14", "")
	if again.Hits != 3 {
		t.Error("Load should return a defensive copy")
	}
}

// TestMemoryHistoryStore_Query verifies filtering and ordering.
func TestMemoryHistoryStore_Query(t *testing.T) {
	ctx := context.Background()
	hs := NewMemoryHistoryStore()

	seed := []*Record{
		{CacheName: "c", Period: PeriodHourly, PeriodID: "2026-03-07T10", PeriodStart: time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)},
		{CacheName: "c", Period: PeriodHourly, PeriodID: "2026-03-07T12", PeriodStart: time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)},
		{CacheName: "c", Period: PeriodHourly, PeriodID: "2026-03-07T12", Key: "user:1", PeriodStart: time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)},
		{CacheName: "c", Period: PeriodDaily, PeriodID: "2026-03-07", PeriodStart: time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)},
		{CacheName: "other", Period: PeriodHourly, PeriodID: "2026-03-07T12", PeriodStart: time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)},
	}
	for _, r := range seed {
		if err := hs.Save(ctx, r); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	got, err := hs.Query(ctx, HistoryQuery{CacheName: "c", Period: PeriodHourly})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 hourly records for c, got %d", len(got))
	}
	// Sorted by period id, then key.
	if got[0].PeriodID != "2026-03-07T10" || got[2].Key != "user:1" {
		t.Errorf("unexpected order: %v %v %v", got[0].PeriodID, got[1].PeriodID, got[2].Key)
	}

	got, err = hs.Query(ctx, HistoryQuery{
		CacheName: "c",
		Period:    PeriodHourly,
		From:      time.Date(2026, 3, 7, 11, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("time filter: expected 2 records, got %d", len(got))
	}

	got, err = hs.Query(ctx, HistoryQuery{CacheName: "c", Key: "user:1"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(got) != 1 || got[0].Key != "user:1" {
		t.Errorf("key filter: got %d records", len(got))
	}
}
