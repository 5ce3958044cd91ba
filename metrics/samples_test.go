package metrics

import "testing"

// TestSampleBuffer_Stats verifies summary ordering over a known sample set.
func TestSampleBuffer_Stats(t *testing.T) {
	b := newSampleBuffer(16)
	for _, ms := range []float64{5, 1, 3, 9, 7} {
		b.add(ms)
	}

	s := b.stats()
	if s.Count != 5 {
		t.Errorf("Count = %d, want 5", s.Count)
	}
	if s.Min != 1 || s.Max != 9 {
		t.Errorf("Min/Max = %v/%v, want 1/9", s.Min, s.Max)
	}
	if s.Avg != 5 {
		t.Errorf("Avg = %v, want 5", s.Avg)
	}
	if s.P95 != 9 || s.P99 != 9 {
		t.Errorf("P95/P99 = %v/%v, want 9/9", s.P95, s.P99)
	}
}

// TestSampleBuffer_Ordering verifies min <= avg <= p95 <= p99 <= max holds
// even after ring eviction has shifted the retained window.
func TestSampleBuffer_Ordering(t *testing.T) {
	b := newSampleBuffer(8)
	// Feed far more than capacity, with early outliers that get evicted.
	samples := []float64{1000, 0.1, 900, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 22}
	for _, ms := range samples {
		b.add(ms)
	}

	s := b.stats()
	if s.Count != uint64(len(samples)) {
		t.Errorf("Count = %d, want %d (includes evicted)", s.Count, len(samples))
	}
	if !(s.Min <= s.Avg && s.Avg <= s.P95 && s.P95 <= s.P99 && s.P99 <= s.Max) {
		t.Errorf("ordering violated: %+v", s)
	}
}

// TestSampleBuffer_Eviction verifies oldest-first eviction.
func TestSampleBuffer_Eviction(t *testing.T) {
	b := newSampleBuffer(3)
	for _, ms := range []float64{1, 2, 3, 4} {
		b.add(ms)
	}

	s := b.stats()
	if s.Min != 2 {
		t.Errorf("oldest sample should be evicted first: Min = %v, want 2", s.Min)
	}
	if s.Max != 4 {
		t.Errorf("Max = %v, want 4", s.Max)
	}
}

// TestSampleBuffer_Empty verifies an empty buffer reports zeros.
func TestSampleBuffer_Empty(t *testing.T) {
	b := newSampleBuffer(4)
	s := b.stats()
	if s != (LatencyStats{}) {
		t.Errorf("empty buffer stats = %+v, want zero value", s)
	}
}

// TestSampleBuffer_RunningAverage verifies the running average covers
// evicted samples, for rollup merges.
func TestSampleBuffer_RunningAverage(t *testing.T) {
	b := newSampleBuffer(2)
	for _, ms := range []float64{10, 20, 30, 40} {
		b.add(ms)
	}
	if got := b.average(); got != 25 {
		t.Errorf("average = %v, want 25", got)
	}
}

// TestPercentile_NearestRank verifies the nearest-rank method on small sets.
func TestPercentile_NearestRank(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	tests := []struct {
		p    float64
		want float64
	}{
		{50, 5},
		{95, 10},
		{99, 10},
		{1, 1},
	}
	for _, tt := range tests {
		if got := percentile(sorted, tt.p); got != tt.want {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}

	if got := percentile(nil, 95); got != 0 {
		t.Errorf("percentile(nil) = %v, want 0", got)
	}
}
