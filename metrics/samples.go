package metrics

import (
	"math"
	"sort"
)

// DefaultMaxSamples caps the latency sample buffer per outcome category.
const DefaultMaxSamples = 1024

// sampleBuffer is a fixed-capacity ring buffer of latency samples in
// milliseconds. When full, the oldest sample is evicted first, trading
// percentile precision for bounded memory.
type sampleBuffer struct {
	data []float64
	next int
	full bool

	// Running totals over every sample ever added, not just the retained
	// window. Weighted rollup merges need true averages, not ring averages.
	sum   float64
	count uint64
}

func newSampleBuffer(capacity int) *sampleBuffer {
	if capacity <= 0 {
		capacity = DefaultMaxSamples
	}
	return &sampleBuffer{data: make([]float64, 0, capacity)}
}

func (b *sampleBuffer) add(ms float64) {
	b.sum += ms
	b.count++

	if !b.full && len(b.data) < cap(b.data) {
		b.data = append(b.data, ms)
		if len(b.data) == cap(b.data) {
			b.full = true
		}
		return
	}
	b.full = true
	b.data[b.next] = ms
	b.next = (b.next + 1) % cap(b.data)
}

func (b *sampleBuffer) values() []float64 {
	out := make([]float64, len(b.data))
	copy(out, b.data)
	return out
}

func (b *sampleBuffer) average() float64 {
	if b.count == 0 {
		return 0
	}
	return b.sum / float64(b.count)
}

// LatencyStats summarizes one outcome's latency samples, in milliseconds.
// Min/Max/Avg/P95/P99 describe the retained sample window; Count covers
// every recorded sample, including evicted ones.
type LatencyStats struct {
	Count uint64  `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
}

func (b *sampleBuffer) stats() LatencyStats {
	stats := LatencyStats{Count: b.count}
	if len(b.data) == 0 {
		return stats
	}

	sorted := b.values()
	sort.Float64s(sorted)
	var windowSum float64
	for _, v := range sorted {
		windowSum += v
	}
	stats.Min = sorted[0]
	stats.Max = sorted[len(sorted)-1]
	// Average over the retained window so min <= avg <= p95 always holds.
	stats.Avg = windowSum / float64(len(sorted))
	stats.P95 = percentile(sorted, 95)
	stats.P99 = percentile(sorted, 99)
	return stats
}

// percentile uses the nearest-rank method over a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	if rank > len(sorted) {
		rank = len(sorted)
	}
	return sorted[rank-1]
}
