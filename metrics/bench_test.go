package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/jonwraymond/cachelayer/config"
)

func newBenchEngine() *Engine {
	return NewEngine(EngineConfig{CacheName: "bench"}, config.NewManager(config.DefaultRuntime()))
}

func BenchmarkEngine_RecordHit(b *testing.B) {
	ctx := context.Background()
	e := newBenchEngine()
	meta := KeyMeta{Kind: "function", Construct: "bench-op"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.RecordHit(ctx, "k", meta, time.Millisecond)
	}
}

func BenchmarkEngine_RecordHit_KeyMetrics(b *testing.B) {
	ctx := context.Background()
	manager := config.NewManager(config.DefaultRuntime())
	manager.SetKeyMetricsEnabled(true)
	e := NewEngine(EngineConfig{CacheName: "bench"}, manager)
	meta := KeyMeta{Kind: "function", Construct: "bench-op"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.RecordHit(ctx, "k", meta, time.Millisecond)
	}
}

func BenchmarkEngine_Snapshot(b *testing.B) {
	ctx := context.Background()
	e := newBenchEngine()
	meta := KeyMeta{Kind: "function"}
	for i := 0; i < 1000; i++ {
		e.RecordHit(ctx, "k", meta, time.Millisecond)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.Snapshot()
	}
}

func BenchmarkConcurrent_RecordHit(b *testing.B) {
	ctx := context.Background()
	e := newBenchEngine()
	meta := KeyMeta{Kind: "function"}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			e.RecordHit(ctx, "k", meta, time.Millisecond)
		}
	})
}
