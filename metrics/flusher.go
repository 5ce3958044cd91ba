package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFlushInterval is how often the background flusher persists the
// live window when no interval is configured.
const DefaultFlushInterval = time.Minute

// Flusher periodically persists the engine's window into a history store.
type Flusher struct {
	engine   *Engine
	store    HistoryStore
	interval time.Duration

	// onError, if set, receives persist failures; the loop keeps running.
	onError func(error)

	stop      chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
	started   atomic.Bool
	done      chan struct{}
}

// NewFlusher creates a flusher. Interval <= 0 means DefaultFlushInterval.
func NewFlusher(engine *Engine, store HistoryStore, interval time.Duration, onError func(error)) *Flusher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Flusher{
		engine:   engine,
		store:    store,
		interval: interval,
		onError:  onError,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the flush loop. Call Stop to end it; Stop performs a
// final flush so a clean shutdown loses no window. Subsequent Starts are
// no-ops.
func (f *Flusher) Start() {
	f.startOnce.Do(func() {
		f.started.Store(true)
		go f.loop()
	})
}

func (f *Flusher) loop() {
	defer close(f.done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stop:
			f.flush()
			return
		case <-ticker.C:
			f.flush()
		}
	}
}

func (f *Flusher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), f.interval)
	defer cancel()

	if err := f.engine.Persist(ctx, f.store); err != nil && f.onError != nil {
		f.onError(err)
	}
}

// Stop ends the loop after a final flush and waits for it to finish. Safe
// to call without a prior Start.
func (f *Flusher) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
	if !f.started.Load() {
		return
	}
	<-f.done
}
