// Package telemetrypersist implements the telemetry persistence worker:
// buffer decoded readings and flush them as one batched insert whenever the
// buffer reaches its size trigger or its time trigger elapses, whichever
// comes first.
package telemetrypersist

import (
	"context"
	"sync"
	"time"

	"github.com/atakang7/iot-analytics/engine/model"
	"github.com/atakang7/iot-analytics/engine/store"
	"github.com/atakang7/iot-analytics/engine/telemetry/metrics"
)

// Options tunes the flush triggers.
type Options struct {
	MaxBatchSize int
	MaxInterval  time.Duration
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxBatchSize <= 0 {
		o.MaxBatchSize = 100
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = time.Second
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Buffer accumulates readings and flushes them to the store in one
// transaction per flush, either when it reaches MaxBatchSize or when
// MaxInterval has elapsed since the last flush. Not safe for concurrent use
// from more than one goroutine beyond the Add/MaybeFlush caller; the
// persistence worker's consume loop is single-goroutine.
type Buffer struct {
	opts  Options
	store *store.Store

	mu        sync.Mutex
	pending   []model.Reading
	lastFlush time.Time

	telemetryStored metrics.Counter
}

// New constructs a Buffer writing flushed batches through s.
func New(s *store.Store, provider metrics.Provider, opts Options) *Buffer {
	opts = opts.withDefaults()
	b := &Buffer{opts: opts, store: s, lastFlush: opts.Now()}
	if provider != nil {
		b.telemetryStored = provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "iot", Name: "telemetry_stored_total", Help: "Telemetry readings persisted to the store", Labels: []string{"device_type"},
		}})
	}
	return b
}

// Interval reports the configured time trigger, for callers that drive their
// own ticker around MaybeFlush.
func (b *Buffer) Interval() time.Duration { return b.opts.MaxInterval }

// Add appends r to the pending batch and flushes immediately if the size
// trigger fires. The returned bool reports whether a flush actually ran, so
// a caller tracking per-message commit tokens alongside the buffer knows
// when it may advance them.
func (b *Buffer) Add(ctx context.Context, r model.Reading) (bool, error) {
	b.mu.Lock()
	b.pending = append(b.pending, r)
	shouldFlush := len(b.pending) >= b.opts.MaxBatchSize
	b.mu.Unlock()

	if shouldFlush {
		return true, b.Flush(ctx)
	}
	return false, nil
}

// MaybeFlush flushes the pending batch if MaxInterval has elapsed since the
// last flush and there is at least one pending reading. The returned bool
// reports whether a flush actually ran.
func (b *Buffer) MaybeFlush(ctx context.Context) (bool, error) {
	b.mu.Lock()
	due := len(b.pending) > 0 && b.opts.Now().Sub(b.lastFlush) >= b.opts.MaxInterval
	b.mu.Unlock()

	if due {
		return true, b.Flush(ctx)
	}
	return false, nil
}

// Flush writes the pending batch in one transaction and resets the buffer.
// Readings remain pending (and the caller must not commit their offsets) if
// the insert fails, so the batch is redelivered and retried in full.
func (b *Buffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	batch := b.pending
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := b.store.InsertTelemetryBatch(ctx, batch); err != nil {
		return err
	}

	b.mu.Lock()
	b.pending = nil
	b.lastFlush = b.opts.Now()
	b.mu.Unlock()

	if b.telemetryStored != nil {
		counts := make(map[string]int, 4)
		for _, r := range batch {
			counts[r.DeviceType]++
		}
		for deviceType, n := range counts {
			b.telemetryStored.Inc(float64(n), deviceType)
		}
	}
	return nil
}

// Pending reports how many readings are currently buffered, awaiting flush.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
