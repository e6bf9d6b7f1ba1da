package telemetrypersist

import (
	"context"
	"testing"
	"time"

	"github.com/atakang7/iot-analytics/engine/model"
)

func TestBufferDoesNotFlushBelowSizeOrTimeTrigger(t *testing.T) {
	clock := time.Unix(1000, 0).UTC()
	b := New(nil, nil, Options{MaxBatchSize: 5, MaxInterval: time.Minute, Now: func() time.Time { return clock }})

	for i := 0; i < 3; i++ {
		if flushed, err := b.Add(context.Background(), model.Reading{DeviceID: "d1"}); err != nil || flushed {
			t.Fatalf("unexpected flush=%v err=%v adding below size trigger", flushed, err)
		}
	}
	if b.Pending() != 3 {
		t.Fatalf("expected 3 pending readings, got %d", b.Pending())
	}
}

func TestBufferFlushOnEmptyBufferIsNoOpWithoutStore(t *testing.T) {
	// Flush with zero pending readings is a no-op and must not touch the
	// store, so passing a nil store is safe here.
	b := New(nil, nil, Options{})
	if err := b.Flush(context.Background()); err != nil {
		t.Fatalf("expected no-op flush on empty buffer, got %v", err)
	}
}

func TestMaybeFlushRespectsTimeTriggerAgainstClock(t *testing.T) {
	now := time.Unix(1000, 0).UTC()
	clock := func() time.Time { return now }
	b := New(nil, nil, Options{MaxBatchSize: 1000, MaxInterval: 2 * time.Second, Now: clock})

	b.pending = []model.Reading{{DeviceID: "d1"}}
	b.lastFlush = now

	// Not due yet: only 1s elapsed against a 2s interval. MaybeFlush would
	// call store.InsertTelemetryBatch on a nil store if it flushed, so
	// reaching here without a panic confirms it stayed pending.
	now = now.Add(time.Second)
	if flushed, err := b.MaybeFlush(context.Background()); err != nil || flushed {
		t.Fatalf("unexpected flush=%v err=%v before the interval elapses", flushed, err)
	}
	if b.Pending() != 1 {
		t.Fatalf("expected flush to be skipped before the interval elapses")
	}
}
