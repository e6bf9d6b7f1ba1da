package window

import (
	"testing"
	"time"
)

func TestWindowPrunesOlderThanHorizon(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	w := NewWithClock(10*time.Second, func() time.Time { return now })

	w.Add(1, base.Add(-20*time.Second))
	w.Add(2, base)
	if w.Count() != 1 {
		t.Fatalf("expected stale entry pruned, got count=%d", w.Count())
	}
}

func TestWindowCountOneAfterFarApartThenRecent(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	horizon := 5 * time.Second
	w := NewWithClock(horizon, func() time.Time { return now })

	w.Add(10, base.Add(-2*horizon))
	w.Add(20, base)
	if w.Count() != 1 {
		t.Fatalf("expected count=1 after far-apart then recent add, got %d", w.Count())
	}
}

func TestWindowEmptyReadsAreZero(t *testing.T) {
	w := New(time.Minute)
	if w.Count() != 0 || w.Sum() != 0 || w.Mean() != 0 || w.Min() != 0 || w.Max() != 0 {
		t.Fatalf("expected all-zero reads on empty window")
	}
}

func TestWindowAggregates(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	w := NewWithClock(time.Minute, func() time.Time { return now })
	for _, v := range []float64{1, 2, 3, 4} {
		w.Add(v, base)
	}
	if w.Count() != 4 {
		t.Fatalf("expected count=4, got %d", w.Count())
	}
	if w.Sum() != 10 {
		t.Fatalf("expected sum=10, got %v", w.Sum())
	}
	if w.Mean() != 2.5 {
		t.Fatalf("expected mean=2.5, got %v", w.Mean())
	}
	if w.Min() != 1 || w.Max() != 4 {
		t.Fatalf("unexpected min=%v max=%v", w.Min(), w.Max())
	}
}

func TestWindowRatePerSecond(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	w := NewWithClock(10*time.Second, func() time.Time { return now })
	for i := 0; i < 5; i++ {
		w.Add(float64(i), base)
	}
	if w.RatePerSecond() != 0.5 {
		t.Fatalf("expected rate 0.5, got %v", w.RatePerSecond())
	}
}
