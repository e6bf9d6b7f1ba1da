// Package window implements a bounded-age sequence of timestamped values
// with lazy pruning: entries older than the configured horizon are dropped
// on the next read rather than by a background timer, per the design note
// that a deque (not index-0 slice deletion) is required for O(1) pop-front.
package window

import (
	"container/list"
	"time"
)

type entry struct {
	ts    time.Time
	value float64
}

// Window is a bounded-age time series. Every public read first prunes
// entries whose timestamp is older than now−horizon, where now is supplied
// by the configured clock (wall-clock UTC by default).
type Window struct {
	horizon time.Duration
	entries *list.List
	now     func() time.Time
}

// New returns a Window with the given horizon, pruning against wall-clock
// UTC time.
func New(horizon time.Duration) *Window {
	return &Window{horizon: horizon, entries: list.New(), now: func() time.Time { return time.Now().UTC() }}
}

// NewWithClock returns a Window pruning against a caller-supplied clock,
// used by tests that need deterministic "now".
func NewWithClock(horizon time.Duration, now func() time.Time) *Window {
	return &Window{horizon: horizon, entries: list.New(), now: now}
}

// Add appends value at ts (or now, if ts is the zero Time) and prunes.
func (w *Window) Add(value float64, ts time.Time) {
	if ts.IsZero() {
		ts = w.now()
	}
	w.entries.PushBack(entry{ts: ts, value: value})
	w.prune()
}

func (w *Window) prune() {
	cutoff := w.now().Add(-w.horizon)
	for e := w.entries.Front(); e != nil; {
		next := e.Next()
		if e.Value.(entry).ts.Before(cutoff) {
			w.entries.Remove(e)
		}
		e = next
	}
}

// Count returns the number of non-pruned entries.
func (w *Window) Count() int {
	w.prune()
	return w.entries.Len()
}

// Sum returns the sum of non-pruned entries, 0 when empty.
func (w *Window) Sum() float64 {
	w.prune()
	var sum float64
	for e := w.entries.Front(); e != nil; e = e.Next() {
		sum += e.Value.(entry).value
	}
	return sum
}

// Mean returns Sum()/Count(), or 0 when empty.
func (w *Window) Mean() float64 {
	count := w.Count()
	if count == 0 {
		return 0
	}
	return w.Sum() / float64(count)
}

// Min returns the minimum non-pruned value, or 0 when empty.
func (w *Window) Min() float64 {
	w.prune()
	if w.entries.Len() == 0 {
		return 0
	}
	min := w.entries.Front().Value.(entry).value
	for e := w.entries.Front().Next(); e != nil; e = e.Next() {
		if v := e.Value.(entry).value; v < min {
			min = v
		}
	}
	return min
}

// Max returns the maximum non-pruned value, or 0 when empty.
func (w *Window) Max() float64 {
	w.prune()
	if w.entries.Len() == 0 {
		return 0
	}
	max := w.entries.Front().Value.(entry).value
	for e := w.entries.Front().Next(); e != nil; e = e.Next() {
		if v := e.Value.(entry).value; v > max {
			max = v
		}
	}
	return max
}

// RatePerSecond returns Count() divided by the horizon in seconds.
func (w *Window) RatePerSecond() float64 {
	seconds := w.horizon.Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(w.Count()) / seconds
}
