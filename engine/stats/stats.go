// Package stats implements the running statistics accumulator used by the
// anomaly pipeline: O(1) mean/variance/min/max over an
// unbounded stream, using the Σx/Σx² accumulation method named in the spec's
// design notes (Welford is the documented alternative, tolerated to the same
// 1e-6 tolerance; Σx/Σx² is what this fabric standardizes on since it is
// sufficient for Z-score gating with double-precision floats).
package stats

import "math"

// Running accumulates count, sum, sum-of-squares, min and max in O(1) time
// and space. The zero value is ready to use.
type Running struct {
	count  int
	sum    float64
	sumSq  float64
	min    float64
	max    float64
}

// New returns a fresh Running accumulator.
func New() *Running {
	return &Running{min: math.Inf(1), max: math.Inf(-1)}
}

// Update folds value into the accumulator.
func (r *Running) Update(value float64) {
	r.count++
	r.sum += value
	r.sumSq += value * value
	if r.count == 1 || value < r.min {
		r.min = value
	}
	if r.count == 1 || value > r.max {
		r.max = value
	}
}

// Count returns the number of observations folded in so far.
func (r *Running) Count() int { return r.count }

// Mean returns the arithmetic mean, or 0 when no observations exist.
func (r *Running) Mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sum / float64(r.count)
}

// Variance returns the population variance (Σx²/n − mean²), or 0 for n<2.
func (r *Running) Variance() float64 {
	if r.count < 2 {
		return 0
	}
	mean := r.Mean()
	v := r.sumSq/float64(r.count) - mean*mean
	if v < 0 {
		// guards against floating-point cancellation producing a tiny negative
		return 0
	}
	return v
}

// Std returns the population standard deviation, 0 for n<2.
func (r *Running) Std() float64 {
	return math.Sqrt(r.Variance())
}

// Min returns the minimum observed value, or 0 when no observations exist.
func (r *Running) Min() float64 {
	if r.count == 0 {
		return 0
	}
	return r.min
}

// Max returns the maximum observed value, or 0 when no observations exist.
func (r *Running) Max() float64 {
	if r.count == 0 {
		return 0
	}
	return r.max
}
