// Package aggregator implements the rolling per-device/per-metric window
// aggregation pipeline: restartable, non-persistent in-memory state that
// is lost on worker restart by design.
package aggregator

import (
	"time"

	"github.com/atakang7/iot-analytics/engine/window"
)

type seriesKey struct {
	deviceID   string
	metricType string
}

// Options configures an Aggregator.
type Options struct {
	// WindowSeconds is the rolling horizon; defaults to 300 (5 minutes).
	WindowSeconds int
	// Now supplies the clock used for window pruning; defaults to
	// wall-clock UTC.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.WindowSeconds <= 0 {
		o.WindowSeconds = 300
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	return o
}

// Aggregator maintains one Window per (device_id, metric_type), plus global
// by-metric and by-device reading counters.
type Aggregator struct {
	opts          Options
	windows       map[seriesKey]*window.Window
	byMetricCount map[string]int
	byDeviceCount map[string]int
}

// New constructs an Aggregator.
func New(opts Options) *Aggregator {
	return &Aggregator{
		opts:          opts.withDefaults(),
		windows:       make(map[seriesKey]*window.Window),
		byMetricCount: make(map[string]int),
		byDeviceCount: make(map[string]int),
	}
}

// Result is the per-record aggregation snapshot returned by Process.
type Result struct {
	DeviceID             string
	MetricType           string
	WindowSeconds         int
	Count                 int
	Sum                   float64
	Mean                  float64
	Min                   float64
	Max                   float64
	RatePerSecond         float64
	TotalReadings         int
	DeviceTotalReadings   int
}

// Process folds one (deviceID, metricType, value, ts) observation into its
// window. ts may be the zero Time, in which case the configured clock is
// used (mirrors the Python source's malformed-timestamp fallback).
func (a *Aggregator) Process(deviceID, metricType string, value float64, ts time.Time) Result {
	key := seriesKey{deviceID: deviceID, metricType: metricType}
	w := a.windows[key]
	if w == nil {
		w = window.NewWithClock(time.Duration(a.opts.WindowSeconds)*time.Second, a.opts.Now)
		a.windows[key] = w
	}
	w.Add(value, ts)

	a.byMetricCount[metricType]++
	a.byDeviceCount[deviceID]++

	return Result{
		DeviceID:            deviceID,
		MetricType:          metricType,
		WindowSeconds:       a.opts.WindowSeconds,
		Count:               w.Count(),
		Sum:                 w.Sum(),
		Mean:                w.Mean(),
		Min:                 w.Min(),
		Max:                 w.Max(),
		RatePerSecond:       w.RatePerSecond(),
		TotalReadings:       a.byMetricCount[metricType],
		DeviceTotalReadings: a.byDeviceCount[deviceID],
	}
}

// Summary is the global cross-device/cross-metric snapshot.
type Summary struct {
	TotalDevices  int
	TotalReadings int
	ByMetric      map[string]int
	ByDevice      map[string]int
}

// GetSummary returns a snapshot of all tracked devices/metrics.
func (a *Aggregator) GetSummary() Summary {
	total := 0
	for _, c := range a.byMetricCount {
		total += c
	}
	byMetric := make(map[string]int, len(a.byMetricCount))
	for k, v := range a.byMetricCount {
		byMetric[k] = v
	}
	byDevice := make(map[string]int, len(a.byDeviceCount))
	for k, v := range a.byDeviceCount {
		byDevice[k] = v
	}
	return Summary{TotalDevices: len(a.byDeviceCount), TotalReadings: total, ByMetric: byMetric, ByDevice: byDevice}
}

// Reset clears all accumulated state.
func (a *Aggregator) Reset() {
	a.windows = make(map[seriesKey]*window.Window)
	a.byMetricCount = make(map[string]int)
	a.byDeviceCount = make(map[string]int)
}
