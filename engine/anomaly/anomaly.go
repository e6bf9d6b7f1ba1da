// Package anomaly implements the Z-score anomaly detection pipeline: a
// pure, stateful function from one telemetry record to a result carrying
// derived data and zero or more alerts, keyed per (device_id, metric_type).
package anomaly

import (
	"fmt"

	"github.com/atakang7/iot-analytics/engine/model"
	"github.com/atakang7/iot-analytics/engine/stats"
)

// Bounds is an inclusive [Low, High] absolute range; a value outside it is
// an absolute_bound_violation regardless of warm-up state.
type Bounds struct {
	Low, High float64
}

// DefaultBounds returns the built-in per-sensor-type absolute range used
// when a Detector is constructed without explicit bounds.
func DefaultBounds() map[string]Bounds {
	return map[string]Bounds{
		"temperature": {Low: -50, High: 150},
		"humidity":    {Low: 0, High: 100},
		"pressure":    {Low: 800, High: 1200},
	}
}

// Options configures a Detector.
type Options struct {
	Threshold      float64 // z-score threshold, default 3.0
	MinSamples     int     // warm-up sample count, default 10
	AbsoluteBounds map[string]Bounds
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = 3.0
	}
	if o.MinSamples <= 0 {
		o.MinSamples = 10
	}
	if o.AbsoluteBounds == nil {
		o.AbsoluteBounds = DefaultBounds()
	}
	return o
}

type seriesKey struct {
	deviceID   string
	metricType string
}

// Detector tracks running statistics per (device_id, metric_type) and
// evaluates each incoming value against absolute bounds and a rolling
// Z-score.
type Detector struct {
	opts  Options
	stats map[seriesKey]*stats.Running
}

// New constructs a Detector with the given options, applying documented
// defaults for any zero-valued field.
func New(opts Options) *Detector {
	return &Detector{opts: opts.withDefaults(), stats: make(map[seriesKey]*stats.Running)}
}

// Result carries the processed values and any alerts raised.
type Result struct {
	DeviceID    string
	MetricType  string
	Value       float64
	IsAnomaly   bool
	SampleCount int
	ZScore      *float64
	Mean        *float64
	Std         *float64
	Alerts      []model.Alert
}

// Process evaluates one (deviceID, metricType, value) observation in order:
// absolute-bound check, then Z-score check (gated on warm-up), then the
// running statistics update — the update always happens last and always
// happens, regardless of whether an alert fired.
func (d *Detector) Process(deviceID, deviceType, metricType string, value float64) Result {
	res := Result{DeviceID: deviceID, MetricType: metricType, Value: value}

	if bounds, ok := d.opts.AbsoluteBounds[metricType]; ok && (value < bounds.Low || value > bounds.High) {
		res.IsAnomaly = true
		lo, hi := bounds.Low, bounds.High
		msg := fmt.Sprintf("%s value %v outside bounds [%v, %v]", metricType, value, lo, hi)
		res.Alerts = append(res.Alerts, model.NewAlert(deviceID, deviceType, model.AlertAbsoluteBoundViolate, model.SeverityCritical, msg, &value, &hi))
	}

	key := seriesKey{deviceID: deviceID, metricType: metricType}
	series := d.stats[key]
	if series == nil {
		series = stats.New()
		d.stats[key] = series
	}

	if series.Count() >= d.opts.MinSamples && series.Std() > 0 {
		mean, std := series.Mean(), series.Std()
		z := (value - mean) / std
		if z < 0 {
			z = -z
		}
		res.ZScore = &z
		res.Mean = &mean
		res.Std = &std
		if z > d.opts.Threshold {
			res.IsAnomaly = true
			severity := model.SeverityWarning
			if z >= d.opts.Threshold*1.5 {
				severity = model.SeverityCritical
			}
			msg := fmt.Sprintf("%s value %.2f is %.1f std devs from mean %.2f", metricType, value, z, mean)
			threshold := d.opts.Threshold
			res.Alerts = append(res.Alerts, model.NewAlert(deviceID, deviceType, model.AlertStatisticalAnomaly, severity, msg, &value, &threshold))
		}
	}

	series.Update(value)
	res.SampleCount = series.Count()
	return res
}
