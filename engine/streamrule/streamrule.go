// Package streamrule implements per-reading threshold breach, rate-of-change
// and stuck-sensor detection, returning an alert for each detector that
// fires; publishing the alerts is left to the caller.
package streamrule

import (
	"fmt"

	"github.com/atakang7/iot-analytics/engine/model"
	"github.com/atakang7/iot-analytics/engine/threshold"
)

// Options tunes the rate-of-change and stuck-sensor detectors.
type Options struct {
	RateThreshold float64
	StuckCount    int
}

func (o Options) withDefaults() Options {
	if o.RateThreshold <= 0 {
		o.RateThreshold = 10.0
	}
	if o.StuckCount <= 0 {
		o.StuckCount = 5
	}
	return o
}

type seriesKey struct {
	deviceID string
	sensorID string
}

// seriesState tracks the per-(device, sensor) history the rate-of-change
// and stuck-sensor detectors need.
type seriesState struct {
	lastValue    float64
	hasLastValue bool
	history      []float64 // fixed-size ring, most recent StuckCount values
}

// Processor evaluates one reading at a time against thresholds loaded from
// the store and against its own per-series history.
type Processor struct {
	opts       Options
	thresholds *threshold.Table
	state      map[seriesKey]*seriesState
}

// New constructs a Processor. thresholds may be swapped later via
// SetThresholds to support periodic reloads.
func New(thresholds *threshold.Table, opts Options) *Processor {
	return &Processor{
		opts:       opts.withDefaults(),
		thresholds: thresholds,
		state:      make(map[seriesKey]*seriesState),
	}
}

// SetThresholds replaces the threshold table used by subsequent Process calls.
func (p *Processor) SetThresholds(t *threshold.Table) { p.thresholds = t }

// Process evaluates r and returns zero or more alerts, in the order the
// three detectors fire: threshold breach, rate of change, stuck sensor.
// Readings with no scalar interpretation are silently skipped.
func (p *Processor) Process(r model.Reading) []model.Alert {
	value, ok := r.Scalar()
	if !ok {
		return nil
	}

	key := seriesKey{deviceID: r.DeviceID, sensorID: r.SensorID}
	st, exists := p.state[key]
	if !exists {
		st = &seriesState{}
		p.state[key] = st
	}

	var alerts []model.Alert

	if a, fired := p.checkThreshold(r, value); fired {
		alerts = append(alerts, a)
	}

	if st.hasLastValue {
		delta := value - st.lastValue
		if delta < 0 {
			delta = -delta
		}
		if delta > p.opts.RateThreshold {
			rate := p.opts.RateThreshold
			alerts = append(alerts, model.NewAlert(
				r.DeviceID, r.DeviceType, model.AlertRapidChange, model.SeverityWarning,
				fmt.Sprintf("%s changed by %.2f in one reading", r.SensorType, delta),
				&value, &rate,
			))
		}
	}

	st.history = append(st.history, value)
	if len(st.history) > p.opts.StuckCount {
		st.history = st.history[len(st.history)-p.opts.StuckCount:]
	}
	if len(st.history) == p.opts.StuckCount && allEqual(st.history) {
		alerts = append(alerts, model.NewAlert(
			r.DeviceID, r.DeviceType, model.AlertStuckSensor, model.SeverityWarning,
			fmt.Sprintf("%s stuck at %.2f for %d readings", r.SensorID, value, p.opts.StuckCount),
			&value, nil,
		))
	}

	st.lastValue = value
	st.hasLastValue = true

	return alerts
}

func (p *Processor) checkThreshold(r model.Reading, value float64) (model.Alert, bool) {
	if p.thresholds == nil {
		return model.Alert{}, false
	}
	t, ok := p.thresholds.Lookup(r.DeviceType, r.SensorType)
	if !ok {
		return model.Alert{}, false
	}
	sev, limit, fired := t.Check(value)
	if !fired {
		return model.Alert{}, false
	}
	return model.NewAlert(
		r.DeviceID, r.DeviceType, model.AlertThresholdBreach, sev,
		fmt.Sprintf("%s value %.2f exceeds limit %.2f", r.SensorType, value, *limit),
		&value, limit,
	), true
}

func allEqual(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
