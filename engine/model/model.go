// Package model defines the canonical in-memory representations shared by
// every stage of the analytics fabric: telemetry readings, alerts,
// thresholds and the windowed KPI rows produced by the batch job.
package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// ValueKind discriminates the polymorphic payload carried by a Reading.
// The event log value is a free-form JSON object keyed by sensor type; we
// route it into one of three shapes at decode time and never carry the raw
// map further than the sensor-specific extractor needs.
type ValueKind int

const (
	ValueScalar ValueKind = iota
	ValueVector
	ValueOther
)

// Value is the tagged union over a reading's payload.
type Value struct {
	Kind ValueKind

	// Scalar is populated when Kind == ValueScalar (covers both "reading"
	// and "value" shaped scalar sensors).
	Scalar float64

	// X, Y, Z are populated when Kind == ValueVector (vibration sensors).
	X, Y, Z float64

	// Other holds arbitrary numeric fields for sensor types this fabric
	// does not interpret; kept only for pass-through/debugging.
	Other map[string]float64
}

// ScalarValue returns the reading's scalar interpretation, if any. Vector
// values have no scalar interpretation.
func (v Value) ScalarValue() (float64, bool) {
	if v.Kind != ValueScalar {
		return 0, false
	}
	return v.Scalar, true
}

// VibrationRMS returns √(x²+y²+z²) for a vector value.
func (v Value) VibrationRMS() (float64, bool) {
	if v.Kind != ValueVector {
		return 0, false
	}
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z), true
}

// Reading is the canonical decoded telemetry record.
type Reading struct {
	DeviceID   string
	DeviceType string
	SensorID   string
	SensorType string
	Timestamp  time.Time
	Unit       string
	Value      Value

	// IngestID correlates a reading across logs/traces. It is never part
	// of any persisted uniqueness key.
	IngestID string
}

// Scalar extracts the single numeric value a pipeline should reason about:
// vibration sensors yield their RMS, every other sensor type yields its
// scalar value. Returns false when no scalar interpretation exists.
func (r Reading) Scalar() (float64, bool) {
	if r.SensorType == "vibration" {
		return r.Value.VibrationRMS()
	}
	return r.Value.ScalarValue()
}

// NewIngestID generates a fresh correlation id for a reading.
func NewIngestID() string { return uuid.NewString() }

// Severity levels, ordered low to high.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertType enumerates the alert kinds this fabric emits. Rule-engine rules
// may also emit an AlertType equal to their own rule name.
type AlertType string

const (
	AlertThresholdBreach      AlertType = "threshold_breach"
	AlertRapidChange          AlertType = "rapid_change"
	AlertStuckSensor          AlertType = "stuck_sensor"
	AlertStatisticalAnomaly   AlertType = "statistical_anomaly"
	AlertAbsoluteBoundViolate AlertType = "absolute_bound_violation"
)

// Alert is a typed, severity-tagged event emitted by a pipeline and
// persisted idempotently on (AlertID, CreatedAt).
type Alert struct {
	AlertID    string
	DeviceID   string
	DeviceType string
	AlertType  AlertType
	Severity   Severity
	Message    string
	Value      *float64
	Threshold  *float64
	CreatedAt  time.Time
}

// NewAlert stamps a fresh globally-unique id and creation instant.
func NewAlert(deviceID, deviceType string, alertType AlertType, severity Severity, message string, value, threshold *float64) Alert {
	return Alert{
		AlertID:    uuid.NewString(),
		DeviceID:   deviceID,
		DeviceType: deviceType,
		AlertType:  alertType,
		Severity:   severity,
		Message:    message,
		Value:      value,
		Threshold:  threshold,
		CreatedAt:  time.Now().UTC(),
	}
}

// Threshold bounds a (sensor type, optional device type) pair with two
// severity levels. Lookup precedence is (device_type, sensor_type) over
// (sensor_type) alone; strict inequality; critical supersedes warning.
type Threshold struct {
	SensorType  string
	DeviceType  string // empty means "applies to all device types"
	WarningLow  *float64
	WarningHigh *float64
	CriticalLow *float64
	CriticalHigh *float64
}

// Check evaluates value against the threshold and returns the severity that
// fires (if any). Critical bounds take precedence over warning bounds when
// both would fire. The reported limit is not the bound that fired: it is
// always the first non-nil bound in the fixed order critical_high,
// warning_high, critical_low, warning_low, regardless of which comparison
// actually tripped.
func (t Threshold) Check(value float64) (sev Severity, limit *float64, fired bool) {
	switch {
	case t.CriticalHigh != nil && value > *t.CriticalHigh:
		sev, fired = SeverityCritical, true
	case t.CriticalLow != nil && value < *t.CriticalLow:
		sev, fired = SeverityCritical, true
	case t.WarningHigh != nil && value > *t.WarningHigh:
		sev, fired = SeverityWarning, true
	case t.WarningLow != nil && value < *t.WarningLow:
		sev, fired = SeverityWarning, true
	default:
		return "", nil, false
	}
	return sev, t.reportedLimit(), fired
}

// reportedLimit returns the first non-nil bound in critical_high,
// warning_high, critical_low, warning_low order.
func (t Threshold) reportedLimit() *float64 {
	switch {
	case t.CriticalHigh != nil:
		return t.CriticalHigh
	case t.WarningHigh != nil:
		return t.WarningHigh
	case t.CriticalLow != nil:
		return t.CriticalLow
	case t.WarningLow != nil:
		return t.WarningLow
	default:
		return nil
	}
}

// KPIRow is a single windowed KPI observation, keyed by
// (DeviceID, KPIName, WindowStart).
type KPIRow struct {
	DeviceID    string
	DeviceType  string
	KPIName     string
	KPIValue    float64
	Unit        string
	WindowStart time.Time
	WindowEnd   time.Time
	SampleCount int
	CreatedAt   time.Time
}

var (
	// ErrMissingScalar describes a reading with no scalar interpretation.
	// Reading.Scalar, Value.ScalarValue and Value.VibrationRMS do not return
	// it; they report that case through their boolean result.
	ErrMissingScalar = errors.New("model: reading has no scalar interpretation")
)

// String renders a Threshold's sensor and device type for log messages; the
// bound values are not included.
func (t Threshold) String() string {
	return fmt.Sprintf("Threshold{sensor=%s device=%s}", t.SensorType, t.DeviceType)
}
