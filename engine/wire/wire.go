// Package wire implements the JSON encoding the event log carries on the
// wire: camelCase telemetry and alert records. Every worker decodes/encodes
// through this package rather than hand-rolling JSON tags on engine/model,
// keeping the domain model free of transport concerns.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atakang7/iot-analytics/engine/model"
)

// ErrBadTimestamp marks a telemetry record whose timestamp is not a valid
// RFC3339 string. DecodeReading still returns the rest of the record's
// fields alongside this error, since the aggregation pipeline substitutes
// its own wall-clock reading for a bad timestamp rather than discarding the
// record; every other caller treats it like any other decode error and
// drops the record as malformed.
var ErrBadTimestamp = errors.New("wire: timestamp is not RFC3339")

// telemetryRecord is the wire shape of one telemetry message:
// {deviceId, deviceType, sensorId, sensorType, timestamp, unit, value}.
type telemetryRecord struct {
	DeviceID   string          `json:"deviceId"`
	DeviceType string          `json:"deviceType"`
	SensorID   string          `json:"sensorId"`
	SensorType string          `json:"sensorType"`
	Timestamp  string          `json:"timestamp"`
	Unit       string          `json:"unit"`
	Value      json.RawMessage `json:"value"`
}

// DecodeReading parses a telemetry wire record into model.Reading. A
// malformed envelope (unparseable JSON or an unrecognized value shape) is
// returned as an error with a zero Reading. A malformed timestamp is
// returned as ErrBadTimestamp alongside the otherwise-fully-decoded
// Reading (Timestamp left zero), so a caller that wants to tolerate it can
// still use the rest of the record.
func DecodeReading(payload []byte) (model.Reading, error) {
	var rec telemetryRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return model.Reading{}, fmt.Errorf("wire: decoding telemetry record: %w", err)
	}

	value, err := decodeValue(rec.Value)
	if err != nil {
		return model.Reading{}, fmt.Errorf("wire: decoding value for %s/%s: %w", rec.DeviceID, rec.SensorID, err)
	}

	reading := model.Reading{
		DeviceID:   rec.DeviceID,
		DeviceType: rec.DeviceType,
		SensorID:   rec.SensorID,
		SensorType: rec.SensorType,
		Unit:       rec.Unit,
		Value:      value,
		IngestID:   model.NewIngestID(),
	}

	ts, err := time.Parse(time.RFC3339, rec.Timestamp)
	if err != nil {
		return reading, fmt.Errorf("wire: parsing timestamp %q: %w", rec.Timestamp, ErrBadTimestamp)
	}
	reading.Timestamp = ts
	return reading, nil
}

// decodeValue routes the free-form value object into model.Value's tagged
// union: a vector shape ({x,y,z}) is preferred when all three keys are
// present, a scalar shape ({value} or {reading}) otherwise, and anything else
// is kept as ValueOther for pass-through.
func decodeValue(raw json.RawMessage) (model.Value, error) {
	if len(raw) == 0 {
		return model.Value{}, fmt.Errorf("empty value object")
	}
	var fields map[string]float64
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Value{}, err
	}
	if _, hasX := fields["x"]; hasX {
		if _, hasY := fields["y"]; hasY {
			if _, hasZ := fields["z"]; hasZ {
				return model.Value{Kind: model.ValueVector, X: fields["x"], Y: fields["y"], Z: fields["z"]}, nil
			}
		}
	}
	if v, ok := fields["value"]; ok {
		return model.Value{Kind: model.ValueScalar, Scalar: v}, nil
	}
	if v, ok := fields["reading"]; ok {
		return model.Value{Kind: model.ValueScalar, Scalar: v}, nil
	}
	return model.Value{Kind: model.ValueOther, Other: fields}, nil
}

// alertRecord is the wire shape of one alert message:
// {alertId, deviceId, deviceType, alertType, severity, message, threshold?, value?, createdAt}.
type alertRecord struct {
	AlertID    string   `json:"alertId"`
	DeviceID   string   `json:"deviceId"`
	DeviceType string   `json:"deviceType"`
	AlertType  string   `json:"alertType"`
	Severity   string   `json:"severity"`
	Message    string   `json:"message"`
	Threshold  *float64 `json:"threshold,omitempty"`
	Value      *float64 `json:"value,omitempty"`
	CreatedAt  string   `json:"createdAt"`
}

// EncodeAlert renders a to the wire shape the alerts topic carries.
func EncodeAlert(a model.Alert) alertRecord {
	return alertRecord{
		AlertID:    a.AlertID,
		DeviceID:   a.DeviceID,
		DeviceType: a.DeviceType,
		AlertType:  string(a.AlertType),
		Severity:   string(a.Severity),
		Message:    a.Message,
		Threshold:  a.Threshold,
		Value:      a.Value,
		CreatedAt:  a.CreatedAt.Format(time.RFC3339),
	}
}

// DecodeAlert parses an alert wire record into model.Alert.
func DecodeAlert(payload []byte) (model.Alert, error) {
	var rec alertRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return model.Alert{}, fmt.Errorf("wire: decoding alert record: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339, rec.CreatedAt)
	if err != nil {
		return model.Alert{}, fmt.Errorf("wire: parsing alert createdAt %q: %w", rec.CreatedAt, err)
	}
	return model.Alert{
		AlertID:    rec.AlertID,
		DeviceID:   rec.DeviceID,
		DeviceType: rec.DeviceType,
		AlertType:  model.AlertType(rec.AlertType),
		Severity:   model.Severity(rec.Severity),
		Message:    rec.Message,
		Value:      rec.Value,
		Threshold:  rec.Threshold,
		CreatedAt:  createdAt,
	}, nil
}
