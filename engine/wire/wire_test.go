package wire

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/atakang7/iot-analytics/engine/model"
)

func TestDecodeReadingScalarValue(t *testing.T) {
	payload := []byte(`{"deviceId":"d1","deviceType":"sensor","sensorId":"s1","sensorType":"temperature","timestamp":"2026-01-01T00:00:00Z","unit":"C","value":{"value":21.5}}`)
	r, err := DecodeReading(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := r.Scalar()
	if !ok || v != 21.5 {
		t.Fatalf("expected scalar 21.5, got %v ok=%v", v, ok)
	}
	if r.IngestID == "" {
		t.Fatalf("expected a stamped IngestID")
	}
}

func TestDecodeReadingVectorValue(t *testing.T) {
	payload := []byte(`{"deviceId":"d1","deviceType":"sensor","sensorId":"s1","sensorType":"vibration","timestamp":"2026-01-01T00:00:00Z","unit":"g","value":{"x":3,"y":4,"z":0}}`)
	r, err := DecodeReading(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, ok := r.Scalar()
	if !ok || v != 5 {
		t.Fatalf("expected RMS 5, got %v ok=%v", v, ok)
	}
}

func TestDecodeReadingReturnsErrBadTimestampOnMalformedTimestamp(t *testing.T) {
	payload := []byte(`{"deviceId":"d1","sensorType":"temperature","timestamp":"not-a-time","value":{"value":1}}`)
	r, err := DecodeReading(payload)
	if !errors.Is(err, ErrBadTimestamp) {
		t.Fatalf("expected ErrBadTimestamp, got %v", err)
	}
	if r.DeviceID != "d1" || r.SensorType != "temperature" {
		t.Fatalf("expected the rest of the record decoded despite the bad timestamp, got %+v", r)
	}
	if !r.Timestamp.IsZero() {
		t.Fatalf("expected a zero timestamp, got %v", r.Timestamp)
	}
}

func TestDecodeReadingRejectsMalformedEnvelope(t *testing.T) {
	_, err := DecodeReading([]byte("not json"))
	if err == nil {
		t.Fatalf("expected an error for malformed envelope")
	}
}

func TestEncodeThenDecodeAlertRoundTrips(t *testing.T) {
	value := 42.0
	a := model.NewAlert("d1", "sensor", model.AlertThresholdBreach, model.SeverityCritical, "too hot", &value, &value)
	rec := EncodeAlert(a)
	if rec.AlertID != a.AlertID || rec.DeviceID != "d1" || rec.AlertType != string(model.AlertThresholdBreach) {
		t.Fatalf("unexpected encoded record: %+v", rec)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded, err := DecodeAlert(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.AlertID != a.AlertID || decoded.DeviceID != a.DeviceID {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, a)
	}
}
