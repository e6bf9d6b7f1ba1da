package store

import (
	"encoding/json"
	"testing"

	"github.com/atakang7/iot-analytics/engine/model"
)

func TestEncodeValueScalar(t *testing.T) {
	raw, err := encodeValue(model.Value{Kind: model.ValueScalar, Scalar: 21.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]float64
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if decoded["value"] != 21.5 {
		t.Fatalf("expected value=21.5, got %+v", decoded)
	}
}

func TestEncodeValueVector(t *testing.T) {
	raw, err := encodeValue(model.Value{Kind: model.ValueVector, X: 3, Y: 4, Z: 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]float64
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if decoded["x"] != 3 || decoded["y"] != 4 || decoded["z"] != 0 {
		t.Fatalf("unexpected vector encoding: %+v", decoded)
	}
}
