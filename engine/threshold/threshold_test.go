package threshold

import (
	"testing"

	"github.com/atakang7/iot-analytics/engine/model"
)

func f(v float64) *float64 { return &v }

func TestTableDeviceTypePrecedesSensorTypeOnly(t *testing.T) {
	table := NewTable([]model.Threshold{
		{DeviceType: "hvac", SensorType: "temperature", CriticalHigh: f(40)},
		{SensorType: "temperature", CriticalHigh: f(60)},
	})

	th, ok := table.Lookup("hvac", "temperature")
	if !ok || *th.CriticalHigh != 40 {
		t.Fatalf("expected device-type-specific threshold to win, got %+v ok=%v", th, ok)
	}

	th, ok = table.Lookup("pump", "temperature")
	if !ok || *th.CriticalHigh != 60 {
		t.Fatalf("expected sensor-type-only fallback, got %+v ok=%v", th, ok)
	}
}

func TestTableMissingLookupReturnsFalse(t *testing.T) {
	table := NewTable(nil)
	if _, ok := table.Lookup("hvac", "temperature"); ok {
		t.Fatalf("expected no match on empty table")
	}
}
