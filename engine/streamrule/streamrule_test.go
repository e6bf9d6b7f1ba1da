package streamrule

import (
	"testing"

	"github.com/atakang7/iot-analytics/engine/model"
	"github.com/atakang7/iot-analytics/engine/threshold"
)

func scalarReading(deviceID, deviceType, sensorID, sensorType string, value float64) model.Reading {
	return model.Reading{
		DeviceID:   deviceID,
		DeviceType: deviceType,
		SensorID:   sensorID,
		SensorType: sensorType,
		Value:      model.Value{Kind: model.ValueScalar, Scalar: value},
	}
}

func ptr(f float64) *float64 { return &f }

func TestThresholdBreachFires(t *testing.T) {
	table := threshold.NewTable([]model.Threshold{
		{SensorType: "temperature", CriticalHigh: ptr(100)},
	})
	p := New(table, Options{})

	alerts := p.Process(scalarReading("d1", "sensor", "s1", "temperature", 150))
	if len(alerts) != 1 || alerts[0].AlertType != model.AlertThresholdBreach {
		t.Fatalf("expected a single threshold_breach alert, got %+v", alerts)
	}
	if alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", alerts[0].Severity)
	}
}

func TestThresholdBreachReportsFixedOrderLimitNotFiredBound(t *testing.T) {
	table := threshold.NewTable([]model.Threshold{
		{SensorType: "temperature", CriticalLow: ptr(5), WarningHigh: ptr(50)},
	})
	p := New(table, Options{})

	alerts := p.Process(scalarReading("d1", "sensor", "s1", "temperature", 3))
	if len(alerts) != 1 || alerts[0].AlertType != model.AlertThresholdBreach {
		t.Fatalf("expected a single threshold_breach alert, got %+v", alerts)
	}
	if alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("expected critical severity (critical_low fired), got %s", alerts[0].Severity)
	}
	if alerts[0].Threshold == nil || *alerts[0].Threshold != 50 {
		t.Fatalf("expected reported limit 50 (warning_high, first non-nil bound), got %v", alerts[0].Threshold)
	}
}

func TestRateOfChangeFiresOnLargeDelta(t *testing.T) {
	p := New(threshold.NewTable(nil), Options{RateThreshold: 5})

	first := p.Process(scalarReading("d1", "sensor", "s1", "temperature", 20))
	if len(first) != 0 {
		t.Fatalf("expected no alert on first reading, got %+v", first)
	}
	second := p.Process(scalarReading("d1", "sensor", "s1", "temperature", 40))
	if len(second) != 1 || second[0].AlertType != model.AlertRapidChange {
		t.Fatalf("expected rapid_change alert, got %+v", second)
	}
}

func TestStuckSensorFiresAfterRepeatedIdenticalValues(t *testing.T) {
	p := New(threshold.NewTable(nil), Options{StuckCount: 3, RateThreshold: 1000})

	var last []model.Alert
	for i := 0; i < 3; i++ {
		last = p.Process(scalarReading("d1", "sensor", "s1", "temperature", 42))
	}
	found := false
	for _, a := range last {
		if a.AlertType == model.AlertStuckSensor {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected stuck_sensor alert on the %dth identical reading, got %+v", 3, last)
	}
}

func TestStuckSensorDoesNotFireWithVaryingValues(t *testing.T) {
	p := New(threshold.NewTable(nil), Options{StuckCount: 3, RateThreshold: 1000})

	values := []float64{10, 11, 10}
	for _, v := range values {
		alerts := p.Process(scalarReading("d1", "sensor", "s1", "temperature", v))
		for _, a := range alerts {
			if a.AlertType == model.AlertStuckSensor {
				t.Fatalf("did not expect stuck_sensor for varying values")
			}
		}
	}
}

func TestSeparateSeriesKeysTrackIndependentHistory(t *testing.T) {
	p := New(threshold.NewTable(nil), Options{RateThreshold: 1000, StuckCount: 2})

	p.Process(scalarReading("d1", "sensor", "s1", "temperature", 10))
	alerts := p.Process(scalarReading("d1", "sensor", "s2", "temperature", 500))
	for _, a := range alerts {
		if a.AlertType == model.AlertRapidChange {
			t.Fatalf("expected independent series to not inherit another sensor's last value")
		}
	}
}

func TestVectorReadingWithNoScalarIsSkipped(t *testing.T) {
	p := New(threshold.NewTable(nil), Options{})
	r := model.Reading{DeviceID: "d1", SensorID: "s1", SensorType: "pressure", Value: model.Value{Kind: model.ValueVector}}
	alerts := p.Process(r)
	if alerts != nil {
		t.Fatalf("expected nil alerts for a reading with no scalar interpretation, got %+v", alerts)
	}
}
