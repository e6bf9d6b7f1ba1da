package anomaly

import (
	"testing"

	"github.com/atakang7/iot-analytics/engine/model"
)

func TestSampleCountIncreasesByOnePerRecord(t *testing.T) {
	d := New(Options{})
	for i := 1; i <= 5; i++ {
		res := d.Process("d1", "sensor", "temperature", 20)
		if res.SampleCount != i {
			t.Fatalf("expected sample count %d, got %d", i, res.SampleCount)
		}
	}
}

func TestNoAnomalyDuringWarmUp(t *testing.T) {
	d := New(Options{MinSamples: 5})
	for i := 0; i < 5; i++ {
		res := d.Process("d1", "sensor", "vibration", 20)
		if res.IsAnomaly {
			t.Fatalf("unexpected anomaly during warm-up at sample %d", i)
		}
	}
}

func TestAbsoluteBoundFiresDuringWarmUp(t *testing.T) {
	d := New(Options{AbsoluteBounds: map[string]Bounds{"temperature": {Low: -50, High: 150}}})
	res := d.Process("d1", "sensor", "temperature", 200)
	if !res.IsAnomaly || len(res.Alerts) != 1 {
		t.Fatalf("expected absolute bound violation, got %+v", res)
	}
	if res.Alerts[0].AlertType != model.AlertAbsoluteBoundViolate || res.Alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("unexpected alert %+v", res.Alerts[0])
	}
}

func TestZScoreWarmUpThenAnomaly(t *testing.T) {
	// A degenerate all-identical warm-up (every sample exactly 20) leaves
	// std=0, which correctly suppresses z-score evaluation (division by
	// zero guard); a realistic warm-up has some spread, so seed a small
	// amount of it before the 11th, far-outlier record.
	d := New(Options{Threshold: 3.0, MinSamples: 10, AbsoluteBounds: map[string]Bounds{}})
	warmup := []float64{20, 21, 19, 20, 21, 19, 20, 21, 19, 20}
	for i, v := range warmup {
		res := d.Process("d1", "sensor", "temperature", v)
		if res.IsAnomaly {
			t.Fatalf("unexpected anomaly during warm-up at sample %d", i)
		}
	}
	res := d.Process("d1", "sensor", "temperature", 100)
	if !res.IsAnomaly || len(res.Alerts) != 1 {
		t.Fatalf("expected statistical anomaly on 11th record, got %+v", res)
	}
	if res.Alerts[0].Severity != model.SeverityCritical {
		t.Fatalf("expected critical severity for far-outlier, got %s", res.Alerts[0].Severity)
	}
}

func TestSeparateKeysHaveIndependentStatistics(t *testing.T) {
	d := New(Options{AbsoluteBounds: map[string]Bounds{}})
	d.Process("d1", "sensor", "temperature", 1000)
	res := d.Process("d2", "sensor", "temperature", 0)
	if res.SampleCount != 1 {
		t.Fatalf("expected independent series per device, got sample count %d", res.SampleCount)
	}
}
