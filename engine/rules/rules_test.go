package rules

import (
	"testing"

	"github.com/atakang7/iot-analytics/engine/model"
)

func TestThresholdRuleFiresAboveLimit(t *testing.T) {
	e := New()
	if _, err := e.AddThresholdRule("high_temp", "temperature", 100, OpGreater, model.SeverityWarning, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	alerts := e.Process(Record{DeviceID: "d1", MetricType: "temperature", Value: 150})
	if len(alerts) != 1 || alerts[0].AlertType != "high_temp" {
		t.Fatalf("expected one alert named high_temp, got %+v", alerts)
	}
}

func TestUnknownOperatorFailsAtConstruction(t *testing.T) {
	e := New()
	if _, err := e.AddThresholdRule("bad", "temperature", 1, Operator("??"), model.SeverityWarning, ""); err == nil {
		t.Fatalf("expected error for unknown operator")
	}
}

func TestRangeRuleFiresOutsideBounds(t *testing.T) {
	e := New()
	e.AddRangeRule("pressure_range", "pressure", 800, 1200, model.SeverityCritical, "")
	alerts := e.Process(Record{MetricType: "pressure", Value: 1300})
	if len(alerts) != 1 {
		t.Fatalf("expected range rule to fire, got %+v", alerts)
	}
	alerts = e.Process(Record{MetricType: "pressure", Value: 1000})
	if len(alerts) != 0 {
		t.Fatalf("expected no alert inside range, got %+v", alerts)
	}
}

func TestCustomRulePanicIsSwallowed(t *testing.T) {
	e := New()
	e.AddRule("panics", model.SeverityWarning, "should never fire", func(Record) bool {
		panic("boom")
	})
	alerts := e.Process(Record{MetricType: "x", Value: 1})
	if len(alerts) != 0 {
		t.Fatalf("expected panic to be swallowed with no alert, got %+v", alerts)
	}
}

func TestEvaluateIsPure(t *testing.T) {
	e := New()
	e.AddThresholdRule("r", "temperature", 10, OpGreater, model.SeverityWarning, "")
	rec := Record{DeviceID: "d1", MetricType: "temperature", Value: 20}
	a1 := e.Process(rec)
	a2 := e.Process(rec)
	if len(a1) != len(a2) || len(a1) != 1 {
		t.Fatalf("expected repeated evaluation to be equivalent, got %+v vs %+v", a1, a2)
	}
	if a1[0].AlertType != a2[0].AlertType || a1[0].Severity != a2[0].Severity || a1[0].Message != a2[0].Message {
		t.Fatalf("expected equivalent alerts across repeated evaluation")
	}
}

func TestDisableEnableRemove(t *testing.T) {
	e := New()
	e.AddThresholdRule("r", "temperature", 10, OpGreater, model.SeverityWarning, "")
	e.Disable("r")
	if alerts := e.Process(Record{MetricType: "temperature", Value: 20}); len(alerts) != 0 {
		t.Fatalf("expected disabled rule to not fire")
	}
	e.Enable("r")
	if alerts := e.Process(Record{MetricType: "temperature", Value: 20}); len(alerts) != 1 {
		t.Fatalf("expected re-enabled rule to fire")
	}
	e.Remove("r")
	if e.Len() != 0 {
		t.Fatalf("expected rule removed, len=%d", e.Len())
	}
}
