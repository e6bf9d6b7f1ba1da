package model

import "testing"

func TestThresholdCheckSeverityAndLimitAreIndependent(t *testing.T) {
	five, fifty := 5.0, 50.0
	th := Threshold{SensorType: "temperature", CriticalLow: &five, WarningHigh: &fifty}

	sev, limit, fired := th.Check(3)
	if !fired {
		t.Fatalf("expected the critical_low bound to fire")
	}
	if sev != SeverityCritical {
		t.Fatalf("expected critical severity, got %s", sev)
	}
	if limit == nil || *limit != 50 {
		t.Fatalf("expected reported limit 50 (warning_high, the first non-nil bound in fixed order), got %v", limit)
	}
}

func TestThresholdCheckReportsFirstNonNilBoundInFixedOrder(t *testing.T) {
	ten, twenty, thirty, forty := 10.0, 20.0, 30.0, 40.0

	cases := []struct {
		name      string
		th        Threshold
		value     float64
		wantLimit float64
	}{
		{"only critical_high set", Threshold{CriticalHigh: &ten}, 11, 10},
		{"critical_high and warning_high set, critical_high fires", Threshold{CriticalHigh: &ten, WarningHigh: &twenty}, 11, 10},
		{"warning_high and critical_low set, critical_low fires", Threshold{CriticalLow: &thirty, WarningHigh: &twenty}, 10, 20},
		{"all four set, critical_low fires", Threshold{CriticalHigh: &ten, WarningHigh: &twenty, CriticalLow: &thirty, WarningLow: &forty}, 10, 10},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, limit, fired := c.th.Check(c.value)
			if !fired {
				t.Fatalf("expected a bound to fire")
			}
			if limit == nil || *limit != c.wantLimit {
				t.Fatalf("expected reported limit %v, got %v", c.wantLimit, limit)
			}
		})
	}
}

func TestThresholdCheckNoBoundFires(t *testing.T) {
	ten := 10.0
	th := Threshold{CriticalHigh: &ten}
	_, limit, fired := th.Check(5)
	if fired || limit != nil {
		t.Fatalf("expected no bound to fire, got limit=%v fired=%v", limit, fired)
	}
}
