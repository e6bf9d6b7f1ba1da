package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromFileBuildsThresholdAndRangeRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	contents := `
rules:
  - name: high_temp
    kind: threshold
    metric_type: temperature
    op: ">"
    threshold: 100
    severity: warning
    enabled: true
  - name: pressure_range
    kind: range
    metric_type: pressure
    min: 800
    max: 1200
    severity: critical
    enabled: true
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write rules file: %v", err)
	}

	e := New()
	if err := e.LoadFromFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Len() != 2 {
		t.Fatalf("expected 2 rules loaded, got %d", e.Len())
	}

	alerts := e.Process(Record{MetricType: "temperature", Value: 150})
	if len(alerts) != 1 || alerts[0].AlertType != "high_temp" {
		t.Fatalf("expected high_temp to fire, got %+v", alerts)
	}
}

func TestLoadFromFileReplacesPreviousRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	os.WriteFile(path, []byte("rules:\n  - name: r1\n    kind: threshold\n    metric_type: x\n    op: \">\"\n    threshold: 1\n    enabled: true\n"), 0o600)

	e := New()
	if err := e.LoadFromFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	os.WriteFile(path, []byte("rules:\n  - name: r2\n    kind: threshold\n    metric_type: y\n    op: \"<\"\n    threshold: 1\n    enabled: true\n"), 0o600)
	if err := e.LoadFromFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Len() != 1 {
		t.Fatalf("expected exactly one rule after reload, got %d", e.Len())
	}
	alerts := e.Process(Record{MetricType: "x", Value: 5})
	if len(alerts) != 0 {
		t.Fatalf("expected old rule r1 gone after reload")
	}
}
