package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yaml")
	if err := os.WriteFile(path, []byte("service_name: stream-worker\nconsumer_group_id: stream-worker\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TelemetryTopic != "iot.telemetry" || cfg.AlertsTopic != "iot.alerts" || cfg.MetricsPort != 8000 {
		t.Fatalf("expected defaults applied, got %+v", cfg)
	}
}

func TestLoadMissingServiceNameFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yaml")
	if err := os.WriteFile(path, []byte("consumer_group_id: x\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for missing service_name")
	}
}

func TestEnvOverridesKafkaBrokers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.yaml")
	if err := os.WriteFile(path, []byte("service_name: x\nconsumer_group_id: x\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("KAFKA_BROKERS", "broker-a:9092,broker-b:9092")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "broker-a:9092" {
		t.Fatalf("expected env override to split brokers, got %+v", cfg.KafkaBrokers)
	}
}
