// Package config loads and validates worker configuration, following the
// teacher's UnifiedConfig idiom: a single struct with a Validate method and
// an ApplyDefaults method, composed from a YAML file layered with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// WorkerConfig is the recognized configuration surface shared by every
// worker binary.
type WorkerConfig struct {
	ServiceName     string   `yaml:"service_name"`
	KafkaBrokers    []string `yaml:"kafka_brokers"`
	TelemetryTopic  string   `yaml:"telemetry_topic"`
	AlertsTopic     string   `yaml:"alerts_topic"`
	ConsumerGroupID string   `yaml:"consumer_group_id"`
	DBDSN           string   `yaml:"db_dsn"`
	MetricsPort     int      `yaml:"metrics_port"`
	PushgatewayURL  string   `yaml:"pushgateway_url"`
	LogLevel        string   `yaml:"log_level"`

	// FilterField/FilterValues restrict which sensor records a worker
	// touches.
	FilterField  string   `yaml:"filter_field"`
	FilterValues []string `yaml:"filter_values"`

	// RuleSetPath, when non-empty, is watched for hot enable/disable
	// reloads of the rule engine.
	RuleSetPath string `yaml:"rule_set_path"`
}

// Load reads a YAML config file at path (if non-empty) and applies
// environment variable overrides, then defaults and validates the result.
func Load(path string) (WorkerConfig, error) {
	var cfg WorkerConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return WorkerConfig{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return WorkerConfig{}, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return WorkerConfig{}, err
	}
	return cfg, nil
}

func (c *WorkerConfig) applyEnvOverrides() {
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.KafkaBrokers = splitCSV(v)
	}
	if v := os.Getenv("DB_DSN"); v != "" {
		c.DBDSN = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.MetricsPort = port
		}
	}
	if v := os.Getenv("PUSHGATEWAY_URL"); v != "" {
		c.PushgatewayURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("CONSUMER_GROUP_ID"); v != "" {
		c.ConsumerGroupID = v
	}
	if v := os.Getenv("SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
}

// ApplyDefaults fills unset fields with this fabric's documented defaults.
func (c *WorkerConfig) ApplyDefaults() {
	if c.TelemetryTopic == "" {
		c.TelemetryTopic = "iot.telemetry"
	}
	if c.AlertsTopic == "" {
		c.AlertsTopic = "iot.alerts"
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 8000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if len(c.KafkaBrokers) == 0 {
		c.KafkaBrokers = []string{"localhost:9092"}
	}
}

// Validate reports the first configuration error found, if any.
func (c *WorkerConfig) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("config: service_name is required")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("config: consumer_group_id is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("config: kafka_brokers must not be empty")
	}
	return nil
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}
