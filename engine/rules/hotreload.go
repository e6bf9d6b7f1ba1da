package rules

import (
	"context"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/atakang7/iot-analytics/engine/model"
	"github.com/atakang7/iot-analytics/engine/telemetry/logging"
)

// ruleSpec is the YAML shape a rule-set file is authored in.
type ruleSpec struct {
	Name       string  `yaml:"name"`
	MetricType string  `yaml:"metric_type"`
	Op         string  `yaml:"op"`
	Threshold  float64 `yaml:"threshold"`
	Min        float64 `yaml:"min"`
	Max        float64 `yaml:"max"`
	Kind       string  `yaml:"kind"` // "threshold" | "range"
	Severity   string  `yaml:"severity"`
	Message    string  `yaml:"message"`
	Enabled    bool    `yaml:"enabled"`
}

type fileSpec struct {
	Rules []ruleSpec `yaml:"rules"`
}

// LoadFromFile replaces e's rules with those decoded from path.
func (e *Engine) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("rules: reading %s: %w", path, err)
	}
	var spec fileSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return fmt.Errorf("rules: parsing %s: %w", path, err)
	}

	next := New()
	for _, rs := range spec.Rules {
		severity := model.Severity(rs.Severity)
		if severity == "" {
			severity = model.SeverityWarning
		}
		switch rs.Kind {
		case "range":
			r := next.AddRangeRule(rs.Name, rs.MetricType, rs.Min, rs.Max, severity, rs.Message)
			r.Enabled = rs.Enabled
		default:
			r, err := next.AddThresholdRule(rs.Name, rs.MetricType, rs.Threshold, Operator(rs.Op), severity, rs.Message)
			if err != nil {
				return fmt.Errorf("rules: rule %q: %w", rs.Name, err)
			}
			r.Enabled = rs.Enabled
		}
	}
	e.mu.Lock()
	e.rules = next.rules
	e.mu.Unlock()
	return nil
}

// WatchFile loads path once, then reloads it on every subsequent write
// event until ctx is canceled, so a rule can be enabled or disabled by
// editing the rule set file rather than restarting the worker.
func (e *Engine) WatchFile(ctx context.Context, path string, log logging.Logger) error {
	if err := e.LoadFromFile(path); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("rules: creating watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("rules: watching %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := e.LoadFromFile(path); err != nil && log != nil {
					log.ErrorCtx(ctx, "rule set reload failed", "path", path, "err", err)
				} else if log != nil {
					log.InfoCtx(ctx, "rule set reloaded", "path", path, "rule_count", e.Len())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if log != nil {
					log.ErrorCtx(ctx, "rule set watcher error", "err", err)
				}
			}
		}
	}()
	return nil
}
