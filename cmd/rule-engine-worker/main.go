// Command rule-engine-worker runs the custom rule engine as its own
// pipeline: evaluate every enabled rule against each telemetry reading and
// publish the alerts that fire. The rule set is loaded from --config's
// rule_set_path and hot-reloaded on every write, so a rule can be enabled
// or disabled without restarting the worker.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/atakang7/iot-analytics/engine/config"
	"github.com/atakang7/iot-analytics/engine/eventlog"
	"github.com/atakang7/iot-analytics/engine/rules"
	"github.com/atakang7/iot-analytics/engine/telemetry/events"
	"github.com/atakang7/iot-analytics/engine/telemetry/httpserver"
	"github.com/atakang7/iot-analytics/engine/telemetry/logging"
	"github.com/atakang7/iot-analytics/engine/telemetry/metrics"
	"github.com/atakang7/iot-analytics/engine/wire"
	"github.com/atakang7/iot-analytics/engine/worker"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rule-engine-worker",
	Short: "Evaluate a hot-reloadable set of custom rules against telemetry",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML worker config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.RuleSetPath == "" {
		return fmt.Errorf("rule-engine-worker: rule_set_path is required")
	}

	log := logging.New(slog.Default())
	provider := metrics.NewPrometheusProvider(metrics.PrometheusProviderOptions{})
	bus := events.NewBus(provider)

	go func() {
		mux := httpserver.New(provider)
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.ErrorCtx(context.Background(), "metrics server exited", "err", err)
		}
	}()

	ctx := cmd.Context()
	engine := rules.New()
	if err := engine.WatchFile(ctx, cfg.RuleSetPath, log); err != nil {
		return fmt.Errorf("loading rule set: %w", err)
	}
	log.InfoCtx(ctx, "rule set loaded", "path", cfg.RuleSetPath, "rule_count", engine.Len())

	reader := eventlog.NewReader(eventlog.ReaderConfig{
		Brokers:   cfg.KafkaBrokers,
		Topic:     cfg.TelemetryTopic,
		GroupID:   cfg.ConsumerGroupID,
		StartFrom: eventlog.StartCommitted,
	})
	writer := eventlog.NewWriter(eventlog.WriterConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.AlertsTopic})
	defer writer.Close()

	alertsGenerated := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "iot", Name: "rule_alerts_generated_total", Help: "Alerts generated by custom rule evaluation", Labels: []string{"rule"},
	}})
	processingErrors := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "iot", Name: "processing_errors_total", Help: "Records a worker could not process", Labels: []string{"worker", "error_type"},
	}})

	rt := worker.New(worker.Config{
		Name:   "rule-engine",
		Source: reader,
		Filter: worker.Filter{Field: cfg.FilterField, Values: cfg.FilterValues},
		FilterKey: func(msg eventlog.Message) string {
			r, err := wire.DecodeReading(msg.Value)
			if err != nil {
				return ""
			}
			return r.SensorType
		},
		Handler: func(ctx context.Context, msg eventlog.Message) error {
			r, err := wire.DecodeReading(msg.Value)
			if err != nil {
				log.ErrorCtx(ctx, "malformed telemetry record", "err", err)
				processingErrors.Inc(1, "rule-engine", "malformed")
				return nil
			}
			value, ok := r.Scalar()
			if !ok {
				return nil
			}
			rec := rules.Record{DeviceID: r.DeviceID, DeviceType: r.DeviceType, MetricType: r.SensorType, Value: value}
			for _, a := range engine.Process(rec) {
				wireRec := wire.EncodeAlert(a)
				if err := writer.WriteJSON(ctx, a.DeviceID, wireRec); err != nil {
					return fmt.Errorf("publishing alert: %w", err)
				}
				alertsGenerated.Inc(1, string(a.AlertType))
			}
			return nil
		},
		Logger:  log,
		Metrics: provider,
		Events:  bus,
	})

	return rt.Run(ctx)
}
