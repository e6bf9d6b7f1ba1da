// Command stream-worker runs the stream rule pipeline: threshold breach,
// rate-of-change and stuck-sensor detection per reading, publishing alerts
// onto the alerts topic.
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
	"github.com/atakang7/iot-analytics/engine/store"
	"github.com/atakang7/iot-analytics/engine/streamrule"
	"github.com/atakang7/iot-analytics/engine/telemetry/events"
	"github.com/atakang7/iot-analytics/engine/telemetry/httpserver"
	"github.com/atakang7/iot-analytics/engine/telemetry/logging"
	"github.com/atakang7/iot-analytics/engine/telemetry/metrics"
	"github.com/atakang7/iot-analytics/engine/threshold"
	"github.com/atakang7/iot-analytics/engine/wire"
	"github.com/atakang7/iot-analytics/engine/worker"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "stream-worker",
	Short: "Consume telemetry and evaluate threshold/rate/stuck-sensor rules",
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
	db, err := store.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer db.Close()

	thresholds, err := db.LoadThresholds(ctx)
	if err != nil {
		return fmt.Errorf("loading thresholds: %w", err)
	}
	log.InfoCtx(ctx, "thresholds loaded", "count", len(thresholds))

	reader := eventlog.NewReader(eventlog.ReaderConfig{
		Brokers:   cfg.KafkaBrokers,
		Topic:     cfg.TelemetryTopic,
		GroupID:   cfg.ConsumerGroupID,
		StartFrom: eventlog.StartCommitted,
	})
	writer := eventlog.NewWriter(eventlog.WriterConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.AlertsTopic})
	defer writer.Close()

	thresholdChecks := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "iot", Name: "threshold_checks_total", Help: "Threshold checks performed", Labels: []string{"sensor_type"},
	}})
	alertsGenerated := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "iot", Name: "alerts_generated_total", Help: "Alerts generated by the stream rule worker", Labels: []string{"alert_type", "severity"},
	}})
	processingErrors := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "iot", Name: "processing_errors_total", Help: "Records a worker could not process", Labels: []string{"worker", "error_type"},
	}})

	proc := streamrule.New(threshold.NewTable(thresholds), streamrule.Options{})

	rt := worker.New(worker.Config{
		Name:   "stream",
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
				processingErrors.Inc(1, "stream", "malformed")
				return nil
			}
			thresholdChecks.Inc(1, r.SensorType)
			for _, a := range proc.Process(r) {
				rec := wire.EncodeAlert(a)
				if err := writer.WriteJSON(ctx, a.DeviceID, rec); err != nil {
					return fmt.Errorf("publishing alert: %w", err)
				}
				alertsGenerated.Inc(1, string(a.AlertType), string(a.Severity))
			}
			return nil
		},
		Logger:  log,
		Metrics: provider,
		Events:  bus,
	})

	return rt.Run(ctx)
}
