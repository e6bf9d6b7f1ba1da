// Command anomaly-worker runs the anomaly detection pipeline: consume
// telemetry, run each reading through a z-score/absolute-bound detector per
// (device_id, sensor_type), and publish any resulting alerts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/atakang7/iot-analytics/engine/anomaly"
	"github.com/atakang7/iot-analytics/engine/config"
	"github.com/atakang7/iot-analytics/engine/eventlog"
	"github.com/atakang7/iot-analytics/engine/telemetry/events"
	"github.com/atakang7/iot-analytics/engine/telemetry/httpserver"
	"github.com/atakang7/iot-analytics/engine/telemetry/logging"
	"github.com/atakang7/iot-analytics/engine/telemetry/metrics"
	"github.com/atakang7/iot-analytics/engine/wire"
	"github.com/atakang7/iot-analytics/engine/worker"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "anomaly-worker",
	Short: "Consume telemetry and detect statistical anomalies",
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

	reader := eventlog.NewReader(eventlog.ReaderConfig{
		Brokers:   cfg.KafkaBrokers,
		Topic:     cfg.TelemetryTopic,
		GroupID:   cfg.ConsumerGroupID,
		StartFrom: eventlog.StartCommitted,
	})
	writer := eventlog.NewWriter(eventlog.WriterConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.AlertsTopic})
	defer writer.Close()

	anomaliesDetected := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "analytics", Name: "anomalies_detected_total", Help: "Statistical anomalies detected", Labels: []string{"device_id", "metric_type"},
	}})
	alertsTriggered := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "analytics", Name: "alerts_triggered_total", Help: "Alerts triggered by a pipeline", Labels: []string{"pipeline", "severity", "rule"},
	}})
	processingErrors := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "iot", Name: "processing_errors_total", Help: "Records a worker could not process", Labels: []string{"worker", "error_type"},
	}})

	detector := anomaly.New(anomaly.Options{})

	rt := worker.New(worker.Config{
		Name:   "anomaly",
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
				processingErrors.Inc(1, "anomaly", "malformed")
				return nil
			}
			value, ok := r.Scalar()
			if !ok {
				return nil
			}
			result := detector.Process(r.DeviceID, r.DeviceType, r.SensorType, value)
			if result.IsAnomaly {
				anomaliesDetected.Inc(1, r.DeviceID, r.SensorType)
			}
			for _, a := range result.Alerts {
				rec := wire.EncodeAlert(a)
				if err := writer.WriteJSON(ctx, a.DeviceID, rec); err != nil {
					return fmt.Errorf("publishing alert: %w", err)
				}
				alertsTriggered.Inc(1, "anomaly", string(a.Severity), string(a.AlertType))
			}
			return nil
		},
		Logger:  log,
		Metrics: provider,
		Events:  bus,
	})

	return rt.Run(cmd.Context())
}
