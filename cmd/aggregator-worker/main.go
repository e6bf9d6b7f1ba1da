// Command aggregator-worker runs the rolling aggregation pipeline: consume
// telemetry and maintain rolling-window statistics per (device_id,
// metric_type), exposing mean/count as gauges.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/atakang7/iot-analytics/engine/aggregator"
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
	Use:   "aggregator-worker",
	Short: "Consume telemetry and maintain rolling window aggregates",
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

	aggregationMean := provider.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "analytics", Name: "aggregation_mean", Help: "Rolling window mean", Labels: []string{"device_id", "metric_type"},
	}})
	aggregationCount := provider.NewGauge(metrics.GaugeOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "analytics", Name: "aggregation_count", Help: "Rolling window sample count", Labels: []string{"device_id", "metric_type"},
	}})
	processingErrors := provider.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
		Namespace: "iot", Name: "processing_errors_total", Help: "Records a worker could not process", Labels: []string{"worker", "error_type"},
	}})

	agg := aggregator.New(aggregator.Options{})

	rt := worker.New(worker.Config{
		Name:   "aggregator",
		Source: reader,
		Filter: worker.Filter{Field: cfg.FilterField, Values: cfg.FilterValues},
		FilterKey: func(msg eventlog.Message) string {
			r, err := wire.DecodeReading(msg.Value)
			if err != nil && !errors.Is(err, wire.ErrBadTimestamp) {
				return ""
			}
			return r.SensorType
		},
		Handler: func(ctx context.Context, msg eventlog.Message) error {
			r, err := wire.DecodeReading(msg.Value)
			if err != nil {
				if !errors.Is(err, wire.ErrBadTimestamp) {
					log.ErrorCtx(ctx, "malformed telemetry record", "err", err)
					processingErrors.Inc(1, "aggregator", "malformed")
					return nil
				}
				// The rolling window only needs a wall-clock instant to
				// bucket the sample; a missing one does not invalidate the
				// rest of the reading the way a bad envelope or value does.
				r.Timestamp = time.Now().UTC()
			}
			value, ok := r.Scalar()
			if !ok {
				return nil
			}
			result := agg.Process(r.DeviceID, r.SensorType, value, r.Timestamp)
			aggregationMean.Set(result.Mean, r.DeviceID, r.SensorType)
			aggregationCount.Set(float64(result.Count), r.DeviceID, r.SensorType)
			return nil
		},
		Logger:  log,
		Metrics: provider,
		Events:  bus,
	})

	return rt.Run(cmd.Context())
}
