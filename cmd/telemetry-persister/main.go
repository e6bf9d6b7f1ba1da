// Command telemetry-persister runs the telemetry persistence pipeline:
// buffer decoded readings and flush them as one batch insert, deferring
// offset commits until the batch a reading landed in has actually reached
// the store.
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
	"github.com/atakang7/iot-analytics/engine/telemetry/events"
	"github.com/atakang7/iot-analytics/engine/telemetry/httpserver"
	"github.com/atakang7/iot-analytics/engine/telemetry/logging"
	"github.com/atakang7/iot-analytics/engine/telemetry/metrics"
	"github.com/atakang7/iot-analytics/engine/telemetrypersist"
	"github.com/atakang7/iot-analytics/engine/wire"
	"github.com/atakang7/iot-analytics/engine/worker"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "telemetry-persister",
	Short: "Buffer telemetry readings and flush them to the store in batches",
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

	reader := eventlog.NewReader(eventlog.ReaderConfig{
		Brokers:   cfg.KafkaBrokers,
		Topic:     cfg.TelemetryTopic,
		GroupID:   cfg.ConsumerGroupID,
		StartFrom: eventlog.StartCommitted,
	})

	buffer := telemetrypersist.New(db, provider, telemetrypersist.Options{})

	w := telemetrypersist.NewWorker(telemetrypersist.WorkerConfig{
		Name:   "telemetry-persist",
		Source: reader,
		Buffer: buffer,
		Filter: telemetrypersist.Filter{Field: cfg.FilterField, Values: cfg.FilterValues},
		FilterKey: func(msg eventlog.Message) string {
			r, err := wire.DecodeReading(msg.Value)
			if err != nil {
				return ""
			}
			return r.SensorType
		},

		Logger:  log,
		Metrics: provider,
		Events:  bus,
	})

	runCtx, stop := worker.InstallSignalHandler(ctx)
	defer stop()
	return w.Run(runCtx)
}
