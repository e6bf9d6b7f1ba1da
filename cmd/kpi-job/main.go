// Command kpi-job runs one watermark-driven KPI computation pass and exits.
// Scheduling a repeated run (cron, a Kubernetes CronJob) is left to the
// deployment, not to this process.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/atakang7/iot-analytics/engine/config"
	"github.com/atakang7/iot-analytics/engine/kpi"
	"github.com/atakang7/iot-analytics/engine/store"
	"github.com/atakang7/iot-analytics/engine/telemetry/httpserver"
	"github.com/atakang7/iot-analytics/engine/telemetry/logging"
	"github.com/atakang7/iot-analytics/engine/telemetry/metrics"
	"github.com/atakang7/iot-analytics/engine/worker"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kpi-job",
	Short: "Compute windowed KPIs over telemetry persisted since the last watermark",
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

	// A one-shot job still exposes /metrics briefly, mostly so a scrape
	// mid-run (or a sidecar push) can observe kpi_job_duration_seconds and
	// kpis_computed_total for this invocation.
	go func() {
		mux := httpserver.New(provider)
		addr := fmt.Sprintf(":%d", cfg.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.ErrorCtx(context.Background(), "metrics server exited", "err", err)
		}
	}()

	ctx, stop := worker.InstallSignalHandler(cmd.Context())
	defer stop()

	db, err := store.Open(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("connecting to store: %w", err)
	}
	defer db.Close()

	job := kpi.New(db, provider)

	result, err := job.Run(ctx)
	if err != nil {
		log.ErrorCtx(ctx, "kpi job failed, watermark left unchanged", "err", err)
		return err
	}

	log.InfoCtx(ctx, "kpi job complete",
		"readings_processed", result.ReadingsProcessed,
		"devices", result.Devices,
		"kpis_computed", result.KPIsComputed,
		"window_start", result.WindowStart,
		"window_end", result.WindowEnd,
	)
	return nil
}
