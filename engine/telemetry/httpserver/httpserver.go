// Package httpserver exposes the metrics and health endpoints every worker
// binary serves: a /metrics handler backed by the configured metrics
// provider, plus a /health liveness check.
package httpserver

import (
	"net/http"

	"github.com/atakang7/iot-analytics/engine/telemetry/metrics"
)

// MetricsHandler is implemented by providers that can serve their own
// scrape endpoint; currently only PrometheusProvider does.
type MetricsHandler interface {
	MetricsHandler() http.Handler
}

// New builds the mux a worker binds its metrics port to: GET /metrics
// (scrape format, when provider supports it) and GET /health (always 200
// once the process is serving).
func New(provider metrics.Provider) *http.ServeMux {
	mux := http.NewServeMux()
	if mh, ok := provider.(MetricsHandler); ok {
		mux.Handle("/metrics", mh.MetricsHandler())
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
