// Package metrics defines the pluggable instrumentation abstraction used by
// every worker in the fabric. Components depend on the Provider interface,
// never on a concrete backend, so a Prometheus-backed registry and an OTel
// meter can serve the same call sites interchangeably.
package metrics

import "context"

// CommonOpts names a metric. Namespace/Subsystem/Name are joined by the
// backend into its native naming convention (underscores for Prometheus,
// dots for OTel).
type CommonOpts struct {
	Namespace string
	Subsystem string
	Name      string
	Help      string
	Labels    []string
}

// CounterOpts configures a monotonically increasing counter.
type CounterOpts struct {
	CommonOpts
}

// GaugeOpts configures a point-in-time value.
type GaugeOpts struct {
	CommonOpts
}

// HistogramOpts configures a distribution; Buckets is backend-specific and
// may be left empty to use the backend's default bucket boundaries.
type HistogramOpts struct {
	CommonOpts
	Buckets []float64
}

// Counter is a monotonic accumulator, optionally dimensioned by label values
// positional to the Labels declared at construction.
type Counter interface {
	Inc(delta float64, labels ...string)
}

// Gauge can be set to an absolute value or nudged by a delta.
type Gauge interface {
	Set(value float64, labels ...string)
	Add(delta float64, labels ...string)
}

// Histogram records individual observations into a distribution.
type Histogram interface {
	Observe(value float64, labels ...string)
}

// Timer observes the elapsed duration, in seconds, since it was created.
type Timer interface {
	ObserveDuration(labels ...string)
}

// Provider is the instrumentation backend abstraction: every worker obtains
// its instruments through a Provider rather than importing a concrete
// metrics client directly.
type Provider interface {
	NewCounter(opts CounterOpts) Counter
	NewGauge(opts GaugeOpts) Gauge
	NewHistogram(opts HistogramOpts) Histogram
	NewTimer(opts HistogramOpts) func() Timer
	Health(ctx context.Context) error
}

// NewNoopProvider returns a Provider whose instruments discard everything.
// Useful for unit tests and for components that opt out of metrics entirely.
func NewNoopProvider() Provider { return noopProvider{} }

type noopProvider struct{}

func (noopProvider) NewCounter(CounterOpts) Counter     { return noopCounter{} }
func (noopProvider) NewGauge(GaugeOpts) Gauge           { return noopGauge{} }
func (noopProvider) NewHistogram(HistogramOpts) Histogram { return noopHistogram{} }
func (noopProvider) NewTimer(HistogramOpts) func() Timer {
	return func() Timer { return noopTimer{} }
}
func (noopProvider) Health(context.Context) error { return nil }

type noopCounter struct{}

func (noopCounter) Inc(float64, ...string) {}

type noopGauge struct{}

func (noopGauge) Set(float64, ...string) {}
func (noopGauge) Add(float64, ...string) {}

type noopHistogram struct{}

func (noopHistogram) Observe(float64, ...string) {}

type noopTimer struct{}

func (noopTimer) ObserveDuration(...string) {}
