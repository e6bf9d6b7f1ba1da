// Package worker implements the shared pipeline worker runtime: the
// cooperative single-task consume loop, filtering, per-message metrics and
// signal-driven graceful shutdown that every stateful worker in this
// fabric hosts its pipeline inside.
package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/atakang7/iot-analytics/engine/eventlog"
	"github.com/atakang7/iot-analytics/engine/telemetry/events"
	"github.com/atakang7/iot-analytics/engine/telemetry/logging"
	"github.com/atakang7/iot-analytics/engine/telemetry/metrics"
)

// State is the runtime's lifecycle state.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

// Filter restricts which records a worker touches, driven by the
// filter_field/filter_values configuration knob.
type Filter struct {
	Field  string
	Values []string
}

// matches reports whether value satisfies the configured filter; an empty
// Filter matches everything.
func (f Filter) matches(value string) bool {
	if f.Field == "" || len(f.Values) == 0 {
		return true
	}
	for _, v := range f.Values {
		if v == value {
			return true
		}
	}
	return false
}

// Handler processes one decoded message. Returning an error counts toward
// pipeline_errors but never stops the runtime: one poisoned record must not
// kill the worker.
type Handler func(ctx context.Context, msg eventlog.Message) error

// FilterKey extracts the field value a Filter should be tested against
// (e.g. the sensor type) from a raw message, prior to full decode.
type FilterKey func(msg eventlog.Message) string

// CommitToken is an opaque handle a MessageSource issues per fetched
// message, passed back to Commit to advance that message's offset.
type CommitToken = eventlog.CommitToken

// MessageSource is the minimal consumer surface the runtime depends on;
// *eventlog.Reader implements it, and tests substitute a fake.
type MessageSource interface {
	FetchMessageWithCommitToken(ctx context.Context) (eventlog.Message, eventlog.CommitToken, error)
	Commit(ctx context.Context, tok eventlog.CommitToken) error
	Close() error
}

// Config configures a Runtime.
type Config struct {
	Name      string
	Source    MessageSource
	Filter    Filter
	FilterKey FilterKey
	Handler   Handler

	Logger  logging.Logger
	Metrics metrics.Provider
	Events  events.Bus
}

// Runtime is the shared consume-loop worker runtime.
type Runtime struct {
	cfg   Config
	state State

	messagesProcessed metrics.Counter
	pipelineErrors    metrics.Counter
}

// New constructs a Runtime in the STOPPED state.
func New(cfg Config) *Runtime {
	r := &Runtime{cfg: cfg, state: StateStopped}
	if cfg.Metrics != nil {
		r.messagesProcessed = cfg.Metrics.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "analytics", Name: "messages_processed_total", Help: "Messages processed by pipeline", Labels: []string{"pipeline"},
		}})
		r.pipelineErrors = cfg.Metrics.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "analytics", Name: "pipeline_errors_total", Help: "Errors encountered processing a message", Labels: []string{"pipeline"},
		}})
	}
	return r
}

// State reports the runtime's current lifecycle state.
func (r *Runtime) State() State { return r.state }

// Run installs a termination-signal handler and executes the consume loop
// until ctx is canceled or a termination signal arrives, driving the
// runtime through its STOPPED→STARTING→RUNNING→STOPPING→STOPPED states.
func (r *Runtime) Run(ctx context.Context) error {
	r.state = StateStarting
	r.publish(ctx, events.Event{Category: events.CategoryWorker, Type: "starting", Fields: map[string]interface{}{"pipeline": r.cfg.Name}})

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r.state = StateRunning
	r.publish(sigCtx, events.Event{Category: events.CategoryWorker, Type: "running", Fields: map[string]interface{}{"pipeline": r.cfg.Name}})
	if r.cfg.Logger != nil {
		r.cfg.Logger.InfoCtx(sigCtx, "worker running", "pipeline", r.cfg.Name)
	}

	err := r.consumeLoop(sigCtx)

	r.state = StateStopping
	r.publish(context.Background(), events.Event{Category: events.CategoryWorker, Type: "stopping", Fields: map[string]interface{}{"pipeline": r.cfg.Name}})
	if closeErr := r.cfg.Source.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	r.state = StateStopped
	return err
}

func (r *Runtime) consumeLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		msg, tok, err := r.cfg.Source.FetchMessageWithCommitToken(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if r.cfg.FilterKey != nil && !r.cfg.Filter.matches(r.cfg.FilterKey(msg)) {
			_ = r.cfg.Source.Commit(ctx, tok)
			continue
		}

		// Commit only follows a nil return from Handler. A handler that
		// hits a transient I/O error should return it so the record is
		// redelivered; a handler that only encountered a malformed record
		// counts and skips it internally, then returns nil so the offset
		// still advances.
		if r.handleMessage(ctx, msg) {
			if commitErr := r.cfg.Source.Commit(ctx, tok); commitErr != nil && r.cfg.Logger != nil {
				r.cfg.Logger.ErrorCtx(ctx, "offset commit failed", "pipeline", r.cfg.Name, "err", commitErr)
			}
		}
	}
}

// handleMessage runs the handler and reports whether the offset may be
// committed.
func (r *Runtime) handleMessage(ctx context.Context, msg eventlog.Message) bool {
	if r.messagesProcessed != nil {
		r.messagesProcessed.Inc(1, r.cfg.Name)
	}
	if err := r.cfg.Handler(ctx, msg); err != nil {
		if r.pipelineErrors != nil {
			r.pipelineErrors.Inc(1, r.cfg.Name)
		}
		if r.cfg.Logger != nil {
			r.cfg.Logger.ErrorCtx(ctx, "message handling failed", "pipeline", r.cfg.Name, "err", err)
		}
		return false
	}
	return true
}

func (r *Runtime) publish(ctx context.Context, ev events.Event) {
	if r.cfg.Events == nil {
		return
	}
	_ = r.cfg.Events.PublishCtx(ctx, ev)
}

// InstallSignalHandler is exposed for binaries that want their own
// lifecycle hook (e.g. the one-shot KPI job) without running the full
// consume loop.
func InstallSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
