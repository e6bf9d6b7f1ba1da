package telemetrypersist

import (
	"context"
	"time"

	"github.com/atakang7/iot-analytics/engine/eventlog"
	"github.com/atakang7/iot-analytics/engine/telemetry/events"
	"github.com/atakang7/iot-analytics/engine/telemetry/logging"
	"github.com/atakang7/iot-analytics/engine/telemetry/metrics"
	"github.com/atakang7/iot-analytics/engine/wire"
)

// BatchSource is the consumer surface Worker depends on: fetch-with-token
// plus a multi-token commit, so offsets for an entire flushed batch advance
// in one round trip rather than per message.
type BatchSource interface {
	FetchMessageWithCommitToken(ctx context.Context) (eventlog.Message, eventlog.CommitToken, error)
	CommitAll(ctx context.Context, toks []eventlog.CommitToken) error
	Close() error
}

// Filter restricts which records the worker buffers, mirroring
// engine/worker.Filter's field/values shape.
type Filter struct {
	Field  string
	Values []string
}

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

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Name      string
	Source    BatchSource
	Buffer    *Buffer
	Filter    Filter
	FilterKey func(msg eventlog.Message) string

	Logger  logging.Logger
	Metrics metrics.Provider
	Events  events.Bus
}

// Worker runs the telemetry persistence consume loop with deferred,
// whole-batch offset commits. engine/worker.Runtime commits each message's
// offset as soon as its Handler returns nil; that per-message contract is
// wrong here, because a reading's offset must not advance until the batch
// it was buffered into has actually been flushed to the store — so this
// worker drives its own loop instead of wrapping Runtime, committing every
// token held against the current batch only once Buffer.Flush succeeds for
// it.
type Worker struct {
	cfg WorkerConfig

	pendingTokens []eventlog.CommitToken

	telemetryReceived metrics.Counter
	processingErrors  metrics.Counter
}

// NewWorker constructs a Worker.
func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{cfg: cfg}
	if cfg.Metrics != nil {
		w.telemetryReceived = cfg.Metrics.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "iot", Name: "telemetry_received_total", Help: "Telemetry records received by the persistence worker", Labels: []string{"device_type", "sensor_type"},
		}})
		w.processingErrors = cfg.Metrics.NewCounter(metrics.CounterOpts{CommonOpts: metrics.CommonOpts{
			Namespace: "iot", Name: "processing_errors_total", Help: "Records a worker could not process", Labels: []string{"worker", "error_type"},
		}})
	}
	return w
}

type fetchResult struct {
	msg eventlog.Message
	tok eventlog.CommitToken
	err error
}

// Run consumes until ctx is canceled, flushing and committing on both the
// size trigger (inline, inside handleMessage) and the time trigger (driven
// by a ticker here, since a blocking fetch alone would never notice an idle
// period has crossed MaxInterval).
func (w *Worker) Run(ctx context.Context) error {
	w.publish(ctx, "starting")
	w.publish(ctx, "running")
	if w.cfg.Logger != nil {
		w.cfg.Logger.InfoCtx(ctx, "worker running", "pipeline", w.cfg.Name)
	}

	interval := w.cfg.Buffer.Interval()
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	results := make(chan fetchResult, 1)
	go w.fetch(ctx, results)

	var loopErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			flushed, err := w.cfg.Buffer.MaybeFlush(ctx)
			if err != nil {
				w.logFlushErr(ctx, err)
				continue
			}
			if flushed {
				w.commitPending(ctx)
			}
		case res := <-results:
			if res.err != nil {
				if ctx.Err() != nil {
					break loop
				}
				loopErr = res.err
				break loop
			}
			w.handleMessage(ctx, res.msg, res.tok)
			go w.fetch(ctx, results)
		}
	}

	w.publish(context.Background(), "stopping")
	// Best-effort final flush: readings still buffered at shutdown are
	// redelivered on restart if this does not succeed, so the error is
	// logged rather than returned.
	if err := w.cfg.Buffer.Flush(context.Background()); err != nil {
		w.logFlushErr(context.Background(), err)
	} else {
		w.commitPending(context.Background())
	}

	if closeErr := w.cfg.Source.Close(); closeErr != nil && loopErr == nil {
		loopErr = closeErr
	}
	w.publish(context.Background(), "stopped")
	return loopErr
}

func (w *Worker) fetch(ctx context.Context, out chan<- fetchResult) {
	msg, tok, err := w.cfg.Source.FetchMessageWithCommitToken(ctx)
	out <- fetchResult{msg: msg, tok: tok, err: err}
}

func (w *Worker) handleMessage(ctx context.Context, msg eventlog.Message, tok eventlog.CommitToken) {
	r, err := wire.DecodeReading(msg.Value)
	if err != nil {
		if w.processingErrors != nil {
			w.processingErrors.Inc(1, w.cfg.Name, "malformed")
		}
		if w.cfg.Logger != nil {
			w.cfg.Logger.ErrorCtx(ctx, "malformed telemetry record", "err", err)
		}
		w.commitOne(ctx, tok)
		return
	}

	if w.telemetryReceived != nil {
		w.telemetryReceived.Inc(1, r.DeviceType, r.SensorType)
	}

	if w.cfg.FilterKey != nil && !w.cfg.Filter.matches(w.cfg.FilterKey(msg)) {
		w.commitOne(ctx, tok)
		return
	}

	w.pendingTokens = append(w.pendingTokens, tok)
	flushed, err := w.cfg.Buffer.Add(ctx, r)
	if err != nil {
		w.logFlushErr(ctx, err)
		return
	}
	if flushed {
		w.commitPending(ctx)
	}
}

func (w *Worker) commitOne(ctx context.Context, tok eventlog.CommitToken) {
	if err := w.cfg.Source.CommitAll(ctx, []eventlog.CommitToken{tok}); err != nil && w.cfg.Logger != nil {
		w.cfg.Logger.ErrorCtx(ctx, "offset commit failed", "pipeline", w.cfg.Name, "err", err)
	}
}

func (w *Worker) commitPending(ctx context.Context) {
	if len(w.pendingTokens) == 0 {
		return
	}
	if err := w.cfg.Source.CommitAll(ctx, w.pendingTokens); err != nil && w.cfg.Logger != nil {
		w.cfg.Logger.ErrorCtx(ctx, "batch offset commit failed", "pipeline", w.cfg.Name, "err", err)
	}
	w.pendingTokens = nil
}

func (w *Worker) logFlushErr(ctx context.Context, err error) {
	if w.processingErrors != nil {
		w.processingErrors.Inc(1, w.cfg.Name, "flush")
	}
	if w.cfg.Logger != nil {
		w.cfg.Logger.ErrorCtx(ctx, "batch flush failed, offsets withheld", "pipeline", w.cfg.Name, "err", err)
	}
}

func (w *Worker) publish(ctx context.Context, eventType string) {
	if w.cfg.Events == nil {
		return
	}
	_ = w.cfg.Events.PublishCtx(ctx, events.Event{
		Category: events.CategoryWorker,
		Type:     eventType,
		Fields:   map[string]interface{}{"pipeline": w.cfg.Name},
	})
}
