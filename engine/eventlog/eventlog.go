// Package eventlog wraps github.com/segmentio/kafka-go into a typed
// consumer/producer abstraction: topics, consumer groups, start-from
// policy, and device_id-keyed partitioning for the telemetry and alerts
// topics.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafka "github.com/segmentio/kafka-go"
)

// StartFrom selects where a new consumer group begins reading.
type StartFrom int

const (
	// StartEarliest replays the full retained log.
	StartEarliest StartFrom = iota
	// StartLatest reads only records produced after the consumer connects.
	StartLatest
	// StartCommitted resumes from the consumer group's last committed
	// offset. This is a deliberate choice over aliasing COMMITTED to
	// earliest: kafka-go's native behavior (no StartOffset override,
	// relying on consumer-group offset commits) gives a true resume
	// without extra bookkeeping.
	StartCommitted
)

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	Brokers   []string
	Topic     string
	GroupID   string
	StartFrom StartFrom
	MinBytes  int
	MaxBytes  int
}

// Reader consumes a single topic under a consumer group.
type Reader struct {
	r *kafka.Reader
}

// NewReader constructs a Reader. StartCommitted is kafka-go's default
// behavior (offset managed by the broker via GroupID), so no StartOffset
// is set in that case.
func NewReader(cfg ReaderConfig) *Reader {
	readerCfg := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: nonZero(cfg.MinBytes, 1),
		MaxBytes: nonZero(cfg.MaxBytes, 10e6),
	}
	switch cfg.StartFrom {
	case StartEarliest:
		readerCfg.StartOffset = kafka.FirstOffset
	case StartLatest:
		readerCfg.StartOffset = kafka.LastOffset
	case StartCommitted:
		// zero value: kafka-go resumes from the group's committed offset
	}
	return &Reader{r: kafka.NewReader(readerCfg)}
}

func nonZero(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Message is one decoded, offset-addressed record.
type Message struct {
	Key       string
	Value     []byte
	Offset    int64
	Partition int
	Time      time.Time
}

// FetchMessage blocks until the next message is available or ctx is
// canceled. It returns no commit token, so a message fetched this way
// cannot be passed to Commit; use FetchMessageWithCommitToken when the
// consumer group's committed offset must advance after processing.
func (r *Reader) FetchMessage(ctx context.Context) (Message, error) {
	m, err := r.r.FetchMessage(ctx)
	if err != nil {
		return Message{}, err
	}
	return Message{Key: string(m.Key), Value: m.Value, Offset: m.Offset, Partition: m.Partition, Time: m.Time}, nil
}

// CommitToken threads the underlying kafka.Message back through to Commit
// without leaking the kafka-go type into callers that only need Message.
type CommitToken struct {
	msg kafka.Message
}

// FetchMessageWithCommitToken returns both the decoded Message and an
// opaque token to pass to Commit.
func (r *Reader) FetchMessageWithCommitToken(ctx context.Context) (Message, CommitToken, error) {
	m, err := r.r.FetchMessage(ctx)
	if err != nil {
		return Message{}, CommitToken{}, err
	}
	return Message{Key: string(m.Key), Value: m.Value, Offset: m.Offset, Partition: m.Partition, Time: m.Time}, CommitToken{msg: m}, nil
}

// Commit advances the consumer group's committed offset past tok.
func (r *Reader) Commit(ctx context.Context, tok CommitToken) error {
	return r.r.CommitMessages(ctx, tok.msg)
}

// CommitAll advances the consumer group's committed offsets past every
// token in toks in one round trip, used by workers that batch several
// fetched messages behind a single downstream flush.
func (r *Reader) CommitAll(ctx context.Context, toks []CommitToken) error {
	if len(toks) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(toks))
	for i, t := range toks {
		msgs[i] = t.msg
	}
	return r.r.CommitMessages(ctx, msgs...)
}

// Close releases the underlying connection.
func (r *Reader) Close() error { return r.r.Close() }

// WriterConfig configures a Writer.
type WriterConfig struct {
	Brokers []string
	Topic   string
}

// Writer produces device_id-keyed records to a topic.
type Writer struct {
	w *kafka.Writer
}

// NewWriter constructs a Writer that balances by explicit key (device_id),
// preserving per-device ordering.
func NewWriter(cfg WriterConfig) *Writer {
	return &Writer{w: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

// WriteJSON marshals value as JSON and publishes it keyed by key (the
// device_id, so every record for a device lands in the same partition).
func (w *Writer) WriteJSON(ctx context.Context, key string, value any) error {
	if key == "" {
		return errors.New("eventlog: write requires a non-empty partition key")
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return w.w.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload})
}

// Close flushes and releases the underlying connection.
func (w *Writer) Close() error { return w.w.Close() }
