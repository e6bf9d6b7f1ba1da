package eventlog

import (
	"context"
	"testing"
)

func TestWriteJSONRequiresPartitionKey(t *testing.T) {
	w := NewWriter(WriterConfig{Brokers: []string{"localhost:9092"}, Topic: "iot.alerts"})
	defer w.Close()
	err := w.WriteJSON(context.Background(), "", map[string]string{"a": "b"})
	if err == nil {
		t.Fatalf("expected error for empty partition key")
	}
}

func TestNewReaderBuildsWithoutDialing(t *testing.T) {
	r := NewReader(ReaderConfig{Brokers: []string{"localhost:9092"}, Topic: "iot.telemetry", GroupID: "stream-worker", StartFrom: StartCommitted})
	defer r.Close()
	if r.r == nil {
		t.Fatalf("expected underlying reader to be constructed")
	}
}
