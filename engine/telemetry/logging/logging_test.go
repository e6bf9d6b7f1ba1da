package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{AddSource: false})
	log := New(slog.New(handler))

	log.InfoCtx(context.Background(), "reading processed", "device_id", "dev-1", "sensor_type", "temperature")
	out := buf.String()
	if !strings.Contains(out, "device_id=dev-1") {
		t.Fatalf("expected device_id field in log: %s", out)
	}
}

func TestLoggerDefaultsWhenBaseNil(t *testing.T) {
	log := New(nil)
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
	log.WarnCtx(context.Background(), "no base configured")
}

func TestLoggerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewTextHandler(&buf, &slog.HandlerOptions{AddSource: false})
	log := New(slog.New(handler))
	log.ErrorCtx(context.Background(), "flush failed", "err", "disk full")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Fatalf("expected ERROR level in log: %s", buf.String())
	}
}
