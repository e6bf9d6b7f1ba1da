package alertpersist

import (
	"context"
	"errors"
	"testing"
)

func TestHandleMessageRejectsMalformedJSON(t *testing.T) {
	p := New(nil, nil)
	err := p.HandleMessage(context.Background(), []byte("not json"))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestHandleMessageRejectsBadTimestamp(t *testing.T) {
	p := New(nil, nil)
	payload := []byte(`{"alertId":"a1","deviceId":"d1","alertType":"threshold_breach","severity":"warning","createdAt":"not-a-time"}`)
	err := p.HandleMessage(context.Background(), payload)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
