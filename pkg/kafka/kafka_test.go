package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

func TestHeaderFilterHook(t *testing.T) {
	h := HeaderFilterHook{Key: "source", Value: "instance-a"}

	own := kafka.Message{Headers: []kafka.Header{{Key: "source", Value: []byte("instance-a")}}}
	if _, err := h.BeforeHandle(context.Background(), "chartdash.chart-events", own); !errors.Is(err, ErrSkip) {
		t.Errorf("expected own message to be skipped, got %v", err)
	}

	other := kafka.Message{Headers: []kafka.Header{{Key: "source", Value: []byte("instance-b")}}}
	if _, err := h.BeforeHandle(context.Background(), "chartdash.chart-events", other); err != nil {
		t.Errorf("expected foreign message to pass, got %v", err)
	}
}

func TestBackoffWithJitter(t *testing.T) {
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(50*time.Millisecond, 2*time.Second, attempt)
		if d <= 0 || d > 2*time.Second {
			t.Fatalf("attempt %d: backoff %v out of range", attempt, d)
		}
	}
	if d := backoffWithJitter(50*time.Millisecond, 2*time.Second, 1); d < 25*time.Millisecond || d > 50*time.Millisecond {
		t.Errorf("first attempt backoff %v outside [25ms, 50ms]", d)
	}
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue(map[string]string{"action": "created"})
	if err != nil {
		t.Fatalf("encodeValue failed: %v", err)
	}
	if string(b) != `{"action":"created"}` {
		t.Errorf("unexpected payload %s", b)
	}
	if b, _ := encodeValue("raw"); string(b) != "raw" {
		t.Errorf("strings must pass through, got %s", b)
	}
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatal("expected error without brokers")
	}
}
