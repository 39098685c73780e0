package kafka

import (
	"context"
	"errors"

	"github.com/segmentio/kafka-go"

	"ChartDash/pkg/logger"
)

// ErrSkip tells the consumer a message was deliberately ignored.
// It is committed without retries or error hooks.
var ErrSkip = errors.New("kafka: message skipped")

// ConsumerHook defines lifecycle hooks around message handling.
// Returning a non-nil error from BeforeHandle skips the handler.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message) (context.Context, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, err error)
}

// NoopHook is a default hook that does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, _ kafka.Message) (context.Context, error) {
	return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, error) {}

// HeaderFilterHook skips messages whose header key equals value, e.g. events
// published by this very process.
type HeaderFilterHook struct {
	NoopHook
	Key   string
	Value string
}

func (h HeaderFilterHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message) (context.Context, error) {
	for _, hd := range km.Headers {
		if hd.Key == h.Key && string(hd.Value) == h.Value {
			return ctx, ErrSkip
		}
	}
	return ctx, nil
}

// LogHook logs failed messages after the last attempt.
type LogHook struct {
	HeaderFilterHook
	Log *logger.Logger
}

func (h LogHook) OnError(_ context.Context, topic string, km kafka.Message, err error) {
	h.Log.Error("kafka message handling failed",
		logger.String("topic", topic),
		logger.Int("partition", km.Partition),
		logger.Int64("offset", km.Offset),
		logger.Error(err),
	)
}
