package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/92Bilal26/ai-junior-bilal/pkg/telemetry"
)

// Message is a consumed Kafka message.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Offset  int64
	Headers []kafka.Header
}

// Header returns the first value of the named header, or "".
func (m Message) Header(name string) string {
	return HeaderCarrier(m.Headers).Get(name)
}

// HandlerFunc processes one message. A nil return commits its offset.
type HandlerFunc func(ctx context.Context, msg Message) error

// Consumer reads a topic as part of a consumer group.
type Consumer interface {
	Subscribe(ctx context.Context, handler HandlerFunc) error
	Close() error
}

// ConsumerOption configures NewConsumer.
type ConsumerOption func(*kafka.ReaderConfig)

// FromStart makes a group with no committed offset begin at the oldest
// retained message instead of only new ones.
func FromStart(on bool) ConsumerOption {
	return func(c *kafka.ReaderConfig) {
		if on {
			c.StartOffset = kafka.FirstOffset
		}
	}
}

type consumer struct {
	reader    *kafka.Reader
	logger    *slog.Logger
	closeOnce sync.Once
	closeErr  error
}

// NewConsumer returns a consumer in groupID reading topic. Offsets are
// committed explicitly, one message at a time.
func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger, opts ...ConsumerOption) Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     500 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &consumer{reader: kafka.NewReader(cfg), logger: logger}
}

// Subscribe hands each message to handler, with the producer's trace
// context restored, until ctx ends. A failed message is left uncommitted so
// the group sees it again after a rebalance or restart.
func (c *consumer) Subscribe(ctx context.Context, handler HandlerFunc) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka fetch from %s: %w", c.reader.Config().Topic, err)
		}

		carrier := HeaderCarrier(m.Headers)
		msgCtx := otel.GetTextMapPropagator().Extract(ctx, &carrier)
		msg := Message{Topic: m.Topic, Key: m.Key, Value: m.Value, Offset: m.Offset, Headers: m.Headers}

		if err := handler(msgCtx, msg); err != nil {
			telemetry.EventsConsumedTotal.WithLabelValues("failed").Inc()
			c.logger.Warn("event left uncommitted",
				slog.Int64("offset", m.Offset),
				slog.String("key", string(m.Key)),
				slog.String("error", err.Error()),
			)
			continue
		}
		telemetry.EventsConsumedTotal.WithLabelValues("handled").Inc()

		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", slog.Int64("offset", m.Offset), slog.String("error", err.Error()))
		}
	}
}

// Close leaves the group. Calling it more than once is safe.
func (c *consumer) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.reader.Close() })
	return c.closeErr
}
