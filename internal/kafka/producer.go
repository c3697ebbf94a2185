package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
)

// DefaultTopic carries transition records.
const DefaultTopic = "ai-employee.transitions"

// Header names set on every transition message, so consumers can filter
// without decoding the body.
const (
	HeaderEvent = "ai-employee-event"
	HeaderKind  = "ai-employee-kind"
)

// Envelope is one outgoing message.
type Envelope struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

// Producer writes envelopes to Kafka.
type Producer interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

type producer struct {
	writer *kafka.Writer
}

// NewProducer returns a Producer for brokers. Envelopes with the same key
// land on the same partition.
func NewProducer(brokers []string) Producer {
	return &producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}}
}

// Publish writes env with the caller's trace context injected into its
// headers.
func (p *producer) Publish(ctx context.Context, env Envelope) error {
	headers := make(HeaderCarrier, 0, len(env.Headers)+2)
	for k, v := range env.Headers {
		headers.Set(k, v)
	}
	otel.GetTextMapPropagator().Inject(ctx, &headers)

	msg := kafka.Message{
		Topic:   env.Topic,
		Key:     []byte(env.Key),
		Value:   env.Value,
		Headers: []kafka.Header(headers),
		Time:    time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", env.Topic, err)
	}
	return nil
}

func (p *producer) Close() error {
	return p.writer.Close()
}

// Publisher is a lifecycle sink sending every transition record to a
// topic, keyed by task file name so one task's history stays ordered.
type Publisher struct {
	producer Producer
	topic    string
}

// NewPublisher returns a Publisher writing to topic, or DefaultTopic.
func NewPublisher(p Producer, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{producer: p, topic: topic}
}

func (p *Publisher) Record(ctx context.Context, rec domain.TransitionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transition %s: %w", rec.ID, err)
	}
	return p.producer.Publish(ctx, Envelope{
		Topic: p.topic,
		Key:   rec.Task,
		Value: data,
		Headers: map[string]string{
			HeaderEvent: rec.Event,
			HeaderKind:  string(rec.Kind),
		},
	})
}

func (p *Publisher) Close() error {
	return p.producer.Close()
}

// DecodeRecord reads a transition record from a consumed message.
func DecodeRecord(msg Message) (domain.TransitionRecord, error) {
	var rec domain.TransitionRecord
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		return rec, fmt.Errorf("decode transition at offset %d: %w", msg.Offset, err)
	}
	return rec, nil
}
