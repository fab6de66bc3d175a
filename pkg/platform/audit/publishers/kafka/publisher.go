// Package kafka publishes lifecycle events to a Kafka topic, keyed by
// vehicle id so every event of one vehicle lands on the same partition in
// order.
//
// Produce failures are counted by a circuit breaker. While the circuit is
// open, events that fail to produce are appended to a fallback store
// instead of being returned as errors.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "vehicle-sanctions/pkg/platform/audit"
	"vehicle-sanctions/pkg/platform/circuit"
)

const actionHeader = "action"

// Producer is the part of *kgo.Client the publisher uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

type Publisher struct {
	producer Producer
	topic    string
	breaker  *circuit.Breaker
	fallback audit.Store
	logger   *slog.Logger
}

type Option func(*Publisher)

// WithFallback stores events that could not be produced while the circuit
// is open.
func WithFallback(store audit.Store) Option {
	return func(p *Publisher) {
		p.fallback = store
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func New(producer Producer, topic string, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    topic,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = circuit.New("audit-kafka")
	}
	return p
}

func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	event = audit.Prepare(ctx, event)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.VehicleID),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: actionHeader, Value: []byte(event.Action)},
		},
		Timestamp: event.Timestamp,
	}

	if err := p.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		useFallback, change := p.breaker.RecordFailure()
		if change.Opened {
			p.logger.WarnContext(ctx, "audit publisher circuit opened",
				"breaker", p.breaker.Name(),
				"topic", p.topic,
				"error", err,
			)
		}
		if useFallback && p.fallback != nil {
			return p.fallback.Append(ctx, event)
		}
		return fmt.Errorf("produce audit event: %w", err)
	}

	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "audit publisher circuit closed",
			"breaker", p.breaker.Name(),
			"topic", p.topic,
		)
	}
	return nil
}
