package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/county-factor-map/internal/config"
	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/couchcryptid/county-factor-map/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

const headerEventType = "event_type"

// Publisher produces interaction events to a Kafka topic.
// It implements domain.EventPublisher. Writes are asynchronous so a slow
// broker never delays a map interaction; delivery results are reported
// through metrics and logs.
type Publisher struct {
	writer  *kafkago.Writer
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured event topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	p := &Publisher{logger: logger, metrics: metrics}
	p.writer = &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           100 * time.Millisecond,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion:             p.completion,
	}
	return p
}

// Publish enqueues one event. Events with the same county or factor share a
// partition.
func (p *Publisher) Publish(ctx context.Context, event domain.InteractionEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes pending events and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func (p *Publisher) completion(messages []kafkago.Message, err error) {
	if err != nil {
		p.metrics.EventsFailed.Add(float64(len(messages)))
		p.logger.Warn("interaction events not delivered", "count", len(messages), "error", err)
		return
	}
	for _, m := range messages {
		p.metrics.EventsPublished.WithLabelValues(headerValue(m, headerEventType)).Inc()
	}
}

// serializeToMessage marshals an InteractionEvent into a Kafka message.
func serializeToMessage(event domain.InteractionEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize interaction event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.PartitionKey()),
		Value: data,
		Headers: []kafkago.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339))},
		},
	}, nil
}

func headerValue(m kafkago.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
