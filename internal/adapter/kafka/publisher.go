package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/blow-storage/internal/config"
	"github.com/couchcryptid/blow-storage/internal/domain"
)

// publishBatchTimeout bounds how long a synchronous Publish waits for other
// events to share its produce request.
const publishBatchTimeout = 10 * time.Millisecond

// Publisher produces blow lifecycle events to the events topic.
// It implements store.EventPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured events topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaEventsTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           publishBatchTimeout,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, logger: logger}
}

// Publish writes a single event. Events for the same blow share a key and
// therefore a partition, which keeps them ordered.
func (p *Publisher) Publish(ctx context.Context, event domain.BlowEvent) error {
	return p.PublishBatch(ctx, []domain.BlowEvent{event})
}

// PublishBatch serializes and publishes events in a single WriteMessages call.
func (p *Publisher) PublishBatch(ctx context.Context, events []domain.BlowEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d blow events: %w", len(msgs), err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a BlowEvent into a Kafka message keyed by blow id.
func serializeToMessage(event domain.BlowEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize blow event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(strconv.FormatUint(event.BlowID, 10)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "occurred_at", Value: []byte(event.OccurredAt.Format(time.RFC3339Nano))},
		},
	}, nil
}
