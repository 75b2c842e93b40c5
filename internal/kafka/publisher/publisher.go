package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-messaging/internal/models"
)

// ErrProducerNotInitialised is returned when a publisher has no producer.
var ErrProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// SyncProducer captures the subset of producer behaviour the publishers need.
type SyncProducer interface {
	PublishSync(ctx context.Context, topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// topicWriter marshals values to JSON and publishes them keyed by message id.
type topicWriter struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

func newTopicWriter(prod SyncProducer, topic string, logger zerolog.Logger) topicWriter {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return topicWriter{producer: prod, topic: topic, logger: logger}
}

func (w topicWriter) write(ctx context.Context, kind, messageID, traceID string, v any) error {
	if w.producer == nil {
		return ErrProducerNotInitialised
	}

	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal %s: %w", kind, err)
	}

	headers := map[string][]byte{
		"content-type": []byte("application/json"),
	}
	if traceID != "" {
		headers["trace-id"] = []byte(traceID)
	}

	var key []byte
	if messageID != "" {
		key = []byte(messageID)
	}

	if err := w.producer.PublishSync(ctx, w.topic, key, headers, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish %s: %w", kind, err)
	}

	w.logger.Debug().
		Str("topic", w.topic).
		Str("message_id", messageID).
		Msgf("kafka publisher: %s published", kind)
	return nil
}

// StatusPublisher emits status events to the status topic.
type StatusPublisher struct {
	w topicWriter
}

// NewStatusPublisher constructs a StatusPublisher.
func NewStatusPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *StatusPublisher {
	return &StatusPublisher{w: newTopicWriter(prod, topic, logger)}
}

// PublishStatus writes event to Kafka synchronously.
func (p *StatusPublisher) PublishStatus(ctx context.Context, event models.StatusEvent) error {
	return p.w.write(ctx, "status event", event.MessageID, event.TraceID, event)
}

// DLQPublisher writes DLQ records to the DLQ topic.
type DLQPublisher struct {
	w topicWriter
}

// NewDLQPublisher constructs a DLQPublisher.
func NewDLQPublisher(prod SyncProducer, topic string, logger zerolog.Logger) *DLQPublisher {
	return &DLQPublisher{w: newTopicWriter(prod, topic, logger)}
}

// PublishDLQ writes record to Kafka synchronously.
func (p *DLQPublisher) PublishDLQ(ctx context.Context, record models.DLQRecord) error {
	return p.w.write(ctx, "dlq record", record.MessageID, record.TraceID, record)
}
