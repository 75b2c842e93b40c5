package worker

import (
	"context"
	"time"

	common "github.com/example/whatsapp-messaging/internal/adapters/common"
	"github.com/example/whatsapp-messaging/internal/models"
)

// Config contains the runtime settings the dispatcher relies on.
type Config struct {
	MsgMaxBytes int
	Concurrency int
}

// Record represents a Kafka message delivered to the dispatcher. It keeps the
// dispatcher decoupled from the concrete consumer implementation.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte

	commit func(context.Context) error
}

// NewRecord builds a record bound to the supplied commit function. A nil
// commit function makes Commit a no-op.
func NewRecord(topic string, partition int32, offset int64, key, value []byte, commit func(context.Context) error) *Record {
	return &Record{
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Key:       cloneBytes(key),
		Value:     cloneBytes(value),
		commit:    commit,
	}
}

// Commit marks the record as processed.
func (r *Record) Commit(ctx context.Context) error {
	if r == nil || r.commit == nil {
		return nil
	}
	return r.commit(ctx)
}

// ValidatedMessage is the canonical representation of a request after it has
// passed validation.
type ValidatedMessage struct {
	MessageID  string
	TraceID    string
	TenantID   string
	CreatedAt  time.Time
	Metadata   map[string]string
	Request    *models.SendRequest
	RawPayload []byte
}

// Adapter sends a validated message and classifies the outcome. Errors wrap
// common.ErrTransient or common.ErrPermanent.
type Adapter interface {
	Send(ctx context.Context, msg *ValidatedMessage) (*common.ProviderResponse, error)
}

// Validator parses and validates an inbound payload.
type Validator interface {
	ParseAndValidate(ctx context.Context, payload []byte) (*ValidatedMessage, error)
}

// StatusPublisher publishes lifecycle updates for a message.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, event models.StatusEvent) error
}

// DLQPublisher writes undeliverable requests to the DLQ topic.
type DLQPublisher interface {
	PublishDLQ(ctx context.Context, record models.DLQRecord) error
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	clone := make([]byte, len(b))
	copy(clone, b)
	return clone
}

func cloneHeaders(headers map[string][]byte) map[string][]byte {
	if len(headers) == 0 {
		return nil
	}
	clone := make(map[string][]byte, len(headers))
	for k, v := range headers {
		clone[k] = cloneBytes(v)
	}
	return clone
}
