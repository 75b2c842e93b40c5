package producer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const (
	defaultClientID     = "whatsapp-worker-producer"
	defaultRetryMax     = 5
	defaultRetryBackoff = 250 * time.Millisecond
)

// Option customises the Sarama config used by New.
type Option func(*sarama.Config)

// WithSaramaConfig replaces the default Sarama config. The value is copied so
// the caller retains ownership.
func WithSaramaConfig(cfg *sarama.Config) Option {
	return func(dst *sarama.Config) {
		if cfg != nil {
			*dst = *cfg
		}
	}
}

// Producer publishes status and DLQ records synchronously.
type Producer struct {
	logger zerolog.Logger
	sync   sarama.SyncProducer
	ready  atomic.Bool
}

// New constructs a Producer connected to brokers.
func New(brokers []string, logger zerolog.Logger, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka producer: at least one broker is required")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	// SyncProducer requires both.
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	sp, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: create sync producer: %w", err)
	}
	return NewFromSyncProducer(sp, logger), nil
}

// NewFromSyncProducer wraps an existing Sarama sync producer.
func NewFromSyncProducer(sp sarama.SyncProducer, logger zerolog.Logger) *Producer {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	p := &Producer{logger: logger, sync: sp}
	p.ready.Store(true)
	return p
}

// PublishSync publishes a message and waits for the broker acknowledgement.
func (p *Producer) PublishSync(ctx context.Context, topic string, key []byte, headers map[string][]byte, payload []byte) error {
	if topic == "" {
		return errors.New("kafka producer: topic is required")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic:   topic,
		Value:   sarama.ByteEncoder(payload),
		Headers: toRecordHeaders(headers),
	}
	if len(key) > 0 {
		msg.Key = sarama.ByteEncoder(key)
	}

	partition, offset, err := p.sync.SendMessage(msg)
	if err != nil {
		p.ready.Store(false)
		return fmt.Errorf("kafka producer: send sync: %w", err)
	}
	p.ready.Store(true)

	p.logger.Debug().
		Str("topic", topic).
		Int32("partition", partition).
		Int64("offset", offset).
		Msg("kafka producer: message acknowledged")
	return nil
}

// IsReady reports whether the most recent publish succeeded.
func (p *Producer) IsReady() bool {
	return p.ready.Load()
}

// Close flushes and closes the underlying producer.
func (p *Producer) Close() error {
	p.ready.Store(false)
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("kafka producer: close: %w", err)
	}
	return nil
}

func defaultConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = defaultClientID

	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Retry.Max = defaultRetryMax
	cfg.Producer.Retry.Backoff = defaultRetryBackoff
	cfg.Producer.Partitioner = sarama.NewHashPartitioner

	return cfg
}

func toRecordHeaders(headers map[string][]byte) []sarama.RecordHeader {
	if len(headers) == 0 {
		return nil
	}
	out := make([]sarama.RecordHeader, 0, len(headers))
	for k, v := range headers {
		out = append(out, sarama.RecordHeader{Key: []byte(k), Value: v})
	}
	return out
}
