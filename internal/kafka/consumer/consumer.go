package consumer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

const (
	defaultClientID         = "whatsapp-worker"
	defaultSessionTimeout   = 30 * time.Second
	defaultHeartbeat        = 3 * time.Second
	defaultRebalanceTimeout = 30 * time.Second
	defaultConsumeBackoff   = time.Second
)

// Handler is invoked for every record delivered by the consumer.
type Handler func(ctx context.Context, record *Record) error

// Config describes the consumer group subscription.
type Config struct {
	Brokers []string
	GroupID string
	Topic   string
	// CommitOnSuccessOnly disables auto-commit and flushes offsets as soon as
	// a record is committed.
	CommitOnSuccessOnly bool
}

// Option customises the consumer during construction.
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

// Consumer wraps a Sarama consumer group with manual commit support.
type Consumer struct {
	logger zerolog.Logger
	cfg    Config

	group      sarama.ConsumerGroup
	errorsDone chan struct{}
	ready      atomic.Bool
	onCleanup  func()

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Record is a Kafka message delivered by the consumer.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte

	session sarama.ConsumerGroupSession
	message *sarama.ConsumerMessage
	tracker *offsetTracker
	acked   bool
}

// offsetTracker marks the offsets of one claim in delivery order, so a record
// finishing early never moves the group offset past one still in flight.
type offsetTracker struct {
	mu      sync.Mutex
	pending []*Record
	mark    func(*sarama.ConsumerMessage)
}

func (t *offsetTracker) track(r *Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.tracker = t
	t.pending = append(t.pending, r)
}

// ack flags r as done and marks the highest offset whose predecessors are all
// done. It reports whether an offset was marked.
func (t *offsetTracker) ack(r *Record) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r.acked = true

	var last *Record
	for len(t.pending) > 0 && t.pending[0].acked {
		last = t.pending[0]
		t.pending[0] = nil
		t.pending = t.pending[1:]
	}
	if last == nil {
		return false
	}
	t.mark(last.message)
	return true
}

// New joins the consumer group described by cfg.
func New(cfg Config, logger zerolog.Logger, opts ...Option) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka consumer: at least one broker is required")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("kafka consumer: group id is required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka consumer: topic is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	saramaCfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(saramaCfg)
		}
	}
	saramaCfg.Consumer.Offsets.AutoCommit.Enable = !cfg.CommitOnSuccessOnly

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: create consumer group: %w", err)
	}

	c := &Consumer{
		logger:     logger,
		cfg:        cfg,
		group:      group,
		errorsDone: make(chan struct{}),
	}
	go c.drainErrors()

	return c, nil
}

// OnCleanup registers fn to run when a group session ends, before the final
// offset commit. Use it to wait for records still being processed so their
// commits land in the ending session. Call it before Consume.
func (c *Consumer) OnCleanup(fn func()) {
	c.onCleanup = fn
}

// Consume invokes handler for each record on the configured topic. It blocks
// until ctx is cancelled or the group is closed.
func (c *Consumer) Consume(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New("kafka consumer: handler is required")
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	defer c.wg.Done()

	gh := &groupHandler{consumer: c, handler: handler}
	topics := []string{c.cfg.Topic}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.group.Consume(ctx, topics, gh)
		if err == nil {
			continue
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return nil
		}
		c.logger.Error().Err(err).Str("topic", c.cfg.Topic).Msg("kafka consumer: consume error")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(defaultConsumeBackoff):
		}
	}
}

// Commit marks the record as processed. Offsets advance only past records
// whose predecessors in the same partition are committed too. With
// CommitOnSuccessOnly the offset is flushed immediately; otherwise the
// auto-commit interval applies. Committing the same record twice is a no-op.
func (c *Consumer) Commit(_ context.Context, record *Record) error {
	if record == nil {
		return errors.New("kafka consumer: record is required")
	}
	if record.tracker == nil || record.message == nil {
		return errors.New("kafka consumer: record missing session data")
	}

	if record.tracker.ack(record) && c.cfg.CommitOnSuccessOnly && record.session != nil {
		record.session.Commit()
	}
	return nil
}

// IsReady reports whether the consumer currently holds a group session.
func (c *Consumer) IsReady() bool {
	return c.ready.Load()
}

// Close leaves the group and waits for background goroutines.
func (c *Consumer) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.group.Close()
	c.wg.Wait()
	<-c.errorsDone
	return err
}

func (c *Consumer) drainErrors() {
	defer close(c.errorsDone)
	for err := range c.group.Errors() {
		if err != nil {
			c.logger.Error().Err(err).Msg("kafka consumer error")
		}
	}
}

type groupHandler struct {
	consumer *Consumer
	handler  Handler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.ready.Store(true)
	h.consumer.logger.Info().Str("group_id", h.consumer.cfg.GroupID).Msg("kafka consumer group ready")
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	if h.consumer.onCleanup != nil {
		h.consumer.logger.Info().Str("group_id", h.consumer.cfg.GroupID).Msg("kafka consumer draining in-flight records")
		h.consumer.onCleanup()
	}
	h.consumer.ready.Store(false)
	h.consumer.logger.Info().Str("group_id", h.consumer.cfg.GroupID).Msg("kafka consumer group cleanup")
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	tracker := &offsetTracker{mark: func(m *sarama.ConsumerMessage) {
		session.MarkMessage(m, "")
	}}
	for msg := range claim.Messages() {
		record := newRecord(session, msg)
		tracker.track(record)
		if err := h.handler(session.Context(), record); err != nil {
			h.consumer.logger.Error().
				Err(err).
				Str("topic", msg.Topic).
				Int32("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("kafka consumer handler error")
		}
	}
	return nil
}

func newRecord(session sarama.ConsumerGroupSession, msg *sarama.ConsumerMessage) *Record {
	return &Record{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       cloneBytes(msg.Key),
		Value:     cloneBytes(msg.Value),
		Timestamp: msg.Timestamp,
		Headers:   fromHeaders(msg.Headers),
		session:   session,
		message:   msg,
	}
}

func defaultConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.ClientID = defaultClientID

	cfg.Consumer.Group.Session.Timeout = defaultSessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = defaultHeartbeat
	cfg.Consumer.Group.Rebalance.Timeout = defaultRebalanceTimeout
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRange()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true

	return cfg
}

func cloneBytes(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

func fromHeaders(headers []*sarama.RecordHeader) map[string][]byte {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(headers))
	for _, h := range headers {
		if h == nil || len(h.Key) == 0 {
			continue
		}
		out[string(h.Key)] = cloneBytes(h.Value)
	}
	return out
}
