package worker

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	common "github.com/example/whatsapp-messaging/internal/adapters/common"
	"github.com/example/whatsapp-messaging/internal/metrics"
	"github.com/example/whatsapp-messaging/internal/models"
	"github.com/example/whatsapp-messaging/internal/util"
)

// Dependencies collects the collaborators required by the dispatcher.
type Dependencies struct {
	Adapter         Adapter
	Validator       Validator
	StatusPublisher StatusPublisher
	DLQPublisher    DLQPublisher
	Logger          zerolog.Logger
	Now             func() time.Time
}

// Dispatcher validates inbound records, hands them to the adapter and reports
// the outcome. It never retries: every failed request lands on the DLQ and
// the record is committed.
type Dispatcher struct {
	cfg             Config
	adapter         Adapter
	validator       Validator
	statusPublisher StatusPublisher
	dlqPublisher    DLQPublisher
	logger          zerolog.Logger
	now             func() time.Time

	sem *semaphore.Weighted
	wg  sync.WaitGroup
}

// NewDispatcher validates the configuration and collaborators.
func NewDispatcher(cfg Config, deps Dependencies) (*Dispatcher, error) {
	if cfg.Concurrency < 1 {
		return nil, errors.New("worker: concurrency must be >= 1")
	}
	if cfg.MsgMaxBytes < 0 {
		return nil, errors.New("worker: msg max bytes cannot be negative")
	}
	if deps.Adapter == nil {
		return nil, errors.New("worker: adapter dependency is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("worker: validator dependency is required")
	}
	if deps.StatusPublisher == nil {
		return nil, errors.New("worker: status publisher dependency is required")
	}
	if deps.DLQPublisher == nil {
		return nil, errors.New("worker: DLQ publisher dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Dispatcher{
		cfg:             cfg,
		adapter:         deps.Adapter,
		validator:       deps.Validator,
		statusPublisher: deps.StatusPublisher,
		dlqPublisher:    deps.DLQPublisher,
		logger:          logger.With().Str("component", "dispatcher").Logger(),
		now:             now,
		sem:             semaphore.NewWeighted(int64(cfg.Concurrency)),
	}, nil
}

// HandleRecord blocks until a concurrency slot is free, then processes the
// record asynchronously. It returns an error only when the context ends
// before a slot could be acquired. Processing itself is detached from ctx
// cancellation so a shutdown lets in-flight sends finish; the client timeout
// bounds them.
func (d *Dispatcher) HandleRecord(ctx context.Context, record *Record) error {
	if record == nil {
		return nil
	}
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("worker: acquire slot: %w", err)
	}

	procCtx := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.sem.Release(1)
		d.process(procCtx, record)
	}()
	return nil
}

// Wait blocks until all in-flight records have been processed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) process(ctx context.Context, record *Record) {
	defer metrics.TrackInFlight()()

	if err := util.EnsureMaxBytes("payload", record.Value, d.cfg.MsgMaxBytes); err != nil {
		d.reject(ctx, record, d.partialMessage(record), err)
		return
	}

	msg, err := d.validator.ParseAndValidate(ctx, record.Value)
	if err != nil {
		d.reject(ctx, record, d.partialMessage(record), err)
		return
	}
	if msg.MessageID == "" {
		msg.MessageID = string(record.Key)
	}
	if len(msg.RawPayload) == 0 {
		msg.RawPayload = record.Value
	}

	start := d.now()
	resp, err := d.adapter.Send(ctx, msg)
	elapsed := d.now().Sub(start)

	log := d.logger.With().
		Str("message_id", msg.MessageID).
		Str("trace_id", msg.TraceID).
		Dur("duration", elapsed).
		Logger()

	if err == nil {
		log.Info().Msg("worker: message sent")
		d.publishStatus(ctx, msg, models.StatusEventSent, resp, "")
		d.commit(ctx, record)
		return
	}

	eventType := models.StatusEventFailed
	if resp != nil {
		switch resp.Status {
		case common.StatusRejected:
			eventType = models.StatusEventRejected
		case common.StatusRateLimited:
			eventType = models.StatusEventRateLimited
		}
	}
	failureType := common.FailureType(err)

	log.Warn().
		Str("event_type", eventType).
		Str("failure_type", failureType).
		Err(err).
		Msg("worker: send failed")

	d.publishStatus(ctx, msg, eventType, resp, err.Error())
	if d.deadLetter(ctx, msg, failureType, err) {
		d.commit(ctx, record)
	}
}

// reject handles records that never reached the adapter.
func (d *Dispatcher) reject(ctx context.Context, record *Record, msg *ValidatedMessage, err error) {
	d.logger.Warn().
		Str("message_id", msg.MessageID).
		Str("topic", record.Topic).
		Int32("partition", record.Partition).
		Int64("offset", record.Offset).
		Err(err).
		Msg("worker: record failed validation")

	d.publishStatus(ctx, msg, models.StatusEventFailed, nil, err.Error())
	if d.deadLetter(ctx, msg, models.FailureTypeValidation, err) {
		d.commit(ctx, record)
	}
}

// deadLetter reports whether the DLQ write succeeded. A record whose DLQ
// write failed stays uncommitted so it is redelivered.
func (d *Dispatcher) deadLetter(ctx context.Context, msg *ValidatedMessage, failureType string, cause error) bool {
	metrics.RecordFailure(failureType)

	rec := models.DLQRecord{
		MessageID:       msg.MessageID,
		Channel:         models.ChannelWhatsApp,
		OriginalMessage: string(msg.RawPayload),
		FailureType:     failureType,
		LastError:       cause.Error(),
		FailedAt:        d.now().UTC(),
		TraceID:         msg.TraceID,
		Meta:            msg.Metadata,
	}
	if err := d.dlqPublisher.PublishDLQ(ctx, rec); err != nil {
		d.logger.Error().
			Str("message_id", msg.MessageID).
			Err(err).
			Msg("worker: failed to publish DLQ record")
		return false
	}

	d.publishStatus(ctx, msg, models.StatusEventDLQ, nil, cause.Error())
	return true
}

func (d *Dispatcher) publishStatus(ctx context.Context, msg *ValidatedMessage, eventType string, resp *common.ProviderResponse, errText string) {
	event := models.StatusEvent{
		MessageID: msg.MessageID,
		Channel:   models.ChannelWhatsApp,
		EventType: eventType,
		Error:     errText,
		TraceID:   msg.TraceID,
		Timestamp: d.now().UTC(),
	}
	if msg.Request != nil {
		event.Recipient = msg.Request.To
	}
	if resp != nil {
		event.ProviderResponse = &models.ProviderResponse{
			Status:  resp.Status,
			Code:    resp.Code,
			Message: resp.Message,
			Raw:     resp.Raw,
			Meta:    resp.Meta,
		}
	}

	if err := d.statusPublisher.PublishStatus(ctx, event); err != nil {
		d.logger.Error().
			Str("message_id", msg.MessageID).
			Str("event_type", eventType).
			Err(err).
			Msg("worker: failed to publish status event")
	}
}

func (d *Dispatcher) commit(ctx context.Context, record *Record) {
	if err := record.Commit(ctx); err != nil {
		d.logger.Error().
			Str("topic", record.Topic).
			Int32("partition", record.Partition).
			Int64("offset", record.Offset).
			Err(err).
			Msg("worker: failed to commit record offset")
	}
}

func (d *Dispatcher) partialMessage(record *Record) *ValidatedMessage {
	return &ValidatedMessage{
		MessageID:  string(record.Key),
		RawPayload: record.Value,
	}
}
