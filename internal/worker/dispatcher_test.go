package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	common "github.com/example/whatsapp-messaging/internal/adapters/common"
	"github.com/example/whatsapp-messaging/internal/models"
	"github.com/example/whatsapp-messaging/internal/worker"
)

type stubValidator struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (s *stubValidator) ParseAndValidate(_ context.Context, payload []byte) (*worker.ValidatedMessage, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &worker.ValidatedMessage{
		MessageID: "msg-1",
		TraceID:   "trace-1",
		Request:   &models.SendRequest{MessageID: "msg-1", To: "14155550100", Type: models.RequestTypeText},
	}, nil
}

type stubAdapter struct {
	resp    *common.ProviderResponse
	err     error
	block   chan struct{}
	started chan struct{}
}

func (s *stubAdapter) Send(ctx context.Context, _ *worker.ValidatedMessage) (*common.ProviderResponse, error) {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	return s.resp, s.err
}

type recordingStatus struct {
	mu     sync.Mutex
	events []models.StatusEvent
}

func (r *recordingStatus) PublishStatus(_ context.Context, event models.StatusEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingStatus) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

type recordingDLQ struct {
	mu      sync.Mutex
	records []models.DLQRecord
	err     error
}

func (r *recordingDLQ) PublishDLQ(_ context.Context, record models.DLQRecord) error {
	if r.err != nil {
		return r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

type harness struct {
	dispatcher *worker.Dispatcher
	validator  *stubValidator
	adapter    *stubAdapter
	status     *recordingStatus
	dlq        *recordingDLQ
}

func newHarness(t *testing.T, cfg worker.Config, adapter *stubAdapter) *harness {
	t.Helper()
	h := &harness{
		validator: &stubValidator{},
		adapter:   adapter,
		status:    &recordingStatus{},
		dlq:       &recordingDLQ{},
	}
	d, err := worker.NewDispatcher(cfg, worker.Dependencies{
		Adapter:         h.adapter,
		Validator:       h.validator,
		StatusPublisher: h.status,
		DLQPublisher:    h.dlq,
		Logger:          zerolog.Nop(),
		Now:             func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewDispatcher returned error: %v", err)
	}
	h.dispatcher = d
	return h
}

func newRecord(value string, commits *int) *worker.Record {
	return worker.NewRecord("whatsapp.request", 0, 42, []byte("msg-1"), []byte(value), func(context.Context) error {
		*commits++
		return nil
	})
}

func equalTypes(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestDispatcherSuccess(t *testing.T) {
	h := newHarness(t, worker.Config{Concurrency: 2}, &stubAdapter{
		resp: &common.ProviderResponse{Status: common.StatusSent, Meta: map[string]string{"provider_id": "wamid.1"}},
	})

	commits := 0
	if err := h.dispatcher.HandleRecord(context.Background(), newRecord(`{}`, &commits)); err != nil {
		t.Fatalf("HandleRecord returned error: %v", err)
	}
	h.dispatcher.Wait()

	if got := h.status.types(); !equalTypes(got, models.StatusEventSent) {
		t.Fatalf("unexpected status events %v", got)
	}
	ev := h.status.events[0]
	if ev.Recipient != "14155550100" || ev.TraceID != "trace-1" || ev.Channel != models.ChannelWhatsApp {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.ProviderResponse == nil || ev.ProviderResponse.Meta["provider_id"] != "wamid.1" {
		t.Fatalf("provider response not propagated: %+v", ev.ProviderResponse)
	}
	if len(h.dlq.records) != 0 {
		t.Fatalf("expected no DLQ records")
	}
	if commits != 1 {
		t.Fatalf("expected 1 commit, got %d", commits)
	}
}

func TestDispatcherValidationFailure(t *testing.T) {
	h := newHarness(t, worker.Config{Concurrency: 1}, &stubAdapter{})
	h.validator.err = errors.New("whatsapp validator: invalid request: to: invalid e164 phone number")

	commits := 0
	_ = h.dispatcher.HandleRecord(context.Background(), newRecord(`{"to":"x"}`, &commits))
	h.dispatcher.Wait()

	if got := h.status.types(); !equalTypes(got, models.StatusEventFailed, models.StatusEventDLQ) {
		t.Fatalf("unexpected status events %v", got)
	}
	if len(h.dlq.records) != 1 {
		t.Fatalf("expected 1 DLQ record, got %d", len(h.dlq.records))
	}
	rec := h.dlq.records[0]
	if rec.FailureType != models.FailureTypeValidation {
		t.Fatalf("failure type = %q", rec.FailureType)
	}
	if rec.MessageID != "msg-1" || rec.OriginalMessage != `{"to":"x"}` {
		t.Fatalf("unexpected DLQ record %+v", rec)
	}
	if commits != 1 {
		t.Fatalf("expected commit after DLQ, got %d", commits)
	}
}

func TestDispatcherOversizedRecord(t *testing.T) {
	h := newHarness(t, worker.Config{Concurrency: 1, MsgMaxBytes: 4}, &stubAdapter{})

	commits := 0
	_ = h.dispatcher.HandleRecord(context.Background(), newRecord(`{"long":true}`, &commits))
	h.dispatcher.Wait()

	if h.validator.calls != 0 {
		t.Fatalf("validator must not run for oversized records")
	}
	if len(h.dlq.records) != 1 || h.dlq.records[0].FailureType != models.FailureTypeValidation {
		t.Fatalf("expected validation DLQ record, got %+v", h.dlq.records)
	}
	if commits != 1 {
		t.Fatalf("expected 1 commit, got %d", commits)
	}
}

func TestDispatcherAdapterFailures(t *testing.T) {
	cases := []struct {
		name        string
		resp        *common.ProviderResponse
		err         error
		wantEvent   string
		wantFailure string
	}{
		{
			name:        "permanent",
			resp:        &common.ProviderResponse{Status: common.StatusRejected},
			err:         common.WrapPermanent(errors.New("recipient not on whatsapp")),
			wantEvent:   models.StatusEventRejected,
			wantFailure: models.FailureTypePermanent,
		},
		{
			name:        "transient",
			resp:        &common.ProviderResponse{Status: common.StatusRateLimited},
			err:         common.WrapTransient(errors.New("throughput reached")),
			wantEvent:   models.StatusEventRateLimited,
			wantFailure: models.FailureTypeTransient,
		},
		{
			name:        "unclassified",
			err:         errors.New("boom"),
			wantEvent:   models.StatusEventFailed,
			wantFailure: models.FailureTypeUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, worker.Config{Concurrency: 1}, &stubAdapter{resp: tc.resp, err: tc.err})

			commits := 0
			_ = h.dispatcher.HandleRecord(context.Background(), newRecord(`{}`, &commits))
			h.dispatcher.Wait()

			if got := h.status.types(); !equalTypes(got, tc.wantEvent, models.StatusEventDLQ) {
				t.Fatalf("unexpected status events %v", got)
			}
			if h.status.events[0].Error == "" {
				t.Fatalf("expected error text on status event")
			}
			if len(h.dlq.records) != 1 || h.dlq.records[0].FailureType != tc.wantFailure {
				t.Fatalf("unexpected DLQ records %+v", h.dlq.records)
			}
			if commits != 1 {
				t.Fatalf("expected 1 commit, got %d", commits)
			}
		})
	}
}

func TestDispatcherSkipsCommitWhenDLQFails(t *testing.T) {
	h := newHarness(t, worker.Config{Concurrency: 1}, &stubAdapter{err: common.WrapPermanent(errors.New("rejected"))})
	h.dlq.err = errors.New("broker down")

	commits := 0
	_ = h.dispatcher.HandleRecord(context.Background(), newRecord(`{}`, &commits))
	h.dispatcher.Wait()

	if commits != 0 {
		t.Fatalf("record must stay uncommitted when the DLQ write fails")
	}
	if got := h.status.types(); !equalTypes(got, models.StatusEventFailed) {
		t.Fatalf("unexpected status events %v", got)
	}
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	adapter := &stubAdapter{
		resp:    &common.ProviderResponse{Status: common.StatusSent},
		block:   make(chan struct{}),
		started: make(chan struct{}, 2),
	}
	h := newHarness(t, worker.Config{Concurrency: 1}, adapter)

	commits := 0
	if err := h.dispatcher.HandleRecord(context.Background(), newRecord(`{}`, &commits)); err != nil {
		t.Fatalf("first HandleRecord returned error: %v", err)
	}
	<-adapter.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := h.dispatcher.HandleRecord(ctx, newRecord(`{}`, &commits)); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected second record to wait for a slot, got %v", err)
	}

	close(adapter.block)
	h.dispatcher.Wait()
	if commits != 1 {
		t.Fatalf("expected 1 commit, got %d", commits)
	}
}

func TestNewDispatcherValidation(t *testing.T) {
	deps := worker.Dependencies{
		Adapter:         &stubAdapter{},
		Validator:       &stubValidator{},
		StatusPublisher: &recordingStatus{},
		DLQPublisher:    &recordingDLQ{},
	}

	if _, err := worker.NewDispatcher(worker.Config{Concurrency: 0}, deps); err == nil {
		t.Fatalf("expected error for zero concurrency")
	}
	if _, err := worker.NewDispatcher(worker.Config{Concurrency: 1, MsgMaxBytes: -1}, deps); err == nil {
		t.Fatalf("expected error for negative size limit")
	}

	missing := deps
	missing.Adapter = nil
	if _, err := worker.NewDispatcher(worker.Config{Concurrency: 1}, missing); err == nil {
		t.Fatalf("expected error for missing adapter")
	}
	missing = deps
	missing.DLQPublisher = nil
	if _, err := worker.NewDispatcher(worker.Config{Concurrency: 1}, missing); err == nil {
		t.Fatalf("expected error for missing DLQ publisher")
	}
}

func TestRecordCommitWithoutFunc(t *testing.T) {
	rec := worker.NewRecord("t", 0, 0, nil, nil, nil)
	if err := rec.Commit(context.Background()); err != nil {
		t.Fatalf("expected nil commit error, got %v", err)
	}
}
