package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	common "github.com/example/whatsapp-messaging/internal/adapters/common"
	"github.com/example/whatsapp-messaging/internal/metrics"
	"github.com/example/whatsapp-messaging/internal/worker"
	wa "github.com/example/whatsapp-messaging/pkg/whatsapp"
)

// Sender delivers an envelope to the platform. *wa.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, msg *wa.Message) (*wa.Response, error)
}

// Graph API error codes that indicate throttling or temporary unavailability.
var transientCodes = map[int]struct{}{
	1:      {}, // unknown API error
	2:      {}, // service temporarily unavailable
	4:      {}, // application request limit reached
	80007:  {}, // WABA rate limit
	130429: {}, // cloud API throughput reached
	131000: {}, // something went wrong
	131016: {}, // service unavailable
	131048: {}, // spam rate limit
	131056: {}, // pair rate limit
	133004: {}, // server temporarily unavailable
}

// Option customises adapter behaviour.
type Option func(*Adapter)

// WithRawBodyLimit overrides the number of characters retained from the
// platform response body.
func WithRawBodyLimit(limit int) Option {
	return func(a *Adapter) {
		if limit > 0 {
			a.maxRawChars = limit
		}
	}
}

// WithClock overrides the clock used to time sends.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		if now != nil {
			a.now = now
		}
	}
}

// Adapter implements worker.Adapter on top of the Cloud API client.
type Adapter struct {
	logger      zerolog.Logger
	sender      Sender
	maxRawChars int
	now         func() time.Time
}

// NewAdapter constructs a WhatsApp adapter.
func NewAdapter(sender Sender, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if sender == nil {
		return nil, errors.New("whatsapp adapter: sender dependency is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:      logger,
		sender:      sender,
		maxRawChars: common.DefaultRawBodyLimit,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Send converts the validated request into an envelope, delivers it and
// classifies the outcome.
func (a *Adapter) Send(ctx context.Context, msg *worker.ValidatedMessage) (*common.ProviderResponse, error) {
	if msg == nil || msg.Request == nil {
		return nil, common.WrapPermanent(errors.New("whatsapp adapter: message request is nil"))
	}
	req := msg.Request
	envelope := req.Message()

	start := a.now()
	resp, err := a.sender.Send(ctx, envelope)
	elapsed := a.now().Sub(start)

	var (
		out      *common.ProviderResponse
		classErr error
	)
	switch {
	case err != nil:
		out, classErr = a.classifyError(err)
	case resp == nil:
		classErr = common.WrapTransient(errors.New("whatsapp adapter: sender returned no response"))
		out = a.errorResponse(common.StatusUnknown, classErr)
	case !resp.IsSuccessful():
		out, classErr = a.classifyAPIError(http.StatusOK, resp.Error, resp, resp.Error)
	default:
		out = a.successResponse(resp)
	}

	metrics.RecordSend(req.Type, out.Status, elapsed)

	log := a.logger.With().
		Str("message_id", req.MessageID).
		Str("recipient", req.To).
		Str("type", req.Type).
		Str("provider_status", out.Status).
		Str("provider_id", out.Meta["provider_id"]).
		Dur("duration", elapsed).
		Logger()
	if classErr != nil {
		log.Warn().Err(classErr).Msg("whatsapp adapter send failed")
		return out, classErr
	}
	log.Debug().Msg("whatsapp adapter send succeeded")
	return out, nil
}

func (a *Adapter) successResponse(resp *wa.Response) *common.ProviderResponse {
	meta := map[string]string{}
	if id := resp.MessageID(); id != "" {
		meta["provider_id"] = id
	}
	if len(resp.Contacts) > 0 && resp.Contacts[0].WaID != "" {
		meta["wa_id"] = resp.Contacts[0].WaID
	}
	if len(meta) == 0 {
		meta = nil
	}
	return &common.ProviderResponse{
		Status:  common.StatusSent,
		Message: "sent",
		Raw:     a.rawBody(resp),
		Meta:    meta,
	}
}

func (a *Adapter) classifyError(err error) (*common.ProviderResponse, error) {
	var reqErr *wa.RequestError
	switch {
	case errors.As(err, &reqErr):
		if reqErr.APIError != nil {
			return a.classifyAPIError(reqErr.StatusCode, reqErr.APIError, reqErr.Response, err)
		}
		status, wrapped := classifyHTTPStatus(reqErr.StatusCode, err)
		return &common.ProviderResponse{
			Status:  status,
			Code:    common.OptionalInt(reqErr.StatusCode),
			Message: reqErr.Message,
			Meta:    map[string]string{"http_status": strconv.Itoa(reqErr.StatusCode)},
		}, wrapped
	case errors.Is(err, wa.ErrInvalidMessage), errors.Is(err, wa.ErrEncode):
		return a.errorResponse(common.StatusRejected, err), common.WrapPermanent(err)
	case errors.Is(err, wa.ErrDecode):
		// The platform may have accepted the message; the outcome is unknown.
		resp := a.errorResponse(common.StatusUnknown, err)
		var decErr *wa.DecodeError
		if errors.As(err, &decErr) {
			resp.Code = common.OptionalInt(decErr.StatusCode)
			resp.Raw = common.TruncateRaw(string(decErr.Body), a.maxRawChars)
		}
		return resp, common.WrapTransient(err)
	default:
		// Transport failures, including cancelled contexts.
		return a.errorResponse(common.StatusRateLimited, err), common.WrapTransient(err)
	}
}

func (a *Adapter) classifyAPIError(httpStatus int, apiErr *wa.APIError, resp *wa.Response, cause error) (*common.ProviderResponse, error) {
	metrics.RecordAPIError(apiErr.Code)

	meta := map[string]string{
		"http_status": strconv.Itoa(httpStatus),
	}
	if apiErr.FBTraceID != "" {
		meta["fbtrace_id"] = apiErr.FBTraceID
	}
	if apiErr.ErrorSubcode != 0 {
		meta["error_subcode"] = strconv.Itoa(apiErr.ErrorSubcode)
	}
	if apiErr.ErrorData.Details != "" {
		meta["details"] = apiErr.ErrorData.Details
	}

	out := &common.ProviderResponse{
		Code:    common.OptionalInt(apiErr.Code),
		Message: apiErr.Message,
		Raw:     a.rawBody(resp),
		Meta:    meta,
	}
	if IsTransientCode(apiErr.Code) || httpStatus >= http.StatusInternalServerError || httpStatus == http.StatusTooManyRequests {
		out.Status = common.StatusRateLimited
		return out, common.WrapTransient(cause)
	}
	out.Status = common.StatusRejected
	return out, common.WrapPermanent(cause)
}

func (a *Adapter) errorResponse(status string, err error) *common.ProviderResponse {
	return &common.ProviderResponse{
		Status:  status,
		Message: err.Error(),
	}
}

func (a *Adapter) rawBody(resp *wa.Response) string {
	if resp == nil {
		return ""
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return ""
	}
	return common.TruncateRaw(string(b), a.maxRawChars)
}

// IsTransientCode reports whether a Graph API error code signals throttling
// or a temporary outage.
func IsTransientCode(code int) bool {
	_, ok := transientCodes[code]
	return ok
}

func classifyHTTPStatus(status int, err error) (string, error) {
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return common.StatusRateLimited, common.WrapTransient(err)
	}
	return common.StatusRejected, common.WrapPermanent(err)
}
