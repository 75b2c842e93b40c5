package validator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/rs/zerolog"

	"github.com/example/whatsapp-messaging/internal/config"
	"github.com/example/whatsapp-messaging/internal/models"
	"github.com/example/whatsapp-messaging/internal/util"
	"github.com/example/whatsapp-messaging/internal/worker"
	"github.com/example/whatsapp-messaging/pkg/whatsapp"
)

// ErrInvalidRequest wraps every rejection so callers can route the record to
// the DLQ as a validation failure.
var ErrInvalidRequest = errors.New("whatsapp validator: invalid request")

// Validator implements worker.Validator for WhatsApp send requests.
type Validator struct {
	logger zerolog.Logger
	cfg    config.WorkerConfig
}

// New constructs a Validator.
func New(cfg config.WorkerConfig, logger zerolog.Logger) *Validator {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Validator{logger: logger, cfg: cfg}
}

// ParseAndValidate strictly decodes payload into a SendRequest, normalizes it
// and checks it against the configured limits.
func (v *Validator) ParseAndValidate(ctx context.Context, payload []byte) (*worker.ValidatedMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, invalid("payload is empty")
	}

	var req models.SendRequest
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidRequest, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, invalid("trailing data after request object")
	}

	if err := v.normalize(&req); err != nil {
		return nil, err
	}

	v.logger.Debug().
		Str("message_id", req.MessageID).
		Str("type", req.Type).
		Msg("whatsapp validator: request accepted")

	return &worker.ValidatedMessage{
		MessageID:  req.MessageID,
		TraceID:    req.TraceID,
		TenantID:   req.TenantID,
		CreatedAt:  req.CreatedAt,
		Metadata:   req.Meta,
		Request:    &req,
		RawPayload: append([]byte(nil), payload...),
	}, nil
}

func (v *Validator) normalize(req *models.SendRequest) error {
	id, err := util.ParseUUIDv4(req.MessageID)
	if err != nil {
		return fmt.Errorf("%w: message_id: %w", ErrInvalidRequest, err)
	}
	req.MessageID = id.String()
	req.TraceID = strings.TrimSpace(req.TraceID)
	req.TenantID = strings.TrimSpace(req.TenantID)

	if req.CreatedAt.IsZero() {
		return invalid("created_at is required")
	}
	req.CreatedAt = req.CreatedAt.UTC()

	to, err := util.NormalizeRecipient(req.To)
	if err != nil {
		return fmt.Errorf("%w: to: %w", ErrInvalidRequest, err)
	}
	req.To = to

	req.Type = strings.ToLower(strings.TrimSpace(req.Type))
	if req.Type == "" {
		switch {
		case req.Text != nil && req.Template == nil:
			req.Type = models.RequestTypeText
		case req.Template != nil && req.Text == nil:
			req.Type = models.RequestTypeTemplate
		}
	}

	switch req.Type {
	case models.RequestTypeText:
		err = v.validateText(req)
	case models.RequestTypeTemplate:
		err = v.validateTemplate(req)
	default:
		err = invalid(fmt.Sprintf("unsupported type %q", req.Type))
	}
	if err != nil {
		return err
	}

	meta, err := util.ValidateMetadata(req.Meta, v.cfg.MetaMaxEntries, v.cfg.MetaMaxKeyLen, v.cfg.MetaMaxValueLen)
	if err != nil {
		return fmt.Errorf("%w: meta: %w", ErrInvalidRequest, err)
	}
	req.Meta = meta

	// Final check against the envelope rules the client enforces.
	if err := req.Message().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func (v *Validator) validateText(req *models.SendRequest) error {
	if req.Template != nil {
		return invalid("text request must not carry a template")
	}
	if req.Text == nil || strings.TrimSpace(req.Text.Body) == "" {
		return invalid("text.body is required")
	}
	if err := util.EnsureMaxBytes("text.body", []byte(req.Text.Body), v.cfg.TextBodyMax); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

func (v *Validator) validateTemplate(req *models.SendRequest) error {
	if req.Text != nil {
		return invalid("template request must not carry text")
	}
	tmpl := req.Template
	if tmpl == nil {
		return invalid("template is required")
	}

	name, err := util.ValidateTemplateName(tmpl.Name)
	if err != nil {
		return fmt.Errorf("%w: template.name: %w", ErrInvalidRequest, err)
	}
	tmpl.Name = name

	if tmpl.Language == nil || strings.TrimSpace(tmpl.Language.Code) == "" {
		return invalid("template.language.code is required")
	}
	tmpl.Language.Code = strings.TrimSpace(tmpl.Language.Code)
	if tmpl.Components == nil {
		tmpl.Components = []whatsapp.Component{}
	}

	for i := range tmpl.Components {
		comp := &tmpl.Components[i]
		for j := range comp.Parameters {
			p := &comp.Parameters[j]
			switch p.Type {
			case whatsapp.ParameterTypeText:
				// Producers may bypass the builder; apply the same display rules.
				p.Text = whatsapp.NormalizeText(p.Text)
				if p.Text == "" {
					return invalid(fmt.Sprintf("template.components[%d].parameters[%d].text is empty", i, j))
				}
			case whatsapp.ParameterTypeImage:
				if p.Image == nil {
					return invalid(fmt.Sprintf("template.components[%d].parameters[%d].image is required", i, j))
				}
				link, err := util.ValidateHTTPURL(p.Image.Link)
				if err != nil {
					return fmt.Errorf("%w: template.components[%d].parameters[%d].image.link: %w", ErrInvalidRequest, i, j, err)
				}
				p.Image.Link = link
			}
		}
	}
	return nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, reason)
}
