package models

import (
	"time"

	"github.com/example/whatsapp-messaging/pkg/whatsapp"
)

// ChannelWhatsApp identifies the channel on status and DLQ events.
const ChannelWhatsApp = "whatsapp"

// Request types accepted on the request topic.
const (
	RequestTypeText     = "text"
	RequestTypeTemplate = "template"
)

// TextBody carries a free-form text payload.
type TextBody struct {
	Body string `json:"body"`
}

// SendRequest is the payload producers publish on the WhatsApp request topic.
// Exactly one of Text and Template is set, matching Type.
type SendRequest struct {
	MessageID string             `json:"message_id"`
	TraceID   string             `json:"trace_id,omitempty"`
	TenantID  string             `json:"tenant_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	To        string             `json:"to"`
	Type      string             `json:"type"`
	Text      *TextBody          `json:"text,omitempty"`
	Template  *whatsapp.Template `json:"template,omitempty"`
	Meta      map[string]string  `json:"meta,omitempty"`
}

// Message converts the request into the outbound envelope.
func (r *SendRequest) Message() *whatsapp.Message {
	if r.Type == RequestTypeTemplate {
		return whatsapp.NewTemplateMessage(r.To, r.Template)
	}
	var body string
	if r.Text != nil {
		body = r.Text.Body
	}
	return whatsapp.NewTextMessage(r.To, body)
}
