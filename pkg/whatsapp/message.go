package whatsapp

import "fmt"

// MessageType is the payload kind of an envelope.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeTemplate MessageType = "template"
)

// Text is a free-form text payload.
type Text struct {
	Body string `json:"body"`
}

// Message is the outbound envelope posted to the messages endpoint. Exactly one
// of Text and Template is set, matching Type.
type Message struct {
	MessagingProduct string      `json:"messaging_product"`
	To               string      `json:"to"`
	Type             MessageType `json:"type"`
	Text             *Text       `json:"text,omitempty"`
	Template         *Template   `json:"template,omitempty"`
}

// NewTextMessage builds a text envelope for to.
func NewTextMessage(to, body string) *Message {
	return &Message{
		MessagingProduct: MessagingProduct,
		To:               to,
		Type:             MessageTypeText,
		Text:             &Text{Body: body},
	}
}

// NewTemplateMessage builds a template envelope for to.
func NewTemplateMessage(to string, tmpl *Template) *Message {
	return &Message{
		MessagingProduct: MessagingProduct,
		To:               to,
		Type:             MessageTypeTemplate,
		Template:         tmpl,
	}
}

// Validate enforces the envelope invariants before transmission.
func (m *Message) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}
	if m.To == "" {
		return fmt.Errorf("%w: recipient is required", ErrInvalidMessage)
	}
	switch m.Type {
	case MessageTypeText:
		if m.Text == nil || m.Template != nil {
			return fmt.Errorf("%w: text message must carry only a text payload", ErrInvalidMessage)
		}
	case MessageTypeTemplate:
		if m.Template == nil || m.Text != nil {
			return fmt.Errorf("%w: template message must carry only a template payload", ErrInvalidMessage)
		}
		return m.Template.Validate()
	default:
		return fmt.Errorf("%w: unsupported message type %q", ErrInvalidMessage, m.Type)
	}
	return nil
}
