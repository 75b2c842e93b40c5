package whatsapp

import (
	"encoding/json"
	"fmt"
)

// ParameterType discriminates the Parameter variants.
type ParameterType string

const (
	ParameterTypeText          ParameterType = "text"
	ParameterTypeImage         ParameterType = "image"
	ParameterTypeButtonPayload ParameterType = "button_payload"
)

// ImageLink references a publicly reachable image.
type ImageLink struct {
	Link string `json:"link"`
}

// Parameter is a typed value slot of a template component. Only the field
// matching Type is meaningful; use the constructors rather than filling it by
// hand.
type Parameter struct {
	Type    ParameterType
	Text    string
	Image   *ImageLink
	Payload string
}

// TextParameter returns a text parameter. The value is used verbatim.
func TextParameter(text string) Parameter {
	return Parameter{Type: ParameterTypeText, Text: text}
}

// ImageParameter returns an image parameter pointing at link.
func ImageParameter(link string) Parameter {
	return Parameter{Type: ParameterTypeImage, Image: &ImageLink{Link: link}}
}

// ButtonPayloadParameter returns a button payload parameter. Payloads are
// opaque tokens and are never normalized.
func ButtonPayloadParameter(payload string) Parameter {
	return Parameter{Type: ParameterTypeButtonPayload, Payload: payload}
}

type textParameterJSON struct {
	Type ParameterType `json:"type"`
	Text string        `json:"text"`
}

type imageParameterJSON struct {
	Type  ParameterType `json:"type"`
	Image ImageLink     `json:"image"`
}

type payloadParameterJSON struct {
	Type    ParameterType `json:"type"`
	Payload string        `json:"payload"`
}

// MarshalJSON writes the discriminator alongside the variant's own field.
func (p Parameter) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case ParameterTypeText:
		return json.Marshal(textParameterJSON{Type: p.Type, Text: p.Text})
	case ParameterTypeImage:
		var img ImageLink
		if p.Image != nil {
			img = *p.Image
		}
		return json.Marshal(imageParameterJSON{Type: p.Type, Image: img})
	case ParameterTypeButtonPayload:
		return json.Marshal(payloadParameterJSON{Type: p.Type, Payload: p.Payload})
	default:
		return nil, fmt.Errorf("whatsapp: unknown parameter type %q", p.Type)
	}
}

// UnmarshalJSON reads the discriminator first and then the matching variant.
func (p *Parameter) UnmarshalJSON(data []byte) error {
	var head struct {
		Type ParameterType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	switch head.Type {
	case ParameterTypeText:
		var v textParameterJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = TextParameter(v.Text)
	case ParameterTypeImage:
		var v imageParameterJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = ImageParameter(v.Image.Link)
	case ParameterTypeButtonPayload:
		var v payloadParameterJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = ButtonPayloadParameter(v.Payload)
	default:
		return fmt.Errorf("whatsapp: unknown parameter type %q", head.Type)
	}
	return nil
}
