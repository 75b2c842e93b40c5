package whatsapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

// https://developers.facebook.com/docs/whatsapp/cloud-api/reference/messages/#template-messages

// ComponentType names a template section.
type ComponentType string

const (
	ComponentTypeHeader ComponentType = "header"
	ComponentTypeBody   ComponentType = "body"
	ComponentTypeButton ComponentType = "button"
)

// SubType qualifies a button component.
type SubType string

const (
	SubTypeQuickReply SubType = "quick_reply"
	SubTypeURL        SubType = "url"
)

// Valid reports whether c is one of the known component types.
func (c ComponentType) Valid() bool {
	switch c {
	case ComponentTypeHeader, ComponentTypeBody, ComponentTypeButton:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown component types.
func (c *ComponentType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !ComponentType(s).Valid() {
		return fmt.Errorf("whatsapp: unknown component type %q", s)
	}
	*c = ComponentType(s)
	return nil
}

// Valid reports whether s is empty or one of the known button sub types.
func (s SubType) Valid() bool {
	switch s {
	case "", SubTypeQuickReply, SubTypeURL:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown sub types.
func (s *SubType) UnmarshalJSON(data []byte) error {
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if !SubType(v).Valid() {
		return fmt.Errorf("whatsapp: unknown component sub_type %q", v)
	}
	*s = SubType(v)
	return nil
}

// LanguageCode is a template locale such as en_US.
type LanguageCode string

// Locales commonly used for approved templates.
const (
	En   LanguageCode = "en"
	EnUS LanguageCode = "en_US"
	EnGB LanguageCode = "en_GB"
	Pt   LanguageCode = "pt"
	PtBR LanguageCode = "pt_BR"
	PtPT LanguageCode = "pt_PT"
	Es   LanguageCode = "es"
	EsES LanguageCode = "es_ES"
	EsMX LanguageCode = "es_MX"
	EsAR LanguageCode = "es_AR"
	Fr   LanguageCode = "fr"
	De   LanguageCode = "de"
	It   LanguageCode = "it"
	Nl   LanguageCode = "nl"
	Id   LanguageCode = "id"
	Hi   LanguageCode = "hi"
	Ar   LanguageCode = "ar"
	Tr   LanguageCode = "tr"
	Ru   LanguageCode = "ru"
	Uk   LanguageCode = "uk"
	Ja   LanguageCode = "ja"
	Ko   LanguageCode = "ko"
	Fil  LanguageCode = "fil"
	ZhCN LanguageCode = "zh_CN"
	ZhHK LanguageCode = "zh_HK"
	ZhTW LanguageCode = "zh_TW"
)

var localePattern = regexp.MustCompile(`^[a-z]{2,3}(_[A-Z]{2})?$`)

// Valid reports whether the code looks like a locale tag (xx, xxx or xx_YY).
func (c LanguageCode) Valid() bool {
	return localePattern.MatchString(string(c))
}

// Language carries the template locale.
type Language struct {
	Code string `json:"code"`
}

// Component is an ordered section of a template.
type Component struct {
	Type       ComponentType `json:"type"`
	SubType    SubType       `json:"sub_type,omitempty"`
	Index      string        `json:"index,omitempty"`
	Parameters []Parameter   `json:"parameters"`
}

// Template is a named, pre-approved message with ordered components. Build it
// with NewTemplate and the Add* methods; do not mutate it after sending.
type Template struct {
	Name       string      `json:"name"`
	Language   *Language   `json:"language,omitempty"`
	Components []Component `json:"components"`
}

// NewTemplate starts an empty template.
func NewTemplate(name string, lang LanguageCode) *Template {
	return &Template{
		Name:       name,
		Language:   &Language{Code: string(lang)},
		Components: []Component{},
	}
}

// TemplateFromBytes decodes a template from its wire form.
func TemplateFromBytes(b []byte) (*Template, error) {
	var tmpl Template
	if err := json.Unmarshal(b, &tmpl); err != nil {
		return nil, &DecodeError{Body: b, Err: err}
	}
	return &tmpl, nil
}

// AddHeader appends a header with a normalized text parameter.
func (t *Template) AddHeader(text string) *Template {
	return t.add(ComponentTypeHeader, "", TextParameter(NormalizeText(text)))
}

// AddHeaderImage appends a header with an image parameter.
func (t *Template) AddHeaderImage(link string) *Template {
	return t.add(ComponentTypeHeader, "", ImageParameter(NormalizeText(link)))
}

// AddBody appends a body with a normalized text parameter.
func (t *Template) AddBody(text string) *Template {
	return t.add(ComponentTypeBody, "", TextParameter(NormalizeText(text)))
}

// AddButton appends a button with a normalized text parameter.
func (t *Template) AddButton(text string) *Template {
	return t.add(ComponentTypeButton, "", TextParameter(NormalizeText(text)))
}

// AddButtonPayload appends a button carrying payload untouched.
func (t *Template) AddButtonPayload(payload string) *Template {
	return t.add(ComponentTypeButton, "", ButtonPayloadParameter(payload))
}

// AddQuickReply appends a quick_reply button with a normalized text parameter.
func (t *Template) AddQuickReply(text string) *Template {
	return t.add(ComponentTypeButton, SubTypeQuickReply, TextParameter(NormalizeText(text)))
}

// AddURL appends a url button whose parameter is the normalized dynamic URL suffix.
func (t *Template) AddURL(url string) *Template {
	return t.add(ComponentTypeButton, SubTypeURL, TextParameter(NormalizeText(url)))
}

// WithIndex sets the position of the most recently added button component.
// It is a no-op when the last component is not a button.
func (t *Template) WithIndex(index string) *Template {
	if n := len(t.Components); n > 0 && t.Components[n-1].Type == ComponentTypeButton {
		t.Components[n-1].Index = index
	}
	return t
}

func (t *Template) add(kind ComponentType, sub SubType, p Parameter) *Template {
	t.Components = append(t.Components, Component{
		Type:       kind,
		SubType:    sub,
		Parameters: []Parameter{p},
	})
	return t
}

// JSON serializes the finished template.
func (t *Template) JSON() ([]byte, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("%w: template: %v", ErrEncode, err)
	}
	return b, nil
}

// Validate checks the invariants the platform relies on.
func (t *Template) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: template is nil", ErrInvalidMessage)
	}
	if t.Name == "" {
		return fmt.Errorf("%w: template name is required", ErrInvalidMessage)
	}
	if t.Language != nil && !LanguageCode(t.Language.Code).Valid() {
		return fmt.Errorf("%w: invalid language code %q", ErrInvalidMessage, t.Language.Code)
	}
	var errs []error
	for i, c := range t.Components {
		if !c.Type.Valid() {
			errs = append(errs, fmt.Errorf("component[%d] has unknown type %q", i, c.Type))
		}
		if !c.SubType.Valid() {
			errs = append(errs, fmt.Errorf("component[%d] has unknown sub_type %q", i, c.SubType))
		}
		if len(c.Parameters) == 0 {
			errs = append(errs, fmt.Errorf("component[%d] has no parameters", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, errors.Join(errs...))
	}
	return nil
}
