package whatsapp_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/whatsapp-messaging/pkg/whatsapp"
)

func otpTemplate() *whatsapp.Template {
	return whatsapp.NewTemplate("otp_template", whatsapp.EnUS).
		AddHeader("Daniel").
		AddBody("Daniel").
		AddBody("3243").
		AddBody("30")
}

func TestOTPTemplateSerialization(t *testing.T) {
	raw, err := otpTemplate().JSON()
	require.NoError(t, err)

	var decoded struct {
		Name     string `json:"name"`
		Language struct {
			Code string `json:"code"`
		} `json:"language"`
		Components []struct {
			Type       string              `json:"type"`
			Parameters []map[string]string `json:"parameters"`
		} `json:"components"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "otp_template", decoded.Name)
	assert.Equal(t, "en_US", decoded.Language.Code)
	require.Len(t, decoded.Components, 4)
	assert.Equal(t, "header", decoded.Components[0].Type)
	wantBodies := []string{"Daniel", "3243", "30"}
	for i, want := range wantBodies {
		c := decoded.Components[i+1]
		assert.Equal(t, "body", c.Type)
		require.Len(t, c.Parameters, 1)
		assert.Equal(t, map[string]string{"type": "text", "text": want}, c.Parameters[0])
	}
}

func TestBuilderNormalizesDisplayText(t *testing.T) {
	tmpl := whatsapp.NewTemplate("promo", whatsapp.PtBR).
		AddHeader("  Big\n\nSale ").
		AddBody("Up to\r\n 50%   off").
		AddButton(" Shop \n now ").
		AddQuickReply("  Stop\npromotions ").
		AddURL(" /deals?id=42\n").
		AddHeaderImage(" https://cdn.example.com/banner.png\n")

	require.Len(t, tmpl.Components, 6)
	assert.Equal(t, "Big Sale", tmpl.Components[0].Parameters[0].Text)
	assert.Equal(t, "Up to 50% off", tmpl.Components[1].Parameters[0].Text)
	assert.Equal(t, "Shop now", tmpl.Components[2].Parameters[0].Text)
	assert.Empty(t, tmpl.Components[2].SubType)

	assert.Equal(t, whatsapp.ComponentTypeButton, tmpl.Components[3].Type)
	assert.Equal(t, whatsapp.SubTypeQuickReply, tmpl.Components[3].SubType)
	assert.Equal(t, "Stop promotions", tmpl.Components[3].Parameters[0].Text)

	assert.Equal(t, whatsapp.SubTypeURL, tmpl.Components[4].SubType)
	assert.Equal(t, "/deals?id=42", tmpl.Components[4].Parameters[0].Text)

	img := tmpl.Components[5]
	assert.Equal(t, whatsapp.ComponentTypeHeader, img.Type)
	assert.Equal(t, whatsapp.ParameterTypeImage, img.Parameters[0].Type)
	require.NotNil(t, img.Parameters[0].Image)
	assert.Equal(t, "https://cdn.example.com/banner.png", img.Parameters[0].Image.Link)
}

func TestButtonPayloadIsNotNormalized(t *testing.T) {
	tmpl := whatsapp.NewTemplate("confirm", whatsapp.EnUS).AddButtonPayload("  raw\ntoken  ")

	p := tmpl.Components[0].Parameters[0]
	assert.Equal(t, whatsapp.ParameterTypeButtonPayload, p.Type)
	assert.Equal(t, "  raw\ntoken  ", p.Payload)

	raw, err := tmpl.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `{"type":"button_payload","payload":"  raw\ntoken  "}`)
}

func TestEveryComponentHasExactlyOneParameter(t *testing.T) {
	tmpl := whatsapp.NewTemplate("all", whatsapp.EnUS).
		AddHeader("h").AddHeaderImage("https://x.test/i.png").AddBody("b").
		AddButton("btn").AddButtonPayload("p").AddQuickReply("q").AddURL("u")
	require.Len(t, tmpl.Components, 7)
	for i, c := range tmpl.Components {
		assert.Len(t, c.Parameters, 1, "component %d", i)
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	templates := []*whatsapp.Template{
		whatsapp.NewTemplate("empty", whatsapp.En),
		otpTemplate(),
		whatsapp.NewTemplate("mixed", whatsapp.EsMX).
			AddHeaderImage("https://cdn.example.com/a.png").
			AddBody("hola  mundo").
			AddQuickReply("sí").WithIndex("0").
			AddURL("track/123").WithIndex("1").
			AddButtonPayload(" opaque\tpayload "),
	}

	for _, tmpl := range templates {
		raw, err := tmpl.JSON()
		require.NoError(t, err)

		decoded, err := whatsapp.TemplateFromBytes(raw)
		require.NoError(t, err)
		assert.Equal(t, tmpl, decoded, "template %s", tmpl.Name)
	}
}

func TestTemplateFromBytesMalformed(t *testing.T) {
	inputs := [][]byte{
		[]byte("not json"),
		[]byte(`{"name":"x","components":[{"type":"body","parameters":[{"type":"video","video":{}}]}]}`),
		[]byte(`{"name":1}`),
		[]byte(`{"name":"x","components":[{"type":"footer","parameters":[{"type":"text","text":"hi"}]}]}`),
		[]byte(`{"name":"x","components":[{"type":"button","sub_type":"bogus","parameters":[{"type":"text","text":"hi"}]}]}`),
	}
	for _, in := range inputs {
		tmpl, err := whatsapp.TemplateFromBytes(in)
		assert.Nil(t, tmpl)
		require.Error(t, err)
		assert.ErrorIs(t, err, whatsapp.ErrDecode)

		var decodeErr *whatsapp.DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.Equal(t, in, decodeErr.Body)
	}
}

func TestWithIndexOnlyTouchesButtons(t *testing.T) {
	tmpl := whatsapp.NewTemplate("idx", whatsapp.EnUS).AddBody("b").WithIndex("3")
	assert.Empty(t, tmpl.Components[0].Index)

	tmpl.AddQuickReply("yes").WithIndex("0")
	assert.Equal(t, "0", tmpl.Components[1].Index)

	raw, err := tmpl.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sub_type":"quick_reply","index":"0"`)
	assert.NotContains(t, string(raw), `"index":""`)
}

func TestTemplateValidate(t *testing.T) {
	assert.NoError(t, otpTemplate().Validate())

	params := []whatsapp.Parameter{whatsapp.TextParameter("hi")}
	cases := map[string]*whatsapp.Template{
		"nil":              nil,
		"empty name":       whatsapp.NewTemplate("", whatsapp.EnUS),
		"bad locale":       whatsapp.NewTemplate("x", whatsapp.LanguageCode("english")),
		"lower region":     whatsapp.NewTemplate("x", whatsapp.LanguageCode("en_us")),
		"empty params":     {Name: "x", Components: []whatsapp.Component{{Type: whatsapp.ComponentTypeBody}}},
		"unknown type":     {Name: "x", Components: []whatsapp.Component{{Type: "footer", Parameters: params}}},
		"unknown sub type": {Name: "x", Components: []whatsapp.Component{{Type: whatsapp.ComponentTypeButton, SubType: "bogus", Parameters: params}}},
	}
	for name, tmpl := range cases {
		assert.ErrorIs(t, tmpl.Validate(), whatsapp.ErrInvalidMessage, name)
	}
}

func TestComponentKindsAreClosed(t *testing.T) {
	for _, c := range []whatsapp.ComponentType{whatsapp.ComponentTypeHeader, whatsapp.ComponentTypeBody, whatsapp.ComponentTypeButton} {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, whatsapp.ComponentType("footer").Valid())
	assert.False(t, whatsapp.ComponentType("").Valid())

	for _, s := range []whatsapp.SubType{"", whatsapp.SubTypeQuickReply, whatsapp.SubTypeURL} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, whatsapp.SubType("bogus").Valid())
}

func TestLanguageCodeValid(t *testing.T) {
	for _, code := range []whatsapp.LanguageCode{whatsapp.EnUS, whatsapp.Fil, whatsapp.ZhHK, whatsapp.Id, whatsapp.PtBR} {
		assert.True(t, code.Valid(), code)
	}
	for _, code := range []whatsapp.LanguageCode{"", "EN", "en-US", "en_USA", "e"} {
		assert.False(t, code.Valid(), code)
	}
}

func TestParameterJSONDiscriminator(t *testing.T) {
	cases := []struct {
		param whatsapp.Parameter
		want  string
	}{
		{whatsapp.TextParameter("hi"), `{"type":"text","text":"hi"}`},
		{whatsapp.ImageParameter("https://x.test/a.png"), `{"type":"image","image":{"link":"https://x.test/a.png"}}`},
		{whatsapp.ButtonPayloadParameter("PAY"), `{"type":"button_payload","payload":"PAY"}`},
	}
	for _, tc := range cases {
		raw, err := json.Marshal(tc.param)
		require.NoError(t, err)
		assert.JSONEq(t, tc.want, string(raw))

		var back whatsapp.Parameter
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, tc.param, back)
	}

	_, err := json.Marshal(whatsapp.Parameter{Type: "video"})
	assert.Error(t, err)
}
