package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
)

// Options overrides client defaults. Zero-valued fields leave the current
// setting untouched, so when several Options are passed the last non-zero
// value of each field wins.
type Options struct {
	BaseURL    string
	APIVersion APIVersion
	Transport  Transport
	// Debug logs request and response bodies at debug level when true. The
	// access token is never logged. nil leaves the current setting.
	Debug  *bool
	Logger zerolog.Logger
}

// Bool returns a pointer to v, for Options.Debug.
func Bool(v bool) *bool {
	return &v
}

func (o Options) apply(c *Client) {
	if base := strings.TrimSpace(o.BaseURL); base != "" {
		c.baseURL = strings.TrimRight(base, "/")
	}
	if v := APIVersion(strings.Trim(strings.TrimSpace(string(o.APIVersion)), "/")); v != "" {
		c.apiVersion = v
	}
	if o.Transport != nil {
		c.transport = o.Transport
	}
	if o.Debug != nil {
		c.debug = *o.Debug
	}
	if !reflect.ValueOf(o.Logger).IsZero() {
		c.logger = o.Logger
	}
}

// Client sends messages on behalf of one business phone number. It is
// immutable after NewClient and safe for concurrent use.
type Client struct {
	phoneNumberID string
	accessToken   string
	baseURL       string
	apiVersion    APIVersion
	transport     Transport
	debug         bool
	logger        zerolog.Logger
}

// NewClient builds a client with the default endpoint and transport, then
// applies opts in order.
func NewClient(phoneNumberID, accessToken string, opts ...Options) (*Client, error) {
	phoneNumberID = strings.TrimSpace(phoneNumberID)
	accessToken = strings.TrimSpace(accessToken)
	if phoneNumberID == "" {
		return nil, errors.New("whatsapp client: phone number id is required")
	}
	if accessToken == "" {
		return nil, errors.New("whatsapp client: access token is required")
	}

	c := &Client{
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		baseURL:       DefaultBaseURL,
		apiVersion:    DefaultAPIVersion,
		transport:     NewHTTPTransport(nil),
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt.apply(c)
	}

	u, err := url.Parse(c.baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("whatsapp client: invalid base url %q", c.baseURL)
	}
	return c, nil
}

// SendText sends a free-form text message.
func (c *Client) SendText(ctx context.Context, to, body string) (*Response, error) {
	return c.Send(ctx, NewTextMessage(to, body))
}

// SendTemplate sends a template message.
func (c *Client) SendTemplate(ctx context.Context, to string, tmpl *Template) (*Response, error) {
	return c.Send(ctx, NewTemplateMessage(to, tmpl))
}

// Send posts msg and decodes the platform's reply. A 2xx reply is returned as
// is, even when its body carries an error object; check IsSuccessful. Any
// other status yields a *RequestError.
func (c *Client) Send(ctx context.Context, msg *Message) (*Response, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}

	endpoint := c.messagesURL()
	if c.debug {
		c.logger.Debug().
			Str("url", endpoint).
			Str("recipient", msg.To).
			Str("type", string(msg.Type)).
			RawJSON("body", body).
			Msg("whatsapp request")
	}

	status, respBody, err := c.transport.Post(ctx, endpoint, body, c.headers())
	if err != nil {
		if !errors.Is(err, ErrTransport) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		return nil, err
	}

	if c.debug {
		c.logger.Debug().
			Int("status_code", status).
			Bytes("body", respBody).
			Msg("whatsapp response")
	}

	return interpret(status, respBody)
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, url.PathEscape(c.phoneNumberID))
}

func (c *Client) headers() http.Header {
	h := make(http.Header, 3)
	h.Set("Authorization", "Bearer "+c.accessToken)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

func interpret(status int, body []byte) (*Response, error) {
	var resp Response
	decodeErr := json.Unmarshal(body, &resp)

	if status >= 200 && status < 300 {
		if decodeErr != nil {
			return nil, &DecodeError{StatusCode: status, Body: body, Err: decodeErr}
		}
		return &resp, nil
	}

	reqErr := &RequestError{StatusCode: status}
	if decodeErr == nil {
		reqErr.Response = &resp
		reqErr.APIError = resp.Error
	}
	if reqErr.APIError != nil && reqErr.APIError.Message != "" {
		reqErr.Message = reqErr.APIError.Message
	} else {
		reqErr.Message = fallbackMessage(status)
	}
	return nil, reqErr
}

func fallbackMessage(status int) string {
	if text := http.StatusText(status); text != "" {
		return "request failed: " + strings.ToLower(text)
	}
	return fmt.Sprintf("request failed with status %d", status)
}
