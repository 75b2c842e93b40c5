package whatsapp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// Transport performs the HTTP POST for a client. Implementations return the
// status and raw body of any response they received; err is reserved for
// failures to complete the round trip.
type Transport interface {
	Post(ctx context.Context, url string, body []byte, headers http.Header) (status int, respBody []byte, err error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, url string, body []byte, headers http.Header) (int, []byte, error)

// Post calls f.
func (f TransportFunc) Post(ctx context.Context, url string, body []byte, headers http.Header) (int, []byte, error) {
	return f(ctx, url, body, headers)
}

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPTransport is the default Transport backed by an HTTPClient.
type HTTPTransport struct {
	client       HTTPClient
	maxBodyBytes int64
}

// NewHTTPTransport wraps client. A nil client gets an http.Client bounded by
// DefaultTimeout.
func NewHTTPTransport(client HTTPClient) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &HTTPTransport{client: client, maxBodyBytes: defaultBodyLimit}
}

// Post sends body to url. Timeouts and cancellations surface as ErrTransport.
func (t *HTTPTransport) Post(ctx context.Context, url string, body []byte, headers http.Header) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: new request: %w", ErrTransport, err)
	}
	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: http do: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodyBytes+1))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: read body: %w", ErrTransport, err)
	}
	if int64(len(data)) > t.maxBodyBytes {
		return resp.StatusCode, nil, fmt.Errorf("%w: status %d: response body exceeds %d bytes", ErrTransport, resp.StatusCode, t.maxBodyBytes)
	}
	return resp.StatusCode, data, nil
}
