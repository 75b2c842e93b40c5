package whatsapp

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport marks failures of the HTTP round trip itself.
	ErrTransport = errors.New("whatsapp: transport error")
	// ErrEncode marks envelope serialization failures.
	ErrEncode = errors.New("whatsapp: encode error")
	// ErrDecode marks response bodies that do not match the expected schema.
	ErrDecode = errors.New("whatsapp: decode error")
	// ErrRequest marks non-2xx responses.
	ErrRequest = errors.New("whatsapp: request error")
	// ErrInvalidMessage marks envelopes or templates that break their invariants.
	ErrInvalidMessage = errors.New("whatsapp: invalid message")
)

// DecodeError reports a body that could not be parsed. StatusCode is zero when
// the bytes did not come from an HTTP response.
type DecodeError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *DecodeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v: status %d: %v", ErrDecode, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%v: %v", ErrDecode, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// RequestError reports a non-2xx response. APIError and Response are nil when
// the body did not carry them.
type RequestError struct {
	StatusCode int
	Message    string
	APIError   *APIError
	Response   *Response
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", ErrRequest, e.StatusCode, e.Message)
}

func (e *RequestError) Unwrap() []error {
	errs := []error{ErrRequest}
	if e.APIError != nil {
		errs = append(errs, e.APIError)
	}
	return errs
}
