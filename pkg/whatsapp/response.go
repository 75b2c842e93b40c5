package whatsapp

// ErrorData carries the platform's detail text for an APIError.
type ErrorData struct {
	Details          string `json:"details"`
	MessagingProduct string `json:"messaging_product"`
}

// APIError is the structured error object returned by the platform.
type APIError struct {
	Message      string    `json:"message"`
	Type         string    `json:"type"`
	Code         int       `json:"code"`
	ErrorData    ErrorData `json:"error_data"`
	ErrorSubcode int       `json:"error_subcode"`
	FBTraceID    string    `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Contact maps the recipient input to the resolved WhatsApp id.
type Contact struct {
	Input string `json:"input"`
	WaID  string `json:"wa_id"`
}

// SentMessage identifies an accepted message.
type SentMessage struct {
	ID string `json:"id"`
}

// Response is the decoded body of a messages call.
type Response struct {
	Error            *APIError     `json:"error,omitempty"`
	MessagingProduct string        `json:"messaging_product"`
	Contacts         []Contact     `json:"contacts"`
	Messages         []SentMessage `json:"messages"`
}

// IsSuccessful reports whether the body carries no error object. A 2xx
// response can still report false.
func (r *Response) IsSuccessful() bool {
	return r.Error == nil
}

// MessageID returns the id of the first accepted message, if any.
func (r *Response) MessageID() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].ID
}
