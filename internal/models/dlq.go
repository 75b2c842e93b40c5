package models

import "time"

// Failure types for DLQ records.
const (
	FailureTypePermanent  = "permanent"
	FailureTypeTransient  = "transient"
	FailureTypeValidation = "validation"
	FailureTypeUnknown    = "unknown"
)

// DLQRecord is written for every request the worker could not deliver. The
// worker does not retry; replaying the DLQ is left to operators.
type DLQRecord struct {
	MessageID       string            `json:"message_id,omitempty"`
	Channel         string            `json:"channel"`
	OriginalMessage string            `json:"original_message"`
	FailureType     string            `json:"failure_type"`
	LastError       string            `json:"last_error,omitempty"`
	FailedAt        time.Time         `json:"failed_at"`
	TraceID         string            `json:"trace_id,omitempty"`
	Meta            map[string]string `json:"meta,omitempty"`
}
