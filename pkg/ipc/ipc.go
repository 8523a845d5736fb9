// Package ipc defines the wire protocol for the background text-modification
// listener and provides a client for local processes to submit requests.
//
// The channel is loopback TCP. Each connection carries a single JSON-encoded
// Envelope followed by a single JSON-encoded Response; the correlation id ties
// the two together.
package ipc

import "time"

// Error codes carried in Response.ErrorCode.
const (
	CodeInvalidEnvelope     = "invalid_envelope"
	CodeValidationError     = "validation_error"
	CodeInvalidOperation    = "invalid_operation"
	CodeProviderUnavailable = "provider_unavailable"
	CodeProviderRejected    = "provider_rejected"
	CodeQueueFull           = "queue_full"
	CodeShuttingDown        = "service_shutting_down"
	CodeInternalError       = "internal_error"
)

// Envelope wraps a modification request with correlation metadata for
// transport over the local channel.
type Envelope struct {
	CorrelationID     string         `json:"correlation_id"`
	SourceApplication string         `json:"source_application,omitempty"`
	Text              string         `json:"text"`
	Operation         string         `json:"operation"`
	UserID            string         `json:"user_id,omitempty"`
	Options           map[string]any `json:"options,omitempty"`
}

// Response carries the result of a modification request back to the
// submitting client. On failure, ErrorCode and Message describe the problem
// and IsRetryable indicates whether resubmission may succeed.
type Response struct {
	CorrelationID    string    `json:"correlation_id"`
	Success          bool      `json:"success"`
	ModifiedText     string    `json:"modified_text,omitempty"`
	Operation        string    `json:"operation,omitempty"`
	ModelUsed        string    `json:"ai_model_used,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Timestamp        time.Time `json:"timestamp"`
	ErrorCode        string    `json:"error_code,omitempty"`
	Message          string    `json:"message,omitempty"`
	IsRetryable      bool      `json:"is_retryable,omitempty"`
}
