package modifications

import (
	"errors"
	"net/http"
)

// Domain errors for modification operations.
var (
	ErrEmptyText           = errors.New("text cannot be empty")
	ErrTextTooLong         = errors.New("text exceeds maximum length")
	ErrInvalidOperation    = errors.New("unsupported operation")
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrProviderRejected    = errors.New("ai provider rejected the request")
)

// MapHTTPStatus maps modification domain errors to HTTP status codes.
// Provider failures surface as 502 regardless of retryability; the error
// body distinguishes them via is_retryable.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrTextTooLong) ||
		errors.Is(err, ErrInvalidOperation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderRejected) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Code returns the stable error code for an error, shared by the HTTP error
// body and the IPC response.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, ErrEmptyText), errors.Is(err, ErrTextTooLong):
		return "validation_error"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrProviderRejected):
		return "provider_rejected"
	default:
		return "internal_error"
	}
}

// IsRetryable reports whether the caller may usefully resubmit the request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}
