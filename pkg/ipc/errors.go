package ipc

import "errors"

// Client-side transport errors.
var (
	// ErrListenerUnavailable indicates the listener endpoint could not be reached.
	ErrListenerUnavailable = errors.New("listener unavailable")
	// ErrTimeout indicates the client timeout elapsed before a response arrived.
	// The listener may still complete the work; the result is discarded.
	ErrTimeout = errors.New("request timed out")
)
