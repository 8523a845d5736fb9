package listener

import "errors"

var (
	// ErrBind indicates the listener endpoint is already owned or cannot be
	// bound. Fatal to listener startup.
	ErrBind = errors.New("listener bind failed")
	// ErrNotStopped indicates a start attempt on a listener that is already
	// running or draining.
	ErrNotStopped = errors.New("listener is not stopped")
)
