package nn

import "errors"

// Every error returned by the plugin packages wraps one of these, so callers can
// use errors.Is to decide what went wrong.
var (
	ErrConfiguration  = errors.New("invalid configuration")    // bad device index, malformed arguments
	ErrModelLoad      = errors.New("model load failed")        // missing/corrupt model file, or incompatible graph
	ErrDevice         = errors.New("device error")             // runtime rejected the device
	ErrNotInitialized = errors.New("detector not initialized") // operation invoked before Setup, or after Dispose
	ErrOutOfRange     = errors.New("index out of range")
	ErrInputSize      = errors.New("input buffer size mismatch")
)
