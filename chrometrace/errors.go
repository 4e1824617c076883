package chrometrace

import "errors"

// Errors returned by the layer's lifecycle methods. Callbacks never return
// errors; failures past the callback boundary surface through Err, the
// logger and the observer.
var (
	// ErrLayerClosed is returned by Flush and Shutdown once the layer has
	// stopped accepting flush requests.
	ErrLayerClosed = errors.New("chrome trace layer closed")

	// ErrShutdownInProgress is returned by a second Shutdown call made
	// while the first is still draining.
	ErrShutdownInProgress = errors.New("chrome trace shutdown in progress")

	// ErrShutdownTimeout is returned when the context passed to Shutdown
	// expires before the final drain completes. It wraps the context error.
	ErrShutdownTimeout = errors.New("chrome trace shutdown timed out")

	// ErrInvalidConfig is returned for configuration the layer cannot run
	// with.
	ErrInvalidConfig = errors.New("invalid chrome trace config")

	// ErrSinkWrite wraps the first error returned by the sink.
	ErrSinkWrite = errors.New("chrome trace sink write failed")
)
