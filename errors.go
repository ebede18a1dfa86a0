package shutter

import "errors"

// Errors surfaced to callers. None of them are retried by the Controller;
// retrying means invoking the failed operation again.
var (
	// ErrPermissionDenied is returned by Open when camera permission has not
	// been granted.
	ErrPermissionDenied = errors.New("camera permission denied")

	// ErrDeviceUnavailable is returned when no back-facing device with a
	// usable output size exists, or the device disconnected.
	ErrDeviceUnavailable = errors.New("camera device unavailable")

	// ErrAccess is a transient failure opening or talking to the device.
	ErrAccess = errors.New("camera access error")

	// ErrSessionConfiguration is returned when the platform fails to
	// configure a capture session.
	ErrSessionConfiguration = errors.New("capture session configuration failed")

	// ErrRecorderPrepare is returned when a recording could not begin:
	// resolving the output, acquiring, preparing or starting the sink.
	ErrRecorderPrepare = errors.New("recorder prepare failed")

	// ErrRecorderFinalize is returned when the recorder sink failed to stop.
	// The output file may be incomplete.
	ErrRecorderFinalize = errors.New("recorder finalize failed")

	// ErrSuperseded marks a callback for a session or open attempt that has
	// been replaced. It is handled internally and never reaches a caller.
	ErrSuperseded = errors.New("superseded")

	// ErrInvalidState is returned when an operation is not legal in the
	// current state.
	ErrInvalidState = errors.New("invalid controller state")

	// ErrClosed is returned for operations dropped by Close.
	ErrClosed = errors.New("controller closed")

	// ErrExecutorStopped is returned when work is submitted to an executor
	// that is not running.
	ErrExecutorStopped = errors.New("executor not running")

	// ErrDrainTimeout is returned by Executor.Stop when queued work did not
	// drain within the configured bound.
	ErrDrainTimeout = errors.New("executor drain timeout")
)
