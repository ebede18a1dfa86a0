package shutter

import "github.com/zoobzio/capitan"

// Executor lifecycle signals.
var (
	// ExecutorStarted is emitted when an Executor starts its worker.
	ExecutorStarted = capitan.NewSignal(
		"shutter.executor.started",
		"Executor worker started",
	)

	// ExecutorStopped is emitted when an Executor worker has terminated.
	ExecutorStopped = capitan.NewSignal(
		"shutter.executor.stopped",
		"Executor worker stopped",
	)

	// ExecutorDrainTimeout is emitted when queued work did not drain in time
	// and was abandoned.
	ExecutorDrainTimeout = capitan.NewSignal(
		"shutter.executor.drain.timeout",
		"Executor drain exceeded its bound",
	)
)

// Controller signals.
var (
	// ControllerStateChanged is emitted when a Controller transitions between states.
	ControllerStateChanged = capitan.NewSignal(
		"shutter.controller.state.changed",
		"Controller state transition",
	)

	// ControllerOperationFailed is emitted when an operation fails with a
	// user-visible error.
	ControllerOperationFailed = capitan.NewSignal(
		"shutter.controller.operation.failed",
		"Controller operation failed",
	)

	// ControllerCallbackDiscarded is emitted when a callback for a superseded
	// session or open attempt is dropped.
	ControllerCallbackDiscarded = capitan.NewSignal(
		"shutter.controller.callback.discarded",
		"Stale callback discarded",
	)

	// SessionConfigured is emitted when a capture session is accepted.
	SessionConfigured = capitan.NewSignal(
		"shutter.session.configured",
		"Capture session configured",
	)
)

// Recording signals.
var (
	// RecordingStarted is emitted after the recorder sink starts encoding.
	RecordingStarted = capitan.NewSignal(
		"shutter.recording.started",
		"Recording started",
	)

	// RecordingStopped is emitted after the recorder sink has been stopped
	// and released.
	RecordingStopped = capitan.NewSignal(
		"shutter.recording.stopped",
		"Recording stopped",
	)
)
