package shutter

import "github.com/zoobzio/capitan"

// Field keys for shutter events.
var (
	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyOperation names the controller operation.
	KeyOperation = capitan.NewStringKey("operation")

	// KeyCallback names the platform callback that was discarded.
	KeyCallback = capitan.NewStringKey("callback")

	// KeySessionID identifies a capture session.
	KeySessionID = capitan.NewStringKey("session_id")

	// KeyTargets is the number of output targets bound to a session.
	KeyTargets = capitan.NewIntKey("targets")

	// KeyDevice identifies the camera device.
	KeyDevice = capitan.NewStringKey("device")

	// KeyDestination is the output location of a recording.
	KeyDestination = capitan.NewStringKey("destination")

	// KeyDropped is the number of queued tasks abandoned on a drain timeout.
	KeyDropped = capitan.NewIntKey("dropped")

	// KeyDrainTimeout is the configured executor drain bound.
	KeyDrainTimeout = capitan.NewDurationKey("drain_timeout")
)
