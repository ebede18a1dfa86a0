package shutter

// State represents the current state of a Controller.
type State int32

const (
	// StateClosed indicates no device is owned. This is the initial and the
	// final state.
	StateClosed State = iota

	// StateOpening indicates a device open request is in flight.
	StateOpening

	// StateIdle indicates the device is open but no session exists yet.
	StateIdle

	// StateConfiguringPreview indicates a preview-only session has been
	// requested and its configured callback has not arrived.
	StateConfiguringPreview

	// StatePreviewRunning indicates a preview-only session is live with a
	// repeating request.
	StatePreviewRunning

	// StateConfiguringRecord indicates a recording was accepted and its
	// output location is being resolved.
	StateConfiguringRecord

	// StatePreparing indicates a recorder sink is held and the
	// preview+record session is being configured.
	StatePreparing

	// StateRecordRunning indicates the preview+record session is live and
	// the recorder sink is encoding.
	StateRecordRunning

	// StateStopping indicates the recorder sink is being finalized.
	StateStopping

	// StateError indicates a failure left the device unusable. Only Close is
	// accepted.
	StateError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateIdle:
		return "idle"
	case StateConfiguringPreview:
		return "configuring_preview"
	case StatePreviewRunning:
		return "preview_running"
	case StateConfiguringRecord:
		return "configuring_record"
	case StatePreparing:
		return "preparing"
	case StateRecordRunning:
		return "record_running"
	case StateStopping:
		return "stopping"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// pending reports whether an asynchronous transition is in flight. Calls
// arriving in a pending state wait for it to settle.
func (s State) pending() bool {
	switch s {
	case StateOpening, StateConfiguringPreview, StateConfiguringRecord, StatePreparing, StateStopping:
		return true
	default:
		return false
	}
}

// Recording reports whether the state holds a recorder sink.
func (s State) Recording() bool {
	return s == StatePreparing || s == StateRecordRunning || s == StateStopping
}
