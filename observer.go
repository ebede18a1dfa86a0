package shutter

// Observer receives controller notifications for UI or metrics integration.
// All methods are invoked on the executor goroutine and must not block.
type Observer interface {
	// OnStateChange is called when the controller transitions between states.
	OnStateChange(from, to State)

	// OnError is called when an operation fails with a user-visible error.
	// Operation is one of "open", "start_preview", "start_recording",
	// "stop_recording", "close" or "device".
	OnError(operation string, err error)

	// OnRecordingStarted is called once the recorder sink is encoding.
	OnRecordingStarted(dest Destination)

	// OnRecordingStopped is called after the recorder sink was stopped and
	// released by StopRecording.
	OnRecordingStopped(dest Destination)
}

// NoOpObserver is a no-op implementation of Observer.
// Use this as an embedded type to implement only the methods you need.
type NoOpObserver struct{}

func (NoOpObserver) OnStateChange(_, _ State)         {}
func (NoOpObserver) OnError(_ string, _ error)        {}
func (NoOpObserver) OnRecordingStarted(_ Destination) {}
func (NoOpObserver) OnRecordingStopped(_ Destination) {}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (o Observers) OnStateChange(from, to State) {
	for _, obs := range o {
		obs.OnStateChange(from, to)
	}
}

func (o Observers) OnError(operation string, err error) {
	for _, obs := range o {
		obs.OnError(operation, err)
	}
}

func (o Observers) OnRecordingStarted(dest Destination) {
	for _, obs := range o {
		obs.OnRecordingStarted(dest)
	}
}

func (o Observers) OnRecordingStopped(dest Destination) {
	for _, obs := range o {
		obs.OnRecordingStopped(dest)
	}
}
