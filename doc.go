/*
Package shutter drives a single camera through preview and video recording
from a UI that must never block on the device.

Every device interaction runs on a Background Executor: one worker goroutine
that is started when the screen becomes visible and drained when it is
hidden. A Controller owns the device, the capture session and the recorder
sink, and moves them through an explicit state machine. Its entry points
return immediately with a Future that settles once the operation has.

# Basic Usage

	exec := shutter.NewExecutor("camera")
	ctrl := shutter.NewController(manager, exec, recorders, resolver).
	    Logger(logger).
	    ErrorHistorySize(16)

	exec.Start()
	if err := ctrl.Open().Wait(ctx); err != nil {
	    return err
	}
	ctrl.StartPreview(surface)
	ctrl.StartRecording(nil)
	ctrl.StopRecording()
	ctrl.Close()
	exec.Stop()

Screen wraps the same sequence behind the callbacks a view receives:
OnResume, SurfaceAvailable, ToggleRecording, OnPause and OnDestroy.

# States

	Closed → Opening → Idle → ConfiguringPreview → PreviewRunning
	PreviewRunning → ConfiguringRecord → Preparing → RecordRunning
	RecordRunning → Stopping → ConfiguringPreview
	any → Error → Closed

Calls run in the order they were made. Calls made while a transition is
pending wait for it to settle, and a Close queued behind them overtakes them
and fails them with ErrClosed. A StopRecording issued before Close therefore
finalizes the file before the device is released.

# Callbacks

Platform callbacks arrive on arbitrary goroutines and are posted to the
executor. A callback for a session or open attempt that has since been
replaced is discarded and its resources closed.

# Observability

State changes, failures and recordings are emitted as capitan signals
(see signals.go) and reported to an optional Observer. Failures are also
kept in a bounded history readable through ErrorHistory.

# Platforms

pkg/v4l2 implements the platform interfaces on Linux cameras through
v4l2-ctl and ffmpeg. The testing package provides in-memory fakes.
*/
package shutter
