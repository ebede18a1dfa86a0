package shutter

import (
	"sync"

	"go.uber.org/zap"
)

// Screen is the lifecycle glue between a visible UI and a Controller. It
// pairs the executor's Start and Stop with the screen becoming visible and
// hidden, and opens the camera once a preview surface exists.
type Screen struct {
	exec   *Executor
	ctrl   *Controller
	logger *zap.Logger

	mu      sync.Mutex
	surface PreviewSurface
	visible bool
}

// NewScreen creates a hidden screen driving ctrl on exec.
func NewScreen(exec *Executor, ctrl *Controller) *Screen {
	return &Screen{
		exec:   exec,
		ctrl:   ctrl,
		logger: zap.NewNop(),
	}
}

// Logger sets the logger.
func (s *Screen) Logger(logger *zap.Logger) *Screen {
	s.logger = logger
	return s
}

// Controller returns the controller driven by the screen.
func (s *Screen) Controller() *Controller {
	return s.ctrl
}

// OnResume starts the executor. If a surface is already available the camera
// is opened and preview started.
func (s *Screen) OnResume() *Future {
	s.exec.Start()

	s.mu.Lock()
	s.visible = true
	surface := s.surface
	s.mu.Unlock()

	if surface == nil {
		return resolvedFuture(nil)
	}
	return s.openPreview(surface)
}

// SurfaceAvailable records the preview surface and, while visible, opens the
// camera and starts preview on it.
func (s *Screen) SurfaceAvailable(surface PreviewSurface) *Future {
	s.mu.Lock()
	s.surface = surface
	visible := s.visible
	s.mu.Unlock()

	if !visible {
		return resolvedFuture(nil)
	}
	return s.openPreview(surface)
}

// SurfaceDestroyed forgets the preview surface.
func (s *Screen) SurfaceDestroyed() {
	s.mu.Lock()
	s.surface = nil
	s.mu.Unlock()
}

// ToggleRecording stops a running recording or starts one from preview. In
// any other state, including while a recording is starting or stopping, it
// fails with ErrInvalidState.
func (s *Screen) ToggleRecording() *Future {
	switch st := s.ctrl.State(); st {
	case StateRecordRunning:
		return s.ctrl.StopRecording()
	case StatePreviewRunning:
		s.mu.Lock()
		surface := s.surface
		s.mu.Unlock()
		return s.ctrl.StartRecording(surface)
	default:
		return resolvedFuture(s.ctrl.invalid("toggle_recording", st))
	}
}

// OnPause closes the controller and stops the executor. The close is drained
// by the stop. If the drain times out the device is closed here once the
// worker has exited. A recording in progress is not finalized.
func (s *Screen) OnPause() error {
	s.mu.Lock()
	s.visible = false
	s.mu.Unlock()

	if s.exec.Running() {
		s.ctrl.Close()
	}
	if err := s.exec.Stop(); err != nil {
		s.logger.Warn("executor stop", zap.Error(err))
		s.ctrl.closeAbandoned()
		return err
	}
	return nil
}

// OnDestroy pauses the screen and forgets its surface.
func (s *Screen) OnDestroy() error {
	s.SurfaceDestroyed()
	return s.OnPause()
}

// Recording reports whether a recording is in progress, for the record
// button's label.
func (s *Screen) Recording() bool {
	return s.ctrl.Recording()
}

// ErrorText returns the last surfaced error message, or "".
func (s *Screen) ErrorText() string {
	if err := s.ctrl.LastError(); err != nil {
		return err.Error()
	}
	return ""
}

func (s *Screen) openPreview(surface PreviewSurface) *Future {
	if s.ctrl.State() != StateClosed {
		return s.ctrl.StartPreview(surface)
	}
	opened := s.ctrl.Open()
	preview := s.ctrl.StartPreview(surface)
	return chain(opened, preview)
}

// chain returns a Future settled once both first and second settle, with the
// first error among them.
func chain(first, second *Future) *Future {
	f := newFuture()
	go func() {
		<-first.Done()
		<-second.Done()
		if err := first.Err(); err != nil {
			f.resolve(err)
			return
		}
		f.resolve(second.Err())
	}()
	return f
}
