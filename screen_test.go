package shutter_test

import (
	"errors"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zoobzio/shutter"
	shuttertest "github.com/zoobzio/shutter/testing"
)

func newScreen(t *testing.T) (*shutter.Screen, *shuttertest.Rig) {
	t.Helper()
	r := autoRig(t)
	if err := r.Exec.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	return shutter.NewScreen(r.Exec, r.Ctrl), r
}

func TestScreen_ResumeThenSurface(t *testing.T) {
	s, r := newScreen(t)

	if err := shuttertest.Await(t, s.OnResume(), wait); err != nil {
		t.Fatalf("OnResume() error = %v", err)
	}
	shuttertest.RequireState(t, r.Ctrl, shutter.StateClosed)
	if !r.Exec.Running() {
		t.Fatal("expected executor to run while visible")
	}

	if err := shuttertest.Await(t, s.SurfaceAvailable(r.Surface), wait); err != nil {
		t.Fatalf("SurfaceAvailable() error = %v", err)
	}
	shuttertest.RequireState(t, r.Ctrl, shutter.StatePreviewRunning)
}

func TestScreen_SurfaceBeforeResume(t *testing.T) {
	s, r := newScreen(t)

	if err := shuttertest.Await(t, s.SurfaceAvailable(r.Surface), wait); err != nil {
		t.Fatalf("SurfaceAvailable() error = %v", err)
	}
	shuttertest.RequireState(t, r.Ctrl, shutter.StateClosed)

	if err := shuttertest.Await(t, s.OnResume(), wait); err != nil {
		t.Fatalf("OnResume() error = %v", err)
	}
	shuttertest.RequireState(t, r.Ctrl, shutter.StatePreviewRunning)
}

func TestScreen_ToggleRecording(t *testing.T) {
	s, r := newScreen(t)
	s.SurfaceAvailable(r.Surface)
	if err := shuttertest.Await(t, s.OnResume(), wait); err != nil {
		t.Fatalf("OnResume() error = %v", err)
	}

	if err := shuttertest.Await(t, s.ToggleRecording(), wait); err != nil {
		t.Fatalf("ToggleRecording() error = %v", err)
	}
	if !s.Recording() {
		t.Fatal("expected recording after first toggle")
	}

	if err := shuttertest.Await(t, s.ToggleRecording(), wait); err != nil {
		t.Fatalf("ToggleRecording() error = %v", err)
	}
	if s.Recording() {
		t.Fatal("expected recording stopped after second toggle")
	}
	if s.ErrorText() != "" {
		t.Errorf("expected no error text, got %q", s.ErrorText())
	}
}

func TestScreen_PauseClosesAndResumeReopens(t *testing.T) {
	s, r := newScreen(t)
	s.SurfaceAvailable(r.Surface)
	if err := shuttertest.Await(t, s.OnResume(), wait); err != nil {
		t.Fatalf("OnResume() error = %v", err)
	}
	first := r.Device(t)

	if err := s.OnPause(); err != nil {
		t.Fatalf("OnPause() error = %v", err)
	}
	shuttertest.RequireState(t, r.Ctrl, shutter.StateClosed)
	if r.Exec.Running() {
		t.Error("expected executor stopped while hidden")
	}
	if !first.Closed() {
		t.Error("expected device closed on pause")
	}

	if err := shuttertest.Await(t, s.OnResume(), wait); err != nil {
		t.Fatalf("OnResume() error = %v", err)
	}
	shuttertest.RequireState(t, r.Ctrl, shutter.StatePreviewRunning)
	if r.Device(t) == first {
		t.Error("expected a new device after resume")
	}

	if err := s.OnDestroy(); err != nil {
		t.Fatalf("OnDestroy() error = %v", err)
	}
	shuttertest.RequireState(t, r.Ctrl, shutter.StateClosed)
}

func TestScreen_ErrorText(t *testing.T) {
	s, r := newScreen(t)
	r.Ctrl.Permissions(shutter.PermissionsFunc(func() bool { return false }))
	s.SurfaceAvailable(r.Surface)

	if err := shuttertest.Await(t, s.OnResume(), wait); err == nil {
		t.Fatal("expected open to fail without permission")
	}
	if s.ErrorText() != shutter.ErrPermissionDenied.Error() {
		t.Errorf("unexpected error text %q", s.ErrorText())
	}
}

func TestScreen_ToggleRejectedWhileTransitioning(t *testing.T) {
	r := manualRig(t)
	s := shutter.NewScreen(r.Exec, r.Ctrl)
	dev := openDevice(t, r)
	startPreview(t, r, dev)

	record := r.Ctrl.StartRecording(r.Surface)
	shuttertest.Flush(t, r.Exec)
	shuttertest.RequireState(t, r.Ctrl, shutter.StateConfiguringRecord)

	if err := shuttertest.Await(t, s.ToggleRecording(), wait); !errors.Is(err, shutter.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState while starting, got %v", err)
	}
	dev.LastSession().Configure()
	if err := shuttertest.Await(t, record, wait); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	shuttertest.RequireState(t, r.Ctrl, shutter.StateRecordRunning)

	stop := r.Ctrl.StopRecording()
	shuttertest.Flush(t, r.Exec)
	shuttertest.RequireState(t, r.Ctrl, shutter.StateConfiguringPreview)

	if err := shuttertest.Await(t, s.ToggleRecording(), wait); !errors.Is(err, shutter.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState while stopping, got %v", err)
	}
	dev.LastSession().Configure()
	if err := shuttertest.Await(t, stop, wait); err != nil {
		t.Fatalf("StopRecording() error = %v", err)
	}
	shuttertest.Flush(t, r.Exec)

	shuttertest.RequireState(t, r.Ctrl, shutter.StatePreviewRunning)
	if n := len(r.Recorders.Recorders()); n != 1 {
		t.Errorf("expected a single recording, got %d sinks", n)
	}
	if err := r.Ctrl.LastError(); err != nil {
		t.Errorf("expected rejected toggles to stay out of LastError, got %v", err)
	}
}

func TestScreen_PauseClosesDeviceAfterDrainTimeout(t *testing.T) {
	s, r := newScreen(t)
	clock := clockz.NewFakeClock()
	core, logs := observer.New(zapcore.WarnLevel)
	r.Exec.Clock(clock).
		DrainTimeout(500 * time.Millisecond).
		Logger(zap.New(core))

	s.SurfaceAvailable(r.Surface)
	if err := shuttertest.Await(t, s.OnResume(), wait); err != nil {
		t.Fatalf("OnResume() error = %v", err)
	}
	dev := r.Device(t)
	session := dev.LastSession()

	started := make(chan struct{})
	release := make(chan struct{})
	if err := r.Exec.Submit(func() {
		close(started)
		<-release
	}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-started

	paused := make(chan error, 1)
	go func() { paused <- s.OnPause() }()

	timedOut := shuttertest.WaitFor(t, wait, func() bool {
		clock.Advance(500 * time.Millisecond)
		clock.BlockUntilReady()
		return logs.FilterMessage("executor drain timeout, abandoning queued work").Len() > 0
	})
	if !timedOut {
		t.Fatal("expected drain timeout")
	}
	close(release)

	select {
	case err := <-paused:
		if !errors.Is(err, shutter.ErrDrainTimeout) {
			t.Errorf("expected ErrDrainTimeout, got %v", err)
		}
	case <-time.After(wait):
		t.Fatal("OnPause did not return")
	}

	shuttertest.RequireState(t, r.Ctrl, shutter.StateClosed)
	if !dev.Closed() {
		t.Error("expected device closed after the drain timeout")
	}
	if !session.Closed() {
		t.Error("expected preview session closed after the drain timeout")
	}
	if r.Exec.Running() {
		t.Error("expected executor stopped")
	}
}
