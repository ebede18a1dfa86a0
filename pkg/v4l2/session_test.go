package v4l2

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/zoobzio/shutter"
)

type sessionEvents struct {
	configured chan shutter.Session
	failed     chan error
}

func newSessionEvents() (*sessionEvents, shutter.SessionCallbacks) {
	ev := &sessionEvents{
		configured: make(chan shutter.Session, 1),
		failed:     make(chan error, 1),
	}
	return ev, shutter.SessionCallbacks{
		OnConfigured:      func(s shutter.Session) { ev.configured <- s },
		OnConfigureFailed: func(_ shutter.Session, err error) { ev.failed <- err },
	}
}

func (ev *sessionEvents) session(t *testing.T) shutter.Session {
	t.Helper()
	select {
	case s := <-ev.configured:
		return s
	case err := <-ev.failed:
		t.Fatalf("configure failed: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for OnConfigured")
	}
	return nil
}

func sessionRig(t *testing.T) (*Device, *fakeStarter, *deviceEvents) {
	t.Helper()
	starter := newFakeStarter()
	m := NewManager()
	m.start = starter.start
	ev, cb := newDeviceEvents()
	d := newDevice(m, "/dev/video0", cb)
	t.Cleanup(func() { _ = d.Close() })
	return d, starter, ev
}

func TestSession_FramesOnlyAfterRepeatingRequest(t *testing.T) {
	d, starter, _ := sessionRig(t)
	preview := NewFrameBuffer("preview")
	preview.SetDefaultBufferSize(shutter.Size{Width: 640, Height: 480})
	targets := []shutter.OutputTarget{{Role: shutter.RolePreview, Surface: preview}}

	sev, cb := newSessionEvents()
	if err := d.CreateSession(context.Background(), targets, cb); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	proc := starter.next(t)
	s := sev.session(t)

	if !slices.Contains(proc.args, "640x480") || !slices.Contains(proc.args, "/dev/video0") {
		t.Errorf("unexpected capture args %v", proc.args)
	}

	if _, err := proc.out.Write(jpegFrame(1)); err != nil {
		t.Fatal(err)
	}
	// The reader only accepts this byte once the first frame was handled.
	if _, err := proc.out.Write([]byte{0x00}); err != nil {
		t.Fatal(err)
	}
	if preview.Frames() != 0 {
		t.Fatalf("expected no frames before the repeating request, got %d", preview.Frames())
	}

	if err := s.SetRepeatingRequest(shutter.CaptureRequest{Template: shutter.TemplatePreview, Targets: targets}); err != nil {
		t.Fatalf("SetRepeatingRequest() error = %v", err)
	}
	if _, err := proc.out.Write(jpegFrame(2)); err != nil {
		t.Fatal(err)
	}
	waitUntil(t, func() bool { return preview.Frames() == 1 })
	if latest, _ := preview.Latest(); !bytes.Equal(latest, jpegFrame(2)) {
		t.Errorf("unexpected frame %x", latest)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.SetRepeatingRequest(shutter.CaptureRequest{Targets: targets}); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSession_StartFailure(t *testing.T) {
	d, starter, _ := sessionRig(t)
	starter.fail = errors.New("no ffmpeg")

	sev, cb := newSessionEvents()
	targets := []shutter.OutputTarget{{Role: shutter.RolePreview, Surface: NewFrameBuffer("p")}}
	if err := d.CreateSession(context.Background(), targets, cb); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	select {
	case err := <-sev.failed:
		if !strings.Contains(err.Error(), "no ffmpeg") {
			t.Errorf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for OnConfigureFailed")
	}
}

func TestSession_UnexpectedExitReportsDeviceError(t *testing.T) {
	d, starter, dev := sessionRig(t)

	sev, cb := newSessionEvents()
	targets := []shutter.OutputTarget{{Role: shutter.RolePreview, Surface: NewFrameBuffer("p")}}
	if err := d.CreateSession(context.Background(), targets, cb); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	proc := starter.next(t)
	sev.session(t)

	proc.exit(errors.New("exit status 251"))

	select {
	case err := <-dev.errs:
		if !strings.Contains(err.Error(), "exit status 251") {
			t.Errorf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for OnError")
	}
}

func TestSession_CloseIsQuiet(t *testing.T) {
	d, starter, dev := sessionRig(t)

	sev, cb := newSessionEvents()
	targets := []shutter.OutputTarget{{Role: shutter.RolePreview, Surface: NewFrameBuffer("p")}}
	if err := d.CreateSession(context.Background(), targets, cb); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	starter.next(t)
	s := sev.session(t)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case err := <-dev.errs:
		t.Fatalf("expected no device error after Close, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDevice_CloseStopsSessions(t *testing.T) {
	d, starter, _ := sessionRig(t)

	sev, cb := newSessionEvents()
	targets := []shutter.OutputTarget{{Role: shutter.RolePreview, Surface: NewFrameBuffer("p")}}
	if err := d.CreateSession(context.Background(), targets, cb); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	proc := starter.next(t)
	sev.session(t)

	if err := d.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	select {
	case <-proc.exited:
	case <-time.After(time.Second):
		t.Fatal("capture still running after device close")
	}
}

func TestSession_CloseFromOnConfigured(t *testing.T) {
	d, starter, dev := sessionRig(t)

	closed := make(chan error, 1)
	cb := shutter.SessionCallbacks{
		OnConfigured:      func(s shutter.Session) { closed <- s.Close() },
		OnConfigureFailed: func(_ shutter.Session, err error) { t.Errorf("configure failed: %v", err) },
	}
	targets := []shutter.OutputTarget{{Role: shutter.RolePreview, Surface: NewFrameBuffer("p")}}
	if err := d.CreateSession(context.Background(), targets, cb); err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	proc := starter.next(t)

	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close inside OnConfigured did not return")
	}
	select {
	case <-proc.exited:
	case <-time.After(time.Second):
		t.Fatal("capture still running after close")
	}
	select {
	case err := <-dev.errs:
		t.Fatalf("expected no device error after Close, got %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}
