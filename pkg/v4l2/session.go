package v4l2

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/zoobzio/shutter"
)

// ErrSessionClosed is returned when a closed session is used.
var ErrSessionClosed = errors.New("v4l2: session closed")

// Session is one ffmpeg MJPEG capture feeding a set of targets.
type Session struct {
	dev     *Device
	targets []shutter.OutputTarget
	size    shutter.Size
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	mu          sync.Mutex
	closed      bool
	configuring bool
	writers     []FrameWriter
}

var _ shutter.Session = (*Session)(nil)

func newSession(parent context.Context, d *Device, targets []shutter.OutputTarget) *Session {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Session{
		dev:     d,
		targets: targets,
		size:    captureSize(d.mgr, d.id, targets),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// captureSize uses the preview target's buffer size when it has one.
func captureSize(m *Manager, id string, targets []shutter.OutputTarget) shutter.Size {
	for _, t := range targets {
		if t.Role != shutter.RolePreview {
			continue
		}
		if sized, ok := t.Surface.(interface{ BufferSize() shutter.Size }); ok {
			if s := sized.BufferSize(); s.Width > 0 && s.Height > 0 {
				return s
			}
		}
	}
	return m.previewSize(id)
}

func captureArgs(device string, size shutter.Size) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", "v4l2",
		"-input_format", "mjpeg",
		"-video_size", size.String(),
		"-i", device,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", strconv.Itoa(3),
		"-",
	}
}

func (s *Session) run(cb shutter.SessionCallbacks) {
	defer s.dev.forget(s)

	proc, err := s.dev.mgr.start(s.ctx, s.dev.mgr.ffmpeg, captureArgs(s.dev.id, s.size), false)
	if err != nil {
		close(s.done)
		cb.OnConfigureFailed(s, err)
		return
	}

	s.dev.logger.Debug("capture started", zap.Stringer("size", s.size), zap.Int("targets", len(s.targets)))
	s.mu.Lock()
	s.configuring = true
	s.mu.Unlock()
	cb.OnConfigured(s)
	s.mu.Lock()
	s.configuring = false
	s.mu.Unlock()

	readErr := readFrames(proc.stdout, s.deliver)
	waitErr := proc.wait()
	close(s.done)

	if s.ctx.Err() != nil {
		return
	}
	err = readErr
	if err == nil {
		err = waitErr
	}
	if err == nil {
		err = errors.New("capture ended")
	}
	s.dev.fail(fmt.Errorf("capture %s: %w", s.dev.id, err))
}

// SetRepeatingRequest starts delivering frames to the request's targets.
func (s *Session) SetRepeatingRequest(req shutter.CaptureRequest) error {
	writers := make([]FrameWriter, 0, len(req.Targets))
	for _, t := range req.Targets {
		w, ok := t.Surface.(FrameWriter)
		if !ok {
			return fmt.Errorf("target %s does not accept frames", t.Surface.SurfaceID())
		}
		writers = append(writers, w)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.writers = writers
	return nil
}

func (s *Session) deliver(frame []byte) {
	s.mu.Lock()
	writers := s.writers
	s.mu.Unlock()

	for _, w := range writers {
		if err := w.WriteFrame(frame); err != nil {
			s.dev.logger.Debug("frame dropped", zap.Error(err))
		}
	}
}

// Close stops the capture and waits for ffmpeg to exit so the device node is
// free for the next session. Called from OnConfigured it only cancels the
// capture, since the exit is awaited on the goroutine running the callback.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.writers = nil
	inCallback := s.configuring
	s.mu.Unlock()

	s.cancel()
	if !inCallback {
		<-s.done
	}
	return nil
}
