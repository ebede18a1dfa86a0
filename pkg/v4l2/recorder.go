package v4l2

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zoobzio/shutter"
)

// Recorder errors.
var (
	ErrRecorderReleased = errors.New("v4l2: recorder released")
	ErrNotPrepared      = errors.New("v4l2: recorder not prepared")
	ErrNotStarted       = errors.New("v4l2: recorder not started")
)

// Recorder is a shutter.RecorderSink that pipes captured JPEG frames into an
// ffmpeg H.264 encoder writing an MP4 file.
type Recorder struct {
	ffmpeg string
	logger *zap.Logger
	start  startFunc

	mu       sync.Mutex
	released bool
	dest     *shutter.Destination
	cfg      shutter.VideoConfig
	surface  *recorderSurface
	proc     *process
	cancel   context.CancelFunc
}

var _ shutter.RecorderSink = (*Recorder)(nil)

// NewRecorder creates an unprepared Recorder.
func NewRecorder(ffmpeg string, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{ffmpeg: ffmpeg, logger: logger, start: execStart}
}

// RecorderFactory returns a factory creating a fresh Recorder per recording.
func RecorderFactory(ffmpeg string, logger *zap.Logger) shutter.RecorderFactory {
	return func() (shutter.RecorderSink, error) {
		return NewRecorder(ffmpeg, logger), nil
	}
}

// encodeArgs reads MJPEG from stdin and writes cfg's video to path.
func encodeArgs(path string, cfg shutter.VideoConfig) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-framerate", strconv.Itoa(cfg.FrameRate),
		"-i", "-",
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", cfg.Width, cfg.Height),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-b:v", strconv.Itoa(cfg.BitRate),
		"-r", strconv.Itoa(cfg.FrameRate),
		"-f", "mp4",
		"-movflags", "+faststart",
		path,
	}
}

// Prepare binds the recorder to dest and cfg.
func (r *Recorder) Prepare(dest shutter.Destination, cfg shutter.VideoConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Encoder != "h264" || cfg.Container != "mpeg4" {
		return fmt.Errorf("unsupported encoding %s/%s", cfg.Encoder, cfg.Container)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrRecorderReleased
	}
	r.dest = &dest
	r.cfg = cfg
	r.surface = &recorderSurface{id: "recorder-" + uuid.NewString()}
	return nil
}

// Surface returns the surface frames are written to. Frames written before
// Start are discarded.
func (r *Recorder) Surface() shutter.Surface {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.surface == nil {
		return nil
	}
	return r.surface
}

// Start launches the encoder.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrRecorderReleased
	}
	if r.dest == nil {
		return ErrNotPrepared
	}
	if r.proc != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	proc, err := r.start(ctx, r.ffmpeg, encodeArgs(r.dest.Path, r.cfg), true)
	if err != nil {
		cancel()
		return err
	}
	go func() { _, _ = io.Copy(io.Discard, proc.stdout) }()

	r.proc = proc
	r.cancel = cancel
	r.surface.attach(proc.stdin)
	r.logger.Info("encoder started", zap.String("path", r.dest.Path))
	return nil
}

// Stop closes the encoder's input and waits for it to finalize the file.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	proc, cancel, surface := r.proc, r.cancel, r.surface
	r.proc, r.cancel = nil, nil
	var path string
	if r.dest != nil {
		path = r.dest.Path
	}
	r.mu.Unlock()

	if proc == nil {
		return ErrNotStarted
	}
	defer cancel()

	surface.detach()
	if err := proc.stdin.Close(); err != nil {
		r.logger.Debug("closing encoder input", zap.Error(err))
	}
	if err := proc.wait(); err != nil {
		return fmt.Errorf("finalize recording: %w", err)
	}
	r.logger.Info("encoder finished", zap.String("path", path), zap.Uint64("frames", surface.Frames()))
	return nil
}

// Reset kills a running encoder and forgets the destination.
func (r *Recorder) Reset() error {
	r.mu.Lock()
	proc, cancel, surface := r.proc, r.cancel, r.surface
	r.proc, r.cancel, r.surface, r.dest = nil, nil, nil, nil
	r.mu.Unlock()

	if surface != nil {
		surface.detach()
	}
	if proc != nil {
		cancel()
		_ = proc.wait()
	}
	return nil
}

// Release resets the recorder. It cannot be used afterwards.
func (r *Recorder) Release() error {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return ErrRecorderReleased
	}
	r.released = true
	r.mu.Unlock()
	return r.Reset()
}

// recorderSurface forwards frames to the encoder's stdin while attached.
type recorderSurface struct {
	id string

	mu     sync.Mutex
	w      io.Writer
	frames uint64
}

func (s *recorderSurface) SurfaceID() string {
	return s.id
}

func (s *recorderSurface) attach(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *recorderSurface) detach() {
	s.mu.Lock()
	s.w = nil
	s.mu.Unlock()
}

// WriteFrame writes frame to the encoder, or drops it when not attached.
func (s *recorderSurface) WriteFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return nil
	}
	if _, err := s.w.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	s.frames++
	return nil
}

// Frames returns the number of frames handed to the encoder.
func (s *recorderSurface) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}
