// Package v4l2 implements the shutter platform on Linux V4L2 cameras. Devices
// are listed with v4l2-ctl, captured as MJPEG through ffmpeg and recorded by
// piping frames into an ffmpeg H.264 encoder.
package v4l2

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/zoobzio/shutter"
)

// DefaultPreviewSize is used when a device's sizes are unknown.
var DefaultPreviewSize = shutter.Size{Width: 1280, Height: 720}

// Manager lists and opens V4L2 devices.
type Manager struct {
	v4l2ctl string
	ffmpeg  string
	facing  map[string]shutter.Facing
	logger  *zap.Logger

	output outputFunc
	start  startFunc
	stat   func(string) error

	mu    sync.Mutex
	sizes map[string][]shutter.Size
}

var _ shutter.DeviceManager = (*Manager)(nil)

// NewManager creates a Manager using v4l2-ctl and ffmpeg from PATH.
func NewManager() *Manager {
	return &Manager{
		v4l2ctl: "v4l2-ctl",
		ffmpeg:  "ffmpeg",
		facing:  make(map[string]shutter.Facing),
		logger:  zap.NewNop(),
		output:  execOutput,
		start:   execStart,
		stat: func(path string) error {
			_, err := os.Stat(path)
			return err
		},
		sizes: make(map[string][]shutter.Size),
	}
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// V4L2Ctl sets the v4l2-ctl executable.
func (m *Manager) V4L2Ctl(path string) *Manager {
	m.v4l2ctl = path
	return m
}

// FFmpeg sets the ffmpeg executable used for capture.
func (m *Manager) FFmpeg(path string) *Manager {
	m.ffmpeg = path
	return m
}

// Facing sets the direction of the device at path. Devices without an entry
// are reported as back-facing, since V4L2 has no notion of facing.
func (m *Manager) Facing(path string, f shutter.Facing) *Manager {
	m.facing[path] = f
	return m
}

// Logger sets the logger.
func (m *Manager) Logger(logger *zap.Logger) *Manager {
	m.logger = logger
	return m
}

// ListDevices returns every capture device with its frame sizes. Devices
// whose formats cannot be read are skipped.
func (m *Manager) ListDevices(ctx context.Context) ([]shutter.DeviceInfo, error) {
	out, err := m.output(ctx, m.v4l2ctl, "--list-devices")
	if err != nil {
		return nil, fmt.Errorf("listing devices using v4l2-ctl: %w", err)
	}

	var infos []shutter.DeviceInfo
	for _, n := range parseDeviceList(string(out)) {
		formats, err := m.output(ctx, m.v4l2ctl, "--device", n.path, "--list-formats-ext")
		if err != nil {
			m.logger.Warn("skipping device", zap.String("device", n.path), zap.Error(err))
			continue
		}
		sizes := parseFrameSizes(string(formats))

		facing, ok := m.facing[n.path]
		if !ok {
			facing = shutter.FacingBack
		}

		m.mu.Lock()
		m.sizes[n.path] = sizes
		m.mu.Unlock()

		infos = append(infos, shutter.DeviceInfo{
			ID:          n.path,
			Name:        n.name,
			Facing:      facing,
			OutputSizes: sizes,
		})
	}

	m.logger.Debug("listed devices", zap.Int("count", len(infos)))
	return infos, nil
}

// OpenDevice checks that the device node exists and delivers the outcome on a
// new goroutine. Removal of the node while open is reported through
// OnDisconnected.
func (m *Manager) OpenDevice(_ context.Context, id string, cb shutter.DeviceCallbacks) error {
	go func() {
		if err := m.stat(id); err != nil {
			m.logger.Warn("open device failed", zap.String("device", id), zap.Error(err))
			cb.OnError(nil, fmt.Errorf("open %s: %w", id, err))
			return
		}
		d := newDevice(m, id, cb)
		d.watchRemoval()
		m.logger.Info("device opened", zap.String("device", id))
		cb.OnOpened(d)
	}()
	return nil
}

// previewSize returns the first size listed for the device.
func (m *Manager) previewSize(id string) shutter.Size {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sizes := m.sizes[id]; len(sizes) > 0 {
		return sizes[0]
	}
	return DefaultPreviewSize
}
