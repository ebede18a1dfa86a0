package v4l2

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/zoobzio/shutter"
)

// ErrDeviceClosed is returned when a closed device is used.
var ErrDeviceClosed = errors.New("v4l2: device closed")

// Device is an opened V4L2 camera. Only one capture session runs at a time;
// the node cannot be read by two processes.
type Device struct {
	mgr    *Manager
	id     string
	cb     shutter.DeviceCallbacks
	logger *zap.Logger

	mu       sync.Mutex
	closed   bool
	sessions map[*Session]struct{}
	watcher  *fsnotify.Watcher
}

var _ shutter.Device = (*Device)(nil)

func newDevice(mgr *Manager, id string, cb shutter.DeviceCallbacks) *Device {
	return &Device{
		mgr:      mgr,
		id:       id,
		cb:       cb,
		logger:   mgr.logger.With(zap.String("device", id)),
		sessions: make(map[*Session]struct{}),
	}
}

// ID returns the device node path.
func (d *Device) ID() string {
	return d.id
}

// CreateSession starts an ffmpeg capture for targets. OnConfigured fires once
// the process is running; frames reach the targets after
// SetRepeatingRequest.
func (d *Device) CreateSession(ctx context.Context, targets []shutter.OutputTarget, cb shutter.SessionCallbacks) error {
	for _, t := range targets {
		if _, ok := t.Surface.(FrameWriter); !ok {
			return fmt.Errorf("target %s (%s) does not accept frames", t.Surface.SurfaceID(), t.Role)
		}
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDeviceClosed
	}
	s := newSession(ctx, d, targets)
	d.sessions[s] = struct{}{}
	d.mu.Unlock()

	go s.run(cb)
	return nil
}

// Close stops every session and the removal watcher. Closing twice does
// nothing.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	sessions := make([]*Session, 0, len(d.sessions))
	for s := range d.sessions {
		sessions = append(sessions, s)
	}
	watcher := d.watcher
	d.mu.Unlock()

	for _, s := range sessions {
		_ = s.Close()
	}
	if watcher != nil {
		_ = watcher.Close()
	}
	d.logger.Info("device closed")
	return nil
}

func (d *Device) forget(s *Session) {
	d.mu.Lock()
	delete(d.sessions, s)
	d.mu.Unlock()
}

// fail reports a runtime error unless the device was closed.
func (d *Device) fail(err error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return
	}
	d.logger.Warn("device error", zap.Error(err))
	d.cb.OnError(d, err)
}

// watchRemoval reports OnDisconnected when the device node disappears.
// Failing to watch is logged and otherwise ignored.
func (d *Device) watchRemoval() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.logger.Debug("device removal not watched", zap.Error(err))
		return
	}
	if err := watcher.Add(filepath.Dir(d.id)); err != nil {
		watcher.Close()
		d.logger.Debug("device removal not watched", zap.Error(err))
		return
	}

	d.mu.Lock()
	d.watcher = watcher
	d.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != d.id || event.Op&(fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				d.mu.Lock()
				closed := d.closed
				d.mu.Unlock()
				if !closed {
					d.logger.Warn("device disconnected")
					d.cb.OnDisconnected(d)
				}
				return
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}
