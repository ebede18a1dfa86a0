package shutter

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// Operation names used in errors, logs and Observer.OnError.
const (
	OpOpen           = "open"
	OpStartPreview   = "start_preview"
	OpStartRecording = "start_recording"
	OpStopRecording  = "stop_recording"
	OpClose          = "close"
	OpDevice         = "device"
)

// Snapshot is a point-in-time view of a Controller for UI collaborators.
type Snapshot struct {
	State       State
	Recording   bool
	LastError   error
	Session     *SessionInfo
	Destination *Destination
}

// call is an entry-point invocation waiting to run on the executor.
type call struct {
	op      string
	surface PreviewSurface
	done    *Future
}

// view is the executor-owned state published for Snapshot.
type view struct {
	session     *SessionInfo
	destination *Destination
}

// Controller drives a single camera device through open, preview, record,
// stop and close.
//
// Entry points are safe from any goroutine. They queue a call and return a
// Future; every call, platform callback and blocking device operation runs on
// the Executor in order. A call issued while a transition is pending waits
// until the transition settles, except Close, which overtakes the waiting
// calls and fails them with ErrClosed.
//
// Close does not finalize a recording in progress. Callers that want the file
// kept must StopRecording first.
type Controller struct {
	manager   DeviceManager
	exec      *Executor
	recorders RecorderFactory
	resolver  OutputResolver

	permissions Permissions
	video       VideoConfig
	observer    Observer
	logger      *zap.Logger
	clock       clockz.Clock
	ctx         context.Context

	state        atomic.Int32
	lastError    atomic.Pointer[error]
	published    atomic.Pointer[view]
	errorHistory *failureRing

	callsMu sync.Mutex
	calls   []call

	// Owned by the executor.
	device  *deviceHandle
	session *captureSession
	rec     *recording
	surface PreviewSurface
}

// NewController creates a Controller in the Closed state. Work runs on exec,
// which the caller starts and stops with the visible lifetime.
//
// Example:
//
//	exec := shutter.NewExecutor("camera")
//	ctrl := shutter.NewController(manager, exec, recorders, resolver).
//	    Logger(logger).
//	    Observer(ui)
//	exec.Start()
//	err := ctrl.Open().Wait(ctx)
func NewController(
	manager DeviceManager,
	exec *Executor,
	recorders RecorderFactory,
	resolver OutputResolver,
) *Controller {
	c := &Controller{
		manager:      manager,
		exec:         exec,
		recorders:    recorders,
		resolver:     resolver,
		permissions:  Granted,
		video:        DefaultVideoConfig,
		observer:     NoOpObserver{},
		logger:       zap.NewNop(),
		clock:        clockz.RealClock,
		ctx:          context.Background(),
		errorHistory: newFailureRing(0),
	}
	c.state.Store(int32(StateClosed))
	c.published.Store(&view{})
	return c
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Permissions sets the permission collaborator consulted by Open.
// Default: Granted. Must be called before Open().
func (c *Controller) Permissions(p Permissions) *Controller {
	c.permissions = p
	return c
}

// VideoConfig sets the encoder configuration handed to every sink.
// Default: DefaultVideoConfig. Must be called before Open().
func (c *Controller) VideoConfig(cfg VideoConfig) *Controller {
	c.video = cfg
	return c
}

// Observer sets the observer notified of state changes, errors and
// recordings. Must be called before Open().
func (c *Controller) Observer(o Observer) *Controller {
	c.observer = o
	return c
}

// Logger sets the logger. Default: zap.NewNop(). Must be called before Open().
func (c *Controller) Logger(logger *zap.Logger) *Controller {
	c.logger = logger
	return c
}

// Clock sets the clock used to timestamp failures. Must be called before Open().
func (c *Controller) Clock(clock clockz.Clock) *Controller {
	c.clock = clock
	return c
}

// Context sets the context passed to platform calls and signal emission.
// Must be called before Open().
func (c *Controller) Context(ctx context.Context) *Controller {
	c.ctx = ctx
	return c
}

// ErrorHistorySize sets the number of recent failures to retain.
// Use 0 (default) to only retain the most recent error via LastError().
// Must be called before Open().
func (c *Controller) ErrorHistorySize(n int) *Controller {
	c.errorHistory = newFailureRing(n)
	return c
}

// -----------------------------------------------------------------------------
// Reads
// -----------------------------------------------------------------------------

// State returns the current state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Recording reports whether a recorder sink is held.
func (c *Controller) Recording() bool {
	return c.State().Recording()
}

// LastError returns the last surfaced error, or nil.
func (c *Controller) LastError() error {
	ptr := c.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// ErrorHistory returns recent failures, oldest first.
// Returns nil if error history is not enabled (see ErrorHistorySize).
func (c *Controller) ErrorHistory() []Failure {
	return c.errorHistory.all()
}

// Snapshot returns a consistent view for UI collaborators.
func (c *Controller) Snapshot() Snapshot {
	st := c.State()
	v := c.published.Load()
	return Snapshot{
		State:       st,
		Recording:   st.Recording(),
		LastError:   c.LastError(),
		Session:     v.session,
		Destination: v.destination,
	}
}

// -----------------------------------------------------------------------------
// Entry points
// -----------------------------------------------------------------------------

// Open selects the first back-facing device and opens it.
// Closed → Opening → Idle.
func (c *Controller) Open() *Future {
	return c.enqueue(OpOpen, nil)
}

// StartPreview configures a session over the preview surface alone and
// starts the repeating preview request. Legal in Idle, or PreviewRunning to
// replace the surface.
func (c *Controller) StartPreview(surface PreviewSurface) *Future {
	return c.enqueue(OpStartPreview, surface)
}

// StartRecording resolves a fresh destination, prepares a recorder sink and
// reconfigures the session over both the preview and the sink's surface.
// Legal in PreviewRunning. A nil surface keeps the current preview surface.
func (c *Controller) StartRecording(surface PreviewSurface) *Future {
	return c.enqueue(OpStartRecording, surface)
}

// StopRecording finalizes and releases the recorder sink, then returns to
// preview only. Legal in RecordRunning. A finalize failure is reported and
// settles the Future once preview is rebuilt, which happens regardless.
func (c *Controller) StopRecording() *Future {
	return c.enqueue(OpStopRecording, nil)
}

// Close releases the session, the recorder sink and the device, in that
// order. Calls issued before it run first, except those waiting for a pending
// transition, which Close overtakes and fails with ErrClosed. Close on a
// closed controller does nothing.
func (c *Controller) Close() *Future {
	return c.enqueue(OpClose, nil)
}

func (c *Controller) enqueue(op string, surface PreviewSurface) *Future {
	f := newFuture()
	next := call{op: op, surface: surface, done: f}

	c.callsMu.Lock()
	c.calls = append(c.calls, next)
	c.callsMu.Unlock()

	if err := c.exec.Submit(c.pump); err != nil {
		c.callsMu.Lock()
		for i := range c.calls {
			if c.calls[i].done == f {
				c.calls = append(c.calls[:i], c.calls[i+1:]...)
				break
			}
		}
		c.callsMu.Unlock()
		f.resolve(fmt.Errorf("%s: %w", op, err))
	}
	return f
}

// pump runs waiting calls in order until one has to wait for a pending
// transition. A queued Close overtakes the calls blocked ahead of it.
// It runs on the executor.
func (c *Controller) pump() {
	defer c.publish()
	for {
		var dropped []call
		c.callsMu.Lock()
		if len(c.calls) == 0 {
			c.callsMu.Unlock()
			return
		}
		if c.calls[0].op != OpClose && c.State().pending() {
			i := slices.IndexFunc(c.calls, func(q call) bool { return q.op == OpClose })
			if i < 0 {
				c.callsMu.Unlock()
				return
			}
			dropped = slices.Clone(c.calls[:i])
			c.calls = c.calls[i:]
		}
		next := c.calls[0]
		c.calls[0] = call{}
		c.calls = c.calls[1:]
		c.callsMu.Unlock()

		for _, d := range dropped {
			d.done.resolve(fmt.Errorf("%s: %w", d.op, ErrClosed))
		}
		c.run(next)
	}
}

func (c *Controller) run(next call) {
	switch next.op {
	case OpOpen:
		c.open(next.done)
	case OpStartPreview:
		c.startPreview(next.surface, next.done)
	case OpStartRecording:
		c.startRecording(next.surface, next.done)
	case OpStopRecording:
		c.stopRecording(next.done)
	case OpClose:
		c.close(next.done)
	}
}

// post runs fn on the executor followed by any calls it unblocked.
// It reports false if the executor no longer accepts work.
func (c *Controller) post(callback string, fn func()) bool {
	err := c.exec.Submit(func() {
		fn()
		c.pump()
	})
	if err != nil {
		c.logger.Debug("callback dropped, executor not running", zap.String("callback", callback))
		return false
	}
	return true
}

// -----------------------------------------------------------------------------
// Open
// -----------------------------------------------------------------------------

func (c *Controller) open(f *Future) {
	if st := c.State(); st != StateClosed {
		f.resolve(c.invalid(OpOpen, st))
		return
	}
	if !c.permissions.CameraGranted() {
		c.fail(OpOpen, ErrPermissionDenied, f)
		return
	}

	devices, err := c.manager.ListDevices(c.ctx)
	if err != nil {
		c.fail(OpOpen, fmt.Errorf("%w: list devices: %w", ErrAccess, err), f)
		return
	}
	info, size, ok := selectDevice(devices)
	if !ok {
		c.fail(OpOpen, fmt.Errorf("%w: no back-facing camera with an output size", ErrDeviceUnavailable), f)
		return
	}

	h := &deviceHandle{info: info, previewSize: size, done: f}
	c.device = h
	c.transition(StateOpening)

	err = c.manager.OpenDevice(c.ctx, info.ID, DeviceCallbacks{
		OnOpened: func(d Device) {
			if !c.post("opened", func() { c.onOpened(h, d) }) {
				closeQuietly(c.logger, "device", d.Close)
			}
		},
		OnDisconnected: func(d Device) {
			c.post("disconnected", func() { c.onDisconnected(h, d) })
		},
		OnError: func(d Device, err error) {
			c.post("device_error", func() { c.onDeviceError(h, d, err) })
		},
	})
	if err != nil {
		c.device = nil
		c.transition(StateClosed)
		c.fail(OpOpen, fmt.Errorf("%w: open %s: %w", ErrAccess, info.ID, err), f)
	}
}

// selectDevice picks the first back-facing device and its first output size.
func selectDevice(devices []DeviceInfo) (DeviceInfo, Size, bool) {
	for _, d := range devices {
		if d.Facing != FacingBack {
			continue
		}
		if len(d.OutputSizes) == 0 {
			return DeviceInfo{}, Size{}, false
		}
		return d, d.OutputSizes[0], true
	}
	return DeviceInfo{}, Size{}, false
}

func (c *Controller) onOpened(h *deviceHandle, d Device) {
	if c.device != h || c.State() != StateOpening {
		c.discard("opened", h.info.ID, ErrSuperseded)
		if h.dev == nil || h.dev != d {
			closeQuietly(c.logger, "device", d.Close)
		}
		return
	}

	h.dev = d
	c.transition(StateIdle)
	c.logger.Info("camera opened",
		zap.String("device", h.info.ID),
		zap.Stringer("preview_size", h.previewSize),
	)
	h.done.resolve(nil)
	h.done = nil
}

func (c *Controller) onDisconnected(h *deviceHandle, d Device) {
	if c.device != h {
		c.discard("disconnected", h.info.ID, ErrSuperseded)
		closeQuietly(c.logger, "device", d.Close)
		return
	}
	c.deviceLost(h, d, fmt.Errorf("%w: %s disconnected", ErrDeviceUnavailable, h.info.ID))
}

func (c *Controller) onDeviceError(h *deviceHandle, d Device, cause error) {
	if c.device != h {
		c.discard("device_error", h.info.ID, ErrSuperseded)
		if d != nil {
			closeQuietly(c.logger, "device", d.Close)
		}
		return
	}
	c.deviceLost(h, d, fmt.Errorf("%w: %s: %w", ErrAccess, h.info.ID, cause))
}

// deviceLost handles the current device disconnecting or failing. During
// Opening the attempt is abandoned and the controller returns to Closed so
// Open can be retried. Later it enters Error.
func (c *Controller) deviceLost(h *deviceHandle, d Device, err error) {
	if d != nil {
		closeQuietly(c.logger, "device", d.Close)
	}
	if h.dev != nil && h.dev != d {
		closeQuietly(c.logger, "device", h.dev.Close)
	}
	h.dev = nil

	if c.State() == StateOpening {
		c.device = nil
		c.transition(StateClosed)
		c.fail(OpOpen, err, h.done)
		h.done = nil
		return
	}
	c.enterError(OpDevice, err)
}

// -----------------------------------------------------------------------------
// Preview
// -----------------------------------------------------------------------------

func (c *Controller) startPreview(surface PreviewSurface, f *Future) {
	st := c.State()
	if st != StateIdle && st != StatePreviewRunning {
		f.resolve(c.invalid(OpStartPreview, st))
		return
	}
	if surface == nil {
		f.resolve(fmt.Errorf("%s: nil preview surface: %w", OpStartPreview, ErrInvalidState))
		return
	}
	c.surface = surface
	c.configurePreview(f, nil)
}

// configurePreview replaces the current session with one over the preview
// surface alone. carry is settled into f once preview is running.
func (c *Controller) configurePreview(f *Future, carry error) {
	c.surface.SetDefaultBufferSize(c.device.previewSize)
	c.closeSession()

	s := newCaptureSession(OpStartPreview, TemplatePreview, []OutputTarget{
		{Role: RolePreview, Surface: c.surface},
	}, f)
	s.carry = carry

	c.transition(StateConfiguringPreview)
	c.createSession(s)
}

// -----------------------------------------------------------------------------
// Recording
// -----------------------------------------------------------------------------

func (c *Controller) startRecording(surface PreviewSurface, f *Future) {
	if st := c.State(); st != StatePreviewRunning {
		f.resolve(c.invalid(OpStartRecording, st))
		return
	}
	if surface != nil {
		c.surface = surface
	}

	c.transition(StateConfiguringRecord)

	if err := c.video.Validate(); err != nil {
		c.abortRecording(fmt.Errorf("%w: %w", ErrRecorderPrepare, err), f)
		return
	}
	dest, err := c.resolver.Resolve(c.ctx)
	if err != nil {
		c.abortRecording(fmt.Errorf("%w: resolve output: %w", ErrRecorderPrepare, err), f)
		return
	}

	c.transition(StatePreparing)

	sink, err := c.recorders()
	if err != nil {
		c.abortRecording(fmt.Errorf("%w: acquire sink: %w", ErrRecorderPrepare, err), f)
		return
	}
	c.rec = &recording{sink: sink, dest: dest}
	if err := sink.Prepare(dest, c.video); err != nil {
		c.releaseRecorder()
		c.abortRecording(fmt.Errorf("%w: %w", ErrRecorderPrepare, err), f)
		return
	}

	// The preview session is closed before the new one is requested so no two
	// sessions overlap.
	c.closeSession()
	s := newCaptureSession(OpStartRecording, TemplateRecord, []OutputTarget{
		{Role: RolePreview, Surface: c.surface},
		{Role: RoleRecord, Surface: sink.Surface()},
	}, f)
	c.createSession(s)
}

// abortRecording returns to PreviewRunning with the preview session untouched.
func (c *Controller) abortRecording(err error, f *Future) {
	c.transition(StatePreviewRunning)
	c.fail(OpStartRecording, err, f)
}

func (c *Controller) stopRecording(f *Future) {
	if st := c.State(); st != StateRecordRunning {
		f.resolve(c.invalid(OpStopRecording, st))
		return
	}

	c.transition(StateStopping)

	dest := c.rec.dest
	var finalizeErr error
	if err := c.rec.sink.Stop(); err != nil {
		finalizeErr = fmt.Errorf("%w: %w", ErrRecorderFinalize, err)
		c.report(OpStopRecording, finalizeErr)
	}
	c.releaseRecorder()

	c.logger.Info("recording stopped", zap.String("destination", dest.Path))
	capitan.Emit(c.ctx, RecordingStopped, KeyDestination.Field(dest.Path))
	c.observer.OnRecordingStopped(dest)

	c.configurePreview(f, finalizeErr)
}

// releaseRecorder resets and releases the sink.
func (c *Controller) releaseRecorder() {
	if c.rec == nil {
		return
	}
	sink := c.rec.sink
	c.rec = nil
	closeQuietly(c.logger, "recorder reset", sink.Reset)
	closeQuietly(c.logger, "recorder", sink.Release)
}

// -----------------------------------------------------------------------------
// Sessions
// -----------------------------------------------------------------------------

func (c *Controller) createSession(s *captureSession) {
	c.session = s
	err := c.device.dev.CreateSession(c.ctx, s.targets, SessionCallbacks{
		OnConfigured: func(ps Session) {
			if !c.post("configured", func() { c.onConfigured(s, ps) }) {
				closeQuietly(c.logger, "session", ps.Close)
			}
		},
		OnConfigureFailed: func(ps Session, err error) {
			c.post("configure_failed", func() { c.onConfigureFailed(s, ps, err) })
		},
	})
	if err != nil {
		c.enterError(s.operation, fmt.Errorf("%w: %w", ErrSessionConfiguration, err))
	}
}

func (c *Controller) onConfigured(s *captureSession, ps Session) {
	if c.session != s || s.configured() {
		c.discard("configured", s.id, ErrSuperseded)
		if s.session != ps {
			closeQuietly(c.logger, "session", ps.Close)
		}
		return
	}
	s.session = ps

	capitan.Emit(c.ctx, SessionConfigured,
		KeySessionID.Field(s.id),
		KeyTargets.Field(len(s.targets)),
	)

	switch s.template {
	case TemplatePreview:
		c.transition(StatePreviewRunning)
		if err := ps.SetRepeatingRequest(s.request()); err != nil {
			c.enterError(s.operation, fmt.Errorf("%w: repeating preview request: %w", ErrAccess, err))
			return
		}
		s.done.resolve(s.carry)

	case TemplateRecord:
		c.transition(StateRecordRunning)
		if err := ps.SetRepeatingRequest(s.request()); err != nil {
			c.enterError(s.operation, fmt.Errorf("%w: repeating record request: %w", ErrAccess, err))
			return
		}
		if err := c.rec.sink.Start(); err != nil {
			startErr := fmt.Errorf("%w: start: %w", ErrRecorderPrepare, err)
			c.releaseRecorder()
			c.report(OpStartRecording, startErr)
			c.configurePreview(s.done, startErr)
			return
		}
		dest := c.rec.dest
		c.logger.Info("recording started", zap.String("destination", dest.Path))
		capitan.Emit(c.ctx, RecordingStarted, KeyDestination.Field(dest.Path))
		c.observer.OnRecordingStarted(dest)
		s.done.resolve(nil)
	}
}

func (c *Controller) onConfigureFailed(s *captureSession, ps Session, cause error) {
	if c.session != s || s.configured() {
		c.discard("configure_failed", s.id, ErrSuperseded)
		if ps != nil {
			closeQuietly(c.logger, "session", ps.Close)
		}
		return
	}
	if ps != nil {
		closeQuietly(c.logger, "session", ps.Close)
	}
	c.enterError(s.operation, fmt.Errorf("%w: %w", ErrSessionConfiguration, cause))
}

// closeSession discards the current session. Callbacks still in flight for
// it are recognized as superseded.
func (c *Controller) closeSession() {
	s := c.session
	if s == nil {
		return
	}
	c.session = nil
	if s.session != nil {
		closeQuietly(c.logger, "session", s.session.Close)
	}
}

// -----------------------------------------------------------------------------
// Close and failure
// -----------------------------------------------------------------------------

func (c *Controller) close(f *Future) {
	if c.State() == StateClosed && c.device == nil {
		f.resolve(nil)
		return
	}

	pending := c.pendingFutures()

	c.closeSession()
	if c.rec != nil {
		sink := c.rec.sink
		c.rec = nil
		closeQuietly(c.logger, "recorder", sink.Release)
	}
	if h := c.device; h != nil {
		c.device = nil
		if h.dev != nil {
			closeQuietly(c.logger, "device", h.dev.Close)
		}
	}
	c.surface = nil

	c.transition(StateClosed)
	for _, p := range pending {
		p.resolve(fmt.Errorf("interrupted: %w", ErrClosed))
	}
	f.resolve(nil)
}

// closeAbandoned settles the calls an executor left queued when its drain
// timed out and closes the device they no longer can. It runs on the caller
// and must only be used once the executor has stopped.
func (c *Controller) closeAbandoned() {
	c.callsMu.Lock()
	left := c.calls
	c.calls = nil
	c.callsMu.Unlock()

	var closes []*Future
	for _, l := range left {
		if l.op == OpClose {
			closes = append(closes, l.done)
			continue
		}
		l.done.resolve(fmt.Errorf("%s: %w", l.op, ErrExecutorStopped))
	}

	if c.State() != StateClosed || c.device != nil {
		c.logger.Warn("closing device abandoned by executor", zap.Int("calls", len(left)))
		c.close(newFuture())
		c.publish()
	}
	for _, f := range closes {
		f.resolve(nil)
	}
}

// enterError releases the session and sink, reports err and settles any
// operation in flight with it.
func (c *Controller) enterError(op string, err error) {
	pending := c.pendingFutures()

	c.closeSession()
	c.releaseRecorder()
	c.transition(StateError)
	c.report(op, err)

	for _, p := range pending {
		p.resolve(err)
	}
}

// pendingFutures returns the futures of an open attempt or session that has
// not settled yet.
func (c *Controller) pendingFutures() []*Future {
	var out []*Future
	if c.device != nil && c.device.dev == nil && c.device.done != nil {
		out = append(out, c.device.done)
	}
	if c.session != nil && !c.session.configured() && c.session.done != nil {
		out = append(out, c.session.done)
	}
	return out
}

func (c *Controller) fail(op string, err error, f *Future) {
	c.report(op, err)
	f.resolve(err)
}

// report surfaces err to LastError, the error history, the observer, the
// signal bus and the log.
func (c *Controller) report(op string, err error) {
	c.lastError.Store(&err)
	c.errorHistory.push(Failure{
		Operation: op,
		State:     c.State(),
		Err:       err,
		At:        c.clock.Now(),
	})
	c.observer.OnError(op, err)
	capitan.Emit(c.ctx, ControllerOperationFailed,
		KeyOperation.Field(op),
		KeyError.Field(err.Error()),
	)
	c.logger.Warn("camera operation failed", zap.String("operation", op), zap.Error(err))
}

func (c *Controller) invalid(op string, st State) error {
	c.logger.Debug("operation rejected", zap.String("operation", op), zap.Stringer("state", st))
	return fmt.Errorf("%s in state %s: %w", op, st, ErrInvalidState)
}

// discard drops a callback for a superseded open attempt or session.
func (c *Controller) discard(callback, id string, reason error) {
	c.logger.Debug("callback discarded",
		zap.String("callback", callback),
		zap.String("id", id),
		zap.Error(reason),
	)
	capitan.Emit(c.ctx, ControllerCallbackDiscarded,
		KeyCallback.Field(callback),
		KeySessionID.Field(id),
	)
}

func (c *Controller) transition(to State) {
	from := State(c.state.Swap(int32(to)))
	c.publish()
	if from == to {
		return
	}
	capitan.Emit(c.ctx, ControllerStateChanged,
		KeyOldState.Field(from.String()),
		KeyNewState.Field(to.String()),
	)
	c.logger.Debug("state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	c.observer.OnStateChange(from, to)
}

// publish refreshes the view returned by Snapshot.
func (c *Controller) publish() {
	v := &view{}
	if c.session != nil {
		v.session = c.session.info()
	}
	if c.rec != nil {
		dest := c.rec.dest
		v.destination = &dest
	}
	c.published.Store(v)
}

// closeQuietly runs a release function and logs its error.
func closeQuietly(logger *zap.Logger, what string, fn func() error) {
	if err := fn(); err != nil && !errors.Is(err, ErrClosed) {
		logger.Warn("release failed", zap.String("resource", what), zap.Error(err))
	}
}
