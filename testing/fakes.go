package testing

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zoobzio/shutter"
)

// ErrFakeClosed is returned by fakes used after Close or Release.
var ErrFakeClosed = errors.New("fake already closed")

// -----------------------------------------------------------------------------
// Device manager
// -----------------------------------------------------------------------------

// FakeDeviceManager is a scriptable shutter.DeviceManager. Each OpenDevice
// call records an OpenAttempt whose callbacks the test fires by hand, unless
// AutoOpen is set.
type FakeDeviceManager struct {
	mu       sync.Mutex
	devices  []shutter.DeviceInfo
	listErr  error
	openErr  error
	autoOpen bool
	autoConf bool
	attempts []*OpenAttempt
}

// NewFakeDeviceManager returns a manager listing devices.
func NewFakeDeviceManager(devices ...shutter.DeviceInfo) *FakeDeviceManager {
	return &FakeDeviceManager{devices: devices}
}

// BackCamera returns a back-facing device listing with one 1280x720 size.
func BackCamera(id string) shutter.DeviceInfo {
	return shutter.DeviceInfo{
		ID:          id,
		Name:        "fake " + id,
		Facing:      shutter.FacingBack,
		OutputSizes: []shutter.Size{{Width: 1280, Height: 720}, {Width: 640, Height: 480}},
	}
}

// AutoOpen makes every open attempt succeed immediately, and every device
// configure its sessions immediately.
func (m *FakeDeviceManager) AutoOpen() *FakeDeviceManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoOpen = true
	m.autoConf = true
	return m
}

// FailList makes ListDevices return err.
func (m *FakeDeviceManager) FailList(err error) *FakeDeviceManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
	return m
}

// FailOpen makes OpenDevice return err.
func (m *FakeDeviceManager) FailOpen(err error) *FakeDeviceManager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErr = err
	return m
}

// ListDevices implements shutter.DeviceManager.
func (m *FakeDeviceManager) ListDevices(_ context.Context) ([]shutter.DeviceInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return append([]shutter.DeviceInfo(nil), m.devices...), nil
}

// OpenDevice implements shutter.DeviceManager.
func (m *FakeDeviceManager) OpenDevice(_ context.Context, id string, cb shutter.DeviceCallbacks) error {
	m.mu.Lock()
	if m.openErr != nil {
		err := m.openErr
		m.mu.Unlock()
		return err
	}
	dev := NewFakeDevice(id)
	if m.autoConf {
		dev.AutoConfigure()
	}
	a := &OpenAttempt{ID: id, Device: dev, cb: cb}
	m.attempts = append(m.attempts, a)
	auto := m.autoOpen
	m.mu.Unlock()

	if auto {
		go a.Open()
	}
	return nil
}

// Attempts returns every open attempt, oldest first.
func (m *FakeDeviceManager) Attempts() []*OpenAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*OpenAttempt(nil), m.attempts...)
}

// LastAttempt returns the newest open attempt, or nil.
func (m *FakeDeviceManager) LastAttempt() *OpenAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.attempts) == 0 {
		return nil
	}
	return m.attempts[len(m.attempts)-1]
}

// OpenAttempt is one OpenDevice call.
type OpenAttempt struct {
	ID     string
	Device *FakeDevice
	cb     shutter.DeviceCallbacks
}

// Open fires the opened callback.
func (a *OpenAttempt) Open() {
	a.cb.OnOpened(a.Device)
}

// Fail fires the error callback. The device is nil as when opening failed.
func (a *OpenAttempt) Fail(err error) {
	a.cb.OnError(nil, err)
}

// Disconnect fires the disconnected callback.
func (a *OpenAttempt) Disconnect() {
	a.cb.OnDisconnected(a.Device)
}

// -----------------------------------------------------------------------------
// Device and session
// -----------------------------------------------------------------------------

// FakeDevice is a scriptable shutter.Device. It counts configured sessions
// that are not closed yet, so tests can check that sessions never overlap.
type FakeDevice struct {
	id string

	mu        sync.Mutex
	autoConf  bool
	createErr error
	onRequest func(shutter.CaptureRequest)
	sessions  []*FakeSession
	live      int
	maxLive   int
	closes    int
}

// NewFakeDevice creates a device with the given id.
func NewFakeDevice(id string) *FakeDevice {
	return &FakeDevice{id: id}
}

// AutoConfigure makes every new session report configured immediately.
func (d *FakeDevice) AutoConfigure() *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.autoConf = true
	return d
}

// ManualConfigure makes new sessions wait for Configure or FailConfigure.
func (d *FakeDevice) ManualConfigure() *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.autoConf = false
	return d
}

// FailCreate makes CreateSession return err.
func (d *FakeDevice) FailCreate(err error) *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.createErr = err
	return d
}

// OnRequest installs a hook run on every SetRepeatingRequest, before it is
// recorded.
func (d *FakeDevice) OnRequest(fn func(shutter.CaptureRequest)) *FakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRequest = fn
	return d
}

// ID implements shutter.Device.
func (d *FakeDevice) ID() string {
	return d.id
}

// CreateSession implements shutter.Device.
func (d *FakeDevice) CreateSession(_ context.Context, targets []shutter.OutputTarget, cb shutter.SessionCallbacks) error {
	d.mu.Lock()
	if d.createErr != nil {
		err := d.createErr
		d.mu.Unlock()
		return err
	}
	s := &FakeSession{
		device:  d,
		targets: append([]shutter.OutputTarget(nil), targets...),
		cb:      cb,
	}
	d.sessions = append(d.sessions, s)
	auto := d.autoConf
	d.mu.Unlock()

	if auto {
		go s.Configure()
	}
	return nil
}

// Close implements shutter.Device.
func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

// Closed reports whether Close was called.
func (d *FakeDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes > 0
}

// Sessions returns every session created on the device, oldest first.
func (d *FakeDevice) Sessions() []*FakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeSession(nil), d.sessions...)
}

// LastSession returns the newest session, or nil.
func (d *FakeDevice) LastSession() *FakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

// LiveSessions returns the number of configured sessions not yet closed.
func (d *FakeDevice) LiveSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.live
}

// MaxLiveSessions returns the highest LiveSessions ever observed.
func (d *FakeDevice) MaxLiveSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxLive
}

// FakeSession is a scriptable shutter.Session.
type FakeSession struct {
	device  *FakeDevice
	targets []shutter.OutputTarget
	cb      shutter.SessionCallbacks

	mu         sync.Mutex
	requestErr error
	requests   []shutter.CaptureRequest
	live       bool
	closed     bool
}

// Targets returns the targets the session was created with.
func (s *FakeSession) Targets() []shutter.OutputTarget {
	return append([]shutter.OutputTarget(nil), s.targets...)
}

// Roles returns the role of every target, in order.
func (s *FakeSession) Roles() []shutter.Role {
	roles := make([]shutter.Role, len(s.targets))
	for i, t := range s.targets {
		roles[i] = t.Role
	}
	return roles
}

// Configure fires the configured callback. The session counts as live from
// here until it is closed.
func (s *FakeSession) Configure() {
	s.mu.Lock()
	if !s.closed && !s.live {
		s.live = true
		s.device.mu.Lock()
		s.device.live++
		if s.device.live > s.device.maxLive {
			s.device.maxLive = s.device.live
		}
		s.device.mu.Unlock()
	}
	s.mu.Unlock()
	s.cb.OnConfigured(s)
}

// FailConfigure fires the configure-failed callback.
func (s *FakeSession) FailConfigure(err error) {
	s.cb.OnConfigureFailed(s, err)
}

// FailRequests makes SetRepeatingRequest return err.
func (s *FakeSession) FailRequests(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestErr = err
}

// SetRepeatingRequest implements shutter.Session.
func (s *FakeSession) SetRepeatingRequest(req shutter.CaptureRequest) error {
	s.device.mu.Lock()
	hook := s.device.onRequest
	s.device.mu.Unlock()
	if hook != nil {
		hook(req)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrFakeClosed
	}
	if s.requestErr != nil {
		return s.requestErr
	}
	s.requests = append(s.requests, req)
	return nil
}

// Requests returns the repeating requests submitted to the session.
func (s *FakeSession) Requests() []shutter.CaptureRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]shutter.CaptureRequest(nil), s.requests...)
}

// Close implements shutter.Session.
func (s *FakeSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	wasLive := s.live
	s.live = false
	s.mu.Unlock()

	if wasLive {
		s.device.mu.Lock()
		s.device.live--
		s.device.mu.Unlock()
	}
	return nil
}

// Closed reports whether Close was called.
func (s *FakeSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// -----------------------------------------------------------------------------
// Surfaces
// -----------------------------------------------------------------------------

// FakeSurface is a shutter.PreviewSurface remembering its buffer size.
type FakeSurface struct {
	id string

	mu   sync.Mutex
	size shutter.Size
}

// NewFakeSurface creates a surface with the given id.
func NewFakeSurface(id string) *FakeSurface {
	return &FakeSurface{id: id}
}

// SurfaceID implements shutter.Surface.
func (s *FakeSurface) SurfaceID() string {
	return s.id
}

// SetDefaultBufferSize implements shutter.PreviewSurface.
func (s *FakeSurface) SetDefaultBufferSize(size shutter.Size) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
}

// BufferSize returns the last size set.
func (s *FakeSurface) BufferSize() shutter.Size {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// -----------------------------------------------------------------------------
// Recorders
// -----------------------------------------------------------------------------

// FakeRecorder is a shutter.RecorderSink recording the calls made on it.
type FakeRecorder struct {
	surface *FakeSurface

	mu         sync.Mutex
	prepareErr error
	startErr   error
	stopErr    error
	calls      []string
	dest       shutter.Destination
	cfg        shutter.VideoConfig
	released   bool
}

// Prepare implements shutter.RecorderSink.
func (r *FakeRecorder) Prepare(dest shutter.Destination, cfg shutter.VideoConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "prepare")
	if r.prepareErr != nil {
		return r.prepareErr
	}
	r.dest = dest
	r.cfg = cfg
	return nil
}

// Surface implements shutter.RecorderSink.
func (r *FakeRecorder) Surface() shutter.Surface {
	return r.surface
}

// Start implements shutter.RecorderSink.
func (r *FakeRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "start")
	return r.startErr
}

// Stop implements shutter.RecorderSink.
func (r *FakeRecorder) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "stop")
	return r.stopErr
}

// Reset implements shutter.RecorderSink.
func (r *FakeRecorder) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, "reset")
	return nil
}

// Release implements shutter.RecorderSink.
func (r *FakeRecorder) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return ErrFakeClosed
	}
	r.calls = append(r.calls, "release")
	r.released = true
	return nil
}

// Calls returns the sink methods invoked, in order.
func (r *FakeRecorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Destination returns the destination passed to Prepare.
func (r *FakeRecorder) Destination() shutter.Destination {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dest
}

// Config returns the video configuration passed to Prepare.
func (r *FakeRecorder) Config() shutter.VideoConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Released reports whether Release was called.
func (r *FakeRecorder) Released() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.released
}

// RecorderPool hands out FakeRecorders and counts the ones still held.
type RecorderPool struct {
	mu         sync.Mutex
	recorders  []*FakeRecorder
	acquireErr error
	prepareErr error
	startErr   error
	stopErr    error
}

// NewRecorderPool creates an empty pool.
func NewRecorderPool() *RecorderPool {
	return &RecorderPool{}
}

// FailAcquire makes Acquire return err.
func (p *RecorderPool) FailAcquire(err error) *RecorderPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquireErr = err
	return p
}

// FailPrepare makes new recorders fail Prepare with err.
func (p *RecorderPool) FailPrepare(err error) *RecorderPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prepareErr = err
	return p
}

// FailStart makes new recorders fail Start with err.
func (p *RecorderPool) FailStart(err error) *RecorderPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.startErr = err
	return p
}

// FailStop makes new recorders fail Stop with err.
func (p *RecorderPool) FailStop(err error) *RecorderPool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopErr = err
	return p
}

// Acquire is a shutter.RecorderFactory.
func (p *RecorderPool) Acquire() (shutter.RecorderSink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	r := &FakeRecorder{
		surface:    NewFakeSurface(fmt.Sprintf("recorder-%d", len(p.recorders)+1)),
		prepareErr: p.prepareErr,
		startErr:   p.startErr,
		stopErr:    p.stopErr,
	}
	p.recorders = append(p.recorders, r)
	return r, nil
}

// Recorders returns every recorder handed out, oldest first.
func (p *RecorderPool) Recorders() []*FakeRecorder {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*FakeRecorder(nil), p.recorders...)
}

// Held returns the number of recorders acquired and not released.
func (p *RecorderPool) Held() int {
	held := 0
	for _, r := range p.Recorders() {
		if !r.Released() {
			held++
		}
	}
	return held
}

// -----------------------------------------------------------------------------
// Output
// -----------------------------------------------------------------------------

// FakeResolver hands out numbered destinations.
type FakeResolver struct {
	mu   sync.Mutex
	n    int
	err  error
	seen []shutter.Destination
}

// Fail makes Resolve return err.
func (r *FakeResolver) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Resolve implements shutter.OutputResolver.
func (r *FakeResolver) Resolve(_ context.Context) (shutter.Destination, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return shutter.Destination{}, r.err
	}
	r.n++
	d := shutter.Destination{
		ID:           fmt.Sprintf("rec-%d", r.n),
		Path:         fmt.Sprintf("/tmp/Movies/Test/video_%d.mp4", r.n),
		DisplayName:  fmt.Sprintf("video_%d.mp4", r.n),
		MimeType:     "video/mp4",
		RelativePath: "Movies/Test",
	}
	r.seen = append(r.seen, d)
	return d, nil
}

// Resolved returns every destination handed out.
func (r *FakeResolver) Resolved() []shutter.Destination {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shutter.Destination(nil), r.seen...)
}

// -----------------------------------------------------------------------------
// Observer
// -----------------------------------------------------------------------------

// Transition is one observed state change.
type Transition struct {
	From, To shutter.State
}

// RecordingObserver records every notification it receives.
type RecordingObserver struct {
	mu          sync.Mutex
	transitions []Transition
	errors      []error
	started     []shutter.Destination
	stopped     []shutter.Destination
}

// OnStateChange implements shutter.Observer.
func (o *RecordingObserver) OnStateChange(from, to shutter.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, Transition{From: from, To: to})
}

// OnError implements shutter.Observer.
func (o *RecordingObserver) OnError(_ string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errors = append(o.errors, err)
}

// OnRecordingStarted implements shutter.Observer.
func (o *RecordingObserver) OnRecordingStarted(dest shutter.Destination) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, dest)
}

// OnRecordingStopped implements shutter.Observer.
func (o *RecordingObserver) OnRecordingStopped(dest shutter.Destination) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = append(o.stopped, dest)
}

// States returns the sequence of states entered.
func (o *RecordingObserver) States() []shutter.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]shutter.State, len(o.transitions))
	for i, t := range o.transitions {
		out[i] = t.To
	}
	return out
}

// Errors returns the errors reported.
func (o *RecordingObserver) Errors() []error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]error(nil), o.errors...)
}

// Started returns the destinations of started recordings.
func (o *RecordingObserver) Started() []shutter.Destination {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]shutter.Destination(nil), o.started...)
}

// Stopped returns the destinations of stopped recordings.
func (o *RecordingObserver) Stopped() []shutter.Destination {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]shutter.Destination(nil), o.stopped...)
}
