package shutter

import (
	"context"
	"fmt"
)

// Facing is the direction a camera lens points.
type Facing int

const (
	FacingUnknown Facing = iota
	FacingBack
	FacingFront
	FacingExternal
)

// String returns the string representation of the facing.
func (f Facing) String() string {
	switch f {
	case FacingBack:
		return "back"
	case FacingFront:
		return "front"
	case FacingExternal:
		return "external"
	default:
		return "unknown"
	}
}

// ParseFacing converts a facing name into a Facing.
func ParseFacing(s string) (Facing, error) {
	switch s {
	case "back":
		return FacingBack, nil
	case "front":
		return FacingFront, nil
	case "external":
		return FacingExternal, nil
	case "", "unknown":
		return FacingUnknown, nil
	default:
		return FacingUnknown, fmt.Errorf("unknown facing %q", s)
	}
}

// Size is a pixel size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String formats the size as WxH.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// DeviceInfo describes a camera as listed by the platform.
type DeviceInfo struct {
	ID     string
	Name   string
	Facing Facing

	// OutputSizes are the sizes supported for preview surfaces, in the
	// platform's preferred order.
	OutputSizes []Size
}

// DeviceManager lists and opens camera devices.
type DeviceManager interface {
	// ListDevices returns the cameras known to the platform.
	ListDevices(ctx context.Context) ([]DeviceInfo, error)

	// OpenDevice starts opening a device. The outcome is delivered through
	// exactly one of the callbacks, on any goroutine. A returned error means
	// no callback will be delivered.
	OpenDevice(ctx context.Context, id string, cb DeviceCallbacks) error
}

// DeviceCallbacks receives device state changes.
type DeviceCallbacks struct {
	OnOpened       func(Device)
	OnDisconnected func(Device)
	OnError        func(Device, error)
}

// Device is an opened camera.
type Device interface {
	// ID returns the identifier the device was opened with.
	ID() string

	// CreateSession starts configuring a capture session over targets.
	// The outcome is delivered through the callbacks, on any goroutine.
	CreateSession(ctx context.Context, targets []OutputTarget, cb SessionCallbacks) error

	// Close releases the device.
	Close() error
}

// SessionCallbacks receives session configuration outcomes.
type SessionCallbacks struct {
	OnConfigured      func(Session)
	OnConfigureFailed func(Session, error)
}

// Session is a configured capture pipeline.
type Session interface {
	// SetRepeatingRequest makes req the continuously repeated capture.
	SetRepeatingRequest(req CaptureRequest) error

	// Close discards the session. It must not block when called from the
	// session's own OnConfigured callback.
	Close() error
}

// Template selects how the platform tunes a capture request.
type Template int

const (
	TemplatePreview Template = iota
	TemplateRecord
)

// String returns the string representation of the template.
func (t Template) String() string {
	switch t {
	case TemplatePreview:
		return "preview"
	case TemplateRecord:
		return "record"
	default:
		return "unknown"
	}
}

// CaptureRequest is a repeating capture over a set of targets.
type CaptureRequest struct {
	Template Template
	Targets  []OutputTarget
}

// Surface is an opaque drawable buffer owned by a UI or encoder collaborator.
type Surface interface {
	SurfaceID() string
}

// PreviewSurface is a surface supplied by the UI for live preview.
type PreviewSurface interface {
	Surface

	// SetDefaultBufferSize sizes the surface's buffers to the preview size.
	SetDefaultBufferSize(size Size)
}

// Role tags what an output target is used for.
type Role int

const (
	RolePreview Role = iota
	RoleRecord
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case RolePreview:
		return "preview"
	case RoleRecord:
		return "record"
	default:
		return "unknown"
	}
}

// OutputTarget pairs a role with the surface frames are delivered to.
type OutputTarget struct {
	Role    Role
	Surface Surface
}

// RecorderSink encodes frames written to its surface into an output file.
type RecorderSink interface {
	// Prepare binds the sink to dest and the video configuration.
	Prepare(dest Destination, cfg VideoConfig) error

	// Surface returns the surface the capture session writes frames to.
	// Valid after Prepare.
	Surface() Surface

	// Start begins encoding.
	Start() error

	// Stop finalizes the output file.
	Stop() error

	// Reset returns the sink to its unprepared state.
	Reset() error

	// Release frees the sink. It must not be used afterwards.
	Release() error
}

// RecorderFactory acquires a fresh recorder sink for one recording.
type RecorderFactory func() (RecorderSink, error)

// Destination is a writable output location for one recording.
type Destination struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	DisplayName  string `json:"display_name"`
	MimeType     string `json:"mime_type"`
	RelativePath string `json:"relative_path"`
}

// OutputResolver produces a new destination for every recording.
type OutputResolver interface {
	Resolve(ctx context.Context) (Destination, error)
}

// OutputResolverFunc adapts a function to OutputResolver.
type OutputResolverFunc func(ctx context.Context) (Destination, error)

// Resolve calls f.
func (f OutputResolverFunc) Resolve(ctx context.Context) (Destination, error) {
	return f(ctx)
}

// Permissions reports whether camera access was granted. Prompting is the
// caller's concern.
type Permissions interface {
	CameraGranted() bool
}

// PermissionsFunc adapts a function to Permissions.
type PermissionsFunc func() bool

// CameraGranted calls f.
func (f PermissionsFunc) CameraGranted() bool {
	return f()
}

// Granted is a Permissions that always grants access.
var Granted Permissions = PermissionsFunc(func() bool { return true })
