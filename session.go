package shutter

import "github.com/google/uuid"

// SessionInfo describes the controller's current capture session.
type SessionInfo struct {
	ID         string   `json:"id"`
	Template   Template `json:"template"`
	Roles      []Role   `json:"roles"`
	Configured bool     `json:"configured"`
}

// captureSession is one configured pipeline bound to an immutable target
// set. A new set means a new captureSession; pointer identity tells a
// current session from a superseded one.
type captureSession struct {
	id        string
	operation string
	template  Template
	targets   []OutputTarget

	// session is set once the platform reports the session configured.
	session Session

	// done settles the operation that requested this session.
	done *Future

	// carry is an error already reported by the requesting operation that
	// done resolves with once the session is running.
	carry error
}

func newCaptureSession(operation string, template Template, targets []OutputTarget, done *Future) *captureSession {
	return &captureSession{
		id:        uuid.NewString(),
		operation: operation,
		template:  template,
		targets:   append([]OutputTarget(nil), targets...),
		done:      done,
	}
}

// configured reports whether the platform session is live.
func (s *captureSession) configured() bool {
	return s.session != nil
}

// request builds the repeating request over every target of the session.
func (s *captureSession) request() CaptureRequest {
	return CaptureRequest{
		Template: s.template,
		Targets:  append([]OutputTarget(nil), s.targets...),
	}
}

func (s *captureSession) info() *SessionInfo {
	roles := make([]Role, len(s.targets))
	for i, t := range s.targets {
		roles[i] = t.Role
	}
	return &SessionInfo{
		ID:         s.id,
		Template:   s.template,
		Roles:      roles,
		Configured: s.configured(),
	}
}

// deviceHandle is one open attempt and, once opened, the device it produced.
type deviceHandle struct {
	info        DeviceInfo
	previewSize Size

	// dev is nil until the opened callback arrives.
	dev Device

	// done settles the Open call while the attempt is pending.
	done *Future
}

// recording is the sink owned for the duration of one recording.
type recording struct {
	sink RecorderSink
	dest Destination
}
