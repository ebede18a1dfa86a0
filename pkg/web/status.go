package web

import (
	"time"

	"github.com/zoobzio/shutter"
)

// Status is the JSON view of a controller snapshot.
type Status struct {
	State       string               `json:"state"`
	Recording   bool                 `json:"recording"`
	LastError   string               `json:"last_error,omitempty"`
	Session     *shutter.SessionInfo `json:"session,omitempty"`
	Destination *shutter.Destination `json:"destination,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
}

// Failure is the JSON view of a recorded operation failure.
type Failure struct {
	Operation string    `json:"operation"`
	State     string    `json:"state"`
	Error     string    `json:"error"`
	At        time.Time `json:"at"`
}

// ErrorResponse is returned with every non-2xx response.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func newStatus(s shutter.Snapshot) Status {
	st := Status{
		State:       s.State.String(),
		Recording:   s.Recording,
		Session:     s.Session,
		Destination: s.Destination,
		Timestamp:   time.Now(),
	}
	if s.LastError != nil {
		st.LastError = s.LastError.Error()
	}
	return st
}

func newFailures(history []shutter.Failure) []Failure {
	out := make([]Failure, len(history))
	for i, f := range history {
		out[i] = Failure{
			Operation: f.Operation,
			State:     f.State.String(),
			Error:     f.Err.Error(),
			At:        f.At,
		}
	}
	return out
}
