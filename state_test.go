package shutter

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpening, "opening"},
		{StateIdle, "idle"},
		{StateConfiguringPreview, "configuring_preview"},
		{StatePreviewRunning, "preview_running"},
		{StateConfiguringRecord, "configuring_record"},
		{StatePreparing, "preparing"},
		{StateRecordRunning, "record_running"},
		{StateStopping, "stopping"},
		{StateError, "error"},
		{State(999), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestState_ClosedIsZero(t *testing.T) {
	var s State
	if s != StateClosed {
		t.Errorf("expected zero State to be closed, got %s", s)
	}
}

func TestState_Pending(t *testing.T) {
	pending := map[State]bool{
		StateOpening:            true,
		StateConfiguringPreview: true,
		StateConfiguringRecord:  true,
		StatePreparing:          true,
		StateStopping:           true,
	}
	for s := StateClosed; s <= StateError; s++ {
		if got := s.pending(); got != pending[s] {
			t.Errorf("%s.pending() = %v, want %v", s, got, pending[s])
		}
	}
}

func TestState_Recording(t *testing.T) {
	recording := map[State]bool{
		StatePreparing:     true,
		StateRecordRunning: true,
		StateStopping:      true,
	}
	for s := StateClosed; s <= StateError; s++ {
		if got := s.Recording(); got != recording[s] {
			t.Errorf("%s.Recording() = %v, want %v", s, got, recording[s])
		}
	}
}
