package shutter

import (
	"testing"
	"time"
)

func TestKeys_Names(t *testing.T) {
	tests := []struct {
		name string
		got  string
	}{
		{"old_state", KeyOldState.Field("closed").Key().Name()},
		{"new_state", KeyNewState.Field("opening").Key().Name()},
		{"error", KeyError.Field("boom").Key().Name()},
		{"operation", KeyOperation.Field(OpOpen).Key().Name()},
		{"callback", KeyCallback.Field("configured").Key().Name()},
		{"session_id", KeySessionID.Field("abc").Key().Name()},
		{"targets", KeyTargets.Field(2).Key().Name()},
		{"device", KeyDevice.Field("/dev/video0").Key().Name()},
		{"destination", KeyDestination.Field("/tmp/a.mp4").Key().Name()},
		{"dropped", KeyDropped.Field(3).Key().Name()},
		{"drain_timeout", KeyDrainTimeout.Field(time.Second).Key().Name()},
	}
	for _, tt := range tests {
		if tt.got != tt.name {
			t.Errorf("expected key %q, got %q", tt.name, tt.got)
		}
	}
}
