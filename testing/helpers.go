// Package testing provides fakes and helpers for testing code built on a
// shutter Controller without a camera.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/zoobzio/shutter"
)

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForState waits until the controller reaches the expected state or timeout occurs.
func WaitForState(t *testing.T, c *shutter.Controller, expected shutter.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return c.State() == expected
	})
}

// RequireState fails the test immediately if the controller is not in the expected state.
func RequireState(t *testing.T, c *shutter.Controller, expected shutter.State) {
	t.Helper()
	if got := c.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// Await waits for f to settle and returns its error. It fails the test if f
// does not settle within timeout.
func Await(t *testing.T, f *shutter.Future, timeout time.Duration) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := f.Wait(ctx)
	if ctx.Err() != nil {
		t.Fatalf("future did not settle within %v", timeout)
	}
	return err
}

// Flush waits until every task already queued on exec has run.
func Flush(t *testing.T, exec *shutter.Executor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := exec.Flush(ctx); err != nil {
		t.Fatalf("flush executor: %v", err)
	}
}

// Rig is a controller wired to fakes on a started executor.
type Rig struct {
	Exec      *shutter.Executor
	Ctrl      *shutter.Controller
	Manager   *FakeDeviceManager
	Recorders *RecorderPool
	Resolver  *FakeResolver
	Observer  *RecordingObserver
	Surface   *FakeSurface
}

// NewRig builds a Rig around manager. The executor is stopped on cleanup.
func NewRig(t *testing.T, manager *FakeDeviceManager) *Rig {
	t.Helper()
	r := &Rig{
		Exec:      shutter.NewExecutor("test"),
		Manager:   manager,
		Recorders: NewRecorderPool(),
		Resolver:  &FakeResolver{},
		Observer:  &RecordingObserver{},
		Surface:   NewFakeSurface("preview"),
	}
	r.Ctrl = shutter.NewController(manager, r.Exec, r.Recorders.Acquire, r.Resolver).
		Observer(r.Observer).
		ErrorHistorySize(8)
	r.Exec.Start()
	t.Cleanup(func() {
		_ = r.Exec.Stop()
	})
	return r
}

// Device returns the device of the newest open attempt, failing the test if
// there is none.
func (r *Rig) Device(t *testing.T) *FakeDevice {
	t.Helper()
	a := r.Manager.LastAttempt()
	if a == nil {
		t.Fatal("no open attempt")
	}
	return a.Device
}
