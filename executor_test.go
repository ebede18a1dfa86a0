package shutter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestExecutor_RunsTasksInOrder(t *testing.T) {
	e := NewExecutor("test")
	e.Start()

	var mu sync.Mutex
	var order []int
	for i := 0; i < 100; i++ {
		if err := e.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if len(order) != 100 {
		t.Fatalf("expected 100 tasks to run, got %d", len(order))
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("task %d ran at position %d", v, i)
		}
	}
}

func TestExecutor_NeverRunsConcurrently(t *testing.T) {
	e := NewExecutor("test")
	e.Start()

	var mu sync.Mutex
	active, peak := 0, 0
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = e.Submit(func() {
					mu.Lock()
					active++
					if active > peak {
						peak = active
					}
					mu.Unlock()
					time.Sleep(time.Microsecond)
					mu.Lock()
					active--
					mu.Unlock()
				})
			}
		}()
	}
	wg.Wait()

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if peak != 1 {
		t.Errorf("expected at most one task at a time, saw %d", peak)
	}
}

func TestExecutor_StartIsIdempotent(t *testing.T) {
	e := NewExecutor("test")
	e.Start()
	e.Start()

	if !e.Running() {
		t.Fatal("expected executor to be running")
	}

	ran := make(chan struct{})
	if err := e.Submit(func() { close(ran) }); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	<-ran

	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if e.Running() {
		t.Error("expected executor to be stopped")
	}
}

func TestExecutor_SubmitWhenStopped(t *testing.T) {
	e := NewExecutor("test")

	if err := e.Submit(func() {}); !errors.Is(err, ErrExecutorStopped) {
		t.Errorf("expected ErrExecutorStopped before Start, got %v", err)
	}

	e.Start()
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if err := e.Submit(func() {}); !errors.Is(err, ErrExecutorStopped) {
		t.Errorf("expected ErrExecutorStopped after Stop, got %v", err)
	}
}

func TestExecutor_StopWhenStopped(t *testing.T) {
	e := NewExecutor("test")
	if err := e.Stop(); err != nil {
		t.Errorf("expected nil stopping an idle executor, got %v", err)
	}
}

func TestExecutor_Restart(t *testing.T) {
	e := NewExecutor("test")

	for round := 0; round < 3; round++ {
		e.Start()
		ran := false
		if err := e.Submit(func() { ran = true }); err != nil {
			t.Fatalf("round %d: Submit() error = %v", round, err)
		}
		if err := e.Stop(); err != nil {
			t.Fatalf("round %d: Stop() error = %v", round, err)
		}
		if !ran {
			t.Errorf("round %d: expected task to run before Stop returned", round)
		}
	}
}

func TestExecutor_RecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	e := NewExecutor("test").Logger(zap.New(core))
	e.Start()

	_ = e.Submit(func() { panic("boom") })
	ran := make(chan struct{})
	_ = e.Submit(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task after panic did not run")
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if logs.FilterMessage("executor task panicked").Len() != 1 {
		t.Error("expected panic to be logged")
	}
}

func TestExecutor_Flush(t *testing.T) {
	e := NewExecutor("test")
	e.Start()
	defer e.Stop()

	count := 0
	for i := 0; i < 10; i++ {
		_ = e.Submit(func() { count++ })
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if count != 10 {
		t.Errorf("expected 10 tasks before flush returned, got %d", count)
	}
}

func TestExecutor_DrainTimeout(t *testing.T) {
	clock := clockz.NewFakeClock()
	core, logs := observer.New(zapcore.WarnLevel)
	e := NewExecutor("test").
		Clock(clock).
		DrainTimeout(500 * time.Millisecond).
		Logger(zap.New(core))
	e.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	_ = e.Submit(func() {
		close(started)
		<-release
	})
	abandoned := false
	_ = e.Submit(func() { abandoned = true })
	<-started

	stopped := make(chan error, 1)
	go func() { stopped <- e.Stop() }()

	timedOut := waitFor(time.Second, func() bool {
		clock.Advance(500 * time.Millisecond)
		clock.BlockUntilReady()
		return logs.FilterMessage("executor drain timeout, abandoning queued work").Len() > 0
	})
	if !timedOut {
		t.Fatal("expected drain timeout to be logged")
	}

	// The worker is joined after the task in flight finishes.
	select {
	case <-stopped:
		t.Fatal("Stop returned before the running task finished")
	default:
	}
	close(release)

	select {
	case err := <-stopped:
		if !errors.Is(err, ErrDrainTimeout) {
			t.Errorf("expected ErrDrainTimeout, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}

	if abandoned {
		t.Error("expected queued task to be abandoned")
	}
	if e.Running() {
		t.Error("expected executor to be stopped")
	}

	entry := logs.All()[0]
	if entry.ContextMap()["dropped"] != int64(1) {
		t.Errorf("expected dropped=1, got %v", entry.ContextMap()["dropped"])
	}
}

// waitFor polls condition until it holds or timeout passes.
func waitFor(timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
