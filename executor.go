package shutter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"go.uber.org/zap"
)

// DefaultDrainTimeout bounds how long Stop waits for queued work.
const DefaultDrainTimeout = 2 * time.Second

// Executor is a single serialized worker. Submitted tasks run one at a time
// on one goroutine, in submission order.
//
// An Executor is started when its screen becomes visible and stopped when it
// is hidden. Stop drains queued work before returning, so no task outlives
// the visible lifetime.
type Executor struct {
	name         string
	drainTimeout time.Duration
	clock        clockz.Clock
	logger       *zap.Logger

	mu       sync.Mutex
	queue    []func()
	running  bool
	stopping bool
	abandon  bool
	wake     chan struct{}
	done     chan struct{}
}

// NewExecutor creates a stopped Executor. The name identifies it in logs.
func NewExecutor(name string) *Executor {
	return &Executor{
		name:         name,
		drainTimeout: DefaultDrainTimeout,
		clock:        clockz.RealClock,
		logger:       zap.NewNop(),
	}
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// DrainTimeout sets how long Stop waits for queued work before abandoning it.
// Default: 2s. Must be called before Start().
func (e *Executor) DrainTimeout(d time.Duration) *Executor {
	e.drainTimeout = d
	return e
}

// Clock sets a custom clock for the drain bound.
// Use this with clockz.FakeClock for deterministic testing.
// Must be called before Start().
func (e *Executor) Clock(clock clockz.Clock) *Executor {
	e.clock = clock
	return e
}

// Logger sets the logger. Must be called before Start().
func (e *Executor) Logger(logger *zap.Logger) *Executor {
	e.logger = logger.With(zap.String("executor", e.name))
	return e
}

// Running reports whether the executor accepts work.
func (e *Executor) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running && !e.stopping
}

// Start creates the worker if it is not running. Calling Start on a running
// executor does nothing.
func (e *Executor) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stopping = false
	e.abandon = false
	e.queue = nil
	e.wake = make(chan struct{}, 1)
	e.done = make(chan struct{})
	wake, done := e.wake, e.done
	e.mu.Unlock()

	go e.run(wake, done)

	e.logger.Debug("executor started")
	capitan.Emit(context.Background(), ExecutorStarted,
		KeyDrainTimeout.Field(e.drainTimeout),
	)
}

// Submit enqueues fn. It returns ErrExecutorStopped if the executor is not
// running or is stopping.
func (e *Executor) Submit(fn func()) error {
	e.mu.Lock()
	if !e.running || e.stopping {
		e.mu.Unlock()
		return ErrExecutorStopped
	}
	e.queue = append(e.queue, fn)
	wake := e.wake
	e.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush blocks until every task submitted before it has run, or ctx is done.
func (e *Executor) Flush(ctx context.Context) error {
	reached := make(chan struct{})
	if err := e.Submit(func() { close(reached) }); err != nil {
		return err
	}
	select {
	case <-reached:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops accepting work, lets the worker drain the queue and waits for it
// to terminate. If the queue has not drained within the drain timeout, the
// remaining tasks are abandoned, the worker is joined after its current task
// and ErrDrainTimeout is returned. Stop on a stopped executor does nothing.
//
// Stop must not be called from a task running on the executor.
func (e *Executor) Stop() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.stopping = true
	wake, done := e.wake, e.done
	e.mu.Unlock()

	select {
	case wake <- struct{}{}:
	default:
	}

	var err error
	timer := e.clock.NewTimer(e.drainTimeout)
	select {
	case <-done:
		timer.Stop()
	case <-timer.C():
		e.mu.Lock()
		e.abandon = true
		dropped := len(e.queue)
		e.mu.Unlock()

		e.logger.Warn("executor drain timeout, abandoning queued work",
			zap.Duration("drain_timeout", e.drainTimeout),
			zap.Int("dropped", dropped),
		)
		capitan.Emit(context.Background(), ExecutorDrainTimeout,
			KeyDrainTimeout.Field(e.drainTimeout),
			KeyDropped.Field(dropped),
		)
		<-done
		err = fmt.Errorf("stop %s: %w", e.name, ErrDrainTimeout)
	}

	e.mu.Lock()
	e.running = false
	e.stopping = false
	e.queue = nil
	e.mu.Unlock()

	e.logger.Debug("executor stopped")
	capitan.Emit(context.Background(), ExecutorStopped)
	return err
}

// run is the worker loop.
func (e *Executor) run(wake <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		e.mu.Lock()
		if e.abandon {
			e.queue = nil
			e.mu.Unlock()
			return
		}
		if len(e.queue) == 0 {
			stopping := e.stopping
			e.mu.Unlock()
			if stopping {
				return
			}
			<-wake
			continue
		}
		task := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()

		e.invoke(task)
	}
}

// invoke runs a task, keeping the worker alive if it panics.
func (e *Executor) invoke(task func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("executor task panicked", zap.Any("panic", r))
		}
	}()
	task()
}
