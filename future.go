package shutter

import (
	"context"
	"sync"
)

// Future is the outcome of an asynchronous controller operation. It resolves
// on the executor once the operation has settled.
type Future struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// resolvedFuture returns a Future that has already settled with err.
func resolvedFuture(err error) *Future {
	f := newFuture()
	f.resolve(err)
	return f
}

// resolve settles the future. Only the first call has an effect.
func (f *Future) resolve(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done returns a channel closed when the operation has settled.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the operation's error. It is nil until Done is closed.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the operation settles or ctx is done.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
