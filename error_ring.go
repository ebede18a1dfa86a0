package shutter

import (
	"sync"
	"time"
)

// Failure is one surfaced controller error.
type Failure struct {
	Operation string
	State     State
	Err       error
	At        time.Time
}

// failureRing is a thread-safe ring buffer of recent failures.
type failureRing struct {
	mu       sync.RWMutex
	failures []Failure
	size     int
	head     int
	count    int
}

// newFailureRing creates a ring with the given capacity.
// If size is 0, history is disabled and a nil ring is returned.
func newFailureRing(size int) *failureRing {
	if size <= 0 {
		return nil
	}
	return &failureRing{
		failures: make([]Failure, size),
		size:     size,
	}
}

// push records f, overwriting the oldest entry when full.
func (r *failureRing) push(f Failure) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.failures[r.head] = f
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// clear forgets all failures.
func (r *failureRing) clear() {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.failures {
		r.failures[i] = Failure{}
	}
	r.head = 0
	r.count = 0
}

// all returns the recorded failures, oldest first.
func (r *failureRing) all() []Failure {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	result := make([]Failure, r.count)
	start := (r.head - r.count + r.size) % r.size
	for i := 0; i < r.count; i++ {
		result[i] = r.failures[(start+i)%r.size]
	}
	return result
}

// last returns the most recent failure.
func (r *failureRing) last() (Failure, bool) {
	if r == nil {
		return Failure{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return Failure{}, false
	}
	return r.failures[(r.head-1+r.size)%r.size], true
}
