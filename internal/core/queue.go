// Package core provides the runtime core tier of the component module:
// the serialization queue every module entry point runs through.
//
// The queue is caller-drained. A caller that finds it idle runs its own job
// and then every job enqueued meanwhile, in FIFO order, before returning. A
// caller that finds it busy only enqueues. Jobs therefore never overlap and a
// running job is never preempted, including when it enqueues more work from
// inside itself.
//
// Stdlib-only implementation.
package core

import (
	"errors"
	"sync"
)

// DefaultCapacity bounds the pending jobs of a queue created with capacity <= 0.
const DefaultCapacity = 1000

// ErrFull is returned when a job is rejected by a busy queue at capacity.
var ErrFull = errors.New("queue full (backpressure)")

type job struct {
	seq uint64
	fn  func() error
}

// Queue serializes jobs. Safe for concurrent use.
type Queue struct {
	mu       sync.Mutex
	pending  []job
	draining bool
	capacity int
	seq      uint64
}

// NewQueue creates a queue holding at most capacity pending jobs.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue{capacity: capacity}
}

// Run executes fn, now or after the job currently running.
//
// When the caller drains the queue, Run returns fn's own error once the
// queue is empty again. When the queue is busy, fn is enqueued and Run
// returns nil at once, or ErrFull without enqueuing. A panic in any job
// propagates to the draining caller; jobs still pending run on the next Run.
func (q *Queue) Run(fn func() error) error {
	q.mu.Lock()
	if q.draining {
		if len(q.pending) >= q.capacity {
			q.mu.Unlock()
			return ErrFull
		}
		q.seq++
		q.pending = append(q.pending, job{seq: q.seq, fn: fn})
		q.mu.Unlock()
		return nil
	}
	q.seq++
	own := q.seq
	q.pending = append(q.pending, job{seq: own, fn: fn})
	q.draining = true
	q.mu.Unlock()

	done := false
	defer func() {
		if !done {
			q.mu.Lock()
			q.draining = false
			q.mu.Unlock()
		}
	}()

	var result error
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			// released under the same lock that saw the queue empty
			q.draining = false
			q.mu.Unlock()
			done = true
			return result
		}
		next := q.pending[0]
		q.pending[0] = job{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := next.fn(); next.seq == own {
			result = err
		}
	}
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Busy reports whether a caller is draining the queue.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.draining
}
