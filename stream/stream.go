// Package stream provides the value stream interface handlers consume.
//
// A Stream holds the most recently computed value and notifies subscribers
// synchronously, in subscription order, every time a new value is set.
//
//	s := stream.New(0)
//	unsub := s.Subscribe(func(v int) { fmt.Println(v) })
//	s.Set(1) // prints 1
//	unsub()
package stream

import "sync"

// Stream is a single-value observable. Safe for concurrent use; subscribers
// are called outside the internal lock.
type Stream[T any] struct {
	mu       sync.RWMutex
	value    T
	subs     []subscriber[T]
	nextID   int
	disposed bool
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// New creates a stream holding initial.
func New[T any](initial T) *Stream[T] {
	return &Stream[T]{value: initial}
}

// Get returns the latest value.
func (s *Stream[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set stores value and notifies subscribers. Ignored after Dispose.
func (s *Stream[T]) Set(value T) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.value = value
	subs := append([]subscriber[T](nil), s.subs...)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(value)
	}
}

// Subscribe registers fn for future values and returns a function that
// removes it. The current value is not replayed.
func (s *Stream[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return func() {}
	}
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber[T]{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// RemoveSubscribers drops every subscriber.
func (s *Stream[T]) RemoveSubscribers() {
	s.mu.Lock()
	s.subs = nil
	s.mu.Unlock()
}

// Dispose drops every subscriber and freezes the stream.
func (s *Stream[T]) Dispose() {
	s.mu.Lock()
	s.subs = nil
	s.disposed = true
	s.mu.Unlock()
}

// Disposed reports whether Dispose was called.
func (s *Stream[T]) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}
