package testutil

import (
	"sync"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/stream"
)

// Recorder is an interface handler that keeps every value pushed to its
// stream. It also keeps the module API so tests can trigger events embedded
// in interface values, the way a real view would.
type Recorder struct {
	mu         sync.Mutex
	api        fractalx.API
	values     []any
	attaches   int
	reattaches int
	disposed   bool
	unsub      func()
	onValue    func(any)
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Factory returns a HandlerFactory that always hands out r.
func (r *Recorder) Factory() fractalx.HandlerFactory {
	return func(api fractalx.API) fractalx.InterfaceHandler {
		r.mu.Lock()
		r.api = api
		r.mu.Unlock()
		return r
	}
}

// Attach records the stream's current value and subscribes to it.
func (r *Recorder) Attach(s *stream.Stream[any]) {
	r.mu.Lock()
	r.attaches++
	r.mu.Unlock()
	r.bind(s)
}

// Reattach rebinds to the stream created by a hot swap.
func (r *Recorder) Reattach(s *stream.Stream[any]) {
	r.mu.Lock()
	r.reattaches++
	r.mu.Unlock()
	r.bind(s)
}

func (r *Recorder) bind(s *stream.Stream[any]) {
	r.mu.Lock()
	if r.unsub != nil {
		r.unsub()
	}
	r.mu.Unlock()

	r.record(s.Get())
	unsub := s.Subscribe(r.record)

	r.mu.Lock()
	r.unsub = unsub
	r.mu.Unlock()
}

func (r *Recorder) record(v any) {
	r.mu.Lock()
	r.values = append(r.values, v)
	fn := r.onValue
	r.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// OnValue installs a callback run for every recorded value.
func (r *Recorder) OnValue(fn func(any)) {
	r.mu.Lock()
	r.onValue = fn
	r.mu.Unlock()
}

// Dispose marks the recorder disposed.
func (r *Recorder) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disposed = true
}

// Last returns the most recent value, or nil.
func (r *Recorder) Last() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return nil
	}
	return r.values[len(r.values)-1]
}

// Values returns every recorded value, oldest first.
func (r *Recorder) Values() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.values...)
}

// Reset forgets the recorded values.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = nil
}

// Counts returns how often Attach and Reattach were called.
func (r *Recorder) Counts() (attaches, reattaches int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attaches, r.reattaches
}

// Disposed reports whether Dispose was called.
func (r *Recorder) Disposed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disposed
}

// Trigger resolves ev with payload and dispatches it through the module API.
func (r *Recorder) Trigger(ev fractalx.EventData, payload any) error {
	r.mu.Lock()
	api := r.api
	r.mu.Unlock()
	return api.Dispatch(ev.Resolve(payload))
}
