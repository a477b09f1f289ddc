package fractalx

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/comalice/fractalx/internal/core"
	"github.com/comalice/fractalx/stream"
)

// TaskRunner performs one task execution. It may dispatch back into the tree
// at any later time; Execute never waits for it.
type TaskRunner func(data any)

// arena holds everything shared by the contexts of one tree: the component
// index, the interface streams, the task runners and the diagnostics log.
// A module's arena also carries its serialization queue.
type arena struct {
	index     *Index
	log       *diagnostics
	queue     *core.Queue
	telemetry *telemetry

	mu      sync.RWMutex
	streams map[string]*stream.Stream[any]
	tasks   map[string]TaskRunner
	rootID  string
}

func newArena(logger *slog.Logger) *arena {
	return &arena{
		index:     newIndex(),
		log:       newDiagnostics(logger),
		telemetry: defaultTelemetry(),
		streams:   make(map[string]*stream.Stream[any]),
		tasks:     make(map[string]TaskRunner),
	}
}

// serialize runs fn through the module queue when the arena has one, so a
// cycle started from any entry point is never preempted: a call made while
// another job runs is queued behind it and returns nil. Without a queue fn
// runs at once.
func (c *Context) serialize(source string, fn func() error) error {
	q := c.arena.queue
	if q == nil {
		return fn()
	}
	err := q.Run(fn)
	if errors.Is(err, core.ErrFull) {
		return c.fail(ErrQueueFull, source, "dispatch queue full")
	}
	return err
}

// Context is an address-scoped handle onto a shared arena. Contexts never own
// state; copying one copies only the id and the arena reference.
type Context struct {
	id    string
	arena *arena
}

// NewContext creates a context with id over a fresh, empty arena.
func NewContext(id string) *Context {
	return &Context{id: id, arena: newArena(nil)}
}

// ID returns the hierarchical id this context addresses.
func (c *Context) ID() string { return c.id }

// Name returns the last segment of the id.
func (c *Context) Name() string { return BaseName(c.id) }

// Child derives the context of child name. The arena is shared, never copied.
func (c *Context) Child(name string) *Context {
	return &Context{id: DeriveID(c.id, name), arena: c.arena}
}

// Components returns the shared component index.
func (c *Context) Components() *Index { return c.arena.index }

// Space returns the component space this context addresses.
func (c *Context) Space() (*Space, bool) { return c.arena.index.Get(c.id) }

// Warn records a warning in the shared log.
func (c *Context) Warn(source, message string) {
	c.arena.log.record(slog.LevelWarn, nil, source, message)
}

// Error records an error in the shared log.
func (c *Context) Error(source, message string) {
	c.arena.log.record(slog.LevelError, nil, source, message)
}

// WarnLog returns the recorded warnings, oldest first.
func (c *Context) WarnLog() []Diagnostic { return c.arena.log.warnings() }

// ErrorLog returns the recorded errors, oldest first.
func (c *Context) ErrorLog() []Diagnostic { return c.arena.log.errors() }

// OnDiagnostic installs a hook called for every new warning and error.
func (c *Context) OnDiagnostic(hook DiagnosticHook) { c.arena.log.setHook(hook) }

// SetLogger replaces the structured logger diagnostics are written to.
func (c *Context) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	c.arena.log.mu.Lock()
	c.arena.log.logger = logger
	c.arena.log.mu.Unlock()
}

// RegisterTask installs runner for task name, replacing any previous runner.
func (c *Context) RegisterTask(name string, runner TaskRunner) {
	c.arena.mu.Lock()
	defer c.arena.mu.Unlock()
	c.arena.tasks[name] = runner
}

// Runner returns the task runner registered for name.
func (c *Context) Runner(name string) (TaskRunner, bool) {
	c.arena.mu.RLock()
	defer c.arena.mu.RUnlock()
	r, ok := c.arena.tasks[name]
	return r, ok
}

// Stream returns the live interface stream for name.
func (c *Context) Stream(name string) (*stream.Stream[any], bool) {
	c.arena.mu.RLock()
	defer c.arena.mu.RUnlock()
	s, ok := c.arena.streams[name]
	return s, ok
}

// StreamNames returns the names of the live interface streams, sorted.
func (c *Context) StreamNames() []string {
	c.arena.mu.RLock()
	defer c.arena.mu.RUnlock()
	return sortedKeys(c.arena.streams)
}

// RootID returns the id interfaces are recomputed from.
func (c *Context) RootID() string {
	c.arena.mu.RLock()
	defer c.arena.mu.RUnlock()
	return c.arena.rootID
}

func (c *Context) setRootID(id string) {
	c.arena.mu.Lock()
	c.arena.rootID = id
	c.arena.mu.Unlock()
}

func (c *Context) setStream(name string, s *stream.Stream[any]) {
	c.arena.mu.Lock()
	c.arena.streams[name] = s
	c.arena.mu.Unlock()
}

// disposeStreams disposes and forgets every interface stream.
func (c *Context) disposeStreams() {
	c.arena.mu.Lock()
	streams := c.arena.streams
	c.arena.streams = make(map[string]*stream.Stream[any])
	c.arena.mu.Unlock()

	for _, name := range sortedKeys(streams) {
		streams[name].Dispose()
	}
}

// fail records an error of the given kind and returns it as a *Diagnostic.
func (c *Context) fail(kind error, source, message string) error {
	return c.arena.log.record(slog.LevelError, kind, source, message)
}

func (c *Context) warnf(kind error, source, message string) {
	c.arena.log.record(slog.LevelWarn, kind, source, message)
}
