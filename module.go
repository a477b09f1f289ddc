package fractalx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/comalice/fractalx/internal/core"
	"github.com/comalice/fractalx/internal/primitives"
	"github.com/comalice/fractalx/stream"
)

// API is what a module exposes to task runners and interface handlers.
type API interface {
	Dispatch(dd DispatchData) error
	Merge(name string, def *Definition) error
	MergeAll(defs map[string]*Definition) error
	Warn(source, message string)
	Error(source, message string)
}

// TaskFactory builds the runner of one task name. It is called once, at startup.
type TaskFactory func(api API) TaskRunner

// InterfaceHandler consumes one interface stream. Attach is called on first
// startup, Reattach on every hot swap with the freshly created stream.
type InterfaceHandler interface {
	Attach(s *stream.Stream[any])
	Reattach(s *stream.Stream[any])
}

// Disposer is implemented by interface handlers that hold resources.
type Disposer interface {
	Dispose()
}

// HandlerFactory builds the handler of one interface name. It is called once, at startup.
type HandlerFactory func(api API) InterfaceHandler

// ModuleDef declares a root component and the collaborators it runs with.
type ModuleDef struct {
	Root       *Definition
	Tasks      map[string]TaskFactory
	Interfaces map[string]HandlerFactory
}

// Option applies configuration to Module via functional options pattern.
type Option func(*Module)

// Module is the running root of a component tree.
// Thread-safe: every entry point runs through one serialization queue, so
// task goroutines and interface handlers may call it from anywhere.
type Module struct {
	id       string
	def      ModuleDef
	ctx      *Context
	handlers map[string]InterfaceHandler
	disposed atomic.Bool

	rootMu sync.RWMutex
	root   *Definition

	logger     *slog.Logger
	hook       DiagnosticHook
	queueSize  int
	persister  Persister
	publisher  Publisher
	visualizer Visualizer

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Run builds the root context, creates every task runner and interface
// handler once, merges the root definition and attaches the interface streams.
//
// A root interface without a handler factory is logged under
// "InterfaceHandlers" and skipped; the other interfaces still attach.
func Run(def ModuleDef, opts ...Option) *Module {
	m := &Module{
		id:       uuid.NewString(),
		def:      def,
		handlers: make(map[string]InterfaceHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.ctx = &Context{id: def.Root.Name, arena: newArena(m.logger)}
	m.ctx.arena.queue = core.NewQueue(m.queueSize)
	if m.tracerProvider != nil || m.meterProvider != nil {
		m.ctx.arena.telemetry = newTelemetry(m.tracers(), m.meters())
	}
	if m.hook != nil {
		m.ctx.OnDiagnostic(m.hook)
	}

	for _, name := range sortedKeys(def.Interfaces) {
		m.handlers[name] = def.Interfaces[name](m)
	}
	for _, name := range sortedKeys(def.Tasks) {
		m.ctx.RegisterTask(name, def.Tasks[name](m))
	}

	m.enqueue("run", func() error {
		m.attach(def.Root, nil)
		return nil
	})
	return m
}

// attach merges root at the root context and binds its interface streams.
// With last set it is a hot swap: states of surviving ids are carried over and
// handlers are re-bound instead of attached.
func (m *Module) attach(root *Definition, last map[string]*Space) {
	m.rootMu.Lock()
	m.root = root
	m.rootMu.Unlock()
	m.ctx.id = root.Name
	m.ctx.setRootID(root.Name)

	mergeAt("", m.ctx, root.Name, root)

	for id, old := range last {
		if sp, ok := m.ctx.arena.index.Get(id); ok {
			sp.setState(old.State())
		}
	}

	rootSpace, _ := m.ctx.arena.index.Get(root.Name)
	for _, name := range sortedKeys(root.Interfaces) {
		h, ok := m.handlers[name]
		if !ok {
			m.ctx.fail(ErrMissingInterfaceHandler, "InterfaceHandlers",
				fmt.Sprintf("'%s' module has no interface called '%s', missing interface handler", root.Name, name))
			continue
		}
		s := stream.New[any](root.Interfaces[name](m.ctx, rootSpace.State()))
		m.ctx.setStream(name, s)
		if last == nil {
			h.Attach(s)
		} else {
			h.Reattach(s)
		}
	}
}

// enqueue runs fn through the module queue. A rejected job is logged under
// source and reported as ErrQueueFull.
func (m *Module) enqueue(source string, fn func() error) error {
	return m.ctx.serialize(source, fn)
}

// Dispatch runs one dispatch cycle against the tree.
//
// The cycle error is returned when the cycle runs on this call. A call made
// while another cycle is running is queued behind it and returns nil; its
// failures reach only the diagnostics log. The snapshot is persisted and the
// record published once the dispatches the cycle queued have run.
func (m *Module) Dispatch(dd DispatchData) error {
	return m.enqueue("dispatch", func() error {
		err := runCycle(m.ctx, dd)
		if m.persister != nil || m.publisher != nil {
			after := func() error { m.afterCycle(dd, err); return nil }
			if qerr := m.ctx.arena.queue.Run(after); qerr != nil {
				after()
			}
		}
		return err
	})
}

// Merge merges def as child name of the root.
func (m *Module) Merge(name string, def *Definition) error {
	return m.enqueue("merge", func() error {
		Merge(m.ctx, name, def)
		return nil
	})
}

// MergeAll merges every definition of defs under the root.
func (m *Module) MergeAll(defs map[string]*Definition) error {
	return m.enqueue("merge", func() error {
		MergeAll(m.ctx, defs)
		return nil
	})
}

// Warn records a warning in the module log.
func (m *Module) Warn(source, message string) { m.ctx.Warn(source, message) }

// Error records an error in the module log.
func (m *Module) Error(source, message string) { m.ctx.Error(source, message) }

// Reattach hot swaps the root definition. The root context, the task runners
// and the interface handlers are kept; every id present before and after the
// swap keeps its state. Destroy hooks of the old tree are not run.
func (m *Module) Reattach(root *Definition) error {
	return m.enqueue("reattach", func() error {
		m.ctx.disposeStreams()
		last := m.ctx.arena.index.reset()
		m.attach(root, last)
		m.logger.Info("module reattached", "module", m.id, "root", root.Name, "components", m.ctx.arena.index.Len())
		return nil
	})
}

// Dispose unmerges the whole tree, running destroy hooks bottom-up, disposes
// the interface streams and marks the module disposed. It does not guard
// against a second call.
func (m *Module) Dispose() error {
	return m.enqueue("dispose", func() error {
		err := Unmerge(m.ctx)
		m.ctx.disposeStreams()
		m.disposed.Store(true)
		for _, name := range sortedKeys(m.handlers) {
			if d, ok := m.handlers[name].(Disposer); ok {
				d.Dispose()
			}
		}
		if m.publisher != nil {
			if cerr := m.publisher.Close(); cerr != nil {
				m.logger.Warn("publisher close failed", "module", m.id, "error", cerr)
			}
		}
		return err
	})
}

// IsDisposed reports whether Dispose ran.
func (m *Module) IsDisposed() bool { return m.disposed.Load() }

// ID returns the module id used by persisters and publishers.
func (m *Module) ID() string { return m.id }

// Context returns the root context.
func (m *Module) Context() *Context { return m.ctx }

// Root returns the root definition currently attached.
func (m *Module) Root() *Definition {
	m.rootMu.RLock()
	defer m.rootMu.RUnlock()
	return m.root
}

// Handler returns the interface handler created for name.
func (m *Module) Handler(name string) (InterfaceHandler, bool) {
	h, ok := m.handlers[name]
	return h, ok
}

// Interface returns the latest value of interface name.
func (m *Module) Interface(name string) (any, bool) {
	s, ok := m.ctx.Stream(name)
	if !ok {
		return nil, false
	}
	return s.Get(), true
}

// afterCycle persists and publishes the outcome of one dispatch cycle.
func (m *Module) afterCycle(dd DispatchData, err error) {
	if m.persister == nil && m.publisher == nil {
		return
	}
	ctx := context.Background()
	if m.persister != nil {
		if perr := m.persister.Save(ctx, m.Snapshot()); perr != nil {
			m.logger.Warn("snapshot save failed", "module", m.id, "error", perr)
		}
	}
	if m.publisher != nil {
		rec := DispatchRecord{
			ModuleID:  m.id,
			Dispatch:  dd,
			Timestamp: time.Now(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if perr := m.publisher.Publish(ctx, rec); perr != nil {
			m.logger.Warn("dispatch publish failed", "module", m.id, "error", perr)
		}
	}
}

// Snapshot captures the state of every installed component.
func (m *Module) Snapshot() Snapshot {
	ix := m.ctx.arena.index
	states := make(map[string]any, ix.Len())
	for _, id := range ix.IDs() {
		if sp, ok := ix.Get(id); ok {
			states[id] = sp.State()
		}
	}
	return Snapshot{
		ModuleID:  m.id,
		Root:      m.ctx.RootID(),
		Version:   primitives.ComputeVersion(states),
		States:    states,
		Timestamp: time.Now(),
	}
}

// Restore replaces the state of every component present in both the tree and
// snap, then notifies the interface streams. Ids the tree no longer has are
// ignored.
func (m *Module) Restore(snap Snapshot) error {
	return m.enqueue("restore", func() error {
		if root := m.ctx.RootID(); snap.Root != root {
			return fmt.Errorf("root mismatch: have %q, snapshot %q", root, snap.Root)
		}
		ix := m.ctx.arena.index
		for _, id := range sortedKeys(snap.States) {
			sp, ok := ix.Get(id)
			if !ok {
				continue
			}
			state, err := convertState(snap.States[id], sp.State())
			if err != nil {
				return fmt.Errorf("restore %q: %w", id, err)
			}
			sp.setState(state)
		}
		NotifyInterfaceHandlers(m.ctx)
		return nil
	})
}

// Save writes the current snapshot with the configured persister.
func (m *Module) Save(ctx context.Context) error {
	if m.persister == nil {
		return errors.New("no persister configured")
	}
	return m.persister.Save(ctx, m.Snapshot())
}

// Load reads the module's snapshot with the configured persister and restores it.
func (m *Module) Load(ctx context.Context) error {
	if m.persister == nil {
		return errors.New("no persister configured")
	}
	snap, err := m.persister.Load(ctx, m.id)
	if err != nil {
		return err
	}
	return m.Restore(snap)
}

// Visualize returns the Graphviz DOT visualization of the current tree.
func (m *Module) Visualize() string {
	if m.visualizer == nil {
		return "ERROR: No visualizer configured. Use WithVisualizer(&production.DefaultVisualizer{})"
	}
	return m.visualizer.ExportDOT(m.Tree())
}

// Tree exports the installed tree from the root down.
func (m *Module) Tree() TreeNode {
	ix := m.ctx.arena.index
	sp, ok := ix.Get(m.ctx.RootID())
	if !ok {
		return TreeNode{ID: m.ctx.RootID(), Name: BaseName(m.ctx.RootID())}
	}
	return treeOf(ix, m.ctx.RootID(), sp)
}

func treeOf(ix *Index, id string, sp *Space) TreeNode {
	node := TreeNode{
		ID:         id,
		Name:       BaseName(id),
		State:      sp.State(),
		Inputs:     sortedKeys(sp.Inputs),
		Interfaces: sortedKeys(sp.Def.Interfaces),
	}
	for _, name := range sp.Def.childNames() {
		childID := DeriveID(id, name)
		if child, ok := ix.Get(childID); ok {
			node.Children = append(node.Children, treeOf(ix, childID, child))
		}
	}
	return node
}

func (m *Module) tracers() trace.TracerProvider {
	if m.tracerProvider != nil {
		return m.tracerProvider
	}
	return otel.GetTracerProvider()
}

func (m *Module) meters() metric.MeterProvider {
	if m.meterProvider != nil {
		return m.meterProvider
	}
	return otel.GetMeterProvider()
}
