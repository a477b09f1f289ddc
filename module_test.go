package fractalx_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/tasks"
	"github.com/comalice/fractalx/testutil"
)

func trigger(t *testing.T, f *fixture, input string) error {
	t.Helper()
	ev, ok := f.view().Events[input]
	if !ok {
		t.Fatalf("view has no event %q", input)
	}
	return f.rec.Trigger(ev, nil)
}

func mustDispatch(t *testing.T, m *fractalx.Module, id, input string, payload any) {
	t.Helper()
	if err := m.Dispatch(fractalx.DispatchData{ID: id, Input: input, Payload: payload}); err != nil {
		t.Fatalf("dispatch %s %s: %v", id, input, err)
	}
}

func TestRunMissingInterfaceHandler(t *testing.T) {
	m := fractalx.Run(fractalx.ModuleDef{
		Root: testutil.Counter("Main", testutil.CounterOptions{}),
	}, fractalx.WithLogger(slog.New(slog.DiscardHandler)))

	d := lastError(m.Context())
	wantDiag(t, d, "InterfaceHandlers", "'Main' module has no interface called 'event', missing interface handler")
	if !errors.Is(d.Kind, fractalx.ErrMissingInterfaceHandler) {
		t.Errorf("kind = %v, want ErrMissingInterfaceHandler", d.Kind)
	}
	if _, ok := m.Interface("event"); ok {
		t.Error("unbound interface has a value")
	}
	// the tree is merged anyway
	if n := m.Context().Components().Len(); n != 1 {
		t.Errorf("%d components, want 1", n)
	}
}

func TestRunInitialValue(t *testing.T) {
	f := newFixture(t, testutil.Counter("Main", testutil.CounterOptions{}))

	if got := f.view().Content; got != "Fractal is awesome!! 0" {
		t.Errorf("content = %q", got)
	}
	if attaches, reattaches := f.rec.Counts(); attaches != 1 || reattaches != 0 {
		t.Errorf("attaches = %d, reattaches = %d", attaches, reattaches)
	}
	if f.m.ID() == "" {
		t.Error("module id is empty")
	}
	if got := f.m.Root().Name; got != "Main" {
		t.Errorf("root = %q", got)
	}
}

func TestModuleInputs(t *testing.T) {
	f := newFixture(t, testutil.Counter("Main", testutil.CounterOptions{}))
	ctx := f.m.Context()

	steps := []struct {
		input   string
		content string
		err     string
	}{
		{input: "inc", content: "Fractal is awesome!! 1"},
		{input: "task", content: "Fractal is awesome!! 2"},
		{input: "wrongTask", content: "Fractal is awesome!! 2", err: "there are no task handler for wrongTask"},
		{input: "executableListWrong", content: "Fractal is awesome!! 2", err: "there are no task handler for wrongTask2"},
		{input: "executableListTask", content: "Fractal is awesome!! 3"},
		{input: "executableListAction", content: "Fractal is awesome!! 4"},
	}
	for _, step := range steps {
		err := trigger(t, f, step.input)
		switch {
		case step.err == "" && err != nil:
			t.Errorf("%s: %v", step.input, err)
		case step.err != "":
			if !errors.Is(err, fractalx.ErrHandlerNotFound) {
				t.Errorf("%s: err = %v, want ErrHandlerNotFound", step.input, err)
			}
			wantDiag(t, lastError(ctx), "execute", step.err)
		}
		if got := f.view().Content; got != step.content {
			t.Errorf("after %s content = %q, want %q", step.input, got, step.content)
		}
	}

	if got := f.log.Entries(); !slices.Equal(got, []any{"info", "info2"}) {
		t.Errorf("log entries = %v", got)
	}
}

func TestModuleDispose(t *testing.T) {
	f := newFixture(t, testutil.CounterTree(testutil.CounterOptions{}, nil))
	if n := f.m.Context().Components().Len(); n != 4 {
		t.Fatalf("%d components, want 4", n)
	}

	if err := f.m.Dispose(); err != nil {
		t.Fatal(err)
	}

	if n := f.m.Context().Components().Len(); n != 0 {
		t.Errorf("%d components left", n)
	}
	if !f.m.IsDisposed() || !f.rec.Disposed() {
		t.Error("module and handler should be disposed")
	}
	if names := f.m.Context().StreamNames(); len(names) != 0 {
		t.Errorf("streams left: %v", names)
	}
}

func TestModuleComposition(t *testing.T) {
	f := newFixture(t, testutil.CounterTree(testutil.CounterOptions{}, nil))

	child1 := testutil.ChildView(f.rec.Last(), "child1")
	if err := f.rec.Trigger(child1.Events["inc"], nil); err != nil {
		t.Fatal(err)
	}

	v := f.rec.Last()
	if got := testutil.ChildView(v, "child1").Content; got != "Fractal is awesome!! 1" {
		t.Errorf("child1 = %q", got)
	}
	if got := testutil.ChildView(v, "child2").Content; got != "Fractal is awesome!! 0" {
		t.Errorf("child2 = %q", got)
	}
	if got := testutil.ViewOf(v).Content; got != "Fractal is awesome!! 0" {
		t.Errorf("Main = %q", got)
	}
	if got := f.state("Main$child1").Count; got != 1 {
		t.Errorf("child1 count = %d", got)
	}
}

func TestModuleDestroyHooksOrder(t *testing.T) {
	var destroyed []string
	record := func(ctx *fractalx.Context) { destroyed = append(destroyed, ctx.Name()) }
	f := newFixture(t, testutil.CounterTree(
		testutil.CounterOptions{Hooks: &fractalx.Hooks{Destroy: record}},
		&fractalx.Hooks{Destroy: record},
	))

	if err := f.m.Dispose(); err != nil {
		t.Fatal(err)
	}
	if want := []string{"child1", "child2", "child3", "Main"}; !slices.Equal(destroyed, want) {
		t.Errorf("destroy order = %v, want %v", destroyed, want)
	}
}

func TestModuleInitHooksDispatch(t *testing.T) {
	f := newFixture(t, testutil.CounterTree(testutil.CounterOptions{}, &fractalx.Hooks{
		Init: func(ctx *fractalx.Context) {
			fractalx.ToIt(ctx, "inc", nil)
		},
	}))

	v := f.rec.Last()
	for _, name := range []string{"child1", "child2", "child3"} {
		if got := testutil.ChildView(v, name).Content; got != "Fractal is awesome!! 1" {
			t.Errorf("%s content = %q", name, got)
		}
		if got := f.state("Main$" + name).Count; got != 1 {
			t.Errorf("%s count = %d", name, got)
		}
	}
	if got := f.state("Main").Count; got != 0 {
		t.Errorf("Main count = %d", got)
	}
}

func TestModuleHotSwap(t *testing.T) {
	var destroyed int
	f := newFixture(t, testutil.Counter("Main", testutil.CounterOptions{
		Hooks: &fractalx.Hooks{Destroy: func(*fractalx.Context) { destroyed++ }},
	}))

	v2 := testutil.Counter("Main", testutil.CounterOptions{
		Content: func(n int) string { return fmt.Sprintf("Fractal is awesome V2!! %d :D", n) },
	})
	if err := f.m.Reattach(v2); err != nil {
		t.Fatal(err)
	}

	if got := f.view().Content; got != "Fractal is awesome V2!! 0 :D" {
		t.Errorf("content = %q", got)
	}
	if _, reattaches := f.rec.Counts(); reattaches != 1 {
		t.Errorf("reattaches = %d, want 1", reattaches)
	}
	if destroyed != 0 {
		t.Errorf("hot swap ran %d destroy hooks", destroyed)
	}
	if f.m.Root() != v2 {
		t.Error("Root is not the new definition")
	}

	if err := trigger(t, f, "inc"); err != nil {
		t.Fatal(err)
	}
	if got := f.view().Content; got != "Fractal is awesome V2!! 1 :D" {
		t.Errorf("content = %q", got)
	}
}

func TestModuleHotSwapKeepsState(t *testing.T) {
	f := newFixture(t, testutil.CounterTree(testutil.CounterOptions{}, nil))
	ctx := f.m.Context()
	mustDispatch(t, f.m, "Main", "inc", nil)
	mustDispatch(t, f.m, "Main$child2", "set", 7)

	// child3 disappears, child4 is new
	child := testutil.Counter("Child", testutil.CounterOptions{})
	next := testutil.Counter("Main", testutil.CounterOptions{
		Content: func(n int) string { return fmt.Sprintf("v2 %d", n) },
		Children: map[string]*fractalx.Definition{
			"child1": child, "child2": child, "child4": child,
		},
	})
	if err := f.m.Reattach(next); err != nil {
		t.Fatal(err)
	}

	if ctx.ID() != "Main" {
		t.Errorf("context id = %q", ctx.ID())
	}
	wantIDs(t, ctx, "Main", "Main$child1", "Main$child2", "Main$child4")
	if got := f.state("Main").Count; got != 1 {
		t.Errorf("Main count = %d, want 1", got)
	}
	if got := f.state("Main$child2").Count; got != 7 {
		t.Errorf("child2 count = %d, want 7", got)
	}
	if got := f.view().Content; got != "v2 1" {
		t.Errorf("content = %q", got)
	}
	if got := testutil.ChildView(f.rec.Last(), "child2").Content; got != "Fractal is awesome!! 7" {
		t.Errorf("child2 content = %q", got)
	}
}

func TestModuleHotSwapRenamedRoot(t *testing.T) {
	f := newFixture(t, testutil.Counter("Main", testutil.CounterOptions{}))

	if err := f.m.Reattach(testutil.Counter("App", testutil.CounterOptions{})); err != nil {
		t.Fatal(err)
	}

	ctx := f.m.Context()
	if ctx.ID() != "App" || ctx.RootID() != "App" {
		t.Errorf("id = %q, root id = %q", ctx.ID(), ctx.RootID())
	}
	wantIDs(t, ctx, "App")
	mustDispatch(t, f.m, "App", "inc", nil)
	if got := f.view().Content; got != "Fractal is awesome!! 1" {
		t.Errorf("content = %q", got)
	}
}

func TestModuleRootDuringReattach(t *testing.T) {
	f := newFixture(t, testutil.Counter("Main", testutil.CounterOptions{}))
	v2 := testutil.Counter("Main", testutil.CounterOptions{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 200 {
			if r := f.m.Root(); r == nil || r.Name != "Main" {
				t.Errorf("Root = %v", r)
				return
			}
		}
	}()
	for range 20 {
		if err := f.m.Reattach(v2); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()

	if f.m.Root() != v2 {
		t.Error("Root is not the last reattached definition")
	}
}

func TestModuleRestoreAfterQueuedReattach(t *testing.T) {
	var m *fractalx.Module
	var nested []error
	app := testutil.Counter("App", testutil.CounterOptions{})
	root := testutil.Counter("Main", testutil.CounterOptions{})
	base := root.Inputs
	root.Inputs = func(ctx *fractalx.Context) map[string]fractalx.Input {
		in := base(ctx)
		in["swap"] = func(any) fractalx.Executable {
			nested = append(nested,
				m.Reattach(app),
				m.Restore(fractalx.Snapshot{Root: "App", States: map[string]any{
					"App": testutil.CounterState{Key: "App", Count: 5},
				}}),
			)
			return nil
		}
		return in
	}
	f := newFixture(t, root)
	m = f.m

	mustDispatch(t, m, "Main", "swap", nil)

	for i, err := range nested {
		if err != nil {
			t.Errorf("nested call %d: %v", i, err)
		}
	}
	// the restore checks the root it finds once the reattach has run
	if got := f.state("App").Count; got != 5 {
		t.Errorf("App count = %d, want 5", got)
	}
	if log := m.Context().ErrorLog(); len(log) != 0 {
		t.Errorf("unexpected errors %v", log)
	}
}

func TestModuleNestedDispatchIsQueued(t *testing.T) {
	var order []string
	root := testutil.Counter("Main", testutil.CounterOptions{})
	root.Inputs = func(ctx *fractalx.Context) map[string]fractalx.Input {
		return map[string]fractalx.Input{
			"outer": func(any) fractalx.Executable {
				order = append(order, "outer start")
				return fractalx.NewTask("relay", nil)
			},
			"inner": func(any) fractalx.Executable {
				order = append(order, "inner")
				return nil
			},
		}
	}
	m := fractalx.Run(fractalx.ModuleDef{
		Root: root,
		Tasks: map[string]fractalx.TaskFactory{
			"relay": tasks.Func(func(api fractalx.API, _ any) {
				if err := api.Dispatch(fractalx.DispatchData{ID: "Main", Input: "inner"}); err != nil {
					t.Errorf("queued dispatch: %v", err)
				}
				order = append(order, "outer end")
			}),
		},
	}, fractalx.WithLogger(slog.New(slog.DiscardHandler)))

	mustDispatch(t, m, "Main", "outer", nil)
	if want := []string{"outer start", "outer end", "inner"}; !slices.Equal(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestModuleConcurrentDispatch(t *testing.T) {
	f := newFixture(t, testutil.Counter("Main", testutil.CounterOptions{}))

	const n = 50
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.m.Dispatch(fractalx.DispatchData{ID: "Main", Input: "inc"})
		}()
	}
	wg.Wait()

	if got := f.state("Main").Count; got != n {
		t.Errorf("count = %d, want %d", got, n)
	}
	if got, want := f.view().Content, fmt.Sprintf("Fractal is awesome!! %d", n); got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
}

func TestModuleQueueFull(t *testing.T) {
	root := testutil.Counter("Main", testutil.CounterOptions{})
	base := root.Inputs
	root.Inputs = func(ctx *fractalx.Context) map[string]fractalx.Input {
		in := base(ctx)
		in["burst"] = func(any) fractalx.Executable { return fractalx.NewTask("burst", nil) }
		return in
	}
	var rejected []error
	m := fractalx.Run(fractalx.ModuleDef{
		Root: root,
		Tasks: map[string]fractalx.TaskFactory{
			"burst": tasks.Func(func(api fractalx.API, _ any) {
				for range 3 {
					if err := api.Dispatch(fractalx.DispatchData{ID: "Main", Input: "inc"}); err != nil {
						rejected = append(rejected, err)
					}
				}
			}),
		},
	}, fractalx.WithQueueSize(1), fractalx.WithLogger(slog.New(slog.DiscardHandler)))

	mustDispatch(t, m, "Main", "burst", nil)

	if len(rejected) != 2 {
		t.Fatalf("%d dispatches rejected, want 2", len(rejected))
	}
	if !errors.Is(rejected[0], fractalx.ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", rejected[0])
	}
	wantDiag(t, lastError(m.Context()), "dispatch", "dispatch queue full")
	// only the queued dispatch ran
	if got := counterOf(m.Context(), ""); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
}

func TestModuleSnapshotRestore(t *testing.T) {
	f := newFixture(t, testutil.CounterTree(testutil.CounterOptions{}, nil), fractalx.WithModuleID("m1"))
	mustDispatch(t, f.m, "Main$child1", "inc", nil)

	snap := f.m.Snapshot()
	if snap.ModuleID != "m1" || snap.Root != "Main" {
		t.Errorf("snapshot module = %q, root = %q", snap.ModuleID, snap.Root)
	}
	if len(snap.Version) != 16 || len(snap.States) != 4 {
		t.Errorf("version = %q, %d states", snap.Version, len(snap.States))
	}

	mustDispatch(t, f.m, "Main$child1", "set", 40)
	if f.m.Snapshot().Version == snap.Version {
		t.Error("version did not change with the state")
	}

	if err := f.m.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if got := f.state("Main$child1").Count; got != 1 {
		t.Errorf("child1 count = %d, want 1", got)
	}
	if got := testutil.ChildView(f.rec.Last(), "child1").Content; got != "Fractal is awesome!! 1" {
		t.Errorf("child1 content = %q", got)
	}
	if got := f.m.Snapshot().Version; got != snap.Version {
		t.Errorf("version = %q, want %q", got, snap.Version)
	}
}

func TestModuleRestoreDecodedStates(t *testing.T) {
	f := newFixture(t, testutil.Counter("Main", testutil.CounterOptions{}))

	err := f.m.Restore(fractalx.Snapshot{
		Root:   "Main",
		States: map[string]any{"Main": map[string]any{"key": "Main", "count": 12.0}, "Gone": 1},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := f.state("Main"); got != (testutil.CounterState{Key: "Main", Count: 12}) {
		t.Errorf("state = %+v", got)
	}

	wantErrContains(t, f.m.Restore(fractalx.Snapshot{Root: "Other"}), "root mismatch")
}

type memPersister struct {
	mu      sync.Mutex
	saved   map[string]fractalx.Snapshot
	history []fractalx.Snapshot
	saves   int
}

func (p *memPersister) Save(_ context.Context, s fractalx.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saved == nil {
		p.saved = make(map[string]fractalx.Snapshot)
	}
	p.saved[s.ModuleID] = s
	p.history = append(p.history, s)
	p.saves++
	return nil
}

func (p *memPersister) Load(_ context.Context, id string) (fractalx.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.saved[id]
	if !ok {
		return fractalx.Snapshot{}, errors.New("not found")
	}
	return s, nil
}

type memPublisher struct {
	records []fractalx.DispatchRecord
	closed  bool
}

func (p *memPublisher) Publish(_ context.Context, r fractalx.DispatchRecord) error {
	p.records = append(p.records, r)
	return nil
}

func (p *memPublisher) Close() error {
	p.closed = true
	return nil
}

func TestModulePersistAndPublish(t *testing.T) {
	pers := &memPersister{}
	pub := &memPublisher{}
	f := newFixture(t, testutil.Counter("Main", testutil.CounterOptions{}),
		fractalx.WithModuleID("m1"), fractalx.WithPersister(pers), fractalx.WithPublisher(pub))

	mustDispatch(t, f.m, "Main", "inc", nil)
	f.m.Dispatch(fractalx.DispatchData{ID: "Main", Input: "nope"})

	if pers.saves != 2 {
		t.Errorf("saves = %d, want 2", pers.saves)
	}
	if len(pub.records) != 2 {
		t.Fatalf("%d records, want 2", len(pub.records))
	}
	if r := pub.records[0]; r.Dispatch.Input != "inc" || r.Error != "" {
		t.Errorf("first record = %+v", r)
	}
	if !strings.Contains(pub.records[1].Error, "there are no event with id 'nope'") {
		t.Errorf("second record error = %q", pub.records[1].Error)
	}

	mustDispatch(t, f.m, "Main", "inc", nil)
	if err := f.m.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := f.state("Main").Count; got != 2 {
		t.Errorf("count after load = %d, want 2", got)
	}

	if err := f.m.Dispose(); err != nil {
		t.Fatal(err)
	}
	if !pub.closed {
		t.Error("publisher not closed on dispose")
	}
}

func TestModulePublishesAfterQueuedDispatches(t *testing.T) {
	pers := &memPersister{}
	pub := &memPublisher{}
	f := newFixture(t, logThenSet(), fractalx.WithModuleID("m1"),
		fractalx.WithPersister(pers), fractalx.WithPublisher(pub))

	mustDispatch(t, f.m, "Main", "logThenSet", nil)

	var inputs []string
	for _, r := range pub.records {
		inputs = append(inputs, r.Dispatch.Input)
	}
	if want := []string{"logThenSet", "inc"}; !slices.Equal(inputs, want) {
		t.Errorf("published %v, want %v", inputs, want)
	}
	// the snapshot saved for the outer cycle already holds the increment it queued
	if len(pers.history) != 2 {
		t.Fatalf("%d saves, want 2", len(pers.history))
	}
	want := testutil.CounterState{Key: "Main", Count: 11}
	for i, snap := range pers.history {
		if got := snap.States["Main"]; got != want {
			t.Errorf("save %d state = %v, want %v", i, got, want)
		}
	}
}

func TestModuleWithoutPersister(t *testing.T) {
	f := newFixture(t, testutil.Counter("Main", testutil.CounterOptions{}))

	if err := f.m.Save(context.Background()); err == nil {
		t.Error("Save without a persister succeeded")
	}
	if err := f.m.Load(context.Background()); err == nil {
		t.Error("Load without a persister succeeded")
	}
	if !strings.HasPrefix(f.m.Visualize(), "ERROR") {
		t.Errorf("Visualize = %q", f.m.Visualize())
	}
}

func TestModuleTree(t *testing.T) {
	f := newFixture(t, testutil.CounterTree(testutil.CounterOptions{}, nil))

	tree := f.m.Tree()
	if tree.ID != "Main" || !slices.Equal(tree.Interfaces, []string{"event"}) {
		t.Errorf("root node = %q %v", tree.ID, tree.Interfaces)
	}
	if !slices.Contains(tree.Inputs, "inc") {
		t.Errorf("inputs = %v", tree.Inputs)
	}
	if len(tree.Children) != 3 {
		t.Fatalf("%d children, want 3", len(tree.Children))
	}
	c := tree.Children[1]
	if c.ID != "Main$child2" || c.Name != "child2" {
		t.Errorf("second child = %q %q", c.ID, c.Name)
	}
	if c.State != (testutil.CounterState{Key: "child2"}) {
		t.Errorf("child2 state = %v", c.State)
	}
}

func TestModuleDiagnosticHook(t *testing.T) {
	var got []fractalx.Diagnostic
	f := newFixture(t, testutil.Counter("Main", testutil.CounterOptions{}),
		fractalx.WithDiagnosticHook(func(_ slog.Level, d fractalx.Diagnostic) { got = append(got, d) }))

	f.m.Warn("test", "careful")
	f.m.Error("test", "broken")

	if len(got) != 2 {
		t.Fatalf("hook called %d times, want 2", len(got))
	}
	wantDiag(t, got[0], "test", "careful")
	wantDiag(t, lastError(f.m.Context()), "test", "broken")
}
