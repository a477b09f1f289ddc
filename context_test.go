package fractalx_test

import (
	"errors"
	"log/slog"
	"reflect"
	"slices"
	"testing"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/testutil"
)

func lastError(ctx *fractalx.Context) fractalx.Diagnostic {
	log := ctx.ErrorLog()
	if len(log) == 0 {
		return fractalx.Diagnostic{}
	}
	return log[len(log)-1]
}

func lastWarn(ctx *fractalx.Context) fractalx.Diagnostic {
	log := ctx.WarnLog()
	if len(log) == 0 {
		return fractalx.Diagnostic{}
	}
	return log[len(log)-1]
}

func pair(d fractalx.Diagnostic) [2]string {
	return [2]string{d.Source, d.Message}
}

// wantDiag fails t unless d has the given source and message.
func wantDiag(t *testing.T, d fractalx.Diagnostic, source, message string) {
	t.Helper()
	if got := pair(d); got != [2]string{source, message} {
		t.Errorf("diagnostic = %q, want %q", got, [2]string{source, message})
	}
}

func TestChildContextSharesArena(t *testing.T) {
	root := fractalx.NewContext("Main")
	child := root.Child("child")

	if child.ID() != "Main$child" || child.Name() != "child" {
		t.Errorf("child id = %q, name = %q", child.ID(), child.Name())
	}
	if root.Components() != child.Components() {
		t.Error("child should share the component index")
	}

	root.Warn("child", "warn 1")
	wantDiag(t, lastWarn(child), "child", "warn 1")

	child.Error("child", "error 1")
	wantDiag(t, lastError(root), "child", "error 1")

	child.RegisterTask("log", func(any) {})
	if _, ok := root.Runner("log"); !ok {
		t.Error("runner registered on the child is not visible from the root")
	}
}

func TestOnDiagnostic(t *testing.T) {
	ctx := fractalx.NewContext("Main")
	ctx.SetLogger(slog.New(slog.DiscardHandler))

	var got []string
	ctx.OnDiagnostic(func(level slog.Level, d fractalx.Diagnostic) {
		got = append(got, level.String()+" "+d.Source)
	})
	ctx.Warn("a", "x")
	ctx.Error("b", "y")

	if !slices.Equal(got, []string{"WARN a", "ERROR b"}) {
		t.Errorf("hook saw %v", got)
	}
}

func TestStateOf(t *testing.T) {
	root := fractalx.NewContext("Main")
	child := fractalx.Merge(root, "child", testutil.Counter("Main", testutil.CounterOptions{}))

	want := testutil.CounterState{Key: "child"}
	if got := root.StateOf("child"); got != want {
		t.Errorf("root.StateOf(child) = %v", got)
	}
	if got := child.StateOf(""); got != want {
		t.Errorf("child.StateOf(\"\") = %v", got)
	}

	s, ok := fractalx.StateAs[testutil.CounterState](root, "child")
	if !ok || s.Key != "child" {
		t.Errorf("StateAs = %v, %v", s, ok)
	}

	if got := root.StateOf("wrong"); got != nil {
		t.Errorf("StateOf(wrong) = %v", got)
	}
	wantDiag(t, lastError(root), "stateOf", "there are no child 'wrong' in space 'Main'")

	if got := root.StateOf(""); got != nil {
		t.Errorf("StateOf of the unmerged root = %v", got)
	}
	wantDiag(t, lastError(root), "stateOf", "there are no space 'Main'")
}

func TestInterfaceOf(t *testing.T) {
	root := fractalx.NewContext("Main")
	def := testutil.Counter("Main", testutil.CounterOptions{})
	child := fractalx.Merge(root, "child", def)

	got := fractalx.InterfaceOf(root, "child", "event")
	want := def.Interfaces["event"](child, root.StateOf("child"))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InterfaceOf = %v, want %v", got, want)
	}
	if tag := testutil.ViewOf(got).TagName; tag != "child" {
		t.Errorf("TagName = %q", tag)
	}

	if v := fractalx.InterfaceOf(root, "wrong", "event"); v != nil {
		t.Errorf("InterfaceOf(wrong) = %v", v)
	}
	wantDiag(t, lastError(root), "interfaceOf", "there are no module 'Main$wrong'")
	d := lastError(root)
	if !errors.Is(&d, fractalx.ErrAddressNotFound) {
		t.Errorf("kind = %v, want ErrAddressNotFound", d.Kind)
	}

	if v := fractalx.InterfaceOf(root, "child", "wrong"); v != nil {
		t.Errorf("InterfaceOf(child, wrong) = %v", v)
	}
	wantDiag(t, lastError(root), "interfaceOf", "there are no interface 'wrong' in module 'Main$child'")
	if kind := lastError(root).Kind; kind != fractalx.ErrInterfaceNotFound {
		t.Errorf("kind = %v, want ErrInterfaceNotFound", kind)
	}
}

func TestEvResolve(t *testing.T) {
	ctx := fractalx.NewContext("Main$child")

	ev := fractalx.Ev(ctx, "set")
	if got := ev.Resolve(3); got != (fractalx.DispatchData{ID: "Main$child", Input: "set", Payload: 3}) {
		t.Errorf("Resolve(3) = %v", got)
	}

	ev = fractalx.Ev(ctx, "set", func(v any) any { return len(v.(string)) })
	if got := ev.Resolve("hello"); got != (fractalx.DispatchData{ID: "Main$child", Input: "set", Payload: 5}) {
		t.Errorf("Resolve(hello) = %v", got)
	}
}
