package testutil

import (
	"fmt"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/tasks"
)

// CounterState is the state of every counter fixture.
type CounterState struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CounterView is the "event" interface value of a counter fixture.
type CounterView struct {
	TagName  string
	Content  string
	Events   map[string]fractalx.EventData
	Children map[string]any
}

// CounterOptions customizes Counter.
type CounterOptions struct {
	// Content renders the count. Defaults to "Fractal is awesome!! <n>".
	Content  func(count int) string
	Children map[string]*fractalx.Definition
	Hooks    *fractalx.Hooks
}

// CounterActions are the actions of every counter fixture.
func CounterActions() map[string]fractalx.Action {
	return map[string]fractalx.Action{
		"Set": func(data any) fractalx.Update {
			n, _ := data.(int)
			return fractalx.UpdateOf(func(s CounterState) CounterState {
				s.Count = n
				return s
			})
		},
		"Inc": func(any) fractalx.Update {
			return fractalx.UpdateOf(func(s CounterState) CounterState {
				s.Count++
				return s
			})
		},
	}
}

// counterInputs covers every executable shape: updates, a task with a
// callback, tasks without runners and lists.
func counterInputs(ctx *fractalx.Context) map[string]fractalx.Input {
	act := CounterActions()
	return map[string]fractalx.Input{
		"set": func(p any) fractalx.Executable { return act["Set"](p) },
		"inc": func(any) fractalx.Executable { return act["Inc"](nil) },
		"task": func(any) fractalx.Executable {
			return fractalx.NewTask("log", tasks.LogData{Info: "info", Then: fractalx.Ev(ctx, "inc")})
		},
		"wrongTask": func(any) fractalx.Executable {
			return fractalx.NewTask("wrongTask", nil)
		},
		"executableListWrong": func(any) fractalx.Executable {
			return fractalx.List{fractalx.NewTask("wrongTask2", nil)}
		},
		"executableListTask": func(any) fractalx.Executable {
			return fractalx.List{fractalx.NewTask("log", tasks.LogData{Info: "info2", Then: fractalx.Ev(ctx, "inc")})}
		},
		"executableListAction": func(any) fractalx.Executable {
			return fractalx.List{act["Inc"](nil)}
		},
		"partial": func(any) fractalx.Executable {
			return fractalx.List{act["Inc"](nil), fractalx.NewTask("missing", nil), act["Inc"](nil)}
		},
	}
}

var counterEvents = []string{
	"inc", "task", "wrongTask",
	"executableListWrong", "executableListTask", "executableListAction", "partial",
}

// Counter builds a counter definition called name with an "event" interface.
func Counter(name string, opts CounterOptions) *fractalx.Definition {
	content := opts.Content
	if content == nil {
		content = func(n int) string { return fmt.Sprintf("Fractal is awesome!! %d", n) }
	}
	children := opts.Children
	return &fractalx.Definition{
		Name: name,
		Init: func(seed fractalx.Seed) any {
			return CounterState{Key: seed.Key}
		},
		Actions: CounterActions(),
		Inputs:  counterInputs,
		Interfaces: map[string]fractalx.InterfaceFunc{
			"event": func(ctx *fractalx.Context, state any) any {
				s, _ := state.(CounterState)
				view := CounterView{
					TagName: s.Key,
					Content: content(s.Count),
					Events:  make(map[string]fractalx.EventData, len(counterEvents)),
				}
				for _, ev := range counterEvents {
					view.Events[ev] = fractalx.Ev(ctx, ev)
				}
				if len(children) > 0 {
					view.Children = make(map[string]any, len(children))
					for name := range children {
						view.Children[name] = fractalx.InterfaceOf(ctx, name, "event")
					}
				}
				return view
			},
		},
		Components: children,
		Hooks:      opts.Hooks,
	}
}

// CounterTree builds a Main counter with three counter children named
// child1, child2 and child3 sharing one definition.
func CounterTree(opts CounterOptions, childHooks *fractalx.Hooks) *fractalx.Definition {
	child := Counter("Child", CounterOptions{Hooks: childHooks})
	opts.Children = map[string]*fractalx.Definition{
		"child1": child,
		"child2": child,
		"child3": child,
	}
	return Counter("Main", opts)
}

// ViewOf asserts v to a CounterView.
func ViewOf(v any) CounterView {
	view, _ := v.(CounterView)
	return view
}

// ChildView returns the view of child name embedded in v.
func ChildView(v any, name string) CounterView {
	return ViewOf(ViewOf(v).Children[name])
}
