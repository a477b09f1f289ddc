// Package app holds the counter board the fractalx command, the demo and the
// examples run: a root board with one counter component per configured counter.
package app

import (
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/builder"
	"github.com/comalice/fractalx/config"
	"github.com/comalice/fractalx/handlers/tui"
	"github.com/comalice/fractalx/tasks"
)

// Interface names every board component declares.
const (
	WebInterface = "web"
	TUIInterface = "tui"
)

// CounterState is the state of one counter.
type CounterState struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	Step  int    `json:"step"`
	Start int    `json:"start"`
}

// BoardState is the state of the board root.
type BoardState struct {
	Title string `json:"title"`
	Ticks int    `json:"ticks"`
}

// CounterView is the web interface value of a counter.
type CounterView struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value int    `json:"value"`
}

// BoardView is the web interface value of the board.
type BoardView struct {
	Title    string        `json:"title"`
	Ticks    int           `json:"ticks"`
	Counters []CounterView `json:"counters"`
}

// toInt reads a numeric payload. JSON numbers arrive as float64.
func toInt(payload any) (int, bool) {
	switch v := payload.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func counterUpdate(fn func(CounterState) CounterState) fractalx.Update {
	return fractalx.UpdateOf(fn)
}

// Counter builds the definition of one configured counter.
func Counter(c config.CounterConfig) *fractalx.Definition {
	return builder.New(c.Name,
		builder.WithState(func(fractalx.Seed) any {
			return CounterState{Label: c.Label, Value: c.Start, Step: c.Step, Start: c.Start}
		}),
		builder.WithAction("Inc", func(any) fractalx.Update {
			return counterUpdate(func(s CounterState) CounterState { s.Value += s.Step; return s })
		}),
		builder.WithAction("Dec", func(any) fractalx.Update {
			return counterUpdate(func(s CounterState) CounterState { s.Value -= s.Step; return s })
		}),
		builder.WithAction("Reset", func(any) fractalx.Update {
			return counterUpdate(func(s CounterState) CounterState { s.Value = s.Start; return s })
		}),
		builder.WithAction("Set", func(data any) fractalx.Update {
			n, _ := toInt(data)
			return counterUpdate(func(s CounterState) CounterState { s.Value = n; return s })
		}),
		builder.WithInput("inc", func(ctx *fractalx.Context, _ any) fractalx.Executable {
			return actionOf(ctx, "Inc", nil)
		}),
		builder.WithInput("dec", func(ctx *fractalx.Context, _ any) fractalx.Executable {
			return actionOf(ctx, "Dec", nil)
		}),
		builder.WithInput("reset", func(ctx *fractalx.Context, _ any) fractalx.Executable {
			return actionOf(ctx, "Reset", nil)
		}),
		builder.WithInput("set", func(ctx *fractalx.Context, payload any) fractalx.Executable {
			if _, ok := toInt(payload); !ok {
				ctx.Warn("set", fmt.Sprintf("counter '%s' ignored non-numeric value %v", ctx.ID(), payload))
				return nil
			}
			return actionOf(ctx, "Set", payload)
		}),
		builder.WithInput("bump", func(ctx *fractalx.Context, _ any) fractalx.Executable {
			return fractalx.NewTask("log", tasks.LogData{
				Info: "bump " + ctx.ID(),
				Then: fractalx.Ev(ctx, "inc"),
			})
		}),
		builder.WithInterface(WebInterface, func(ctx *fractalx.Context, state any) any {
			s, _ := state.(CounterState)
			return CounterView{Name: ctx.Name(), Label: s.Label, Value: s.Value}
		}),
		builder.WithInterface(TUIInterface, func(ctx *fractalx.Context, state any) any {
			s, _ := state.(CounterState)
			return fmt.Sprintf("%-12s %6d  (step %d)", s.Label, s.Value, s.Step)
		}),
	)
}

func actionOf(ctx *fractalx.Context, name string, data any) fractalx.Executable {
	sp, ok := ctx.Space()
	if !ok {
		return nil
	}
	return sp.Def.Actions[name](data)
}

// Board builds the board root. Counters appear in configuration order.
func Board(cfg config.BoardConfig) *fractalx.Definition {
	names := make([]string, 0, len(cfg.Counters))
	children := make([]*fractalx.Definition, 0, len(cfg.Counters))
	for _, c := range cfg.Counters {
		names = append(names, c.Name)
		children = append(children, Counter(c))
	}

	forAll := func(input string) builder.InputFunc {
		return func(ctx *fractalx.Context, _ any) fractalx.Executable {
			for _, name := range names {
				fractalx.ToChild(ctx, name, input, nil)
			}
			return nil
		}
	}

	return builder.Composite("Board", children,
		builder.WithState(func(fractalx.Seed) any {
			return BoardState{Title: cfg.Title}
		}),
		builder.WithInput("tick", func(*fractalx.Context, any) fractalx.Executable {
			return fractalx.UpdateOf(func(s BoardState) BoardState { s.Ticks++; return s })
		}),
		builder.WithInput("resetAll", forAll("reset")),
		builder.WithInput("incAll", forAll("inc")),
		builder.WithInterface(WebInterface, func(ctx *fractalx.Context, state any) any {
			s, _ := state.(BoardState)
			view := BoardView{Title: s.Title, Ticks: s.Ticks, Counters: make([]CounterView, 0, len(names))}
			for _, name := range names {
				if cv, ok := fractalx.InterfaceOf(ctx, name, WebInterface).(CounterView); ok {
					view.Counters = append(view.Counters, cv)
				}
			}
			return view
		}),
		builder.WithInterface(TUIInterface, func(ctx *fractalx.Context, state any) any {
			s, _ := state.(BoardState)
			screen := tui.Screen{
				Title: fmt.Sprintf("%s (tick %d)", s.Title, s.Ticks),
				Keys: map[string]fractalx.DispatchData{
					"a": {ID: ctx.ID(), Input: "incAll"},
					"r": {ID: ctx.ID(), Input: "resetAll"},
				},
				Help: map[string]string{"a": "all +", "r": "reset"},
			}
			for i, name := range names {
				line, _ := fractalx.InterfaceOf(ctx, name, TUIInterface).(string)
				key := strconv.Itoa(i + 1)
				screen.Body = append(screen.Body, key+"  "+line)
				screen.Keys[key] = fractalx.DispatchData{ID: fractalx.DeriveID(ctx.ID(), name), Input: "inc"}
				screen.Help[key] = name + " +"
			}
			return screen
		}),
	)
}

// Tasks returns the task runners the board needs. Log entries go to log and
// logger; bursts of more than burst log tasks per second are dropped.
func Tasks(log *tasks.Log, logger *slog.Logger, burst int) map[string]fractalx.TaskFactory {
	return map[string]fractalx.TaskFactory{
		"log": tasks.Throttle("log",
			tasks.Logging("log", tasks.LogTask(log), logger),
			rate.NewLimiter(rate.Limit(burst), burst)),
		"delay": tasks.Delay(),
	}
}
