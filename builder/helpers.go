// Package builder offers functional options for writing component
// definitions as plain constructor calls.
//
//	counter := builder.New("Counter",
//		builder.WithState(func(fractalx.Seed) any { return 0 }),
//		builder.WithInput("inc", func(ctx *fractalx.Context, _ any) fractalx.Executable {
//			return fractalx.UpdateOf(func(n int) int { return n + 1 })
//		}),
//	)
package builder

import (
	"github.com/comalice/fractalx" // the core package
)

// InputFunc is an input that receives its instance context on every call.
type InputFunc func(ctx *fractalx.Context, payload any) fractalx.Executable

// Option pattern for configuring definitions
type Option func(*draft)

type draft struct {
	def    *fractalx.Definition
	inputs map[string]InputFunc
}

// New creates a definition called name. Unset state yields nil.
func New(name string, opts ...Option) *fractalx.Definition {
	s := &draft{
		def:    &fractalx.Definition{Name: name},
		inputs: make(map[string]InputFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.def.Init == nil {
		s.def.Init = func(fractalx.Seed) any { return nil }
	}
	if s.def.Inputs == nil {
		inputs := s.inputs
		s.def.Inputs = func(ctx *fractalx.Context) map[string]fractalx.Input {
			bound := make(map[string]fractalx.Input, len(inputs))
			for name, fn := range inputs {
				bound[name] = func(payload any) fractalx.Executable { return fn(ctx, payload) }
			}
			return bound
		}
	}
	return s.def
}

// Composite creates a definition whose children are the given definitions,
// each mounted under its own name.
func Composite(name string, children []*fractalx.Definition, opts ...Option) *fractalx.Definition {
	for _, ch := range children {
		opts = append(opts, WithChild(ch.Name, ch))
	}
	return New(name, opts...)
}

// WithState sets the state initializer.
func WithState(fn fractalx.StateFunc) Option {
	return func(s *draft) { s.def.Init = fn }
}

// WithAction declares a named action.
func WithAction(name string, act fractalx.Action) Option {
	return func(s *draft) {
		if s.def.Actions == nil {
			s.def.Actions = make(map[string]fractalx.Action)
		}
		s.def.Actions[name] = act
	}
}

// WithInput declares a named input.
func WithInput(name string, fn InputFunc) Option {
	return func(s *draft) { s.inputs[name] = fn }
}

// WithInputs sets the raw inputs function. Inputs declared with WithInput are then ignored.
func WithInputs(fn fractalx.InputsFunc) Option {
	return func(s *draft) { s.def.Inputs = fn }
}

// WithInterface declares a named interface projection.
func WithInterface(name string, fn fractalx.InterfaceFunc) Option {
	return func(s *draft) {
		if s.def.Interfaces == nil {
			s.def.Interfaces = make(map[string]fractalx.InterfaceFunc)
		}
		s.def.Interfaces[name] = fn
	}
}

// WithChild nests def under name.
func WithChild(name string, def *fractalx.Definition) Option {
	return func(s *draft) {
		if s.def.Components == nil {
			s.def.Components = make(map[string]*fractalx.Definition)
		}
		s.def.Components[name] = def
	}
}

// OnInit sets the init hook.
func OnInit(fn func(ctx *fractalx.Context)) Option {
	return func(s *draft) {
		if s.def.Hooks == nil {
			s.def.Hooks = &fractalx.Hooks{}
		}
		s.def.Hooks.Init = fn
	}
}

// OnDestroy sets the destroy hook.
func OnDestroy(fn func(ctx *fractalx.Context)) Option {
	return func(s *draft) {
		if s.def.Hooks == nil {
			s.def.Hooks = &fractalx.Hooks{}
		}
		s.def.Hooks.Destroy = fn
	}
}
