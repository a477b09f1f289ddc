// Package benchmarks provides shared helpers for benchmark tests.
package benchmarks

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/comalice/fractalx"
	"github.com/comalice/fractalx/builder"
	"github.com/comalice/fractalx/stream"
)

// ViewInterface is the single interface every generated root declares.
const ViewInterface = "view"

// discard is an interface handler that ignores its stream.
type discard struct{}

func (discard) Attach(*stream.Stream[any])   {}
func (discard) Reattach(*stream.Stream[any]) {}

// Leaf is an int counter with an "inc" input and an "add" input taking an int.
func Leaf(name string) *fractalx.Definition {
	return builder.New(name,
		builder.WithState(func(fractalx.Seed) any { return 0 }),
		builder.WithInput("inc", func(*fractalx.Context, any) fractalx.Executable {
			return fractalx.UpdateOf(func(n int) int { return n + 1 })
		}),
		builder.WithInput("add", func(_ *fractalx.Context, payload any) fractalx.Executable {
			d, _ := payload.(int)
			return fractalx.UpdateOf(func(n int) int { return n + d })
		}),
	)
}

// GenWideDefinition creates a root with n leaf children named c0..cN-1.
func GenWideDefinition(n int) *fractalx.Definition {
	if n < 1 {
		n = 1
	}
	children := make([]*fractalx.Definition, n)
	for i := range children {
		children[i] = Leaf(fmt.Sprintf("c%d", i))
	}
	return builder.Composite(fmt.Sprintf("wide_%d", n), children,
		builder.WithInterface(ViewInterface, func(ctx *fractalx.Context, _ any) any {
			return ctx.Components().Len()
		}))
}

// GenDeepDefinition creates a chain of depth leaves, each nested in the previous one.
func GenDeepDefinition(depth int) *fractalx.Definition {
	if depth < 1 {
		depth = 1
	}
	b := fractalx.NewBuilder(fmt.Sprintf("deep_%d", depth))
	b.Root().Interface(ViewInterface, func(ctx *fractalx.Context, _ any) any {
		return ctx.Components().Len()
	})
	path := ""
	for i := 0; i < depth; i++ {
		path = fractalx.DeriveID(path, fmt.Sprintf("c%d", i))
		b.Component(path).
			State(func(fractalx.Seed) any { return 0 }).
			Input("inc", func(*fractalx.Context, any) fractalx.Executable {
				return fractalx.UpdateOf(func(n int) int { return n + 1 })
			})
	}
	return b.MustBuild()
}

// DeepLeafID returns the id of the deepest component of GenDeepDefinition(depth).
func DeepLeafID(depth int) string {
	parts := []string{fmt.Sprintf("deep_%d", depth)}
	for i := 0; i < depth; i++ {
		parts = append(parts, fmt.Sprintf("c%d", i))
	}
	return strings.Join(parts, fractalx.Separator)
}

// RunModule runs def with a discarding handler for the view interface.
func RunModule(def *fractalx.Definition, opts ...fractalx.Option) *fractalx.Module {
	return fractalx.Run(fractalx.ModuleDef{
		Root: def,
		Interfaces: map[string]fractalx.HandlerFactory{
			ViewInterface: func(fractalx.API) fractalx.InterfaceHandler { return discard{} },
		},
	}, opts...)
}

// GenSnapshotYAML generates YAML bytes for a snapshot of a wide tree of n leaves.
func GenSnapshotYAML(n int) []byte {
	def := GenWideDefinition(n)
	m := RunModule(def)
	defer m.Dispose()
	// Dispatch once to mutate state
	m.Dispatch(fractalx.DispatchData{ID: fractalx.DeriveID(def.Name, "c0"), Input: "inc"})
	data, err := yaml.Marshal(m.Snapshot())
	if err != nil {
		panic(err)
	}
	return data
}
