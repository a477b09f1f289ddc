// Package fractalx is a component framework runtime.
//
// A tree of independently defined components, each owning a slice of state,
// named actions, named inputs and interface projections, is merged into one
// shared, addressable index. Events are routed to a component by id, the
// returned Executable is applied, and every interface of the root is
// recomputed and pushed to its stream after each state change.
//
// Addressing: a child's id is its parent's id plus Separator plus its name;
// the root is addressed by its name alone.
//
// Lifecycle: Merge installs a subtree and runs Init hooks deepest first;
// Unmerge runs Destroy hooks deepest first and removes the subtree.
//
// Concurrency: the package-level functions are synchronous and expect one
// logical thread of control. Module serializes its entry points so task
// runners and interface handlers may call it from any goroutine.
//
// Example:
//
//	root := fractalx.NewBuilder("Main").Root().
//		State(func(fractalx.Seed) any { return 0 }).
//		Input("inc", func(*fractalx.Context, any) fractalx.Executable {
//			return fractalx.UpdateOf(func(n int) int { return n + 1 })
//		}).
//		Interface("view", func(_ *fractalx.Context, s any) any { return s }).
//		MustBuild()
//
//	rec := testutil.NewRecorder()
//	m := fractalx.Run(fractalx.ModuleDef{
//		Root:       root,
//		Interfaces: map[string]fractalx.HandlerFactory{"view": rec.Factory()},
//	})
//	m.Dispatch(fractalx.DispatchData{ID: "Main", Input: "inc"})
package fractalx
