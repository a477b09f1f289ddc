package fractalx

import "fmt"

// Dispatch resolves dd to a bound input, invokes it and executes the result.
//
// An unknown id or input is logged under source "dispatch" and returned; no
// state changes and nothing is notified. Panics raised by user code
// propagate to the caller.
//
// On a module's tree the cycle runs through the module queue: a call made
// while another cycle runs, such as a task runner dispatching back or an
// input forwarding to a child, is applied after that cycle and returns nil.
func Dispatch(ctx *Context, dd DispatchData) error {
	return ctx.serialize("dispatch", func() error { return runCycle(ctx, dd) })
}

// runCycle is one dispatch cycle, traced and counted.
func runCycle(ctx *Context, dd DispatchData) error {
	tel := ctx.arena.telemetry
	spanCtx, span := tel.startDispatch(dd.ID, dd.Input)
	defer span.End()

	err := dispatch(ctx, dd)
	if err != nil {
		span.RecordError(err)
	}
	tel.recordDispatch(spanCtx, err == nil)
	return err
}

func dispatch(ctx *Context, dd DispatchData) error {
	sp, ok := ctx.arena.index.Get(dd.ID)
	if !ok {
		return ctx.fail(ErrAddressNotFound, "dispatch",
			fmt.Sprintf("there are no module with id '%s'", dd.ID))
	}
	input, ok := sp.Inputs[dd.Input]
	if !ok {
		return ctx.fail(ErrHandlerNotFound, "dispatch",
			fmt.Sprintf("there are no event with id '%s' in module '%s'", dd.Input, dd.ID))
	}
	return executeAt(ctx, dd.ID, input(dd.Payload))
}

// Execute applies exe to the space at id.
//
// Every Update replaces the state and notifies the interface streams at once,
// so consumers may see intermediate states of a List. A Task without a
// registered runner is logged under source "execute" and stops the List; the
// updates already applied stay applied. A nil executable does nothing.
// Like Dispatch, it is serialized on a module's tree.
func Execute(ctx *Context, id string, exe Executable) error {
	return ctx.serialize("execute", func() error { return executeAt(ctx, id, exe) })
}

func executeAt(ctx *Context, id string, exe Executable) error {
	sp, ok := ctx.arena.index.Get(id)
	if !ok {
		return ctx.fail(ErrAddressNotFound, "execute",
			fmt.Sprintf("there are no module with id '%s'", id))
	}
	return execute(ctx, sp, exe)
}

func execute(ctx *Context, sp *Space, exe Executable) error {
	switch e := exe.(type) {
	case nil:
		return nil
	case Update:
		sp.setState(e(sp.State()))
		NotifyInterfaceHandlers(ctx)
		return nil
	case Task:
		return runTask(ctx, e)
	case List:
		for _, item := range e {
			if err := execute(ctx, sp, item); err != nil {
				return err
			}
		}
		return nil
	default:
		panic(fmt.Sprintf("fractalx: unknown executable %T", exe))
	}
}

// runTask hands t to its runner. The runner may dispatch later; it is not awaited.
func runTask(ctx *Context, t Task) error {
	runner, ok := ctx.Runner(t.Name)
	if !ok {
		ctx.arena.telemetry.recordExecuteFailure(t.Name)
		return ctx.fail(ErrHandlerNotFound, "execute",
			fmt.Sprintf("there are no task handler for %s", t.Name))
	}
	runner(t.Data)
	return nil
}

// NotifyInterfaceHandlers recomputes every live interface stream from the
// root space, whatever node was mutated, and pushes the new values in sorted
// stream-name order.
func NotifyInterfaceHandlers(ctx *Context) {
	root, ok := ctx.arena.index.Get(ctx.RootID())
	if !ok {
		return
	}

	n := 0
	for _, name := range ctx.StreamNames() {
		s, ok := ctx.Stream(name)
		if !ok {
			continue
		}
		fn, ok := root.Def.Interfaces[name]
		if !ok {
			continue
		}
		s.Set(fn(root.Ctx, root.State()))
		n++
	}
	ctx.arena.telemetry.recordNotify(n)
}
