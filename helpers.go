package fractalx

import "fmt"

// StateOf returns the state of child name, or of the context's own space
// when name is empty. A missing space is logged under "stateOf" and nil is
// returned.
func (c *Context) StateOf(name string) any {
	id := c.id
	if name != "" {
		id = DeriveID(c.id, name)
	}
	sp, ok := c.arena.index.Get(id)
	if ok {
		return sp.State()
	}
	if name != "" {
		c.fail(ErrAddressNotFound, "stateOf",
			fmt.Sprintf("there are no child '%s' in space '%s'", name, c.id))
	} else {
		c.fail(ErrAddressNotFound, "stateOf",
			fmt.Sprintf("there are no space '%s'", id))
	}
	return nil
}

// StateAs is StateOf with a type assertion.
func StateAs[S any](ctx *Context, name string) (S, bool) {
	s, ok := ctx.StateOf(name).(S)
	return s, ok
}

// InterfaceOf computes interface iface of child name of ctx, against the
// child's own context and state. Lookup failures are logged under
// "interfaceOf" and yield nil.
func InterfaceOf(ctx *Context, name, iface string) any {
	id := DeriveID(ctx.id, name)
	sp, ok := ctx.arena.index.Get(id)
	if !ok {
		ctx.fail(ErrAddressNotFound, "interfaceOf",
			fmt.Sprintf("there are no module '%s'", id))
		return nil
	}
	fn, ok := sp.Def.Interfaces[iface]
	if !ok {
		ctx.fail(ErrInterfaceNotFound, "interfaceOf",
			fmt.Sprintf("there are no interface '%s' in module '%s'", iface, id))
		return nil
	}
	return fn(sp.Ctx, sp.State())
}

// ToIt dispatches input of the component at ctx.
func ToIt(ctx *Context, input string, payload any) error {
	return Dispatch(ctx, DispatchData{ID: ctx.id, Input: input, Payload: payload})
}

// ToChild dispatches input of child name, from its parent.
func ToChild(ctx *Context, name, input string, payload any) error {
	return Dispatch(ctx, DispatchData{ID: DeriveID(ctx.id, name), Input: input, Payload: payload})
}

// ToAct executes the named action of the component at ctx with data. It is
// serialized on a module's tree like Dispatch.
func ToAct(ctx *Context, action string, data any) error {
	return ctx.serialize("toAct", func() error { return toAct(ctx, action, data) })
}

func toAct(ctx *Context, action string, data any) error {
	sp, ok := ctx.arena.index.Get(ctx.id)
	if !ok {
		return ctx.fail(ErrAddressNotFound, "toAct",
			fmt.Sprintf("there are no module '%s'", ctx.id))
	}
	act, ok := sp.Def.Actions[action]
	if !ok {
		return ctx.fail(ErrActionNotFound, "toAct",
			fmt.Sprintf("there are no action '%s' in module '%s'", action, ctx.id))
	}
	return execute(ctx, sp, act(data))
}

// Nest merges def as child name at run time and renotifies the interfaces.
func Nest(ctx *Context, name string, def *Definition) *Context {
	child := Merge(ctx, name, def)
	NotifyInterfaceHandlers(ctx)
	return child
}

// NestAll merges defs under ctx and renotifies once.
func NestAll(ctx *Context, defs map[string]*Definition) {
	MergeAll(ctx, defs)
	NotifyInterfaceHandlers(ctx)
}

// Unnest unmerges child name and renotifies the interfaces.
func Unnest(ctx *Context, name string) error {
	err := Unmerge(ctx.Child(name))
	NotifyInterfaceHandlers(ctx)
	return err
}

// UnnestAll unmerges the named children and renotifies once.
func UnnestAll(ctx *Context, names ...string) error {
	var first error
	for _, name := range names {
		if err := Unmerge(ctx.Child(name)); err != nil && first == nil {
			first = err
		}
	}
	NotifyInterfaceHandlers(ctx)
	return first
}
