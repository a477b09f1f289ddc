package fractalx

import (
	"errors"
	"fmt"

	"github.com/comalice/fractalx/internal/primitives"
)

// mergeNode is one pending installation: def at ctx, named name under parentID.
type mergeNode struct {
	parentID string
	name     string
	ctx      *Context
	def      *Definition
}

func (n mergeNode) children() []mergeNode {
	names := n.def.childNames()
	out := make([]mergeNode, 0, len(names))
	for _, name := range names {
		out = append(out, mergeNode{
			parentID: n.ctx.id,
			name:     name,
			ctx:      n.ctx.Child(name),
			def:      n.def.Components[name],
		})
	}
	return out
}

// Merge instantiates def as child name of ctx, recursively merges its nested
// definitions and returns the child context.
//
// Spaces are installed parent first; Init hooks run post-order, so every
// descendant is initialized before its ancestor's hook runs. An existing id is
// overwritten with a warning.
func Merge(ctx *Context, name string, def *Definition) *Context {
	return mergeAt(ctx.id, ctx.Child(name), name, def)
}

// mergeAt installs def at the id child already carries. The module uses it to
// merge a root into a context object it keeps across hot swaps.
func mergeAt(parentID string, child *Context, name string, def *Definition) *Context {
	root := mergeNode{parentID: parentID, name: name, ctx: child, def: def}
	primitives.Walk(root, mergeNode.children, installSpace, runInitHook)
	return child
}

func installSpace(n mergeNode) {
	ix := n.ctx.arena.index
	if ix.Has(n.ctx.id) {
		n.ctx.warnf(ErrOverwrite, "merge",
			fmt.Sprintf("component '%s' has overwritten component '%s'", n.parentID, n.ctx.id))
	}

	sp := &Space{Ctx: n.ctx, Def: n.def}
	sp.state = n.def.Init(Seed{Key: n.name})
	if n.def.Inputs != nil {
		sp.Inputs = n.def.Inputs(n.ctx)
	}
	ix.put(n.ctx.id, sp)
}

func runInitHook(n mergeNode) {
	if hook := n.def.initHook(); hook != nil {
		hook(n.ctx)
	}
}

// MergeAll merges every definition of defs under ctx, in sorted name order.
func MergeAll(ctx *Context, defs map[string]*Definition) {
	for _, name := range sortedKeys(defs) {
		Merge(ctx, name, defs[name])
	}
}

// unmergeNode is one installed space scheduled for removal.
type unmergeNode struct {
	id string
	sp *Space
}

func (n unmergeNode) children() []unmergeNode {
	ix := n.sp.Ctx.arena.index
	var out []unmergeNode
	for _, name := range n.sp.Def.childNames() {
		id := DeriveID(n.id, name)
		// children removed earlier by an unnest are simply skipped
		if sp, ok := ix.Get(id); ok {
			out = append(out, unmergeNode{id: id, sp: sp})
		}
	}
	return out
}

func removeSpace(n unmergeNode) {
	if hook := n.sp.Def.destroyHook(); hook != nil {
		hook(n.sp.Ctx)
	}
	n.sp.Ctx.arena.index.remove(n.id)
}

// Unmerge tears down the subtree at ctx. Destroy hooks run deepest first and
// the space at ctx is removed last.
//
// Unmerging an id that is not installed logs an error, returns
// ErrUnmergeInvariant and leaves the index untouched.
func Unmerge(ctx *Context) error {
	sp, ok := ctx.arena.index.Get(ctx.id)
	if !ok {
		return ctx.fail(ErrUnmergeInvariant, "unmerge",
			fmt.Sprintf("there is no component name '%s'", ctx.id))
	}
	primitives.Walk(unmergeNode{id: ctx.id, sp: sp}, unmergeNode.children, nil, removeSpace)
	return nil
}

// UnmergeAll unmerges the children of ctx named by the keys of defs.
func UnmergeAll(ctx *Context, defs map[string]*Definition) error {
	var errs []error
	for _, name := range sortedKeys(defs) {
		if err := Unmerge(ctx.Child(name)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
