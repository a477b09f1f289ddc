package fractalx

import (
	"fmt"
	"strings"
)

// Builder provides a fluent API for assembling a definition tree from
// separator-delimited paths instead of nested Definition literals.
type Builder struct {
	rootName string
	nodes    map[string]*ComponentBuilder // path -> builder; "" is the root
	mounted  map[string]*Definition       // path -> prebuilt definition
	order    []string
}

// ComponentBuilder provides fluent methods for configuring one component.
type ComponentBuilder struct {
	b      *Builder
	path   string
	name   string
	def    *Definition
	inputs map[string]func(ctx *Context, payload any) Executable
}

// NewBuilder creates a builder whose root component is called rootName.
func NewBuilder(rootName string) *Builder {
	b := &Builder{
		rootName: rootName,
		nodes:    make(map[string]*ComponentBuilder),
		mounted:  make(map[string]*Definition),
	}
	b.node("")
	return b
}

// Root returns the builder of the root component.
func (b *Builder) Root() *ComponentBuilder {
	return b.nodes[""]
}

// Component creates or retrieves the component at path.
// Supports separator notation for nesting (e.g., "list$item").
// Missing parents are auto-created as stateless components.
func (b *Builder) Component(path string) *ComponentBuilder {
	parent, _ := splitPath(path)
	if parent != "" {
		b.Component(parent)
	}
	return b.node(path)
}

// Mount places a prebuilt definition at path. Its own nested components are kept.
func (b *Builder) Mount(path string, def *Definition) *Builder {
	parent, _ := splitPath(path)
	if parent != "" {
		b.Component(parent)
	}
	b.mounted[path] = def
	return b
}

func (b *Builder) node(path string) *ComponentBuilder {
	if cb, ok := b.nodes[path]; ok {
		return cb
	}
	name := b.rootName
	if path != "" {
		_, name = splitPath(path)
	}
	cb := &ComponentBuilder{
		b:      b,
		path:   path,
		name:   name,
		def:    &Definition{Name: name},
		inputs: make(map[string]func(*Context, any) Executable),
	}
	b.nodes[path] = cb
	b.order = append(b.order, path)
	return cb
}

// Build validates the tree and returns the root definition.
func (b *Builder) Build() (*Definition, error) {
	for _, path := range b.order {
		if err := checkPath(path); err != nil {
			return nil, err
		}
	}
	for path := range b.mounted {
		if err := checkPath(path); err != nil {
			return nil, err
		}
		if _, ok := b.nodes[path]; ok {
			return nil, fmt.Errorf("component %q is both built and mounted", path)
		}
	}

	defs := make(map[string]*Definition, len(b.nodes)+len(b.mounted))
	for _, path := range b.order {
		defs[path] = b.nodes[path].finish()
	}
	for path, def := range b.mounted {
		defs[path] = def
	}
	for _, path := range sortedKeys(defs) {
		if path == "" {
			continue
		}
		parentPath, name := splitPath(path)
		parent := defs[parentPath]
		if parent.Components == nil {
			parent.Components = make(map[string]*Definition)
		}
		parent.Components[name] = defs[path]
	}

	root := defs[""]
	if err := root.Validate(); err != nil {
		return nil, err
	}
	return root, nil
}

// MustBuild is Build that panics on error.
func (b *Builder) MustBuild() *Definition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

func checkPath(path string) error {
	if path == "" {
		return nil
	}
	for _, seg := range strings.Split(path, Separator) {
		if seg == "" {
			return fmt.Errorf("component path %q has an empty segment", path)
		}
	}
	return nil
}

// splitPath splits a hierarchical path into parent and name components.
// For example, "list$item" returns ("list", "item").
func splitPath(path string) (parent, name string) {
	return ParentID(path), BaseName(path)
}

// finish returns the definition with defaults for unset fields.
func (cb *ComponentBuilder) finish() *Definition {
	def := cb.def
	if def.Init == nil {
		def.Init = func(Seed) any { return nil }
	}
	inputs := cb.inputs
	def.Inputs = func(ctx *Context) map[string]Input {
		bound := make(map[string]Input, len(inputs))
		for name, fn := range inputs {
			bound[name] = func(payload any) Executable { return fn(ctx, payload) }
		}
		return bound
	}
	return def
}

// ComponentBuilder fluent methods

// Component returns the builder of child name of this component.
func (cb *ComponentBuilder) Component(name string) *ComponentBuilder {
	return cb.b.Component(DeriveID(cb.path, name))
}

// Up returns the builder of the parent component. The root returns itself.
func (cb *ComponentBuilder) Up() *ComponentBuilder {
	if cb.path == "" {
		return cb
	}
	return cb.b.node(ParentID(cb.path))
}

// State sets the state initializer.
func (cb *ComponentBuilder) State(fn StateFunc) *ComponentBuilder {
	cb.def.Init = fn
	return cb
}

// Action declares a named action.
func (cb *ComponentBuilder) Action(name string, act Action) *ComponentBuilder {
	if cb.def.Actions == nil {
		cb.def.Actions = make(map[string]Action)
	}
	cb.def.Actions[name] = act
	return cb
}

// Input declares a named input. fn receives the instance context on every call.
func (cb *ComponentBuilder) Input(name string, fn func(ctx *Context, payload any) Executable) *ComponentBuilder {
	cb.inputs[name] = fn
	return cb
}

// Interface declares a named interface projection.
func (cb *ComponentBuilder) Interface(name string, fn InterfaceFunc) *ComponentBuilder {
	if cb.def.Interfaces == nil {
		cb.def.Interfaces = make(map[string]InterfaceFunc)
	}
	cb.def.Interfaces[name] = fn
	return cb
}

// OnInit sets the init hook, run after every descendant is initialized.
func (cb *ComponentBuilder) OnInit(fn func(ctx *Context)) *ComponentBuilder {
	if cb.def.Hooks == nil {
		cb.def.Hooks = &Hooks{}
	}
	cb.def.Hooks.Init = fn
	return cb
}

// OnDestroy sets the destroy hook, run after every descendant is destroyed.
func (cb *ComponentBuilder) OnDestroy(fn func(ctx *Context)) *ComponentBuilder {
	if cb.def.Hooks == nil {
		cb.def.Hooks = &Hooks{}
	}
	cb.def.Hooks.Destroy = fn
	return cb
}

// Build builds the whole tree this component belongs to.
func (cb *ComponentBuilder) Build() (*Definition, error) {
	return cb.b.Build()
}

// MustBuild builds the whole tree this component belongs to and panics on error.
func (cb *ComponentBuilder) MustBuild() *Definition {
	return cb.b.MustBuild()
}
