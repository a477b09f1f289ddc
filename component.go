package fractalx

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Seed is passed to a definition's state initializer.
type Seed struct {
	Key string
}

// StateFunc builds the initial state of a component instance.
type StateFunc func(seed Seed) any

// Action creates a state Update from its argument.
type Action func(data any) Update

// Input handles one named input and returns what should be executed.
type Input func(payload any) Executable

// InputsFunc binds a definition's inputs to the context of one instance.
type InputsFunc func(ctx *Context) map[string]Input

// InterfaceFunc projects state into an externally consumed value.
type InterfaceFunc func(ctx *Context, state any) any

// Hooks are lifecycle callbacks. Init runs after all descendants are initialized;
// Destroy runs after all descendants are destroyed.
type Hooks struct {
	Init    func(ctx *Context)
	Destroy func(ctx *Context)
}

// Definition is the immutable blueprint of a component. The same definition
// may be merged at several places in a tree.
type Definition struct {
	Name       string
	Init       StateFunc
	Actions    map[string]Action
	Inputs     InputsFunc
	Interfaces map[string]InterfaceFunc
	Components map[string]*Definition
	Hooks      *Hooks
}

// Clone returns a shallow copy of d with its own maps, so the copy can be
// extended without touching the original.
func (d *Definition) Clone() *Definition {
	c := *d
	if d.Actions != nil {
		c.Actions = make(map[string]Action, len(d.Actions))
		for k, v := range d.Actions {
			c.Actions[k] = v
		}
	}
	if d.Interfaces != nil {
		c.Interfaces = make(map[string]InterfaceFunc, len(d.Interfaces))
		for k, v := range d.Interfaces {
			c.Interfaces[k] = v
		}
	}
	if d.Components != nil {
		c.Components = make(map[string]*Definition, len(d.Components))
		for k, v := range d.Components {
			c.Components[k] = v
		}
	}
	if d.Hooks != nil {
		h := *d.Hooks
		c.Hooks = &h
	}
	return &c
}

// Validate checks the definition and all nested definitions:
// - non-empty name
// - state initializer and inputs present
// - child names non-empty and free of the id separator
func (d *Definition) Validate() error {
	if d == nil {
		return errors.New("nil definition")
	}
	if d.Name == "" {
		return errors.New("definition name is required")
	}
	if d.Init == nil {
		return fmt.Errorf("definition %q: state initializer is required", d.Name)
	}
	if d.Inputs == nil {
		return fmt.Errorf("definition %q: inputs are required", d.Name)
	}
	for _, name := range d.childNames() {
		if name == "" || strings.Contains(name, Separator) {
			return fmt.Errorf("definition %q: invalid child name %q", d.Name, name)
		}
		if err := d.Components[name].Validate(); err != nil {
			return fmt.Errorf("child %q: %w", name, err)
		}
	}
	return nil
}

// childNames returns the names of nested definitions in their stable iteration order.
func (d *Definition) childNames() []string {
	return sortedKeys(d.Components)
}

func (d *Definition) initHook() func(*Context) {
	if d.Hooks == nil {
		return nil
	}
	return d.Hooks.Init
}

func (d *Definition) destroyHook() func(*Context) {
	if d.Hooks == nil {
		return nil
	}
	return d.Hooks.Destroy
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
