package eqsys

import (
	"fmt"
	"sort"
)

// Factory builds one equation system from its physics block options.
type Factory func(parent *EquationSystems, s Settings, opts map[string]any) (System, error)

// Registry maps physics block tags to factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds tag to f, replacing any previous binding.
func (r *Registry) Register(tag string, f Factory) {
	r.factories[tag] = f
}

func (r *Registry) Get(tag string) (Factory, error) {
	fn, ok := r.factories[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSystem, tag)
	}
	return fn, nil
}

// List returns the registered tags in sorted order.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
