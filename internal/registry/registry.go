// Package registry is the name-to-implementation lookup for call-style
// library nodes. Each library-node kind registers the implementation names
// it supports and an expander per implementation; the implementation
// selector walks a device preference list against this registry, and
// library expansion resolves a node to its expander here.
package registry

import (
	"fmt"

	"github.com/vk/flowopt/internal/prog"
)

// Expander lowers a library node into its concrete constituent nodes,
// mutating the region in place.
type Expander func(r *prog.Region, n *prog.Node) error

// Kind describes one library-node kind: its supported implementation names,
// in no particular order, and optional per-implementation expanders.
type Kind struct {
	Name            string
	Implementations []string

	// DeviceResident names an implementation that executes as a whole
	// device-level primitive, when the kind exposes one.
	DeviceResident string

	expanders map[string]Expander
}

// Supports reports whether the kind supports the named implementation.
func (k *Kind) Supports(impl string) bool {
	for _, have := range k.Implementations {
		if have == impl {
			return true
		}
	}
	return false
}

// Registry maps library-node kind names to their descriptors.
type Registry struct {
	kinds map[string]*Kind
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{kinds: make(map[string]*Kind)}
}

// RegisterKind adds a kind descriptor. Registering the same kind twice is a
// programmer error and panics.
func (r *Registry) RegisterKind(k *Kind) {
	if _, exists := r.kinds[k.Name]; exists {
		panic(fmt.Sprintf("library kind %q already registered", k.Name))
	}
	r.kinds[k.Name] = k
}

// RegisterExpander attaches an expander for one implementation of a kind.
func (r *Registry) RegisterExpander(kind, impl string, fn Expander) {
	k, ok := r.kinds[kind]
	if !ok {
		panic(fmt.Sprintf("library kind %q not registered", kind))
	}
	if k.expanders == nil {
		k.expanders = make(map[string]Expander)
	}
	if _, exists := k.expanders[impl]; exists {
		panic(fmt.Sprintf("expander for %q/%q already registered", kind, impl))
	}
	k.expanders[impl] = fn
}

// Lookup returns the descriptor for a kind, or nil.
func (r *Registry) Lookup(name string) *Kind {
	return r.kinds[name]
}

// Supports reports whether the kind exists and supports the implementation.
func (r *Registry) Supports(kind, impl string) bool {
	k := r.kinds[kind]
	return k != nil && k.Supports(impl)
}

// Expander resolves the expansion function for a kind/implementation pair,
// falling back to the generic expander that lowers the node into a single
// compute node tagged with the implementation name.
func (r *Registry) Expander(kind, impl string) Expander {
	if k := r.kinds[kind]; k != nil {
		if fn, ok := k.expanders[impl]; ok {
			return fn
		}
	}
	return genericExpand
}

// genericExpand lowers a library node in place: the node becomes a compute
// node labeled kind_implementation, keeping every edge attached.
func genericExpand(r *prog.Region, n *prog.Node) error {
	if n.Kind != prog.KindLibrary || n.Call == nil {
		return fmt.Errorf("cannot expand non-library node %s", n)
	}
	impl := n.Call.Implementation
	if impl == prog.AutoSelect {
		impl = "pure"
	}
	n.Label = n.Call.Kind + "_" + impl
	n.Kind = prog.KindCompute
	n.Call = nil
	return nil
}
