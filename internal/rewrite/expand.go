package rewrite

import (
	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/registry"
)

// ExpandLibraryNode lowers one call-style node into its concrete constituent
// nodes using the registry expander for its chosen implementation.
func ExpandLibraryNode(p *prog.Program, r *prog.Region, n *prog.Node, reg *registry.Registry) error {
	expand := reg.Expander(n.Call.Kind, n.Call.Implementation)
	return expand(r, n)
}

// ExpandAll lowers every remaining call-style node across the program and
// its nested subprograms. Returns the number of nodes expanded.
func ExpandAll(p *prog.Program, reg *registry.Registry) (int, error) {
	expanded := 0
	for _, sub := range prog.AllPrograms(p) {
		for _, r := range sub.Regions {
			for _, n := range append([]*prog.Node(nil), r.Nodes...) {
				if n.Kind != prog.KindLibrary {
					continue
				}
				if err := ExpandLibraryNode(sub, r, n, reg); err != nil {
					return expanded, err
				}
				expanded++
			}
		}
	}
	return expanded, nil
}
