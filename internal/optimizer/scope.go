package optimizer

import "github.com/vk/flowopt/internal/prog"

// Scope is an optimization target: a whole program, one region, or an
// explicit subregion (a region restricted to a node subset).
type Scope struct {
	Program *prog.Program
	// Region, when nil, means the whole program.
	Region *prog.Region
	// Subregion, when non-nil, restricts the region to these nodes.
	Subregion map[*prog.Node]bool
}

// ProgramScope targets a whole program.
func ProgramScope(p *prog.Program) Scope {
	return Scope{Program: p}
}

// RegionScope targets one region.
func RegionScope(p *prog.Program, r *prog.Region) Scope {
	return Scope{Program: p, Region: r}
}

// SubregionScope targets a node subset within a region.
func SubregionScope(p *prog.Program, r *prog.Region, nodes []*prog.Node) Scope {
	sub := make(map[*prog.Node]bool, len(nodes))
	for _, n := range nodes {
		sub[n] = true
	}
	return Scope{Program: p, Region: r, Subregion: sub}
}

// contains reports whether a node is inside the scope's subregion; a nil
// subregion contains every node of the region.
func (s Scope) contains(n *prog.Node) bool {
	return s.Subregion == nil || s.Subregion[n]
}
