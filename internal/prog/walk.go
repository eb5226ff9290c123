package prog

import "sort"

// AllPrograms returns the program and every nested subprogram beneath it.
// Traversal is an explicit work-list, outer before inner, so the slice order
// is a contract: a program always precedes its nested subprograms.
func AllPrograms(p *Program) []*Program {
	var all []*Program
	queue := []*Program{p}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		all = append(all, cur)
		for _, r := range cur.Regions {
			for _, n := range r.Nodes {
				if n.Kind == KindNested && n.Nested != nil {
					queue = append(queue, n.Nested)
				}
			}
		}
	}
	return all
}

// FreeSymbols returns the symbol names the program references as free
// parameters: everything used by array shapes and iteration ranges, across
// nested subprograms, minus already-specialized constants. Sorted for
// determinism.
func FreeSymbols(p *Program) []string {
	seen := make(map[string]bool)
	for _, sub := range AllPrograms(p) {
		for _, a := range sub.Arrays {
			for _, dim := range a.Shape {
				for _, s := range dim.FreeSymbols() {
					seen[s] = true
				}
			}
		}
		for _, r := range sub.Regions {
			if r.Loop != nil {
				for _, s := range r.Loop.Trips.FreeSymbols() {
					seen[s] = true
				}
			}
			for _, n := range r.Nodes {
				if n.Kind != KindMapEntry {
					continue
				}
				for _, dim := range n.Map.Ranges {
					for _, s := range dim.FreeSymbols() {
						seen[s] = true
					}
				}
			}
		}
		for name := range sub.Symbols {
			delete(seen, name)
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specialize fixes the given symbols to concrete values, in this program and
// every nested subprogram. Size expressions evaluate against these constants
// from then on.
func Specialize(p *Program, values map[string]int64) {
	for _, sub := range AllPrograms(p) {
		for name, v := range values {
			sub.Symbols[name] = v
		}
	}
}
