package rewrite

import (
	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/symbolic"
)

// EliminateTrivialMaps removes parallel scopes whose every dimension has
// provably unit extent, reconnecting their bodies to the surrounding graph.
// Returns the number of scopes removed, across nested subprograms.
func EliminateTrivialMaps(p *prog.Program) int {
	removed := 0
	for _, sub := range prog.AllPrograms(p) {
		for _, r := range sub.Regions {
			for {
				entry := findTrivialMap(sub, r)
				if entry == nil {
					break
				}
				dissolveScope(r, entry)
				removed++
			}
		}
	}
	return removed
}

func findTrivialMap(p *prog.Program, r *prog.Region) *prog.Node {
	for _, n := range r.Nodes {
		if n.Kind != prog.KindMapEntry {
			continue
		}
		trivial := true
		for _, dim := range n.Map.Ranges {
			if v, ok := dim.TryEvaluate(p.Symbols); !ok || v != 1 {
				trivial = false
				break
			}
		}
		if trivial {
			return n
		}
	}
	return nil
}

// dissolveScope removes an entry/exit pair, splicing interior edges onto the
// exterior ones they relayed. Interior index tokens referencing the scope's
// parameters collapse to the single iteration, index zero.
func dissolveScope(r *prog.Region, entry *prog.Node) {
	exit := entry.Pair

	inScope := make(map[*prog.Node]bool)
	for _, n := range prog.ScopeNodes(r, entry) {
		inScope[n] = true
	}
	for _, e := range r.Edges {
		if !inScope[e.Src] && !inScope[e.Dst] {
			continue
		}
		for i, tok := range e.Subset {
			for _, param := range entry.Map.Params {
				tok = renameSymbol(tok, param, "0")
			}
			e.Subset[i] = tok
		}
	}

	for _, rd := range r.OutEdges(entry) {
		for _, in := range r.InEdges(entry) {
			if in.Data == rd.Data {
				rd.Src = in.Src
				break
			}
		}
	}
	for _, wr := range r.InEdges(exit) {
		for _, out := range r.OutEdges(exit) {
			if out.Data == wr.Data {
				wr.Dst = out.Dst
				break
			}
		}
	}
	r.RemoveNode(entry)
	r.RemoveNode(exit)
}

// Simplify runs one round of program-level cleanup: trivial-scope
// elimination, removal of isolated data nodes, and removal of empty regions.
// Returns the number of elements removed.
func Simplify(p *prog.Program) int {
	removed := EliminateTrivialMaps(p)
	for _, sub := range prog.AllPrograms(p) {
		for _, r := range sub.Regions {
			for _, n := range append([]*prog.Node(nil), r.Nodes...) {
				if n.Kind == prog.KindAccess && len(r.InEdges(n)) == 0 && len(r.OutEdges(n)) == 0 {
					r.RemoveNode(n)
					removed++
				}
			}
		}
		kept := sub.Regions[:0]
		for _, r := range sub.Regions {
			if len(r.Nodes) == 0 && r.Loop == nil {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		sub.Regions = kept
	}
	return removed
}

// Collapse merges perfectly nested scope pairs into single multi-dimensional
// scopes, repeating to a fixed point. Returns the number of merges.
func Collapse(p *prog.Program) int {
	merged := 0
	for _, sub := range prog.AllPrograms(p) {
		for _, r := range sub.Regions {
			for {
				outer, inner := findNestedPair(r)
				if outer == nil {
					break
				}
				collapsePair(r, outer, inner)
				merged++
			}
		}
	}
	return merged
}

// findNestedPair locates an outer scope whose body is exactly one inner
// scope: every edge out of the outer entry lands on the inner entry and
// every edge into the outer exit comes from the inner exit.
func findNestedPair(r *prog.Region) (*prog.Node, *prog.Node) {
	tree := prog.ScopeTree(r)
	for _, outer := range r.Nodes {
		if outer.Kind != prog.KindMapEntry {
			continue
		}
		var inner *prog.Node
		ok := true
		for _, e := range r.OutEdges(outer) {
			if e.Dst.Kind != prog.KindMapEntry || tree[e.Dst] != outer {
				ok = false
				break
			}
			if inner == nil {
				inner = e.Dst
			} else if inner != e.Dst {
				ok = false
				break
			}
		}
		if !ok || inner == nil {
			continue
		}
		for _, e := range r.InEdges(outer.Pair) {
			if e.Src != inner.Pair {
				ok = false
				break
			}
		}
		// Sequential inner scopes stay sequential for a reason (e.g.
		// the tiler's shortcut); collapsing would re-parallelize them.
		if ok && inner.Map.Schedule != prog.ScheduleSequential && outer.Map.Schedule != prog.ScheduleSequential {
			return outer, inner
		}
	}
	return nil, nil
}

func collapsePair(r *prog.Region, outer, inner *prog.Node) {
	outer.Map.Params = append(outer.Map.Params, inner.Map.Params...)
	outer.Map.Ranges = append(outer.Map.Ranges, inner.Map.Ranges...)
	outer.Map.Collapse = len(outer.Map.Params)

	for _, e := range r.OutEdges(outer) {
		if e.Dst == inner {
			r.RemoveEdge(e)
		}
	}
	for _, e := range r.InEdges(outer.Pair) {
		if e.Src == inner.Pair {
			r.RemoveEdge(e)
		}
	}
	innerExit := inner.Pair
	for _, e := range r.Edges {
		if e.Src == inner {
			e.Src = outer
		}
		if e.Dst == innerExit {
			e.Dst = outer.Pair
		}
	}
	r.RemoveNode(inner)
	r.RemoveNode(innerExit)
}

// LoopToMap converts loop regions proven free of loop-carried dependencies
// into parallel scopes wrapping the region body. Returns the number of
// conversions, across nested subprograms.
func LoopToMap(p *prog.Program) int {
	converted := 0
	for _, sub := range prog.AllPrograms(p) {
		for _, r := range sub.Regions {
			if r.Loop == nil {
				continue
			}
			wrapRegionInMap(r, r.Loop.Param, r.Loop.Trips)
			r.Loop = nil
			converted++
		}
	}
	return converted
}

// wrapRegionInMap inserts an entry before every source node and an exit
// after every sink node, turning the whole region body into one scope.
func wrapRegionInMap(r *prog.Region, param string, trips symbolic.Expr) {
	existing := append([]*prog.Node(nil), r.Nodes...)
	entry := r.AddMap(r.Name+"_par", []string{param}, []symbolic.Expr{trips})
	exit := entry.Pair
	for _, n := range existing {
		if len(r.InEdges(n)) == 0 {
			r.AddEdge(entry, n, "", nil)
		}
		if len(r.OutEdges(n)) == 0 {
			r.AddEdge(n, exit, "", nil)
		}
	}
}
