// Package enumerate produces fusion candidates: groups of parallel-scope
// entries judged legally mergeable. The enumerator is a lazy, finite,
// non-restartable sequence; callers drain it with Next.
//
// Candidate sets are connected components of the "directly fusible"
// relation: two top-level scopes are directly fusible when one feeds the
// other through a transient data node and their iteration spaces agree
// dimension for dimension. Components are therefore disjoint, so applying
// one candidate never invalidates a later one within the same enumeration.
package enumerate

import (
	"sort"

	"github.com/vk/flowopt/internal/prog"
)

// Enumerator yields candidate sets of parallel-scope entries.
type Enumerator struct {
	sets [][]*prog.Node
	next int
}

// New builds an enumerator over the region's top-level scopes, restricted to
// the given subregion when non-nil. Normal order is estimated-benefit-first;
// reverse order favors tiling-friendly grouping and is used in tile mode.
func New(p *prog.Program, r *prog.Region, subregion map[*prog.Node]bool, reverse bool) *Enumerator {
	inSub := func(n *prog.Node) bool {
		return subregion == nil || subregion[n]
	}

	// A scope counts as top-level when nothing inside the subregion
	// encloses it. With no subregion, that is region-top-level.
	tree := prog.ScopeTree(r)
	var entries []*prog.Node
	for _, n := range r.Nodes {
		if n.Kind != prog.KindMapEntry || !inSub(n) {
			continue
		}
		if parent := tree[n]; parent == nil || !inSub(parent) {
			entries = append(entries, n)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	// Union-find over directly fusible pairs.
	parent := make(map[*prog.Node]*prog.Node, len(entries))
	for _, e := range entries {
		parent[e] = e
	}
	var find func(n *prog.Node) *prog.Node
	find = func(n *prog.Node) *prog.Node {
		if parent[n] != n {
			parent[n] = find(parent[n])
		}
		return parent[n]
	}
	union := func(a, b *prog.Node) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	for _, a := range entries {
		for _, b := range entries {
			if a == b || find(a) == find(b) {
				continue
			}
			if directlyFusible(p, r, a, b, inSub) {
				union(a, b)
			}
		}
	}

	components := make(map[*prog.Node][]*prog.Node)
	for _, e := range entries {
		root := find(e)
		components[root] = append(components[root], e)
	}

	sets := make([][]*prog.Node, 0, len(components))
	for _, set := range components {
		sort.Slice(set, func(i, j int) bool { return set[i].ID < set[j].ID })
		sets = append(sets, set)
	}
	sort.Slice(sets, func(i, j int) bool {
		bi, bj := benefit(p, sets[i]), benefit(p, sets[j])
		if bi != bj {
			return bi > bj
		}
		return sets[i][0].ID < sets[j][0].ID
	})
	if reverse {
		for i, j := 0, len(sets)-1; i < j; i, j = i+1, j-1 {
			sets[i], sets[j] = sets[j], sets[i]
		}
	}
	return &Enumerator{sets: sets}
}

// Next returns the next candidate set. The second return value is false once
// the sequence is exhausted; the sequence cannot be restarted.
func (e *Enumerator) Next() ([]*prog.Node, bool) {
	if e.next >= len(e.sets) {
		return nil, false
	}
	set := e.sets[e.next]
	e.next++
	return set, true
}

// directlyFusible reports whether scope a feeds scope b (or vice versa)
// through a transient data node, with matching iteration spaces.
func directlyFusible(p *prog.Program, r *prog.Region, a, b *prog.Node, inSub func(*prog.Node) bool) bool {
	if !rangesMatch(a.Map, b.Map) {
		return false
	}
	return feeds(p, r, a, b, inSub) || feeds(p, r, b, a, inSub)
}

// feeds reports whether producer's exit reaches consumer's entry through a
// transient data node used by nothing else. The exclusivity requirement is
// what makes applying a candidate safe: internalizing the data node cannot
// strand a third consumer outside the fused scope.
func feeds(p *prog.Program, r *prog.Region, producer, consumer *prog.Node, inSub func(*prog.Node) bool) bool {
	exit := producer.Pair
	for _, out := range r.OutEdges(exit) {
		mid := out.Dst
		if mid.Kind != prog.KindAccess || !inSub(mid) {
			continue
		}
		arr, ok := p.Arrays[mid.Data]
		if !ok || !arr.Transient {
			continue
		}
		exclusive := len(r.OutEdges(mid)) > 0
		for _, e := range r.InEdges(mid) {
			if e.Src != exit {
				exclusive = false
			}
		}
		for _, e := range r.OutEdges(mid) {
			if e.Dst != consumer {
				exclusive = false
			}
		}
		if exclusive {
			return true
		}
	}
	return false
}

func rangesMatch(a, b *prog.MapInfo) bool {
	if len(a.Ranges) != len(b.Ranges) {
		return false
	}
	for i := range a.Ranges {
		if !a.Ranges[i].Equal(b.Ranges[i]) {
			return false
		}
	}
	return true
}

// benefit estimates how much a candidate set is worth fusing: the sum of the
// concrete iteration extents of its members. Unresolved extents count as
// zero, pushing uncertain candidates toward the tail of the normal order.
func benefit(p *prog.Program, set []*prog.Node) int64 {
	var total int64
	for _, entry := range set {
		if n, ok := entry.Map.TotalSize().TryEvaluate(p.Symbols); ok {
			total += n
		}
	}
	return total
}
