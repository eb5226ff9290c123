package rewrite

import (
	"fmt"

	"github.com/vk/flowopt/internal/prog"
)

// FusionOptions carries the per-call parameters of a composite fusion.
type FusionOptions struct {
	// AllowTiling permits tiling-friendly grouping when fusing.
	AllowTiling bool
	// InnerSchedule, when not ScheduleDefault, is forced onto every scope
	// nested inside the fused scope.
	InnerSchedule prog.Schedule
	// UnrollInner marks nested scopes for loop unrolling.
	UnrollInner bool
}

// TrivialFuse fuses adjacent parallel scopes connected through exactly one
// single-use transient data node, repeating to a fixed point. It returns the
// number of fusions applied.
func TrivialFuse(p *prog.Program, r *prog.Region) int {
	applied := 0
	for {
		a, b := findTrivialPair(p, r)
		if a == nil {
			return applied
		}
		// The pair was matched structurally, so the merge cannot fail.
		if err := mergeScopes(p, r, a, b, FusionOptions{}); err != nil {
			return applied
		}
		applied++
	}
}

// findTrivialPair locates two top-level scopes linked by one transient
// access node that has exactly one producer and one consumer edge.
func findTrivialPair(p *prog.Program, r *prog.Region) (*prog.Node, *prog.Node) {
	entries := prog.TopLevelEntries(r)
	for _, a := range entries {
		for _, b := range entries {
			if a == b || !rangesEqual(a.Map, b.Map) {
				continue
			}
			for _, link := range linkNodes(p, r, a, b) {
				if len(r.InEdges(link)) == 1 && len(r.OutEdges(link)) == 1 {
					return a, b
				}
			}
		}
	}
	return nil, nil
}

// FuseScopes merges a candidate set of top-level parallel scopes into one,
// honoring the given options, and returns the surviving entry node. The set
// must contain at least two mutually reachable scopes; an unfusable set is a
// structural error.
func FuseScopes(p *prog.Program, r *prog.Region, set []*prog.Node, opts FusionOptions) (*prog.Node, error) {
	if len(set) < 2 {
		return nil, &prog.StructuralError{Program: p.Name,
			Err: fmt.Errorf("composite fusion requires at least two scopes, got %d", len(set))}
	}
	base := set[0]
	remaining := append([]*prog.Node(nil), set[1:]...)

	for len(remaining) > 0 {
		merged := false
		for i, m := range remaining {
			if len(linkNodes(p, r, base, m)) == 0 && len(linkNodes(p, r, m, base)) == 0 {
				continue
			}
			if err := mergeScopes(p, r, base, m, opts); err != nil {
				return nil, err
			}
			remaining = append(remaining[:i], remaining[i+1:]...)
			merged = true
			break
		}
		if !merged {
			return nil, &prog.StructuralError{Program: p.Name,
				Err: fmt.Errorf("candidate set is not connected: scope %s unreachable from %s", remaining[0], base)}
		}
	}

	applyInnerScheduling(r, base, opts)
	return base, nil
}

// linkNodes returns the transient access nodes that carry data from scope a
// into scope b and have no edges outside the pair.
func linkNodes(p *prog.Program, r *prog.Region, a, b *prog.Node) []*prog.Node {
	var links []*prog.Node
	for _, out := range r.OutEdges(a.Pair) {
		mid := out.Dst
		if mid.Kind != prog.KindAccess {
			continue
		}
		arr, ok := p.Arrays[mid.Data]
		if !ok || !arr.Transient {
			continue
		}
		clean := true
		for _, e := range r.InEdges(mid) {
			if e.Src != a.Pair {
				clean = false
			}
		}
		for _, e := range r.OutEdges(mid) {
			if e.Dst != b {
				clean = false
			}
		}
		if clean && len(r.OutEdges(mid)) > 0 {
			links = append(links, mid)
		}
	}
	return links
}

// mergeScopes merges scope m into scope base. The two iteration spaces must
// agree; m's parameters are renamed to base's, linking access nodes become
// interior to the fused scope, and every remaining edge of m's pair is
// retargeted onto base's pair.
func mergeScopes(p *prog.Program, r *prog.Region, base, m *prog.Node, opts FusionOptions) error {
	if !rangesEqual(base.Map, m.Map) {
		if !opts.AllowTiling {
			return &prog.StructuralError{Program: p.Name,
				Err: fmt.Errorf("cannot fuse %s with %s: iteration spaces differ", base, m)}
		}
		// Tiling-friendly grouping still requires equal spaces in this
		// rewrite; the enumerator only emits compatible sets.
		return &prog.StructuralError{Program: p.Name,
			Err: fmt.Errorf("tiled fusion of differing iteration spaces is not supported (%s vs %s)", base, m)}
	}

	renameParams(r, m, base.Map.Params)

	// Internalize the data nodes linking the two scopes, in both
	// directions. The access node stays, now sitting inside the fused
	// scope between the producer and consumer compute nodes.
	for _, pair := range [][2]*prog.Node{{base, m}, {m, base}} {
		producer, consumer := pair[0], pair[1]
		for _, link := range linkNodes(p, r, producer, consumer) {
			internalizeLink(r, producer.Pair, consumer, link)
		}
	}

	// Retarget everything still attached to m's pair onto base's pair.
	for _, e := range r.Edges {
		if e.Dst == m {
			e.Dst = base
		}
		if e.Src == m {
			e.Src = base
		}
		if e.Src == m.Pair {
			e.Src = base.Pair
		}
		if e.Dst == m.Pair {
			e.Dst = base.Pair
		}
	}
	exit := m.Pair
	r.RemoveNode(m)
	r.RemoveNode(exit)

	applyInnerScheduling(r, base, opts)
	return nil
}

// internalizeLink rewires producerExit -> link -> consumerEntry so the link
// node sits directly between the interior producers and consumers.
func internalizeLink(r *prog.Region, producerExit, consumerEntry, link *prog.Node) {
	for _, e := range r.InEdges(link) {
		if e.Src == producerExit {
			r.RemoveEdge(e)
		}
	}
	for _, e := range r.InEdges(producerExit) {
		if e.Data == link.Data {
			e.Dst = link
		}
	}
	for _, e := range r.OutEdges(link) {
		if e.Dst == consumerEntry {
			r.RemoveEdge(e)
		}
	}
	for _, e := range r.OutEdges(consumerEntry) {
		if e.Data == link.Data {
			e.Src = link
		}
	}
}

// renameParams rewrites the iteration parameters of scope m (and every index
// token inside its body) to the given names.
func renameParams(r *prog.Region, m *prog.Node, to []string) {
	from := m.Map.Params
	if len(from) != len(to) {
		return
	}
	same := true
	for i := range from {
		if from[i] != to[i] {
			same = false
			break
		}
	}
	if same {
		return
	}

	inScope := map[*prog.Node]bool{m: true, m.Pair: true}
	for _, n := range prog.ScopeNodes(r, m) {
		inScope[n] = true
	}
	for _, e := range r.Edges {
		if !inScope[e.Src] && !inScope[e.Dst] {
			continue
		}
		for i, tok := range e.Subset {
			for j := range from {
				tok = renameSymbol(tok, from[j], to[j])
			}
			e.Subset[i] = tok
		}
	}
	m.Map.Params = append([]string(nil), to...)
}

// applyInnerScheduling forces the requested schedule and unroll flag onto
// every scope nested inside the fused scope.
func applyInnerScheduling(r *prog.Region, fused *prog.Node, opts FusionOptions) {
	if opts.InnerSchedule == prog.ScheduleDefault && !opts.UnrollInner {
		return
	}
	for _, n := range prog.ScopeNodes(r, fused) {
		if n.Kind != prog.KindMapEntry {
			continue
		}
		if opts.InnerSchedule != prog.ScheduleDefault {
			n.Map.Schedule = opts.InnerSchedule
		}
		if opts.UnrollInner {
			n.Map.Unroll = true
		}
	}
}

func rangesEqual(a, b *prog.MapInfo) bool {
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

// renameSymbol replaces whole-identifier occurrences of a symbol inside an
// index token.
func renameSymbol(tok, from, to string) string {
	if from == to || from == "" {
		return tok
	}
	isWord := func(b byte) bool {
		return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
	}
	var out []byte
	for i := 0; i < len(tok); {
		if i+len(from) <= len(tok) && tok[i:i+len(from)] == from {
			beforeOK := i == 0 || !isWord(tok[i-1])
			afterOK := i+len(from) == len(tok) || !isWord(tok[i+len(from)])
			if beforeOK && afterOK {
				out = append(out, to...)
				i += len(from)
				continue
			}
		}
		out = append(out, tok[i])
		i++
	}
	return string(out)
}
