package rewrite

import (
	"fmt"

	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/symbolic"
)

// TileMap splits a parallel scope into an outer sequential scope iterating
// over tiles and an inner parallel scope of at most tileSize extent per
// dimension. It returns the new outer entry node.
func TileMap(p *prog.Program, r *prog.Region, entry *prog.Node, tileSize int64) (*prog.Node, error) {
	if entry.Kind != prog.KindMapEntry {
		return nil, &prog.StructuralError{Program: p.Name,
			Err: fmt.Errorf("tiling target %s is not a parallel-scope entry", entry)}
	}
	if tileSize <= 0 {
		return nil, &prog.StructuralError{Program: p.Name,
			Err: fmt.Errorf("tile size must be positive, got %d", tileSize)}
	}

	m := entry.Map
	outerParams := make([]string, len(m.Params))
	outerRanges := make([]symbolic.Expr, len(m.Params))
	for i, param := range m.Params {
		outerParams[i] = "t_" + param
		outerRanges[i] = symbolic.CeilDiv(m.Ranges[i], tileSize)
		m.Ranges[i] = symbolic.Int(tileSize)
	}

	outer := r.AddMap(entry.Label+"_tiles", outerParams, outerRanges)
	outer.Map.Schedule = prog.ScheduleSequential
	wrapScope(r, entry, outer)
	return outer, nil
}

// ExtractMapDims hoists the given dimension indices of a scope into a new
// enclosing parallel scope, leaving the remaining dimensions on the original
// scope. It returns the new outer entry node.
func ExtractMapDims(p *prog.Program, r *prog.Region, entry *prog.Node, dims []int) (*prog.Node, error) {
	if entry.Kind != prog.KindMapEntry {
		return nil, &prog.StructuralError{Program: p.Name,
			Err: fmt.Errorf("extraction target %s is not a parallel-scope entry", entry)}
	}
	m := entry.Map
	if len(dims) == 0 || len(dims) >= len(m.Params) {
		return nil, &prog.StructuralError{Program: p.Name,
			Err: fmt.Errorf("cannot extract %d of %d dimensions from %s", len(dims), len(m.Params), entry)}
	}
	extract := make(map[int]bool, len(dims))
	for _, d := range dims {
		if d < 0 || d >= len(m.Params) {
			return nil, &prog.StructuralError{Program: p.Name,
				Err: fmt.Errorf("dimension index %d out of range for %s", d, entry)}
		}
		extract[d] = true
	}

	var outerParams, keptParams []string
	var outerRanges, keptRanges []symbolic.Expr
	for i := range m.Params {
		if extract[i] {
			outerParams = append(outerParams, m.Params[i])
			outerRanges = append(outerRanges, m.Ranges[i])
		} else {
			keptParams = append(keptParams, m.Params[i])
			keptRanges = append(keptRanges, m.Ranges[i])
		}
	}
	m.Params, m.Ranges = keptParams, keptRanges

	outer := r.AddMap(entry.Label+"_outer", outerParams, outerRanges)
	outer.Map.Schedule = m.Schedule
	wrapScope(r, entry, outer)
	return outer, nil
}

// wrapScope inserts a freshly created scope around an existing one: edges
// into the inner entry are rerouted through the outer entry, edges out of
// the inner exit through the outer exit, preserving the data payload on both
// hops.
func wrapScope(r *prog.Region, inner, outer *prog.Node) {
	innerExit, outerExit := inner.Pair, outer.Pair
	for _, e := range r.InEdges(inner) {
		relay := r.AddEdge(outer, inner, e.Data, append([]string(nil), e.Subset...))
		relay.Dynamic = e.Dynamic
		e.Dst = outer
	}
	for _, e := range r.OutEdges(innerExit) {
		relay := r.AddEdge(innerExit, outerExit, e.Data, append([]string(nil), e.Subset...))
		relay.WCR = e.WCR
		relay.Dynamic = e.Dynamic
		relay.NonAtomic = e.NonAtomic
		e.Src = outerExit
	}
}
