package optimizer

import (
	"context"
	"sort"

	"github.com/vk/flowopt/internal/config"
	"github.com/vk/flowopt/internal/ctxlog"
	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/rewrite"
	"github.com/vk/flowopt/internal/symbolic"
)

// WCROptions carries the per-call parameters of a write-conflict tiling run.
type WCROptions struct {
	// ValidateEach validates the program after every transformed scope.
	ValidateEach bool
	// PreferPartialParallelism, when set, overrides the configured
	// preference for hoisting non-conflicted dimensions over tiling.
	PreferPartialParallelism *bool
	Settings                 *config.Settings
}

// conflictedEdge is one retained discovery result: a write-conflicted edge
// and the parallel-scope entry that makes it conflicted.
type conflictedEdge struct {
	edge  *prog.Edge
	cause *prog.Node
}

// TileWriteConflicts discovers write-conflicted parallel scopes in the
// target and restructures them to reduce atomic traffic: small scopes are
// made sequential, partially conflicted scopes may have their parallel
// dimensions hoisted, and everything else is tiled with private
// identity-seeded accumulators. It returns the number of scopes transformed.
func TileWriteConflicts(ctx context.Context, scope Scope, opts WCROptions) (int, error) {
	logger := ctxlog.FromContext(ctx)
	settings := opts.Settings
	if settings == nil {
		settings = config.Default()
	}

	if scope.Region == nil {
		total := 0
		for _, r := range scope.Program.Regions {
			n, err := TileWriteConflicts(ctx, RegionScope(scope.Program, r), opts)
			total += n
			if err != nil {
				return total, err
			}
		}
		return total, nil
	}

	p, r := scope.Program, scope.Region
	retained := discoverConflicts(p, r, scope)

	preferPartial := settings.PreferPartialParallelism
	if opts.PreferPartialParallelism != nil {
		preferPartial = *opts.PreferPartialParallelism
	}
	threshold := settings.TileSizeThreshold

	// The distinct scopes implicated by any retained edge, in ID order
	// for deterministic processing.
	implicated := make(map[*prog.Node][]*prog.Edge)
	for _, ce := range retained {
		implicated[ce.cause] = append(implicated[ce.cause], ce.edge)
	}
	var scopes []*prog.Node
	for entry := range implicated {
		scopes = append(scopes, entry)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].ID < scopes[j].ID })

	transformed := make(map[*prog.Node]bool)

	// Heuristic: a partially conflicted scope keeps more parallelism by
	// hoisting its conflict-free dimensions than by tiling.
	if preferPartial {
		for _, entry := range scopes {
			dims := nonConflictedDims(entry, implicated[entry])
			if len(dims) == 0 || len(dims) == len(entry.Map.Params) {
				continue
			}
			var sizes []symbolic.Expr
			for _, d := range dims {
				sizes = append(sizes, entry.Map.Ranges[d])
			}
			// Indeterminate resolves to "not provably below
			// threshold": attempt the extraction.
			if symbolic.LessThan(symbolic.Product(sizes), threshold, p.Symbols) == symbolic.True {
				// The parallel part is small; extracting it
				// would not pay for itself.
				continue
			}
			if _, err := rewrite.ExtractMapDims(p, r, entry, dims); err != nil {
				return len(transformed), err
			}
			transformed[entry] = true
			if err := maybeValidate(p, opts.ValidateEach); err != nil {
				return len(transformed), err
			}
		}
	}

	// Tile and accumulate the scopes not handled above.
	for _, entry := range scopes {
		if transformed[entry] {
			continue
		}
		transformed[entry] = true

		if allBelowThreshold(entry.Map, threshold, p.Symbols) {
			// Tiling a small scope only adds overhead; run it
			// sequentially instead.
			logger.Debug("Making scope sequential: smaller than tile size.",
				"scope", entry.Label)
			entry.Map.Schedule = prog.ScheduleSequential
			continue
		}

		outer, err := rewrite.TileMap(p, r, entry, threshold)
		if err != nil {
			return len(transformed), err
		}
		if err := transformTileOutputs(p, r, entry.Pair, outer.Pair); err != nil {
			return len(transformed), err
		}
		if err := maybeValidate(p, opts.ValidateEach); err != nil {
			return len(transformed), err
		}
	}

	if len(transformed) > 0 {
		logger.Log(ctx, logLevel(settings), "Optimized write-conflicted scopes.",
			"region", r.Name, "count", len(transformed))
	}
	return len(transformed), nil
}

// discoverConflicts scans the target's data edges and keeps those that will
// generate atomics this pass can transform: carried by a write-conflict
// combinator, not a pass-through edge, caused by a parallel scope inside the
// target, and with a resolvable reduction identity.
func discoverConflicts(p *prog.Program, r *prog.Region, scope Scope) []conflictedEdge {
	var retained []conflictedEdge
	for _, e := range r.Edges {
		if e.WCR == prog.CombinatorNone {
			continue
		}
		// Pass-through edges relay a conflicted write made elsewhere.
		if e.Src.Kind == prog.KindMapExit || e.Src.Kind == prog.KindNested ||
			e.Dst.Kind == prog.KindMapEntry {
			continue
		}
		if !scope.contains(e.Src) || !scope.contains(e.Dst) {
			continue
		}
		cause := prog.ConflictCause(r, e)
		if cause == nil {
			// No enclosing scope conflicts; no atomics will be
			// generated for this edge.
			continue
		}
		if !scope.contains(cause) {
			// The conflict is created by an enclosing structure
			// outside the target and is out of reach here.
			continue
		}
		arr, ok := p.Arrays[e.Data]
		if !ok {
			continue
		}
		if _, ok := prog.ReductionIdentity(arr.DType, e.WCR); !ok {
			// Without an identity the write cannot be safely
			// restructured.
			continue
		}
		retained = append(retained, conflictedEdge{edge: e, cause: cause})
	}
	return retained
}

// nonConflictedDims returns the indices of the scope dimensions not involved
// in any of its conflicting edges.
func nonConflictedDims(entry *prog.Node, edges []*prog.Edge) []int {
	conflicted := make(map[string]bool)
	for _, e := range edges {
		for _, param := range prog.ConflictedParams(entry, e) {
			conflicted[param] = true
		}
	}
	var dims []int
	for i, param := range entry.Map.Params {
		if !conflicted[param] {
			dims = append(dims, i)
		}
	}
	return dims
}

// allBelowThreshold reports whether every dimension extent is provably below
// the tile size. Indeterminate resolves to "not below threshold", which
// prefers tiling; an extent exactly equal to the threshold is not below it.
func allBelowThreshold(m *prog.MapInfo, threshold int64, consts map[string]int64) bool {
	for _, dim := range m.Ranges {
		if symbolic.LessThan(dim, threshold, consts) != symbolic.True {
			return false
		}
	}
	return true
}

// transformTileOutputs rewrites the edges leaving a freshly tiled scope:
// streaming outputs gain a stream-buffering node when the data path matches
// the recognized producer -> inner exit -> outer exit shape, and every other
// conflicted, non-dynamic output gains a private accumulation buffer.
func transformTileOutputs(p *prog.Program, r *prog.Region, innerExit, outerExit *prog.Node) error {
	for _, e := range append([]*prog.Edge(nil), r.OutEdges(innerExit)...) {
		if e.IsEmpty() {
			continue
		}
		arr, ok := p.Arrays[e.Data]
		if !ok {
			continue
		}
		if arr.Storage == prog.StorageStream {
			producer := streamProducer(r, innerExit, e)
			if producer == nil {
				// Unrecognized data-path shape; left as is.
				continue
			}
			if err := rewrite.StreamTransient(p, r, producer, innerExit, outerExit, e.Data); err != nil {
				return err
			}
			continue
		}
		if e.WCR == prog.CombinatorNone || e.NonAtomic || e.Dynamic {
			continue
		}
		identity, ok := prog.ReductionIdentity(arr.DType, e.WCR)
		if !ok {
			continue
		}
		if err := rewrite.AccumulateTransient(p, r, innerExit, outerExit, e.Data, identity); err != nil {
			return err
		}
	}
	return nil
}

// streamProducer matches the exact three-hop stream path: a single compute
// node writing through the inner exit to the outer exit. Any other shape is
// a documented limitation, not an error.
func streamProducer(r *prog.Region, innerExit *prog.Node, e *prog.Edge) *prog.Node {
	if e.Dst.Kind != prog.KindMapExit {
		return nil
	}
	var producer *prog.Node
	for _, in := range r.InEdges(innerExit) {
		if in.Data != e.Data {
			continue
		}
		if producer != nil {
			return nil
		}
		producer = in.Src
	}
	if producer == nil || producer.Kind != prog.KindCompute {
		return nil
	}
	return producer
}

func maybeValidate(p *prog.Program, enabled bool) error {
	if !enabled {
		return nil
	}
	return prog.Validate(p)
}
