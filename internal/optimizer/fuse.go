package optimizer

import (
	"context"

	"github.com/vk/flowopt/internal/config"
	"github.com/vk/flowopt/internal/ctxlog"
	"github.com/vk/flowopt/internal/enumerate"
	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/rewrite"
)

// FuseOptions carries the per-call parameters of a greedy fusion run.
type FuseOptions struct {
	// ValidateEach validates the program after every applied fusion.
	ValidateEach bool
	Device       prog.Device
	// Recursive descends into the bodies of fused (and unfused) scopes.
	Recursive bool
	// TileMode reverses enumeration order and requests tiling-friendly
	// fusion with sequential inner schedules.
	TileMode bool
	Settings *config.Settings
}

// GreedyFuse repeatedly merges groups of parallel scopes in the target,
// mutating it in place, and returns the number of fusions applied. The
// search is greedy, not globally optimal; it terminates because every
// applied fusion strictly reduces the number of distinct top-level scopes.
//
// Descent over program structure is an explicit work-list rather than
// native recursion; the traversal order is a contract: outer scope before
// inner scope, program before nested subprogram.
func GreedyFuse(ctx context.Context, scope Scope, opts FuseOptions) (int, error) {
	logger := ctxlog.FromContext(ctx)
	settings := opts.Settings
	if settings == nil {
		settings = config.Default()
	}

	total := 0
	work := []Scope{scope}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		if cur.Region == nil {
			// Whole program: one round of simplification, trivial
			// fusion per region, then the regions themselves.
			rewrite.Simplify(cur.Program)
			for _, r := range cur.Program.Regions {
				rewrite.TrivialFuse(cur.Program, r)
			}
			for i := len(cur.Program.Regions) - 1; i >= 0; i-- {
				work = append(work, RegionScope(cur.Program, cur.Program.Regions[i]))
			}
			continue
		}

		applied, children, err := fuseRegion(ctx, cur, opts)
		if err != nil {
			return total, err
		}
		total += applied
		// Nested subprograms go on the list before the scope-body
		// descents so the bodies, pushed later, pop first.
		for _, n := range cur.Region.Nodes {
			if n.Kind == prog.KindNested && cur.contains(n) {
				work = append(work, ProgramScope(n.Nested))
			}
		}
		work = append(work, children...)
	}

	if total > 0 {
		level := logLevel(settings)
		if opts.TileMode {
			logger.Log(ctx, level, "Applied tiled fusions.", "count", total)
		} else {
			logger.Log(ctx, level, "Applied subgraph fusions.", "count", total)
		}
		if !opts.ValidateEach {
			if err := prog.Validate(scope.Program); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// fuseRegion drains the candidate enumerator for one region or subregion,
// applying every multi-member candidate set and collecting the scope-body
// descents for the caller's work-list.
func fuseRegion(ctx context.Context, cur Scope, opts FuseOptions) (int, []Scope, error) {
	p, r := cur.Program, cur.Region
	if cur.Subregion == nil {
		rewrite.TrivialFuse(p, r)
	}

	fopts := rewrite.FusionOptions{AllowTiling: opts.TileMode}
	if opts.TileMode {
		fopts.InnerSchedule = prog.ScheduleSequential
		if opts.Device == prog.DeviceGPU {
			fopts.UnrollInner = true
		}
	}

	applied := 0
	var children []Scope
	en := enumerate.New(p, r, cur.Subregion, opts.TileMode)
	for {
		set, ok := en.Next()
		if !ok {
			break
		}
		global := set[0]
		if len(set) > 1 {
			fused, err := rewrite.FuseScopes(p, r, set, fopts)
			if err != nil {
				return applied, nil, err
			}
			if opts.ValidateEach {
				if verr := prog.Validate(p); verr != nil {
					return applied, nil, verr
				}
			}
			global = fused
			applied++
		}
		if opts.Recursive {
			children = append(children, SubregionScope(p, r, prog.ScopeNodes(r, global)))
		}
	}
	return applied, children, nil
}
