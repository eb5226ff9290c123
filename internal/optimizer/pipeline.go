package optimizer

import (
	"context"

	"github.com/vk/flowopt/internal/config"
	"github.com/vk/flowopt/internal/ctxlog"
	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/registry"
	"github.com/vk/flowopt/internal/rewrite"
)

// Options carries the per-call parameters of a whole-pipeline run.
type Options struct {
	// Validate runs the mandatory final validation. On by default via
	// DefaultOptions; suppress explicitly.
	Validate bool
	// ValidateEach validates after every mutating step.
	ValidateEach bool
	// Symbols are caller-supplied symbol values; only the subset the
	// program references as free parameters is specialized.
	Symbols map[string]int64
	// SubgraphFuse enables the greedy fusion stages; TrivialFuse is the
	// fallback when it is disabled.
	SubgraphFuse bool
	TrivialFuse  bool
	// AutoParallelize converts eligible loop regions to parallel scopes.
	AutoParallelize bool
	Settings        *config.Settings
	Registry        *registry.Registry
}

// DefaultOptions returns the standard pipeline configuration.
func DefaultOptions() Options {
	return Options{
		Validate:        true,
		SubgraphFuse:    true,
		TrivialFuse:     true,
		AutoParallelize: true,
	}
}

// Report summarizes what one pipeline run changed.
type Report struct {
	Fusions      int
	TileFusions  int
	TiledScopes  int
	Expanded     int
	Specialized  int
	Reclassified int
	Promoted     int
}

// Optimize runs the fixed heuristic pass sequence over the program for the
// given device, mutating it in place. Only a structural error aborts; every
// skipped pattern is local and recoverable. The program must be exclusively
// owned by the caller; no two optimization runs may share an instance.
func Optimize(ctx context.Context, p *prog.Program, device prog.Device, opts Options) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	settings := opts.Settings
	if settings == nil {
		settings = config.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = registry.Default()
	}
	report := &Report{}

	checkpoint := func() error { return maybeValidate(p, opts.ValidateEach) }

	// Program-level simplification and trivial-scope cleanup.
	rewrite.Simplify(p)
	rewrite.EliminateTrivialMaps(p)
	if err := checkpoint(); err != nil {
		return report, err
	}

	if opts.AutoParallelize {
		if n := rewrite.LoopToMap(p); n > 0 {
			logger.Debug("Converted loop regions to parallel scopes.", "count", n)
			rewrite.Simplify(p)
		}
		if err := checkpoint(); err != nil {
			return report, err
		}
	}

	rewrite.Collapse(p)
	if err := checkpoint(); err != nil {
		return report, err
	}

	// Device-conditioned lowering. Library nodes that expose a
	// device-resident implementation and sit outside every parallel scope
	// get it forced now; the selector must not touch those kinds later.
	ignoredKinds := make(map[string]bool)
	if device == prog.DeviceGPU {
		for _, sub := range prog.AllPrograms(p) {
			for _, r := range sub.Regions {
				tree := prog.ScopeTree(r)
				for _, n := range r.Nodes {
					if n.Kind != prog.KindLibrary || tree[n] != nil {
						continue
					}
					kind := reg.Lookup(n.Call.Kind)
					if kind == nil || kind.DeviceResident == "" {
						continue
					}
					n.Call.Implementation = kind.DeviceResident
					ignoredKinds[kind.Name] = true
				}
			}
		}
		rewrite.LowerForGPU(p)
		rewrite.Simplify(p)
		if err := checkpoint(); err != nil {
			return report, err
		}
	}

	if opts.SubgraphFuse {
		fopts := FuseOptions{
			ValidateEach: opts.ValidateEach,
			Device:       device,
			Recursive:    true,
			Settings:     settings,
		}
		n, err := GreedyFuse(ctx, ProgramScope(p), fopts)
		report.Fusions = n
		if err != nil {
			return report, err
		}

		fopts.Recursive = false
		fopts.TileMode = true
		n, err = GreedyFuse(ctx, ProgramScope(p), fopts)
		report.TileFusions = n
		if err != nil {
			return report, err
		}
	} else if opts.TrivialFuse {
		for _, sub := range prog.AllPrograms(p) {
			for _, r := range sub.Regions {
				report.Fusions += rewrite.TrivialFuse(sub, r)
			}
		}
	}

	rewrite.Collapse(p)
	if err := checkpoint(); err != nil {
		return report, err
	}

	if err := SelectFast(ctx, p, device, nil, ignoredKinds, reg); err != nil {
		return report, err
	}

	expanded, err := rewrite.ExpandAll(p, reg)
	report.Expanded = expanded
	if err != nil {
		return report, err
	}
	if err := checkpoint(); err != nil {
		return report, err
	}

	// Tiled write-conflict resolution, program by program.
	for _, sub := range prog.AllPrograms(p) {
		n, err := TileWriteConflicts(ctx, ProgramScope(sub), WCROptions{
			ValidateEach: opts.ValidateEach,
			Settings:     settings,
		})
		report.TiledScopes += n
		if err != nil {
			return report, err
		}
	}

	// Fine-grained scheduling is decided by now; nested programs must not
	// open their own coarse-grain parallel sections.
	for _, sub := range prog.AllPrograms(p) {
		if sub != p {
			sub.CoarseSections = false
		}
	}

	// Specialize only the symbols the program actually references.
	if len(opts.Symbols) > 0 {
		free := make(map[string]bool)
		for _, s := range prog.FreeSymbols(p) {
			free[s] = true
		}
		known := make(map[string]int64)
		for name, v := range opts.Symbols {
			if free[name] {
				known[name] = v
			}
		}
		if len(known) > 0 {
			logger.Log(ctx, logLevel(settings), "Specializing program for symbols.", "symbols", known)
			prog.Specialize(p, known)
			report.Specialized = len(known)
		}
	}

	report.Reclassified = ReclassifySmallBuffers(ctx, p, settings)

	report.Promoted = promoteLifetimes(p, device)

	if device == prog.DeviceGPU {
		// A non-atomic override cannot be proven safe once device
		// lowering has happened.
		for _, sub := range prog.AllPrograms(p) {
			for _, r := range sub.Regions {
				for _, e := range r.Edges {
					e.NonAtomic = false
				}
			}
		}
	}

	if opts.Validate || opts.ValidateEach {
		if err := prog.Validate(p); err != nil {
			return report, err
		}
	}
	return report, nil
}

// promoteLifetimes amortizes allocation across repeated invocations: every
// concretely sized transient buffer not already in fast local storage
// becomes process-persistent. On GPU-class devices, device-global transients
// are promoted as well.
func promoteLifetimes(p *prog.Program, device prog.Device) int {
	promoted := 0
	for _, sub := range prog.AllPrograms(p) {
		for _, arr := range sub.Arrays {
			if !arr.Transient || arr.Storage == prog.StorageStream {
				continue
			}
			if _, ok := arr.TotalSize().TryEvaluate(sub.Symbols); !ok {
				continue
			}
			if arr.Storage != prog.StorageFastLocal && arr.Lifetime != prog.LifetimePersistent {
				arr.Lifetime = prog.LifetimePersistent
				promoted++
			}
		}
	}
	if device == prog.DeviceGPU {
		for _, arr := range p.Arrays {
			if arr.Transient && arr.Storage == prog.StorageDeviceGlobal &&
				arr.Lifetime != prog.LifetimePersistent {
				arr.Lifetime = prog.LifetimePersistent
				promoted++
			}
		}
	}
	return promoted
}
