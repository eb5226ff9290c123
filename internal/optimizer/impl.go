package optimizer

import (
	"context"

	"github.com/vk/flowopt/internal/ctxlog"
	"github.com/vk/flowopt/internal/mathlibs"
	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/registry"
	"github.com/vk/flowopt/internal/rewrite"
)

// PreferenceList returns the implementation names to try for call-style
// nodes on the given device, best first. For GPU-class devices the order is
// fixed: vendor GPU libraries, the vendor GPU primitive library, then the
// generic fallback. For CPU-class devices it is the best installed vendor
// math library followed by the generic fallback. Anything else gets the
// generic fallback only.
func PreferenceList(device prog.Device) []string {
	switch device {
	case prog.DeviceGPU:
		return []string{registry.ImplCuBLAS, registry.ImplCUB, registry.ImplPure}
	case prog.DeviceCPU:
		var result []string
		if mathlibs.IsInstalled(registry.ImplMKL) {
			result = append(result, registry.ImplMKL)
		} else if mathlibs.IsInstalled(registry.ImplOpenBLAS) {
			result = append(result, registry.ImplOpenBLAS)
		}
		return append(result, registry.ImplPure)
	default:
		return []string{registry.ImplPure}
	}
}

// SelectFast assigns fast library implementations across the program and its
// nested subprograms. Auto-select nodes that support none of the preferred
// implementations are expanded first: no choice can be made among options a
// node does not support, so it is lowered before selection proceeds. Every
// remaining call-style node not of an ignored kind then receives the first
// preference it supports; a node supporting none keeps its default and emits
// a non-fatal warning.
func SelectFast(ctx context.Context, p *prog.Program, device prog.Device,
	blocklist []string, ignoredKinds map[string]bool, reg *registry.Registry) error {
	logger := ctxlog.FromContext(ctx)

	blocked := make(map[string]bool, len(blocklist))
	for _, name := range blocklist {
		blocked[name] = true
	}
	var prefs []string
	for _, name := range PreferenceList(device) {
		if !blocked[name] {
			prefs = append(prefs, name)
		}
	}

	// Pass 1: force expansion of auto-select nodes with no usable option.
	for _, sub := range prog.AllPrograms(p) {
		for _, r := range sub.Regions {
			for _, n := range append([]*prog.Node(nil), r.Nodes...) {
				if n.Kind != prog.KindLibrary || n.Call.Implementation != prog.AutoSelect {
					continue
				}
				if supportsAny(reg, n.Call.Kind, prefs) {
					continue
				}
				logger.Debug("Expanding unselectable library node.", "node", n.Label, "kind", n.Call.Kind)
				if err := rewrite.ExpandLibraryNode(sub, r, n, reg); err != nil {
					return err
				}
			}
		}
	}

	// Pass 2: assign the first supported preference.
	for _, sub := range prog.AllPrograms(p) {
		for _, r := range sub.Regions {
			for _, n := range r.Nodes {
				if n.Kind != prog.KindLibrary || ignoredKinds[n.Call.Kind] {
					continue
				}
				assigned := false
				for _, impl := range prefs {
					if reg.Supports(n.Call.Kind, impl) {
						n.Call.Implementation = impl
						assigned = true
						break
					}
				}
				if !assigned {
					logger.Warn("No fast library implementation found, keeping default.",
						"node", n.Label, "kind", n.Call.Kind)
				}
			}
		}
	}
	return nil
}

func supportsAny(reg *registry.Registry, kind string, impls []string) bool {
	for _, impl := range impls {
		if reg.Supports(kind, impl) {
			return true
		}
	}
	return false
}
