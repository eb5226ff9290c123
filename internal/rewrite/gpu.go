package rewrite

import "github.com/vk/flowopt/internal/prog"

// LowerForGPU retargets a program at a GPU-class device: top-level parallel
// scopes move to the device schedule, and transient buffers crossing scope
// boundaries at the top level move to device-global storage. Scope-local
// buffers keep default storage so the reclassifier can still place them.
// Returns the number of elements changed.
func LowerForGPU(p *prog.Program) int {
	changed := 0
	for _, sub := range prog.AllPrograms(p) {
		for _, r := range sub.Regions {
			tree := prog.ScopeTree(r)
			for _, n := range r.Nodes {
				switch n.Kind {
				case prog.KindMapEntry:
					if tree[n] == nil && n.Map.Schedule != prog.ScheduleSequential &&
						n.Map.Schedule != prog.ScheduleGPUDevice {
						n.Map.Schedule = prog.ScheduleGPUDevice
						changed++
					}
				case prog.KindAccess:
					if tree[n] != nil {
						continue
					}
					arr, ok := sub.Arrays[n.Data]
					if ok && arr.Transient && arr.Storage == prog.StorageDefault {
						arr.Storage = prog.StorageDeviceGlobal
						changed++
					}
				}
			}
		}
	}
	return changed
}
