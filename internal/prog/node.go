package prog

import (
	"fmt"

	"github.com/vk/flowopt/internal/symbolic"
)

// NodeKind is the discriminant of the closed node-variant set.
type NodeKind int

const (
	KindMapEntry NodeKind = iota // parallel-scope entry
	KindMapExit                  // parallel-scope exit, always paired with an entry
	KindCompute                  // elementary compute node
	KindAccess                   // data node naming a buffer
	KindNested                   // nested-subprogram node
	KindLibrary                  // call-style node with interchangeable implementations
)

func (k NodeKind) String() string {
	switch k {
	case KindMapEntry:
		return "map-entry"
	case KindMapExit:
		return "map-exit"
	case KindCompute:
		return "compute"
	case KindAccess:
		return "access"
	case KindNested:
		return "nested"
	case KindLibrary:
		return "library"
	}
	return "invalid"
}

// Schedule describes how a parallel scope's iteration space executes.
type Schedule int

const (
	ScheduleDefault Schedule = iota
	ScheduleSequential
	ScheduleCPUParallel
	ScheduleGPUDevice
)

func (s Schedule) String() string {
	switch s {
	case ScheduleSequential:
		return "sequential"
	case ScheduleCPUParallel:
		return "cpu-parallel"
	case ScheduleGPUDevice:
		return "gpu-device"
	default:
		return "default"
	}
}

// ParseSchedule converts a schedule name from program input. The empty
// string is the default schedule.
func ParseSchedule(s string) (Schedule, error) {
	switch s {
	case "", "default":
		return ScheduleDefault, nil
	case "sequential":
		return ScheduleSequential, nil
	case "cpu-parallel":
		return ScheduleCPUParallel, nil
	case "gpu-device":
		return ScheduleGPUDevice, nil
	}
	return ScheduleDefault, fmt.Errorf("unknown schedule %q", s)
}

// MapInfo is the iteration space shared by a scope's entry and exit nodes.
type MapInfo struct {
	Params   []string
	Ranges   []symbolic.Expr
	Schedule Schedule
	Unroll   bool

	// Collapse is the number of leading dimensions flattened for
	// scheduling purposes. Zero means unset.
	Collapse int
}

// TotalSize is the product of the iteration-space extents.
func (m *MapInfo) TotalSize() symbolic.Expr {
	return symbolic.Product(m.Ranges)
}

// AutoSelect is the distinguished implementation marker meaning "the
// optimizer should pick".
const AutoSelect = "auto"

// CallInfo is the payload of a call-style node: a library-node kind whose
// supported implementations are resolved through the registry, and the
// currently chosen implementation name.
type CallInfo struct {
	Kind           string
	Implementation string
}

// Node is a tagged variant; Kind selects which payload field is meaningful.
type Node struct {
	ID    int
	Kind  NodeKind
	Label string

	// Pair links a scope entry to its exit and vice versa.
	Pair *Node
	// Map is shared by both nodes of a scope pair.
	Map *MapInfo
	// Data names the buffer of an access node.
	Data string
	// Nested is the inner program of a nested-subprogram node.
	Nested *Program
	// Call is the payload of a library node.
	Call *CallInfo
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return n.Kind.String() + " " + n.Label
}
