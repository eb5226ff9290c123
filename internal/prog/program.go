package prog

import (
	"fmt"

	"github.com/vk/flowopt/internal/symbolic"
)

// Device classifies the execution target a program is optimized for.
type Device int

const (
	DeviceCPU Device = iota
	DeviceGPU
	DeviceOther
)

func (d Device) String() string {
	switch d {
	case DeviceCPU:
		return "cpu"
	case DeviceGPU:
		return "gpu"
	default:
		return "other"
	}
}

// ParseDevice converts a CLI/config device name.
func ParseDevice(s string) (Device, error) {
	switch s {
	case "cpu":
		return DeviceCPU, nil
	case "gpu":
		return DeviceGPU, nil
	case "other":
		return DeviceOther, nil
	}
	return DeviceCPU, fmt.Errorf("unknown device %q: must be 'cpu', 'gpu' or 'other'", s)
}

// Program is a hierarchical dataflow graph: an ordered collection of regions
// connected by control flow, plus the buffer descriptors they reference.
type Program struct {
	Name    string
	Arrays  map[string]*Array
	Regions []*Region

	// Symbols holds constants the program has been specialized for. Size
	// expressions are evaluated against this map.
	Symbols map[string]int64

	// CoarseSections allows the backend to emit coarse-grain parallel
	// sections for this program. The pipeline forces it off on nested
	// programs once fine-grained scheduling has been decided.
	CoarseSections bool
}

// NewProgram returns an empty program with the given name.
func NewProgram(name string) *Program {
	return &Program{
		Name:           name,
		Arrays:         make(map[string]*Array),
		Symbols:        make(map[string]int64),
		CoarseSections: true,
	}
}

// AddArray registers a buffer descriptor. It panics on duplicates, which are
// a programmer error in graph construction.
func (p *Program) AddArray(a *Array) *Array {
	if _, exists := p.Arrays[a.Name]; exists {
		panic(fmt.Sprintf("array %q already declared in program %q", a.Name, p.Name))
	}
	p.Arrays[a.Name] = a
	return a
}

// AddRegion appends a new empty region.
func (p *Program) AddRegion(name string) *Region {
	r := &Region{Name: name, program: p}
	p.Regions = append(p.Regions, r)
	return r
}

// LoopInfo marks a region as the body of a sequential loop that upstream
// analysis has proven free of loop-carried dependencies, making it eligible
// for conversion into a parallel scope.
type LoopInfo struct {
	Param string
	Trips symbolic.Expr
}

// Region is one control-flow step: a DAG of nodes and data edges.
type Region struct {
	Name  string
	Nodes []*Node
	Edges []*Edge
	Loop  *LoopInfo

	program *Program
	nextID  int
}

// Program returns the program this region belongs to.
func (r *Region) Program() *Program { return r.program }

func (r *Region) newNode(kind NodeKind, label string) *Node {
	r.nextID++
	n := &Node{ID: r.nextID, Kind: kind, Label: label}
	r.Nodes = append(r.Nodes, n)
	return n
}

// AddCompute adds a compute (tasklet) node.
func (r *Region) AddCompute(label string) *Node {
	return r.newNode(KindCompute, label)
}

// AddAccess adds a data node naming a buffer.
func (r *Region) AddAccess(data string) *Node {
	n := r.newNode(KindAccess, data)
	n.Data = data
	return n
}

// AddMap adds a paired parallel-scope entry/exit sharing one MapInfo, and
// returns the entry node.
func (r *Region) AddMap(label string, params []string, ranges []symbolic.Expr) *Node {
	m := &MapInfo{Params: params, Ranges: ranges, Schedule: ScheduleDefault}
	entry := r.newNode(KindMapEntry, label)
	entry.Map = m
	exit := r.newNode(KindMapExit, label)
	exit.Map = m
	entry.Pair = exit
	exit.Pair = entry
	return entry
}

// AddNested adds a nested-subprogram node.
func (r *Region) AddNested(label string, inner *Program) *Node {
	n := r.newNode(KindNested, label)
	n.Nested = inner
	return n
}

// AddLibrary adds a call-style node of the given kind with the auto-select
// implementation marker.
func (r *Region) AddLibrary(label, kind string) *Node {
	n := r.newNode(KindLibrary, label)
	n.Call = &CallInfo{Kind: kind, Implementation: AutoSelect}
	return n
}

// AddEdge connects two nodes with a data edge.
func (r *Region) AddEdge(src, dst *Node, data string, subset []string) *Edge {
	e := &Edge{Src: src, Dst: dst, Data: data, Subset: subset}
	r.Edges = append(r.Edges, e)
	return e
}

// OutEdges returns the edges leaving n, in insertion order.
func (r *Region) OutEdges(n *Node) []*Edge {
	var out []*Edge
	for _, e := range r.Edges {
		if e.Src == n {
			out = append(out, e)
		}
	}
	return out
}

// InEdges returns the edges entering n, in insertion order.
func (r *Region) InEdges(n *Node) []*Edge {
	var in []*Edge
	for _, e := range r.Edges {
		if e.Dst == n {
			in = append(in, e)
		}
	}
	return in
}

// RemoveEdge deletes an edge from the region.
func (r *Region) RemoveEdge(target *Edge) {
	for i, e := range r.Edges {
		if e == target {
			r.Edges = append(r.Edges[:i], r.Edges[i+1:]...)
			return
		}
	}
}

// RemoveNode deletes a node and every edge touching it.
func (r *Region) RemoveNode(target *Node) {
	kept := r.Edges[:0]
	for _, e := range r.Edges {
		if e.Src != target && e.Dst != target {
			kept = append(kept, e)
		}
	}
	r.Edges = kept
	for i, n := range r.Nodes {
		if n == target {
			r.Nodes = append(r.Nodes[:i], r.Nodes[i+1:]...)
			return
		}
	}
}

// HasNode reports whether n belongs to the region.
func (r *Region) HasNode(n *Node) bool {
	for _, cand := range r.Nodes {
		if cand == n {
			return true
		}
	}
	return false
}
