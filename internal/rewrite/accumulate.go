package rewrite

import (
	"fmt"

	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/symbolic"
)

// AccumulateTransient inserts a private accumulation buffer between a tiled
// scope's inner and outer exits for one write-conflicted output. The inner
// scope combines into the tile-local buffer without atomics; the buffer is
// combined into the destination once per tile. The buffer is seeded with the
// reduction identity.
func AccumulateTransient(p *prog.Program, r *prog.Region, innerExit, outerExit *prog.Node, data string, identity float64) error {
	var target *prog.Edge
	for _, e := range r.OutEdges(innerExit) {
		if e.Dst == outerExit && e.Data == data && e.WCR != prog.CombinatorNone {
			target = e
			break
		}
	}
	if target == nil {
		return &prog.StructuralError{Program: p.Name,
			Err: fmt.Errorf("no conflicted edge on %q between the given exits", data)}
	}
	arr, ok := p.Arrays[data]
	if !ok {
		return &prog.StructuralError{Program: p.Name,
			Err: fmt.Errorf("accumulation target %q is not a declared buffer", data)}
	}

	seed := identity
	acc := p.AddArray(&prog.Array{
		Name:      uniqueArrayName(p, "acc_"+data),
		DType:     arr.DType,
		Shape:     append([]symbolic.Expr(nil), arr.Shape...),
		Transient: true,
		Storage:   prog.StorageDefault,
		Lifetime:  prog.LifetimeScope,
		Init:      &seed,
	})

	node := r.AddAccess(acc.Name)
	r.RemoveEdge(target)

	local := r.AddEdge(innerExit, node, acc.Name, append([]string(nil), target.Subset...))
	local.WCR = target.WCR
	local.NonAtomic = true // tile-private, provably race-free

	combine := r.AddEdge(node, outerExit, data, append([]string(nil), target.Subset...))
	combine.WCR = target.WCR
	return nil
}

// StreamTransient inserts a stream-buffering node between a producer compute
// node and a tiled scope's exits, for an output written to a streaming
// buffer. It applies only to the recognized producer -> inner exit -> outer
// exit path; callers verify the shape beforehand.
func StreamTransient(p *prog.Program, r *prog.Region, producer, innerExit, outerExit *prog.Node, data string) error {
	var write *prog.Edge
	for _, e := range r.OutEdges(producer) {
		if e.Dst == innerExit && e.Data == data {
			write = e
			break
		}
	}
	if write == nil {
		return &prog.StructuralError{Program: p.Name,
			Err: fmt.Errorf("producer %s does not write %q to the inner exit", producer, data)}
	}
	arr, ok := p.Arrays[data]
	if !ok {
		return &prog.StructuralError{Program: p.Name,
			Err: fmt.Errorf("stream target %q is not a declared buffer", data)}
	}

	buf := p.AddArray(&prog.Array{
		Name:      uniqueArrayName(p, "stream_"+data),
		DType:     arr.DType,
		Shape:     append([]symbolic.Expr(nil), arr.Shape...),
		Transient: true,
		Storage:   prog.StorageStream,
		Lifetime:  prog.LifetimeScope,
	})

	node := r.AddAccess(buf.Name)
	r.RemoveEdge(write)
	r.AddEdge(producer, node, buf.Name, append([]string(nil), write.Subset...))
	r.AddEdge(node, innerExit, data, append([]string(nil), write.Subset...))
	return nil
}

// uniqueArrayName appends a numeric suffix until the name is unused.
func uniqueArrayName(p *prog.Program, base string) string {
	if _, exists := p.Arrays[base]; !exists {
		return base
	}
	for i := 1; ; i++ {
		name := fmt.Sprintf("%s_%d", base, i)
		if _, exists := p.Arrays[name]; !exists {
			return name
		}
	}
}
