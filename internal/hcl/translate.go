package hcl

import (
	"fmt"

	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/schema"
	"github.com/vk/flowopt/internal/symbolic"
)

// translator builds prog.Program values from decoded schema blocks. Each
// nested reference gets its own program instance; a build stack guards
// against reference cycles.
type translator struct {
	blocks   map[string]*schema.Program
	building map[string]bool
}

func (t *translator) program(name string) (*prog.Program, error) {
	pb, ok := t.blocks[name]
	if !ok {
		return nil, fmt.Errorf("nested node references unknown program %q", name)
	}
	if t.building[name] {
		return nil, fmt.Errorf("program %q nests itself", name)
	}
	t.building[name] = true
	defer delete(t.building, name)

	p := prog.NewProgram(name)
	if pb.CoarseSections != nil {
		p.CoarseSections = *pb.CoarseSections
	}
	for _, sb := range pb.Symbols {
		p.Symbols[sb.Name] = sb.Value
	}
	for _, ab := range pb.Arrays {
		arr, err := t.array(ab)
		if err != nil {
			return nil, fmt.Errorf("program %q: %w", name, err)
		}
		if _, exists := p.Arrays[arr.Name]; exists {
			return nil, fmt.Errorf("program %q: array %q defined more than once", name, arr.Name)
		}
		p.AddArray(arr)
	}
	for _, rb := range pb.Regions {
		if err := t.region(p, rb); err != nil {
			return nil, fmt.Errorf("program %q: %w", name, err)
		}
	}
	return p, nil
}

func (t *translator) array(ab *schema.Array) (*prog.Array, error) {
	dtype, err := prog.ParseDType(ab.DType)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", ab.Name, err)
	}
	storage, err := prog.ParseStorage(ab.Storage)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", ab.Name, err)
	}
	lifetime, err := prog.ParseLifetime(ab.Lifetime)
	if err != nil {
		return nil, fmt.Errorf("array %q: %w", ab.Name, err)
	}
	shape, err := parseExprs(ab.Shape)
	if err != nil {
		return nil, fmt.Errorf("array %q shape: %w", ab.Name, err)
	}
	return &prog.Array{
		Name:      ab.Name,
		DType:     dtype,
		Shape:     shape,
		Transient: ab.Transient,
		Storage:   storage,
		Lifetime:  lifetime,
		Init:      ab.Init,
	}, nil
}

func (t *translator) region(p *prog.Program, rb *schema.Region) error {
	r := p.AddRegion(rb.Name)
	if rb.Loop != nil {
		trips, err := symbolic.Parse(rb.Loop.Trips)
		if err != nil {
			return fmt.Errorf("region %q loop trips: %w", rb.Name, err)
		}
		r.Loop = &prog.LoopInfo{Param: rb.Loop.Param, Trips: trips}
	}

	byName := make(map[string]*prog.Node)
	declare := func(name string, n *prog.Node) error {
		if _, exists := byName[name]; exists {
			return fmt.Errorf("region %q: node %q defined more than once", rb.Name, name)
		}
		byName[name] = n
		return nil
	}

	for _, mb := range rb.Maps {
		ranges, err := parseExprs(mb.Ranges)
		if err != nil {
			return fmt.Errorf("map %q ranges: %w", mb.Name, err)
		}
		if len(mb.Params) != len(ranges) {
			return fmt.Errorf("map %q: %d params but %d ranges", mb.Name, len(mb.Params), len(ranges))
		}
		schedule, err := prog.ParseSchedule(mb.Schedule)
		if err != nil {
			return fmt.Errorf("map %q: %w", mb.Name, err)
		}
		entry := r.AddMap(mb.Name, mb.Params, ranges)
		entry.Map.Schedule = schedule
		entry.Map.Unroll = mb.Unroll
		entry.Map.Collapse = mb.Collapse
		if err := declare(mb.Name, entry); err != nil {
			return err
		}
		if err := declare(mb.Name+"_exit", entry.Pair); err != nil {
			return err
		}
	}
	for _, cb := range rb.Computes {
		if err := declare(cb.Name, r.AddCompute(cb.Name)); err != nil {
			return err
		}
	}
	for _, acc := range rb.Accesses {
		data := acc.Data
		if data == "" {
			data = acc.Name
		}
		n := r.AddAccess(data)
		n.Label = acc.Name
		if err := declare(acc.Name, n); err != nil {
			return err
		}
	}
	for _, lb := range rb.Libraries {
		n := r.AddLibrary(lb.Name, lb.Kind)
		if lb.Implementation != "" {
			n.Call.Implementation = lb.Implementation
		}
		if err := declare(lb.Name, n); err != nil {
			return err
		}
	}
	for _, nb := range rb.Nesteds {
		inner, err := t.program(nb.Program)
		if err != nil {
			return err
		}
		if err := declare(nb.Name, r.AddNested(nb.Name, inner)); err != nil {
			return err
		}
	}

	for _, eb := range rb.Edges {
		src, ok := byName[eb.From]
		if !ok {
			return fmt.Errorf("region %q: edge references unknown node %q", rb.Name, eb.From)
		}
		dst, ok := byName[eb.To]
		if !ok {
			return fmt.Errorf("region %q: edge references unknown node %q", rb.Name, eb.To)
		}
		e := r.AddEdge(src, dst, eb.Data, eb.Subset)
		if eb.WCR != "" {
			comb, err := prog.ParseCombinator(eb.WCR)
			if err != nil {
				return fmt.Errorf("region %q: edge %s -> %s: %w", rb.Name, eb.From, eb.To, err)
			}
			e.WCR = comb
		}
		e.Dynamic = eb.Dynamic
		e.NonAtomic = eb.NonAtomic
	}
	return nil
}

func parseExprs(srcs []string) ([]symbolic.Expr, error) {
	out := make([]symbolic.Expr, 0, len(srcs))
	for _, s := range srcs {
		e, err := symbolic.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
