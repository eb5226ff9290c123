package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/symbolic"
)

func TestEliminateTrivialMaps(t *testing.T) {
	t.Run("unit-extent scope dissolves", func(t *testing.T) {
		p := prog.NewProgram("test")
		p.AddArray(&prog.Array{Name: "A", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(1)}})
		p.AddArray(&prog.Array{Name: "out", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(1)}})
		r := p.AddRegion("main")

		acc := r.AddAccess("A")
		m := r.AddMap("m", []string{"i"}, []symbolic.Expr{symbolic.Int(1)})
		c := r.AddCompute("work")
		out := r.AddAccess("out")
		r.AddEdge(acc, m, "A", []string{"i"})
		r.AddEdge(m, c, "A", []string{"i"})
		r.AddEdge(c, m.Pair, "out", []string{"i"})
		r.AddEdge(m.Pair, out, "out", []string{"i"})

		removed := EliminateTrivialMaps(p)
		assert.Equal(t, 1, removed)
		assert.Empty(t, prog.TopLevelEntries(r))

		read := edgeBetween(r, acc, c)
		require.NotNil(t, read)
		assert.Equal(t, []string{"0"}, read.Subset, "scope parameters collapse to index zero")
		write := edgeBetween(r, c, out)
		require.NotNil(t, write)
		assert.Equal(t, []string{"0"}, write.Subset)

		require.NoError(t, prog.Validate(p))
	})

	t.Run("symbolic extent is not provably trivial", func(t *testing.T) {
		p := prog.NewProgram("test")
		r := p.AddRegion("main")
		m := r.AddMap("m", []string{"i"}, []symbolic.Expr{symbolic.MustParse("N")})
		c := r.AddCompute("work")
		r.AddEdge(m, c, "", nil)
		r.AddEdge(c, m.Pair, "", nil)

		assert.Equal(t, 0, EliminateTrivialMaps(p))
	})

	t.Run("specialized symbolic extent dissolves", func(t *testing.T) {
		p := prog.NewProgram("test")
		p.Symbols["N"] = 1
		r := p.AddRegion("main")
		m := r.AddMap("m", []string{"i"}, []symbolic.Expr{symbolic.MustParse("N")})
		c := r.AddCompute("work")
		r.AddEdge(m, c, "", nil)
		r.AddEdge(c, m.Pair, "", nil)

		assert.Equal(t, 1, EliminateTrivialMaps(p))
	})
}

func TestSimplify(t *testing.T) {
	p := prog.NewProgram("test")
	p.AddArray(&prog.Array{Name: "A", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(4)}})
	r := p.AddRegion("main")
	r.AddAccess("A") // isolated, no edges
	r.AddCompute("keep")
	p.AddRegion("empty")

	removed := Simplify(p)
	assert.Equal(t, 2, removed)
	require.Len(t, p.Regions, 1)
	require.Len(t, p.Regions[0].Nodes, 1)
	assert.Equal(t, "keep", p.Regions[0].Nodes[0].Label)
}

func TestCollapse(t *testing.T) {
	build := func(innerSchedule prog.Schedule) (*prog.Program, *prog.Region, *prog.Node, *prog.Node) {
		p := prog.NewProgram("test")
		r := p.AddRegion("main")
		outer := r.AddMap("outer", []string{"i"}, []symbolic.Expr{symbolic.Int(16)})
		inner := r.AddMap("inner", []string{"j"}, []symbolic.Expr{symbolic.Int(8)})
		inner.Map.Schedule = innerSchedule
		c := r.AddCompute("work")
		r.AddEdge(outer, inner, "", nil)
		r.AddEdge(inner, c, "", nil)
		r.AddEdge(c, inner.Pair, "", nil)
		r.AddEdge(inner.Pair, outer.Pair, "", nil)
		return p, r, outer, inner
	}

	t.Run("perfectly nested pair collapses", func(t *testing.T) {
		p, r, outer, _ := build(prog.ScheduleDefault)
		assert.Equal(t, 1, Collapse(p))

		assert.Equal(t, []string{"i", "j"}, outer.Map.Params)
		assert.Equal(t, 2, outer.Map.Collapse)
		require.Len(t, prog.TopLevelEntries(r), 1)
		require.NoError(t, prog.Validate(p))
	})

	t.Run("sequential inner scope does not collapse", func(t *testing.T) {
		p, _, _, _ := build(prog.ScheduleSequential)
		assert.Equal(t, 0, Collapse(p))
	})

	t.Run("imperfect nesting does not collapse", func(t *testing.T) {
		p, r, outer, _ := build(prog.ScheduleDefault)
		// A second node directly in the outer body breaks perfection.
		extra := r.AddCompute("extra")
		r.AddEdge(outer, extra, "", nil)
		r.AddEdge(extra, outer.Pair, "", nil)
		assert.Equal(t, 0, Collapse(p))
	})
}

func TestLoopToMap(t *testing.T) {
	p := prog.NewProgram("test")
	p.AddArray(&prog.Array{Name: "A", DType: prog.F64, Shape: []symbolic.Expr{symbolic.MustParse("N")}})
	r := p.AddRegion("body")
	r.Loop = &prog.LoopInfo{Param: "k", Trips: symbolic.MustParse("N")}
	acc := r.AddAccess("A")
	c := r.AddCompute("work")
	r.AddEdge(acc, c, "A", []string{"k"})

	assert.Equal(t, 1, LoopToMap(p))
	assert.Nil(t, r.Loop)

	tops := prog.TopLevelEntries(r)
	require.Len(t, tops, 1)
	entry := tops[0]
	assert.Equal(t, []string{"k"}, entry.Map.Params)
	assert.True(t, entry.Map.Ranges[0].Equal(symbolic.MustParse("N")))
	assert.NotNil(t, edgeBetween(r, entry, acc))
	assert.NotNil(t, edgeBetween(r, c, entry.Pair))
	require.NoError(t, prog.Validate(p))
}
