package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/symbolic"
)

// twoMapChain builds the canonical fusible shape: two scopes over the same
// iteration space linked through a single-use transient data node. The
// second scope iterates over a differently named parameter on purpose.
func twoMapChain(t *testing.T) (*prog.Program, *prog.Region) {
	t.Helper()
	p := prog.NewProgram("test")
	p.AddArray(&prog.Array{Name: "A", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(100)}})
	p.AddArray(&prog.Array{Name: "tmp", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(100)}, Transient: true})
	p.AddArray(&prog.Array{Name: "B", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(100)}})
	r := p.AddRegion("main")

	accA := r.AddAccess("A")
	m1 := r.AddMap("m1", []string{"i"}, []symbolic.Expr{symbolic.Int(100)})
	c1 := r.AddCompute("c1")
	link := r.AddAccess("tmp")
	m2 := r.AddMap("m2", []string{"j"}, []symbolic.Expr{symbolic.Int(100)})
	c2 := r.AddCompute("c2")
	accB := r.AddAccess("B")

	r.AddEdge(accA, m1, "A", []string{"i"})
	r.AddEdge(m1, c1, "A", []string{"i"})
	r.AddEdge(c1, m1.Pair, "tmp", []string{"i"})
	r.AddEdge(m1.Pair, link, "tmp", []string{"i"})
	r.AddEdge(link, m2, "tmp", []string{"j"})
	r.AddEdge(m2, c2, "tmp", []string{"j"})
	r.AddEdge(c2, m2.Pair, "B", []string{"j"})
	r.AddEdge(m2.Pair, accB, "B", []string{"j"})
	return p, r
}

func findNode(r *prog.Region, label string) *prog.Node {
	for _, n := range r.Nodes {
		if n.Label == label {
			return n
		}
	}
	return nil
}

func edgeBetween(r *prog.Region, src, dst *prog.Node) *prog.Edge {
	for _, e := range r.Edges {
		if e.Src == src && e.Dst == dst {
			return e
		}
	}
	return nil
}

func TestTrivialFuse(t *testing.T) {
	t.Run("merges a single-use chain", func(t *testing.T) {
		p, r := twoMapChain(t)
		applied := TrivialFuse(p, r)
		assert.Equal(t, 1, applied)

		tops := prog.TopLevelEntries(r)
		require.Len(t, tops, 1)
		fused := tops[0]

		// The link node now sits between the two compute nodes,
		// interior to the fused scope.
		c1 := findNode(r, "c1")
		c2 := findNode(r, "c2")
		link := findNode(r, "tmp")
		require.NotNil(t, link)
		assert.NotNil(t, edgeBetween(r, c1, link))
		assert.NotNil(t, edgeBetween(r, link, c2))

		tree := prog.ScopeTree(r)
		assert.Same(t, fused, tree[link])

		require.NoError(t, prog.Validate(p))
	})

	t.Run("renames the absorbed scope's parameters", func(t *testing.T) {
		p, r := twoMapChain(t)
		TrivialFuse(p, r)

		link := findNode(r, "tmp")
		c2 := findNode(r, "c2")
		inner := edgeBetween(r, link, c2)
		require.NotNil(t, inner)
		assert.Equal(t, []string{"i"}, inner.Subset)
	})

	t.Run("reruns to a fixed point", func(t *testing.T) {
		p, r := twoMapChain(t)
		TrivialFuse(p, r)
		assert.Equal(t, 0, TrivialFuse(p, r))
	})

	t.Run("shared link node blocks fusion", func(t *testing.T) {
		p, r := twoMapChain(t)
		link := findNode(r, "tmp")
		stray := r.AddCompute("stray")
		r.AddEdge(link, stray, "tmp", []string{"0"})

		assert.Equal(t, 0, TrivialFuse(p, r))
	})
}

func TestFuseScopes(t *testing.T) {
	t.Run("merges a connected candidate set", func(t *testing.T) {
		p, r := twoMapChain(t)
		m1 := findNode(r, "m1")
		m2 := findNode(r, "m2")

		fused, err := FuseScopes(p, r, []*prog.Node{m1, m2}, FusionOptions{})
		require.NoError(t, err)
		assert.Same(t, m1, fused)
		assert.Len(t, prog.TopLevelEntries(r), 1)
		require.NoError(t, prog.Validate(p))
	})

	t.Run("single-member set is a structural error", func(t *testing.T) {
		p, r := twoMapChain(t)
		m1 := findNode(r, "m1")

		_, err := FuseScopes(p, r, []*prog.Node{m1}, FusionOptions{})
		var serr *prog.StructuralError
		require.ErrorAs(t, err, &serr)
	})

	t.Run("disconnected set is a structural error", func(t *testing.T) {
		p, r := twoMapChain(t)
		m1 := findNode(r, "m1")
		lone := r.AddMap("lone", []string{"k"}, []symbolic.Expr{symbolic.Int(100)})
		c := r.AddCompute("c3")
		r.AddEdge(lone, c, "", nil)
		r.AddEdge(c, lone.Pair, "B", []string{"k"})

		_, err := FuseScopes(p, r, []*prog.Node{m1, lone}, FusionOptions{})
		var serr *prog.StructuralError
		require.ErrorAs(t, err, &serr)
		assert.Contains(t, err.Error(), "not connected")
	})

	t.Run("inner scheduling options apply to nested scopes", func(t *testing.T) {
		p, r := twoMapChain(t)
		m1 := findNode(r, "m1")
		m2 := findNode(r, "m2")
		c1 := findNode(r, "c1")

		// Put a small scope inside m1's body.
		nested := r.AddMap("nested", []string{"q"}, []symbolic.Expr{symbolic.Int(4)})
		cq := r.AddCompute("cq")
		r.AddEdge(c1, nested, "", nil)
		r.AddEdge(nested, cq, "", nil)
		r.AddEdge(cq, nested.Pair, "", nil)
		r.AddEdge(nested.Pair, m1.Pair, "", nil)

		_, err := FuseScopes(p, r, []*prog.Node{m1, m2},
			FusionOptions{InnerSchedule: prog.ScheduleSequential, UnrollInner: true})
		require.NoError(t, err)
		assert.Equal(t, prog.ScheduleSequential, nested.Map.Schedule)
		assert.True(t, nested.Map.Unroll)
	})
}

func TestRenameSymbol(t *testing.T) {
	assert.Equal(t, "i", renameSymbol("j", "j", "i"))
	assert.Equal(t, "i + 1", renameSymbol("j + 1", "j", "i"))
	assert.Equal(t, "jj", renameSymbol("jj", "j", "i"), "whole identifiers only")
	assert.Equal(t, "i * jj + i", renameSymbol("j * jj + j", "j", "i"))
	assert.Equal(t, "0", renameSymbol("0", "j", "i"))
}
