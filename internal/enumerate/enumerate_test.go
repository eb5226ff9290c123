package enumerate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/symbolic"
)

// chainProgram builds two scopes linked through an exclusive transient data
// node, plus one unconnected scope with a smaller iteration space.
func chainProgram(t *testing.T) (*prog.Program, *prog.Region, [3]*prog.Node) {
	t.Helper()
	p := prog.NewProgram("test")
	p.AddArray(&prog.Array{Name: "A", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(100)}})
	p.AddArray(&prog.Array{Name: "tmp", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(100)}, Transient: true})
	p.AddArray(&prog.Array{Name: "B", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(100)}})
	p.AddArray(&prog.Array{Name: "C", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(50)}})
	r := p.AddRegion("main")

	accA := r.AddAccess("A")
	m1 := r.AddMap("m1", []string{"i"}, []symbolic.Expr{symbolic.Int(100)})
	c1 := r.AddCompute("c1")
	link := r.AddAccess("tmp")
	m2 := r.AddMap("m2", []string{"i"}, []symbolic.Expr{symbolic.Int(100)})
	c2 := r.AddCompute("c2")
	accB := r.AddAccess("B")

	r.AddEdge(accA, m1, "A", []string{"i"})
	r.AddEdge(m1, c1, "A", []string{"i"})
	r.AddEdge(c1, m1.Pair, "tmp", []string{"i"})
	r.AddEdge(m1.Pair, link, "tmp", []string{"i"})
	r.AddEdge(link, m2, "tmp", []string{"i"})
	r.AddEdge(m2, c2, "tmp", []string{"i"})
	r.AddEdge(c2, m2.Pair, "B", []string{"i"})
	r.AddEdge(m2.Pair, accB, "B", []string{"i"})

	m3 := r.AddMap("m3", []string{"k"}, []symbolic.Expr{symbolic.Int(50)})
	c3 := r.AddCompute("c3")
	accC := r.AddAccess("C")
	r.AddEdge(m3, c3, "", nil)
	r.AddEdge(c3, m3.Pair, "C", []string{"k"})
	r.AddEdge(m3.Pair, accC, "C", []string{"k"})

	return p, r, [3]*prog.Node{m1, m2, m3}
}

func TestNew(t *testing.T) {
	t.Run("linked scopes group into one candidate set", func(t *testing.T) {
		p, r, maps := chainProgram(t)
		en := New(p, r, nil, false)

		first, ok := en.Next()
		require.True(t, ok)
		require.Len(t, first, 2)
		assert.Same(t, maps[0], first[0])
		assert.Same(t, maps[1], first[1])

		second, ok := en.Next()
		require.True(t, ok)
		require.Len(t, second, 1)
		assert.Same(t, maps[2], second[0])
	})

	t.Run("benefit orders larger components first", func(t *testing.T) {
		p, r, maps := chainProgram(t)
		en := New(p, r, nil, false)
		first, _ := en.Next()
		assert.Contains(t, first, maps[0], "the 100-element chain outranks the 50-element scope")
	})

	t.Run("reverse flips the order for tile mode", func(t *testing.T) {
		p, r, maps := chainProgram(t)
		en := New(p, r, nil, true)
		first, ok := en.Next()
		require.True(t, ok)
		require.Len(t, first, 1)
		assert.Same(t, maps[2], first[0])
	})

	t.Run("differing iteration spaces never group", func(t *testing.T) {
		p, r, _ := chainProgram(t)
		en := New(p, r, nil, false)
		for {
			set, ok := en.Next()
			if !ok {
				break
			}
			if len(set) > 1 {
				for _, entry := range set {
					assert.NotEqual(t, "m3", entry.Label)
				}
			}
		}
	})
}

func TestNextIsNotRestartable(t *testing.T) {
	p, r, _ := chainProgram(t)
	en := New(p, r, nil, false)
	seen := 0
	for {
		if _, ok := en.Next(); !ok {
			break
		}
		seen++
	}
	assert.Equal(t, 2, seen)

	_, ok := en.Next()
	assert.False(t, ok, "a drained enumerator stays drained")
}

func TestNonExclusiveLinkPreventsGrouping(t *testing.T) {
	p, r, _ := chainProgram(t)
	// Give the link node a second consumer outside the pair; the data node
	// can no longer be internalized safely.
	var link *prog.Node
	for _, n := range r.Nodes {
		if n.Kind == prog.KindAccess && n.Data == "tmp" {
			link = n
		}
	}
	require.NotNil(t, link)
	stray := r.AddCompute("stray")
	r.AddEdge(link, stray, "tmp", []string{"0"})

	en := New(p, r, nil, false)
	for {
		set, ok := en.Next()
		if !ok {
			break
		}
		assert.Len(t, set, 1)
	}
}
