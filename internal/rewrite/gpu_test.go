package rewrite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/symbolic"
)

func TestLowerForGPU(t *testing.T) {
	p := prog.NewProgram("test")
	p.AddArray(&prog.Array{Name: "tmp", DType: prog.F64,
		Shape: []symbolic.Expr{symbolic.Int(64)}, Transient: true})
	p.AddArray(&prog.Array{Name: "local", DType: prog.F64,
		Shape: []symbolic.Expr{symbolic.Int(8)}, Transient: true})
	r := p.AddRegion("main")

	par := r.AddMap("par", []string{"i"}, []symbolic.Expr{symbolic.Int(64)})
	seq := r.AddMap("seq", []string{"k"}, []symbolic.Expr{symbolic.Int(64)})
	seq.Map.Schedule = prog.ScheduleSequential
	c1 := r.AddCompute("c1")
	c2 := r.AddCompute("c2")
	top := r.AddAccess("tmp")
	inner := r.AddAccess("local")

	r.AddEdge(par, c1, "", nil)
	r.AddEdge(c1, inner, "local", []string{"0"})
	r.AddEdge(inner, par.Pair, "local", []string{"0"})
	r.AddEdge(par.Pair, top, "tmp", []string{"i"})
	r.AddEdge(top, seq, "tmp", []string{"k"})
	r.AddEdge(seq, c2, "tmp", []string{"k"})
	r.AddEdge(c2, seq.Pair, "tmp", []string{"k"})

	changed := LowerForGPU(p)
	assert.Equal(t, 2, changed)

	assert.Equal(t, prog.ScheduleGPUDevice, par.Map.Schedule)
	assert.Equal(t, prog.ScheduleSequential, seq.Map.Schedule, "sequential scopes stay sequential")

	require.Contains(t, p.Arrays, "tmp")
	assert.Equal(t, prog.StorageDeviceGlobal, p.Arrays["tmp"].Storage)
	assert.Equal(t, prog.StorageDefault, p.Arrays["local"].Storage,
		"scope-local buffers stay default for the reclassifier")
}
