package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowopt/internal/mathlibs"
	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/registry"
)

// withProbe substitutes the vendor-library probe for the test's duration.
func withProbe(t *testing.T, installed map[string]bool) {
	t.Helper()
	prev := mathlibs.SetProbe(func(name string) bool { return installed[name] })
	t.Cleanup(func() { mathlibs.SetProbe(prev) })
}

func TestPreferenceList(t *testing.T) {
	t.Run("gpu order is fixed", func(t *testing.T) {
		withProbe(t, nil)
		assert.Equal(t, []string{registry.ImplCuBLAS, registry.ImplCUB, registry.ImplPure},
			PreferenceList(prog.DeviceGPU))
	})

	t.Run("cpu without vendor libraries falls back to pure", func(t *testing.T) {
		withProbe(t, nil)
		assert.Equal(t, []string{registry.ImplPure}, PreferenceList(prog.DeviceCPU))
	})

	t.Run("installed mkl outranks everything on cpu", func(t *testing.T) {
		withProbe(t, map[string]bool{registry.ImplMKL: true, registry.ImplOpenBLAS: true})
		assert.Equal(t, []string{registry.ImplMKL, registry.ImplPure},
			PreferenceList(prog.DeviceCPU))
	})

	t.Run("openblas is used only when mkl is absent", func(t *testing.T) {
		withProbe(t, map[string]bool{registry.ImplOpenBLAS: true})
		assert.Equal(t, []string{registry.ImplOpenBLAS, registry.ImplPure},
			PreferenceList(prog.DeviceCPU))
	})

	t.Run("other devices get the generic fallback only", func(t *testing.T) {
		withProbe(t, nil)
		assert.Equal(t, []string{registry.ImplPure}, PreferenceList(prog.DeviceOther))
	})
}

func libraryProgram(t *testing.T) (*prog.Program, *prog.Node, *prog.Node) {
	t.Helper()
	p := prog.NewProgram("test")
	r := p.AddRegion("main")
	mm := r.AddLibrary("mm", "matmul")
	red := r.AddLibrary("red", "reduce")
	r.AddEdge(mm, red, "", nil)
	return p, mm, red
}

func TestSelectFast(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns the first supported preference per node", func(t *testing.T) {
		withProbe(t, map[string]bool{registry.ImplMKL: true})
		p, mm, red := libraryProgram(t)
		require.NoError(t, SelectFast(ctx, p, prog.DeviceCPU, nil, nil, registry.Default()))
		assert.Equal(t, registry.ImplMKL, mm.Call.Implementation)
		assert.Equal(t, registry.ImplPure, red.Call.Implementation, "reduce has no MKL variant")
	})

	t.Run("gpu selection picks vendor libraries", func(t *testing.T) {
		p, mm, red := libraryProgram(t)
		require.NoError(t, SelectFast(ctx, p, prog.DeviceGPU, nil, nil, registry.Default()))
		assert.Equal(t, registry.ImplCuBLAS, mm.Call.Implementation)
		assert.Equal(t, registry.ImplCUB, red.Call.Implementation)
	})

	t.Run("blocklisted implementations are skipped", func(t *testing.T) {
		p, mm, _ := libraryProgram(t)
		err := SelectFast(ctx, p, prog.DeviceGPU, []string{registry.ImplCuBLAS}, nil, registry.Default())
		require.NoError(t, err)
		assert.Equal(t, registry.ImplPure, mm.Call.Implementation)
	})

	t.Run("ignored kinds keep their implementation", func(t *testing.T) {
		p, _, red := libraryProgram(t)
		red.Call.Implementation = registry.ImplDeviceKernel
		ignored := map[string]bool{"reduce": true}
		require.NoError(t, SelectFast(ctx, p, prog.DeviceGPU, nil, ignored, registry.Default()))
		assert.Equal(t, registry.ImplDeviceKernel, red.Call.Implementation)
	})

	t.Run("unselectable auto node is expanded first", func(t *testing.T) {
		reg := registry.Default()
		reg.RegisterKind(&registry.Kind{Name: "custom", Implementations: []string{"special"}})

		p := prog.NewProgram("test")
		r := p.AddRegion("main")
		n := r.AddLibrary("odd", "custom")

		withProbe(t, nil)
		require.NoError(t, SelectFast(ctx, p, prog.DeviceCPU, nil, nil, reg))
		assert.Equal(t, prog.KindCompute, n.Kind)
		assert.Equal(t, "custom_pure", n.Label)
	})

	t.Run("explicit unsupported implementation survives with a warning", func(t *testing.T) {
		reg := registry.Default()
		reg.RegisterKind(&registry.Kind{Name: "custom", Implementations: []string{"special"}})

		p := prog.NewProgram("test")
		r := p.AddRegion("main")
		n := r.AddLibrary("odd", "custom")
		n.Call.Implementation = "special"

		withProbe(t, nil)
		require.NoError(t, SelectFast(ctx, p, prog.DeviceCPU, nil, nil, reg))
		assert.Equal(t, prog.KindLibrary, n.Kind)
		assert.Equal(t, "special", n.Call.Implementation)
	})
}
