package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/flowopt/internal/config"
	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/symbolic"
)

// stubLoader serves canned results so Run can be exercised without files.
type stubLoader struct {
	program      *prog.Program
	settings     *config.Settings
	loadErr      error
	settingsErr  error
	settingsPath string
}

func (s *stubLoader) LoadProgram(ctx context.Context, path string) (*prog.Program, *config.Settings, error) {
	if s.loadErr != nil {
		return nil, nil, s.loadErr
	}
	return s.program, s.settings, nil
}

func (s *stubLoader) LoadSettings(ctx context.Context, path string) (*config.Settings, error) {
	s.settingsPath = path
	if s.settingsErr != nil {
		return nil, s.settingsErr
	}
	return s.settings, nil
}

func smallProgram() *prog.Program {
	p := prog.NewProgram("tiny")
	p.AddArray(&prog.Array{Name: "A", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(8)}})
	p.AddArray(&prog.Array{Name: "B", DType: prog.F64, Shape: []symbolic.Expr{symbolic.Int(8)}})
	r := p.AddRegion("main")
	accA := r.AddAccess("A")
	m := r.AddMap("m", []string{"i"}, []symbolic.Expr{symbolic.Int(8)})
	c := r.AddCompute("c")
	accB := r.AddAccess("B")
	r.AddEdge(accA, m, "A", []string{"i"})
	r.AddEdge(m, c, "A", []string{"i"})
	r.AddEdge(c, m.Pair, "B", []string{"i"})
	r.AddEdge(m.Pair, accB, "B", []string{"i"})
	return p
}

func testConfig() *Config {
	return &Config{
		ProgramPath: "prog.hcl",
		Device:      "cpu",
		LogFormat:   "text",
		LogLevel:    "error",
	}
}

func TestNewConfig(t *testing.T) {
	t.Run("requires a program path", func(t *testing.T) {
		_, err := NewConfig(Config{})
		assert.Error(t, err)
	})

	t.Run("keeps the provided values", func(t *testing.T) {
		cfg, err := NewConfig(Config{ProgramPath: "p.hcl", Device: "gpu"})
		require.NoError(t, err)
		assert.Equal(t, "p.hcl", cfg.ProgramPath)
		assert.Equal(t, "gpu", cfg.Device)
	})
}

func TestAppRun(t *testing.T) {
	t.Run("optimizes a loaded program", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg := testConfig()
		loader := &stubLoader{program: smallProgram(), settings: config.Default()}

		a := NewApp(out, cfg, loader)
		require.NoError(t, a.Run(context.Background(), cfg))
	})

	t.Run("load failures are wrapped", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg := testConfig()
		loader := &stubLoader{loadErr: errors.New("boom")}

		a := NewApp(out, cfg, loader)
		err := a.Run(context.Background(), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to load program")
	})

	t.Run("explicit settings file replaces inline settings", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg := testConfig()
		cfg.SettingsPath = "tuning.hcl"
		loader := &stubLoader{program: smallProgram(), settings: config.Default()}

		a := NewApp(out, cfg, loader)
		require.NoError(t, a.Run(context.Background(), cfg))
		assert.Equal(t, "tuning.hcl", loader.settingsPath)
	})

	t.Run("unknown device is rejected", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg := testConfig()
		cfg.Device = "quantum"
		loader := &stubLoader{program: smallProgram(), settings: config.Default()}

		a := NewApp(out, cfg, loader)
		assert.Error(t, a.Run(context.Background(), cfg))
	})

	t.Run("structural failures surface as errors", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg := testConfig()
		broken := prog.NewProgram("broken")
		r := broken.AddRegion("main")
		acc := r.AddAccess("ghost")
		c := r.AddCompute("c")
		r.AddEdge(acc, c, "ghost", nil)
		loader := &stubLoader{program: broken, settings: config.Default()}

		a := NewApp(out, cfg, loader)
		err := a.Run(context.Background(), cfg)
		require.Error(t, err)
		var structural *prog.StructuralError
		assert.ErrorAs(t, err, &structural)
	})
}
