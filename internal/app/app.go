package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/flowopt/internal/config"
	"github.com/vk/flowopt/internal/ctxlog"
	"github.com/vk/flowopt/internal/optimizer"
	"github.com/vk/flowopt/internal/prog"
	"github.com/vk/flowopt/internal/registry"
)

// Loader abstracts the input format. It loads both the optimizer settings
// and the dataflow program; the HCL implementation lives in internal/hcl.
type Loader interface {
	config.Loader
	LoadProgram(ctx context.Context, path string) (*prog.Program, *config.Settings, error)
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	loader   Loader
	registry *registry.Registry
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, appConfig *Config, loader Loader) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	return &App{
		outW:     outW,
		logger:   logger,
		loader:   loader,
		registry: registry.Default(),
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Run loads the program and settings, executes the optimization pipeline,
// and logs the resulting report.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	device, err := prog.ParseDevice(appConfig.Device)
	if err != nil {
		return err
	}

	p, inlineSettings, err := a.loader.LoadProgram(ctx, appConfig.ProgramPath)
	if err != nil {
		return fmt.Errorf("failed to load program: %w", err)
	}

	settings := inlineSettings
	if appConfig.SettingsPath != "" {
		settings, err = a.loader.LoadSettings(ctx, appConfig.SettingsPath)
		if err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
	}
	if err := settings.ApplyEnv(); err != nil {
		return fmt.Errorf("invalid settings override: %w", err)
	}

	opts := optimizer.DefaultOptions()
	opts.Settings = settings
	opts.Registry = a.registry
	opts.ValidateEach = appConfig.ValidateEach
	opts.Validate = !appConfig.NoValidate

	a.logger.Info("Optimizing program.", "program", p.Name, "device", device.String())
	report, err := optimizer.Optimize(ctx, p, device, opts)
	if err != nil {
		var structural *prog.StructuralError
		if errors.As(err, &structural) {
			a.logger.Error("Optimization produced an invalid program.", "error", structural)
		}
		return err
	}

	a.logger.Info("Optimization complete.",
		"fusions", report.Fusions,
		"tile_fusions", report.TileFusions,
		"tiled_scopes", report.TiledScopes,
		"expanded", report.Expanded,
		"specialized", report.Specialized,
		"reclassified", report.Reclassified,
		"promoted", report.Promoted,
	)
	return nil
}
