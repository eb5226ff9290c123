package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
)

// Settings holds the process-wide optimizer knobs.
type Settings struct {
	// TileSizeThreshold is the tile extent used when restructuring
	// write-conflicted scopes, and the size bound below which buffers are
	// considered small. Must be positive.
	TileSizeThreshold int64

	// PreferPartialParallelism makes the tiler hoist non-conflicted
	// dimensions out of a conflicted scope instead of tiling it, when the
	// per-call flag is left unset.
	PreferPartialParallelism bool

	// VerboseProgress raises pass-by-pass progress reporting from debug
	// to info level.
	VerboseProgress bool
}

// Default returns the settings used when no configuration file is given.
func Default() *Settings {
	return &Settings{
		TileSizeThreshold:        128,
		PreferPartialParallelism: false,
		VerboseProgress:          false,
	}
}

// Validate checks the settings invariants.
func (s *Settings) Validate() error {
	if s.TileSizeThreshold <= 0 {
		return fmt.Errorf("tile_size_threshold must be positive, got %d", s.TileSizeThreshold)
	}
	return nil
}

// Environment variable names recognized by ApplyEnv.
const (
	EnvTileSize           = "FLOWOPT_TILE_SIZE"
	EnvPartialParallelism = "FLOWOPT_PARTIAL_PARALLELISM"
	EnvVerbose            = "FLOWOPT_VERBOSE"
)

// ApplyEnv overlays environment-variable overrides onto the settings.
// Malformed values are reported as errors rather than silently ignored.
func (s *Settings) ApplyEnv() error {
	if v := os.Getenv(EnvTileSize); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvTileSize, err)
		}
		s.TileSizeThreshold = n
	}
	if v := os.Getenv(EnvPartialParallelism); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPartialParallelism, err)
		}
		s.PreferPartialParallelism = b
	}
	if v := os.Getenv(EnvVerbose); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvVerbose, err)
		}
		s.VerboseProgress = b
	}
	return s.Validate()
}

// Loader is the interface for a format-specific settings loader.
type Loader interface {
	// LoadSettings reads settings from the given path, starting from the
	// defaults for every key the source omits.
	LoadSettings(ctx context.Context, path string) (*Settings, error)
}
