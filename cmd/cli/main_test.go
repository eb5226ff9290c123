package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const validHCL = `
program "scale" {
  array "A" {
    dtype = "f64"
    shape = ["8"]
  }

  array "B" {
    dtype = "f64"
    shape = ["8"]
  }

  region "main" {
    map "m" {
      params = ["i"]
      ranges = ["8"]
    }

    compute "c" {}

    access "A" {}
    access "B" {}

    edge {
      from   = "A"
      to     = "m"
      data   = "A"
      subset = ["i"]
    }
    edge {
      from   = "m"
      to     = "c"
      data   = "A"
      subset = ["i"]
    }
    edge {
      from   = "c"
      to     = "m_exit"
      data   = "B"
      subset = ["i"]
    }
    edge {
      from   = "m_exit"
      to     = "B"
      data   = "B"
      subset = ["i"]
    }
  }
}
`

func TestRun_OptimizesProgram(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "main.hcl")
	err := os.WriteFile(filePath, []byte(validHCL), 0600)
	require.NoError(t, err, "failed to set up test file")

	out := &bytes.Buffer{}

	// --- Act ---
	runErr := run(out, []string{filePath})

	// --- Assert ---
	require.NoError(t, runErr, "run() should optimize a valid program without error")
}

func TestRun_LoadError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// A path that does not exist should surface as a load error.
	args := []string{filepath.Join(t.TempDir(), "absent.hcl")}
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error for a missing program path")
	require.Contains(t, err.Error(), "error accessing path")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should see `shouldExit=true` and return a nil error.
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// Providing an unknown flag will cause cli.Parse to return an error.
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should propagate the error from cli.Parse.
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}
