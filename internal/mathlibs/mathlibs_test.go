package mathlibs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetProbe(t *testing.T) {
	prev := SetProbe(func(name string) bool { return name == "MKL" })
	defer SetProbe(prev)

	assert.True(t, IsInstalled("MKL"))
	assert.False(t, IsInstalled("OpenBLAS"))
}

func TestDefaultProbe(t *testing.T) {
	t.Run("unknown libraries are never installed", func(t *testing.T) {
		t.Setenv("FLOWOPT_NOSUCHLIB_ROOT", "")
		assert.False(t, defaultProbe("nosuchlib"))
	})

	t.Run("root environment variable marks an installation", func(t *testing.T) {
		t.Setenv("FLOWOPT_MKL_ROOT", t.TempDir())
		assert.True(t, defaultProbe("MKL"))
	})

	t.Run("root pointing nowhere falls back to the search path", func(t *testing.T) {
		t.Setenv("FLOWOPT_OPENBLAS_ROOT", "/nonexistent/prefix")
		// Whether this is true depends on the host; it must not panic
		// and must consult the shared-object patterns.
		_ = defaultProbe("OpenBLAS")
	})
}
