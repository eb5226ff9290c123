// Package mathlibs probes the host for installed vendor math libraries.
// The probe is a package-level function variable so tests and embedders can
// substitute their own detection.
package mathlibs

import (
	"os"
	"path/filepath"
	"strings"
)

// sonames maps a vendor library name to the shared-object name patterns that
// identify an installation.
var sonames = map[string][]string{
	"MKL":      {"libmkl_rt.so", "libmkl_rt.so.*"},
	"OpenBLAS": {"libopenblas.so", "libopenblas.so.*"},
}

// searchDirs are the conventional shared-library locations probed in order.
var searchDirs = []string{
	"/usr/lib",
	"/usr/lib64",
	"/usr/lib/x86_64-linux-gnu",
	"/usr/local/lib",
	"/opt/intel/mkl/lib/intel64",
}

// probe is the active detection function.
var probe = defaultProbe

// SetProbe replaces the detection function and returns the previous one so
// callers can restore it.
func SetProbe(fn func(name string) bool) func(string) bool {
	prev := probe
	probe = fn
	return prev
}

// IsInstalled reports whether the named vendor library is present on the
// host. Unknown names are never installed.
func IsInstalled(name string) bool {
	return probe(name)
}

func defaultProbe(name string) bool {
	// FLOWOPT_MKL_ROOT / FLOWOPT_OPENBLAS_ROOT point at an install prefix.
	env := "FLOWOPT_" + strings.ToUpper(name) + "_ROOT"
	if root := os.Getenv(env); root != "" {
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			return true
		}
	}
	patterns, ok := sonames[name]
	if !ok {
		return false
	}
	for _, dir := range searchDirs {
		for _, pat := range patterns {
			matches, err := filepath.Glob(filepath.Join(dir, pat))
			if err == nil && len(matches) > 0 {
				return true
			}
		}
	}
	return false
}
