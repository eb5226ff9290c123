// Package config defines the format-agnostic, process-wide optimizer
// settings model, along with the Loader interface for reading it from a
// configuration source. Settings are read per optimization call and never
// persisted by this module.
//
// The concrete HCL implementation lives in the internal/hcl package.
package config
