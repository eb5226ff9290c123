// Package app wires the loader, registry, and optimizer together into one
// runnable application with its own isolated logger.
package app
