// Package rewrite implements the transformation primitives the optimizer
// orchestrates: scope fusion, collapse, tiling, dimension extraction,
// accumulator and stream-buffer insertion, trivial-scope elimination,
// loop-to-scope conversion, library-node expansion and GPU lowering.
//
// Every primitive mutates the program in place and is atomic from the
// graph's perspective: it either applies fully or returns a
// *prog.StructuralError without touching the graph. Transformation
// parameters travel on explicit per-call values, never on shared mutable
// defaults.
package rewrite
