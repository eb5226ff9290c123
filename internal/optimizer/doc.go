// Package optimizer is the heuristic-selection layer of the compiler: it
// decides which rewrites to attempt, in what order, on what subgraph and
// with what parameters. The passes are a greedy fixed-point fusion search, a
// write-conflict tiler, a device implementation selector, a small-buffer
// storage reclassifier, and the fixed pipeline tying them together.
//
// Everything here is single-threaded and synchronous: a deterministic,
// offline sequence of in-place graph mutations. "Parallel" always describes
// the target program, never the optimizer's own execution.
package optimizer
