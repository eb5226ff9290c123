// Package prog defines the hierarchical dataflow program that the optimizer
// mutates in place: a Program is an ordered collection of Regions, each
// Region a DAG of Nodes and data Edges over named Arrays.
//
// The package also hosts the structural analyses the optimization passes
// consume (scope nesting, write-conflict causes, reduction identities) and
// the whole-program validator. A Program is exclusively owned by a single
// caller for the duration of an optimization run; nothing here locks or
// copies.
package prog
