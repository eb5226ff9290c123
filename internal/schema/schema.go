// Package schema declares the HCL block structures for program files and
// optimizer settings. These structs are the raw decode targets; translation
// into the format-agnostic model happens in the hcl package.
package schema

import "github.com/hashicorp/hcl/v2"

// Root covers every top-level block a flowopt file may carry. Settings and
// programs may live in the same file or in separate ones.
type Root struct {
	Settings *Settings  `hcl:"settings,block"`
	Programs []*Program `hcl:"program,block"`
	Body     hcl.Body   `hcl:",remain"`
}

// Settings is the optimizer tuning block. Every attribute is optional; the
// loader starts from built-in defaults.
type Settings struct {
	TileSizeThreshold        *int64 `hcl:"tile_size_threshold,optional"`
	PreferPartialParallelism *bool  `hcl:"prefer_partial_parallelism,optional"`
	VerboseProgress          *bool  `hcl:"verbose_progress,optional"`
}

// Program is one dataflow program. Nested-program nodes reference other
// program blocks by name; the loader wires them after all programs decode.
type Program struct {
	Name           string    `hcl:"name,label"`
	CoarseSections *bool     `hcl:"coarse_sections,optional"`
	Symbols        []*Symbol `hcl:"symbol,block"`
	Arrays         []*Array  `hcl:"array,block"`
	Regions        []*Region `hcl:"region,block"`
}

// Symbol binds a size parameter to a known value.
type Symbol struct {
	Name  string `hcl:"name,label"`
	Value int64  `hcl:"value"`
}

// Array declares a named buffer. Shape entries are size expressions over the
// program's symbols.
type Array struct {
	Name      string   `hcl:"name,label"`
	DType     string   `hcl:"dtype"`
	Shape     []string `hcl:"shape"`
	Transient bool     `hcl:"transient,optional"`
	Storage   string   `hcl:"storage,optional"`
	Lifetime  string   `hcl:"lifetime,optional"`
	Init      *float64 `hcl:"init,optional"`
}

// Region is one control-flow step holding a node/edge DAG.
type Region struct {
	Name      string     `hcl:"name,label"`
	Loop      *Loop      `hcl:"loop,block"`
	Maps      []*Map     `hcl:"map,block"`
	Computes  []*Compute `hcl:"compute,block"`
	Accesses  []*Access  `hcl:"access,block"`
	Libraries []*Library `hcl:"library,block"`
	Nesteds   []*Nested  `hcl:"nested,block"`
	Edges     []*Edge    `hcl:"edge,block"`
}

// Loop marks the region as the body of a loop already proven free of
// carried dependencies.
type Loop struct {
	Param string `hcl:"param"`
	Trips string `hcl:"trips"`
}

// Map declares a parallel scope. The block label names the entry node; the
// exit node is addressable in edges as label plus an "_exit" suffix.
type Map struct {
	Name     string   `hcl:"name,label"`
	Params   []string `hcl:"params"`
	Ranges   []string `hcl:"ranges"`
	Schedule string   `hcl:"schedule,optional"`
	Unroll   bool     `hcl:"unroll,optional"`
	Collapse int      `hcl:"collapse,optional"`
}

// Compute declares an elementary compute node.
type Compute struct {
	Name string `hcl:"name,label"`
}

// Access declares a data node. The referenced buffer defaults to the block
// label when data is omitted.
type Access struct {
	Name string `hcl:"name,label"`
	Data string `hcl:"data,optional"`
}

// Library declares a call-style node of a registered kind.
type Library struct {
	Name           string `hcl:"name,label"`
	Kind           string `hcl:"kind"`
	Implementation string `hcl:"implementation,optional"`
}

// Nested embeds another program block by name.
type Nested struct {
	Name    string `hcl:"name,label"`
	Program string `hcl:"program"`
}

// Edge connects two named nodes with a data movement.
type Edge struct {
	From      string   `hcl:"from"`
	To        string   `hcl:"to"`
	Data      string   `hcl:"data,optional"`
	Subset    []string `hcl:"subset,optional"`
	WCR       string   `hcl:"wcr,optional"`
	Dynamic   bool     `hcl:"dynamic,optional"`
	NonAtomic bool     `hcl:"non_atomic,optional"`
}
