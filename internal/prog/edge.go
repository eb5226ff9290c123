package prog

import "fmt"

// Combinator identifies a commutative-associative write-conflict reduction
// function. CombinatorNone marks an ordinary, conflict-free write.
type Combinator int

const (
	CombinatorNone Combinator = iota
	CombinatorSum
	CombinatorProduct
	CombinatorMin
	CombinatorMax
)

func (c Combinator) String() string {
	switch c {
	case CombinatorSum:
		return "sum"
	case CombinatorProduct:
		return "product"
	case CombinatorMin:
		return "min"
	case CombinatorMax:
		return "max"
	default:
		return "none"
	}
}

// ParseCombinator converts a combinator name from program input.
func ParseCombinator(s string) (Combinator, error) {
	switch s {
	case "", "none":
		return CombinatorNone, nil
	case "sum":
		return CombinatorSum, nil
	case "product":
		return CombinatorProduct, nil
	case "min":
		return CombinatorMin, nil
	case "max":
		return CombinatorMax, nil
	}
	return CombinatorNone, fmt.Errorf("unknown write-conflict combinator %q", s)
}

// Edge is a data edge between two nodes. Data names the buffer carried;
// an empty Data marks a pure ordering edge. Subset holds one index token per
// buffer dimension; a token referencing a map parameter means the dimension
// is indexed by that parameter.
type Edge struct {
	Src, Dst *Node
	Data     string
	Subset   []string

	// WCR is the write-conflict combinator, if any.
	WCR Combinator
	// Dynamic marks an edge whose extent is only known at run time.
	Dynamic bool
	// NonAtomic overrides atomic emission for a conflicted write that was
	// proven race-free, e.g. a tile-private accumulator.
	NonAtomic bool
}

// IsEmpty reports whether the edge carries no data.
func (e *Edge) IsEmpty() bool { return e.Data == "" }
