package symbolic

// Truth is the result of a comparison over possibly-unresolved sizes. It is
// a value, never an error: call sites resolve Indeterminate through their
// documented conservative default.
type Truth int

const (
	// Indeterminate means the comparison cannot be resolved with the
	// constants at hand. It is the zero value on purpose.
	Indeterminate Truth = iota
	True
	False
)

func (t Truth) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "indeterminate"
	}
}

// LessThan compares a size against a concrete bound. The result is True or
// False only when provable under the given constants.
func LessThan(e Expr, bound int64, consts map[string]int64) Truth {
	n, ok := e.TryEvaluate(consts)
	if !ok {
		return Indeterminate
	}
	if n < bound {
		return True
	}
	return False
}
