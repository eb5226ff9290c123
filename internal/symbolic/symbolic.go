// Package symbolic implements the two-case size values used throughout the
// program model: a size is either a concrete integer or an unresolved
// expression over named integer symbols. Unresolved expressions are HCL
// expressions evaluated against a set of known constants; an expression that
// cannot be resolved yields an explicit Indeterminate marker rather than an
// error.
package symbolic

import (
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Expr is a size value: a concrete integer or an unresolved expression.
// The zero value is the concrete integer 0.
type Expr struct {
	concrete int64
	src      string
	expr     hcl.Expression
}

// Int returns a concrete Expr.
func Int(n int64) Expr {
	return Expr{concrete: n}
}

// Parse returns an Expr wrapping the given expression source, for example
// "N" or "N * M / 2". Integer literals fold to concrete values immediately.
func Parse(src string) (Expr, error) {
	src = strings.TrimSpace(src)
	expr, diags := hclsyntax.ParseExpression([]byte(src), "size", hcl.InitialPos)
	if diags.HasErrors() {
		return Expr{}, fmt.Errorf("parsing size expression %q: %w", src, diags)
	}
	e := Expr{src: src, expr: expr}
	if n, ok := e.TryEvaluate(nil); ok {
		return Int(n), nil
	}
	return e, nil
}

// MustParse is Parse for statically known-good expressions; it panics on a
// parse error.
func MustParse(src string) Expr {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// IsConcrete reports whether the value is a concrete integer.
func (e Expr) IsConcrete() bool {
	return e.expr == nil
}

// TryEvaluate resolves the expression against the given constants. The
// second return value is false when the value is Indeterminate: a referenced
// symbol is unknown, or evaluation fails for any reason. Evaluation errors
// are never propagated.
func (e Expr) TryEvaluate(consts map[string]int64) (int64, bool) {
	if e.expr == nil {
		return e.concrete, true
	}
	vars := make(map[string]cty.Value, len(consts))
	for name, v := range consts {
		vars[name] = cty.NumberIntVal(v)
	}
	val, diags := e.expr.Value(&hcl.EvalContext{Variables: vars})
	if diags.HasErrors() || val.IsNull() || !val.Type().Equals(cty.Number) {
		return 0, false
	}
	n, acc := val.AsBigFloat().Int64()
	if acc != 0 {
		// Non-integral result, e.g. N/3 with N=4. Sizes are integers;
		// treat as unresolved.
		return 0, false
	}
	return n, true
}

// FreeSymbols returns the symbol names the expression references, in
// first-appearance order. Concrete values have none.
func (e Expr) FreeSymbols() []string {
	if e.expr == nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, trav := range e.expr.Variables() {
		name := trav.RootName()
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

func (e Expr) String() string {
	if e.expr == nil {
		return fmt.Sprintf("%d", e.concrete)
	}
	return e.src
}

// Equal reports whether two size values are syntactically identical:
// equal concrete integers, or the same expression source.
func (e Expr) Equal(other Expr) bool {
	if e.IsConcrete() != other.IsConcrete() {
		return false
	}
	if e.IsConcrete() {
		return e.concrete == other.concrete
	}
	return e.src == other.src
}

// Product folds a list of sizes into their product, staying concrete when
// every factor is concrete and otherwise building a compound expression.
// An empty list yields 1.
func Product(exprs []Expr) Expr {
	prod := int64(1)
	allConcrete := true
	for _, e := range exprs {
		if !e.IsConcrete() {
			allConcrete = false
			break
		}
		prod *= e.concrete
	}
	if allConcrete {
		return Int(prod)
	}
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = "(" + e.String() + ")"
	}
	return MustParse(strings.Join(parts, " * "))
}

// CeilDiv returns ceil(e / d) for a positive divisor.
func CeilDiv(e Expr, d int64) Expr {
	if d <= 0 {
		panic("symbolic: CeilDiv divisor must be positive")
	}
	if e.IsConcrete() {
		return Int((e.concrete + d - 1) / d)
	}
	// floor(x) is unavailable in bare HCL arithmetic, so keep the value
	// unresolved unless the quotient happens to be integral.
	return MustParse(fmt.Sprintf("((%s) + %d) / %d", e.String(), d-1, d))
}
