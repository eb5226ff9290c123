package prog

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// StructuralError reports a violated graph invariant. It is the only fatal
// error class in the optimizer: a rewrite or a validation checkpoint that
// produces one aborts the whole pipeline, with no rollback attempted.
type StructuralError struct {
	Program string
	Err     error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("program %q: structural validation failed: %v", e.Program, e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// Validate checks the program's graph invariants and returns a
// *StructuralError aggregating every violation found, or nil. Nested
// subprograms are validated recursively.
func Validate(p *Program) error {
	var errs *multierror.Error
	for _, sub := range AllPrograms(p) {
		for _, r := range sub.Regions {
			validateRegion(sub, r, &errs)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return &StructuralError{Program: p.Name, Err: err}
	}
	return nil
}

func validateRegion(p *Program, r *Region, errs **multierror.Error) {
	add := func(format string, args ...any) {
		*errs = multierror.Append(*errs, fmt.Errorf("region %q: "+format, append([]any{r.Name}, args...)...))
	}

	inRegion := make(map[*Node]bool, len(r.Nodes))
	for _, n := range r.Nodes {
		inRegion[n] = true
	}

	for _, n := range r.Nodes {
		switch n.Kind {
		case KindMapEntry, KindMapExit:
			if n.Pair == nil || !inRegion[n.Pair] {
				add("scope node %s has no paired counterpart in the region", n)
				continue
			}
			if n.Pair.Pair != n {
				add("scope node %s pairing is not symmetric", n)
			}
			if n.Map == nil || n.Pair.Map != n.Map {
				add("scope pair %s does not share one iteration space", n)
			}
			if n.Kind == KindMapEntry && n.Pair.Kind != KindMapExit {
				add("entry %s paired with a non-exit node", n)
			}
			if n.Map != nil && len(n.Map.Params) != len(n.Map.Ranges) {
				add("scope %s declares %d params but %d ranges", n, len(n.Map.Params), len(n.Map.Ranges))
			}
		case KindAccess:
			if _, ok := p.Arrays[n.Data]; !ok {
				add("access node %s references undeclared buffer %q", n, n.Data)
			}
		case KindNested:
			if n.Nested == nil {
				add("nested node %s has no inner program", n)
			}
		case KindLibrary:
			if n.Call == nil || n.Call.Kind == "" {
				add("library node %s has no call payload", n)
			}
		}
	}

	for _, e := range r.Edges {
		if !inRegion[e.Src] || !inRegion[e.Dst] {
			add("edge on %q connects nodes outside the region", e.Data)
			continue
		}
		if e.IsEmpty() {
			continue
		}
		arr, ok := p.Arrays[e.Data]
		if !ok {
			add("edge references undeclared buffer %q", e.Data)
			continue
		}
		if len(e.Subset) > 0 && len(e.Subset) != len(arr.Shape) {
			add("edge on %q has a %d-dimensional subset over a rank-%d buffer",
				e.Data, len(e.Subset), len(arr.Shape))
		}
	}

	// Scope nesting: every path into a scope body must come through the
	// entry, and out through the exit. An edge that crosses a scope
	// boundary without touching its entry or exit means crossed scopes.
	tree := ScopeTree(r)
	for _, e := range r.Edges {
		srcScope, dstScope := tree[e.Src], tree[e.Dst]
		if srcScope == dstScope {
			continue
		}
		crossesIn := e.Dst.Kind == KindMapEntry || e.Src.Kind == KindMapEntry
		crossesOut := e.Src.Kind == KindMapExit || e.Dst.Kind == KindMapExit
		if !crossesIn && !crossesOut {
			add("edge %s -> %s crosses a scope boundary without passing its entry or exit", e.Src, e.Dst)
		}
	}

	if err := detectCycle(r); err != nil {
		*errs = multierror.Append(*errs, fmt.Errorf("region %q: %w", r.Name, err))
	}
}

// detectCycle checks the region dataflow for cycles using depth-first search
// with two marker sets: permanent for fully visited nodes, temporary for
// nodes in the current traversal stack.
func detectCycle(r *Region) error {
	permanent := make(map[*Node]bool)
	temporary := make(map[*Node]bool)

	var visit func(n *Node) error
	visit = func(n *Node) error {
		if permanent[n] {
			return nil
		}
		if temporary[n] {
			return fmt.Errorf("dataflow cycle detected involving node %s", n)
		}
		temporary[n] = true
		for _, e := range r.OutEdges(n) {
			if err := visit(e.Dst); err != nil {
				return err
			}
		}
		delete(temporary, n)
		permanent[n] = true
		return nil
	}

	for _, n := range r.Nodes {
		if !permanent[n] {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
