package prog

import "github.com/vk/flowopt/internal/symbolic"

// subsetSymbols extracts the symbol names referenced by an edge's index
// tokens. Tokens that fail to parse contribute nothing; an unparseable
// token cannot prove a parameter is covered, which keeps the analysis
// conservative.
func subsetSymbols(e *Edge) map[string]bool {
	syms := make(map[string]bool)
	for _, tok := range e.Subset {
		expr, err := symbolic.Parse(tok)
		if err != nil {
			continue
		}
		for _, s := range expr.FreeSymbols() {
			syms[s] = true
		}
	}
	return syms
}

// ConflictedParams returns the parameters of a scope that do not appear in
// the edge's index subset. Concurrent iterations over those parameters write
// the same locations, which is what makes the edge conflicted.
func ConflictedParams(entry *Node, e *Edge) []string {
	used := subsetSymbols(e)
	var conflicted []string
	for _, p := range entry.Map.Params {
		if !used[p] {
			conflicted = append(conflicted, p)
		}
	}
	return conflicted
}

// ConflictCause answers "what enclosing construct makes this edge
// write-conflicted": the innermost enclosing parallel-scope entry owning at
// least one parameter absent from the edge's subset. Sequential scopes
// iterate one at a time and cannot conflict. It returns nil when no
// enclosing scope conflicts, meaning the write needs no atomics.
func ConflictCause(r *Region, e *Edge) *Node {
	if e.WCR == CombinatorNone {
		return nil
	}
	for _, entry := range EnclosingScopes(r, e.Src) {
		if entry.Map.Schedule == ScheduleSequential {
			continue
		}
		if len(ConflictedParams(entry, e)) > 0 {
			return entry
		}
	}
	return nil
}
