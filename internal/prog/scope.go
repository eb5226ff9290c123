package prog

import "sort"

// ScopeNodes returns the nodes strictly inside a parallel scope: everything
// on a path from the entry to its exit, excluding the pair itself.
func ScopeNodes(r *Region, entry *Node) []*Node {
	exit := entry.Pair
	forward := reachable(r, entry, exit, false)
	backward := reachable(r, exit, entry, true)
	var body []*Node
	for _, n := range r.Nodes {
		if n == entry || n == exit {
			continue
		}
		if forward[n] && backward[n] {
			body = append(body, n)
		}
	}
	return body
}

// reachable walks the region DAG from start, without expanding past stop,
// and returns the visited set. With reverse set, edges are walked backwards.
func reachable(r *Region, start, stop *Node, reverse bool) map[*Node]bool {
	seen := map[*Node]bool{start: true}
	stack := []*Node{start}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == stop && n != start {
			continue
		}
		for _, e := range r.Edges {
			var next *Node
			if !reverse && e.Src == n {
				next = e.Dst
			} else if reverse && e.Dst == n {
				next = e.Src
			} else {
				continue
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return seen
}

// ScopeTree computes, for every node, its innermost enclosing parallel-scope
// entry; top-level nodes map to nil.
func ScopeTree(r *Region) map[*Node]*Node {
	type scoped struct {
		entry *Node
		body  map[*Node]bool
	}
	var scopes []scoped
	for _, n := range r.Nodes {
		if n.Kind != KindMapEntry {
			continue
		}
		body := make(map[*Node]bool)
		for _, b := range ScopeNodes(r, n) {
			body[b] = true
		}
		scopes = append(scopes, scoped{entry: n, body: body})
	}

	tree := make(map[*Node]*Node, len(r.Nodes))
	for _, n := range r.Nodes {
		var innermost *Node
		innermostSize := -1
		for _, s := range scopes {
			// A scope's own entry/exit pair belongs to the scope
			// around it, not to itself.
			if s.entry == n || s.entry == n.Pair {
				continue
			}
			if !s.body[n] {
				continue
			}
			if innermostSize == -1 || len(s.body) < innermostSize {
				innermost = s.entry
				innermostSize = len(s.body)
			}
		}
		tree[n] = innermost
	}
	return tree
}

// TopLevelEntries returns the region's parallel-scope entries that are not
// nested inside any other scope, ordered by node ID for determinism.
func TopLevelEntries(r *Region) []*Node {
	tree := ScopeTree(r)
	var entries []*Node
	for _, n := range r.Nodes {
		if n.Kind == KindMapEntry && tree[n] == nil {
			entries = append(entries, n)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries
}

// EnclosingScopes returns the chain of scope entries around n, innermost
// first.
func EnclosingScopes(r *Region, n *Node) []*Node {
	tree := ScopeTree(r)
	var chain []*Node
	for cur := tree[n]; cur != nil; cur = tree[cur] {
		chain = append(chain, cur)
	}
	return chain
}
