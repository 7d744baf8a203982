package dag

import (
	"sort"
	"strings"
)

// Cycles finds dependency cycles using a classic three-color depth-first
// search: permanent nodes are fully explored, temporary nodes are on the
// current recursion stack, everything else is unvisited. Hitting a temporary
// node closes a cycle, which is reported as the slice of ids along the stack
// from that node.
//
// Roots are visited in sorted order and every reported cycle is rotated so
// its smallest id comes first, so the output is deterministic and duplicate
// discoveries of the same loop collapse to one entry.
func (g *Graph) Cycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	seen := make(map[string]struct{})
	var cycles [][]string

	record := func(cycle []string) {
		canon := canonicalize(cycle)
		key := strings.Join(canon, "\x00")
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		cycles = append(cycles, canon)
	}

	var visit func(n *node)
	visit = func(n *node) {
		if permanent[n.id] {
			return
		}
		if temporary[n.id] {
			// Back edge: the cycle is the stack suffix starting at n.
			for i, id := range stack {
				if id == n.id {
					record(append([]string(nil), stack[i:]...))
					break
				}
			}
			return
		}

		temporary[n.id] = true
		stack = append(stack, n.id)

		for _, depID := range sortedIDs(n.deps) {
			visit(n.deps[depID])
		}

		stack = stack[:len(stack)-1]
		delete(temporary, n.id)
		permanent[n.id] = true
	}

	for _, id := range sortedIDs(g.nodes) {
		if !permanent[id] {
			visit(g.nodes[id])
		}
	}
	return cycles
}

// canonicalize rotates a cycle so that its lexicographically smallest id is
// first, preserving the traversal order of the loop.
func canonicalize(cycle []string) []string {
	if len(cycle) == 0 {
		return cycle
	}
	min := 0
	for i, id := range cycle {
		if id < cycle[min] {
			min = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[min:]...)
	out = append(out, cycle[:min]...)
	return out
}

func sortedIDs(m map[string]*node) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
