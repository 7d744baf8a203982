// Package deps performs static dependency analysis on formula ASTs.
//
// Extraction is a full, non-executing tree walk: it collects field references
// from every branch, including branches the evaluator would skip through
// short-circuiting, and from all function arguments. Cycle detection relies
// on this being exactly the set of FieldRef leaves in the tree.
package deps

import (
	"sort"

	"github.com/vk/formengine/internal/ast"
)

// Fields returns the ids of all fields referenced by the tree, sorted and
// de-duplicated for deterministic output.
func Fields(node ast.Node) []string {
	seen := make(map[string]struct{})
	ast.Walk(node, func(n ast.Node) bool {
		if ref, ok := n.(*ast.FieldRef); ok {
			seen[ref.Name] = struct{}{}
		}
		return true
	})
	return sortedKeys(seen)
}

// Functions returns the names of all functions called by the tree, sorted
// and de-duplicated. Used by the formula editor to flag unknown functions
// before evaluation.
func Functions(node ast.Node) []string {
	seen := make(map[string]struct{})
	ast.Walk(node, func(n ast.Node) bool {
		if call, ok := n.(*ast.CallExpr); ok {
			seen[call.Name] = struct{}{}
		}
		return true
	})
	return sortedKeys(seen)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
