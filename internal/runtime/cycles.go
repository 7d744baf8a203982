package runtime

import (
	"github.com/vk/formengine/internal/dag"
	"github.com/vk/formengine/internal/deps"
	"github.com/vk/formengine/internal/parser"
)

// DetectCycles builds the dependency graph over an entity's calculated
// fields and reports each distinct cycle. The report is advisory only: it
// never blocks saving, editing or evaluation. Formulas that fail to parse
// contribute no edges; the parse error surfaces through the formula editor
// and at evaluation time instead.
func DetectCycles(formulas map[string]string, cache *parser.Cache) [][]string {
	g := dag.New()
	for id := range formulas {
		g.AddNode(id)
	}
	for id, source := range formulas {
		node, err := cache.Parse(source)
		if err != nil {
			continue
		}
		for _, dep := range deps.Fields(node) {
			if _, calculated := formulas[dep]; !calculated {
				// Plain input fields cannot continue a cycle.
				continue
			}
			// Edge dep -> id: id depends on dep. AddEdge only fails for
			// unknown nodes, which cannot happen here.
			_ = g.AddEdge(dep, id)
		}
	}
	return g.Cycles()
}
