package parser

import (
	"sync"

	"github.com/vk/formengine/internal/ast"
)

// Cache memoizes parsed ASTs keyed by formula source text. ASTs are immutable,
// so a cached tree can be handed to any number of concurrent evaluations.
//
// The cache is read-mostly: after a warm-up phase every lookup is a shared
// read. Concurrent redundant parses of the same source are harmless; the last
// insert wins and all inserted trees are equivalent. Parse failures are not
// cached, so edits in the formula editor re-lex broken sources each time.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]ast.Node
}

// NewCache creates an empty AST cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]ast.Node)}
}

// Parse returns the AST for source, parsing it on first use.
func (c *Cache) Parse(source string) (ast.Node, error) {
	c.mu.RLock()
	node, ok := c.entries[source]
	c.mu.RUnlock()
	if ok {
		return node, nil
	}

	node, err := Parse(source)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[source] = node
	c.mu.Unlock()
	return node, nil
}

// Len reports the number of cached formulas.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
