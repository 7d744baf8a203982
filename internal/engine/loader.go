// Package engine loads entity schemas from HCL files into the immutable
// model the orchestrator consumes, standing in for the external schema
// repository.
//
// Loading is strict about structure (unknown kinds, off-matrix constraints
// and mistyped control effects are load errors) but lenient about formula
// content: a formula that does not parse is reported as an advisory warning
// and fails at evaluation time instead, so a broken formula never blocks
// saving or loading a schema.
package engine

import (
	"context"
	"fmt"

	"github.com/vk/formengine/internal/ctxlog"
	"github.com/vk/formengine/internal/fsutil"
	"github.com/vk/formengine/internal/parser"
	"github.com/vk/formengine/internal/runtime"
	"github.com/vk/formengine/internal/schema"
)

// Warning is an advisory finding produced during loading. Warnings never
// fail the load.
type Warning struct {
	EntityID string
	Message  string
}

// Load discovers all *.hcl schema files under schemaPath and merges them
// into a schema set. The returned warnings cover unparsable formulas and
// static dependency cycles, both advisory.
func Load(ctx context.Context, schemaPath string, cache *parser.Cache) (*schema.Set, []Warning, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Schema load started.", "path", schemaPath)

	files, err := fsutil.FindFilesByExtension(schemaPath, ".hcl")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve schema path %q: %w", schemaPath, err)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no .hcl schema files found at %q", schemaPath)
	}
	logger.Info("Found schema files to process.", "count", len(files), "path", schemaPath)

	var entities []*schema.Entity
	seen := make(map[string]bool)
	for _, file := range files {
		decoded, err := decodeSchemaFile(ctx, file)
		if err != nil {
			return nil, nil, err
		}
		for _, block := range decoded.Entities {
			if seen[block.Name] {
				return nil, nil, fmt.Errorf("duplicate entity %q in %s", block.Name, file)
			}
			seen[block.Name] = true
			entity, err := translateEntity(block)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", file, err)
			}
			entities = append(entities, entity)
		}
	}

	var warnings []Warning
	for _, entity := range entities {
		warnings = append(warnings, analyzeEntity(entity, cache)...)
	}

	logger.Debug("Schema load finished.", "entities", len(entities), "warnings", len(warnings))
	return schema.NewSet(entities...), warnings, nil
}

// analyzeEntity runs the advisory static checks: formula parsability for
// every formula-bearing definition and cycle detection over calculated
// fields.
func analyzeEntity(entity *schema.Entity, cache *parser.Cache) []Warning {
	var warnings []Warning
	warn := func(format string, args ...any) {
		warnings = append(warnings, Warning{EntityID: entity.ID, Message: fmt.Sprintf(format, args...)})
	}

	for _, f := range entity.Fields {
		if f.Formula == "" {
			continue
		}
		if _, err := cache.Parse(f.Formula); err != nil {
			warn("field %q formula: %v", f.ID, err)
		}
	}
	for _, r := range entity.Rules {
		if _, err := cache.Parse(r.Condition); err != nil {
			warn("control rule %q condition: %v", r.ID, err)
		}
	}
	for _, o := range entity.Outputs {
		if _, err := cache.Parse(o.Formula); err != nil {
			warn("output %q formula: %v", o.Name, err)
		}
	}

	for _, cycle := range runtime.DetectCycles(entity.CalculatedFormulas(), cache) {
		warn("dependency cycle among calculated fields: %v", cycle)
	}
	return warnings
}
