// Package runtime composes the control-rule, validation and output-mapping
// evaluators into one deterministic pass per entity.
//
// The orchestrator is pull-based and read-only: it is invoked explicitly
// with a complete value snapshot and a schema snapshot, subscribes to
// nothing, and produces one immutable Result per call. It adds no rules of
// its own; it only merges the component results and derives the blocking
// flag.
package runtime

import (
	"context"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/ctxlog"
	"github.com/vk/formengine/internal/eval"
	"github.com/vk/formengine/internal/output"
	"github.com/vk/formengine/internal/parser"
	"github.com/vk/formengine/internal/rules"
	"github.com/vk/formengine/internal/schema"
	"github.com/vk/formengine/internal/validate"
)

// Orchestrator evaluates entities. It is safe for concurrent use as long as
// each call receives its own value snapshot.
type Orchestrator struct {
	eval    *eval.Evaluator
	cache   *parser.Cache
	rules   *rules.Evaluator
	outputs *output.Evaluator
	stat    validate.FileStat
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithFileStat wires a file-size lookup for MAX_FILE_SIZE validation. The
// engine performs no I/O without it.
func WithFileStat(stat validate.FileStat) Option {
	return func(o *Orchestrator) { o.stat = stat }
}

// New creates an Orchestrator around the given function registry and AST
// cache. Passing a shared cache lets repeated passes over the same schema
// skip re-parsing.
func New(funcs *eval.Registry, cache *parser.Cache, opts ...Option) *Orchestrator {
	ev := eval.New(funcs)
	o := &Orchestrator{
		eval:    ev,
		cache:   cache,
		rules:   rules.New(ev, cache),
		outputs: output.New(ev, cache),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Evaluate runs one full pass over the entity: calculated fields, control
// rules, validation constraints and output mappings, merged into an
// immutable Result. A failure in any one field or mapping is isolated to its
// sub-result; everything else still evaluates.
func (o *Orchestrator) Evaluate(ctx context.Context, entity *schema.Entity, values map[string]cty.Value) *Result {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Evaluation pass started.", "entity", entity.ID, "fields", len(entity.Fields))

	// Resolve calculated fields through the dynamic cycle guard.
	res := newResolver(entity, values, o.eval, o.cache)
	fieldValues := make(map[string]cty.Value, len(entity.Fields))
	fieldErrs := make(map[string]error)
	for _, f := range entity.Fields {
		v, err := res.resolve(f.ID)
		if err != nil {
			logger.Debug("Field formula failed.", "entity", entity.ID, "field", f.ID, "error", err)
			fieldErrs[f.ID] = err
			v = cty.NullVal(cty.DynamicPseudoType)
		}
		if v == cty.NilVal {
			v = cty.NullVal(cty.DynamicPseudoType)
		}
		fieldValues[f.ID] = v
	}

	// Control rules see the resolved snapshot.
	outcomes, diags := o.rules.Resolve(entity, eval.MapContext(fieldValues))
	for _, d := range diags {
		logger.Debug("Control rule condition errored; rule inactive.", "entity", entity.ID, "rule", d.RuleID, "error", d.Err)
	}

	// Apply VALUE_SET effects before validation and outputs so both see the
	// effective values.
	effective := make(map[string]cty.Value, len(fieldValues))
	for id, v := range fieldValues {
		effective[id] = v
	}
	for target, outcome := range outcomes {
		if outcome.HasValueToSet() {
			effective[target] = outcome.ValueToSet
		}
	}

	result := &Result{EntityID: entity.ID, RuleDiagnostics: diags}

	for _, f := range entity.Fields {
		outcome, ok := outcomes[f.ID]
		if !ok {
			outcome = rules.DefaultOutcome()
		}
		fr := FieldResult{
			FieldID:  f.ID,
			Value:    effective[f.ID],
			Visible:  outcome.Visible,
			Enabled:  outcome.Enabled,
			Required: f.Required,
			Issues:   validate.CheckField(f, effective[f.ID], o.stat),
			Err:      fieldErrs[f.ID],
		}
		for _, issue := range fr.Issues {
			if issue.Severity == validate.SeverityError {
				result.HasBlockingErrors = true
			}
		}
		result.Fields = append(result.Fields, fr)
	}

	snapshot := eval.MapContext(effective)
	for _, m := range entity.Outputs {
		value, err := o.outputs.Evaluate(m, snapshot)
		if err != nil {
			logger.Debug("Output mapping failed.", "entity", entity.ID, "output", m.Name, "error", err)
			result.HasBlockingErrors = true
		}
		result.Outputs = append(result.Outputs, OutputResult{
			Name:   m.Name,
			Target: m.Target,
			Value:  value,
			Err:    err,
		})
	}

	logger.Debug("Evaluation pass finished.", "entity", entity.ID, "blocking", result.HasBlockingErrors)
	return result
}
