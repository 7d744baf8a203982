// Package rules evaluates conditional control rules against a field-value
// snapshot.
//
// A rule is active when its condition formula evaluates truthy. When several
// active rules of the same control type target one field, the
// highest-priority rule wins; ties break by rule id ascending, so the
// outcome is deterministic and testable. A condition that fails to parse or
// evaluate makes its rule inactive and is surfaced as a non-fatal
// diagnostic, never as an error of the evaluation pass.
package rules

import (
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/eval"
	"github.com/vk/formengine/internal/parser"
	"github.com/vk/formengine/internal/schema"
)

// Outcome is the resolved control state for one field. The zero rule set
// resolves to visible, enabled and no value to set.
type Outcome struct {
	Visible    bool
	Enabled    bool
	ValueToSet cty.Value // cty.NilVal when no VALUE_SET rule is active
}

// HasValueToSet reports whether an active VALUE_SET rule supplied a value.
func (o Outcome) HasValueToSet() bool {
	return o.ValueToSet != cty.NilVal
}

// DefaultOutcome is the control state of a field with no active rules.
func DefaultOutcome() Outcome {
	return Outcome{Visible: true, Enabled: true, ValueToSet: cty.NilVal}
}

// Diagnostic reports a rule whose condition errored. The rule is treated as
// inactive; the evaluation pass continues.
type Diagnostic struct {
	RuleID string
	Err    error
}

// Evaluator resolves control rules using a shared formula evaluator and AST
// cache.
type Evaluator struct {
	eval  *eval.Evaluator
	cache *parser.Cache
}

// New creates a control-rule evaluator.
func New(ev *eval.Evaluator, cache *parser.Cache) *Evaluator {
	return &Evaluator{eval: ev, cache: cache}
}

// Resolve evaluates all enabled rules of the entity against the snapshot and
// returns the resolved outcome per target field id. Fields without rules are
// absent from the map; callers treat absence as DefaultOutcome.
func (e *Evaluator) Resolve(entity *schema.Entity, ctx eval.Context) (map[string]Outcome, []Diagnostic) {
	type winner struct {
		rule  *schema.ControlRule
		found bool
	}

	// winners[target][controlType]
	winners := make(map[string]map[schema.ControlType]winner)
	var diags []Diagnostic

	ordered := make([]schema.ControlRule, len(entity.Rules))
	copy(ordered, entity.Rules)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	for i := range ordered {
		rule := &ordered[i]
		if !rule.Enabled {
			continue
		}
		active, err := e.active(rule, ctx)
		if err != nil {
			diags = append(diags, Diagnostic{RuleID: rule.ID, Err: err})
			continue
		}
		if !active {
			continue
		}

		byType, ok := winners[rule.Target]
		if !ok {
			byType = make(map[schema.ControlType]winner)
			winners[rule.Target] = byType
		}
		current := byType[rule.Effect]
		// Strict > keeps the earliest id on equal priority because rules
		// are visited in id order.
		if !current.found || rule.Priority > current.rule.Priority {
			byType[rule.Effect] = winner{rule: rule, found: true}
		}
	}

	outcomes := make(map[string]Outcome, len(winners))
	for target, byType := range winners {
		outcome := DefaultOutcome()
		// Loading enforces that visibility/enable payloads are booleans;
		// the truthiness table keeps this total for hand-built rules.
		if w := byType[schema.Visibility]; w.found {
			outcome.Visible = eval.Truthy(w.rule.Value)
		}
		if w := byType[schema.Enable]; w.found {
			outcome.Enabled = eval.Truthy(w.rule.Value)
		}
		if w := byType[schema.ValueSet]; w.found {
			outcome.ValueToSet = w.rule.Value
		}
		outcomes[target] = outcome
	}
	return outcomes, diags
}

// active evaluates a rule's condition and coerces the result through the
// engine truthiness table.
func (e *Evaluator) active(rule *schema.ControlRule, ctx eval.Context) (bool, error) {
	node, err := e.cache.Parse(rule.Condition)
	if err != nil {
		return false, err
	}
	v, err := e.eval.Evaluate(node, ctx)
	if err != nil {
		return false, err
	}
	return eval.Truthy(v), nil
}
