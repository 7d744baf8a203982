package runtime

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/eval"
	"github.com/vk/formengine/internal/parser"
	"github.com/vk/formengine/internal/schema"
)

// maxResolveDepth bounds the chain of calculated fields resolved through
// each other. Formulas are finite trees, so this only trips on degenerate
// schemas with very long reference chains.
const maxResolveDepth = 100

// resolver computes calculated field values on demand, memoizing results per
// orchestration pass. It is the dynamic cycle guard: a visited set threaded
// through the recursive resolution detects cycles during actual evaluation
// and fails the specific field at the point the cycle closes. This is
// deliberately independent of the static detector in DetectCycles, which is
// advisory and must stay separate.
type resolver struct {
	entity *schema.Entity
	base   map[string]cty.Value
	eval   *eval.Evaluator
	cache  *parser.Cache

	resolved map[string]resolvedField
	visiting map[string]bool
	stack    []string

	// pending collects dependency failures observed while one formula is
	// being evaluated, since eval.Context cannot carry errors inline.
	pending []error
}

type resolvedField struct {
	value cty.Value
	err   error
}

func newResolver(entity *schema.Entity, base map[string]cty.Value, ev *eval.Evaluator, cache *parser.Cache) *resolver {
	return &resolver{
		entity:   entity,
		base:     base,
		eval:     ev,
		cache:    cache,
		resolved: make(map[string]resolvedField),
		visiting: make(map[string]bool),
	}
}

// resolve returns the value of a field, computing calculated fields through
// their formulas. Failures are memoized so every reader of the field sees
// the same error.
func (r *resolver) resolve(fieldID string) (cty.Value, error) {
	if memo, ok := r.resolved[fieldID]; ok {
		return memo.value, memo.err
	}

	field, ok := r.entity.Field(fieldID)
	if !ok || field.Kind != schema.KindCalculated || field.Formula == "" {
		v, ok := r.base[fieldID]
		if !ok {
			return cty.NilVal, nil
		}
		return v, nil
	}

	if r.visiting[fieldID] {
		return cty.NilVal, eval.NewCircularDependencyError(fieldID, append(append([]string(nil), r.stack...), fieldID))
	}
	if len(r.stack) >= maxResolveDepth {
		return cty.NilVal, &eval.Error{
			Kind:    eval.RecursionLimit,
			Message: "calculated field chain exceeds the resolution depth limit",
		}
	}

	r.visiting[fieldID] = true
	r.stack = append(r.stack, fieldID)
	value, err := r.compute(field)
	r.stack = r.stack[:len(r.stack)-1]
	delete(r.visiting, fieldID)

	r.resolved[fieldID] = resolvedField{value: value, err: err}
	return value, err
}

func (r *resolver) compute(field *schema.Field) (cty.Value, error) {
	node, err := r.cache.Parse(field.Formula)
	if err != nil {
		return cty.NilVal, err
	}

	saved := r.pending
	r.pending = nil
	value, err := r.eval.Evaluate(node, depContext{r})
	if len(r.pending) > 0 {
		// A referenced field failed to resolve. The dependency failure owns
		// this field's result even when the formula also errored on the null
		// stand-in, most importantly for cycles closing through it.
		err = r.pending[0]
		value = cty.NilVal
	}
	r.pending = saved
	return value, err
}

// depContext adapts the resolver to eval.Context. A dependency that fails to
// resolve reads as null and parks its error in pending, because the Context
// interface reports absence, not failure.
type depContext struct{ r *resolver }

// Value implements eval.Context.
func (c depContext) Value(fieldID string) (cty.Value, bool) {
	v, err := c.r.resolve(fieldID)
	if err != nil {
		c.r.pending = append(c.r.pending, err)
		return cty.NullVal(cty.DynamicPseudoType), true
	}
	if v == cty.NilVal {
		return cty.NilVal, false
	}
	return v, true
}
