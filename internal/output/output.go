// Package output evaluates output mappings: a formula plus a mandatory
// coercion of the result to the mapping's document-side target type.
//
// A coercion failure is local to the mapping that produced it, but the
// orchestrator folds it into the entity's blocking state so document
// generation refuses to proceed.
package output

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/vk/formengine/internal/eval"
	"github.com/vk/formengine/internal/parser"
	"github.com/vk/formengine/internal/schema"
)

// CoercionError reports a raw formula result that cannot be represented as
// the mapping's target type.
type CoercionError struct {
	Mapping string
	Target  schema.OutputTarget
	Message string
}

// Error implements the error interface.
func (e *CoercionError) Error() string {
	return fmt.Sprintf("output %q: cannot coerce to %s: %s", e.Mapping, e.Target, e.Message)
}

// Evaluator computes output mapping values.
type Evaluator struct {
	eval  *eval.Evaluator
	cache *parser.Cache
}

// New creates an output-mapping evaluator.
func New(ev *eval.Evaluator, cache *parser.Cache) *Evaluator {
	return &Evaluator{eval: ev, cache: cache}
}

// Evaluate runs the mapping's formula against the snapshot and coerces the
// result to the mapping's target type.
func (e *Evaluator) Evaluate(m schema.OutputMapping, ctx eval.Context) (cty.Value, error) {
	node, err := e.cache.Parse(m.Formula)
	if err != nil {
		return cty.NilVal, err
	}
	raw, err := e.eval.Evaluate(node, ctx)
	if err != nil {
		return cty.NilVal, err
	}
	return Coerce(m, raw)
}

// Coerce converts a raw engine value to the mapping's target type.
//
//	TEXT: stringifies any value; null becomes "".
//	NUMBER: requires a number or numeric-parsable text.
//	BOOLEAN: requires a boolean or a fixed truthy/falsy token.
func Coerce(m schema.OutputMapping, raw cty.Value) (cty.Value, error) {
	fail := func(format string, args ...any) (cty.Value, error) {
		return cty.NilVal, &CoercionError{Mapping: m.Name, Target: m.Target, Message: fmt.Sprintf(format, args...)}
	}

	switch m.Target {
	case schema.TargetText:
		if raw == cty.NilVal || raw.IsNull() {
			return cty.StringVal(""), nil
		}
		converted, err := convert.Convert(raw, cty.String)
		if err != nil {
			return fail("%s", err)
		}
		return converted, nil

	case schema.TargetNumber:
		if raw == cty.NilVal || raw.IsNull() {
			return fail("null has no numeric representation")
		}
		switch raw.Type() {
		case cty.Number:
			return raw, nil
		case cty.String:
			converted, err := convert.Convert(raw, cty.Number)
			if err != nil {
				return fail("text %q is not numeric", raw.AsString())
			}
			return converted, nil
		}
		return fail("%s value has no numeric representation", friendly(raw))

	case schema.TargetBoolean:
		if raw == cty.NilVal || raw.IsNull() {
			return fail("null has no boolean representation")
		}
		switch raw.Type() {
		case cty.Bool:
			return raw, nil
		case cty.String:
			b, ok := eval.ParseBoolToken(raw.AsString())
			if !ok {
				return fail("text %q is not a boolean token", raw.AsString())
			}
			return cty.BoolVal(b), nil
		}
		return fail("%s value has no boolean representation", friendly(raw))
	}
	return fail("unsupported output target")
}

func friendly(v cty.Value) string {
	switch v.Type() {
	case cty.Number:
		return "number"
	case cty.String:
		return "text"
	case cty.Bool:
		return "boolean"
	}
	return v.Type().FriendlyName()
}
