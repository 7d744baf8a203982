package eval

import "github.com/zclconf/go-cty/cty"

// Context supplies field values to an evaluation. Implementations must be
// read-only for the duration of the call; the evaluator never mutates the
// context.
type Context interface {
	// Value returns the value of the field with the given id. A missing
	// field reports ok=false and evaluates to null, not an error.
	Value(fieldID string) (cty.Value, bool)
}

// MapContext is a Context backed by a plain map snapshot.
type MapContext map[string]cty.Value

// Value implements Context.
func (m MapContext) Value(fieldID string) (cty.Value, bool) {
	v, ok := m[fieldID]
	return v, ok
}

// IsEngineValue reports whether v belongs to the engine's closed value set:
// a number, text or boolean primitive, or a null of any type. Callers that
// accept external input must reject everything else before evaluation.
func IsEngineValue(v cty.Value) bool {
	if v == cty.NilVal {
		return false
	}
	if v.IsNull() {
		return true
	}
	ty := v.Type()
	return ty == cty.Number || ty == cty.String || ty == cty.Bool
}
