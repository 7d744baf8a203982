package eval

import "github.com/zclconf/go-cty/cty"

// Truthy applies the engine's fixed truthiness table:
//
//	null            -> false
//	boolean         -> itself
//	number          -> true unless exactly zero
//	text            -> true unless empty
//
// This table is the only implicit coercion the engine performs; arithmetic
// and comparisons never coerce operand types.
func Truthy(v cty.Value) bool {
	if v == cty.NilVal || v.IsNull() {
		return false
	}
	switch v.Type() {
	case cty.Bool:
		return v.True()
	case cty.Number:
		return v.AsBigFloat().Sign() != 0
	case cty.String:
		return v.AsString() != ""
	}
	return false
}
