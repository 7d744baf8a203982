// Package eval implements the formula evaluator.
//
// Evaluation is pure and total: the same AST and context always produce the
// same result, nothing is mutated, and every failure mode is returned as a
// typed *Error rather than a panic. The evaluator works over the engine's
// closed value set of cty number, text, boolean and null values.
package eval

import (
	"math"
	"math/big"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/ast"
)

// maxDepth bounds AST nesting during evaluation. The parser applies its own
// limit, so this only triggers for trees built programmatically.
const maxDepth = 500

// Evaluator evaluates formula ASTs against a field-value context. A single
// Evaluator is safe for concurrent use; it holds only the immutable function
// registry.
type Evaluator struct {
	funcs *Registry
}

// New creates an Evaluator with the given function registry.
func New(funcs *Registry) *Evaluator {
	return &Evaluator{funcs: funcs}
}

// Evaluate computes the value of the tree rooted at node. Missing fields
// evaluate to null; all other failures return a typed *Error.
func (e *Evaluator) Evaluate(node ast.Node, ctx Context) (cty.Value, error) {
	return e.eval(node, ctx, 0)
}

func (e *Evaluator) eval(node ast.Node, ctx Context, depth int) (cty.Value, error) {
	if depth > maxDepth {
		return cty.NilVal, errf(RecursionLimit, node.Pos(), "formula nesting exceeds %d levels", maxDepth)
	}

	switch n := node.(type) {
	case *ast.Literal:
		return n.Value, nil

	case *ast.FieldRef:
		v, ok := ctx.Value(n.Name)
		if !ok || v == cty.NilVal {
			// Absence is not an error; an unset field reads as null.
			return cty.NullVal(cty.DynamicPseudoType), nil
		}
		return v, nil

	case *ast.UnaryExpr:
		return e.evalUnary(n, ctx, depth)

	case *ast.BinaryExpr:
		return e.evalBinary(n, ctx, depth)

	case *ast.CallExpr:
		return e.evalCall(n, ctx, depth)
	}

	return cty.NilVal, errf(TypeMismatch, node.Pos(), "unsupported expression node")
}

func (e *Evaluator) evalUnary(n *ast.UnaryExpr, ctx Context, depth int) (cty.Value, error) {
	v, err := e.eval(n.X, ctx, depth+1)
	if err != nil {
		return cty.NilVal, err
	}
	switch n.Op {
	case ast.OpNot:
		return cty.BoolVal(!Truthy(v)), nil
	case ast.OpNeg:
		if v.IsNull() || v.Type() != cty.Number {
			return cty.NilVal, errf(TypeMismatch, n.OpPos, "operator '-' requires a number, got %s", typeName(v))
		}
		neg := new(big.Float).Neg(v.AsBigFloat())
		return cty.NumberVal(neg), nil
	}
	return cty.NilVal, errf(TypeMismatch, n.OpPos, "unsupported unary operator")
}

func (e *Evaluator) evalBinary(n *ast.BinaryExpr, ctx Context, depth int) (cty.Value, error) {
	// 'and'/'or' short-circuit: the right operand is not evaluated when the
	// left one decides the result, so errors in the unreached branch never
	// surface.
	if n.Op == ast.OpAnd || n.Op == ast.OpOr {
		left, err := e.eval(n.X, ctx, depth+1)
		if err != nil {
			return cty.NilVal, err
		}
		lt := Truthy(left)
		if n.Op == ast.OpAnd && !lt {
			return cty.False, nil
		}
		if n.Op == ast.OpOr && lt {
			return cty.True, nil
		}
		right, err := e.eval(n.Y, ctx, depth+1)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.BoolVal(Truthy(right)), nil
	}

	left, err := e.eval(n.X, ctx, depth+1)
	if err != nil {
		return cty.NilVal, err
	}
	right, err := e.eval(n.Y, ctx, depth+1)
	if err != nil {
		return cty.NilVal, err
	}

	switch n.Op {
	case ast.OpEq:
		return cty.BoolVal(left.RawEquals(right)), nil
	case ast.OpNeq:
		return cty.BoolVal(!left.RawEquals(right)), nil
	case ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
		return compare(n, left, right)
	case ast.OpAdd:
		if bothStrings(left, right) {
			return cty.StringVal(left.AsString() + right.AsString()), nil
		}
		return arith(n, left, right, func(a, b *big.Float) (*big.Float, *Error) {
			return new(big.Float).Add(a, b), nil
		})
	case ast.OpSub:
		return arith(n, left, right, func(a, b *big.Float) (*big.Float, *Error) {
			return new(big.Float).Sub(a, b), nil
		})
	case ast.OpMul:
		return arith(n, left, right, func(a, b *big.Float) (*big.Float, *Error) {
			return new(big.Float).Mul(a, b), nil
		})
	case ast.OpDiv:
		return arith(n, left, right, func(a, b *big.Float) (*big.Float, *Error) {
			if b.Sign() == 0 {
				return nil, errf(DivideByZero, n.OpPos, "division by zero")
			}
			return new(big.Float).Quo(a, b), nil
		})
	case ast.OpMod:
		return arith(n, left, right, func(a, b *big.Float) (*big.Float, *Error) {
			if b.Sign() == 0 {
				return nil, errf(DivideByZero, n.OpPos, "modulo by zero")
			}
			af, _ := a.Float64()
			bf, _ := b.Float64()
			return big.NewFloat(math.Mod(af, bf)), nil
		})
	case ast.OpPow:
		return arith(n, left, right, func(a, b *big.Float) (*big.Float, *Error) {
			af, _ := a.Float64()
			bf, _ := b.Float64()
			p := math.Pow(af, bf)
			if math.IsNaN(p) || math.IsInf(p, 0) {
				return nil, errf(TypeMismatch, n.OpPos, "result of '**' is not a finite number")
			}
			return big.NewFloat(p), nil
		})
	}
	return cty.NilVal, errf(TypeMismatch, n.OpPos, "unsupported operator %s", n.Op)
}

func (e *Evaluator) evalCall(n *ast.CallExpr, ctx Context, depth int) (cty.Value, error) {
	fn, ok := e.funcs.Lookup(n.Name)
	if !ok {
		return cty.NilVal, errf(UnknownFunction, n.NamePos, "unknown function %q", n.Name)
	}

	args := make([]cty.Value, len(n.Args))
	for i, argNode := range n.Args {
		v, err := e.eval(argNode, ctx, depth+1)
		if err != nil {
			return cty.NilVal, err
		}
		args[i] = v
	}

	result, err := fn.Call(args)
	if err != nil {
		return cty.NilVal, errf(TypeMismatch, n.NamePos, "function %q: %s", n.Name, err)
	}
	return result, nil
}

func bothStrings(a, b cty.Value) bool {
	return !a.IsNull() && !b.IsNull() && a.Type() == cty.String && b.Type() == cty.String
}

// arith applies a numeric operation after checking both operands are
// non-null numbers.
func arith(n *ast.BinaryExpr, left, right cty.Value, op func(a, b *big.Float) (*big.Float, *Error)) (cty.Value, error) {
	if left.IsNull() || left.Type() != cty.Number || right.IsNull() || right.Type() != cty.Number {
		return cty.NilVal, errf(TypeMismatch, n.OpPos,
			"operator '%s' requires numbers, got %s and %s", n.Op, typeName(left), typeName(right))
	}
	result, opErr := op(left.AsBigFloat(), right.AsBigFloat())
	if opErr != nil {
		return cty.NilVal, opErr
	}
	return cty.NumberVal(result), nil
}

// compare handles the relational operators over two numbers or two strings.
func compare(n *ast.BinaryExpr, left, right cty.Value) (cty.Value, error) {
	var cmp int
	switch {
	case !left.IsNull() && !right.IsNull() && left.Type() == cty.Number && right.Type() == cty.Number:
		cmp = left.AsBigFloat().Cmp(right.AsBigFloat())
	case bothStrings(left, right):
		cmp = strings.Compare(left.AsString(), right.AsString())
	default:
		return cty.NilVal, errf(TypeMismatch, n.OpPos,
			"operator '%s' requires two numbers or two texts, got %s and %s", n.Op, typeName(left), typeName(right))
	}

	switch n.Op {
	case ast.OpLt:
		return cty.BoolVal(cmp < 0), nil
	case ast.OpLe:
		return cty.BoolVal(cmp <= 0), nil
	case ast.OpGt:
		return cty.BoolVal(cmp > 0), nil
	default:
		return cty.BoolVal(cmp >= 0), nil
	}
}

// typeName renders a value's type for error messages.
func typeName(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return "null"
	}
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
