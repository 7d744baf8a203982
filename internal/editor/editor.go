// Package editor produces the diagnostics the formula editor shows while a
// formula is being authored: inline lex/parse errors with source positions,
// static warnings, the inferred result type and the referenced fields.
package editor

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/ast"
	"github.com/vk/formengine/internal/deps"
	"github.com/vk/formengine/internal/eval"
	"github.com/vk/formengine/internal/lexer"
	"github.com/vk/formengine/internal/parser"
	"github.com/vk/formengine/internal/schema"
)

// Problem is one finding, anchored to a byte offset in the formula source.
// Pos is -1 for findings without a specific location.
type Problem struct {
	Pos     int
	Message string
}

// Diagnostics is the full editor feedback for one formula.
type Diagnostics struct {
	IsValid bool
	Errors  []Problem
	// Warnings flag constructs that parse but will misbehave at runtime:
	// references to fields the entity does not define and calls to
	// functions missing from the registry.
	Warnings []Problem
	// InferredResultType is "number", "text", "boolean", "null" or
	// "unknown".
	InferredResultType string
	FieldReferences    []string
}

// Analyze checks a formula against an entity definition and function
// registry. The entity may be nil, in which case field references are not
// checked for existence.
func Analyze(source string, entity *schema.Entity, funcs *eval.Registry) Diagnostics {
	node, err := parser.Parse(source)
	if err != nil {
		return Diagnostics{
			IsValid:            false,
			Errors:             []Problem{problemFromError(err)},
			InferredResultType: "unknown",
		}
	}

	d := Diagnostics{
		IsValid:            true,
		InferredResultType: inferType(node),
		FieldReferences:    deps.Fields(node),
	}

	if entity != nil {
		for _, ref := range d.FieldReferences {
			if _, ok := entity.Field(ref); !ok {
				d.Warnings = append(d.Warnings, Problem{
					Pos:     refPos(node, ref),
					Message: fmt.Sprintf("field %q is not defined on entity %q and will read as null", ref, entity.ID),
				})
			}
		}
	}
	for _, name := range deps.Functions(node) {
		if _, ok := funcs.Lookup(name); !ok {
			d.Warnings = append(d.Warnings, Problem{
				Pos:     callPos(node, name),
				Message: fmt.Sprintf("function %q is not defined and will fail at evaluation", name),
			})
		}
	}
	return d
}

func problemFromError(err error) Problem {
	switch e := err.(type) {
	case *lexer.Error:
		return Problem{Pos: e.Pos, Message: e.Message}
	case *parser.Error:
		return Problem{Pos: e.Pos, Message: fmt.Sprintf("expected %s, found %s", e.Expected, e.Found)}
	}
	return Problem{Pos: -1, Message: err.Error()}
}

// refPos finds the first occurrence of a field reference in the tree.
func refPos(node ast.Node, name string) int {
	pos := -1
	ast.Walk(node, func(n ast.Node) bool {
		if pos >= 0 {
			return false
		}
		if ref, ok := n.(*ast.FieldRef); ok && ref.Name == name {
			pos = ref.NamePos
		}
		return true
	})
	return pos
}

// callPos finds the first call of a function in the tree.
func callPos(node ast.Node, name string) int {
	pos := -1
	ast.Walk(node, func(n ast.Node) bool {
		if pos >= 0 {
			return false
		}
		if call, ok := n.(*ast.CallExpr); ok && call.Name == name {
			pos = call.NamePos
		}
		return true
	})
	return pos
}

// inferType derives a static result type where the tree structure allows
// it. Field references and function calls yield "unknown" since their types
// depend on runtime values.
func inferType(node ast.Node) string {
	switch n := node.(type) {
	case *ast.Literal:
		if n.Value.IsNull() {
			return "null"
		}
		switch n.Value.Type() {
		case cty.Number:
			return "number"
		case cty.String:
			return "text"
		case cty.Bool:
			return "boolean"
		}
		return "unknown"
	case *ast.UnaryExpr:
		if n.Op == ast.OpNot {
			return "boolean"
		}
		return "number"
	case *ast.BinaryExpr:
		switch n.Op {
		case ast.OpAnd, ast.OpOr, ast.OpEq, ast.OpNeq, ast.OpLt, ast.OpLe, ast.OpGt, ast.OpGe:
			return "boolean"
		case ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod, ast.OpPow:
			return "number"
		case ast.OpAdd:
			// '+' is numeric addition or text concatenation.
			left, right := inferType(n.X), inferType(n.Y)
			if left == "text" || right == "text" {
				return "text"
			}
			if left == "number" && right == "number" {
				return "number"
			}
			return "unknown"
		}
	}
	return "unknown"
}
