// Package ast defines the parsed tree representation of a formula.
//
// Nodes are immutable after parsing. A tree is owned by the formula source it
// was parsed from and may be shared freely across goroutines, including via
// the parser's source-keyed cache.
package ast

import "github.com/zclconf/go-cty/cty"

// Node is the interface implemented by every formula AST node.
type Node interface {
	// Pos returns the byte offset of the node's first token in the source.
	Pos() int
	node()
}

// BinOp identifies a binary operator.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
)

var binOpNames = [...]string{
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpPow: "**",
	OpEq: "==", OpNeq: "!=", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAnd: "and", OpOr: "or",
}

func (op BinOp) String() string { return binOpNames[op] }

// UnOp identifies a unary operator.
type UnOp int

const (
	OpNeg UnOp = iota
	OpNot
)

func (op UnOp) String() string {
	if op == OpNeg {
		return "-"
	}
	return "not"
}

// Literal is a constant value: number, text, boolean or null.
type Literal struct {
	Value    cty.Value
	ValuePos int
}

// FieldRef is a reference to another field of the same entity, by field id.
type FieldRef struct {
	Name    string
	NamePos int
}

// BinaryExpr applies a binary operator to two operands.
type BinaryExpr struct {
	Op    BinOp
	X, Y  Node
	OpPos int
}

// UnaryExpr applies a unary operator to one operand.
type UnaryExpr struct {
	Op    UnOp
	X     Node
	OpPos int
}

// CallExpr invokes a named function with an ordered, fixed argument list.
// The name is not resolved at parse time; unknown functions fail at
// evaluation.
type CallExpr struct {
	Name    string
	Args    []Node
	NamePos int
}

func (n *Literal) Pos() int    { return n.ValuePos }
func (n *FieldRef) Pos() int   { return n.NamePos }
func (n *BinaryExpr) Pos() int { return n.X.Pos() }
func (n *UnaryExpr) Pos() int  { return n.OpPos }
func (n *CallExpr) Pos() int   { return n.NamePos }

func (*Literal) node()    {}
func (*FieldRef) node()   {}
func (*BinaryExpr) node() {}
func (*UnaryExpr) node()  {}
func (*CallExpr) node()   {}
