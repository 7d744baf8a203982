// Package parser builds formula ASTs from token streams.
//
// The grammar is parsed by precedence climbing, lowest to highest:
//
//	or
//	and
//	== !=
//	< <= > >=
//	+ -
//	* / %
//	** (right-associative)
//	unary - and not
//	primary: literal, field reference, parenthesized expression, call
//
// The parser performs no field-existence or type checking; unknown function
// names are accepted and resolved at evaluation time.
package parser

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/ast"
	"github.com/vk/formengine/internal/lexer"
	"github.com/vk/formengine/internal/token"
)

// maxDepth bounds expression nesting so that pathological input fails with a
// typed error instead of exhausting the goroutine stack.
const maxDepth = 200

// Error is a syntax error with the position of the unexpected token.
type Error struct {
	Expected string
	Found    token.Token
	Pos      int
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("parse error at offset %d: expected %s, found %s", e.Pos, e.Expected, e.Found)
}

// Parse tokenizes and parses a formula in one step.
func Parse(source string) (ast.Node, error) {
	toks, err := lexer.Scan(source)
	if err != nil {
		return nil, err
	}
	return ParseTokens(toks)
}

// ParseTokens parses a scanned token stream into an AST. The stream must end
// with an EOF token, as produced by lexer.Scan.
func ParseTokens(toks []token.Token) (ast.Node, error) {
	p := &parser{toks: toks}
	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != token.EOF {
		return nil, &Error{Expected: "end of formula", Found: tok, Pos: tok.Pos}
	}
	return node, nil
}

type parser struct {
	toks  []token.Token
	pos   int
	depth int
}

func (p *parser) peek() token.Token {
	if p.pos >= len(p.toks) {
		// Defensive: ParseTokens is only called on streams ending in EOF.
		return token.Token{Kind: token.EOF}
	}
	return p.toks[p.pos]
}

func (p *parser) advance() token.Token {
	tok := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}

// accept consumes the next token if it has the given kind.
func (p *parser) accept(kind token.Kind) (token.Token, bool) {
	if p.peek().Kind == kind {
		return p.advance(), true
	}
	return token.Token{}, false
}

func (p *parser) expect(kind token.Kind, what string) (token.Token, error) {
	tok := p.peek()
	if tok.Kind != kind {
		return token.Token{}, &Error{Expected: what, Found: tok, Pos: tok.Pos}
	}
	return p.advance(), nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		tok := p.peek()
		return &Error{Expected: "shallower expression (nesting limit reached)", Found: tok, Pos: tok.Pos}
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) parseExpr() (ast.Node, error) {
	return p.parseOr()
}

// binaryKinds maps operator tokens to AST operators for one precedence tier.
func (p *parser) parseBinary(kinds map[token.Kind]ast.BinOp, next func() (ast.Node, error)) (ast.Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := next()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := kinds[p.peek().Kind]
		if !ok {
			return left, nil
		}
		opTok := p.advance()
		right, err := next()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: op, X: left, Y: right, OpPos: opTok.Pos}
	}
}

var (
	orOps       = map[token.Kind]ast.BinOp{token.Or: ast.OpOr}
	andOps      = map[token.Kind]ast.BinOp{token.And: ast.OpAnd}
	equalityOps = map[token.Kind]ast.BinOp{token.Eq: ast.OpEq, token.Neq: ast.OpNeq}
	relOps      = map[token.Kind]ast.BinOp{
		token.Lt: ast.OpLt, token.Le: ast.OpLe, token.Gt: ast.OpGt, token.Ge: ast.OpGe,
	}
	addOps = map[token.Kind]ast.BinOp{token.Plus: ast.OpAdd, token.Minus: ast.OpSub}
	mulOps = map[token.Kind]ast.BinOp{
		token.Star: ast.OpMul, token.Slash: ast.OpDiv, token.Percent: ast.OpMod,
	}
)

func (p *parser) parseOr() (ast.Node, error) {
	return p.parseBinary(orOps, p.parseAnd)
}

func (p *parser) parseAnd() (ast.Node, error) {
	return p.parseBinary(andOps, p.parseEquality)
}

func (p *parser) parseEquality() (ast.Node, error) {
	return p.parseBinary(equalityOps, p.parseRelational)
}

func (p *parser) parseRelational() (ast.Node, error) {
	return p.parseBinary(relOps, p.parseAdditive)
}

func (p *parser) parseAdditive() (ast.Node, error) {
	return p.parseBinary(addOps, p.parseMultiplicative)
}

func (p *parser) parseMultiplicative() (ast.Node, error) {
	return p.parseBinary(mulOps, p.parsePower)
}

// parsePower handles '**', which binds tighter than unary on its right side
// and associates to the right: 2 ** 3 ** 2 parses as 2 ** (3 ** 2).
func (p *parser) parsePower() (ast.Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	base, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	opTok, ok := p.accept(token.Power)
	if !ok {
		return base, nil
	}
	exp, err := p.parsePower()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryExpr{Op: ast.OpPow, X: base, Y: exp, OpPos: opTok.Pos}, nil
}

func (p *parser) parseUnary() (ast.Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	switch tok := p.peek(); tok.Kind {
	case token.Minus:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNeg, X: operand, OpPos: tok.Pos}, nil
	case token.Not:
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: ast.OpNot, X: operand, OpPos: tok.Pos}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (ast.Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	tok := p.advance()
	switch tok.Kind {
	case token.Number:
		val, err := cty.ParseNumberVal(tok.Lexeme)
		if err != nil {
			// Unreachable for lexer-produced numbers.
			return nil, &Error{Expected: "numeric literal", Found: tok, Pos: tok.Pos}
		}
		return &ast.Literal{Value: val, ValuePos: tok.Pos}, nil
	case token.String:
		return &ast.Literal{Value: cty.StringVal(tok.Lexeme), ValuePos: tok.Pos}, nil
	case token.True:
		return &ast.Literal{Value: cty.True, ValuePos: tok.Pos}, nil
	case token.False:
		return &ast.Literal{Value: cty.False, ValuePos: tok.Pos}, nil
	case token.Null:
		return &ast.Literal{Value: cty.NullVal(cty.DynamicPseudoType), ValuePos: tok.Pos}, nil
	case token.LParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RParen, "')'"); err != nil {
			return nil, err
		}
		return inner, nil
	case token.Ident:
		if p.peek().Kind == token.LParen {
			return p.parseCall(tok)
		}
		return &ast.FieldRef{Name: tok.Lexeme, NamePos: tok.Pos}, nil
	}
	return nil, &Error{Expected: "literal, field reference, function call or '('", Found: tok, Pos: tok.Pos}
}

// parseCall parses the argument list of a function call whose name token has
// already been consumed.
func (p *parser) parseCall(name token.Token) (ast.Node, error) {
	p.advance() // '('
	call := &ast.CallExpr{Name: name.Lexeme, NamePos: name.Pos}
	if _, ok := p.accept(token.RParen); ok {
		return call, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if _, ok := p.accept(token.Comma); ok {
			continue
		}
		if _, err := p.expect(token.RParen, "',' or ')'"); err != nil {
			return nil, err
		}
		return call, nil
	}
}
