// Package token defines the lexical token set for the formula language.
package token

import "fmt"

// Kind classifies a lexical token.
type Kind int

const (
	// Special
	EOF Kind = iota

	// Literals and identifiers
	Number
	String
	True
	False
	Null
	Ident

	// Keywords
	And
	Or
	Not

	// Operators
	Plus
	Minus
	Star
	Slash
	Percent
	Power
	Eq
	Neq
	Lt
	Le
	Gt
	Ge

	// Punctuation
	LParen
	RParen
	Comma
)

var kindNames = map[Kind]string{
	EOF:     "end of formula",
	Number:  "number",
	String:  "string",
	True:    "true",
	False:   "false",
	Null:    "null",
	Ident:   "identifier",
	And:     "and",
	Or:      "or",
	Not:     "not",
	Plus:    "+",
	Minus:   "-",
	Star:    "*",
	Slash:   "/",
	Percent: "%",
	Power:   "**",
	Eq:      "==",
	Neq:     "!=",
	Lt:      "<",
	Le:      "<=",
	Gt:      ">",
	Ge:      ">=",
	LParen:  "(",
	RParen:  ")",
	Comma:   ",",
}

// String returns a human-readable name for the kind, suitable for error
// messages shown in the formula editor.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("token(%d)", int(k))
}

// Keywords maps reserved words to their token kinds. Reserved words can never
// be used as field or function names.
var Keywords = map[string]Kind{
	"and":   And,
	"or":    Or,
	"not":   Not,
	"true":  True,
	"false": False,
	"null":  Null,
}

// Token is a single lexical element of a formula. Pos is the byte offset of
// the token's first character within the source string.
type Token struct {
	Kind   Kind
	Lexeme string
	Pos    int
}

// String renders the token for diagnostics.
func (t Token) String() string {
	switch t.Kind {
	case Number, String, Ident:
		return fmt.Sprintf("%s %q", t.Kind, t.Lexeme)
	default:
		return t.Kind.String()
	}
}
