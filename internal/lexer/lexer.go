// Package lexer converts formula source text into a token stream.
//
// The scanner recognizes numeric, string, boolean and null literals,
// identifiers (field references or function names), the operator set of the
// formula language, parentheses and commas. Whitespace is skipped. Any other
// input fails with an *Error carrying the byte offset of the offending
// character, which the formula editor surfaces inline.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vk/formengine/internal/token"
)

// Error is a lexical error anchored to the start of the offending token.
type Error struct {
	Pos     int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("lex error at offset %d: %s", e.Pos, e.Message)
}

// Scan tokenizes the given formula source. The returned slice always ends
// with an EOF token when err is nil.
func Scan(source string) ([]token.Token, error) {
	s := &scanner{src: source}
	var toks []token.Token
	for {
		tok, err := s.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			return toks, nil
		}
	}
}

type scanner struct {
	src string
	pos int // byte offset of the next unread character
}

// peek returns the rune at the current position without consuming it.
func (s *scanner) peek() (rune, int) {
	if s.pos >= len(s.src) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(s.src[s.pos:])
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.src) {
		r, size := s.peek()
		if !unicode.IsSpace(r) {
			return
		}
		s.pos += size
	}
}

func (s *scanner) next() (token.Token, error) {
	s.skipSpace()
	start := s.pos
	if s.pos >= len(s.src) {
		return token.Token{Kind: token.EOF, Pos: start}, nil
	}

	r, size := s.peek()
	switch {
	case r >= '0' && r <= '9':
		return s.scanNumber(start), nil
	case r == '\'' || r == '"':
		return s.scanString(start, r)
	case r == '_' || unicode.IsLetter(r):
		return s.scanIdent(start), nil
	}

	s.pos += size
	mk := func(kind token.Kind) (token.Token, error) {
		return token.Token{Kind: kind, Lexeme: s.src[start:s.pos], Pos: start}, nil
	}

	switch r {
	case '+':
		return mk(token.Plus)
	case '-':
		return mk(token.Minus)
	case '*':
		if s.consume('*') {
			return mk(token.Power)
		}
		return mk(token.Star)
	case '/':
		return mk(token.Slash)
	case '%':
		return mk(token.Percent)
	case '(':
		return mk(token.LParen)
	case ')':
		return mk(token.RParen)
	case ',':
		return mk(token.Comma)
	case '=':
		if s.consume('=') {
			return mk(token.Eq)
		}
		return token.Token{}, &Error{Pos: start, Message: "unexpected character '=' (did you mean '=='?)"}
	case '!':
		if s.consume('=') {
			return mk(token.Neq)
		}
		return token.Token{}, &Error{Pos: start, Message: "unexpected character '!' (did you mean '!='?)"}
	case '<':
		if s.consume('=') {
			return mk(token.Le)
		}
		return mk(token.Lt)
	case '>':
		if s.consume('=') {
			return mk(token.Ge)
		}
		return mk(token.Gt)
	}

	return token.Token{}, &Error{Pos: start, Message: fmt.Sprintf("unexpected character %q", r)}
}

// consume advances past the given ASCII character if it is next in the input.
func (s *scanner) consume(want byte) bool {
	if s.pos < len(s.src) && s.src[s.pos] == want {
		s.pos++
		return true
	}
	return false
}

// scanNumber reads an integer or decimal literal with an optional exponent.
func (s *scanner) scanNumber(start int) token.Token {
	digits := func() {
		for s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
			s.pos++
		}
	}
	digits()
	if s.pos+1 < len(s.src) && s.src[s.pos] == '.' && s.src[s.pos+1] >= '0' && s.src[s.pos+1] <= '9' {
		s.pos++
		digits()
	}
	if s.pos < len(s.src) && (s.src[s.pos] == 'e' || s.src[s.pos] == 'E') {
		mark := s.pos
		s.pos++
		if s.pos < len(s.src) && (s.src[s.pos] == '+' || s.src[s.pos] == '-') {
			s.pos++
		}
		if s.pos < len(s.src) && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
			digits()
		} else {
			// Not an exponent after all; "1e" is the number 1 followed by
			// the identifier "e".
			s.pos = mark
		}
	}
	return token.Token{Kind: token.Number, Lexeme: s.src[start:s.pos], Pos: start}
}

// scanString reads a quoted literal. Both single and double quotes are
// accepted; the closing quote must match the opening one. A doubled quote
// inside the literal escapes itself.
func (s *scanner) scanString(start int, quote rune) (token.Token, error) {
	s.pos++ // opening quote
	var sb strings.Builder
	for s.pos < len(s.src) {
		r, size := s.peek()
		s.pos += size
		if r == quote {
			if q, _ := s.peek(); q == quote {
				// Doubled quote: literal quote character.
				s.pos += size
				sb.WriteRune(quote)
				continue
			}
			return token.Token{Kind: token.String, Lexeme: sb.String(), Pos: start}, nil
		}
		sb.WriteRune(r)
	}
	return token.Token{}, &Error{Pos: start, Message: "unterminated string literal"}
}

// scanIdent reads an identifier or keyword.
func (s *scanner) scanIdent(start int) token.Token {
	for s.pos < len(s.src) {
		r, size := s.peek()
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		s.pos += size
	}
	word := s.src[start:s.pos]
	if kind, ok := token.Keywords[strings.ToLower(word)]; ok {
		return token.Token{Kind: kind, Lexeme: word, Pos: start}
	}
	return token.Token{Kind: token.Ident, Lexeme: word, Pos: start}
}
