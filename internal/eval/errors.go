package eval

import (
	"fmt"
	"strings"
)

// ErrorKind discriminates the evaluation failure taxonomy.
type ErrorKind int

const (
	// TypeMismatch marks an operator or function applied to incompatible
	// operand types, including null where a concrete value is required.
	TypeMismatch ErrorKind = iota
	// DivideByZero marks a division or modulo with a zero divisor.
	DivideByZero
	// UnknownFunction marks a call to a function name missing from the
	// registry. Distinct from a parse error: the call is syntactically valid.
	UnknownFunction
	// CircularDependency marks a calculated field whose formula transitively
	// references itself. Raised by the runtime guard, not the evaluator.
	CircularDependency
	// RecursionLimit marks an evaluation that exceeded the nesting bound.
	RecursionLimit
)

func (k ErrorKind) String() string {
	switch k {
	case TypeMismatch:
		return "type mismatch"
	case DivideByZero:
		return "division by zero"
	case UnknownFunction:
		return "unknown function"
	case CircularDependency:
		return "circular dependency"
	case RecursionLimit:
		return "recursion limit exceeded"
	}
	return fmt.Sprintf("evaluation error(%d)", int(k))
}

// Error is a typed evaluation failure. Evaluation never panics; every failure
// mode is reported as a value of this type.
type Error struct {
	Kind    ErrorKind
	Pos     int
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s at offset %d: %s", e.Kind, e.Pos, e.Message)
}

func errf(kind ErrorKind, pos int, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// NewCircularDependencyError reports a dependency cycle discovered while
// resolving calculated fields at runtime. The chain names the fields in the
// order they were entered, ending at the field that closed the cycle.
func NewCircularDependencyError(fieldID string, chain []string) *Error {
	return &Error{
		Kind:    CircularDependency,
		Message: fmt.Sprintf("field %q depends on itself: %s", fieldID, strings.Join(chain, " -> ")),
	}
}
