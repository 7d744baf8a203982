package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/formengine/internal/ast"
)

func TestParse_Precedence(t *testing.T) {
	t.Parallel()

	// 1 + 2 * 3 parses as 1 + (2 * 3).
	node, err := Parse("1 + 2 * 3")
	require.NoError(t, err)

	add, ok := node.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, add.Op)
	mul, ok := add.Y.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpMul, mul.Op)
}

func TestParse_Parentheses(t *testing.T) {
	t.Parallel()

	// (1 + 2) * 3 parses as (1 + 2) * 3.
	node, err := Parse("(1 + 2) * 3")
	require.NoError(t, err)

	mul, ok := node.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpMul, mul.Op)
	add, ok := mul.X.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAdd, add.Op)
}

func TestParse_PowerIsRightAssociative(t *testing.T) {
	t.Parallel()

	// 2 ** 3 ** 2 parses as 2 ** (3 ** 2).
	node, err := Parse("2 ** 3 ** 2")
	require.NoError(t, err)

	outer, ok := node.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpPow, outer.Op)
	_, leftIsLiteral := outer.X.(*ast.Literal)
	assert.True(t, leftIsLiteral)
	inner, ok := outer.Y.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpPow, inner.Op)
}

func TestParse_LogicalPrecedence(t *testing.T) {
	t.Parallel()

	// a or b and c parses as a or (b and c).
	node, err := Parse("a or b and c")
	require.NoError(t, err)

	or, ok := node.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpOr, or.Op)
	and, ok := or.Y.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpAnd, and.Op)
}

func TestParse_UnaryBindsTighterThanMultiplication(t *testing.T) {
	t.Parallel()

	node, err := Parse("-a * b")
	require.NoError(t, err)

	mul, ok := node.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpMul, mul.Op)
	neg, ok := mul.X.(*ast.UnaryExpr)
	require.True(t, ok)
	assert.Equal(t, ast.OpNeg, neg.Op)
}

func TestParse_FunctionCalls(t *testing.T) {
	t.Parallel()

	t.Run("no arguments", func(t *testing.T) {
		node, err := Parse("now()")
		require.NoError(t, err)
		call, ok := node.(*ast.CallExpr)
		require.True(t, ok)
		assert.Equal(t, "now", call.Name)
		assert.Empty(t, call.Args)
	})

	t.Run("multiple arguments", func(t *testing.T) {
		node, err := Parse("min(a, b, 3)")
		require.NoError(t, err)
		call, ok := node.(*ast.CallExpr)
		require.True(t, ok)
		assert.Equal(t, "min", call.Name)
		assert.Len(t, call.Args, 3)
	})

	t.Run("nested", func(t *testing.T) {
		node, err := Parse("max(min(a, b), c + 1)")
		require.NoError(t, err)
		call, ok := node.(*ast.CallExpr)
		require.True(t, ok)
		require.Len(t, call.Args, 2)
		_, ok = call.Args[0].(*ast.CallExpr)
		assert.True(t, ok)
	})

	t.Run("unknown names are accepted syntactically", func(t *testing.T) {
		_, err := Parse("definitely_not_a_function(1)")
		assert.NoError(t, err)
	})
}

func TestParse_FieldReference(t *testing.T) {
	t.Parallel()

	node, err := Parse("net_amount")
	require.NoError(t, err)
	ref, ok := node.(*ast.FieldRef)
	require.True(t, ok)
	assert.Equal(t, "net_amount", ref.Name)
	assert.Equal(t, 0, ref.NamePos)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		source   string
		expected string
	}{
		{"missing operand", "1 +", "literal, field reference"},
		{"missing closing paren", "(1 + 2", "')'"},
		{"trailing tokens", "1 2", "end of formula"},
		{"missing call paren", "min(1, 2", "',' or ')'"},
		{"empty source", "", "literal, field reference"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.source)
			var parseErr *Error
			require.ErrorAs(t, err, &parseErr)
			assert.Contains(t, parseErr.Expected, tc.expected)
		})
	}
}

func TestParse_DepthLimit(t *testing.T) {
	t.Parallel()

	// Deeply nested parentheses must fail with a parse error, not a stack
	// overflow.
	source := strings.Repeat("(", 5000) + "1" + strings.Repeat(")", 5000)
	_, err := Parse(source)
	var parseErr *Error
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Expected, "nesting limit")
}

func TestParse_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := Parse("a + b * min(c, 2)")
	require.NoError(t, err)
	second, err := Parse("a + b * min(c, 2)")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
