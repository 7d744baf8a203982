package deps

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/formengine/internal/parser"
)

func TestFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		source string
		want   []string
	}{
		{"1 + 2", nil},
		{"a + b", []string{"a", "b"}},
		{"a + a * a", []string{"a"}},
		{"min(a, max(b, c))", []string{"a", "b", "c"}},
		// Both branches count, even the ones evaluation would skip.
		{"false and hidden", []string{"hidden"}},
		{"true or hidden", []string{"hidden"}},
		{"if(cond, left, right)", []string{"cond", "left", "right"}},
		{"-x", []string{"x"}},
		{"zebra + apple", []string{"apple", "zebra"}}, // sorted output
	}
	for _, tc := range cases {
		t.Run(tc.source, func(t *testing.T) {
			node, err := parser.Parse(tc.source)
			require.NoError(t, err)
			assert.Equal(t, tc.want, Fields(node))
		})
	}
}

func TestFunctions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		source string
		want   []string
	}{
		{"a + b", nil},
		{"min(1, 2)", []string{"min"}},
		{"min(1, min(2, 3))", []string{"min"}},
		{"upper(trim(name))", []string{"trim", "upper"}},
		{"false and mystery()", []string{"mystery"}},
	}
	for _, tc := range cases {
		t.Run(tc.source, func(t *testing.T) {
			node, err := parser.Parse(tc.source)
			require.NoError(t, err)
			assert.Equal(t, tc.want, Functions(node))
		})
	}
}

// TestFields_GeneratedFormulas builds random formulas from a known pool of
// field names and checks extraction finds exactly the names used.
func TestFields_GeneratedFormulas(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	pool := []string{"alpha", "beta", "gamma", "delta"}

	for i := 0; i < 50; i++ {
		used := make(map[string]struct{})
		source := genExpr(rng, pool, used, 0)

		node, err := parser.Parse(source)
		require.NoError(t, err, "generated formula must parse: %s", source)

		want := make([]string, 0, len(used))
		for _, name := range pool {
			if _, ok := used[name]; ok {
				want = append(want, name)
			}
		}
		// Fields returns names in lexical order, not pool order.
		sort.Strings(want)
		if len(want) == 0 {
			want = nil
		}
		assert.Equal(t, want, Fields(node), "formula: %s", source)
	}
}

// genExpr emits a random well-formed formula, recording every field name it
// references in used.
func genExpr(rng *rand.Rand, pool []string, used map[string]struct{}, depth int) string {
	if depth >= 4 || rng.Intn(3) == 0 {
		// Leaf: a number literal or a field reference.
		if rng.Intn(2) == 0 {
			return fmt.Sprintf("%d", rng.Intn(100))
		}
		name := pool[rng.Intn(len(pool))]
		used[name] = struct{}{}
		return name
	}
	switch rng.Intn(3) {
	case 0:
		op := []string{"+", "-", "*", "and", "or"}[rng.Intn(5)]
		return fmt.Sprintf("(%s %s %s)",
			genExpr(rng, pool, used, depth+1), op, genExpr(rng, pool, used, depth+1))
	case 1:
		return fmt.Sprintf("min(%s, %s)",
			genExpr(rng, pool, used, depth+1), genExpr(rng, pool, used, depth+1))
	default:
		return "not " + genExpr(rng, pool, used, depth+1)
	}
}
