package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/ctxlog"
	"github.com/vk/formengine/internal/parser"
	"github.com/vk/formengine/internal/schema"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const invoiceSchema = `
entity "invoice" {
  field "net" "number" {
    required  = true
    min_value = 0
  }

  field "tax_rate" "number" {}

  field "gross" "calculated" {
    formula = "net * (1 + tax_rate / 100)"
  }

  field "reference" "text" {
    max_length = 10
    severity   = "warning"
  }

  control_rule "hide-reference" {
    condition = "net == null"
    effect    = "visibility"
    target    = "reference"
    value     = false
  }

  output "gross_amount" "NUMBER" {
    formula = "gross"
  }
}
`

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "invoice.hcl", invoiceSchema)

	set, warnings, err := Load(testContext(), dir, parser.NewCache())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	entity, ok := set.Entity("invoice")
	require.True(t, ok)
	require.Len(t, entity.Fields, 4)
	assert.Len(t, entity.Rules, 1)
	assert.Len(t, entity.Outputs, 1)

	net, ok := entity.Field("net")
	require.True(t, ok)
	assert.Equal(t, schema.KindNumber, net.Kind)
	assert.True(t, net.Required)
	require.NotNil(t, net.MinValue)
	assert.Equal(t, 0.0, *net.MinValue)

	gross, ok := entity.Field("gross")
	require.True(t, ok)
	assert.Equal(t, schema.KindCalculated, gross.Kind)
	assert.NotEmpty(t, gross.Formula)

	rule := entity.Rules[0]
	assert.Equal(t, "hide-reference", rule.ID)
	assert.Equal(t, schema.Visibility, rule.Effect)
	assert.Equal(t, cty.False, rule.Value)
	assert.True(t, rule.Enabled)

	out := entity.Outputs[0]
	assert.Equal(t, "gross_amount", out.Name)
	assert.Equal(t, schema.TargetNumber, out.Target)
}

func TestLoad_SingleFilePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "invoice.hcl", invoiceSchema)

	set, _, err := Load(testContext(), path, parser.NewCache())
	require.NoError(t, err)
	_, ok := set.Entity("invoice")
	assert.True(t, ok)
}

func TestLoad_MergesMultipleFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.hcl", `
entity "a" {
  field "x" "text" {}
}
`)
	writeFile(t, dir, "b.hcl", `
entity "b" {
  field "y" "text" {}
}
`)

	set, _, err := Load(testContext(), dir, parser.NewCache())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set.EntityIDs())
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			"unknown field kind",
			`entity "e" {
			   field "x" "blob" {}
			 }`,
			"unknown field kind",
		},
		{
			"duplicate field id",
			`entity "e" {
			   field "x" "text" {}
			   field "x" "number" {}
			 }`,
			"duplicate field id",
		},
		{
			"calculated without formula",
			`entity "e" {
			   field "x" "calculated" {}
			 }`,
			"has no formula",
		},
		{
			"formula on plain field",
			`entity "e" {
			   field "x" "text" {
			     formula = "1"
			   }
			 }`,
			"cannot have a formula",
		},
		{
			"off-matrix constraint",
			`entity "e" {
			   field "x" "number" {
			     pattern = "a+"
			   }
			 }`,
			"not available",
		},
		{
			"bad severity",
			`entity "e" {
			   field "x" "text" {
			     severity = "fatal"
			   }
			 }`,
			"severity",
		},
		{
			"rule targets unknown field",
			`entity "e" {
			   field "x" "text" {}
			   control_rule "r" {
			     condition = "true"
			     effect    = "visibility"
			     target    = "ghost"
			     value     = false
			   }
			 }`,
			"unknown field",
		},
		{
			"visibility rule needs boolean value",
			`entity "e" {
			   field "x" "text" {}
			   control_rule "r" {
			     condition = "true"
			     effect    = "visibility"
			     target    = "x"
			     value     = 5
			   }
			 }`,
			"requires a boolean",
		},
		{
			"unknown control effect",
			`entity "e" {
			   field "x" "text" {}
			   control_rule "r" {
			     condition = "true"
			     effect    = "explode"
			     target    = "x"
			   }
			 }`,
			"unknown control effect",
		},
		{
			"unknown output target",
			`entity "e" {
			   field "x" "text" {}
			   output "o" "BLOB" {
			     formula = "x"
			   }
			 }`,
			"unknown output target",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, "schema.hcl", tc.content)

			_, _, err := Load(testContext(), dir, parser.NewCache())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestLoad_DuplicateEntityAcrossFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.hcl", `
entity "e" {
  field "x" "text" {}
}
`)
	writeFile(t, dir, "b.hcl", `
entity "e" {
  field "y" "text" {}
}
`)

	_, _, err := Load(testContext(), dir, parser.NewCache())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate entity")
}

func TestLoad_NoSchemaFiles(t *testing.T) {
	t.Parallel()

	_, _, err := Load(testContext(), t.TempDir(), parser.NewCache())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no .hcl schema files")
}

func TestLoad_AdvisoryWarnings(t *testing.T) {
	t.Parallel()

	t.Run("unparsable formula warns but loads", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "schema.hcl", `
entity "e" {
  field "x" "calculated" {
    formula = "1 +"
  }
}
`)
		set, warnings, err := Load(testContext(), dir, parser.NewCache())
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Equal(t, "e", warnings[0].EntityID)
		_, ok := set.Entity("e")
		assert.True(t, ok)
	})

	t.Run("dependency cycle warns but loads", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "schema.hcl", `
entity "e" {
  field "a" "calculated" {
    formula = "b + 1"
  }
  field "b" "calculated" {
    formula = "a + 1"
  }
}
`)
		_, warnings, err := Load(testContext(), dir, parser.NewCache())
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0].Message, "cycle")
	})
}

func TestDecodeValuesFile(t *testing.T) {
	t.Parallel()

	t.Run("primitive values decode", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "values.hcl", `
net      = 100
approved = true
note     = "hello"
empty    = null
`)
		values, err := DecodeValuesFile(testContext(), path)
		require.NoError(t, err)
		assert.Len(t, values, 4)
		assert.True(t, cty.NumberIntVal(100).RawEquals(values["net"]))
		assert.Equal(t, cty.True, values["approved"])
		assert.Equal(t, "hello", values["note"].AsString())
		assert.True(t, values["empty"].IsNull())
	})

	t.Run("structured values are rejected", func(t *testing.T) {
		dir := t.TempDir()
		path := writeFile(t, dir, "values.hcl", `items = [1, 2, 3]`)

		_, err := DecodeValuesFile(testContext(), path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "only number, text, boolean and null")
	})

	t.Run("unreadable file is an error", func(t *testing.T) {
		_, err := DecodeValuesFile(testContext(), filepath.Join(t.TempDir(), "missing.hcl"))
		assert.Error(t, err)
	})
}
