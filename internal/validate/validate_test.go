package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/schema"
)

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

func int64Ptr(n int64) *int64 { return &n }

func kindsOf(issues []Issue) []ConstraintKind {
	kinds := make([]ConstraintKind, len(issues))
	for i, issue := range issues {
		kinds[i] = issue.Constraint
	}
	return kinds
}

func TestCheckField_Required(t *testing.T) {
	t.Parallel()

	f := &schema.Field{ID: "name", Kind: schema.KindText, Required: true, MinLength: intPtr(3)}

	t.Run("null trips only required", func(t *testing.T) {
		issues := CheckField(f, cty.NullVal(cty.DynamicPseudoType), nil)
		require.Len(t, issues, 1)
		assert.Equal(t, Required, issues[0].Constraint)
		assert.Equal(t, SeverityError, issues[0].Severity)
		assert.Equal(t, "name", issues[0].FieldID)
	})

	t.Run("empty text trips only required", func(t *testing.T) {
		issues := CheckField(f, cty.StringVal(""), nil)
		require.Len(t, issues, 1)
		assert.Equal(t, Required, issues[0].Constraint)
	})

	t.Run("optional field passes on null", func(t *testing.T) {
		opt := &schema.Field{ID: "note", Kind: schema.KindText, MinLength: intPtr(3)}
		assert.Empty(t, CheckField(opt, cty.NullVal(cty.DynamicPseudoType), nil))
	})
}

func TestCheckField_TextLength(t *testing.T) {
	t.Parallel()

	f := &schema.Field{ID: "code", Kind: schema.KindText, MinLength: intPtr(2), MaxLength: intPtr(4)}

	assert.Empty(t, CheckField(f, cty.StringVal("abc"), nil))
	assert.Equal(t, []ConstraintKind{MinLength}, kindsOf(CheckField(f, cty.StringVal("a"), nil)))
	assert.Equal(t, []ConstraintKind{MaxLength}, kindsOf(CheckField(f, cty.StringVal("abcde"), nil)))

	// Length counts runes, not bytes.
	assert.Empty(t, CheckField(f, cty.StringVal("äöü"), nil))
}

func TestCheckField_NumberBounds(t *testing.T) {
	t.Parallel()

	f := &schema.Field{ID: "qty", Kind: schema.KindNumber, MinValue: floatPtr(1), MaxValue: floatPtr(10)}

	assert.Empty(t, CheckField(f, cty.NumberIntVal(5), nil))
	assert.Equal(t, []ConstraintKind{MinValue}, kindsOf(CheckField(f, cty.NumberIntVal(0), nil)))
	assert.Equal(t, []ConstraintKind{MaxValue}, kindsOf(CheckField(f, cty.NumberIntVal(11), nil)))

	t.Run("bounds are inclusive", func(t *testing.T) {
		assert.Empty(t, CheckField(f, cty.NumberIntVal(1), nil))
		assert.Empty(t, CheckField(f, cty.NumberIntVal(10), nil))
	})

	t.Run("non-number reports a finding instead of passing", func(t *testing.T) {
		issues := CheckField(f, cty.StringVal("lots"), nil)
		require.Len(t, issues, 1)
		assert.Equal(t, MinValue, issues[0].Constraint)
	})
}

func TestCheckField_DateBounds(t *testing.T) {
	t.Parallel()

	f := &schema.Field{ID: "due", Kind: schema.KindDate, MinDate: "2024-01-01", MaxDate: "2024-12-31"}

	assert.Empty(t, CheckField(f, cty.StringVal("2024-06-15"), nil))
	assert.Equal(t, []ConstraintKind{MinValue}, kindsOf(CheckField(f, cty.StringVal("2023-12-31"), nil)))
	assert.Equal(t, []ConstraintKind{MaxValue}, kindsOf(CheckField(f, cty.StringVal("2025-01-01"), nil)))

	t.Run("boundary days pass", func(t *testing.T) {
		assert.Empty(t, CheckField(f, cty.StringVal("2024-01-01"), nil))
		assert.Empty(t, CheckField(f, cty.StringVal("2024-12-31"), nil))
	})

	t.Run("unreadable date is a finding", func(t *testing.T) {
		issues := CheckField(f, cty.StringVal("June 15"), nil)
		require.Len(t, issues, 1)
		assert.Contains(t, issues[0].Message, "2006-01-02")
	})
}

func TestCheckField_Pattern(t *testing.T) {
	t.Parallel()

	f := &schema.Field{ID: "zip", Kind: schema.KindText, Pattern: `^\d{5}$`}

	assert.Empty(t, CheckField(f, cty.StringVal("12345"), nil))
	assert.Equal(t, []ConstraintKind{Pattern}, kindsOf(CheckField(f, cty.StringVal("1234"), nil)))

	t.Run("broken pattern is an error finding", func(t *testing.T) {
		bad := &schema.Field{ID: "zip", Kind: schema.KindText, Pattern: `([`}
		issues := CheckField(bad, cty.StringVal("12345"), nil)
		require.Len(t, issues, 1)
		assert.Equal(t, SeverityError, issues[0].Severity)
	})
}

func TestCheckField_AllowedValues(t *testing.T) {
	t.Parallel()

	f := &schema.Field{ID: "state", Kind: schema.KindText, AllowedValues: []string{"draft", "final"}}

	assert.Empty(t, CheckField(f, cty.StringVal("draft"), nil))
	assert.Equal(t, []ConstraintKind{AllowedValues}, kindsOf(CheckField(f, cty.StringVal("other"), nil)))
}

func TestCheckField_File(t *testing.T) {
	t.Parallel()

	f := &schema.Field{
		ID:          "attachment",
		Kind:        schema.KindFile,
		Extensions:  []string{".pdf", ".png"},
		MaxFileSize: int64Ptr(1024),
	}
	stat := func(sizes map[string]int64) FileStat {
		return func(path string) (int64, bool) {
			size, ok := sizes[path]
			return size, ok
		}
	}

	t.Run("accepted extension and size", func(t *testing.T) {
		s := stat(map[string]int64{"scan.pdf": 512})
		assert.Empty(t, CheckField(f, cty.StringVal("scan.pdf"), s))
	})

	t.Run("wrong extension", func(t *testing.T) {
		s := stat(map[string]int64{"scan.exe": 10})
		assert.Equal(t, []ConstraintKind{FileExtension}, kindsOf(CheckField(f, cty.StringVal("scan.exe"), s)))
	})

	t.Run("oversized file", func(t *testing.T) {
		s := stat(map[string]int64{"scan.pdf": 4096})
		assert.Equal(t, []ConstraintKind{MaxFileSize}, kindsOf(CheckField(f, cty.StringVal("scan.pdf"), s)))
	})

	t.Run("size check skipped without a stat function", func(t *testing.T) {
		assert.Empty(t, CheckField(f, cty.StringVal("scan.pdf"), nil))
	})

	t.Run("unknown file skips the size check", func(t *testing.T) {
		s := stat(nil)
		assert.Empty(t, CheckField(f, cty.StringVal("scan.pdf"), s))
	})
}

func TestCheckField_SeverityDowngrade(t *testing.T) {
	t.Parallel()

	cases := []struct {
		severity string
		want     Severity
	}{
		{"", SeverityError},
		{"warning", SeverityWarning},
		{"info", SeverityInfo},
	}
	for _, tc := range cases {
		t.Run("severity "+tc.severity, func(t *testing.T) {
			f := &schema.Field{ID: "code", Kind: schema.KindText, MaxLength: intPtr(2), Severity: tc.severity}
			issues := CheckField(f, cty.StringVal("toolong"), nil)
			require.Len(t, issues, 1)
			assert.Equal(t, tc.want, issues[0].Severity)
		})
	}

	t.Run("required is always an error", func(t *testing.T) {
		f := &schema.Field{ID: "code", Kind: schema.KindText, Required: true, Severity: "info"}
		issues := CheckField(f, cty.NullVal(cty.DynamicPseudoType), nil)
		require.Len(t, issues, 1)
		assert.Equal(t, SeverityError, issues[0].Severity)
	})
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	assert.True(t, Allowed(schema.KindText, Pattern))
	assert.True(t, Allowed(schema.KindNumber, MaxValue))
	assert.True(t, Allowed(schema.KindFile, MaxFileSize))
	assert.True(t, Allowed(schema.KindCalculated, MinLength))

	assert.False(t, Allowed(schema.KindNumber, Pattern))
	assert.False(t, Allowed(schema.KindBoolean, MinLength))
	assert.False(t, Allowed(schema.KindCalculated, Required))
	assert.False(t, Allowed(schema.KindText, MaxFileSize))
}

func TestCheckField_OffMatrixConstraintIgnored(t *testing.T) {
	t.Parallel()

	// A hand-built field with a length bound on a number kind: the matrix
	// guard keeps the constraint inert.
	f := &schema.Field{ID: "qty", Kind: schema.KindNumber, MinLength: intPtr(3)}
	assert.Empty(t, CheckField(f, cty.NumberIntVal(7), nil))
}
