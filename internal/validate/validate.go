// Package validate evaluates field validation constraints.
//
// Every constraint has a total, defined behavior for null, empty and
// type-mismatched input: null or empty values trip only the REQUIRED
// constraint, and a value whose type does not fit a constraint produces a
// type-mismatch issue instead of being skipped silently.
package validate

import (
	"fmt"
	"regexp"
	"time"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/schema"
)

// Severity ranks a validation issue. Only SeverityError blocks document
// generation; SeverityWarning requires explicit user confirmation (the
// decision is surfaced, not made, here) and SeverityInfo never blocks.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ConstraintKind identifies which constraint produced an issue.
type ConstraintKind int

const (
	Required ConstraintKind = iota
	MinLength
	MaxLength
	MinValue
	MaxValue
	Pattern
	AllowedValues
	FileExtension
	MaxFileSize
)

var constraintNames = map[ConstraintKind]string{
	Required:      "REQUIRED",
	MinLength:     "MIN_LENGTH",
	MaxLength:     "MAX_LENGTH",
	MinValue:      "MIN_VALUE",
	MaxValue:      "MAX_VALUE",
	Pattern:       "PATTERN",
	AllowedValues: "ALLOWED_VALUES",
	FileExtension: "FILE_EXTENSION",
	MaxFileSize:   "MAX_FILE_SIZE",
}

func (c ConstraintKind) String() string {
	if name, ok := constraintNames[c]; ok {
		return name
	}
	return fmt.Sprintf("constraint(%d)", int(c))
}

// Issue is one validation finding for a field.
type Issue struct {
	FieldID    string
	Severity   Severity
	Message    string
	Constraint ConstraintKind
}

// FileStat resolves the size of a file value for MAX_FILE_SIZE checks. The
// engine performs no I/O itself; the caller wires in a stat function (the CLI
// uses os.Stat, tests use fakes). When nil, size checks are skipped.
type FileStat func(path string) (size int64, ok bool)

// matrix is the fixed field-kind -> constraint availability table. Schema
// loading rejects definitions outside it; CheckField also consults it so a
// hand-built schema cannot smuggle in an off-matrix constraint.
var matrix = map[schema.FieldKind]map[ConstraintKind]bool{
	schema.KindText: {
		Required: true, MinLength: true, MaxLength: true,
		Pattern: true, AllowedValues: true,
	},
	schema.KindNumber: {
		Required: true, MinValue: true, MaxValue: true,
	},
	schema.KindBoolean: {
		Required: true,
	},
	schema.KindDate: {
		Required: true, MinValue: true, MaxValue: true,
	},
	schema.KindFile: {
		Required: true, FileExtension: true, MaxFileSize: true,
	},
	schema.KindCalculated: {
		MinLength: true, MaxLength: true, MinValue: true, MaxValue: true,
		Pattern: true, AllowedValues: true,
	},
}

// Allowed reports whether a constraint kind is legal for a field kind.
func Allowed(kind schema.FieldKind, c ConstraintKind) bool {
	return matrix[kind][c]
}

// DateLayout is the wire format for date field values and date bounds.
const DateLayout = "2006-01-02"

// CheckField evaluates every constraint of the field definition against the
// given value and returns the resulting issues, empty when the value passes.
func CheckField(f *schema.Field, v cty.Value, stat FileStat) []Issue {
	c := &checker{field: f, stat: stat}

	if isEmpty(v) {
		// Absent input trips only REQUIRED; all other constraints are
		// defined to pass on empty values.
		if f.Required && Allowed(f.Kind, Required) {
			c.add(Required, SeverityError, "value is required")
		}
		return c.issues
	}

	c.checkLength(v)
	c.checkBounds(v)
	c.checkPattern(v)
	c.checkAllowedValues(v)
	c.checkFile(v)
	return c.issues
}

type checker struct {
	field  *schema.Field
	stat   FileStat
	issues []Issue
}

func (c *checker) add(kind ConstraintKind, sev Severity, format string, args ...any) {
	c.issues = append(c.issues, Issue{
		FieldID:    c.field.ID,
		Severity:   sev,
		Message:    fmt.Sprintf(format, args...),
		Constraint: kind,
	})
}

// severity returns the issue severity for non-required constraints,
// honoring the field's configured downgrade.
func (c *checker) severity() Severity {
	switch c.field.Severity {
	case "warning":
		return SeverityWarning
	case "info":
		return SeverityInfo
	}
	return SeverityError
}

func (c *checker) checkLength(v cty.Value) {
	f := c.field
	if f.MinLength == nil && f.MaxLength == nil {
		return
	}
	if !Allowed(f.Kind, MinLength) && !Allowed(f.Kind, MaxLength) {
		return
	}
	s, ok := asText(v)
	if !ok {
		c.add(MinLength, c.severity(), "length constraint requires a text value, got %s", describe(v))
		return
	}
	n := len([]rune(s))
	if f.MinLength != nil && n < *f.MinLength {
		c.add(MinLength, c.severity(), "length %d is below the minimum of %d", n, *f.MinLength)
	}
	if f.MaxLength != nil && n > *f.MaxLength {
		c.add(MaxLength, c.severity(), "length %d exceeds the maximum of %d", n, *f.MaxLength)
	}
}

func (c *checker) checkBounds(v cty.Value) {
	f := c.field
	if !Allowed(f.Kind, MinValue) {
		return
	}
	if f.Kind == schema.KindDate {
		c.checkDateBounds(v)
		return
	}
	if f.MinValue == nil && f.MaxValue == nil {
		return
	}
	if v.Type() != cty.Number {
		c.add(MinValue, c.severity(), "value bound requires a number, got %s", describe(v))
		return
	}
	n, _ := v.AsBigFloat().Float64()
	if f.MinValue != nil && n < *f.MinValue {
		c.add(MinValue, c.severity(), "value %v is below the minimum of %v", n, *f.MinValue)
	}
	if f.MaxValue != nil && n > *f.MaxValue {
		c.add(MaxValue, c.severity(), "value %v exceeds the maximum of %v", n, *f.MaxValue)
	}
}

func (c *checker) checkDateBounds(v cty.Value) {
	f := c.field
	if f.MinDate == "" && f.MaxDate == "" {
		return
	}
	s, ok := asText(v)
	if !ok {
		c.add(MinValue, c.severity(), "date value must be text in %s format, got %s", DateLayout, describe(v))
		return
	}
	day, err := time.Parse(DateLayout, s)
	if err != nil {
		c.add(MinValue, c.severity(), "cannot read %q as a %s date", s, DateLayout)
		return
	}
	if f.MinDate != "" {
		if min, err := time.Parse(DateLayout, f.MinDate); err == nil && day.Before(min) {
			c.add(MinValue, c.severity(), "date %s is before the minimum of %s", s, f.MinDate)
		}
	}
	if f.MaxDate != "" {
		if max, err := time.Parse(DateLayout, f.MaxDate); err == nil && day.After(max) {
			c.add(MaxValue, c.severity(), "date %s is after the maximum of %s", s, f.MaxDate)
		}
	}
}

func (c *checker) checkPattern(v cty.Value) {
	f := c.field
	if f.Pattern == "" || !Allowed(f.Kind, Pattern) {
		return
	}
	s, ok := asText(v)
	if !ok {
		c.add(Pattern, c.severity(), "pattern constraint requires a text value, got %s", describe(v))
		return
	}
	re, err := regexp.Compile(f.Pattern)
	if err != nil {
		// A broken pattern is a schema defect, surfaced as a finding
		// rather than silently passing everything.
		c.add(Pattern, SeverityError, "invalid pattern %q: %v", f.Pattern, err)
		return
	}
	if !re.MatchString(s) {
		c.add(Pattern, c.severity(), "value %q does not match pattern %q", s, f.Pattern)
	}
}

func (c *checker) checkAllowedValues(v cty.Value) {
	f := c.field
	if len(f.AllowedValues) == 0 || !Allowed(f.Kind, AllowedValues) {
		return
	}
	s, ok := asText(v)
	if !ok {
		c.add(AllowedValues, c.severity(), "allowed-values constraint requires a text value, got %s", describe(v))
		return
	}
	for _, allowed := range f.AllowedValues {
		if s == allowed {
			return
		}
	}
	c.add(AllowedValues, c.severity(), "value %q is not in the allowed set", s)
}

func (c *checker) checkFile(v cty.Value) {
	f := c.field
	if f.Kind != schema.KindFile {
		return
	}
	path, ok := asText(v)
	if !ok {
		c.add(FileExtension, c.severity(), "file value must be a text path, got %s", describe(v))
		return
	}
	if len(f.Extensions) > 0 {
		if !hasAnySuffix(path, f.Extensions) {
			c.add(FileExtension, c.severity(), "file %q does not have an accepted extension", path)
		}
	}
	if f.MaxFileSize != nil && c.stat != nil {
		if size, known := c.stat(path); known && size > *f.MaxFileSize {
			c.add(MaxFileSize, c.severity(), "file size %d exceeds the maximum of %d bytes", size, *f.MaxFileSize)
		}
	}
}

func hasAnySuffix(path string, exts []string) bool {
	for _, ext := range exts {
		if len(path) >= len(ext) && path[len(path)-len(ext):] == ext {
			return true
		}
	}
	return false
}

// isEmpty reports the engine's "absent value" notion: null or empty text.
func isEmpty(v cty.Value) bool {
	if v == cty.NilVal || v.IsNull() {
		return true
	}
	return v.Type() == cty.String && v.AsString() == ""
}

func asText(v cty.Value) (string, bool) {
	if v.IsNull() || v.Type() != cty.String {
		return "", false
	}
	return v.AsString(), true
}

func describe(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return "null"
	}
	switch v.Type() {
	case cty.Number:
		return "number"
	case cty.String:
		return "text"
	case cty.Bool:
		return "boolean"
	}
	return v.Type().FriendlyName()
}
