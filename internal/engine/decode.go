package engine

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/ctxlog"
	"github.com/vk/formengine/internal/eval"
)

// The HCL wire shape of schema files. These structs exist only for decoding;
// translate.go turns them into the immutable schema model.

type schemaFile struct {
	Entities []*entityBlock `hcl:"entity,block"`
}

type entityBlock struct {
	Name    string         `hcl:"name,label"`
	Fields  []*fieldBlock  `hcl:"field,block"`
	Rules   []*ruleBlock   `hcl:"control_rule,block"`
	Outputs []*outputBlock `hcl:"output,block"`
}

type fieldBlock struct {
	ID       string `hcl:"id,label"`
	Kind     string `hcl:"kind,label"`
	Label    string `hcl:"label,optional"`
	Required bool   `hcl:"required,optional"`
	Formula  string `hcl:"formula,optional"`

	MinLength     *int     `hcl:"min_length,optional"`
	MaxLength     *int     `hcl:"max_length,optional"`
	MinValue      *float64 `hcl:"min_value,optional"`
	MaxValue      *float64 `hcl:"max_value,optional"`
	MinDate       string   `hcl:"min_date,optional"`
	MaxDate       string   `hcl:"max_date,optional"`
	Pattern       string   `hcl:"pattern,optional"`
	AllowedValues []string `hcl:"allowed_values,optional"`
	Extensions    []string `hcl:"extensions,optional"`
	MaxFileSize   *int64   `hcl:"max_file_size,optional"`
	Severity      string   `hcl:"severity,optional"`
}

type ruleBlock struct {
	ID        string     `hcl:"id,label"`
	Condition string     `hcl:"condition"`
	Effect    string     `hcl:"effect"`
	Target    string     `hcl:"target"`
	Value     *cty.Value `hcl:"value,optional"`
	Enabled   *bool      `hcl:"enabled,optional"`
	Priority  int        `hcl:"priority,optional"`
}

type outputBlock struct {
	Name    string `hcl:"name,label"`
	Target  string `hcl:"target,label"`
	Formula string `hcl:"formula"`
}

// decodeSchemaFile parses and decodes a single HCL schema file.
func decodeSchemaFile(ctx context.Context, filePath string) (*schemaFile, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding schema file.", "path", filePath)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse schema file %s: %s", filePath, diags.Error())
	}

	var decoded schemaFile
	diags = gohcl.DecodeBody(file.Body, nil, &decoded)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode schema file %s: %s", filePath, diags.Error())
	}

	logger.Debug("Successfully decoded schema file.", "path", filePath, "entities", len(decoded.Entities))
	return &decoded, nil
}

// DecodeValuesFile reads a field-value snapshot from an HCL file whose
// top-level attributes are literal field values. Only the engine's primitive
// value set is accepted.
func DecodeValuesFile(ctx context.Context, filePath string) (map[string]cty.Value, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding values file.", "path", filePath)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filePath)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse values file %s: %s", filePath, diags.Error())
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to read values file %s: %s", filePath, diags.Error())
	}

	values := make(map[string]cty.Value, len(attrs))
	for name, attr := range attrs {
		v, diags := attr.Expr.Value(nil)
		if diags.HasErrors() {
			return nil, fmt.Errorf("value %q in %s: %s", name, filePath, diags.Error())
		}
		if !eval.IsEngineValue(v) {
			return nil, fmt.Errorf("value %q in %s: only number, text, boolean and null values are supported", name, filePath)
		}
		values[name] = v
	}

	logger.Debug("Successfully decoded values file.", "path", filePath, "values", len(values))
	return values, nil
}
