package app

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/runtime"
	"github.com/vk/formengine/internal/validate"
)

// reportJSON is the machine-readable evaluation report.
type reportJSON struct {
	Entity            string            `json:"entity"`
	Fields            []fieldJSON       `json:"fields"`
	Outputs           map[string]any    `json:"outputs"`
	OutputErrors      map[string]string `json:"output_errors,omitempty"`
	RuleDiagnostics   map[string]string `json:"rule_diagnostics,omitempty"`
	HasBlockingErrors bool              `json:"has_blocking_errors"`
}

type fieldJSON struct {
	ID       string   `json:"id"`
	Value    any      `json:"value"`
	Visible  bool     `json:"visible"`
	Enabled  bool     `json:"enabled"`
	Required bool     `json:"required"`
	Error    string   `json:"error,omitempty"`
	Issues   []string `json:"issues,omitempty"`
}

// writeReport renders an evaluation result, human-readable by default or as
// JSON for tooling.
func writeReport(w io.Writer, result *runtime.Result, asJSON bool) error {
	if asJSON {
		return writeJSONReport(w, result)
	}
	return writeTextReport(w, result)
}

func writeJSONReport(w io.Writer, result *runtime.Result) error {
	report := reportJSON{
		Entity:            result.EntityID,
		Outputs:           make(map[string]any),
		HasBlockingErrors: result.HasBlockingErrors,
	}
	for _, f := range result.Fields {
		fj := fieldJSON{
			ID:       f.FieldID,
			Value:    plainValue(f.Value),
			Visible:  f.Visible,
			Enabled:  f.Enabled,
			Required: f.Required,
		}
		if f.Err != nil {
			fj.Error = f.Err.Error()
		}
		for _, issue := range f.Issues {
			fj.Issues = append(fj.Issues, fmt.Sprintf("%s %s: %s", issue.Severity, issue.Constraint, issue.Message))
		}
		report.Fields = append(report.Fields, fj)
	}
	for _, o := range result.Outputs {
		if o.Err != nil {
			if report.OutputErrors == nil {
				report.OutputErrors = make(map[string]string)
			}
			report.OutputErrors[o.Name] = o.Err.Error()
			continue
		}
		report.Outputs[o.Name] = plainValue(o.Value)
	}
	for _, d := range result.RuleDiagnostics {
		if report.RuleDiagnostics == nil {
			report.RuleDiagnostics = make(map[string]string)
		}
		report.RuleDiagnostics[d.RuleID] = d.Err.Error()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeTextReport(w io.Writer, result *runtime.Result) error {
	fmt.Fprintf(w, "Entity %s\n", result.EntityID)
	for _, f := range result.Fields {
		fmt.Fprintf(w, "  %-20s %-12s visible=%-5v enabled=%-5v\n", f.FieldID, displayValue(f.Value), f.Visible, f.Enabled)
		if f.Err != nil {
			fmt.Fprintf(w, "    formula error: %v\n", f.Err)
		}
		for _, issue := range f.Issues {
			fmt.Fprintf(w, "    %s [%s] %s\n", issue.Severity, issue.Constraint, issue.Message)
		}
	}
	if len(result.Outputs) > 0 {
		fmt.Fprintln(w, "  Outputs:")
		for _, o := range result.Outputs {
			if o.Err != nil {
				fmt.Fprintf(w, "    %-18s (%s) error: %v\n", o.Name, o.Target, o.Err)
				continue
			}
			fmt.Fprintf(w, "    %-18s (%s) = %s\n", o.Name, o.Target, displayValue(o.Value))
		}
	}
	for _, d := range result.RuleDiagnostics {
		fmt.Fprintf(w, "  rule %s inactive: %v\n", d.RuleID, d.Err)
	}
	if result.HasBlockingErrors {
		fmt.Fprintf(w, "  BLOCKED: %d blocking error(s) prevent document generation\n", countBlocking(result))
	}
	return nil
}

// countBlocking counts ERROR issues and failed outputs for the footer line.
func countBlocking(result *runtime.Result) int {
	n := 0
	for _, f := range result.Fields {
		for _, issue := range f.Issues {
			if issue.Severity == validate.SeverityError {
				n++
			}
		}
	}
	for _, o := range result.Outputs {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// plainValue converts an engine value to its native Go representation for
// JSON encoding.
func plainValue(v cty.Value) any {
	if v == cty.NilVal || v.IsNull() {
		return nil
	}
	switch v.Type() {
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return f
	case cty.String:
		return v.AsString()
	case cty.Bool:
		return v.True()
	}
	return v.GoString()
}

// displayValue renders an engine value for the text report.
func displayValue(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return "null"
	}
	switch v.Type() {
	case cty.Number:
		return v.AsBigFloat().Text('g', -1)
	case cty.String:
		return fmt.Sprintf("%q", v.AsString())
	case cty.Bool:
		return fmt.Sprintf("%v", v.True())
	}
	return v.GoString()
}
