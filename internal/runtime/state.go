package runtime

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/rules"
	"github.com/vk/formengine/internal/schema"
	"github.com/vk/formengine/internal/validate"
)

// FieldResult is the evaluated state of one field. A failure while resolving
// the field's own formula is isolated here; sibling fields still evaluate.
type FieldResult struct {
	FieldID  string
	Value    cty.Value
	Visible  bool
	Enabled  bool
	Required bool
	Issues   []validate.Issue
	// Err is set when the field's own calculated formula failed, including
	// the dynamic circular-dependency guard.
	Err error
}

// OutputResult is the evaluated state of one output mapping.
type OutputResult struct {
	Name   string
	Target schema.OutputTarget
	Value  cty.Value
	Err    error
}

// Result is the immutable snapshot produced by one orchestration pass over
// one entity.
type Result struct {
	EntityID string
	// Fields follows the entity's field order.
	Fields  []FieldResult
	Outputs []OutputResult
	// RuleDiagnostics lists control rules whose conditions errored. They are
	// advisory; an errored rule is simply inactive.
	RuleDiagnostics []rules.Diagnostic
	// HasBlockingErrors is true when any field has an ERROR-severity issue
	// or any output mapping failed. Document generation must refuse to
	// proceed while it is set.
	HasBlockingErrors bool
}

// Field returns the result for the given field id.
func (r *Result) Field(id string) (FieldResult, bool) {
	for _, f := range r.Fields {
		if f.FieldID == id {
			return f, true
		}
	}
	return FieldResult{}, false
}

// Output returns the result for the given output mapping name.
func (r *Result) Output(name string) (OutputResult, bool) {
	for _, o := range r.Outputs {
		if o.Name == name {
			return o, true
		}
	}
	return OutputResult{}, false
}

// FieldUIState is the per-field slice of FormRuntimeState.
type FieldUIState struct {
	Visible  bool
	Enabled  bool
	Required bool
	Errors   []validate.Issue
	Warnings []validate.Issue
	Infos    []validate.Issue
}

// FormRuntimeState is the UI-facing view of a Result.
type FormRuntimeState struct {
	EntityID          string
	Fields            map[string]FieldUIState
	HasBlockingErrors bool
}

// FormState projects the result into the UI-facing shape.
func (r *Result) FormState() FormRuntimeState {
	state := FormRuntimeState{
		EntityID:          r.EntityID,
		Fields:            make(map[string]FieldUIState, len(r.Fields)),
		HasBlockingErrors: r.HasBlockingErrors,
	}
	for _, f := range r.Fields {
		ui := FieldUIState{Visible: f.Visible, Enabled: f.Enabled, Required: f.Required}
		for _, issue := range f.Issues {
			switch issue.Severity {
			case validate.SeverityError:
				ui.Errors = append(ui.Errors, issue)
			case validate.SeverityWarning:
				ui.Warnings = append(ui.Warnings, issue)
			default:
				ui.Infos = append(ui.Infos, issue)
			}
		}
		state.Fields[f.FieldID] = ui
	}
	return state
}

// DocumentField is the per-field slice of DocumentRuntimeContext.
type DocumentField struct {
	FieldID string
	Value   cty.Value
	Visible bool
	Issues  []validate.Issue
}

// DocumentRuntimeContext is the generation-facing view of a Result. Document
// adapters must refuse to render while HasBlockingErrors is set.
type DocumentRuntimeContext struct {
	EntityID          string
	Fields            []DocumentField
	OutputValues      map[string]cty.Value
	HasBlockingErrors bool
}

// DocumentContext projects the result into the generation-facing shape.
// Failed output mappings are absent from OutputValues; their failure is
// already reflected in HasBlockingErrors.
func (r *Result) DocumentContext() DocumentRuntimeContext {
	doc := DocumentRuntimeContext{
		EntityID:          r.EntityID,
		OutputValues:      make(map[string]cty.Value, len(r.Outputs)),
		HasBlockingErrors: r.HasBlockingErrors,
	}
	for _, f := range r.Fields {
		doc.Fields = append(doc.Fields, DocumentField{
			FieldID: f.FieldID,
			Value:   f.Value,
			Visible: f.Visible,
			Issues:  f.Issues,
		})
	}
	for _, o := range r.Outputs {
		if o.Err == nil {
			doc.OutputValues[o.Name] = o.Value
		}
	}
	return doc
}
