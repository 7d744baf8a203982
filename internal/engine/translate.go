package engine

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/formengine/internal/schema"
	"github.com/vk/formengine/internal/validate"
)

// translateEntity turns a decoded entity block into the immutable schema
// model, enforcing the structural invariants the rest of the engine relies
// on: known field kinds, constraints inside the availability matrix, control
// effects with correctly typed payloads and known targets.
func translateEntity(block *entityBlock) (*schema.Entity, error) {
	entity := &schema.Entity{ID: block.Name}
	fieldIDs := make(map[string]bool)

	for _, fb := range block.Fields {
		field, err := translateField(block.Name, fb)
		if err != nil {
			return nil, err
		}
		if fieldIDs[field.ID] {
			return nil, fmt.Errorf("entity %q: duplicate field id %q", block.Name, field.ID)
		}
		fieldIDs[field.ID] = true
		entity.Fields = append(entity.Fields, field)
	}

	ruleIDs := make(map[string]bool)
	for _, rb := range block.Rules {
		rule, err := translateRule(block.Name, rb)
		if err != nil {
			return nil, err
		}
		if ruleIDs[rule.ID] {
			return nil, fmt.Errorf("entity %q: duplicate control rule id %q", block.Name, rule.ID)
		}
		ruleIDs[rule.ID] = true
		if !fieldIDs[rule.Target] {
			return nil, fmt.Errorf("entity %q: control rule %q targets unknown field %q", block.Name, rule.ID, rule.Target)
		}
		entity.Rules = append(entity.Rules, rule)
	}

	outputNames := make(map[string]bool)
	for _, ob := range block.Outputs {
		target, err := schema.ParseOutputTarget(ob.Target)
		if err != nil {
			return nil, fmt.Errorf("entity %q: output %q: %w", block.Name, ob.Name, err)
		}
		if outputNames[ob.Name] {
			return nil, fmt.Errorf("entity %q: duplicate output name %q", block.Name, ob.Name)
		}
		outputNames[ob.Name] = true
		entity.Outputs = append(entity.Outputs, schema.OutputMapping{
			Name:    ob.Name,
			Target:  target,
			Formula: ob.Formula,
		})
	}

	return entity, nil
}

func translateField(entityID string, fb *fieldBlock) (*schema.Field, error) {
	kind, err := schema.ParseFieldKind(fb.Kind)
	if err != nil {
		return nil, fmt.Errorf("entity %q: field %q: %w", entityID, fb.ID, err)
	}

	field := &schema.Field{
		ID:            fb.ID,
		Kind:          kind,
		Label:         fb.Label,
		Required:      fb.Required,
		Formula:       fb.Formula,
		MinLength:     fb.MinLength,
		MaxLength:     fb.MaxLength,
		MinValue:      fb.MinValue,
		MaxValue:      fb.MaxValue,
		MinDate:       fb.MinDate,
		MaxDate:       fb.MaxDate,
		Pattern:       fb.Pattern,
		AllowedValues: fb.AllowedValues,
		Extensions:    fb.Extensions,
		MaxFileSize:   fb.MaxFileSize,
		Severity:      fb.Severity,
	}

	if kind == schema.KindCalculated && field.Formula == "" {
		return nil, fmt.Errorf("entity %q: calculated field %q has no formula", entityID, fb.ID)
	}
	if kind != schema.KindCalculated && field.Formula != "" {
		return nil, fmt.Errorf("entity %q: field %q is not calculated and cannot have a formula", entityID, fb.ID)
	}
	switch field.Severity {
	case "", "warning", "info":
	default:
		return nil, fmt.Errorf("entity %q: field %q: severity must be \"warning\" or \"info\"", entityID, fb.ID)
	}

	if err := checkMatrix(field); err != nil {
		return nil, fmt.Errorf("entity %q: field %q: %w", entityID, fb.ID, err)
	}
	return field, nil
}

// checkMatrix rejects constraints outside the fixed kind -> constraint
// availability matrix.
func checkMatrix(f *schema.Field) error {
	type set struct {
		present bool
		kind    validate.ConstraintKind
	}
	constraints := []set{
		{f.Required, validate.Required},
		{f.MinLength != nil, validate.MinLength},
		{f.MaxLength != nil, validate.MaxLength},
		{f.MinValue != nil, validate.MinValue},
		{f.MaxValue != nil, validate.MaxValue},
		{f.MinDate != "", validate.MinValue},
		{f.MaxDate != "", validate.MaxValue},
		{f.Pattern != "", validate.Pattern},
		{len(f.AllowedValues) > 0, validate.AllowedValues},
		{len(f.Extensions) > 0, validate.FileExtension},
		{f.MaxFileSize != nil, validate.MaxFileSize},
	}
	for _, c := range constraints {
		if c.present && !validate.Allowed(f.Kind, c.kind) {
			return fmt.Errorf("constraint %s is not available for %s fields", c.kind, f.Kind)
		}
	}
	return nil
}

func translateRule(entityID string, rb *ruleBlock) (schema.ControlRule, error) {
	effect, err := schema.ParseControlType(rb.Effect)
	if err != nil {
		return schema.ControlRule{}, fmt.Errorf("entity %q: control rule %q: %w", entityID, rb.ID, err)
	}

	value := cty.NullVal(cty.DynamicPseudoType)
	if rb.Value != nil {
		value = *rb.Value
	}
	enabled := true
	if rb.Enabled != nil {
		enabled = *rb.Enabled
	}

	rule := schema.ControlRule{
		ID:        rb.ID,
		Condition: rb.Condition,
		Effect:    effect,
		Target:    rb.Target,
		Value:     value,
		Enabled:   enabled,
		Priority:  rb.Priority,
	}
	if err := rule.Validate(); err != nil {
		return schema.ControlRule{}, fmt.Errorf("entity %q: %w", entityID, err)
	}
	return rule, nil
}
