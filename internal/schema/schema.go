// Package schema holds the design-time model of entities, fields, control
// rules and output mappings. Everything here is an immutable value object:
// the engine reads a schema snapshot and never writes it.
package schema

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// FieldKind classifies a field definition.
type FieldKind int

const (
	KindText FieldKind = iota
	KindNumber
	KindBoolean
	KindDate
	KindFile
	KindCalculated
)

var kindNames = map[FieldKind]string{
	KindText:       "text",
	KindNumber:     "number",
	KindBoolean:    "boolean",
	KindDate:       "date",
	KindFile:       "file",
	KindCalculated: "calculated",
}

func (k FieldKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("field-kind(%d)", int(k))
}

// ParseFieldKind resolves a kind name as it appears in schema files.
func ParseFieldKind(name string) (FieldKind, error) {
	for kind, kname := range kindNames {
		if kname == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown field kind %q", name)
}

// ControlType identifies the effect a control rule applies.
type ControlType int

const (
	// ValueSet writes a value into the target field.
	ValueSet ControlType = iota
	// Visibility shows or hides the target field.
	Visibility
	// Enable enables or disables the target field.
	Enable
)

func (t ControlType) String() string {
	switch t {
	case ValueSet:
		return "value_set"
	case Visibility:
		return "visibility"
	case Enable:
		return "enable"
	}
	return fmt.Sprintf("control-type(%d)", int(t))
}

// ParseControlType resolves an effect name as it appears in schema files.
func ParseControlType(name string) (ControlType, error) {
	switch name {
	case "value_set":
		return ValueSet, nil
	case "visibility":
		return Visibility, nil
	case "enable":
		return Enable, nil
	}
	return 0, fmt.Errorf("unknown control effect %q", name)
}

// ControlRule is a conditional rule: when its condition formula evaluates
// truthy, the effect applies to the target field. Rules are design-time
// entities and are never mutated by evaluation.
type ControlRule struct {
	ID        string
	Condition string
	Effect    ControlType
	Target    string
	// Value is the effect payload. Its type is constrained by Effect:
	// Visibility and Enable require a boolean.
	Value    cty.Value
	Enabled  bool
	Priority int
}

// Validate checks the effect payload type against the control type.
func (r *ControlRule) Validate() error {
	switch r.Effect {
	case Visibility, Enable:
		if r.Value.IsNull() || r.Value.Type() != cty.Bool {
			return fmt.Errorf("control rule %q: %s effect requires a boolean value", r.ID, r.Effect)
		}
	}
	return nil
}

// OutputTarget is the document-side type an output mapping coerces to.
type OutputTarget int

const (
	TargetText OutputTarget = iota
	TargetNumber
	TargetBoolean
)

func (t OutputTarget) String() string {
	switch t {
	case TargetText:
		return "TEXT"
	case TargetNumber:
		return "NUMBER"
	case TargetBoolean:
		return "BOOLEAN"
	}
	return fmt.Sprintf("output-target(%d)", int(t))
}

// ParseOutputTarget resolves a target name as it appears in schema files.
func ParseOutputTarget(name string) (OutputTarget, error) {
	switch name {
	case "TEXT":
		return TargetText, nil
	case "NUMBER":
		return TargetNumber, nil
	case "BOOLEAN":
		return TargetBoolean, nil
	}
	return 0, fmt.Errorf("unknown output target %q", name)
}

// OutputMapping describes how a computed value is typed for document output.
type OutputMapping struct {
	Name    string
	Target  OutputTarget
	Formula string
}

// Field is a single field definition within an entity.
type Field struct {
	ID       string
	Kind     FieldKind
	Label    string
	Required bool

	// Formula is set only for calculated fields.
	Formula string

	// Validation constraints. Nil pointers mean "not constrained".
	MinLength     *int
	MaxLength     *int
	MinValue      *float64
	MaxValue      *float64
	MinDate       string
	MaxDate       string
	Pattern       string
	AllowedValues []string
	Extensions    []string
	MaxFileSize   *int64

	// Severity lowers non-required constraint violations from the default
	// ERROR. Empty means ERROR; other accepted values are "warning" and
	// "info".
	Severity string
}

// Entity is an ordered collection of fields plus the rules and output
// mappings defined over them.
type Entity struct {
	ID      string
	Fields  []*Field
	Rules   []ControlRule
	Outputs []OutputMapping
}

// Field returns the field definition with the given id.
func (e *Entity) Field(id string) (*Field, bool) {
	for _, f := range e.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return nil, false
}

// CalculatedFormulas returns fieldID -> formula for every calculated field,
// the input shape the static cycle detector works on.
func (e *Entity) CalculatedFormulas() map[string]string {
	out := make(map[string]string)
	for _, f := range e.Fields {
		if f.Kind == KindCalculated && f.Formula != "" {
			out[f.ID] = f.Formula
		}
	}
	return out
}

// RulesForTarget returns the enabled rules whose effect targets the given
// field, ordered by id for deterministic processing.
func (e *Entity) RulesForTarget(fieldID string) []ControlRule {
	var out []ControlRule
	for _, r := range e.Rules {
		if r.Enabled && r.Target == fieldID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Set is a read-only collection of entities keyed by id, as supplied by the
// schema repository for one evaluation pass.
type Set struct {
	entities map[string]*Entity
}

// NewSet builds a Set from the given entities.
func NewSet(entities ...*Entity) *Set {
	m := make(map[string]*Entity, len(entities))
	for _, e := range entities {
		m[e.ID] = e
	}
	return &Set{entities: m}
}

// Entity returns the entity with the given id.
func (s *Set) Entity(id string) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// EntityIDs returns all entity ids in sorted order.
func (s *Set) EntityIDs() []string {
	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
