// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// FieldKind enumerates the value kinds a compiled schema field can take.
type FieldKind string

const (
	KindString     FieldKind = "string"
	KindInteger    FieldKind = "integer"
	KindNumber     FieldKind = "number"
	KindBoolean    FieldKind = "boolean"
	KindStringList FieldKind = "array"
)

// SchemaField describes one field of a compiled schema: its kind, the
// description shown to the language model (including the fallback hint),
// and the default used when the model omits or mangles the value.
type SchemaField struct {
	Name        string    `json:"name" yaml:"name"`
	Kind        FieldKind `json:"kind" yaml:"kind"`
	Description string    `json:"description" yaml:"description"`
	Default     any       `json:"default" yaml:"default"`

	// Exclusion marks a boolean field whose true value drops the paper.
	Exclusion bool `json:"exclusion,omitempty" yaml:"exclusion,omitempty"`
}

// CompiledSchema is an ordered field descriptor compiled from a
// caller-supplied field map. Order is preserved because prompt stability
// depends on field order.
type CompiledSchema struct {
	Fields []SchemaField `json:"fields" yaml:"fields"`
}

// Empty reports whether the schema has no fields.
func (s *CompiledSchema) Empty() bool {
	return s == nil || len(s.Fields) == 0
}

// Defaults returns a field-name to default-value map for the schema.
func (s *CompiledSchema) Defaults() map[string]any {
	if s == nil {
		return nil
	}
	out := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		out[f.Name] = f.Default
	}
	return out
}
