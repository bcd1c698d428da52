// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package schema compiles caller-supplied field maps into typed record
// descriptors. The compiled descriptor serves both prompt generation (as
// an embedded JSON schema) and validation of language-model output.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/pdiddy/claim-analyzer/pkg/types"
)

// FieldSpec is one entry of a caller-supplied field map. Specs are ordered;
// the compiled schema preserves that order.
type FieldSpec struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
}

// Compile converts an ordered field map into a CompiledSchema. Each field
// gets a kind, a description suffixed with the fallback hint, and a
// default. Unrecognized type names compile as string.
func Compile(specs []FieldSpec) (*types.CompiledSchema, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("schema has no fields")
	}
	compiled := &types.CompiledSchema{Fields: make([]types.SchemaField, 0, len(specs))}
	for _, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			return nil, fmt.Errorf("schema field with empty name")
		}
		field := types.SchemaField{Name: name}
		switch strings.ToLower(strings.TrimSpace(spec.Type)) {
		case "integer", "int":
			field.Kind = types.KindInteger
			field.Description = spec.Description + " (Use -1 if unknown)"
			field.Default = -1
		case "number", "float":
			field.Kind = types.KindNumber
			field.Description = spec.Description + " (Use -1.0 if unknown)"
			field.Default = -1.0
		case "boolean", "bool":
			field.Kind = types.KindBoolean
			field.Description = spec.Description + " (Must be true/false)"
			field.Default = false
		case "array", "list":
			field.Kind = types.KindStringList
			field.Description = spec.Description + " (List of strings, empty if none)"
			field.Default = []string{}
		default:
			field.Kind = types.KindString
			field.Description = spec.Description + " (String, use 'N/A' if unknown)"
			field.Default = "N/A"
		}
		compiled.Fields = append(compiled.Fields, field)
	}
	return compiled, nil
}

// CompileExclusion compiles an exclusion field map. Exclusion fields are
// constrained to boolean kind regardless of the declared type.
func CompileExclusion(specs []FieldSpec) (*types.CompiledSchema, error) {
	forced := make([]FieldSpec, len(specs))
	for i, spec := range specs {
		forced[i] = FieldSpec{Name: spec.Name, Type: "boolean", Description: spec.Description}
	}
	compiled, err := Compile(forced)
	if err != nil {
		return nil, err
	}
	for i := range compiled.Fields {
		compiled.Fields[i].Exclusion = true
	}
	return compiled, nil
}

// Merge concatenates an exclusion schema and an extraction schema into a
// combined descriptor. Either argument may be nil.
func Merge(exclusion, extraction *types.CompiledSchema) *types.CompiledSchema {
	merged := &types.CompiledSchema{}
	if exclusion != nil {
		merged.Fields = append(merged.Fields, exclusion.Fields...)
	}
	if extraction != nil {
		merged.Fields = append(merged.Fields, extraction.Fields...)
	}
	return merged
}

// jsonSchemaProperty is the per-field entry of the JSON-schema prompt block.
type jsonSchemaProperty struct {
	Type        string              `json:"type"`
	Description string              `json:"description"`
	Items       *jsonSchemaProperty `json:"items,omitempty"`
}

// jsonSchemaDoc is the object-level JSON-schema prompt block.
type jsonSchemaDoc struct {
	Type                 string                        `json:"type"`
	Properties           map[string]jsonSchemaProperty `json:"properties"`
	Required             []string                      `json:"required"`
	AdditionalProperties bool                          `json:"additionalProperties"`
}

// JSONSchema renders the compiled schema as a JSON-schema document for
// embedding in prompts. Field order is reflected in the required list;
// the properties map key order is not significant to the model.
func JSONSchema(s *types.CompiledSchema) (string, error) {
	doc := jsonSchemaDoc{
		Type:       "object",
		Properties: make(map[string]jsonSchemaProperty, len(s.Fields)),
	}
	for _, f := range s.Fields {
		prop := jsonSchemaProperty{Type: string(f.Kind), Description: f.Description}
		if f.Kind == types.KindStringList {
			prop.Items = &jsonSchemaProperty{Type: "string"}
		}
		doc.Properties[f.Name] = prop
		doc.Required = append(doc.Required, f.Name)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshaling schema: %w", err)
	}
	return string(data), nil
}

// Coerce validates a decoded model response against the schema, coercing
// where safe and substituting the field default otherwise. Numeric strings
// coerce to integer/number; JSON numbers coerce to integer when integral.
// Missing fields take their defaults. Unknown keys are dropped.
func Coerce(s *types.CompiledSchema, raw map[string]any) map[string]any {
	out := s.Defaults()
	for _, f := range s.Fields {
		value, ok := raw[f.Name]
		if !ok {
			continue
		}
		if coerced, ok := coerceValue(f.Kind, value); ok {
			out[f.Name] = coerced
		}
	}
	return out
}

func coerceValue(kind types.FieldKind, value any) (any, bool) {
	switch kind {
	case types.KindString:
		if s, ok := value.(string); ok {
			return s, true
		}
	case types.KindBoolean:
		if b, ok := value.(bool); ok {
			return b, true
		}
	case types.KindInteger:
		switch v := value.(type) {
		case float64:
			if v == float64(int(v)) {
				return int(v), true
			}
		case int:
			return v, true
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return n, true
			}
		}
	case types.KindNumber:
		switch v := value.(type) {
		case float64:
			return v, true
		case int:
			return float64(v), true
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return n, true
			}
		}
	case types.KindStringList:
		switch v := value.(type) {
		case []string:
			return v, true
		case []any:
			list := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return nil, false
				}
				list = append(list, s)
			}
			return list, true
		}
	}
	return nil, false
}
