// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package schema

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/pdiddy/claim-analyzer/pkg/types"
)

func TestCompileKindsAndDefaults(t *testing.T) {
	compiled, err := Compile([]FieldSpec{
		{Name: "methodology", Type: "string", Description: "Study methodology"},
		{Name: "sample_size", Type: "integer", Description: "Sample size"},
		{Name: "effect_size", Type: "float", Description: "Effect size"},
		{Name: "peer_reviewed", Type: "boolean", Description: "Peer reviewed"},
		{Name: "limitations", Type: "array", Description: "Limitations"},
		{Name: "mystery", Type: "spaceship", Description: "Unknown type"},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	want := []struct {
		kind types.FieldKind
		def  any
	}{
		{types.KindString, "N/A"},
		{types.KindInteger, -1},
		{types.KindNumber, -1.0},
		{types.KindBoolean, false},
		{types.KindStringList, []string{}},
		{types.KindString, "N/A"},
	}
	for i, w := range want {
		f := compiled.Fields[i]
		if f.Kind != w.kind {
			t.Errorf("field %s: kind = %v, want %v", f.Name, f.Kind, w.kind)
		}
		if !reflect.DeepEqual(f.Default, w.def) {
			t.Errorf("field %s: default = %v, want %v", f.Name, f.Default, w.def)
		}
		if f.Description == "" {
			t.Errorf("field %s: description should carry the fallback hint", f.Name)
		}
	}
}

func TestCompileRejectsEmpty(t *testing.T) {
	if _, err := Compile(nil); err == nil {
		t.Error("Compile(nil) should fail")
	}
	if _, err := Compile([]FieldSpec{{Name: "  ", Type: "string"}}); err == nil {
		t.Error("empty field name should fail")
	}
}

func TestCompileExclusionForcesBoolean(t *testing.T) {
	compiled, err := CompileExclusion([]FieldSpec{
		{Name: "is_review", Type: "string", Description: "Is a review article"},
	})
	if err != nil {
		t.Fatalf("CompileExclusion: %v", err)
	}
	f := compiled.Fields[0]
	if f.Kind != types.KindBoolean {
		t.Errorf("exclusion field kind = %v, want boolean", f.Kind)
	}
	if !f.Exclusion {
		t.Error("exclusion flag not set")
	}
}

func TestMerge(t *testing.T) {
	excl, _ := CompileExclusion([]FieldSpec{{Name: "is_review", Description: "d"}})
	extr, _ := Compile([]FieldSpec{{Name: "sample_size", Type: "integer", Description: "d"}})

	merged := Merge(excl, extr)
	if len(merged.Fields) != 2 {
		t.Fatalf("expected 2 merged fields, got %d", len(merged.Fields))
	}
	if !merged.Fields[0].Exclusion || merged.Fields[1].Exclusion {
		t.Error("exclusion flags lost in merge")
	}

	if !Merge(nil, nil).Empty() {
		t.Error("merge of nils should be empty")
	}
}

func TestJSONSchema(t *testing.T) {
	compiled, _ := Compile([]FieldSpec{
		{Name: "notes", Type: "array", Description: "Notes"},
		{Name: "score", Type: "number", Description: "Score"},
	})
	out, err := JSONSchema(compiled)
	if err != nil {
		t.Fatalf("JSONSchema: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if doc["type"] != "object" {
		t.Errorf("type = %v", doc["type"])
	}
	if doc["additionalProperties"] != false {
		t.Error("additionalProperties should be false")
	}
	props := doc["properties"].(map[string]any)
	notes := props["notes"].(map[string]any)
	if notes["type"] != "array" {
		t.Errorf("notes type = %v", notes["type"])
	}
	if notes["items"].(map[string]any)["type"] != "string" {
		t.Error("array field should declare string items")
	}
	if len(doc["required"].([]any)) != 2 {
		t.Error("all fields should be required")
	}
}

func TestCoerce(t *testing.T) {
	compiled, _ := Compile([]FieldSpec{
		{Name: "sample_size", Type: "integer"},
		{Name: "effect", Type: "number"},
		{Name: "flagged", Type: "boolean"},
		{Name: "notes", Type: "array"},
		{Name: "method", Type: "string"},
	})

	t.Run("coerces compatible values", func(t *testing.T) {
		out := Coerce(compiled, map[string]any{
			"sample_size": "120",
			"effect":      float64(3),
			"flagged":     true,
			"notes":       []any{"a", "b"},
			"method":      "RCT",
		})
		if out["sample_size"] != 120 {
			t.Errorf("sample_size = %v", out["sample_size"])
		}
		if out["effect"] != 3.0 {
			t.Errorf("effect = %v", out["effect"])
		}
		if !reflect.DeepEqual(out["notes"], []string{"a", "b"}) {
			t.Errorf("notes = %v", out["notes"])
		}
	})

	t.Run("integral float becomes int", func(t *testing.T) {
		out := Coerce(compiled, map[string]any{"sample_size": float64(42)})
		if out["sample_size"] != 42 {
			t.Errorf("sample_size = %v", out["sample_size"])
		}
	})

	t.Run("substitutes defaults for missing and bad values", func(t *testing.T) {
		out := Coerce(compiled, map[string]any{
			"sample_size": "many",
			"flagged":     "yes",
		})
		if out["sample_size"] != -1 {
			t.Errorf("bad integer should default to -1, got %v", out["sample_size"])
		}
		if out["flagged"] != false {
			t.Errorf("bad boolean should default to false, got %v", out["flagged"])
		}
		if out["method"] != "N/A" {
			t.Errorf("missing string should default to N/A, got %v", out["method"])
		}
		if !reflect.DeepEqual(out["notes"], []string{}) {
			t.Errorf("missing array should default to empty, got %v", out["notes"])
		}
	})

	t.Run("empty response yields the schema defaults", func(t *testing.T) {
		out := Coerce(compiled, map[string]any{})
		if !reflect.DeepEqual(out, compiled.Defaults()) {
			t.Errorf("out = %v, defaults = %v", out, compiled.Defaults())
		}
	})

	t.Run("drops unknown keys", func(t *testing.T) {
		out := Coerce(compiled, map[string]any{"surprise": 1, "method": "survey"})
		if _, ok := out["surprise"]; ok {
			t.Error("unknown key should be dropped")
		}
	})
}
