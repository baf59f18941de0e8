package schema

import (
	"strings"
	"testing"
)

func intp(n int) *int { return &n }

func floatp(f float64) *float64 { return &f }

func mustParse(t *testing.T, doc string) *Schema {
	t.Helper()
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse(%s): %v", doc, err)
	}
	return s
}

func TestValidateShape_Valid(t *testing.T) {
	s := mustParse(t, `{
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1, "pattern": "^[a-z]+$"},
			"tags": {"type": "array", "items": {"type": "string"}, "uniqueItems": true},
			"count": {"type": "integer", "minimum": 0, "maximum": 10, "multipleOf": 2}
		},
		"required": ["name"]
	}`)

	if r := ValidateShape(s); !r.Valid() {
		t.Fatalf("expected valid schema, got %v", r.Errors)
	}
}

func TestValidateShape_ArrayWithoutItems(t *testing.T) {
	r := ValidateShape(&Schema{Kind: KindArray, MinItems: intp(1)})
	if len(r.Errors) != 1 {
		t.Fatalf("expected exactly 1 error, got %d: %v", len(r.Errors), r.Errors)
	}
	if !strings.Contains(r.Errors[0], "items") {
		t.Errorf("expected error about items, got %q", r.Errors[0])
	}
}

func TestValidateShape_CollectsAllErrors(t *testing.T) {
	s := &Schema{
		Kind:     KindObject,
		Required: []string{"missing"},
	}
	s.WithProperty("list", &Schema{Kind: KindArray})
	s.WithProperty("word", &Schema{Kind: KindString, MinLength: intp(5), MaxLength: intp(2), Pattern: "("})
	s.WithProperty("odd", &Schema{Kind: "tuple"})

	r := ValidateShape(s)
	if len(r.Errors) != 5 {
		t.Fatalf("expected 5 errors, got %d: %v", len(r.Errors), r.Errors)
	}

	wantFragments := []string{
		`required property "missing"`,
		"properties.list: array schema must declare items",
		"properties.word: minLength 5 is greater than maxLength 2",
		"properties.word: invalid pattern",
		`properties.odd: unknown type "tuple"`,
	}
	for i, frag := range wantFragments {
		if !strings.Contains(r.Errors[i], frag) {
			t.Errorf("error %d: expected %q in %q", i, frag, r.Errors[i])
		}
	}
}

func TestValidateShape_MissingKind(t *testing.T) {
	r := ValidateShape(mustParse(t, `{"description": "no type"}`))
	if len(r.Errors) != 1 || r.Errors[0] != "type is required" {
		t.Fatalf("unexpected errors: %v", r.Errors)
	}
}

func TestValidateShape_NumericBounds(t *testing.T) {
	r := ValidateShape(&Schema{Kind: KindNumber, Minimum: floatp(5), Maximum: floatp(1), MultipleOf: floatp(0)})
	if len(r.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", r.Errors)
	}
}

func TestValidateShape_UnknownFormat(t *testing.T) {
	r := ValidateShape(&Schema{Kind: KindString, Format: "ipv4"})
	if r.Valid() {
		t.Fatal("expected unknown format to be rejected")
	}
}

func TestValidateShape_DepthCeiling(t *testing.T) {
	s := &Schema{Kind: KindArray}
	s.Items = s // cyclic

	r := ValidateShape(s)
	if r.Valid() {
		t.Fatal("expected depth error for cyclic schema")
	}
	if !strings.Contains(r.Errors[len(r.Errors)-1], "maximum depth") {
		t.Errorf("expected depth error, got %v", r.Errors)
	}
}

func TestValidateToolSchema_RequiresObject(t *testing.T) {
	r := ValidateToolSchema(String())
	if r.Valid() {
		t.Fatal("expected non-object tool schema to be rejected")
	}
	if r := ValidateToolSchema(nil); r.Valid() {
		t.Fatal("expected nil tool schema to be rejected")
	}
	if r := ValidateToolSchema(Object()); !r.Valid() {
		t.Fatalf("expected empty object schema to be valid, got %v", r.Errors)
	}
}

func TestParse_UnionTypeRejected(t *testing.T) {
	if _, err := Parse([]byte(`{"type": ["string", "null"]}`)); err == nil {
		t.Fatal("expected union type to fail decoding")
	}
}

func TestProperties_PreserveOrder(t *testing.T) {
	s := mustParse(t, `{"type":"object","properties":{"zeta":{"type":"string"},"alpha":{"type":"number"},"mid":{"type":"boolean"}}}`)

	got := strings.Join(s.Properties.Names(), ",")
	if got != "zeta,alpha,mid" {
		t.Fatalf("expected declaration order, got %s", got)
	}

	out, err := s.Properties.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Index(string(out), "zeta") > strings.Index(string(out), "alpha") {
		t.Errorf("marshalled order changed: %s", out)
	}
}
