package schema

import (
	"encoding/json"
	"strings"
	"testing"
)

func decode(t *testing.T, doc string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		t.Fatalf("decode %s: %v", doc, err)
	}
	return v
}

func TestValidateValue_KindMismatchShortCircuits(t *testing.T) {
	s := &Schema{Kind: KindString, MinLength: intp(3), Enum: []any{"abc"}}

	r := ValidateValue(42.0, s)
	if len(r.Errors) != 1 {
		t.Fatalf("expected a single kind error, got %v", r.Errors)
	}
	if r.Errors[0] != "expected string, got number" {
		t.Errorf("unexpected message %q", r.Errors[0])
	}
}

func TestValidateValue_ObjectRequiredAndOpenWorld(t *testing.T) {
	s := Object().
		WithProperty("x", String()).
		WithProperty("n", Integer()).
		WithRequired("x")

	if r := ValidateValue(decode(t, `{"x":"hi","extra":[1,2,3]}`), s); !r.Valid() {
		t.Fatalf("expected undeclared keys to be ignored, got %v", r.Errors)
	}

	r := ValidateValue(decode(t, `{"n":1.5}`), s)
	if len(r.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %v", r.Errors)
	}
	if r.Errors[0] != "x: required property is missing" {
		t.Errorf("unexpected first error %q", r.Errors[0])
	}
	if r.Errors[1] != "n: expected integer, got number" {
		t.Errorf("unexpected second error %q", r.Errors[1])
	}
}

func TestValidateValue_NestedPaths(t *testing.T) {
	s := Object().WithProperty("users", ArrayOf(Object().WithProperty("email", &Schema{Kind: KindString, Format: FormatEmail})))

	r := ValidateValue(decode(t, `{"users":[{"email":"a@b"},{"email":"nope"}]}`), s)
	if len(r.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", r.Errors)
	}
	if !strings.HasPrefix(r.Errors[0], "users[1].email:") {
		t.Errorf("expected nested path, got %q", r.Errors[0])
	}
}

func TestValidateValue_UniqueItems(t *testing.T) {
	s := &Schema{Kind: KindArray, Items: Number(), UniqueItems: true}

	r := ValidateValue(decode(t, `[1,1]`), s)
	if len(r.Errors) != 1 || !strings.Contains(r.Errors[0], "must be unique") {
		t.Fatalf("expected exactly one uniqueness error, got %v", r.Errors)
	}
	if r := ValidateValue(decode(t, `[1,2]`), s); !r.Valid() {
		t.Fatalf("expected distinct items to pass, got %v", r.Errors)
	}
}

func TestValidateValue_UniqueItemsDeepEquality(t *testing.T) {
	s := &Schema{Kind: KindArray, Items: Object(), UniqueItems: true}

	r := ValidateValue(decode(t, `[{"a":[1,{"b":true}]},{"a":[1,{"b":true}]}]`), s)
	if len(r.Errors) != 1 {
		t.Fatalf("expected structurally equal objects to collide, got %v", r.Errors)
	}
	if r := ValidateValue(decode(t, `[{"a":1},{"a":2}]`), s); !r.Valid() {
		t.Fatalf("expected different objects to pass, got %v", r.Errors)
	}
}

func TestValidateValue_ArrayBounds(t *testing.T) {
	s := &Schema{Kind: KindArray, Items: String(), MinItems: intp(2), MaxItems: intp(3)}

	if r := ValidateValue(decode(t, `["a"]`), s); len(r.Errors) != 1 {
		t.Errorf("expected minItems error, got %v", r.Errors)
	}
	if r := ValidateValue(decode(t, `["a","b","c","d"]`), s); len(r.Errors) != 1 {
		t.Errorf("expected maxItems error, got %v", r.Errors)
	}
	if r := ValidateValue(decode(t, `["a",2]`), s); len(r.Errors) != 1 || !strings.HasPrefix(r.Errors[0], "[1]") {
		t.Errorf("expected item error at [1], got %v", r.Errors)
	}
}

func TestValidateValue_StringLengthCountsCodepoints(t *testing.T) {
	s := &Schema{Kind: KindString, MinLength: intp(3), MaxLength: intp(3)}

	// "héé" is 3 codepoints but 5 bytes.
	if r := ValidateValue("héé", s); !r.Valid() {
		t.Fatalf("expected codepoint length 3 to pass, got %v", r.Errors)
	}
	if r := ValidateValue("日本", s); r.Valid() {
		t.Fatal("expected 2-codepoint string to fail minLength 3")
	}
}

func TestValidateValue_PatternIsUnanchored(t *testing.T) {
	s := &Schema{Kind: KindString, Pattern: "[0-9]+"}

	if r := ValidateValue("abc123def", s); !r.Valid() {
		t.Fatalf("expected partial match to pass, got %v", r.Errors)
	}
	if r := ValidateValue("abc", s); r.Valid() {
		t.Fatal("expected non-matching string to fail")
	}
}

func TestParse_CompilesPatternsOnce(t *testing.T) {
	s, err := Parse([]byte(`{"type":"object","properties":{
		"tags":{"type":"array","items":{"type":"string","pattern":"^[a-z]+$"}}}}`))
	if err != nil {
		t.Fatal(err)
	}
	tags, _ := s.Properties.Get("tags")
	if tags.Items.re == nil {
		t.Fatal("expected the nested pattern to be compiled on decode")
	}
	if r := ValidateValue(decode(t, `{"tags":["ok","Bad"]}`), s); len(r.Errors) != 1 || !strings.HasPrefix(r.Errors[0], "tags[1]") {
		t.Fatalf("expected one pattern error at tags[1], got %v", r.Errors)
	}

	tags.Items.Pattern = "^[A-Z]+$"
	if r := ValidateValue("Bad", tags.Items); r.Valid() {
		t.Error("expected an edited pattern to take effect")
	}
	if r := ValidateValue("OK", tags.Items); !r.Valid() {
		t.Errorf("expected OK to match the edited pattern, got %v", r.Errors)
	}
}

func TestParse_InvalidPatternReportedByValidation(t *testing.T) {
	s, err := Parse([]byte(`{"type":"string","pattern":"(["}`))
	if err != nil {
		t.Fatalf("expected decode to defer pattern errors, got %v", err)
	}
	if r := ValidateShape(s); r.Valid() {
		t.Error("expected shape validation to reject the pattern")
	}
	if r := ValidateValue("x", s); r.Valid() {
		t.Error("expected value validation to report the pattern")
	}
}

func TestValidateValue_Formats(t *testing.T) {
	email := &Schema{Kind: KindString, Format: FormatEmail}
	uri := &Schema{Kind: KindString, Format: FormatURI}

	cases := []struct {
		name  string
		s     *Schema
		value string
		valid bool
	}{
		{"email with at", email, "x@y", true},
		{"email without at", email, "xy.com", false},
		{"absolute uri", uri, "https://example.com/a?b=c", true},
		{"urn uri", uri, "urn:isbn:0451450523", true},
		{"relative uri", uri, "/just/a/path", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := ValidateValue(tc.value, tc.s)
			if r.Valid() != tc.valid {
				t.Errorf("ValidateValue(%q) valid=%v, want %v (%v)", tc.value, r.Valid(), tc.valid, r.Errors)
			}
		})
	}
}

func TestValidateValue_NumericBounds(t *testing.T) {
	s := &Schema{Kind: KindNumber, Minimum: floatp(1), Maximum: floatp(10), MultipleOf: floatp(2.5)}

	for _, ok := range []float64{2.5, 5, 10} {
		if r := ValidateValue(ok, s); !r.Valid() {
			t.Errorf("expected %v to pass, got %v", ok, r.Errors)
		}
	}
	if r := ValidateValue(0.0, s); len(r.Errors) != 1 {
		t.Errorf("expected only minimum error for 0 (a multiple of 2.5), got %v", r.Errors)
	}
	if r := ValidateValue(11.0, s); len(r.Errors) != 2 {
		t.Errorf("expected maximum and multipleOf errors for 11, got %v", r.Errors)
	}
}

// multipleOf uses float remainder, so decimal divisors are inexact.
func TestValidateValue_MultipleOfFloatRemainder(t *testing.T) {
	s := &Schema{Kind: KindNumber, MultipleOf: floatp(0.1)}
	if r := ValidateValue(0.3, s); r.Valid() {
		t.Error("expected 0.3 to fail multipleOf 0.1 under float remainder")
	}
	exact := &Schema{Kind: KindNumber, MultipleOf: floatp(0.25)}
	if r := ValidateValue(0.75, exact); !r.Valid() {
		t.Errorf("expected 0.75 to pass multipleOf 0.25, got %v", r.Errors)
	}
}

func TestValidateValue_IntegerAcceptsWholeFloats(t *testing.T) {
	if r := ValidateValue(3.0, Integer()); !r.Valid() {
		t.Fatalf("expected 3.0 to be an integer, got %v", r.Errors)
	}
	if r := ValidateValue(json.Number("7"), Integer()); !r.Valid() {
		t.Fatalf("expected json.Number to be accepted, got %v", r.Errors)
	}
}

func TestValidateValue_EnumAfterStructure(t *testing.T) {
	s := &Schema{Kind: KindString, MaxLength: intp(1), Enum: []any{"a", "b"}}

	r := ValidateValue("zz", s)
	if len(r.Errors) != 2 {
		t.Fatalf("expected length and enum errors, got %v", r.Errors)
	}
	if !strings.Contains(r.Errors[1], `one of ["a","b"]`) {
		t.Errorf("expected enum error last, got %q", r.Errors[1])
	}
}

func TestValidateValue_NullAndBoolean(t *testing.T) {
	if r := ValidateValue(nil, &Schema{Kind: KindNull}); !r.Valid() {
		t.Errorf("expected nil to match null, got %v", r.Errors)
	}
	if r := ValidateValue(false, &Schema{Kind: KindNull}); r.Valid() {
		t.Error("expected false to fail null")
	}
	if r := ValidateValue(true, Boolean()); !r.Valid() {
		t.Errorf("expected true to match boolean, got %v", r.Errors)
	}
}

func TestResult_Err(t *testing.T) {
	if err := (Result{}).Err(); err != nil {
		t.Fatalf("expected nil error for valid result, got %v", err)
	}

	err := Result{Errors: []string{"a", "b"}}.Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if msgs := Messages(err); len(msgs) != 2 {
		t.Errorf("expected 2 messages, got %v", msgs)
	}
	if !strings.Contains(err.Error(), "2 errors") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestEqual(t *testing.T) {
	if !Equal(1, 1.0) {
		t.Error("expected 1 == 1.0")
	}
	if Equal("1", 1.0) {
		t.Error("expected string and number to differ")
	}
	if Equal(map[string]any{"a": 1.0}, map[string]any{"b": 1.0}) {
		t.Error("expected maps with different keys to differ")
	}
	if !Equal([]any{nil, true}, []any{nil, true}) {
		t.Error("expected equal slices")
	}
}
