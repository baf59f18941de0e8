// Package schema implements the structural, JSON-Schema-like description used
// to describe tool arguments, together with validators for schema shape and
// for concrete values.
//
// Schemas are plain trees. A schema graph that refers back to itself (only
// constructible from Go, never from JSON) is a caller error; validation stops
// at MaxDepth instead of looping.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

// MaxDepth bounds recursion through properties and items.
const MaxDepth = 64

// Kind is the type tag of a schema node.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
	KindNull    Kind = "null"
	KindArray   Kind = "array"
	KindObject  Kind = "object"
)

// Known reports whether k is one of the supported kinds.
func (k Kind) Known() bool {
	switch k {
	case KindString, KindNumber, KindInteger, KindBoolean, KindNull, KindArray, KindObject:
		return true
	}
	return false
}

// UnmarshalJSON rejects union types such as ["string","null"]: a node has
// exactly one kind.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("type must be a single kind name, got %s", bytes.TrimSpace(b))
	}
	*k = Kind(s)
	return nil
}

// Format is a named string format.
type Format string

const (
	FormatEmail Format = "email"
	FormatURI   Format = "uri"
)

// Schema describes the expected structure of a value.
type Schema struct {
	Kind        Kind   `json:"type"`
	Description string `json:"description,omitempty"`

	// object
	Properties Properties `json:"properties,omitempty"`
	Required   []string   `json:"required,omitempty"`

	// array
	Items       *Schema `json:"items,omitempty"`
	MinItems    *int    `json:"minItems,omitempty"`
	MaxItems    *int    `json:"maxItems,omitempty"`
	UniqueItems bool    `json:"uniqueItems,omitempty"`

	// number / integer
	Minimum    *float64 `json:"minimum,omitempty"`
	Maximum    *float64 `json:"maximum,omitempty"`
	MultipleOf *float64 `json:"multipleOf,omitempty"`

	// string
	MinLength *int   `json:"minLength,omitempty"`
	MaxLength *int   `json:"maxLength,omitempty"`
	Pattern   string `json:"pattern,omitempty"`
	Format    Format `json:"format,omitempty"`

	Enum []any `json:"enum,omitempty"`

	// re is Pattern compiled at decode time.
	re *regexp.Regexp
}

// UnmarshalJSON decodes a schema node and compiles its pattern once, so
// validation never recompiles it. An invalid pattern is left for ValidateShape.
func (s *Schema) UnmarshalJSON(data []byte) error {
	type plain Schema
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Schema(v)
	if s.Pattern != "" {
		s.re, _ = regexp.Compile(s.Pattern)
	}
	return nil
}

// pattern returns the compiled Pattern. Schemas built in code, or whose
// Pattern changed after decoding, are compiled on demand.
func (s *Schema) pattern() (*regexp.Regexp, error) {
	if s.re != nil && s.re.String() == s.Pattern {
		return s.re, nil
	}
	return regexp.Compile(s.Pattern)
}

// Parse decodes a schema document.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &s, nil
}

// Property is one named entry of an object schema.
type Property struct {
	Name   string
	Schema *Schema
}

// Properties is an ordered name→schema mapping. JSON documents keep their key
// order on decode and encode.
type Properties []Property

// Get returns the schema declared for name.
func (p Properties) Get(name string) (*Schema, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Schema, true
		}
	}
	return nil, false
}

// Names returns the declared property names in order.
func (p Properties) Names() []string {
	names := make([]string, len(p))
	for i, prop := range p {
		names[i] = prop.Name
	}
	return names
}

// Set adds or replaces the schema for name, keeping the original position on
// replace.
func (p *Properties) Set(name string, s *Schema) {
	for i := range *p {
		if (*p)[i].Name == name {
			(*p)[i].Schema = s
			return
		}
	}
	*p = append(*p, Property{Name: name, Schema: s})
}

func (p *Properties) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("properties must be an object")
	}

	var out Properties
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name := tok.(string)
		var s Schema
		if err := dec.Decode(&s); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
		out.Set(name, &s)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prop := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(prop.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(prop.Schema)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ---- builders --------------------------------------------------------------

// Object returns an object schema with no properties.
func Object() *Schema { return &Schema{Kind: KindObject} }

// String returns a string schema.
func String() *Schema { return &Schema{Kind: KindString} }

// Number returns a number schema.
func Number() *Schema { return &Schema{Kind: KindNumber} }

// Integer returns an integer schema.
func Integer() *Schema { return &Schema{Kind: KindInteger} }

// Boolean returns a boolean schema.
func Boolean() *Schema { return &Schema{Kind: KindBoolean} }

// ArrayOf returns an array schema with the given item schema.
func ArrayOf(items *Schema) *Schema { return &Schema{Kind: KindArray, Items: items} }

// WithProperty declares a property and returns s for chaining.
func (s *Schema) WithProperty(name string, prop *Schema) *Schema {
	s.Properties.Set(name, prop)
	return s
}

// WithRequired appends required property names and returns s for chaining.
func (s *Schema) WithRequired(names ...string) *Schema {
	s.Required = append(s.Required, names...)
	return s
}
