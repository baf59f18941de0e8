package schema

import (
	"slices"
)

// ValidateShape reports every well-formedness violation in s and its
// descendants.
func ValidateShape(s *Schema) Result {
	var r Result
	checkShape(s, "", 0, &r)
	return r
}

// ValidateToolSchema is ValidateShape plus the rule that a tool's argument
// schema must describe an object.
func ValidateToolSchema(s *Schema) Result {
	if s == nil {
		return Result{Errors: []string{"schema is required"}}
	}
	r := ValidateShape(s)
	if s.Kind != "" && s.Kind != KindObject {
		r.addf("", "tool schema must have type %q, got %q", KindObject, s.Kind)
	}
	return r
}

func checkShape(s *Schema, path string, depth int, r *Result) {
	if depth > MaxDepth {
		r.addf(path, "schema nesting exceeds maximum depth %d", MaxDepth)
		return
	}
	if s == nil {
		r.addf(path, "schema is null")
		return
	}

	switch {
	case s.Kind == "":
		r.addf(path, "type is required")
	case !s.Kind.Known():
		r.addf(path, "unknown type %q", s.Kind)
	}

	switch s.Kind {
	case KindObject:
		names := s.Properties.Names()
		for _, req := range s.Required {
			if !slices.Contains(names, req) {
				r.addf(path, "required property %q is not declared in properties", req)
			}
		}
		for _, prop := range s.Properties {
			checkShape(prop.Schema, joinPath(joinPath(path, "properties"), prop.Name), depth+1, r)
		}

	case KindArray:
		if s.Items == nil {
			r.addf(path, "array schema must declare items")
		} else {
			checkShape(s.Items, joinPath(path, "items"), depth+1, r)
		}
		checkBounds(path, "minItems", "maxItems", s.MinItems, s.MaxItems, r)

	case KindString:
		checkBounds(path, "minLength", "maxLength", s.MinLength, s.MaxLength, r)
		if s.Pattern != "" {
			if _, err := s.pattern(); err != nil {
				r.addf(path, "invalid pattern %q: %v", s.Pattern, err)
			}
		}
		switch s.Format {
		case "", FormatEmail, FormatURI:
		default:
			r.addf(path, "unknown format %q", s.Format)
		}

	case KindNumber, KindInteger:
		if s.Minimum != nil && s.Maximum != nil && *s.Minimum > *s.Maximum {
			r.addf(path, "minimum %v is greater than maximum %v", *s.Minimum, *s.Maximum)
		}
		if s.MultipleOf != nil && *s.MultipleOf <= 0 {
			r.addf(path, "multipleOf must be greater than 0, got %v", *s.MultipleOf)
		}
	}
}

func checkBounds(path, minName, maxName string, lo, hi *int, r *Result) {
	if lo != nil && *lo < 0 {
		r.addf(path, "%s must not be negative", minName)
	}
	if hi != nil && *hi < 0 {
		r.addf(path, "%s must not be negative", maxName)
	}
	if lo != nil && hi != nil && *lo > *hi {
		r.addf(path, "%s %d is greater than %s %d", minName, *lo, maxName, *hi)
	}
}
