package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ValidateValue checks v against an already well-formed schema. v is a value
// as produced by encoding/json (nil, bool, float64, string, []any,
// map[string]any); json.Number and Go integer types are accepted as numbers.
func ValidateValue(v any, s *Schema) Result {
	var r Result
	validate(v, s, "", 0, &r)
	return r
}

func validate(v any, s *Schema, path string, depth int, r *Result) {
	if s == nil {
		return
	}
	if depth > MaxDepth {
		r.addf(path, "schema nesting exceeds maximum depth %d", MaxDepth)
		return
	}

	if !checkKind(v, s.Kind, path, r) {
		return
	}

	switch s.Kind {
	case KindObject:
		validateObject(v.(map[string]any), s, path, depth, r)
	case KindArray:
		validateArray(v.([]any), s, path, depth, r)
	case KindString:
		validateString(v.(string), s, path, r)
	case KindNumber, KindInteger:
		n, _ := toFloat64(v)
		validateNumber(n, s, path, r)
	}

	if len(s.Enum) > 0 {
		for _, allowed := range s.Enum {
			if Equal(v, allowed) {
				return
			}
		}
		listed, _ := json.Marshal(s.Enum)
		r.addf(path, "value must be one of %s", listed)
	}
}

// checkKind reports a kind mismatch and returns false when the node's
// remaining checks must be skipped.
func checkKind(v any, kind Kind, path string, r *Result) bool {
	ok := true
	switch kind {
	case KindObject:
		_, ok = v.(map[string]any)
	case KindArray:
		_, ok = v.([]any)
	case KindString:
		_, ok = v.(string)
	case KindBoolean:
		_, ok = v.(bool)
	case KindNull:
		ok = v == nil
	case KindNumber:
		_, ok = toFloat64(v)
	case KindInteger:
		n, isNum := toFloat64(v)
		ok = isNum && n == math.Trunc(n) && !math.IsInf(n, 0)
	default:
		// Unknown kinds are rejected by ValidateShape; nothing to check here.
		return true
	}
	if !ok {
		r.addf(path, "expected %s, got %s", kind, typeName(v))
	}
	return ok
}

func validateObject(obj map[string]any, s *Schema, path string, depth int, r *Result) {
	for _, req := range s.Required {
		if _, ok := obj[req]; !ok {
			r.addf(joinPath(path, req), "required property is missing")
		}
	}
	// Iterate declared properties so messages come out in schema order.
	// Undeclared keys are allowed and not inspected.
	for _, prop := range s.Properties {
		val, ok := obj[prop.Name]
		if !ok {
			continue
		}
		validate(val, prop.Schema, joinPath(path, prop.Name), depth+1, r)
	}
}

func validateArray(arr []any, s *Schema, path string, depth int, r *Result) {
	if s.MinItems != nil && len(arr) < *s.MinItems {
		r.addf(path, "array has %d items, minimum is %d", len(arr), *s.MinItems)
	}
	if s.MaxItems != nil && len(arr) > *s.MaxItems {
		r.addf(path, "array has %d items, maximum is %d", len(arr), *s.MaxItems)
	}

	if s.UniqueItems {
		for i := 1; i < len(arr); i++ {
			for j := 0; j < i; j++ {
				if Equal(arr[i], arr[j]) {
					r.addf(indexPath(path, i), "items must be unique: duplicates item %d", j)
					break
				}
			}
		}
	}

	for i, item := range arr {
		validate(item, s.Items, indexPath(path, i), depth+1, r)
	}
}

func validateString(str string, s *Schema, path string, r *Result) {
	n := utf8.RuneCountInString(str)
	if s.MinLength != nil && n < *s.MinLength {
		r.addf(path, "string length %d is less than minimum %d", n, *s.MinLength)
	}
	if s.MaxLength != nil && n > *s.MaxLength {
		r.addf(path, "string length %d exceeds maximum %d", n, *s.MaxLength)
	}

	if s.Pattern != "" {
		re, err := s.pattern()
		switch {
		case err != nil:
			r.addf(path, "invalid pattern %q: %v", s.Pattern, err)
		case !re.MatchString(str):
			r.addf(path, "string does not match pattern %q", s.Pattern)
		}
	}

	switch s.Format {
	case FormatEmail:
		// Intentionally loose: only the presence of "@" is required.
		if !strings.Contains(str, "@") {
			r.addf(path, "string is not a valid email address")
		}
	case FormatURI:
		u, err := url.Parse(str)
		if err != nil || !u.IsAbs() {
			r.addf(path, "string is not an absolute URI")
		}
	}
}

func validateNumber(n float64, s *Schema, path string, r *Result) {
	if s.Minimum != nil && n < *s.Minimum {
		r.addf(path, "value %v is less than minimum %v", n, *s.Minimum)
	}
	if s.Maximum != nil && n > *s.Maximum {
		r.addf(path, "value %v exceeds maximum %v", n, *s.Maximum)
	}
	// Float remainder: 0.3 is not a multiple of 0.1 here.
	if s.MultipleOf != nil && *s.MultipleOf > 0 && math.Mod(n, *s.MultipleOf) != 0 {
		r.addf(path, "value %v is not a multiple of %v", n, *s.MultipleOf)
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	if _, ok := toFloat64(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
