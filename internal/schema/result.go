package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Result accumulates validation messages. The zero value is a passing result.
type Result struct {
	Errors []string
}

// Valid reports whether no violations were recorded.
func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Err returns nil for a valid result, otherwise an error listing every message.
func (r Result) Err() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

func (r *Result) addf(path, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if path != "" {
		msg = path + ": " + msg
	}
	r.Errors = append(r.Errors, msg)
}

// ValidationError is the error form of a failed Result.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return e.Errors[0]
	}
	return fmt.Sprintf("validation failed with %d errors: %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

// Messages extracts the individual messages from err when it wraps a
// ValidationError.
func Messages(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Errors
	}
	return nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}

func indexPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}
