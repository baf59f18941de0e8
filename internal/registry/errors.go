package registry

import "strings"

// Error codes reported by the Registry. They match the wire error codes.
const (
	CodeInvalidName   = "INVALID_NAME"
	CodeInvalidSchema = "INVALID_SCHEMA"
	CodeNotFound      = "TOOL_NOT_FOUND"
)

// Error is a rejected registry operation.
type Error struct {
	Code    string
	Message string
	Details []string
}

func newError(code, msg string) *Error { return &Error{Code: code, Message: msg} }

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}

// ErrorCode returns the wire code for e.
func (e *Error) ErrorCode() string { return e.Code }
