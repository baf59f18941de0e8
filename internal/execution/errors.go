package execution

import "strings"

// Error codes returned by the Coordinator. They match the wire error codes.
const (
	CodeInvalidExecutionID = "INVALID_MESSAGE"
	CodeToolNotFound       = "TOOL_NOT_FOUND"
	CodeValidationFailed   = "INVALID_ARGUMENTS"
	CodeDuplicateID        = "DUPLICATE_EXECUTION_ID"
	CodeNotFound           = "EXECUTION_NOT_FOUND"
	CodeAlreadyCompleted   = "EXECUTION_ALREADY_COMPLETED"
	CodeForbidden          = "FORBIDDEN"

	// Codes used for failed invocations.
	CodeToolFailed = "TOOL_EXECUTION_FAILED"
	CodeTimeout    = "TIMEOUT"
)

// Error is a rejected Coordinator operation. The invocation table is left
// unchanged whenever an Error is returned.
type Error struct {
	Code        string
	Message     string
	ExecutionID string
	Details     []string
}

func (e *Error) Error() string {
	if len(e.Details) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Details, "; ")
}

// ErrorCode returns the wire code for e.
func (e *Error) ErrorCode() string { return e.Code }
