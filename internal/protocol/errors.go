package protocol

import "errors"

// Wire error codes.
const (
	CodeInvalidName               = "INVALID_NAME"
	CodeInvalidSchema             = "INVALID_SCHEMA"
	CodeInvalidArguments          = "INVALID_ARGUMENTS"
	CodeInvalidMessage            = "INVALID_MESSAGE"
	CodeToolNotFound              = "TOOL_NOT_FOUND"
	CodeToolExecutionFailed       = "TOOL_EXECUTION_FAILED"
	CodeExecutionNotFound         = "EXECUTION_NOT_FOUND"
	CodeExecutionAlreadyCompleted = "EXECUTION_ALREADY_COMPLETED"
	CodeDuplicateExecutionID      = "DUPLICATE_EXECUTION_ID"
	CodeTimeout                   = "TIMEOUT"
	CodeRateLimited               = "RATE_LIMITED"
	CodeForbidden                 = "FORBIDDEN"
	CodeServerError               = "SERVER_ERROR"
)

var knownCodes = map[string]bool{
	CodeInvalidName: true, CodeInvalidSchema: true, CodeInvalidArguments: true,
	CodeInvalidMessage: true, CodeToolNotFound: true, CodeToolExecutionFailed: true,
	CodeExecutionNotFound: true, CodeExecutionAlreadyCompleted: true,
	CodeDuplicateExecutionID: true, CodeTimeout: true, CodeRateLimited: true,
	CodeForbidden: true, CodeServerError: true,
}

// KnownCode reports whether code is one of the relay's own wire codes.
// Providers may fail executions with codes of their choosing.
func KnownCode(code string) bool { return knownCodes[code] }

// Error is a message that failed envelope validation.
type Error struct {
	Code        string
	Message     string
	Type        Type   // set when the envelope type was readable
	ExecutionID string // set when the payload carried one
}

func (e *Error) Error() string { return e.Message }

func (e *Error) ErrorCode() string { return e.Code }

// Body converts e into a wire error body.
func (e *Error) Body() *ErrorBody {
	return &ErrorBody{Code: e.Code, Message: e.Message, ExecutionID: e.ExecutionID}
}

type coder interface {
	ErrorCode() string
}

// CodeOf returns the wire code carried by err, or SERVER_ERROR.
func CodeOf(err error) string {
	var c coder
	if errors.As(err, &c) {
		if code := c.ErrorCode(); code != "" {
			return code
		}
	}
	return CodeServerError
}
