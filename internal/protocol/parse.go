package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/toolrelay/toolrelay/internal/schema"
)

// Request is a validated inbound message. Exactly one payload field is set,
// matching Type; discover carries none.
type Request struct {
	Type       Type
	Register   *RegisterTool
	Unregister *UnregisterTool
	Execute    *ExecuteTool
	Result     *ToolResult
}

// Parse decodes raw and checks the envelope shape for its type.
// Failures are returned as *Error.
func Parse(raw []byte) (Request, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Request{}, invalid("", "malformed JSON envelope: %v", err)
	}
	if env.Type == "" {
		return Request{}, invalid("", "message type is required")
	}
	if !env.Type.inbound() {
		return Request{}, invalid(env.Type, "unknown message type %q", env.Type)
	}

	req := Request{Type: env.Type}
	if env.Type == TypeDiscover {
		return req, nil
	}

	fields, err := objectFields(env.Data)
	if err != nil {
		return Request{}, invalid(env.Type, "%s: %v", env.Type, err)
	}

	switch env.Type {
	case TypeRegisterTool:
		req.Register, err = parseRegister(fields)
	case TypeUnregisterTool:
		req.Unregister, err = parseUnregister(fields)
	case TypeExecuteTool:
		req.Execute, err = parseExecute(fields)
	case TypeToolResult:
		req.Result, err = parseResult(fields)
	}
	if err != nil {
		if pe, ok := err.(*Error); ok {
			pe.Type = env.Type
		}
		return Request{}, err
	}
	return req, nil
}

func invalid(t Type, format string, args ...any) *Error {
	return &Error{Code: CodeInvalidMessage, Message: fmt.Sprintf(format, args...), Type: t}
}

func objectFields(data json.RawMessage) (map[string]json.RawMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("data is required")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("data must be an object")
	}
	return fields, nil
}

// stringField decodes a required string field. present reports whether the
// key existed at all.
func stringField(fields map[string]json.RawMessage, key string) (value string, present bool, ok bool) {
	raw, present := fields[key]
	if !present {
		return "", false, false
	}
	if err := json.Unmarshal(raw, &value); err != nil || isNull(raw) {
		return "", true, false
	}
	return value, true, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func parseRegister(fields map[string]json.RawMessage) (*RegisterTool, error) {
	name, present, ok := stringField(fields, "name")
	if !present {
		return nil, &Error{Code: CodeInvalidMessage, Message: "register_tool: name is required"}
	}
	if !ok {
		return nil, &Error{Code: CodeInvalidName, Message: "tool name must be a string"}
	}

	rawSchema, ok := fields["schema"]
	if !ok || isNull(rawSchema) {
		return nil, &Error{Code: CodeInvalidMessage, Message: "register_tool: schema is required"}
	}
	s, err := schema.Parse(rawSchema)
	if err != nil {
		return nil, &Error{Code: CodeInvalidSchema, Message: fmt.Sprintf("invalid tool schema: %v", err)}
	}

	reg := &RegisterTool{Name: name, Schema: s}
	if raw, ok := fields["description"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &reg.Description); err != nil {
			return nil, &Error{Code: CodeInvalidMessage, Message: "register_tool: description must be a string"}
		}
	}
	return reg, nil
}

func parseUnregister(fields map[string]json.RawMessage) (*UnregisterTool, error) {
	name, _, ok := stringField(fields, "name")
	if !ok {
		return nil, &Error{Code: CodeInvalidMessage, Message: "unregister_tool: name must be a string"}
	}
	return &UnregisterTool{Name: name}, nil
}

func parseExecute(fields map[string]json.RawMessage) (*ExecuteTool, error) {
	id, _, ok := stringField(fields, "executionId")
	if !ok || id == "" {
		return nil, &Error{Code: CodeInvalidMessage, Message: "execute_tool: executionId must be a non-empty string"}
	}
	name, _, ok := stringField(fields, "name")
	if !ok {
		return nil, &Error{Code: CodeInvalidMessage, Message: "execute_tool: name must be a string", ExecutionID: id}
	}

	exec := &ExecuteTool{ExecutionID: id, Name: name}
	if raw, ok := fields["args"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &exec.Args); err != nil {
			return nil, &Error{Code: CodeInvalidMessage, Message: "execute_tool: malformed args", ExecutionID: id}
		}
	}
	return exec, nil
}

func parseResult(fields map[string]json.RawMessage) (*ToolResult, error) {
	id, _, ok := stringField(fields, "executionId")
	if !ok || id == "" {
		return nil, &Error{Code: CodeInvalidMessage, Message: "tool_result: executionId must be a non-empty string"}
	}

	res := &ToolResult{ExecutionID: id}
	if raw, ok := fields["result"]; ok {
		if err := json.Unmarshal(raw, &res.Result); err != nil {
			return nil, &Error{Code: CodeInvalidMessage, Message: "tool_result: malformed result", ExecutionID: id}
		}
	}
	if raw, ok := fields["error"]; ok && !isNull(raw) {
		var body ErrorBody
		if err := json.Unmarshal(raw, &body); err != nil || body.Message == "" {
			return nil, &Error{Code: CodeInvalidMessage, Message: "tool_result: error must carry a message", ExecutionID: id}
		}
		res.Error = &body
	}
	return res, nil
}
