// Package protocol defines the JSON messages exchanged with peers.
//
// Every WebSocket text message carries one envelope:
//
//	{ "type": "execute_tool", "data": { "executionId": "…", "name": "echo", "args": {…} } }
//	{ "type": "error", "error": { "code": "TOOL_NOT_FOUND", "message": "…", "executionId": "…" } }
package protocol

import (
	"encoding/json"
	"time"

	"github.com/toolrelay/toolrelay/internal/schema"
)

// Type is the kind of an envelope.
type Type string

const (
	TypeDiscover               Type = "discover"
	TypeDiscoverResponse       Type = "discover_response"
	TypeRegisterTool           Type = "register_tool"
	TypeRegisterToolResponse   Type = "register_tool_response"
	TypeUnregisterTool         Type = "unregister_tool"
	TypeUnregisterToolResponse Type = "unregister_tool_response"
	TypeExecuteTool            Type = "execute_tool"
	TypeExecuteToolResponse    Type = "execute_tool_response"
	TypeExecutionStatus        Type = "execution_status"
	TypeInvokeTool             Type = "invoke_tool"
	TypeToolResult             Type = "tool_result"
	TypeError                  Type = "error"
)

// inbound reports whether peers may send t.
func (t Type) inbound() bool {
	switch t {
	case TypeDiscover, TypeRegisterTool, TypeUnregisterTool, TypeExecuteTool, TypeToolResult:
		return true
	}
	return false
}

// Envelope is the outer shape of every message.
type Envelope struct {
	Type  Type            `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody is the payload of error envelopes and failed responses.
type ErrorBody struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	ExecutionID string `json:"executionId,omitempty"`
}

// Message is an outbound envelope before encoding.
type Message struct {
	Type  Type       `json:"type"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// Encode marshals m into a wire message.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// ErrorMessage builds an error envelope.
func ErrorMessage(code, message, executionID string) Message {
	return Message{Type: TypeError, Error: &ErrorBody{Code: code, Message: message, ExecutionID: executionID}}
}

// ─── Payloads ──────────────────────────────────────────────────────────────

type ServerInfo struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

type ToolInfo struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Schema       *schema.Schema `json:"schema"`
	RegisteredAt time.Time      `json:"registeredAt"`
	Provider     string         `json:"provider,omitempty"`
}

type DiscoverResponse struct {
	Server ServerInfo `json:"server"`
	Tools  []ToolInfo `json:"tools"`
}

type RegisterTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Schema      *schema.Schema `json:"schema"`
}

type RegisterToolResponse struct {
	Success bool       `json:"success"`
	Tool    *ToolInfo  `json:"tool,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type UnregisterTool struct {
	Name string `json:"name"`
}

type UnregisterToolResponse struct {
	Success bool       `json:"success"`
	Name    string     `json:"name"`
	Error   *ErrorBody `json:"error,omitempty"`
}

type ExecuteTool struct {
	ExecutionID string `json:"executionId"`
	Name        string `json:"name"`
	Args        any    `json:"args,omitempty"`
}

// InvokeTool asks a provider peer to run one of its tools.
type InvokeTool struct {
	ExecutionID string         `json:"executionId"`
	Name        string         `json:"name"`
	Args        map[string]any `json:"args"`
}

// ToolResult is a provider's answer to InvokeTool. Error wins over Result.
type ToolResult struct {
	ExecutionID string     `json:"executionId"`
	Result      any        `json:"result,omitempty"`
	Error       *ErrorBody `json:"error,omitempty"`
}

type ExecutionStatus struct {
	ExecutionID string     `json:"executionId"`
	Status      string     `json:"status"`
	Timestamp   time.Time  `json:"timestamp"`
	Result      any        `json:"result,omitempty"`
	Error       *ErrorBody `json:"error,omitempty"`
}

type ExecuteToolResponse struct {
	ExecutionID string `json:"executionId"`
	Result      any    `json:"result"`
}
