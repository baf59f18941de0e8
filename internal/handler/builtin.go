package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Builtins returns the tools registered when tools.builtins is enabled.
func Builtins() []Tool {
	return []Tool{EchoTool{}, TimeTool{now: time.Now}}
}

// EchoTool returns its arguments unchanged.
type EchoTool struct{}

func (EchoTool) Name() string        { return "echo" }
func (EchoTool) Description() string { return "Return the given arguments unchanged." }
func (EchoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message": {
				"type": "string",
				"description": "Text to echo back"
			}
		}
	}`)
}

func (EchoTool) Execute(_ context.Context, args map[string]any) (any, error) {
	return args, nil
}

// TimeTool reports the current time.
type TimeTool struct {
	now func() time.Time
}

func (TimeTool) Name() string        { return "time" }
func (TimeTool) Description() string { return "Return the current time in RFC 3339 format." }
func (TimeTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"timezone": {
				"type": "string",
				"description": "Optional IANA timezone, e.g. Europe/Berlin. Defaults to UTC."
			}
		}
	}`)
}

func (t TimeTool) Execute(_ context.Context, args map[string]any) (any, error) {
	now := time.Now
	if t.now != nil {
		now = t.now
	}

	loc := time.UTC
	if tz, _ := args["timezone"].(string); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q", tz)
		}
		loc = l
	}
	ts := now().In(loc)
	return map[string]any{
		"time":     ts.Format(time.RFC3339),
		"timezone": loc.String(),
		"unix":     ts.Unix(),
	}, nil
}
