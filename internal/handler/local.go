package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/toolrelay/toolrelay/internal/execution"
	"github.com/toolrelay/toolrelay/internal/registry"
	"github.com/toolrelay/toolrelay/internal/schema"
)

// Tool is an in-process tool.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool's arguments.
	Parameters() json.RawMessage
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Local runs in-process tools.
type Local struct {
	tools map[string]Tool
	order []string
}

func NewLocal(tools ...Tool) *Local {
	l := &Local{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := l.tools[t.Name()]; !dup {
			l.order = append(l.order, t.Name())
		}
		l.tools[t.Name()] = t
	}
	return l
}

// Descriptors returns registry descriptors for every tool, in construction order.
func (l *Local) Descriptors() ([]registry.Descriptor, error) {
	out := make([]registry.Descriptor, 0, len(l.order))
	for _, name := range l.order {
		t := l.tools[name]
		s, err := schema.Parse(t.Parameters())
		if err != nil {
			return nil, fmt.Errorf("handler: parse schema of %s: %w", name, err)
		}
		out = append(out, registry.Descriptor{Name: name, Description: t.Description(), Schema: s})
	}
	return out, nil
}

func (l *Local) Handle(ctx context.Context, inv execution.Invocation, c Completer) {
	t, ok := l.tools[inv.ToolName]
	if !ok {
		report(c.Fail(inv.ExecutionID, execution.CodeToolFailed, fmt.Sprintf("no in-process handler for tool %q", inv.ToolName)))
		return
	}

	result, err := run(ctx, t, inv.Args)
	if err != nil {
		report(c.Fail(inv.ExecutionID, execution.CodeToolFailed, err.Error()))
		return
	}
	report(c.Complete(inv.ExecutionID, result))
}

func run(ctx context.Context, t Tool, args map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.Name(), r)
		}
	}()
	return t.Execute(ctx, args)
}

// report logs terminal transitions that lost a race, e.g. to a timeout.
func report(inv execution.Invocation, err error) {
	if err != nil {
		slog.Debug("handler: result discarded", "id", inv.ExecutionID, "err", err)
	}
}
