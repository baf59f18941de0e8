// Package handler runs the work behind an invocation once the coordinator has
// accepted it. Tools without a provider run in-process; tools registered by a
// peer are forwarded to that peer, which answers with tool_result.
package handler

import (
	"context"

	"github.com/toolrelay/toolrelay/internal/execution"
)

// Completer reports the outcome of an invocation.
type Completer interface {
	Complete(executionID string, result any) (execution.Invocation, error)
	Fail(executionID, code, message string) (execution.Invocation, error)
}

// Handler carries out a running invocation and eventually reports to c.
type Handler interface {
	Handle(ctx context.Context, inv execution.Invocation, c Completer)
}

// Dispatcher picks Remote for provider tools and Local for everything else.
type Dispatcher struct {
	Local  *Local
	Remote *Remote
}

func (d *Dispatcher) Handle(ctx context.Context, inv execution.Invocation, c Completer) {
	if inv.Provider != "" {
		d.Remote.Handle(ctx, inv, c)
		return
	}
	d.Local.Handle(ctx, inv, c)
}
