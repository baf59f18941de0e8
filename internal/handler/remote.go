package handler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/toolrelay/toolrelay/internal/execution"
	"github.com/toolrelay/toolrelay/internal/protocol"
)

// Sender delivers a message to one peer.
type Sender interface {
	Send(peerID string, msg protocol.Message) error
}

// Remote forwards invocations to the peer that registered the tool. The
// provider answers later with tool_result, which the router turns into
// Complete or Fail.
type Remote struct {
	peers Sender
}

func NewRemote(peers Sender) *Remote {
	return &Remote{peers: peers}
}

func (r *Remote) Handle(_ context.Context, inv execution.Invocation, c Completer) {
	msg := protocol.Message{
		Type: protocol.TypeInvokeTool,
		Data: protocol.InvokeTool{ExecutionID: inv.ExecutionID, Name: inv.ToolName, Args: inv.Args},
	}
	if err := r.peers.Send(inv.Provider, msg); err != nil {
		slog.Warn("handler: forward failed", "id", inv.ExecutionID, "provider", inv.Provider, "err", err)
		report(c.Fail(inv.ExecutionID, execution.CodeToolFailed,
			fmt.Sprintf("provider for tool %q is unavailable: %v", inv.ToolName, err)))
	}
}
