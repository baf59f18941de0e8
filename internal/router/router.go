// Package router dispatches inbound peer messages to the registry and the
// execution coordinator, and relays the resulting events back out.
//
// Registry changes are broadcast to every other peer. Execution traffic is
// point-to-point: status events go only to the peer that asked for the
// execution, and invoke_tool goes only to the tool's provider.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/toolrelay/toolrelay/internal/execution"
	"github.com/toolrelay/toolrelay/internal/handler"
	"github.com/toolrelay/toolrelay/internal/hub"
	"github.com/toolrelay/toolrelay/internal/metrics"
	"github.com/toolrelay/toolrelay/internal/protocol"
	"github.com/toolrelay/toolrelay/internal/registry"
)

// Router routes messages for all connections.
type Router struct {
	server  protocol.ServerInfo
	tools   *registry.Registry
	coord   *execution.Coordinator
	peers   *hub.Hub
	handler handler.Handler
	metrics *metrics.Collector
}

// New returns a Router. Call coord.SetNotifier(r.Relay) to route execution
// events before serving traffic.
func New(
	server protocol.ServerInfo,
	tools *registry.Registry,
	coord *execution.Coordinator,
	peers *hub.Hub,
	h handler.Handler,
	m *metrics.Collector,
) *Router {
	return &Router{server: server, tools: tools, coord: coord, peers: peers, handler: h, metrics: m}
}

// Connect adds a peer to the broadcast set.
func (r *Router) Connect(p *hub.Peer) error {
	if err := r.peers.Add(p); err != nil {
		return err
	}
	r.metrics.PeerConnected()
	slog.Info("router: peer connected", "peer", p.ID(), "peers", r.peers.Len())
	return nil
}

// Disconnect removes a peer and unregisters the tools it provided. In-flight
// invocations are left to finish or time out.
func (r *Router) Disconnect(ctx context.Context, peerID string) {
	if !r.peers.Remove(peerID) {
		return
	}
	r.metrics.PeerDisconnected()

	removed := r.tools.UnregisterProvider(ctx, peerID)
	for _, d := range removed {
		r.announceRemoval(d.Name)
	}
	slog.Info("router: peer disconnected", "peer", peerID, "tools_removed", len(removed))
}

// Dispatch handles one raw message from peerID. Messages from one peer must be
// dispatched sequentially to preserve their order.
func (r *Router) Dispatch(ctx context.Context, peerID string, raw []byte) {
	req, err := protocol.Parse(raw)
	if err != nil {
		r.metrics.Message("invalid")
		var pe *protocol.Error
		if !errors.As(err, &pe) {
			pe = &protocol.Error{Code: protocol.CodeInvalidMessage, Message: err.Error()}
		}
		r.rejectMalformed(peerID, pe)
		return
	}
	r.metrics.Message(string(req.Type))

	switch req.Type {
	case protocol.TypeDiscover:
		r.discover(peerID)
	case protocol.TypeRegisterTool:
		r.register(ctx, peerID, req.Register)
	case protocol.TypeUnregisterTool:
		r.unregister(ctx, peerID, req.Unregister)
	case protocol.TypeExecuteTool:
		r.execute(ctx, peerID, req.Execute)
	case protocol.TypeToolResult:
		r.toolResult(peerID, req.Result)
	}
}

// rejectMalformed answers a message that failed envelope validation. It is
// never broadcast.
func (r *Router) rejectMalformed(peerID string, pe *protocol.Error) {
	if pe.Type == protocol.TypeRegisterTool && pe.Code != protocol.CodeInvalidMessage {
		r.metrics.Error(pe.Code)
		r.send(peerID, protocol.Message{
			Type: protocol.TypeRegisterToolResponse,
			Data: protocol.RegisterToolResponse{Success: false, Error: pe.Body()},
		})
		return
	}
	r.sendError(peerID, pe.Code, pe.Message, pe.ExecutionID)
}

func (r *Router) discover(peerID string) {
	list := r.tools.List()
	infos := make([]protocol.ToolInfo, 0, len(list))
	for _, d := range list {
		infos = append(infos, toolInfo(d))
	}
	r.send(peerID, protocol.Message{
		Type: protocol.TypeDiscoverResponse,
		Data: protocol.DiscoverResponse{Server: r.server, Tools: infos},
	})
}

func (r *Router) register(ctx context.Context, peerID string, req *protocol.RegisterTool) {
	d, err := r.tools.Register(ctx, registry.Descriptor{
		Name:        req.Name,
		Description: req.Description,
		Schema:      req.Schema,
		Provider:    peerID,
	})
	if err != nil {
		code := protocol.CodeOf(err)
		r.metrics.Error(code)
		r.send(peerID, protocol.Message{
			Type: protocol.TypeRegisterToolResponse,
			Data: protocol.RegisterToolResponse{Success: false, Error: &protocol.ErrorBody{Code: code, Message: err.Error()}},
		})
		return
	}

	r.metrics.Registered()
	info := toolInfo(d)
	r.send(peerID, protocol.Message{
		Type: protocol.TypeRegisterToolResponse,
		Data: protocol.RegisterToolResponse{Success: true, Tool: &info},
	})
	n := r.peers.Broadcast(protocol.Message{Type: protocol.TypeRegisterTool, Data: info}, peerID)
	slog.Info("router: tool registered", "tool", d.Name, "peer", peerID, "notified", n)
}

func (r *Router) unregister(ctx context.Context, peerID string, req *protocol.UnregisterTool) {
	_, err := r.tools.UnregisterIf(ctx, req.Name, func(d registry.Descriptor) error {
		switch {
		case d.Provider == "":
			return &protocol.Error{Code: protocol.CodeForbidden, Message: fmt.Sprintf("tool %q is built in", d.Name)}
		case d.Provider != peerID && r.peers.Connected(d.Provider):
			return &protocol.Error{Code: protocol.CodeForbidden, Message: fmt.Sprintf("tool %q belongs to another peer", d.Name)}
		}
		return nil
	})
	if err != nil {
		code := protocol.CodeOf(err)
		r.metrics.Error(code)
		r.send(peerID, protocol.Message{
			Type: protocol.TypeUnregisterToolResponse,
			Data: protocol.UnregisterToolResponse{Name: req.Name, Error: &protocol.ErrorBody{Code: code, Message: err.Error()}},
		})
		return
	}

	r.send(peerID, protocol.Message{
		Type: protocol.TypeUnregisterToolResponse,
		Data: protocol.UnregisterToolResponse{Success: true, Name: req.Name},
	})
	r.announceRemoval(req.Name, peerID)
	slog.Info("router: tool unregistered", "tool", req.Name, "peer", peerID)
}

// announceRemoval tells peers a provider tool is gone. When the name fell
// back to an in-process tool, the restored tool is announced instead.
func (r *Router) announceRemoval(name string, except ...string) {
	if d, ok := r.tools.Lookup(name); ok {
		r.peers.Broadcast(protocol.Message{Type: protocol.TypeRegisterTool, Data: toolInfo(d)}, except...)
		return
	}
	r.peers.Broadcast(protocol.Message{
		Type: protocol.TypeUnregisterTool,
		Data: protocol.UnregisterTool{Name: name},
	}, except...)
}

func (r *Router) execute(ctx context.Context, peerID string, req *protocol.ExecuteTool) {
	inv, err := r.coord.Begin(execution.BeginRequest{
		ExecutionID: req.ExecutionID,
		ToolName:    req.Name,
		Args:        req.Args,
		Origin:      peerID,
	})
	if err != nil {
		r.sendError(peerID, protocol.CodeOf(err), err.Error(), req.ExecutionID)
		return
	}

	// The handler outlives the requesting connection; there is no cancellation.
	go r.handler.Handle(context.WithoutCancel(ctx), inv, r.coord)
}

func (r *Router) toolResult(peerID string, res *protocol.ToolResult) {
	var err error
	if res.Error != nil {
		_, err = r.coord.FailFrom(peerID, res.ExecutionID, res.Error.Code, res.Error.Message)
	} else {
		_, err = r.coord.CompleteFrom(peerID, res.ExecutionID, res.Result)
	}
	if err != nil {
		r.sendError(peerID, protocol.CodeOf(err), err.Error(), res.ExecutionID)
	}
}

// Relay forwards a coordinator event to the invocation's origin. It runs
// under the coordinator lock and only enqueues.
func (r *Router) Relay(ev execution.Event) {
	msg := protocol.ExecutionStatus{
		ExecutionID: ev.ExecutionID,
		Status:      string(ev.Status),
		Timestamp:   ev.Timestamp.UTC(),
	}
	if ev.Status == execution.StatusCompleted {
		msg.Result = ev.Result
	}
	if ev.Error != nil {
		msg.Error = &protocol.ErrorBody{Code: ev.Error.Code, Message: ev.Error.Message, ExecutionID: ev.ExecutionID}
	}
	r.send(ev.Origin, protocol.Message{Type: protocol.TypeExecutionStatus, Data: msg})

	switch ev.Status {
	case execution.StatusCompleted:
		r.metrics.Finished(string(ev.Status), ev.Duration)
		r.send(ev.Origin, protocol.Message{
			Type: protocol.TypeExecuteToolResponse,
			Data: protocol.ExecuteToolResponse{ExecutionID: ev.ExecutionID, Result: ev.Result},
		})
	case execution.StatusFailed:
		r.metrics.Finished(string(ev.Status), ev.Duration)
		r.sendError(ev.Origin, ev.Error.Code, ev.Error.Message, ev.ExecutionID)
	}
}

func (r *Router) sendError(peerID, code, message, executionID string) {
	if protocol.KnownCode(code) {
		r.metrics.Error(code)
	} else {
		// Provider-chosen codes would make the label set unbounded.
		r.metrics.Error(protocol.CodeToolExecutionFailed)
	}
	r.send(peerID, protocol.ErrorMessage(code, message, executionID))
}

func (r *Router) send(peerID string, msg protocol.Message) {
	if peerID == "" {
		return
	}
	if err := r.peers.Send(peerID, msg); err != nil {
		slog.Debug("router: send failed", "peer", peerID, "type", msg.Type, "err", err)
	}
}

func toolInfo(d registry.Descriptor) protocol.ToolInfo {
	return protocol.ToolInfo{
		Name:         d.Name,
		Description:  d.Description,
		Schema:       d.Schema,
		RegisteredAt: d.RegisteredAt,
		Provider:     d.Provider,
	}
}
