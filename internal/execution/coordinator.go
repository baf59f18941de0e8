package execution

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/toolrelay/toolrelay/internal/registry"
	"github.com/toolrelay/toolrelay/internal/schema"
)

// Resolver resolves a tool name to its descriptor.
type Resolver interface {
	Lookup(name string) (registry.Descriptor, bool)
}

// NotifyFunc receives status events. It is called with the Coordinator's lock
// held, so it must not block and must not call back into the Coordinator.
type NotifyFunc func(Event)

// Options tunes a Coordinator.
type Options struct {
	// Timeout fails running invocations older than this on Sweep. Zero
	// disables timeouts.
	Timeout time.Duration
	// Retention is how long terminal invocations stay tracked after they
	// finish, so late duplicate results are reported as already completed.
	Retention time.Duration
}

// BeginRequest asks the Coordinator to start tracking an execution.
type BeginRequest struct {
	ExecutionID string
	ToolName    string
	Args        any
	Origin      string
}

// Coordinator owns the invocation table.
type Coordinator struct {
	tools Resolver
	opts  Options
	now   func() time.Time

	mu       sync.Mutex
	table    map[string]*Invocation
	onChange NotifyFunc
}

// NewCoordinator returns a Coordinator resolving tools through tools.
func NewCoordinator(tools Resolver, opts Options) *Coordinator {
	return &Coordinator{
		tools: tools,
		opts:  opts,
		now:   time.Now,
		table: make(map[string]*Invocation),
	}
}

// SetNotifier registers the receiver of status events.
// Must be set before the first Begin.
func (c *Coordinator) SetNotifier(fn NotifyFunc) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Begin validates the request, records the invocation and advances it to
// running. The returned snapshot carries the resolved provider.
func (c *Coordinator) Begin(req BeginRequest) (Invocation, error) {
	if req.ExecutionID == "" {
		return Invocation{}, &Error{Code: CodeInvalidExecutionID, Message: "executionId is required"}
	}

	desc, ok := c.tools.Lookup(req.ToolName)
	if !ok {
		return Invocation{}, &Error{
			Code:        CodeToolNotFound,
			Message:     fmt.Sprintf("tool %q not found", req.ToolName),
			ExecutionID: req.ExecutionID,
		}
	}

	args := req.Args
	if args == nil {
		args = map[string]any{}
	}
	if res := schema.ValidateValue(args, desc.Schema); !res.Valid() {
		return Invocation{}, &Error{
			Code:        CodeValidationFailed,
			Message:     fmt.Sprintf("invalid arguments for tool %q", req.ToolName),
			ExecutionID: req.ExecutionID,
			Details:     res.Errors,
		}
	}
	argMap, _ := args.(map[string]any)

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, exists := c.table[req.ExecutionID]; exists && !prev.Status.Terminal() {
		return Invocation{}, &Error{
			Code:        CodeDuplicateID,
			Message:     fmt.Sprintf("execution %q is already in progress", req.ExecutionID),
			ExecutionID: req.ExecutionID,
		}
	}

	now := c.now()
	inv := &Invocation{
		ExecutionID: req.ExecutionID,
		ToolName:    desc.Name,
		Args:        argMap,
		Status:      StatusStarted,
		Origin:      req.Origin,
		Provider:    desc.Provider,
		CreatedAt:   now,
	}
	c.table[inv.ExecutionID] = inv
	c.emitLocked(inv, now)

	inv.Status = StatusRunning
	c.emitLocked(inv, now)

	slog.Debug("execution: started", "id", inv.ExecutionID, "tool", inv.ToolName, "origin", inv.Origin)
	return *inv, nil
}

// Complete records a successful result.
func (c *Coordinator) Complete(executionID string, result any) (Invocation, error) {
	return c.CompleteFrom("", executionID, result)
}

// CompleteFrom records a result reported by provider. It is rejected with
// FORBIDDEN unless provider is the peer the invocation was assigned to. An
// empty provider skips the check.
func (c *Coordinator) CompleteFrom(provider, executionID string, result any) (Invocation, error) {
	return c.finish(provider, executionID, func(inv *Invocation) {
		inv.Status = StatusCompleted
		inv.Result = result
	})
}

// Fail records a failure.
func (c *Coordinator) Fail(executionID, code, message string) (Invocation, error) {
	return c.FailFrom("", executionID, code, message)
}

// FailFrom records a failure reported by provider, checked like CompleteFrom.
func (c *Coordinator) FailFrom(provider, executionID, code, message string) (Invocation, error) {
	if code == "" {
		code = CodeToolFailed
	}
	return c.finish(provider, executionID, func(inv *Invocation) {
		inv.Status = StatusFailed
		inv.Error = &ToolError{Code: code, Message: message}
	})
}

func (c *Coordinator) finish(provider, executionID string, apply func(*Invocation)) (Invocation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	inv, ok := c.table[executionID]
	if !ok {
		return Invocation{}, &Error{
			Code:        CodeNotFound,
			Message:     fmt.Sprintf("execution %q not found", executionID),
			ExecutionID: executionID,
		}
	}
	if provider != "" && inv.Provider != provider {
		return Invocation{}, &Error{
			Code:        CodeForbidden,
			Message:     fmt.Sprintf("execution %q is not assigned to this peer", executionID),
			ExecutionID: executionID,
		}
	}
	if inv.Status.Terminal() {
		return *inv, &Error{
			Code:        CodeAlreadyCompleted,
			Message:     fmt.Sprintf("execution %q already %s", executionID, inv.Status),
			ExecutionID: executionID,
		}
	}

	now := c.now()
	apply(inv)
	inv.FinishedAt = now
	c.emitLocked(inv, now)

	slog.Debug("execution: finished", "id", executionID, "status", inv.Status)
	return *inv, nil
}

// Get returns a snapshot of the tracked invocation.
func (c *Coordinator) Get(executionID string) (Invocation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	inv, ok := c.table[executionID]
	if !ok {
		return Invocation{}, false
	}
	return *inv, true
}

// Running returns the number of non-terminal invocations.
func (c *Coordinator) Running() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, inv := range c.table {
		if !inv.Status.Terminal() {
			n++
		}
	}
	return n
}

// Sweep fails running invocations past the timeout and drops terminal
// invocations past the retention window.
func (c *Coordinator) Sweep(now time.Time) (timedOut, pruned int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, inv := range c.table {
		if inv.Status.Terminal() {
			if now.Sub(inv.FinishedAt) >= c.opts.Retention {
				delete(c.table, id)
				pruned++
			}
			continue
		}
		if c.opts.Timeout > 0 && now.Sub(inv.CreatedAt) >= c.opts.Timeout {
			inv.Status = StatusFailed
			inv.Error = &ToolError{
				Code:    CodeTimeout,
				Message: fmt.Sprintf("execution timed out after %s", c.opts.Timeout),
			}
			inv.FinishedAt = now
			c.emitLocked(inv, now)
			timedOut++
		}
	}
	return timedOut, pruned
}

func (c *Coordinator) emitLocked(inv *Invocation, at time.Time) {
	if c.onChange != nil {
		c.onChange(inv.event(at))
	}
}
