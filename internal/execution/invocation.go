// Package execution tracks the lifecycle of tool invocations.
//
// Each invocation moves started → running → completed | failed. The
// Coordinator only enforces identity and single-terminal-transition rules;
// the tool's actual work happens elsewhere and reports back through Complete
// or Fail.
package execution

import "time"

// Status is the lifecycle state of an invocation.
type Status string

const (
	StatusStarted   Status = "started"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ToolError is the failure attached to a failed invocation.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Invocation is a snapshot of one tracked execution.
type Invocation struct {
	ExecutionID string
	ToolName    string
	Args        map[string]any
	Status      Status
	Result      any
	Error       *ToolError

	// Origin is the peer that asked for the execution; Provider is the peer
	// that runs it (empty for in-process tools).
	Origin   string
	Provider string

	CreatedAt  time.Time
	FinishedAt time.Time
}

// Event is emitted for every status transition.
type Event struct {
	ExecutionID string
	ToolName    string
	Origin      string
	Status      Status
	Result      any
	Error       *ToolError
	Timestamp   time.Time

	// Duration is set on terminal events.
	Duration time.Duration
}

func (inv *Invocation) event(at time.Time) Event {
	ev := Event{
		ExecutionID: inv.ExecutionID,
		ToolName:    inv.ToolName,
		Origin:      inv.Origin,
		Status:      inv.Status,
		Timestamp:   at,
	}
	if inv.Status.Terminal() {
		ev.Result = inv.Result
		ev.Error = inv.Error
		ev.Duration = inv.FinishedAt.Sub(inv.CreatedAt)
	}
	return ev
}
