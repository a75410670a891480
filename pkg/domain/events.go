package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventNodeEnter     EventType = "node_enter"
	EventNodeLeave     EventType = "node_leave"
	EventWorkflowStart EventType = "workflow_start"
	EventWorkflowEnd   EventType = "workflow_end"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Workflow  string    `json:"workflow"`
	RunID     string    `json:"run_id"`
}

// NodeEvent represents entry or exit from a node.
// Duration and Err are only set on leave.
type NodeEvent struct {
	EventBase
	Node     string        `json:"node"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// WorkflowEvent marks the start or the end of a run.
type WorkflowEvent struct {
	EventBase
	Steps int   `json:"steps"`
	Err   error `json:"-"`
}

// Outcome classifies how a run ended.
func (e *WorkflowEvent) Outcome() string {
	if e.Err != nil {
		return "error"
	}
	return "success"
}

// LifecycleHooks defines callbacks for engine observability.
// Any hook may be nil.
type LifecycleHooks struct {
	OnWorkflowStart func(context.Context, *WorkflowEvent)
	OnWorkflowEnd   func(context.Context, *WorkflowEvent)
	OnNodeEnter     func(context.Context, *NodeEvent)
	OnNodeLeave     func(context.Context, *NodeEvent)
}
