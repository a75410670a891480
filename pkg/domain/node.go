package domain

import "context"

// NodeFunc computes a partial update from the current state.
// It receives a private copy of the state and must not retain it.
type NodeFunc func(ctx context.Context, s *State) (Update, error)

// Node is a named unit of work in a workflow.
type Node struct {
	Name    string
	Compute NodeFunc
}

// Step is the observable outcome of a single node execution.
type Step struct {
	Node   string `json:"node"`
	Update Update `json:"update"`
}
