package domain

import (
	"errors"
	"fmt"
)

// ErrConfiguration is matched by every error detected while building a graph.
var ErrConfiguration = errors.New("invalid workflow configuration")

// ErrMissingEntry is returned when a graph is compiled without an entry point.
var ErrMissingEntry = fmt.Errorf("%w: entry point not set", ErrConfiguration)

// ErrEntryAlreadySet is returned when the entry point is declared twice.
var ErrEntryAlreadySet = fmt.Errorf("%w: entry point already set", ErrConfiguration)

// ErrAccountNotFound is returned when an account id cannot be found in the store.
var ErrAccountNotFound = errors.New("account not found")

// DuplicateNodeError is returned when two nodes share a name.
type DuplicateNodeError struct {
	Node string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q registered twice", e.Node)
}

func (e *DuplicateNodeError) Is(target error) bool { return target == ErrConfiguration }

// UnknownNodeError is returned when a builder call names a node that was never registered.
type UnknownNodeError struct {
	Node string
}

func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("unknown node %q", e.Node)
}

func (e *UnknownNodeError) Is(target error) bool { return target == ErrConfiguration }

// DanglingEdgeError is returned when an edge points at a node that does not exist.
type DanglingEdgeError struct {
	From string
	To   string
}

func (e *DanglingEdgeError) Error() string {
	return fmt.Sprintf("edge %q -> %q targets an unknown node", e.From, e.To)
}

func (e *DanglingEdgeError) Is(target error) bool { return target == ErrConfiguration }

// DuplicateEdgeError is returned when a node declares more than one outgoing edge.
type DuplicateEdgeError struct {
	From string
}

func (e *DuplicateEdgeError) Error() string {
	return fmt.Sprintf("node %q already has an outgoing edge", e.From)
}

func (e *DuplicateEdgeError) Is(target error) bool { return target == ErrConfiguration }

// UnreachableNodeError is returned when nodes cannot be reached from the entry point.
type UnreachableNodeError struct {
	Nodes []string
}

func (e *UnreachableNodeError) Error() string {
	return fmt.Sprintf("nodes unreachable from entry: %v", e.Nodes)
}

func (e *UnreachableNodeError) Is(target error) bool { return target == ErrConfiguration }

// BranchMappingError is returned when a selector label has no target.
// At build time it reports a declared label missing from the mapping;
// at run time it reports the label the selector actually produced.
// Cause is set when the selector panicked instead of returning a label.
type BranchMappingError struct {
	Node  string
	Label string
	Build bool
	Cause error
}

func (e *BranchMappingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("branch from %q: %v", e.Node, e.Cause)
	}
	return fmt.Sprintf("branch from %q: label %q has no mapped target", e.Node, e.Label)
}

func (e *BranchMappingError) Unwrap() error { return e.Cause }

func (e *BranchMappingError) Is(target error) bool {
	return e.Build && target == ErrConfiguration
}

// MissingEdgeError is returned when execution reaches a node with no outgoing edge.
type MissingEdgeError struct {
	Node string
}

func (e *MissingEdgeError) Error() string {
	return fmt.Sprintf("node %q has no outgoing edge", e.Node)
}

// NodeExecutionError wraps a failure raised by a node's computation.
type NodeExecutionError struct {
	Node  string
	Cause error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %q failed: %v", e.Node, e.Cause)
}

func (e *NodeExecutionError) Unwrap() error { return e.Cause }

// StepLimitExceededError is returned when an execution runs more steps than allowed.
type StepLimitExceededError struct {
	Limit int
}

func (e *StepLimitExceededError) Error() string {
	return fmt.Sprintf("step limit of %d exceeded", e.Limit)
}
