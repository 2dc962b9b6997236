package scribeflow

import (
	"errors"
	"fmt"
)

// Graph construction and validation errors.
var (
	// ErrEmptyGraph is returned when a graph is built with no nodes.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrDuplicateNode is returned when two nodes share an identifier.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrUnknownNode is returned when an edge or route names a node that
	// was never registered.
	ErrUnknownNode = errors.New("unknown node id")

	// ErrCycle is returned when the graph contains a cycle.
	ErrCycle = errors.New("graph contains a cycle")

	// ErrNoEntry is returned when no entry node can be determined.
	ErrNoEntry = errors.New("graph has no entry node")

	// ErrMultipleEntries is returned when more than one node has no
	// incoming edge and no entry was set explicitly.
	ErrMultipleEntries = errors.New("graph has multiple entry candidates")

	// ErrUnreachableTerminal is returned when no terminal node is
	// reachable from the entry.
	ErrUnreachableTerminal = errors.New("no terminal reachable from entry")

	// ErrConflictingEdge is returned when a node is given both an
	// unconditional edge and a conditional route.
	ErrConflictingEdge = errors.New("node has both edge and conditional route")
)

// ErrUnknownRoute is returned when a router emits a route label that the
// conditional edge does not map.
var ErrUnknownRoute = errors.New("router returned unmapped route")

// ContractViolation reports a node whose upstream response was structurally
// well formed but violated the node's output contract, such as a title
// selection that is not among the brainstormed candidates. It always names
// the offending node.
type ContractViolation struct {
	NodeID string
	Reason string
}

// Error implements the error interface.
func (e *ContractViolation) Error() string {
	return fmt.Sprintf("node %s: contract violation: %s", e.NodeID, e.Reason)
}

// NewContractViolation creates a ContractViolation for the given node.
func NewContractViolation(nodeID, format string, args ...any) *ContractViolation {
	return &ContractViolation{
		NodeID: nodeID,
		Reason: fmt.Sprintf(format, args...),
	}
}

// NodeError wraps an error produced while running a node, preserving the
// node identity for event payloads and API error mapping.
type NodeError struct {
	NodeID string
	Err    error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying error.
func (e *NodeError) Unwrap() error {
	return e.Err
}
