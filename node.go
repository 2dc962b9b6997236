package scribeflow

import (
	"context"
)

// NodeKind identifies the type of a node.
type NodeKind string

const (
	NodeKindLLM  NodeKind = "llm"
	NodeKindNoop NodeKind = "noop"
)

// String returns the string representation of the NodeKind.
func (k NodeKind) String() string {
	return string(k)
}

// Node is a single step of the workflow. Each node has a unique ID, a kind,
// and a Run method that maps the current state to a partial update.
//
// Nodes must be stateless between invocations and must not mutate the state
// they receive: all writes go through the returned Delta, which the executor
// merges atomically. A node that fails returns a nil Delta and an error; the
// executor discards any partial work.
type Node interface {
	// ID returns the unique identifier for this node within a graph.
	ID() string

	// Kind returns the type of this node.
	Kind() NodeKind

	// Run executes the node's logic against a read-only state snapshot.
	Run(ctx context.Context, state *BlogState) (*Delta, error)
}

// BaseNode provides common functionality for node implementations.
// Embed this in concrete node types to get ID and Kind handling for free.
type BaseNode struct {
	id   string
	kind NodeKind
}

// NewBaseNode creates a new BaseNode with the given ID and kind.
func NewBaseNode(id string, kind NodeKind) BaseNode {
	return BaseNode{
		id:   id,
		kind: kind,
	}
}

// ID returns the node's unique identifier.
func (n BaseNode) ID() string {
	return n.id
}

// Kind returns the node's type.
func (n BaseNode) Kind() NodeKind {
	return n.kind
}

// FuncNode wraps a function as a Node.
// This is convenient for simple transformations and testing.
type FuncNode struct {
	BaseNode
	fn func(ctx context.Context, state *BlogState) (*Delta, error)
}

// NewFuncNode creates a node that executes the given function.
// The kind defaults to NodeKindNoop but can be overridden via WithKind.
func NewFuncNode(id string, fn func(ctx context.Context, state *BlogState) (*Delta, error)) *FuncNode {
	return &FuncNode{
		BaseNode: NewBaseNode(id, NodeKindNoop),
		fn:       fn,
	}
}

// WithKind sets the node kind and returns the node for chaining.
func (n *FuncNode) WithKind(kind NodeKind) *FuncNode {
	n.kind = kind
	return n
}

// Run executes the wrapped function.
func (n *FuncNode) Run(ctx context.Context, state *BlogState) (*Delta, error) {
	if n.fn == nil {
		return &Delta{}, nil
	}
	return n.fn(ctx, state)
}

// Ensure interface compliance at compile time.
var _ Node = (*FuncNode)(nil)
