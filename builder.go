package scribeflow

import "fmt"

// GraphBuilder provides a fluent API for constructing workflow graphs.
// It tracks the current node to enable method chaining.
//
// Example usage:
//
//	graph, err := NewGraphBuilder().
//	    AddNode(titleNode).
//	    Edge(contentNode).
//	    Conditional(TranslationRouter, map[Route]string{
//	        RouteTranslate: translationNode.ID(),
//	        RouteTerminal:  "",
//	    }).
//	    WithNodes(translationNode).
//	    TerminalNode(translationNode.ID()).
//	    Build()
type GraphBuilder struct {
	graph        *Graph
	current      string
	errors       []error
	entryDefined bool
}

// NewGraphBuilder creates an empty graph builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		graph: &Graph{
			nodes:        make(map[string]Node),
			edges:        make(map[string]string),
			conditionals: make(map[string]*Conditional),
			terminals:    make(map[string]bool),
		},
	}
}

func (b *GraphBuilder) addNode(node Node) bool {
	if node == nil {
		b.errors = append(b.errors, fmt.Errorf("cannot add nil node"))
		return false
	}
	if node.ID() == "" {
		b.errors = append(b.errors, fmt.Errorf("cannot add node with empty id"))
		return false
	}
	if _, exists := b.graph.nodes[node.ID()]; exists {
		b.errors = append(b.errors, fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID()))
		return false
	}
	b.graph.nodes[node.ID()] = node
	return true
}

// AddNode adds a node to the graph and makes it the current node.
// The first node added becomes the entry node.
func (b *GraphBuilder) AddNode(node Node) *GraphBuilder {
	if !b.addNode(node) {
		return b
	}
	if !b.entryDefined {
		b.graph.entryID = node.ID()
		b.entryDefined = true
	}
	b.current = node.ID()
	return b
}

// Entry sets the entry node explicitly. The node must already be added.
func (b *GraphBuilder) Entry(nodeID string) *GraphBuilder {
	if _, ok := b.graph.nodes[nodeID]; !ok {
		b.errors = append(b.errors, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID))
		return b
	}
	b.graph.entryID = nodeID
	b.entryDefined = true
	return b
}

// Edge adds a node and connects it from the current node.
// The new node becomes the current node.
func (b *GraphBuilder) Edge(node Node) *GraphBuilder {
	if !b.addNode(node) {
		return b
	}
	if b.current == "" {
		b.errors = append(b.errors, fmt.Errorf("Edge requires a current node"))
		return b
	}
	b.connect(b.current, node.ID())
	b.current = node.ID()
	return b
}

// Connect creates an edge between two existing nodes by their IDs.
// Does not change the current node.
func (b *GraphBuilder) Connect(fromID, toID string) *GraphBuilder {
	b.connect(fromID, toID)
	return b
}

func (b *GraphBuilder) connect(fromID, toID string) {
	if _, exists := b.graph.edges[fromID]; exists {
		b.errors = append(b.errors, fmt.Errorf("node %s already has an outgoing edge", fromID))
		return
	}
	if _, exists := b.graph.conditionals[fromID]; exists {
		b.errors = append(b.errors, fmt.Errorf("%w: %s", ErrConflictingEdge, fromID))
		return
	}
	b.graph.edges[fromID] = toID
}

// Conditional attaches a router to the current node. Each route label maps
// to a successor node ID; the empty string terminates the run. The current
// node is left unchanged so branches can be wired with Branch.
func (b *GraphBuilder) Conditional(router Router, routes map[Route]string) *GraphBuilder {
	if router == nil {
		b.errors = append(b.errors, fmt.Errorf("cannot attach nil router"))
		return b
	}
	if b.current == "" {
		b.errors = append(b.errors, fmt.Errorf("Conditional requires a current node"))
		return b
	}
	if _, exists := b.graph.edges[b.current]; exists {
		b.errors = append(b.errors, fmt.Errorf("%w: %s", ErrConflictingEdge, b.current))
		return b
	}
	if _, exists := b.graph.conditionals[b.current]; exists {
		b.errors = append(b.errors, fmt.Errorf("node %s already has a conditional", b.current))
		return b
	}

	dup := make(map[Route]string, len(routes))
	for route, to := range routes {
		dup[route] = to
	}
	b.graph.conditionals[b.current] = &Conditional{Router: router, Routes: dup}
	return b
}

// WithNodes adds nodes without creating edges. Does not change the
// current node.
func (b *GraphBuilder) WithNodes(nodes ...Node) *GraphBuilder {
	for _, node := range nodes {
		b.addNode(node)
	}
	return b
}

// Branch switches the current node. Useful for building non-linear graphs.
func (b *GraphBuilder) Branch(nodeID string) *GraphBuilder {
	if _, ok := b.graph.nodes[nodeID]; !ok {
		b.errors = append(b.errors, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID))
		return b
	}
	b.current = nodeID
	return b
}

// TerminalNode marks a node as terminal: reaching it and succeeding ends
// the run.
func (b *GraphBuilder) TerminalNode(nodeID string) *GraphBuilder {
	if _, ok := b.graph.nodes[nodeID]; !ok {
		b.errors = append(b.errors, fmt.Errorf("%w: %s", ErrUnknownNode, nodeID))
		return b
	}
	b.graph.terminals[nodeID] = true
	return b
}

// Errors returns any errors accumulated during building.
func (b *GraphBuilder) Errors() []error {
	return b.errors
}

// Build validates and returns the constructed graph.
func (b *GraphBuilder) Build() (*Graph, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("graph builder errors: %v", b.errors)
	}
	if err := b.graph.Validate(); err != nil {
		return nil, fmt.Errorf("graph validation failed: %w", err)
	}
	return b.graph, nil
}

// MustBuild is like Build but panics on error.
// Useful in tests and fixed topologies wired at startup.
func (b *GraphBuilder) MustBuild() *Graph {
	graph, err := b.Build()
	if err != nil {
		panic(err)
	}
	return graph
}
