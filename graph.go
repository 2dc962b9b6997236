package scribeflow

import (
	"fmt"
	"sort"
)

// Conditional is a routing decision point attached to a node: after the
// node succeeds, the router picks a route and the route map names the
// successor. A Route may map to the empty string to terminate the run.
type Conditional struct {
	Router Router
	Routes map[Route]string
}

// Graph is an immutable, validated workflow topology. Build one with a
// GraphBuilder; a Graph that came out of Build has already passed
// Validate and can be shared across concurrent runs.
type Graph struct {
	nodes        map[string]Node
	edges        map[string]string
	conditionals map[string]*Conditional
	terminals    map[string]bool
	entryID      string
}

// EntryID returns the identifier of the entry node.
func (g *Graph) EntryID() string {
	return g.entryID
}

// Node returns the node registered under id, or nil.
func (g *Graph) Node(id string) Node {
	return g.nodes[id]
}

// Len returns the number of registered nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// NodeIDs returns the registered node identifiers in sorted order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsTerminal reports whether the node is marked terminal.
func (g *Graph) IsTerminal(id string) bool {
	return g.terminals[id]
}

// Next resolves the successor of a node after it has succeeded. A terminal
// node, or a conditional route mapped to the empty string, yields an empty
// successor, which ends the run. An unmapped route is a runtime error.
func (g *Graph) Next(id string, state *BlogState) (string, Route, error) {
	if g.terminals[id] {
		return "", "", nil
	}

	if cond, ok := g.conditionals[id]; ok {
		route := cond.Router(state)
		next, ok := cond.Routes[route]
		if !ok {
			return "", route, fmt.Errorf("%w: node %s route %q", ErrUnknownRoute, id, route)
		}
		return next, route, nil
	}

	return g.edges[id], "", nil
}

// Validate checks the structural invariants: every edge and route target is
// registered, no node carries both an unconditional edge and a conditional,
// the topology is acyclic, exactly one entry exists, and at least one
// terminal outcome is reachable from the entry. Validation failures are
// construction-time errors, never per-run errors.
func (g *Graph) Validate() error {
	if len(g.nodes) == 0 {
		return ErrEmptyGraph
	}

	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("%w: edge source %s", ErrUnknownNode, from)
		}
		if _, ok := g.nodes[to]; !ok {
			return fmt.Errorf("%w: edge target %s", ErrUnknownNode, to)
		}
		if _, ok := g.conditionals[from]; ok {
			return fmt.Errorf("%w: %s", ErrConflictingEdge, from)
		}
	}
	for from, cond := range g.conditionals {
		if _, ok := g.nodes[from]; !ok {
			return fmt.Errorf("%w: conditional source %s", ErrUnknownNode, from)
		}
		if cond.Router == nil {
			return fmt.Errorf("conditional on %s has nil router", from)
		}
		for route, to := range cond.Routes {
			if to == "" {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				return fmt.Errorf("%w: route %q target %s", ErrUnknownNode, route, to)
			}
		}
	}

	if g.entryID != "" {
		if _, ok := g.nodes[g.entryID]; !ok {
			return fmt.Errorf("%w: entry %s", ErrUnknownNode, g.entryID)
		}
	} else {
		entry, err := g.inferEntry()
		if err != nil {
			return err
		}
		g.entryID = entry
	}

	if err := g.checkAcyclic(); err != nil {
		return err
	}

	if !g.terminalReachable() {
		return ErrUnreachableTerminal
	}

	return nil
}

// successors returns every possible successor of a node, across both the
// unconditional edge and all conditional routes.
func (g *Graph) successors(id string) []string {
	var out []string
	if to, ok := g.edges[id]; ok {
		out = append(out, to)
	}
	if cond, ok := g.conditionals[id]; ok {
		for _, to := range cond.Routes {
			if to != "" {
				out = append(out, to)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) inferEntry() (string, error) {
	incoming := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		incoming[id] = 0
	}
	for id := range g.nodes {
		for _, to := range g.successors(id) {
			incoming[to]++
		}
	}

	var candidates []string
	for id, n := range incoming {
		if n == 0 {
			candidates = append(candidates, id)
		}
	}
	switch len(candidates) {
	case 0:
		return "", ErrNoEntry
	case 1:
		return candidates[0], nil
	default:
		sort.Strings(candidates)
		return "", fmt.Errorf("%w: %v", ErrMultipleEntries, candidates)
	}
}

// checkAcyclic runs Kahn's algorithm over the full successor relation.
func (g *Graph) checkAcyclic() error {
	incoming := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		incoming[id] = 0
	}
	for id := range g.nodes {
		for _, to := range g.successors(id) {
			incoming[to]++
		}
	}

	var queue []string
	for id, n := range incoming {
		if n == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, to := range g.successors(id) {
			incoming[to]--
			if incoming[to] == 0 {
				queue = append(queue, to)
			}
		}
	}

	if visited != len(g.nodes) {
		return ErrCycle
	}
	return nil
}

// terminalReachable reports whether a walk from the entry can end: either
// by reaching a terminal node, a node with no successors, or a conditional
// route mapped to the empty string.
func (g *Graph) terminalReachable() bool {
	seen := map[string]bool{}
	queue := []string{g.entryID}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true

		if g.terminals[id] {
			return true
		}
		if cond, ok := g.conditionals[id]; ok {
			for _, to := range cond.Routes {
				if to == "" {
					return true
				}
			}
		}
		succ := g.successors(id)
		if len(succ) == 0 {
			return true
		}
		queue = append(queue, succ...)
	}
	return false
}
