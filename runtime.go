package scribeflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Runtime errors.
var (
	ErrRunCanceled     = errors.New("run was canceled")
	ErrNodeExecution   = errors.New("node execution failed")
	ErrPathExceeded    = errors.New("execution path exceeded node count")
	ErrNilInitialState = errors.New("initial state is nil")
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// String returns the string representation of the RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// Finished reports whether the status is terminal.
func (s RunStatus) Finished() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusCanceled:
		return true
	}
	return false
}

// RunResult is the outcome of a single run.
type RunResult struct {
	// RunID is the unique identifier assigned to the run.
	RunID string

	// Status is the terminal status.
	Status RunStatus

	// State is the final state. After a failed or canceled run it holds
	// the last fully merged state; the failing node's delta is never
	// applied.
	State *BlogState

	// Path is the sequence of node IDs that started execution, in order.
	Path []string

	// Err is the run error, nil when Status is succeeded.
	Err error
}

// Executor runs a validated graph, threading a BlogState through the nodes
// one at a time. Each node receives a snapshot of the state and returns a
// delta; only the executor merges deltas, and a failed node's delta is
// discarded whole. An executor is stateless across runs and safe for
// concurrent use.
type Executor struct {
	graph    *Graph
	handler  EventHandler
	now      func() time.Time
	newRunID func() string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithEventHandler sets the handler invoked for every run event.
func WithEventHandler(h EventHandler) ExecutorOption {
	return func(x *Executor) {
		x.handler = h
	}
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) ExecutorOption {
	return func(x *Executor) {
		x.now = now
	}
}

// WithRunIDFunc overrides run ID generation. Used in tests.
func WithRunIDFunc(fn func() string) ExecutorOption {
	return func(x *Executor) {
		x.newRunID = fn
	}
}

// NewExecutor creates an executor for a validated graph.
func NewExecutor(graph *Graph, opts ...ExecutorOption) *Executor {
	x := &Executor{
		graph:    graph,
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Run executes the graph to a terminal status. The caller's state is never
// mutated; the executor works on a clone. Run always returns a non-nil
// result whose Err field matches the returned error.
func (x *Executor) Run(ctx context.Context, state *BlogState) (*RunResult, error) {
	if state == nil {
		return nil, ErrNilInitialState
	}

	runID := x.newRunID()
	working := state.Clone()
	start := x.now()

	var seq uint64
	emit := func(e Event) {
		seq++
		e.Seq = seq
		if x.handler != nil {
			x.handler(e)
		}
	}

	result := &RunResult{
		RunID:  runID,
		Status: RunStatusRunning,
		State:  working,
	}

	finish := func(status RunStatus, err error) (*RunResult, error) {
		elapsed := x.now().Sub(start)
		working.GenerationTime = elapsed
		if status == RunStatusSucceeded && working.FinalContent == "" {
			working.FinalContent = working.BlogContent
		}

		result.Status = status
		result.Err = err

		fin := NewEvent(EventRunFinished, runID).
			WithElapsed(elapsed).
			WithPayload("status", status.String())
		if err != nil {
			fin = fin.WithPayload("error", err.Error())
		}
		emit(fin)

		return result, err
	}

	emit(NewEvent(EventRunStarted, runID).
		WithPayload("entry", x.graph.EntryID()).
		WithPayload("nodes", x.graph.Len()))

	current := x.graph.EntryID()
	for current != "" {
		if err := ctx.Err(); err != nil {
			return finish(RunStatusCanceled, fmt.Errorf("%w: %v", ErrRunCanceled, err))
		}

		// Acyclicity is checked at build time; this guards against a
		// graph mutated after validation.
		if len(result.Path) >= x.graph.Len() {
			return finish(RunStatusFailed, fmt.Errorf("%w: %d nodes", ErrPathExceeded, len(result.Path)))
		}

		node := x.graph.Node(current)
		if node == nil {
			return finish(RunStatusFailed, fmt.Errorf("%w: %s", ErrUnknownNode, current))
		}
		result.Path = append(result.Path, current)

		nodeStart := x.now()
		emit(NewEvent(EventNodeStarted, runID).
			WithNode(current, node.Kind()).
			WithElapsed(nodeStart.Sub(start)))

		delta, err := node.Run(ctx, working.Clone())
		nodeElapsed := x.now().Sub(nodeStart)

		if err != nil {
			nodeErr := &NodeError{NodeID: current, Err: err}
			emit(NewEvent(EventNodeFailed, runID).
				WithNode(current, node.Kind()).
				WithElapsed(x.now().Sub(start)).
				WithPayload("error", err.Error()))

			if ctx.Err() != nil {
				return finish(RunStatusCanceled, fmt.Errorf("%w: %v", ErrRunCanceled, nodeErr))
			}
			return finish(RunStatusFailed, fmt.Errorf("%w: %v", ErrNodeExecution, nodeErr))
		}

		working.Merge(delta)
		emit(NewEvent(EventNodeFinished, runID).
			WithNode(current, node.Kind()).
			WithElapsed(x.now().Sub(start)).
			WithPayload("node_elapsed_ms", nodeElapsed.Milliseconds()))

		next, route, err := x.graph.Next(current, working)
		if err != nil {
			return finish(RunStatusFailed, err)
		}
		if route != "" {
			emit(NewEvent(EventRouteDecision, runID).
				WithNode(current, node.Kind()).
				WithElapsed(x.now().Sub(start)).
				WithPayload("route", route.String()).
				WithPayload("target", next))
		}
		current = next
	}

	return finish(RunStatusSucceeded, nil)
}
