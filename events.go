package scribeflow

import (
	"time"
)

// EventKind identifies the type of event emitted by the executor.
type EventKind string

const (
	// EventRunStarted is emitted once when a run begins.
	EventRunStarted EventKind = "run_started"

	// EventNodeStarted is emitted when a node begins execution.
	EventNodeStarted EventKind = "node_started"

	// EventNodeFinished is emitted when a node completes and its delta
	// has been merged.
	EventNodeFinished EventKind = "node_finished"

	// EventNodeFailed is emitted when a node returns an error. The
	// node's delta is discarded.
	EventNodeFailed EventKind = "node_failed"

	// EventRouteDecision is emitted when a conditional edge resolves.
	EventRouteDecision EventKind = "route_decision"

	// EventRunFinished is emitted once, last, with the terminal status.
	EventRunFinished EventKind = "run_finished"
)

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Event is a structured, streamable record of what happened during a run.
// Events should be kept small; full output lives on the final state.
type Event struct {
	// Seq is the event's position in the run's emission order, starting
	// at 1. Consumers use it to deduplicate replayed streams.
	Seq uint64 `json:"seq"`

	// Kind identifies the event type.
	Kind EventKind `json:"kind"`

	// RunID is the unique identifier for this run.
	RunID string `json:"run_id"`

	// NodeID is the node that produced this event (empty for run-level
	// events).
	NodeID string `json:"node_id,omitempty"`

	// NodeKind is the kind of node (empty for run-level events).
	NodeKind NodeKind `json:"node_kind,omitempty"`

	// Time is when the event occurred.
	Time time.Time `json:"time"`

	// Elapsed is the duration since the run started.
	Elapsed time.Duration `json:"elapsed,omitempty"`

	// TraceID is the hex-encoded OpenTelemetry trace ID (empty when
	// tracing is inactive).
	TraceID string `json:"trace_id,omitempty"`

	// SpanID is the hex-encoded OpenTelemetry span ID (empty when
	// tracing is inactive).
	SpanID string `json:"span_id,omitempty"`

	// Payload contains event-specific data.
	Payload map[string]any `json:"payload,omitempty"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(kind EventKind, runID string) Event {
	return Event{
		Kind:    kind,
		RunID:   runID,
		Time:    time.Now().UTC(),
		Payload: make(map[string]any),
	}
}

// WithNode sets the node information on the event.
func (e Event) WithNode(nodeID string, nodeKind NodeKind) Event {
	e.NodeID = nodeID
	e.NodeKind = nodeKind
	return e
}

// WithElapsed sets the elapsed duration on the event.
func (e Event) WithElapsed(elapsed time.Duration) Event {
	e.Elapsed = elapsed
	return e
}

// WithPayload adds a key-value pair to the event payload.
func (e Event) WithPayload(key string, value any) Event {
	if e.Payload == nil {
		e.Payload = make(map[string]any)
	}
	e.Payload[key] = value
	return e
}

// EventHandler is a function type for handling events.
// Implementations can log, store, or forward events as needed.
type EventHandler func(Event)

// EventHandlerDecorator wraps an EventHandler, returning a handler that
// sees and may modify each event before the wrapped one.
type EventHandlerDecorator func(EventHandler) EventHandler

// MultiEventHandler combines multiple handlers into one.
func MultiEventHandler(handlers ...EventHandler) EventHandler {
	return func(e Event) {
		for _, h := range handlers {
			if h != nil {
				h(e)
			}
		}
	}
}

// ChannelEventHandler returns a handler that sends events to a channel.
// Events are dropped if the channel is full.
func ChannelEventHandler(ch chan<- Event) EventHandler {
	return func(e Event) {
		select {
		case ch <- e:
		default:
		}
	}
}
