// Package otel provides OpenTelemetry integration for ScribeFlow run events.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	scribeflow "github.com/scribeflow/scribeflow"
)

// TracingHandler translates ScribeFlow run events into OpenTelemetry spans.
// It maintains maps of active run and node spans, creating and ending them
// based on event kind.
type TracingHandler struct {
	tracer trace.Tracer

	mu        sync.RWMutex
	runSpans  map[string]trace.Span      // runID -> span
	runCtxs   map[string]context.Context // runID -> context (for child spans)
	nodeSpans map[string]trace.Span      // runID:nodeID -> span
}

// NewTracingHandler creates a new TracingHandler that uses the given tracer
// to create spans from run events.
func NewTracingHandler(tracer trace.Tracer) *TracingHandler {
	return &TracingHandler{
		tracer:    tracer,
		runSpans:  make(map[string]trace.Span),
		runCtxs:   make(map[string]context.Context),
		nodeSpans: make(map[string]trace.Span),
	}
}

// Handle processes a run event and creates or ends spans accordingly.
// It satisfies scribeflow.EventHandler.
func (h *TracingHandler) Handle(e scribeflow.Event) {
	switch e.Kind {
	case scribeflow.EventRunStarted:
		h.handleRunStarted(e)
	case scribeflow.EventNodeStarted:
		h.handleNodeStarted(e)
	case scribeflow.EventNodeFinished:
		h.handleNodeFinished(e)
	case scribeflow.EventNodeFailed:
		h.handleNodeFailed(e)
	case scribeflow.EventRouteDecision:
		h.handleRouteDecision(e)
	case scribeflow.EventRunFinished:
		h.handleRunFinished(e)
	}
}

// handleRunStarted creates a root span for the run.
func (h *TracingHandler) handleRunStarted(e scribeflow.Event) {
	ctx, span := h.tracer.Start(context.Background(), "run:"+e.RunID,
		trace.WithAttributes(
			attribute.String("scribeflow.run_id", e.RunID),
		),
		trace.WithTimestamp(e.Time),
	)

	if entry, ok := e.Payload["entry"].(string); ok && entry != "" {
		span.SetAttributes(attribute.String("scribeflow.entry_node", entry))
	}

	h.mu.Lock()
	h.runSpans[e.RunID] = span
	h.runCtxs[e.RunID] = ctx
	h.mu.Unlock()
}

// handleNodeStarted creates a child span under the run span.
func (h *TracingHandler) handleNodeStarted(e scribeflow.Event) {
	h.mu.RLock()
	parentCtx, ok := h.runCtxs[e.RunID]
	h.mu.RUnlock()

	if !ok {
		// No parent run span; start from background context.
		parentCtx = context.Background()
	}

	_, span := h.tracer.Start(parentCtx, "node:"+e.NodeID,
		trace.WithAttributes(
			attribute.String("scribeflow.run_id", e.RunID),
			attribute.String("scribeflow.node_id", e.NodeID),
			attribute.String("scribeflow.node_kind", string(e.NodeKind)),
		),
		trace.WithTimestamp(e.Time),
	)

	key := e.RunID + ":" + e.NodeID
	h.mu.Lock()
	h.nodeSpans[key] = span
	h.mu.Unlock()
}

// handleNodeFinished ends the node span with success status.
func (h *TracingHandler) handleNodeFinished(e scribeflow.Event) {
	key := e.RunID + ":" + e.NodeID

	h.mu.Lock()
	span, ok := h.nodeSpans[key]
	if ok {
		delete(h.nodeSpans, key)
	}
	h.mu.Unlock()

	if ok {
		span.SetAttributes(
			attribute.String("scribeflow.duration", e.Elapsed.String()),
		)
		span.SetStatus(codes.Ok, "")
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleNodeFailed ends the node span with error status.
func (h *TracingHandler) handleNodeFailed(e scribeflow.Event) {
	key := e.RunID + ":" + e.NodeID

	h.mu.Lock()
	span, ok := h.nodeSpans[key]
	if ok {
		delete(h.nodeSpans, key)
	}
	h.mu.Unlock()

	if ok {
		errMsg := "unknown error"
		if msg, found := e.Payload["error"]; found {
			if s, ok := msg.(string); ok {
				errMsg = s
			}
		}
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(
			spanError(errMsg),
			trace.WithTimestamp(e.Time),
		)
		span.End(trace.WithTimestamp(e.Time))
	}
}

// handleRouteDecision records the routing choice as a span event on the
// run span. The node span has already ended by the time the router runs.
func (h *TracingHandler) handleRouteDecision(e scribeflow.Event) {
	h.mu.RLock()
	span, ok := h.runSpans[e.RunID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("scribeflow.node_id", e.NodeID),
	}
	if route, found := e.Payload["route"].(string); found {
		attrs = append(attrs, attribute.String("scribeflow.route", route))
	}
	if target, found := e.Payload["target"].(string); found {
		attrs = append(attrs, attribute.String("scribeflow.route_target", target))
	}

	span.AddEvent(string(e.Kind), trace.WithTimestamp(e.Time), trace.WithAttributes(attrs...))
}

// handleRunFinished ends the root run span.
func (h *TracingHandler) handleRunFinished(e scribeflow.Event) {
	h.mu.Lock()
	span, ok := h.runSpans[e.RunID]
	if ok {
		delete(h.runSpans, e.RunID)
		delete(h.runCtxs, e.RunID)
	}
	h.mu.Unlock()

	if ok {
		status := ""
		if s, found := e.Payload["status"]; found {
			if str, ok := s.(string); ok {
				status = str
			}
		}

		span.SetAttributes(
			attribute.String("scribeflow.duration", e.Elapsed.String()),
			attribute.String("scribeflow.status", status),
		)

		switch status {
		case scribeflow.RunStatusSucceeded.String():
			span.SetStatus(codes.Ok, "")
		default:
			errMsg := "run " + status
			if msg, found := e.Payload["error"]; found {
				if s, ok := msg.(string); ok {
					errMsg = s
				}
			}
			span.SetStatus(codes.Error, errMsg)
		}

		span.End(trace.WithTimestamp(e.Time))
	}
}

// ActiveSpanContext returns the SpanContext for the active node span
// identified by runID and nodeID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveSpanContext(runID, nodeID string) trace.SpanContext {
	key := runID + ":" + nodeID

	h.mu.RLock()
	span, ok := h.nodeSpans[key]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// ActiveRunSpanContext returns the SpanContext for the active run span
// identified by runID. Returns an empty SpanContext if not found.
func (h *TracingHandler) ActiveRunSpanContext(runID string) trace.SpanContext {
	h.mu.RLock()
	span, ok := h.runSpans[runID]
	h.mu.RUnlock()

	if !ok {
		return trace.SpanContext{}
	}
	return span.SpanContext()
}

// spanError is a simple error type for recording span errors.
type spanError string

func (e spanError) Error() string { return string(e) }
