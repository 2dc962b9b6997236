package otel

import (
	scribeflow "github.com/scribeflow/scribeflow"
)

// EnrichHandler builds the telemetry stage of an event pipeline. Each
// event is fed to the TracingHandler to open or close its spans, and the
// active trace and span IDs are stamped onto the event's TraceID and
// SpanID fields before it is forwarded to next, so stored and streamed
// events can be correlated with traces.
//
// Span-opening events (run_started, node_started) are traced before
// stamping so the freshly created span is the one recorded. All other
// events are stamped first, while their span is still active, and traced
// afterwards. When no span is active, the event passes through
// unchanged.
//
// For node-level events (where NodeID is set), the node span is checked
// first. If no node span is found, it falls back to the run-level span.
func EnrichHandler(next scribeflow.EventHandler, tracing *TracingHandler) scribeflow.EventHandler {
	return func(e scribeflow.Event) {
		switch e.Kind {
		case scribeflow.EventRunStarted, scribeflow.EventNodeStarted:
			tracing.Handle(e)
			e = stampTraceContext(e, tracing)
		default:
			e = stampTraceContext(e, tracing)
			tracing.Handle(e)
		}
		next(e)
	}
}

func stampTraceContext(e scribeflow.Event, tracing *TracingHandler) scribeflow.Event {
	if e.NodeID != "" {
		if sc := tracing.ActiveSpanContext(e.RunID, e.NodeID); sc.IsValid() {
			e.TraceID = sc.TraceID().String()
			e.SpanID = sc.SpanID().String()
			return e
		}
	}
	if e.RunID != "" {
		if sc := tracing.ActiveRunSpanContext(e.RunID); sc.IsValid() {
			e.TraceID = sc.TraceID().String()
			e.SpanID = sc.SpanID().String()
		}
	}
	return e
}
