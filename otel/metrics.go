package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	scribeflow "github.com/scribeflow/scribeflow"
)

// MetricsHandler translates ScribeFlow run events into OpenTelemetry metrics.
// It records counters and histograms for node executions, failures, routing
// decisions, and run durations.
type MetricsHandler struct {
	runsStarted    metric.Int64Counter
	runsFinished   metric.Int64Counter
	nodeExecutions metric.Int64Counter
	nodeFailures   metric.Int64Counter
	routeDecisions metric.Int64Counter
	nodeDuration   metric.Float64Histogram
	runDuration    metric.Float64Histogram
}

// NewMetricsHandler creates a MetricsHandler that uses the given meter to
// create instruments for recording run metrics.
func NewMetricsHandler(meter metric.Meter) (*MetricsHandler, error) {
	runsStarted, err := meter.Int64Counter("scribeflow.runs.started",
		metric.WithDescription("Number of workflow runs started"),
	)
	if err != nil {
		return nil, err
	}

	runsFinished, err := meter.Int64Counter("scribeflow.runs.finished",
		metric.WithDescription("Number of workflow runs finished, by status"),
	)
	if err != nil {
		return nil, err
	}

	nodeExec, err := meter.Int64Counter("scribeflow.node.executions",
		metric.WithDescription("Number of node executions"),
	)
	if err != nil {
		return nil, err
	}

	nodeFail, err := meter.Int64Counter("scribeflow.node.failures",
		metric.WithDescription("Number of node failures"),
	)
	if err != nil {
		return nil, err
	}

	routeDec, err := meter.Int64Counter("scribeflow.route.decisions",
		metric.WithDescription("Number of conditional routing decisions"),
	)
	if err != nil {
		return nil, err
	}

	nodeDur, err := meter.Float64Histogram("scribeflow.node.duration",
		metric.WithDescription("Duration of node execution in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	runDur, err := meter.Float64Histogram("scribeflow.run.duration",
		metric.WithDescription("Duration of workflow run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsHandler{
		runsStarted:    runsStarted,
		runsFinished:   runsFinished,
		nodeExecutions: nodeExec,
		nodeFailures:   nodeFail,
		routeDecisions: routeDec,
		nodeDuration:   nodeDur,
		runDuration:    runDur,
	}, nil
}

// Handle processes a run event and records the appropriate metrics.
// It satisfies scribeflow.EventHandler.
func (h *MetricsHandler) Handle(e scribeflow.Event) {
	switch e.Kind {
	case scribeflow.EventRunStarted:
		h.runsStarted.Add(context.Background(), 1)
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

// handleNodeFinished increments the execution counter and records duration.
func (h *MetricsHandler) handleNodeFinished(e scribeflow.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("node_kind", string(e.NodeKind)),
		attribute.String("node_id", e.NodeID),
	)
	h.nodeExecutions.Add(ctx, 1, attrs)
	h.nodeDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
}

// handleNodeFailed increments the failure counter.
func (h *MetricsHandler) handleNodeFailed(e scribeflow.Event) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("node_kind", string(e.NodeKind)),
		attribute.String("node_id", e.NodeID),
	)
	h.nodeFailures.Add(ctx, 1, attrs)
}

// handleRouteDecision counts routing outcomes by route label.
func (h *MetricsHandler) handleRouteDecision(e scribeflow.Event) {
	route := ""
	if r, ok := e.Payload["route"].(string); ok {
		route = r
	}
	h.routeDecisions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("node_id", e.NodeID),
		attribute.String("route", route),
	))
}

// handleRunFinished counts the run and records its duration, tagged by
// terminal status.
func (h *MetricsHandler) handleRunFinished(e scribeflow.Event) {
	status := ""
	if s, ok := e.Payload["status"].(string); ok {
		status = s
	}
	ctx := context.Background()
	attrs := metric.WithAttributes(attribute.String("status", status))
	h.runsFinished.Add(ctx, 1, attrs)
	h.runDuration.Record(ctx, e.Elapsed.Seconds(), attrs)
}
