package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	scribeflow "github.com/scribeflow/scribeflow"
	"github.com/scribeflow/scribeflow/bus"
)

type runAPIError struct {
	Status  int
	Code    string
	Message string
}

func (e *runAPIError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func asRunAPIError(err error) *runAPIError {
	var apiErr *runAPIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

func parseRequestStyle(raw string) (scribeflow.Style, error) {
	return scribeflow.ParseStyle(raw)
}

// executeGenerate runs the blog workflow for a validated request, records
// the run, and projects the final state into the API response. extra, when
// non-nil, receives every run event in addition to the configured handlers.
func (s *Server) executeGenerate(
	ctx context.Context,
	req GenerateRequest,
	trigger string,
	scheduleID string,
	extra scribeflow.EventHandler,
) (GenerateResponse, error) {
	style, err := parseRequestStyle(req.Style)
	if err != nil {
		return GenerateResponse{}, &runAPIError{Status: http.StatusBadRequest, Code: "INVALID_INPUT", Message: err.Error()}
	}

	state := scribeflow.NewBlogState(strings.TrimSpace(req.Topic)).
		WithTranscript(req.Transcript).
		WithTargetLanguage(req.TargetLanguage).
		WithStyle(style)

	runCtx, cancel := context.WithTimeout(ctx, s.runTimeout)
	defer cancel()

	exec := scribeflow.NewExecutor(s.graph,
		scribeflow.WithEventHandler(s.runEventHandler(extra)),
	)

	startedAt := time.Now().UTC()
	result, runErr := exec.Run(runCtx, state)
	completedAt := time.Now().UTC()

	s.recordRun(req, trigger, scheduleID, result, runErr, startedAt, completedAt)

	if runErr != nil {
		return GenerateResponse{}, s.mapRunError(runCtx, result, runErr)
	}

	final := result.State
	return GenerateResponse{
		RunID:                 result.RunID,
		Title:                 final.SelectedTitle,
		Content:               final.FinalContent,
		WordCount:             final.WordCount,
		GenerationTimeSeconds: final.GenerationTime.Seconds(),
		WasTranslated:         final.Translated(),
		TargetLanguage:        strings.TrimSpace(final.TargetLanguage),
		BrainstormedTitles:    final.BrainstormedTitles,
	}, nil
}

// runEventHandler assembles the per-run event pipeline: any extra handler
// supplied by the caller, the configured telemetry handler, bus
// publication, and event persistence, with the emit decorator wrapping
// the whole chain.
func (s *Server) runEventHandler(extra scribeflow.EventHandler) scribeflow.EventHandler {
	var handlers []scribeflow.EventHandler

	// extra runs first so payload tags it adds are visible to the bus
	// and the event store.
	if extra != nil {
		handlers = append(handlers, extra)
	}
	if s.events != nil {
		handlers = append(handlers, s.events)
	}
	if s.bus != nil {
		handlers = append(handlers, s.bus.Publish)
	}
	if s.eventStore != nil {
		sub := bus.NewStoreSubscriber(s.eventStore, s.logger)
		handlers = append(handlers, sub.Handle)
	}

	h := scribeflow.MultiEventHandler(handlers...)
	if s.emitDecorator != nil {
		// The decorator sees each event before the chain does, so trace
		// context it stamps reaches subscribers and stored history.
		h = s.emitDecorator(h)
	}
	return h
}

func (s *Server) recordRun(
	req GenerateRequest,
	trigger string,
	scheduleID string,
	result *scribeflow.RunResult,
	runErr error,
	startedAt, completedAt time.Time,
) {
	if s.runs == nil || result == nil {
		return
	}

	rec := RunRecord{
		RunID:          result.RunID,
		Status:         result.Status.String(),
		Trigger:        trigger,
		ScheduleID:     scheduleID,
		Topic:          strings.TrimSpace(req.Topic),
		Style:          req.Style,
		TargetLanguage: strings.TrimSpace(req.TargetLanguage),
		StartedAt:      startedAt,
		CompletedAt:    completedAt,
		DurationMs:     completedAt.Sub(startedAt).Milliseconds(),
	}
	if rec.Style == "" {
		rec.Style = scribeflow.StyleProfessional.String()
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if state := result.State; state != nil {
		rec.Title = state.SelectedTitle
		rec.WordCount = state.WordCount
		rec.WasTranslated = state.Translated()
	}

	// Recording failure must not fail the request.
	if err := s.runs.CreateRun(context.Background(), rec); err != nil {
		s.logger.Error("record run", "run_id", rec.RunID, "error", err)
	}
}

// mapRunError translates executor failures into the API error envelope.
// Caller-side problems never reach here; anything left is either an
// upstream failure (the node or its text service), a timeout, or a graph
// misconfiguration that validation should have caught.
func (s *Server) mapRunError(runCtx context.Context, result *scribeflow.RunResult, runErr error) error {
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &runAPIError{Status: http.StatusGatewayTimeout, Code: "TIMEOUT", Message: runErr.Error()}
	}

	if errors.Is(runErr, scribeflow.ErrNodeExecution) || errors.Is(runErr, scribeflow.ErrRunCanceled) {
		msg := runErr.Error()
		if result != nil && len(result.Path) > 0 {
			msg = fmt.Sprintf("node %q: %v", result.Path[len(result.Path)-1], runErr)
		}
		return &runAPIError{Status: http.StatusBadGateway, Code: "UPSTREAM_FAILED", Message: msg}
	}

	return &runAPIError{Status: http.StatusInternalServerError, Code: "INTERNAL", Message: runErr.Error()}
}

// runScheduledGenerate executes a schedule's stored request and tags its
// run events so stored history can be traced back to the schedule.
func (s *Server) runScheduledGenerate(
	ctx context.Context,
	req GenerateRequest,
	meta scheduledRunMetadata,
) (GenerateResponse, error) {
	return s.executeGenerate(ctx, req, RunTriggerSchedule, meta.ScheduleID, scheduleMetadataHandler(meta))
}

type scheduledRunMetadata struct {
	ScheduleID  string
	ScheduledAt time.Time
}

func scheduleMetadataHandler(meta scheduledRunMetadata) scribeflow.EventHandler {
	return func(e scribeflow.Event) {
		if e.Kind != scribeflow.EventRunStarted && e.Kind != scribeflow.EventRunFinished {
			return
		}
		if e.Payload == nil {
			return
		}
		// Mutating the payload map here is what makes the tags visible
		// to the handlers that run after this one.
		e.Payload["trigger"] = RunTriggerSchedule
		e.Payload["schedule_id"] = meta.ScheduleID
		e.Payload["scheduled_at"] = meta.ScheduledAt.UTC().Format(time.RFC3339Nano)
	}
}
