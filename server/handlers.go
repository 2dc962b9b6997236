package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Input limits enforced before the workflow runs.
const (
	topicMinLen      = 3
	topicMaxLen      = 500
	transcriptMaxLen = 50000
)

// GenerateRequest is the body of POST /api/v1/generate.
type GenerateRequest struct {
	Topic          string `json:"topic"`
	Transcript     string `json:"transcript,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
	Style          string `json:"style,omitempty"`
}

// GenerateResponse is the result of a completed generation run.
type GenerateResponse struct {
	RunID                 string   `json:"run_id"`
	Title                 string   `json:"title"`
	Content               string   `json:"content"`
	WordCount             int      `json:"word_count"`
	GenerationTimeSeconds float64  `json:"generation_time_seconds"`
	WasTranslated         bool     `json:"was_translated"`
	TargetLanguage        string   `json:"target_language,omitempty"`
	BrainstormedTitles    []string `json:"brainstormed_titles"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		if isMaxBytesError(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	if details := validateGenerateRequest(req); len(details) > 0 {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", "request validation failed", details...)
		return
	}

	resp, err := s.executeGenerate(r.Context(), req, RunTriggerAPI, "", nil)
	if err != nil {
		s.logger.Warn("generate request failed", "topic", strings.TrimSpace(req.Topic), "error", err)
		if apiErr := asRunAPIError(err); apiErr != nil {
			writeError(w, apiErr.Status, apiErr.Code, apiErr.Message)
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// validateGenerateRequest returns one message per violated constraint.
// Validation happens entirely before the executor is involved.
func validateGenerateRequest(req GenerateRequest) []string {
	var details []string

	topic := strings.TrimSpace(req.Topic)
	switch n := utf8.RuneCountInString(topic); {
	case n == 0:
		details = append(details, "topic is required")
	case n < topicMinLen:
		details = append(details, fmt.Sprintf("topic must be at least %d characters", topicMinLen))
	case n > topicMaxLen:
		details = append(details, fmt.Sprintf("topic must be at most %d characters", topicMaxLen))
	}

	if utf8.RuneCountInString(req.Transcript) > transcriptMaxLen {
		details = append(details, fmt.Sprintf("transcript must be at most %d characters", transcriptMaxLen))
	}

	if _, err := parseRequestStyle(req.Style); err != nil {
		details = append(details, err.Error())
	}

	return details
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "run store not configured")
		return
	}

	filter := RunFilter{
		Status: r.URL.Query().Get("status"),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	records, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if records == nil {
		records = []RunRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "run store not configured")
		return
	}

	runID := strings.TrimSpace(r.PathValue("run_id"))
	rec, ok, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("run %q not found", runID))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
