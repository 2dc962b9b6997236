package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type scheduleRequest struct {
	Cron    string           `json:"cron,omitempty"`
	Enabled *bool            `json:"enabled,omitempty"`
	Request *GenerateRequest `json:"request,omitempty"`
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	if s.schedules == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "schedules are not configured")
		return
	}

	schedules, err := s.schedules.ListSchedules(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if schedules == nil {
		schedules = []Schedule{}
	}
	writeJSON(w, http.StatusOK, schedules)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	if s.schedules == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "schedules are not configured")
		return
	}

	var req scheduleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	now := time.Now().UTC()
	schedule := Schedule{
		ID:        uuid.NewString(),
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	updated, err := applyScheduleRequest(schedule, req, true, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SCHEDULE", err.Error())
		return
	}

	if err := s.schedules.CreateSchedule(r.Context(), updated); err != nil {
		if errors.Is(err, ErrScheduleExists) {
			writeError(w, http.StatusConflict, "CONFLICT", fmt.Sprintf("schedule %q already exists", updated.ID))
			return
		}
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, updated)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	if s.schedules == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "schedules are not configured")
		return
	}

	scheduleID := r.PathValue("schedule_id")
	schedule, found, err := s.schedules.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("schedule %q not found", scheduleID))
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

func (s *Server) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	if s.schedules == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "schedules are not configured")
		return
	}

	scheduleID := r.PathValue("schedule_id")
	existing, found, err := s.schedules.GetSchedule(r.Context(), scheduleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("schedule %q not found", scheduleID))
		return
	}

	var req scheduleRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
		return
	}

	now := time.Now().UTC()
	next, err := applyScheduleRequest(existing, req, false, now)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SCHEDULE", err.Error())
		return
	}
	next.UpdatedAt = now

	if err := s.schedules.UpdateSchedule(r.Context(), next); err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("schedule %q not found", scheduleID))
			return
		}
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if s.schedules == nil {
		writeError(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "schedules are not configured")
		return
	}

	scheduleID := r.PathValue("schedule_id")
	if err := s.schedules.DeleteSchedule(r.Context(), scheduleID); err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("schedule %q not found", scheduleID))
			return
		}
		writeError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyScheduleRequest merges the request into base and validates the
// result. creating forces computation of the first NextRunAt.
func applyScheduleRequest(base Schedule, req scheduleRequest, creating bool, now time.Time) (Schedule, error) {
	currentCron := base.Cron
	wasEnabled := base.Enabled

	if cleanCron := strings.TrimSpace(req.Cron); cleanCron != "" {
		base.Cron = cleanCron
	}
	if req.Enabled != nil {
		base.Enabled = *req.Enabled
	}
	if req.Request != nil {
		base.Request = *req.Request
	}

	if strings.TrimSpace(base.Cron) == "" {
		return Schedule{}, fmt.Errorf("cron is required")
	}
	if _, err := parseCronExpr(base.Cron); err != nil {
		return Schedule{}, err
	}
	if details := validateGenerateRequest(base.Request); len(details) > 0 {
		return Schedule{}, fmt.Errorf("request: %s", strings.Join(details, "; "))
	}

	cronChanged := strings.TrimSpace(currentCron) != "" && currentCron != base.Cron
	if base.Enabled && (creating || cronChanged || !wasEnabled || base.NextRunAt.IsZero()) {
		nextRunAt, err := cronNextUTC(base.Cron, now.UTC())
		if err != nil {
			return Schedule{}, err
		}
		base.NextRunAt = nextRunAt
	}

	return base, nil
}
