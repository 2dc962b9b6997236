package server

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// Sentinel errors for store operations.
var (
	ErrRunExists   = errors.New("run already exists")
	ErrRunNotFound = errors.New("run not found")
)

// RunTrigger identifies what initiated a run.
const (
	RunTriggerAPI      = "api"
	RunTriggerSchedule = "schedule"
)

// RunRecord is the persisted projection of a finished generation run. The
// full blog content lives only in the response returned to the caller; the
// record keeps what run history needs.
type RunRecord struct {
	RunID          string    `json:"run_id"`
	Status         string    `json:"status"`
	Trigger        string    `json:"trigger"`
	ScheduleID     string    `json:"schedule_id,omitempty"`
	Topic          string    `json:"topic"`
	Style          string    `json:"style"`
	TargetLanguage string    `json:"target_language,omitempty"`
	Title          string    `json:"title,omitempty"`
	WordCount      int       `json:"word_count,omitempty"`
	WasTranslated  bool      `json:"was_translated"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at"`
	DurationMs     int64     `json:"duration_ms"`
}

// RunFilter narrows a run listing.
type RunFilter struct {
	Status string
	Limit  int
}

// RunStore provides persistence for run records.
type RunStore interface {
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)
	GetRun(ctx context.Context, runID string) (RunRecord, bool, error)
	CreateRun(ctx context.Context, rec RunRecord) error
}

// MemRunStore is an in-memory RunStore for tests and ephemeral deployments.
type MemRunStore struct {
	mu      sync.RWMutex
	records map[string]RunRecord
}

// NewMemRunStore creates an empty in-memory run store.
func NewMemRunStore() *MemRunStore {
	return &MemRunStore{records: make(map[string]RunRecord)}
}

func (s *MemRunStore) ListRuns(_ context.Context, filter RunFilter) ([]RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statusFilter := strings.ToLower(strings.TrimSpace(filter.Status))

	records := make([]RunRecord, 0, len(s.records))
	for _, rec := range s.records {
		if statusFilter != "" && strings.ToLower(rec.Status) != statusFilter {
			continue
		}
		records = append(records, rec)
	}

	// Newest first; run ID breaks ties deterministically.
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].RunID > records[j].RunID
		}
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	if filter.Limit > 0 && len(records) > filter.Limit {
		records = records[:filter.Limit]
	}
	return records, nil
}

func (s *MemRunStore) GetRun(_ context.Context, runID string) (RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[runID]
	return rec, ok, nil
}

func (s *MemRunStore) CreateRun(_ context.Context, rec RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.RunID]; exists {
		return ErrRunExists
	}
	s.records[rec.RunID] = rec
	return nil
}
