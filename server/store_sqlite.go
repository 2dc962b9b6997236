package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const runSQLiteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL UNIQUE,
	status TEXT NOT NULL,
	trigger_kind TEXT NOT NULL,
	schedule_id TEXT,
	topic TEXT NOT NULL,
	style TEXT NOT NULL,
	target_language TEXT,
	title TEXT,
	word_count INTEGER NOT NULL DEFAULT 0,
	was_translated INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	started_at TEXT NOT NULL,
	completed_at TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

CREATE TABLE IF NOT EXISTS schedules (
	id TEXT PRIMARY KEY,
	cron_expr TEXT NOT NULL,
	enabled INTEGER NOT NULL DEFAULT 1,
	request_json BLOB NOT NULL,
	next_run_at TEXT NOT NULL,
	last_run_at TEXT,
	last_run_id TEXT,
	last_status TEXT,
	last_error TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_schedules_due
ON schedules(enabled, next_run_at);`

// SQLiteStoreConfig configures the SQLite-backed run and schedule store.
type SQLiteStoreConfig struct {
	DSN string
}

// SQLiteStore persists run records and schedules in SQLite. It implements
// both RunStore and ScheduleStore so a single database file backs the API.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite-backed store.
func NewSQLiteStore(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("sqlite store dsn is required")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite store open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store set WAL mode: %w", err)
	}

	if _, err := db.Exec(runSQLiteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite store create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// --- RunStore ---

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `
SELECT run_id, status, trigger_kind, schedule_id, topic, style, target_language, title, word_count, was_translated, error, started_at, completed_at, duration_ms
FROM runs`
	var args []any
	if status := strings.ToLower(strings.TrimSpace(filter.Status)); status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY started_at DESC, run_id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite store list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRunRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store list runs rows: %w", err)
	}
	return records, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (RunRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT run_id, status, trigger_kind, schedule_id, topic, style, target_language, title, word_count, was_translated, error, started_at, completed_at, duration_ms
FROM runs
WHERE run_id = ?`, runID)

	rec, err := scanRunRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, false, nil
		}
		return RunRecord{}, false, err
	}
	return rec, true, nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, rec RunRecord) error {
	wasTranslated := 0
	if rec.WasTranslated {
		wasTranslated = 1
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs
	(run_id, status, trigger_kind, schedule_id, topic, style, target_language, title, word_count, was_translated, error, started_at, completed_at, duration_ms)
VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Status,
		rec.Trigger,
		nullIfEmpty(rec.ScheduleID),
		rec.Topic,
		rec.Style,
		nullIfEmpty(rec.TargetLanguage),
		nullIfEmpty(rec.Title),
		rec.WordCount,
		wasTranslated,
		nullIfEmpty(rec.Error),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.CompletedAt.UTC().Format(time.RFC3339Nano),
		rec.DurationMs,
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrRunExists
		}
		return fmt.Errorf("sqlite store create run: %w", err)
	}
	return nil
}

// --- ScheduleStore ---

func (s *SQLiteStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, cron_expr, enabled, request_json, next_run_at, last_run_at, last_run_id, last_status, last_error, created_at, updated_at
FROM schedules
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store list schedules rows: %w", err)
	}
	return schedules, nil
}

func (s *SQLiteStore) GetSchedule(ctx context.Context, scheduleID string) (Schedule, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, cron_expr, enabled, request_json, next_run_at, last_run_at, last_run_id, last_status, last_error, created_at, updated_at
FROM schedules
WHERE id = ?`, scheduleID)

	schedule, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Schedule{}, false, nil
		}
		return Schedule{}, false, err
	}
	return schedule, true, nil
}

func (s *SQLiteStore) CreateSchedule(ctx context.Context, schedule Schedule) error {
	now := time.Now().UTC()
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = now
	}
	if schedule.UpdatedAt.IsZero() {
		schedule.UpdatedAt = schedule.CreatedAt
	}

	requestJSON, err := json.Marshal(schedule.Request)
	if err != nil {
		return fmt.Errorf("sqlite store marshal schedule request: %w", err)
	}

	enabled := 0
	if schedule.Enabled {
		enabled = 1
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO schedules
	(id, cron_expr, enabled, request_json, next_run_at, last_run_at, last_run_id, last_status, last_error, created_at, updated_at)
VALUES
	(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID,
		schedule.Cron,
		enabled,
		requestJSON,
		schedule.NextRunAt.UTC().Format(time.RFC3339Nano),
		formatNullableTime(schedule.LastRunAt),
		nullIfEmpty(schedule.LastRunID),
		nullIfEmpty(schedule.LastStatus),
		nullIfEmpty(schedule.LastError),
		schedule.CreatedAt.UTC().Format(time.RFC3339Nano),
		schedule.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrScheduleExists
		}
		return fmt.Errorf("sqlite store create schedule: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateSchedule(ctx context.Context, schedule Schedule) error {
	if schedule.UpdatedAt.IsZero() {
		schedule.UpdatedAt = time.Now().UTC()
	}

	requestJSON, err := json.Marshal(schedule.Request)
	if err != nil {
		return fmt.Errorf("sqlite store marshal schedule request: %w", err)
	}

	enabled := 0
	if schedule.Enabled {
		enabled = 1
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE schedules
SET
	cron_expr = ?,
	enabled = ?,
	request_json = ?,
	next_run_at = ?,
	last_run_at = ?,
	last_run_id = ?,
	last_status = ?,
	last_error = ?,
	updated_at = ?
WHERE id = ?`,
		schedule.Cron,
		enabled,
		requestJSON,
		schedule.NextRunAt.UTC().Format(time.RFC3339Nano),
		formatNullableTime(schedule.LastRunAt),
		nullIfEmpty(schedule.LastRunID),
		nullIfEmpty(schedule.LastStatus),
		nullIfEmpty(schedule.LastError),
		schedule.UpdatedAt.UTC().Format(time.RFC3339Nano),
		schedule.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite store update schedule: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite store update schedule affected rows: %w", err)
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteSchedule(ctx context.Context, scheduleID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, scheduleID)
	if err != nil {
		return fmt.Errorf("sqlite store delete schedule: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite store delete schedule affected rows: %w", err)
	}
	if affected == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func (s *SQLiteStore) ListDueSchedules(ctx context.Context, now time.Time, limit int) ([]Schedule, error) {
	query := `
SELECT id, cron_expr, enabled, request_json, next_run_at, last_run_at, last_run_id, last_status, last_error, created_at, updated_at
FROM schedules
WHERE enabled = 1 AND next_run_at <= ?
ORDER BY next_run_at ASC`
	args := []any{now.UTC().Format(time.RFC3339Nano)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite store list due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite store list due schedules rows: %w", err)
	}
	return schedules, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// --- scanning helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRunRecord(scanner rowScanner) (RunRecord, error) {
	var (
		runID          string
		status         string
		trigger        string
		scheduleID     sql.NullString
		topic          string
		style          string
		targetLanguage sql.NullString
		title          sql.NullString
		wordCount      int
		wasTranslated  int
		errMsg         sql.NullString
		startedAt      string
		completedAt    string
		durationMs     int64
	)
	if err := scanner.Scan(
		&runID,
		&status,
		&trigger,
		&scheduleID,
		&topic,
		&style,
		&targetLanguage,
		&title,
		&wordCount,
		&wasTranslated,
		&errMsg,
		&startedAt,
		&completedAt,
		&durationMs,
	); err != nil {
		return RunRecord{}, err
	}

	started, err := time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("sqlite store parse started_at: %w", err)
	}
	completed, err := time.Parse(time.RFC3339Nano, completedAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("sqlite store parse completed_at: %w", err)
	}

	return RunRecord{
		RunID:          runID,
		Status:         status,
		Trigger:        trigger,
		ScheduleID:     scheduleID.String,
		Topic:          topic,
		Style:          style,
		TargetLanguage: targetLanguage.String,
		Title:          title.String,
		WordCount:      wordCount,
		WasTranslated:  wasTranslated != 0,
		Error:          errMsg.String,
		StartedAt:      started,
		CompletedAt:    completed,
		DurationMs:     durationMs,
	}, nil
}

func scanSchedule(scanner rowScanner) (Schedule, error) {
	var (
		id         string
		cronExpr   string
		enabledRaw int
		requestRaw []byte
		nextRunAt  string
		lastRunAt  sql.NullString
		lastRunID  sql.NullString
		lastStatus sql.NullString
		lastError  sql.NullString
		createdAt  string
		updatedAt  string
	)
	if err := scanner.Scan(
		&id,
		&cronExpr,
		&enabledRaw,
		&requestRaw,
		&nextRunAt,
		&lastRunAt,
		&lastRunID,
		&lastStatus,
		&lastError,
		&createdAt,
		&updatedAt,
	); err != nil {
		return Schedule{}, err
	}

	next, err := time.Parse(time.RFC3339Nano, nextRunAt)
	if err != nil {
		return Schedule{}, fmt.Errorf("sqlite store parse next_run_at: %w", err)
	}
	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Schedule{}, fmt.Errorf("sqlite store parse created_at: %w", err)
	}
	updated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return Schedule{}, fmt.Errorf("sqlite store parse updated_at: %w", err)
	}

	schedule := Schedule{
		ID:         id,
		Cron:       cronExpr,
		Enabled:    enabledRaw != 0,
		NextRunAt:  next,
		LastRunID:  lastRunID.String,
		LastStatus: lastStatus.String,
		LastError:  lastError.String,
		CreatedAt:  created,
		UpdatedAt:  updated,
	}

	if len(requestRaw) > 0 {
		if err := json.Unmarshal(requestRaw, &schedule.Request); err != nil {
			return Schedule{}, fmt.Errorf("sqlite store unmarshal schedule request: %w", err)
		}
	}

	if lastRunAt.Valid && lastRunAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, lastRunAt.String)
		if err != nil {
			return Schedule{}, fmt.Errorf("sqlite store parse last_run_at: %w", err)
		}
		schedule.LastRunAt = &t
	}

	return schedule, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func formatNullableTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func isSQLiteUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
