package core

// history.go records each extraction and export in the roster_runs table.
//
// Only run outcomes are stored (counts, filter switches, source name). Filter
// configuration is never read back from here; every run starts from what the
// caller supplies.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// RunAction is the kind of event recorded for a run.
type RunAction string

const (
	ActionExtract RunAction = "extract"
	ActionExport  RunAction = "export"
)

// RunEvent is one row of run history.
type RunEvent struct {
	RunID           string       `json:"runId"`
	Action          RunAction    `json:"action"`
	Source          string       `json:"source"`
	RequireNoTutor  bool         `json:"requireNoTutor"`
	ExcludedCourses int          `json:"excludedCourses"`
	Stats           ExtractStats `json:"stats"`
	Rows            int          `json:"rows"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// RunRecorder stores run events.
type RunRecorder interface {
	RecordRun(ctx context.Context, ev RunEvent) error
	RecentRuns(ctx context.Context, limit int) ([]RunEvent, error)
}

// NopRecorder discards run events. It is used when no database is configured.
type NopRecorder struct{}

func (NopRecorder) RecordRun(context.Context, RunEvent) error { return nil }

func (NopRecorder) RecentRuns(context.Context, int) ([]RunEvent, error) { return nil, nil }

// PgRecorder stores run events in PostgreSQL.
type PgRecorder struct {
	db DBTX
}

// NewPgRecorder creates a recorder on db.
func NewPgRecorder(db DBTX) *PgRecorder {
	return &PgRecorder{db: db}
}

const createRunsTable = `
CREATE TABLE IF NOT EXISTS roster_runs (
	id                 BIGSERIAL PRIMARY KEY,
	run_id             UUID        NOT NULL,
	action             TEXT        NOT NULL,
	source             TEXT,
	require_no_tutor   BOOLEAN     NOT NULL,
	excluded_courses   INTEGER     NOT NULL,
	rows_read          INTEGER     NOT NULL,
	excluded_by_course INTEGER     NOT NULL,
	excluded_by_tutor  INTEGER     NOT NULL,
	blank_id           INTEGER     NOT NULL,
	duplicates         INTEGER     NOT NULL,
	rows_out           INTEGER     NOT NULL,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const insertRun = `
INSERT INTO roster_runs (
	run_id, action, source, require_no_tutor, excluded_courses,
	rows_read, excluded_by_course, excluded_by_tutor, blank_id, duplicates, rows_out
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const selectRecentRuns = `
SELECT run_id, action, source, require_no_tutor, excluded_courses,
	rows_read, excluded_by_course, excluded_by_tutor, blank_id, duplicates, rows_out, created_at
FROM roster_runs
ORDER BY created_at DESC, id DESC
LIMIT $1`

// EnsureSchema creates the roster_runs table if it does not exist.
func (r *PgRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createRunsTable); err != nil {
		return fmt.Errorf("create roster_runs: %w", err)
	}
	return nil
}

// RecordRun inserts one run event.
func (r *PgRecorder) RecordRun(ctx context.Context, ev RunEvent) error {
	_, err := r.db.Exec(ctx, insertRun,
		toPgUUID(ev.RunID),
		string(ev.Action),
		toPgText(ev.Source),
		ev.RequireNoTutor,
		int32(ev.ExcludedCourses),
		int32(ev.Stats.RowsRead),
		int32(ev.Stats.ExcludedByCourse),
		int32(ev.Stats.ExcludedByTutor),
		int32(ev.Stats.BlankID),
		int32(ev.Stats.Duplicates),
		int32(ev.Rows),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", ev.RunID, err)
	}
	return nil
}

// RecentRuns returns the newest run events first.
func (r *PgRecorder) RecentRuns(ctx context.Context, limit int) ([]RunEvent, error) {
	rows, err := r.db.Query(ctx, selectRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("query roster_runs: %w", err)
	}
	defer rows.Close()

	var events []RunEvent
	for rows.Next() {
		var (
			ev       RunEvent
			runID    pgtype.UUID
			action   string
			source   pgtype.Text
			excluded int32
			counts   [6]int32
		)
		if err := rows.Scan(&runID, &action, &source, &ev.RequireNoTutor, &excluded,
			&counts[0], &counts[1], &counts[2], &counts[3], &counts[4], &counts[5], &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan roster_runs: %w", err)
		}
		ev.RunID = pgUUIDToString(runID)
		ev.Action = RunAction(action)
		ev.Source = source.String
		ev.ExcludedCourses = int(excluded)
		ev.Stats = ExtractStats{
			RowsRead:         int(counts[0]),
			ExcludedByCourse: int(counts[1]),
			ExcludedByTutor:  int(counts[2]),
			BlankID:          int(counts[3]),
			Duplicates:       int(counts[4]),
			Included:         int(counts[5]),
		}
		ev.Rows = int(counts[5])
		events = append(events, ev)
	}
	return events, rows.Err()
}

// recordRun stores ev and logs, rather than returns, a failure: history is
// never allowed to fail the run it describes.
func recordRun(ctx context.Context, rec RunRecorder, ev RunEvent) {
	if err := rec.RecordRun(ctx, ev); err != nil {
		slog.Warn("failed to record run history", "run_id", ev.RunID, "action", ev.Action, "error", err)
	}
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func toPgUUID(s string) pgtype.UUID {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func pgUUIDToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}
