// SPDX-License-Identifier: MIT

package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/photonlab/abel/internal/persistence/sqlite"
)

// History persists finished jobs so restarts do not lose the record of what
// was processed.
type History interface {
	Record(ctx context.Context, job Job) error
	Recent(ctx context.Context, limit int) ([]HistoryEntry, error)
	Close() error
}

// HistoryEntry is one persisted job record.
type HistoryEntry struct {
	ID         string    `json:"id"`
	Method     string    `json:"method"`
	Direction  string    `json:"direction"`
	Rows       int       `json:"rows"`
	Cols       int       `json:"cols"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	Created    time.Time `json:"created"`
	Finished   time.Time `json:"finished"`
	DurationMS int64     `json:"durationMS"`
}

const historySchema = `
CREATE TABLE IF NOT EXISTS job_history (
	id          TEXT PRIMARY KEY,
	method      TEXT NOT NULL,
	direction   TEXT NOT NULL,
	rows        INTEGER NOT NULL,
	cols        INTEGER NOT NULL,
	state       TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_job_history_finished ON job_history(finished_at);
`

// SQLiteHistory stores job records in a local SQLite database.
type SQLiteHistory struct {
	db *sql.DB
}

// OpenHistory opens (or creates) the history database at path.
func OpenHistory(path string) (*SQLiteHistory, error) {
	db, err := sqlite.Open(path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(historySchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create job history schema: %w", err)
	}
	return &SQLiteHistory{db: db}, nil
}

// Record implements History.
func (h *SQLiteHistory) Record(ctx context.Context, job Job) error {
	duration := job.Finished.Sub(job.Started).Milliseconds()
	if job.Started.IsZero() {
		duration = 0
	}
	_, err := h.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO job_history
			(id, method, direction, rows, cols, state, error, created_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Method, job.Direction, job.Rows, job.Cols,
		string(job.State), job.Error,
		job.Created.UnixMilli(), job.Finished.UnixMilli(), duration,
	)
	if err != nil {
		return fmt.Errorf("insert job history: %w", err)
	}
	return nil
}

// Recent implements History, newest first.
func (h *SQLiteHistory) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, method, direction, rows, cols, state, error, created_at, finished_at, duration_ms
		FROM job_history ORDER BY finished_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query job history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var created, finished int64
		if err := rows.Scan(&e.ID, &e.Method, &e.Direction, &e.Rows, &e.Cols,
			&e.State, &e.Error, &created, &finished, &e.DurationMS); err != nil {
			return nil, fmt.Errorf("scan job history: %w", err)
		}
		e.Created = time.UnixMilli(created)
		e.Finished = time.UnixMilli(finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database.
func (h *SQLiteHistory) Close() error { return h.db.Close() }
