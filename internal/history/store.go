// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// RECORD TYPES
// =============================================================================

// TaskRecord is one finished background task.
type TaskRecord struct {
	ID         string
	Goal       string
	Status     string
	Result     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// PlanRecord is one finished or cancelled plan.
type PlanRecord struct {
	ID         string
	Goal       string
	Status     string
	StepsTotal int
	StepsDone  int
	CreatedAt  time.Time
	FinishedAt time.Time
}

// =============================================================================
// STORE
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS task_runs (
	id TEXT PRIMARY KEY,
	goal TEXT NOT NULL,
	status TEXT NOT NULL,
	result TEXT,
	error TEXT,
	started_at_ns INTEGER NOT NULL,
	finished_at_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_runs_finished ON task_runs(finished_at_ns);

CREATE TABLE IF NOT EXISTS plan_runs (
	id TEXT PRIMARY KEY,
	goal TEXT NOT NULL,
	status TEXT NOT NULL,
	steps_total INTEGER NOT NULL,
	steps_done INTEGER NOT NULL,
	created_at_ns INTEGER NOT NULL,
	finished_at_ns INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_plan_runs_finished ON plan_runs(finished_at_ns);
`

// Store is a SQLite-backed run-history store. Safe for concurrent use;
// database/sql serializes access to the single connection pool.
type Store struct {
	db         *sql.DB
	maxEntries int
}

// Open opens (creating if needed) the history database at path.
// maxEntries bounds the number of rows kept per table (0 = unlimited).
func Open(path string, maxEntries int) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// Keep sqlite responsive under contention.
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// TASK RUNS
// =============================================================================

// RecordTask inserts or replaces one finished task run and prunes old
// rows past the store's entry limit.
func (s *Store) RecordTask(ctx context.Context, rec TaskRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO task_runs
			(id, goal, status, result, error, started_at_ns, finished_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Goal, rec.Status, rec.Result, rec.Error,
		rec.StartedAt.UnixNano(), rec.FinishedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record task run: %w", err)
	}
	return s.prune(ctx, "task_runs")
}

// ListTasks returns up to limit task runs, most recently finished first.
func (s *Store) ListTasks(ctx context.Context, limit int) ([]TaskRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal, status, result, error, started_at_ns, finished_at_ns
		FROM task_runs
		ORDER BY finished_at_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list task runs: %w", err)
	}
	defer rows.Close()

	var records []TaskRecord
	for rows.Next() {
		var rec TaskRecord
		var started, finished int64
		if err := rows.Scan(&rec.ID, &rec.Goal, &rec.Status, &rec.Result, &rec.Error, &started, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan task run: %w", err)
		}
		rec.StartedAt = time.Unix(0, started)
		rec.FinishedAt = time.Unix(0, finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// PLAN RUNS
// =============================================================================

// RecordPlan inserts or replaces one finished plan run.
func (s *Store) RecordPlan(ctx context.Context, rec PlanRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO plan_runs
			(id, goal, status, steps_total, steps_done, created_at_ns, finished_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Goal, rec.Status, rec.StepsTotal, rec.StepsDone,
		rec.CreatedAt.UnixNano(), rec.FinishedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record plan run: %w", err)
	}
	return s.prune(ctx, "plan_runs")
}

// ListPlans returns up to limit plan runs, most recently finished first.
func (s *Store) ListPlans(ctx context.Context, limit int) ([]PlanRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal, status, steps_total, steps_done, created_at_ns, finished_at_ns
		FROM plan_runs
		ORDER BY finished_at_ns DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list plan runs: %w", err)
	}
	defer rows.Close()

	var records []PlanRecord
	for rows.Next() {
		var rec PlanRecord
		var created, finished int64
		if err := rows.Scan(&rec.ID, &rec.Goal, &rec.Status, &rec.StepsTotal, &rec.StepsDone, &created, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan plan run: %w", err)
		}
		rec.CreatedAt = time.Unix(0, created)
		rec.FinishedAt = time.Unix(0, finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// PRUNING
// =============================================================================

// prune deletes the oldest rows beyond the entry limit. Table names are
// compile-time constants, never user input.
func (s *Store) prune(ctx context.Context, table string) error {
	if s.maxEntries <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s WHERE id NOT IN (
			SELECT id FROM %s ORDER BY finished_at_ns DESC LIMIT ?
		)`, table, table), s.maxEntries)
	if err != nil {
		return fmt.Errorf("failed to prune %s: %w", table, err)
	}
	return nil
}
