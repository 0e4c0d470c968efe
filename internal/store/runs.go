package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunAborted   = "aborted"
	RunFailed    = "failed"
)

// Run is the audit record of one engine run
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	DryRun     bool
	Processed  int
	KeptNew    int
	KeptOld    int
	Skipped    int
	Errors     int
}

// StartRun records a new run in the running state
func (c *Catalog) StartRun(ctx context.Context, r *Run) error {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	r.Status = RunRunning
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, status, dry_run) VALUES (?, ?, ?, ?)
	`, r.ID, r.StartedAt, r.Status, boolInt(r.DryRun))
	if err != nil {
		return fmt.Errorf("failed to start run: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run
func (c *Catalog) FinishRun(ctx context.Context, r *Run) error {
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
	_, err := c.q.ExecContext(ctx, `
		UPDATE runs SET finished_at = ?, status = ?, processed = ?, kept_new = ?,
		       kept_old = ?, skipped = ?, errors = ?
		WHERE id = ?
	`, r.FinishedAt, r.Status, r.Processed, r.KeptNew, r.KeptOld, r.Skipped, r.Errors, r.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first
func (c *Catalog) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, started_at, finished_at, status, dry_run, processed,
		       kept_new, kept_old, skipped, errors
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var finished sql.NullTime
		var dry int
		if err := rows.Scan(&r.ID, &r.StartedAt, &finished, &r.Status, &dry,
			&r.Processed, &r.KeptNew, &r.KeptOld, &r.Skipped, &r.Errors); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		r.DryRun = dry == 1
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
