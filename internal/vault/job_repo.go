// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/marginalia/pkg/types"
)

// JobRepo reads and writes background job records.
type JobRepo struct {
	v *Vault
}

const jobColumns = `id, kind, citekey, status, progress, error, started_at, finished_at, created_at`

// Create inserts a new job row.
func (r *JobRepo) Create(ctx context.Context, j *types.Job) error {
	db, err := r.v.conn()
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, string(j.Kind), nullableStr(j.Citekey), string(j.Status), j.Progress,
		nullableStr(j.Error), nullableTime(j.StartedAt), nullableTime(j.FinishedAt),
		j.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting job %s: %w", j.ID, err)
	}
	return nil
}

// Get returns the job by id, or (nil, nil) when absent.
func (r *JobRepo) Get(ctx context.Context, id string) (*types.Job, error) {
	db, err := r.v.conn()
	if err != nil {
		return nil, err
	}

	row := db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)

	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading job %s: %w", id, err)
	}
	return j, nil
}

// List returns all jobs, newest first.
func (r *JobRepo) List(ctx context.Context) ([]*types.Job, error) {
	return r.query(ctx,
		`SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC`)
}

// ListActive returns pending and running jobs, oldest first.
func (r *JobRepo) ListActive(ctx context.Context) ([]*types.Job, error) {
	return r.query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE status IN (?, ?) ORDER BY created_at`,
		string(types.JobPending), string(types.JobRunning))
}

// HasActiveJob reports whether a pending or running job of the given kind
// already exists for the citekey. Used to reject duplicate submissions.
func (r *JobRepo) HasActiveJob(ctx context.Context, kind types.JobKind, citekey string) (bool, error) {
	db, err := r.v.conn()
	if err != nil {
		return false, err
	}

	var n int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE kind = ? AND citekey = ? AND status IN (?, ?)`,
		string(kind), citekey, string(types.JobPending), string(types.JobRunning),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("counting active jobs: %w", err)
	}
	return n > 0, nil
}

// MarkRunning transitions a pending job to running and stamps started_at.
// Rows already running or terminal are untouched.
func (r *JobRepo) MarkRunning(ctx context.Context, id string) (bool, error) {
	db, err := r.v.conn()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?`,
		string(types.JobRunning), time.Now().UTC().Format(time.RFC3339),
		id, string(types.JobPending),
	)
	if err != nil {
		return false, fmt.Errorf("marking job %s running: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UpdateProgress sets the progress of a running job. Progress never moves
// backwards; a stale lower value is silently dropped.
func (r *JobRepo) UpdateProgress(ctx context.Context, id string, progress int) error {
	db, err := r.v.conn()
	if err != nil {
		return err
	}

	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	_, err = db.ExecContext(ctx,
		`UPDATE jobs SET progress = ? WHERE id = ? AND status = ? AND progress < ?`,
		progress, id, string(types.JobRunning), progress,
	)
	if err != nil {
		return fmt.Errorf("updating progress for job %s: %w", id, err)
	}
	return nil
}

// Complete transitions a pending or running job to completed at 100 percent.
func (r *JobRepo) Complete(ctx context.Context, id string) (bool, error) {
	return r.finish(ctx, id, types.JobCompleted, "")
}

// Fail transitions a pending or running job to failed with an error message.
// Failing from pending matters: a job can hit an infrastructure error before
// its worker ever marks it running.
func (r *JobRepo) Fail(ctx context.Context, id, errMsg string) (bool, error) {
	return r.finish(ctx, id, types.JobFailed, errMsg)
}

// Cancel transitions a pending or running job to cancelled. Returns false
// when the job is already terminal or absent.
func (r *JobRepo) Cancel(ctx context.Context, id string) (bool, error) {
	db, err := r.v.conn()
	if err != nil {
		return false, err
	}

	res, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, finished_at = ? WHERE id = ? AND status IN (?, ?)`,
		string(types.JobCancelled), time.Now().UTC().Format(time.RFC3339),
		id, string(types.JobPending), string(types.JobRunning),
	)
	if err != nil {
		return false, fmt.Errorf("cancelling job %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Cleanup deletes terminal jobs whose finished_at is older than the cutoff.
// Returns the number of rows removed.
func (r *JobRepo) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	db, err := r.v.conn()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	res, err := db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		string(types.JobCompleted), string(types.JobFailed), string(types.JobCancelled), cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleaning up jobs: %w", err)
	}
	return res.RowsAffected()
}

func (r *JobRepo) finish(ctx context.Context, id string, status types.JobStatus, errMsg string) (bool, error) {
	db, err := r.v.conn()
	if err != nil {
		return false, err
	}

	progress := "progress"
	if status == types.JobCompleted {
		progress = "100"
	}

	res, err := db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, progress = `+progress+`, error = ?, finished_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		string(status), nullableStr(errMsg), time.Now().UTC().Format(time.RFC3339),
		id, string(types.JobPending), string(types.JobRunning),
	)
	if err != nil {
		return false, fmt.Errorf("finishing job %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *JobRepo) query(ctx context.Context, q string, args ...any) ([]*types.Job, error) {
	db, err := r.v.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job row: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func scanJob(s scanner) (*types.Job, error) {
	var j types.Job
	var citekey, errMsg, startedAt, finishedAt sql.NullString
	var createdAt string

	err := s.Scan(
		&j.ID, (*string)(&j.Kind), &citekey, (*string)(&j.Status), &j.Progress,
		&errMsg, &startedAt, &finishedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	j.Citekey = citekey.String
	j.Error = errMsg.String
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		j.CreatedAt = t
	}
	if startedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, startedAt.String); parseErr == nil {
			j.StartedAt = &t
		}
	}
	if finishedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, finishedAt.String); parseErr == nil {
			j.FinishedAt = &t
		}
	}
	return &j, nil
}
