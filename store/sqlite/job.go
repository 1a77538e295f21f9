package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

const jobColumns = `id, command, status, version, output,
	started_at, finished_at, cancelled_at, created_at, updated_at`

// EnqueueJob inserts the record and its queue entry in one transaction.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("execq/sqlite: enqueue begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.ExecContext(ctx, `
		INSERT INTO execq_jobs (
			id, command, status, version, output,
			started_at, finished_at, cancelled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID.String(), j.Command, string(j.Status), j.Version, j.Output,
		j.StartedAt, j.FinishedAt, j.CancelledAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return execq.ErrJobAlreadyExists
		}
		return fmt.Errorf("execq/sqlite: enqueue job: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO execq_queue (job_id) VALUES (?)`,
		j.ID.String(),
	); err != nil {
		return fmt.Errorf("execq/sqlite: enqueue queue entry: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("execq/sqlite: enqueue commit: %w", err)
	}
	return nil
}

// ClaimJob removes the head queue entry and flips its record to running
// in one immediate transaction.
func (s *Store) ClaimJob(ctx context.Context) (*job.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("execq/sqlite: claim begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var jID string
	err = tx.QueryRowContext(ctx, `
		SELECT q.job_id
		FROM execq_queue q
		JOIN execq_jobs j ON j.id = q.job_id
		WHERE j.status = 'pending'
		ORDER BY q.position
		LIMIT 1`,
	).Scan(&jID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("execq/sqlite: claim select: %w", err)
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM execq_queue WHERE job_id = ?`, jID,
	); err != nil {
		return nil, fmt.Errorf("execq/sqlite: claim dequeue: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `
		UPDATE execq_jobs SET
			status = 'running',
			started_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ?`,
		now, now, jID,
	); err != nil {
		return nil, fmt.Errorf("execq/sqlite: claim update: %w", err)
	}

	j, err := scanJob(tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM execq_jobs WHERE id = ?`, jID,
	))
	if err != nil {
		return nil, fmt.Errorf("execq/sqlite: claim read back: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("execq/sqlite: claim commit: %w", err)
	}
	return j, nil
}

// CancelJob applies the cancellation state machine in one immediate
// transaction.
func (s *Store) CancelJob(ctx context.Context, jobID id.JobID) (job.CancelOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("execq/sqlite: cancel begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var status job.Status
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM execq_jobs WHERE id = ?`,
		jobID.String(),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", execq.ErrJobNotFound
		}
		return "", fmt.Errorf("execq/sqlite: cancel select: %w", err)
	}

	switch status {
	case job.StatusCancelled:
		return job.CancelAlreadyCancelled, nil
	case job.StatusSucceeded, job.StatusFailed:
		return job.CancelAlreadyCompleted, nil
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `
		UPDATE execq_jobs SET
			status = 'cancelled',
			cancelled_at = ?,
			version = version + 1,
			updated_at = ?
		WHERE id = ?`,
		now, now, jobID.String(),
	); err != nil {
		return "", fmt.Errorf("execq/sqlite: cancel update: %w", err)
	}

	outcome := job.CancelledRunning
	if status == job.StatusPending {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM execq_queue WHERE job_id = ?`,
			jobID.String(),
		); err != nil {
			return "", fmt.Errorf("execq/sqlite: cancel dequeue: %w", err)
		}
		outcome = job.CancelledFromQueue
	}

	if err = tx.Commit(); err != nil {
		return "", fmt.Errorf("execq/sqlite: cancel commit: %w", err)
	}
	return outcome, nil
}

// CompleteJob records the terminal outcome in one immediate transaction.
// A cancelled record keeps its status; only the output is stored.
func (s *Store) CompleteJob(ctx context.Context, jobID id.JobID, outcome job.Outcome, output string) (*job.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("execq/sqlite: complete begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	var status job.Status
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM execq_jobs WHERE id = ?`,
		jobID.String(),
	).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, execq.ErrJobNotFound
		}
		return nil, fmt.Errorf("execq/sqlite: complete select: %w", err)
	}

	now := time.Now().UTC()
	switch status {
	case job.StatusCancelled:
		_, err = tx.ExecContext(ctx, `
			UPDATE execq_jobs SET output = ?, updated_at = ? WHERE id = ?`,
			output, now, jobID.String(),
		)
	case job.StatusRunning:
		_, err = tx.ExecContext(ctx, `
			UPDATE execq_jobs SET
				status = ?,
				finished_at = ?,
				output = ?,
				version = version + 1,
				updated_at = ?
			WHERE id = ?`,
			string(outcome.Status()), now, output, now, jobID.String(),
		)
	default:
		return nil, execq.ErrInvalidTransition
	}
	if err != nil {
		return nil, fmt.Errorf("execq/sqlite: complete update: %w", err)
	}

	j, err := scanJob(tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM execq_jobs WHERE id = ?`, jobID.String(),
	))
	if err != nil {
		return nil, fmt.Errorf("execq/sqlite: complete read back: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("execq/sqlite: complete commit: %w", err)
	}
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM execq_jobs WHERE id = ?`,
		jobID.String(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, execq.ErrJobNotFound
		}
		return nil, fmt.Errorf("execq/sqlite: get job: %w", err)
	}
	return j, nil
}

// ListJobsByStatus returns jobs matching the given status, oldest first.
func (s *Store) ListJobsByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unlimited
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+jobColumns+`
		FROM execq_jobs
		WHERE status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?`,
		string(status), limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("execq/sqlite: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, scanErr := scanJob(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("execq/sqlite: list jobs scan: %w", scanErr)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// QueueLen returns the number of entries in the pending queue.
func (s *Store) QueueLen(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM execq_queue`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("execq/sqlite: queue len: %w", err)
	}
	return n, nil
}

// CountJobs returns the number of records with the given status, or all
// records when status is empty.
func (s *Store) CountJobs(ctx context.Context, status job.Status) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM execq_jobs
		WHERE ? = '' OR status = ?`,
		string(status), string(status),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("execq/sqlite: count jobs: %w", err)
	}
	return n, nil
}

// ── helpers ──

type rowScanner interface {
	Scan(dest ...any) error
}

// scanJob reads one job row in jobColumns order.
func scanJob(row rowScanner) (*job.Job, error) {
	var (
		j           job.Job
		idStr       string
		statusStr   string
		startedAt   sql.NullTime
		finishedAt  sql.NullTime
		cancelledAt sql.NullTime
	)
	err := row.Scan(
		&idStr, &j.Command, &statusStr, &j.Version, &j.Output,
		&startedAt, &finishedAt, &cancelledAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := j.ID.UnmarshalText([]byte(idStr)); err != nil {
		return nil, err
	}
	j.Status = job.Status(statusStr)
	j.StartedAt = nullTimePtr(startedAt)
	j.FinishedAt = nullTimePtr(finishedAt)
	j.CancelledAt = nullTimePtr(cancelledAt)
	return &j, nil
}

func nullTimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// isDuplicateKey checks for a SQLite unique-constraint violation.
func isDuplicateKey(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
