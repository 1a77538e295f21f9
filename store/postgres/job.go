package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// EnqueueJob inserts the record and its queue entry in one transaction.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("execq/postgres: enqueue begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	_, err = tx.Exec(ctx, `
		INSERT INTO execq_jobs (
			id, command, status, version, output,
			started_at, finished_at, cancelled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		j.ID.String(), j.Command, string(j.Status), j.Version, j.Output,
		j.StartedAt, j.FinishedAt, j.CancelledAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return execq.ErrJobAlreadyExists
		}
		return fmt.Errorf("execq/postgres: enqueue job: %w", err)
	}

	if _, err = tx.Exec(ctx,
		`INSERT INTO execq_queue (job_id) VALUES ($1)`,
		j.ID.String(),
	); err != nil {
		return fmt.Errorf("execq/postgres: enqueue queue entry: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("execq/postgres: enqueue commit: %w", err)
	}
	return nil
}

// claimQuery pops the queue head and flips its record to running in one
// statement. The head CTE locks the queue row AND the job row together:
// CancelJob takes the job row first and the queue row second, so locking
// only the queue row here would order the two transactions against each
// other and deadlock exactly when a cancel races a claim for the same
// pending job. With both rows locked up front, SKIP LOCKED makes the
// claim pass over a head a cancel is holding instead of waiting on it.
const claimQuery = `
	WITH head AS (
		SELECT q.position, q.job_id
		FROM execq_queue q
		JOIN execq_jobs j ON j.id = q.job_id
		WHERE j.status = 'pending'
		ORDER BY q.position
		FOR UPDATE OF q, j SKIP LOCKED
		LIMIT 1
	),
	removed AS (
		DELETE FROM execq_queue
		WHERE position IN (SELECT position FROM head)
	)
	UPDATE execq_jobs SET
		status = 'running',
		started_at = NOW(),
		version = version + 1,
		updated_at = NOW()
	WHERE id IN (SELECT job_id FROM head)
	RETURNING ` + jobColumns

// ClaimJob removes the head queue entry and flips its record to running
// in one statement. SKIP LOCKED lets concurrent workers pass over a head
// another transaction is already claiming or cancelling instead of
// blocking on it.
func (s *Store) ClaimJob(ctx context.Context) (*job.Job, error) {
	row := s.pool.QueryRow(ctx, claimQuery)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("execq/postgres: claim job: %w", err)
	}
	return j, nil
}

// CancelJob applies the cancellation state machine inside a transaction
// holding the job's row lock.
func (s *Store) CancelJob(ctx context.Context, jobID id.JobID) (job.CancelOutcome, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", fmt.Errorf("execq/postgres: cancel begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var status job.Status
	err = tx.QueryRow(ctx,
		`SELECT status FROM execq_jobs WHERE id = $1 FOR UPDATE`,
		jobID.String(),
	).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return "", execq.ErrJobNotFound
		}
		return "", fmt.Errorf("execq/postgres: cancel select: %w", err)
	}

	switch status {
	case job.StatusCancelled:
		return job.CancelAlreadyCancelled, nil
	case job.StatusSucceeded, job.StatusFailed:
		return job.CancelAlreadyCompleted, nil
	}

	if _, err = tx.Exec(ctx, `
		UPDATE execq_jobs SET
			status = 'cancelled',
			cancelled_at = NOW(),
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1`,
		jobID.String(),
	); err != nil {
		return "", fmt.Errorf("execq/postgres: cancel update: %w", err)
	}

	outcome := job.CancelledRunning
	if status == job.StatusPending {
		if _, err = tx.Exec(ctx,
			`DELETE FROM execq_queue WHERE job_id = $1`,
			jobID.String(),
		); err != nil {
			return "", fmt.Errorf("execq/postgres: cancel dequeue: %w", err)
		}
		outcome = job.CancelledFromQueue
	}

	if err = tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("execq/postgres: cancel commit: %w", err)
	}
	return outcome, nil
}

// CompleteJob records the terminal outcome inside a transaction holding
// the job's row lock. A cancelled record keeps its status; only the
// output is stored.
func (s *Store) CompleteJob(ctx context.Context, jobID id.JobID, outcome job.Outcome, output string) (*job.Job, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("execq/postgres: complete begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	var status job.Status
	err = tx.QueryRow(ctx,
		`SELECT status FROM execq_jobs WHERE id = $1 FOR UPDATE`,
		jobID.String(),
	).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return nil, execq.ErrJobNotFound
		}
		return nil, fmt.Errorf("execq/postgres: complete select: %w", err)
	}

	var row pgx.Row
	switch status {
	case job.StatusCancelled:
		row = tx.QueryRow(ctx, `
			UPDATE execq_jobs SET
				output = $2,
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+jobColumns,
			jobID.String(), output,
		)
	case job.StatusRunning:
		row = tx.QueryRow(ctx, `
			UPDATE execq_jobs SET
				status = $2,
				finished_at = NOW(),
				output = $3,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $1
			RETURNING `+jobColumns,
			jobID.String(), string(outcome.Status()), output,
		)
	default:
		return nil, execq.ErrInvalidTransition
	}

	j, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("execq/postgres: complete update: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("execq/postgres: complete commit: %w", err)
	}
	return j, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM execq_jobs WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, execq.ErrJobNotFound
		}
		return nil, fmt.Errorf("execq/postgres: get job: %w", err)
	}
	return j, nil
}

// ListJobsByStatus returns jobs matching the given status, oldest first.
func (s *Store) ListJobsByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = -1 // no limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+`
		FROM execq_jobs
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT NULLIF($2, -1) OFFSET $3`,
		string(status), limit, opts.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("execq/postgres: list jobs: %w", err)
	}

	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("execq/postgres: list jobs scan: %w", err)
	}
	return jobs, nil
}

// QueueLen returns the number of entries in the pending queue.
func (s *Store) QueueLen(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM execq_queue`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("execq/postgres: queue len: %w", err)
	}
	return n, nil
}

// CountJobs returns the number of records with the given status, or all
// records when status is empty.
func (s *Store) CountJobs(ctx context.Context, status job.Status) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM execq_jobs
		WHERE $1 = '' OR status = $1`,
		string(status),
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("execq/postgres: count jobs: %w", err)
	}
	return n, nil
}
