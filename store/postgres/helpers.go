package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/execq/execq/job"
)

const jobColumns = `id, command, status, version, output,
	started_at, finished_at, cancelled_at, created_at, updated_at`

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// scanJob reads one job row in jobColumns order.
func scanJob(row pgx.Row) (*job.Job, error) {
	var (
		j     job.Job
		idStr string
	)
	err := row.Scan(
		&idStr, &j.Command, &j.Status, &j.Version, &j.Output,
		&j.StartedAt, &j.FinishedAt, &j.CancelledAt, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := j.ID.UnmarshalText([]byte(idStr)); err != nil {
		return nil, err
	}
	return &j, nil
}

// collectJobs drains rows into a slice.
func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	defer rows.Close()

	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
