package postgres

import (
	"context"
	"fmt"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// WriteHistory upserts a snapshot row; later writes replace earlier ones.
func (s *Store) WriteHistory(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO execq_history (
			id, command, status, version, output,
			started_at, finished_at, cancelled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			output = EXCLUDED.output,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			cancelled_at = EXCLUDED.cancelled_at,
			updated_at = EXCLUDED.updated_at,
			recorded_at = NOW()`,
		j.ID.String(), j.Command, string(j.Status), j.Version, j.Output,
		j.StartedAt, j.FinishedAt, j.CancelledAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("execq/postgres: write history: %w", err)
	}
	return nil
}

// ReadHistory returns the last recorded snapshot for the id.
func (s *Store) ReadHistory(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM execq_history WHERE id = $1`,
		jobID.String(),
	)

	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, execq.ErrJobNotFound
		}
		return nil, fmt.Errorf("execq/postgres: read history: %w", err)
	}
	return j, nil
}
