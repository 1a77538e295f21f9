package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// WriteHistory upserts a snapshot row; later writes replace earlier ones.
func (s *Store) WriteHistory(ctx context.Context, j *job.Job) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execq_history (
			id, command, status, version, output,
			started_at, finished_at, cancelled_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			status = excluded.status,
			version = excluded.version,
			output = excluded.output,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			cancelled_at = excluded.cancelled_at,
			updated_at = excluded.updated_at`,
		j.ID.String(), j.Command, string(j.Status), j.Version, j.Output,
		j.StartedAt, j.FinishedAt, j.CancelledAt, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("execq/sqlite: write history: %w", err)
	}
	return nil
}

// ReadHistory returns the last recorded snapshot for the id.
func (s *Store) ReadHistory(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM execq_history WHERE id = ?`,
		jobID.String(),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, execq.ErrJobNotFound
		}
		return nil, fmt.Errorf("execq/sqlite: read history: %w", err)
	}
	return j, nil
}
