package redis

import (
	"context"
	"fmt"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// WriteHistory stores a snapshot Hash, replacing any earlier one.
func (s *Store) WriteHistory(ctx context.Context, j *job.Job) error {
	key := historyKey(j.ID.String())
	if err := s.client.HSet(ctx, key, jobToArgs(j)...).Err(); err != nil {
		return fmt.Errorf("execq/redis: write history: %w", err)
	}
	return nil
}

// ReadHistory returns the last recorded snapshot for the id.
func (s *Store) ReadHistory(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, historyKey(jobID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("execq/redis: read history: %w", err)
	}
	if len(vals) == 0 {
		return nil, execq.ErrJobNotFound
	}
	return mapToJob(vals)
}
