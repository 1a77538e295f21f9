package dlq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// ErrNotReplayable is returned when replay targets a job that is not in
// the failed state.
var ErrNotReplayable = errors.New("execq/dlq: job is not in a failed state")

// Queue is the slice of the engine the service needs. *engine.Engine
// satisfies it.
type Queue interface {
	GetStatus(ctx context.Context, jobID id.JobID) (*job.Job, error)
	ListByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error)
	CountByStatus(ctx context.Context, status job.Status) (int64, error)
	Submit(ctx context.Context, command string) (*job.Job, error)
}

// Service provides dead-letter operations over the failed-job set.
type Service struct {
	queue  Queue
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a dead-letter service.
func NewService(queue Queue, opts ...Option) *Service {
	s := &Service{queue: queue, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns failed jobs, oldest first.
func (s *Service) List(ctx context.Context, opts job.ListOpts) ([]*job.Job, error) {
	return s.queue.ListByStatus(ctx, job.StatusFailed, opts)
}

// Count returns the number of failed jobs.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.queue.CountByStatus(ctx, job.StatusFailed)
}

// Replay resubmits a failed job's command as a new pending job with a
// fresh id. The original record is not modified.
func (s *Service) Replay(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	failed, err := s.queue.GetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if failed.Status != job.StatusFailed {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReplayable, jobID, failed.Status)
	}

	replayed, err := s.queue.Submit(ctx, failed.Command)
	if err != nil {
		return nil, err
	}

	s.logger.Info("replayed failed job",
		slog.String("failed_job_id", jobID.String()),
		slog.String("new_job_id", replayed.ID.String()),
	)
	return replayed, nil
}

// ReplayAll resubmits every failed job and returns the new records. The
// first submission error aborts the sweep; jobs already resubmitted stay
// submitted.
func (s *Service) ReplayAll(ctx context.Context) ([]*job.Job, error) {
	failed, err := s.queue.ListByStatus(ctx, job.StatusFailed, job.ListOpts{})
	if err != nil {
		return nil, err
	}

	replayed := make([]*job.Job, 0, len(failed))
	for _, f := range failed {
		j, submitErr := s.queue.Submit(ctx, f.Command)
		if submitErr != nil {
			return replayed, fmt.Errorf("execq/dlq: replay %s: %w", f.ID, submitErr)
		}
		replayed = append(replayed, j)
	}
	return replayed, nil
}
