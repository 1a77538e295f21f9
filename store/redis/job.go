package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// EnqueueJob stores the job as a Hash and pushes its id onto the pending
// list in one script.
func (s *Store) EnqueueJob(ctx context.Context, j *job.Job) error {
	jID := j.ID.String()
	args := append([]interface{}{jID}, jobToArgs(j)...)

	res, err := enqueueScript.Run(ctx, s.client,
		[]string{jobKey(jID), pendingKey, jobIDsKey},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("execq/redis: enqueue job: %w", err)
	}
	if res == 0 {
		return execq.ErrJobAlreadyExists
	}
	return nil
}

// ClaimJob atomically pops the oldest still-pending id and flips its
// record to running. Returns (nil, nil) when the queue is empty.
func (s *Store) ClaimJob(ctx context.Context) (*job.Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := claimScript.Run(ctx, s.client,
		[]string{pendingKey},
		keyPrefix, now,
	).Result()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("execq/redis: claim job: %w", err)
	}

	flat, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("execq/redis: claim job: unexpected reply %T", res)
	}
	return mapToJob(flatToMap(flat))
}

// CancelJob applies the cancellation state machine in one script.
func (s *Store) CancelJob(ctx context.Context, jobID id.JobID) (job.CancelOutcome, error) {
	jID := jobID.String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := cancelScript.Run(ctx, s.client,
		[]string{jobKey(jID), pendingKey},
		jID, now,
	).Text()
	if err != nil {
		return "", fmt.Errorf("execq/redis: cancel job: %w", err)
	}

	switch outcome := job.CancelOutcome(res); outcome {
	case job.CancelNotFound:
		return "", execq.ErrJobNotFound
	case job.CancelAlreadyCancelled, job.CancelAlreadyCompleted,
		job.CancelledFromQueue, job.CancelledRunning:
		return outcome, nil
	default:
		return "", fmt.Errorf("execq/redis: cancel job: unexpected reply %q", res)
	}
}

// CompleteJob records the terminal outcome in one script. A cancelled
// record keeps its status and only the output is stored.
func (s *Store) CompleteJob(ctx context.Context, jobID id.JobID, outcome job.Outcome, output string) (*job.Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := completeScript.Run(ctx, s.client,
		[]string{jobKey(jobID.String())},
		string(outcome.Status()), output, now,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("execq/redis: complete job: %w", err)
	}

	switch v := res.(type) {
	case string:
		switch v {
		case "not_found":
			return nil, execq.ErrJobNotFound
		case "invalid":
			return nil, execq.ErrInvalidTransition
		}
		return nil, fmt.Errorf("execq/redis: complete job: unexpected reply %q", v)
	case []interface{}:
		return mapToJob(flatToMap(v))
	default:
		return nil, fmt.Errorf("execq/redis: complete job: unexpected reply %T", res)
	}
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, jobKey(jobID.String()))
}

// ListJobsByStatus returns jobs matching the given status, oldest first.
func (s *Store) ListJobsByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("execq/redis: list jobs smembers: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue // skip missing
		}
		if j.Status != status {
			continue
		}
		jobs = append(jobs, j)
	}

	sort.Slice(jobs, func(i, k int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[k].CreatedAt)
		}
		return jobs[i].ID.String() < jobs[k].ID.String()
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(jobs) {
		jobs = jobs[:opts.Limit]
	}
	return jobs, nil
}

// QueueLen returns the length of the pending list.
func (s *Store) QueueLen(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, pendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("execq/redis: queue len: %w", err)
	}
	return n, nil
}

// CountJobs returns the number of records with the given status, or all
// records when status is empty.
func (s *Store) CountJobs(ctx context.Context, status job.Status) (int64, error) {
	if status == "" {
		n, err := s.client.SCard(ctx, jobIDsKey).Result()
		if err != nil {
			return 0, fmt.Errorf("execq/redis: count jobs scard: %w", err)
		}
		return n, nil
	}

	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("execq/redis: count jobs smembers: %w", err)
	}

	var count int64
	for _, jID := range ids {
		j, getErr := s.getJobByKey(ctx, jobKey(jID))
		if getErr != nil {
			continue
		}
		if j.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("execq/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, execq.ErrJobNotFound
	}
	return mapToJob(vals)
}
