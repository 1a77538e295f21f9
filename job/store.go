package job

import (
	"context"

	"github.com/execq/execq/id"
)

// ListOpts controls pagination for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
}

// Store defines the persistence contract for jobs: a FIFO pending queue
// plus a keyed record store, mutated only through compound atomic
// operations.
//
// Atomicity contract: within each of Enqueue, Claim, Cancel, and Complete,
// every read, the transition decision, and every write to both the queue
// and the record execute without any other transition interleaving on the
// same job id. Implementations may serialize globally (memory), script the
// whole operation server-side (redis), or use transactions with row locks
// (postgres, sqlite); per-job atomicity is the minimum.
//
// Invariant: a job id appears in the pending queue iff its status is
// pending.
type Store interface {
	// EnqueueJob persists a new pending job and appends its id to the
	// queue as one unit. Returns execq.ErrJobAlreadyExists if a record
	// with the same id exists; nothing is written in that case.
	EnqueueJob(ctx context.Context, j *Job) error

	// ClaimJob atomically pops the queue head, flips the record from
	// pending to running, sets StartedAt, and increments Version. Queue
	// entries whose record is no longer pending (cancelled between
	// enqueue and claim) are discarded and the next head is tried.
	// Returns (nil, nil) when no job is claimable — that is not an error.
	// At most one concurrent caller ever receives a given job.
	ClaimJob(ctx context.Context) (*Job, error)

	// CancelJob applies the cancellation state machine to one job:
	// terminal statuses report CancelAlreadyCancelled or
	// CancelAlreadyCompleted without writing; a pending job is removed
	// from the queue and marked cancelled in one unit
	// (CancelledFromQueue); a running job is marked cancelled advisorily
	// (CancelledRunning). Returns execq.ErrJobNotFound for unknown ids.
	CancelJob(ctx context.Context, jobID id.JobID) (CancelOutcome, error)

	// CompleteJob records the terminal outcome of a claimed job. If the
	// record was cancelled while running, the output is stored but the
	// status stays cancelled. Completing a job that is neither running
	// nor cancelled returns execq.ErrInvalidTransition.
	CompleteJob(ctx context.Context, jobID id.JobID, outcome Outcome, output string) (*Job, error)

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// ListJobsByStatus returns jobs matching the given status, oldest
	// first.
	ListJobsByStatus(ctx context.Context, status Status, opts ListOpts) ([]*Job, error)

	// QueueLen returns the number of ids currently in the pending queue.
	QueueLen(ctx context.Context) (int64, error)

	// CountJobs returns the number of records with the given status, or
	// all records when status is empty.
	CountJobs(ctx context.Context, status Status) (int64, error)
}
