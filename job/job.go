package job

import (
	"time"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
)

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusPending means the job is waiting in the queue for a worker.
	StatusPending Status = "pending"
	// StatusRunning means a worker has claimed the job and is executing it.
	StatusRunning Status = "running"
	// StatusSucceeded means the command exited with code 0.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means the command exited non-zero or could not be run.
	StatusFailed Status = "failed"
	// StatusCancelled means the job was explicitly cancelled.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s is a terminal status. No transition ever
// leaves a terminal status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the state machine permits moving from s
// to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusCancelled
	case StatusRunning:
		return next == StatusSucceeded || next == StatusFailed || next == StatusCancelled
	default:
		return false
	}
}

// Outcome is the terminal result of executing a job's command.
type Outcome string

const (
	// OutcomeSucceeded means the command exited with code 0.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the command exited non-zero or failed to start.
	OutcomeFailed Outcome = "failed"
)

// Status returns the job status corresponding to the outcome.
func (o Outcome) Status() Status {
	if o == OutcomeSucceeded {
		return StatusSucceeded
	}
	return StatusFailed
}

// CancelOutcome reports what a cancel request actually did. All values are
// valid, reportable results — none of them is an error.
type CancelOutcome string

const (
	// CancelNotFound means no record exists for the id.
	CancelNotFound CancelOutcome = "not_found"
	// CancelAlreadyCancelled means the job was cancelled before this call;
	// repeated cancels are idempotent no-ops.
	CancelAlreadyCancelled CancelOutcome = "already_cancelled"
	// CancelAlreadyCompleted means the job already succeeded or failed;
	// cancellation of a finished job is rejected.
	CancelAlreadyCompleted CancelOutcome = "already_completed"
	// CancelledFromQueue means the job was still pending: it was removed
	// from the queue and marked cancelled in one atomic unit. No worker
	// will ever run it.
	CancelledFromQueue CancelOutcome = "cancelled_from_queue"
	// CancelledRunning means a worker had already claimed the job. The
	// record is marked cancelled so completion preserves the cancellation,
	// but the running subprocess is not killed (advisory cancellation).
	CancelledRunning CancelOutcome = "cancelled_running"
)

// Job represents one unit of work: a shell command plus its lifecycle state.
type Job struct {
	execq.Entity

	ID      id.JobID `json:"id"`
	Command string   `json:"command"`
	Status  Status   `json:"status"`

	// Version increases by one on every state-changing operation. Stores
	// use it as an optimistic-concurrency guard for compare-and-swap
	// transitions.
	Version int64 `json:"version"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	// Output is the combined stdout/stderr captured on natural completion.
	// It is recorded even when the job was cancelled mid-run, but in that
	// case the status stays cancelled.
	Output string `json:"output,omitempty"`
}

// New returns a pending job for the given command with a fresh ID.
func New(command string) *Job {
	return &Job{
		Entity:  execq.NewEntity(),
		ID:      id.NewJobID(),
		Command: command,
		Status:  StatusPending,
	}
}
