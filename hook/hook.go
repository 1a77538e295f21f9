// Package hook defines the extension system for execq. Extensions are
// notified of lifecycle events (job submitted, claimed, completed,
// cancelled) and can react to them — logging, metrics, auditing, etc.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/execq/execq/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// JobSubmitted is called after a job is successfully submitted.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, j *job.Job) error
}

// JobClaimed is called when a worker claims a job.
type JobClaimed interface {
	OnJobClaimed(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job reaches succeeded or failed.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobCancelled is called when a cancel request actually cancels a job
// (outcome cancelled_from_queue or cancelled_running). Idempotent repeats
// and rejections do not fire it.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, j *job.Job, outcome job.CancelOutcome) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
