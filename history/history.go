// Package history defines the boundary to the long-term persistence
// collaborator. The core writes a durable snapshot of a job on claim and on
// completion (fire-and-forget) and reads one back when a status query
// misses the live record store. Retention and audit queries live behind
// this boundary; the core never deletes records itself.
package history

import (
	"context"

	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// Store is the persistence collaborator contract.
type Store interface {
	// WriteHistory durably records a snapshot of the job. Later writes
	// for the same id replace earlier ones.
	WriteHistory(ctx context.Context, j *job.Job) error

	// ReadHistory returns the last recorded snapshot for the id, or
	// execq.ErrJobNotFound if none exists.
	ReadHistory(ctx context.Context, jobID id.JobID) (*job.Job, error)
}
