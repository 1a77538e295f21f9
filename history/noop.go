package history

import (
	"context"

	"github.com/execq/execq"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// Noop discards writes and never finds anything. It is the default when no
// persistence collaborator is configured.
type Noop struct{}

var _ Store = Noop{}

// WriteHistory discards the snapshot.
func (Noop) WriteHistory(context.Context, *job.Job) error { return nil }

// ReadHistory always reports the record as absent.
func (Noop) ReadHistory(context.Context, id.JobID) (*job.Job, error) {
	return nil, execq.ErrJobNotFound
}
