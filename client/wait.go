package client

import (
	"context"
	"time"

	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// Wait polls the gateway until the job reaches a terminal status or the
// context expires. pollInterval <= 0 defaults to one second.
func (c *Client) Wait(ctx context.Context, jobID id.JobID, pollInterval time.Duration) (*job.Job, error) {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		j, err := c.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if j.Status.Terminal() {
			return j, nil
		}

		select {
		case <-ctx.Done():
			return j, ctx.Err()
		case <-ticker.C:
		}
	}
}
