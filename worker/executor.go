// Package worker provides the job execution engine — an Executor that
// runs a claimed job's shell command through middleware and reports the
// outcome, and a Pool that manages concurrent worker goroutines polling
// the queue.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"time"

	"github.com/execq/execq"
	"github.com/execq/execq/backoff"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
	"github.com/execq/execq/middleware"
)

// Queue is the slice of the engine the worker needs: claim work, report
// results. *engine.Engine satisfies it.
type Queue interface {
	Claim(ctx context.Context) (*job.Job, error)
	Complete(ctx context.Context, jobID id.JobID, outcome job.Outcome, output string) (*job.Job, error)
}

// Executor runs one job's command through the middleware chain and
// reports the terminal outcome. Reporting retries with backoff when the
// store is unreachable: a finished job's result is never silently
// dropped.
type Executor struct {
	queue   Queue
	mw      middleware.Middleware
	backoff backoff.Strategy
	retries int
	logger  *slog.Logger
}

// NewExecutor creates an Executor. retries bounds how many times a
// failed completion report is retried; bo spaces the attempts.
func NewExecutor(
	queue Queue,
	bo backoff.Strategy,
	retries int,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if bo == nil {
		bo = backoff.DefaultStrategy()
	}
	if retries < 0 {
		retries = 0
	}
	return &Executor{
		queue:   queue,
		mw:      middleware.Chain(mws...),
		backoff: bo,
		retries: retries,
		logger:  logger,
	}
}

// Execute runs the job's command and reports the result. The command is
// handed to the shell as-is; its combined stdout and stderr become the
// job's output. Exit code zero maps to succeeded, anything else
// (including failure to start) to failed.
func (e *Executor) Execute(ctx context.Context, j *job.Job) error {
	terminal := func(ctx context.Context) (string, error) {
		cmd := exec.CommandContext(ctx, "sh", "-c", j.Command)
		out, err := cmd.CombinedOutput()
		return string(out), err
	}

	output, runErr := e.mw(ctx, j, terminal)

	outcome := job.OutcomeSucceeded
	if runErr != nil {
		outcome = job.OutcomeFailed
		if output == "" {
			// The command never produced output (e.g. the shell itself
			// could not start); keep the error text so the record
			// explains the failure.
			output = runErr.Error()
		}
	}

	return e.report(ctx, j.ID, outcome, output)
}

// report delivers the outcome to the queue, retrying transient store
// errors with backoff. Permanent rejections (unknown id, invalid
// transition) are not retried.
func (e *Executor) report(ctx context.Context, jobID id.JobID, outcome job.Outcome, output string) error {
	var lastErr error

	for attempt := 0; attempt <= e.retries; attempt++ {
		if attempt > 0 {
			delay := e.backoff.Delay(attempt)
			e.logger.Warn("retrying completion report",
				slog.String("job_id", jobID.String()),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		_, err := e.queue.Complete(ctx, jobID, outcome, output)
		if err == nil {
			return nil
		}
		if errors.Is(err, execq.ErrJobNotFound) || errors.Is(err, execq.ErrInvalidTransition) {
			return err
		}
		lastErr = err
	}

	e.logger.Error("completion report dropped after exhausting retries",
		slog.String("job_id", jobID.String()),
		slog.String("outcome", string(outcome)),
		slog.String("error", lastErr.Error()),
	)
	return lastErr
}
