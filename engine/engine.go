// Package engine wires the execq subsystems together: it fronts the job
// store with the submission, claim, cancellation, and completion
// operations, emits lifecycle hooks, and mirrors durable snapshots into
// the history store.
//
// This package exists to break the import cycle: the root execq package
// defines Entity and the sentinel errors (imported by job, history, etc.)
// and so cannot import those packages back. The engine package sits above
// all subsystem packages and below the application layer.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/execq/execq"
	"github.com/execq/execq/history"
	"github.com/execq/execq/hook"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

// Engine coordinates the job store, the history collaborator, and the
// hook registry. All methods are safe for concurrent use; the atomicity
// of each transition is the store's responsibility.
type Engine struct {
	store   job.Store
	history history.Store
	hooks   *hook.Registry
	logger  *slog.Logger

	// exts collects extensions passed as options; they are registered
	// once the final logger is known.
	exts []hook.Extension
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithHistory sets the long-term persistence collaborator. Defaults to
// history.Noop, which discards snapshots.
func WithHistory(h history.Store) Option {
	return func(e *Engine) {
		if h != nil {
			e.history = h
		}
	}
}

// WithExtension registers a lifecycle extension.
func WithExtension(ext hook.Extension) Option {
	return func(e *Engine) {
		if ext != nil {
			e.exts = append(e.exts, ext)
		}
	}
}

// New creates an Engine backed by the given job store.
func New(store job.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, execq.ErrNoStore
	}

	e := &Engine{
		store:   store,
		history: history.Noop{},
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	e.hooks = hook.NewRegistry(e.logger)
	for _, ext := range e.exts {
		e.hooks.Register(ext)
	}

	return e, nil
}

// Submit validates the command, creates a pending job with a fresh id,
// and enqueues it. The command is rejected with execq.ErrEmptyCommand
// before anything is written if it is empty or whitespace.
func (e *Engine) Submit(ctx context.Context, command string) (*job.Job, error) {
	if strings.TrimSpace(command) == "" {
		return nil, execq.ErrEmptyCommand
	}

	j := job.New(command)
	if err := e.store.EnqueueJob(ctx, j); err != nil {
		return nil, err
	}

	e.logger.Info("job submitted",
		slog.String("job_id", j.ID.String()),
		slog.String("command", j.Command),
	)
	e.hooks.EmitJobSubmitted(ctx, j)

	return j, nil
}

// Claim atomically takes the oldest pending job and marks it running.
// It returns (nil, nil) when nothing is claimable.
func (e *Engine) Claim(ctx context.Context) (*job.Job, error) {
	j, err := e.store.ClaimJob(ctx)
	if err != nil || j == nil {
		return nil, err
	}

	e.logger.Debug("job claimed", slog.String("job_id", j.ID.String()))
	e.hooks.EmitJobClaimed(ctx, j)
	e.snapshot(j)

	return j, nil
}

// Cancel applies the cancellation state machine to the job and reports
// what actually happened. An unknown id is a reportable outcome
// (job.CancelNotFound), not an error.
func (e *Engine) Cancel(ctx context.Context, jobID id.JobID) (job.CancelOutcome, error) {
	outcome, err := e.store.CancelJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, execq.ErrJobNotFound) {
			return job.CancelNotFound, nil
		}
		return "", err
	}

	e.logger.Info("job cancel requested",
		slog.String("job_id", jobID.String()),
		slog.String("outcome", string(outcome)),
	)

	switch outcome {
	case job.CancelledFromQueue, job.CancelledRunning:
		if j, getErr := e.store.GetJob(ctx, jobID); getErr == nil {
			e.hooks.EmitJobCancelled(ctx, j, outcome)
			e.snapshot(j)
		}
	}

	return outcome, nil
}

// Complete records the terminal outcome of a claimed job. If the job was
// cancelled while running, the cancellation stands and the output is
// stored informationally.
func (e *Engine) Complete(ctx context.Context, jobID id.JobID, outcome job.Outcome, output string) (*job.Job, error) {
	j, err := e.store.CompleteJob(ctx, jobID, outcome, output)
	if err != nil {
		return nil, err
	}

	var elapsed time.Duration
	if j.StartedAt != nil {
		end := time.Now().UTC()
		if j.FinishedAt != nil {
			end = *j.FinishedAt
		}
		elapsed = end.Sub(*j.StartedAt)
	}

	e.logger.Info("job completed",
		slog.String("job_id", j.ID.String()),
		slog.String("status", string(j.Status)),
		slog.Duration("elapsed", elapsed),
	)
	e.hooks.EmitJobCompleted(ctx, j, elapsed)
	e.snapshot(j)

	return j, nil
}

// GetStatus retrieves the current record for the id. When the live store
// no longer has it (retention swept the record), the history collaborator
// is consulted before reporting execq.ErrJobNotFound.
func (e *Engine) GetStatus(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	j, err := e.store.GetJob(ctx, jobID)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, execq.ErrJobNotFound) {
		return nil, err
	}
	return e.history.ReadHistory(ctx, jobID)
}

// ListByStatus returns jobs matching the status, oldest first.
func (e *Engine) ListByStatus(ctx context.Context, status job.Status, opts job.ListOpts) ([]*job.Job, error) {
	return e.store.ListJobsByStatus(ctx, status, opts)
}

// QueueLen returns the number of pending job ids in the queue.
func (e *Engine) QueueLen(ctx context.Context) (int64, error) {
	return e.store.QueueLen(ctx)
}

// CountByStatus returns the number of records with the given status, or
// all records when status is empty.
func (e *Engine) CountByStatus(ctx context.Context, status job.Status) (int64, error) {
	return e.store.CountJobs(ctx, status)
}

// pinger is implemented by store backends that can probe reachability.
type pinger interface {
	Ping(ctx context.Context) error
}

// Ping reports whether the underlying store is reachable. Stores without
// a probe of their own are assumed healthy.
func (e *Engine) Ping(ctx context.Context) error {
	if p, ok := e.store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Shutdown notifies extensions that the engine is going away.
func (e *Engine) Shutdown(ctx context.Context) {
	e.hooks.EmitShutdown(ctx)
}

// Hooks returns the extension registry.
func (e *Engine) Hooks() *hook.Registry { return e.hooks }

// Store returns the underlying job store.
func (e *Engine) Store() job.Store { return e.store }

// snapshot mirrors the job into the history store. Fire-and-forget: a
// failed write is logged and never fails the transition that triggered
// it.
func (e *Engine) snapshot(j *job.Job) {
	cp := *j
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.history.WriteHistory(ctx, &cp); err != nil {
			e.logger.Warn("history write failed",
				slog.String("job_id", cp.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()
}
