package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/execq/execq"
	"github.com/execq/execq/backoff"
	"github.com/execq/execq/engine"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
	"github.com/execq/execq/middleware"
	"github.com/execq/execq/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e, err := engine.New(memory.New(), engine.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return e
}

func waitForStatus(t *testing.T, e *engine.Engine, jobID id.JobID, want job.Status) *job.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		j, err := e.GetStatus(context.Background(), jobID)
		if err != nil {
			t.Fatalf("get status: %v", err)
		}
		if j.Status == want {
			return j
		}
		if time.Now().After(deadline) {
			t.Fatalf("job %s stuck in %s, want %s", jobID, j.Status, want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestExecutorSuccess(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	ex := NewExecutor(e, nil, 0, discardLogger())

	submitted, err := e.Submit(ctx, "echo hello")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	j, err := e.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := ex.Execute(ctx, j); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err := e.GetStatus(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got.Status != job.StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", got.Status)
	}
	if got.Output != "hello\n" {
		t.Fatalf("output = %q, want %q", got.Output, "hello\n")
	}
}

func TestExecutorNonZeroExit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	ex := NewExecutor(e, nil, 0, discardLogger())

	submitted, err := e.Submit(ctx, "echo boom >&2; exit 3")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	j, err := e.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := ex.Execute(ctx, j); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err := e.GetStatus(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got.Status != job.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.Output, "boom") {
		t.Fatalf("output = %q, want stderr captured", got.Output)
	}
}

func TestExecutorCancelledJobKeepsCancellation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	ex := NewExecutor(e, nil, 0, discardLogger())

	submitted, err := e.Submit(ctx, "echo done")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	j, err := e.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Cancel lands while the worker holds the job.
	out, err := e.Cancel(ctx, submitted.ID)
	if err != nil || out != job.CancelledRunning {
		t.Fatalf("cancel = %s, %v; want cancelled_running, nil", out, err)
	}

	if err := ex.Execute(ctx, j); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err := e.GetStatus(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got.Status != job.StatusCancelled {
		t.Fatalf("status = %s, completion must not overwrite cancellation", got.Status)
	}
	if got.Output != "done\n" {
		t.Fatalf("output = %q, want informational output kept", got.Output)
	}
}

// flakyQueue fails Complete a fixed number of times before delegating.
type flakyQueue struct {
	Queue
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyQueue) Complete(ctx context.Context, jobID id.JobID, outcome job.Outcome, output string) (*job.Job, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return nil, errors.New("store unreachable")
	}
	return f.Queue.Complete(ctx, jobID, outcome, output)
}

func TestExecutorRetriesCompletion(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	fq := &flakyQueue{Queue: e, failures: 2}
	ex := NewExecutor(fq, backoff.NewConstant(time.Millisecond), 5, discardLogger())

	submitted, err := e.Submit(ctx, "echo persisted")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	j, err := e.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := ex.Execute(ctx, j); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err := e.GetStatus(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got.Status != job.StatusSucceeded {
		t.Fatalf("status = %s, result was dropped despite retries", got.Status)
	}
}

func TestExecutorDoesNotRetryPermanentRejection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	ex := NewExecutor(e, backoff.NewConstant(time.Millisecond), 5, discardLogger())

	// Executing a job the store never saw: Complete rejects with
	// ErrJobNotFound and the executor must not spin on it.
	ghost := job.New("echo ghost")
	start := time.Now()
	err := ex.Execute(ctx, ghost)
	if !errors.Is(err, execq.ErrJobNotFound) {
		t.Fatalf("execute err = %v, want ErrJobNotFound", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("permanent rejection was retried")
	}
}

func TestExecutorTimeoutMiddleware(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	ex := NewExecutor(e, nil, 0, discardLogger(), middleware.Timeout(100*time.Millisecond))

	submitted, err := e.Submit(ctx, "sleep 30")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	j, err := e.Claim(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	if err := ex.Execute(ctx, j); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got, err := e.GetStatus(ctx, submitted.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got.Status != job.StatusFailed {
		t.Fatalf("status = %s, want failed after deadline", got.Status)
	}
}

func TestPoolProcessesJobs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	ex := NewExecutor(e, nil, 0, discardLogger())
	p := NewPool(e, ex,
		WithPoolConcurrency(3),
		WithPollInterval(10*time.Millisecond),
		WithPoolLogger(discardLogger()),
	)

	var ids []id.JobID
	for range 10 {
		j, err := e.Submit(ctx, "echo ok")
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		ids = append(ids, j.ID)
	}

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop(context.Background())

	for _, jobID := range ids {
		got := waitForStatus(t, e, jobID, job.StatusSucceeded)
		if got.Output != "ok\n" {
			t.Fatalf("output = %q, want %q", got.Output, "ok\n")
		}
	}
}

func TestPoolSkipsCancelledJobs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	ex := NewExecutor(e, nil, 0, discardLogger())
	p := NewPool(e, ex,
		WithPoolConcurrency(1),
		WithPollInterval(10*time.Millisecond),
		WithPoolLogger(discardLogger()),
	)

	// Cancel before the pool starts: the job must never run.
	doomed, err := e.Submit(ctx, "echo should-never-run")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.Cancel(ctx, doomed.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	survivor, err := e.Submit(ctx, "echo survivor")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.Stop(context.Background())

	waitForStatus(t, e, survivor.ID, job.StatusSucceeded)

	got, err := e.GetStatus(ctx, doomed.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got.Status != job.StatusCancelled || got.StartedAt != nil {
		t.Fatalf("cancelled job was executed: %+v", got)
	}
}

func TestPoolGracefulStop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	ex := NewExecutor(e, nil, 0, discardLogger())
	p := NewPool(e, ex,
		WithPoolConcurrency(2),
		WithPollInterval(10*time.Millisecond),
		WithPoolLogger(discardLogger()),
	)

	j, err := e.Submit(ctx, "sleep 0.2; echo drained")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, e, j.ID, job.StatusRunning)

	// Stop with ample time: the in-flight command finishes and reports.
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	got, err := e.GetStatus(ctx, j.ID)
	if err != nil {
		t.Fatalf("get status: %v", err)
	}
	if got.Status != job.StatusSucceeded {
		t.Fatalf("status = %s, in-flight job was not drained", got.Status)
	}
}

func TestPoolRestart(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newTestEngine(t)
	ex := NewExecutor(e, nil, 0, discardLogger())
	p := NewPool(e, ex,
		WithPoolConcurrency(2),
		WithPollInterval(10*time.Millisecond),
		WithPoolLogger(discardLogger()),
	)

	first, err := e.Submit(ctx, "echo first")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitForStatus(t, e, first.ID, job.StatusSucceeded)
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	// A restarted pool must claim again; a stale stop signal would leave
	// the new loops exiting immediately.
	second, err := e.Submit(ctx, "echo second")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer p.Stop(context.Background())

	waitForStatus(t, e, second.ID, job.StatusSucceeded)
}

func TestPoolStartIdempotent(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t)
	ex := NewExecutor(e, nil, 0, discardLogger())
	p := NewPool(e, ex, WithPoolLogger(discardLogger()))

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
