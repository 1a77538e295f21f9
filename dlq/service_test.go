package dlq_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/execq/execq"
	"github.com/execq/execq/dlq"
	"github.com/execq/execq/engine"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
	"github.com/execq/execq/store/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*dlq.Service, *engine.Engine) {
	t.Helper()

	eng, err := engine.New(memory.New(), engine.WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return dlq.NewService(eng, dlq.WithLogger(discardLogger())), eng
}

// failJob drives a submitted job to the failed state.
func failJob(t *testing.T, eng *engine.Engine, command, output string) *job.Job {
	t.Helper()
	ctx := context.Background()

	if _, err := eng.Submit(ctx, command); err != nil {
		t.Fatalf("submit: %v", err)
	}
	claimed, err := eng.Claim(ctx)
	if err != nil || claimed == nil {
		t.Fatalf("claim: %v %v", claimed, err)
	}
	failed, err := eng.Complete(ctx, claimed.ID, job.OutcomeFailed, output)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	return failed
}

func TestListAndCount(t *testing.T) {
	t.Parallel()
	svc, eng := newTestService(t)
	ctx := context.Background()

	failJob(t, eng, "exit 1", "boom")
	failJob(t, eng, "exit 2", "bang")
	if _, err := eng.Submit(ctx, "echo fine"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	entries, err := svc.List(ctx, job.ListOpts{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	n, err := svc.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func TestReplayCreatesFreshJob(t *testing.T) {
	t.Parallel()
	svc, eng := newTestService(t)
	ctx := context.Background()

	failed := failJob(t, eng, "exit 7", "boom")

	replayed, err := svc.Replay(ctx, failed.ID)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if replayed.ID == failed.ID {
		t.Fatal("replay reused the failed job's id")
	}
	if replayed.Command != failed.Command || replayed.Status != job.StatusPending {
		t.Fatalf("replayed = %+v", replayed)
	}

	// The original record is untouched.
	orig, err := eng.GetStatus(ctx, failed.ID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if orig.Status != job.StatusFailed || orig.Output != "boom" {
		t.Fatalf("original = %+v", orig)
	}
}

func TestReplayRejectsNonFailed(t *testing.T) {
	t.Parallel()
	svc, eng := newTestService(t)
	ctx := context.Background()

	pending, err := eng.Submit(ctx, "echo pending")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if _, err := svc.Replay(ctx, pending.ID); !errors.Is(err, dlq.ErrNotReplayable) {
		t.Fatalf("err = %v, want ErrNotReplayable", err)
	}
}

func TestReplayUnknownJob(t *testing.T) {
	t.Parallel()
	svc, _ := newTestService(t)

	if _, err := svc.Replay(context.Background(), id.NewJobID()); !errors.Is(err, execq.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestReplayAll(t *testing.T) {
	t.Parallel()
	svc, eng := newTestService(t)
	ctx := context.Background()

	failJob(t, eng, "exit 1", "a")
	failJob(t, eng, "exit 2", "b")

	replayed, err := svc.ReplayAll(ctx)
	if err != nil {
		t.Fatalf("ReplayAll: %v", err)
	}
	if len(replayed) != 2 {
		t.Fatalf("replayed = %d, want 2", len(replayed))
	}

	pending, err := eng.ListByStatus(ctx, job.StatusPending, job.ListOpts{})
	if err != nil {
		t.Fatalf("ListByStatus: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending after replay = %d, want 2", len(pending))
	}
}
