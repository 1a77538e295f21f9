package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/execq/execq"
	"github.com/execq/execq/api"
	"github.com/execq/execq/client"
	"github.com/execq/execq/engine"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
	"github.com/execq/execq/store/memory"
)

func newTestClient(t *testing.T) (*client.Client, *engine.Engine) {
	t.Helper()

	eng, err := engine.New(memory.New(),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	srv := httptest.NewServer(api.New(eng).Handler())
	t.Cleanup(srv.Close)
	return client.New(srv.URL), eng
}

func TestSubmitAndGet(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()

	j, err := c.Submit(ctx, "echo hello")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if j.Status != job.StatusPending || j.Command != "echo hello" {
		t.Fatalf("submitted = %+v", j)
	}

	got, err := c.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != j.ID {
		t.Fatalf("got id %s, want %s", got.ID, j.ID)
	}
}

func TestGetUnknownIsNotFound(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	_, err := c.Get(context.Background(), id.NewJobID())
	if !errors.Is(err, execq.ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestCancelOutcomes(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)
	ctx := context.Background()

	j, err := c.Submit(ctx, "sleep 60")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	outcome, err := c.Cancel(ctx, j.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if outcome != job.CancelledFromQueue {
		t.Fatalf("outcome = %s, want cancelled_from_queue", outcome)
	}

	outcome, err = c.Cancel(ctx, j.ID)
	if err != nil {
		t.Fatalf("repeat Cancel: %v", err)
	}
	if outcome != job.CancelAlreadyCancelled {
		t.Fatalf("repeat outcome = %s, want already_cancelled", outcome)
	}

	// Unknown ids report the outcome, not an error.
	outcome, err = c.Cancel(ctx, id.NewJobID())
	if err != nil {
		t.Fatalf("unknown Cancel: %v", err)
	}
	if outcome != job.CancelNotFound {
		t.Fatalf("unknown outcome = %s, want not_found", outcome)
	}
}

func TestListAndCounts(t *testing.T) {
	t.Parallel()
	c, eng := newTestClient(t)
	ctx := context.Background()

	for range 3 {
		if _, err := eng.Submit(ctx, "true"); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if _, err := eng.Claim(ctx); err != nil {
		t.Fatalf("claim: %v", err)
	}

	pending, err := c.List(ctx, job.StatusPending)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}

	counts, err := c.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Pending != 2 || counts.Running != 1 || counts.QueueLen != 2 {
		t.Fatalf("counts = %+v", counts)
	}
}

func TestWaitReachesTerminal(t *testing.T) {
	t.Parallel()
	c, eng := newTestClient(t)
	ctx := context.Background()

	j, err := c.Submit(ctx, "echo done")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Drive the job to completion while Wait polls.
	go func() {
		claimed, claimErr := eng.Claim(ctx)
		if claimErr != nil || claimed == nil {
			return
		}
		_, _ = eng.Complete(ctx, claimed.ID, job.OutcomeSucceeded, "done\n")
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	got, err := c.Wait(waitCtx, j.ID, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got.Status != job.StatusSucceeded || got.Output != "done\n" {
		t.Fatalf("waited job = %+v", got)
	}
}

func TestHealthy(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	if err := c.Healthy(context.Background()); err != nil {
		t.Fatalf("Healthy: %v", err)
	}
}
