package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	audithook "github.com/execq/execq/audit_hook"
	"github.com/execq/execq/job"
)

// memRecorder collects audit events in memory.
type memRecorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
	err    error
}

func (r *memRecorder) Record(_ context.Context, evt *audithook.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *memRecorder) all() []*audithook.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*audithook.AuditEvent(nil), r.events...)
}

func TestLifecycleEvents(t *testing.T) {
	t.Parallel()

	rec := &memRecorder{}
	ext := audithook.New(rec)
	ctx := context.Background()

	j := job.New("echo audit")
	if err := ext.OnJobSubmitted(ctx, j); err != nil {
		t.Fatalf("OnJobSubmitted: %v", err)
	}
	if err := ext.OnJobClaimed(ctx, j); err != nil {
		t.Fatalf("OnJobClaimed: %v", err)
	}
	j.Status = job.StatusSucceeded
	if err := ext.OnJobCompleted(ctx, j, 25*time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}
	if err := ext.OnJobCancelled(ctx, j, job.CancelledRunning); err != nil {
		t.Fatalf("OnJobCancelled: %v", err)
	}

	events := rec.all()
	if len(events) != 4 {
		t.Fatalf("events = %d, want 4", len(events))
	}

	wantActions := []string{
		audithook.ActionJobSubmitted,
		audithook.ActionJobClaimed,
		audithook.ActionJobSucceeded,
		audithook.ActionJobCancelled,
	}
	for i, want := range wantActions {
		if events[i].Action != want {
			t.Errorf("event %d action = %q, want %q", i, events[i].Action, want)
		}
		if events[i].ResourceID != j.ID.String() {
			t.Errorf("event %d resource id = %q, want %q", i, events[i].ResourceID, j.ID)
		}
	}
}

func TestFailedJobIsAuditFailure(t *testing.T) {
	t.Parallel()

	rec := &memRecorder{}
	ext := audithook.New(rec)

	j := job.New("exit 1")
	j.Status = job.StatusFailed
	if err := ext.OnJobCompleted(context.Background(), j, time.Millisecond); err != nil {
		t.Fatalf("OnJobCompleted: %v", err)
	}

	events := rec.all()
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	evt := events[0]
	if evt.Action != audithook.ActionJobFailed {
		t.Errorf("action = %q, want %q", evt.Action, audithook.ActionJobFailed)
	}
	if evt.Outcome != audithook.OutcomeFailure || evt.Severity != audithook.SeverityWarning {
		t.Errorf("outcome/severity = %q/%q", evt.Outcome, evt.Severity)
	}
}

func TestWithActionsFilters(t *testing.T) {
	t.Parallel()

	rec := &memRecorder{}
	ext := audithook.New(rec, audithook.WithActions(audithook.ActionJobCancelled))
	ctx := context.Background()

	j := job.New("true")
	if err := ext.OnJobSubmitted(ctx, j); err != nil {
		t.Fatalf("OnJobSubmitted: %v", err)
	}
	if err := ext.OnJobCancelled(ctx, j, job.CancelledFromQueue); err != nil {
		t.Fatalf("OnJobCancelled: %v", err)
	}

	events := rec.all()
	if len(events) != 1 || events[0].Action != audithook.ActionJobCancelled {
		t.Fatalf("events = %+v, want only the cancel", events)
	}
}

func TestRecorderFailureDoesNotPropagate(t *testing.T) {
	t.Parallel()

	rec := &memRecorder{err: errors.New("trail unavailable")}
	ext := audithook.New(rec,
		audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	if err := ext.OnJobSubmitted(context.Background(), job.New("true")); err != nil {
		t.Fatalf("recorder failure leaked: %v", err)
	}
}

func TestRecorderFunc(t *testing.T) {
	t.Parallel()

	var got *audithook.AuditEvent
	ext := audithook.New(audithook.RecorderFunc(
		func(_ context.Context, evt *audithook.AuditEvent) error {
			got = evt
			return nil
		},
	))

	j := job.New("echo fn")
	if err := ext.OnJobSubmitted(context.Background(), j); err != nil {
		t.Fatalf("OnJobSubmitted: %v", err)
	}
	if got == nil || got.Metadata["command"] != "echo fn" {
		t.Fatalf("event = %+v", got)
	}
}
