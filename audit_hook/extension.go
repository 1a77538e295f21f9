package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/execq/execq/hook"
	"github.com/execq/execq/job"
)

// Compile-time interface checks.
var (
	_ hook.Extension    = (*Extension)(nil)
	_ hook.JobSubmitted = (*Extension)(nil)
	_ hook.JobClaimed   = (*Extension)(nil)
	_ hook.JobCompleted = (*Extension)(nil)
	_ hook.JobCancelled = (*Extension)(nil)
)

// Recorder is the interface audit backends must implement. It is defined
// locally so callers inject their concrete trail at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges execq lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements hook.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobSubmitted implements hook.JobSubmitted.
func (e *Extension) OnJobSubmitted(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobSubmitted, SeverityInfo, OutcomeSuccess,
		j.ID.String(), nil,
		"command", j.Command,
	)
}

// OnJobClaimed implements hook.JobClaimed.
func (e *Extension) OnJobClaimed(ctx context.Context, j *job.Job) error {
	return e.record(ctx, ActionJobClaimed, SeverityInfo, OutcomeSuccess,
		j.ID.String(), nil,
		"command", j.Command,
		"version", j.Version,
	)
}

// OnJobCompleted implements hook.JobCompleted. Failed commands are normal
// results, but they land in the trail as failures so operators can filter
// on them.
func (e *Extension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	action := ActionJobSucceeded
	severity := SeverityInfo
	outcome := OutcomeSuccess
	if j.Status == job.StatusFailed {
		action = ActionJobFailed
		severity = SeverityWarning
		outcome = OutcomeFailure
	}
	return e.record(ctx, action, severity, outcome,
		j.ID.String(), nil,
		"command", j.Command,
		"status", string(j.Status),
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnJobCancelled implements hook.JobCancelled. It fires only for requests
// that actually cancelled the job.
func (e *Extension) OnJobCancelled(ctx context.Context, j *job.Job, outcome job.CancelOutcome) error {
	return e.record(ctx, ActionJobCancelled, SeverityInfo, OutcomeSuccess,
		j.ID.String(), nil,
		"command", j.Command,
		"cancel_outcome", string(outcome),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resourceID string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   ResourceJob,
		Category:   CategoryJob,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
