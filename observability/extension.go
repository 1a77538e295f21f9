// Package observability provides an OpenTelemetry metrics extension.
// Register it with the engine to track submission, claim, completion,
// and cancellation rates plus execution latency.
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/execq/execq/hook"
	"github.com/execq/execq/job"
)

// meterName is the instrumentation scope name for execq metrics.
const meterName = "github.com/execq/execq"

// Compile-time interface checks.
var (
	_ hook.Extension    = (*MetricsExtension)(nil)
	_ hook.JobSubmitted = (*MetricsExtension)(nil)
	_ hook.JobClaimed   = (*MetricsExtension)(nil)
	_ hook.JobCompleted = (*MetricsExtension)(nil)
	_ hook.JobCancelled = (*MetricsExtension)(nil)
)

// MetricsExtension records lifecycle metrics.
//
// Instruments:
//   - execq.job.submitted (Int64Counter)
//   - execq.job.claimed (Int64Counter)
//   - execq.job.completed (Int64Counter), attribute: status
//   - execq.job.cancelled (Int64Counter), attribute: outcome
//   - execq.job.duration (Float64Histogram): claim-to-completion time in
//     seconds, attribute: status
type MetricsExtension struct {
	submitted metric.Int64Counter
	claimed   metric.Int64Counter
	completed metric.Int64Counter
	cancelled metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global OTel
// MeterProvider. With no provider configured the instruments are noops
// and the extension costs nothing.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. This variant allows injecting a specific MeterProvider
// for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	submitted, _ := meter.Int64Counter( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"execq.job.submitted",
		metric.WithDescription("Total number of jobs submitted"),
		metric.WithUnit("{job}"),
	)
	claimed, _ := meter.Int64Counter( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"execq.job.claimed",
		metric.WithDescription("Total number of jobs claimed by workers"),
		metric.WithUnit("{job}"),
	)
	completed, _ := meter.Int64Counter( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"execq.job.completed",
		metric.WithDescription("Total number of jobs reaching a terminal status"),
		metric.WithUnit("{job}"),
	)
	cancelled, _ := meter.Int64Counter( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"execq.job.cancelled",
		metric.WithDescription("Total number of jobs cancelled"),
		metric.WithUnit("{job}"),
	)
	duration, _ := meter.Float64Histogram( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"execq.job.duration",
		metric.WithDescription("Claim-to-completion time in seconds"),
		metric.WithUnit("s"),
	)

	return &MetricsExtension{
		submitted: submitted,
		claimed:   claimed,
		completed: completed,
		cancelled: cancelled,
		duration:  duration,
	}
}

// Name implements hook.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnJobSubmitted implements hook.JobSubmitted.
func (m *MetricsExtension) OnJobSubmitted(ctx context.Context, _ *job.Job) error {
	m.submitted.Add(ctx, 1)
	return nil
}

// OnJobClaimed implements hook.JobClaimed.
func (m *MetricsExtension) OnJobClaimed(ctx context.Context, _ *job.Job) error {
	m.claimed.Add(ctx, 1)
	return nil
}

// OnJobCompleted implements hook.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
	attrs := metric.WithAttributes(attribute.String("status", string(j.Status)))
	m.completed.Add(ctx, 1, attrs)
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	return nil
}

// OnJobCancelled implements hook.JobCancelled.
func (m *MetricsExtension) OnJobCancelled(ctx context.Context, _ *job.Job, outcome job.CancelOutcome) error {
	m.cancelled.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(outcome)),
	))
	return nil
}
