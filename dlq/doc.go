// Package dlq treats the set of failed jobs as a dead letter queue and
// provides inspection and replay over it.
//
// The core never deletes or retries jobs on its own: a command that
// exits non-zero simply lands in the failed state and stays there.
// Replay resubmits a failed job's command as a brand-new pending job
// with a fresh id; the failed record is left untouched as the audit
// trail of the original attempt.
package dlq
