package audithook

// Action constants identify what happened.
const (
	ActionJobSubmitted = "job.submitted"
	ActionJobClaimed   = "job.claimed"
	ActionJobSucceeded = "job.succeeded"
	ActionJobFailed    = "job.failed"
	ActionJobCancelled = "job.cancelled"
)

// Resource constants identify what the action applied to.
const (
	ResourceJob = "job"
)

// Category constants group related actions.
const (
	CategoryJob = "job"
)
