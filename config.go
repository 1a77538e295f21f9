package execq

import "time"

// Config holds configuration for a worker process.
type Config struct {
	// Concurrency is the number of concurrent worker loops.
	Concurrency int

	// PollInterval is how often an idle worker polls for a claimable job.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// CompleteRetries is how many times a worker retries recording a
	// terminal outcome when the store is unreachable. The job's result
	// must never be silently dropped.
	CompleteRetries int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     4,
		PollInterval:    1 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		CompleteRetries: 5,
	}
}
