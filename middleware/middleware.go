// Package middleware provides composable middleware for command execution.
// Middleware wraps the subprocess run synchronously and can modify execution
// (recover from panics, log, enforce an opt-in deadline, etc.).
package middleware

import (
	"context"

	"github.com/execq/execq/job"
)

// Handler is the terminal function that runs the job's command and returns
// its combined output.
type Handler func(ctx context.Context) (string, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the job being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, j *job.Job, next Handler) (string, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover) executes as:
//
//	logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (string, error) {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (string, error) {
				return mw(ctx, j, prev)
			}
		}
		return h(ctx)
	}
}
