package middleware

import (
	"context"
	"time"

	"github.com/execq/execq/job"
)

// Timeout returns middleware that enforces an execution deadline. There is
// no built-in timeout: this middleware is the explicit opt-in policy for
// operators that want one. A non-positive d makes it a pass-through.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *job.Job, next Handler) (string, error) {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
