// Package retry runs calls to external collaborators with a per-attempt
// timeout and a bounded number of attempts.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Policy bounds a collaborator call.
type Policy struct {
	// Timeout applies to each attempt separately.
	Timeout time.Duration
	// Attempts is the total number of tries, including the first.
	Attempts uint
	// Wait is the pause between attempts.
	Wait time.Duration
	// Notify, when set, is called before each retry.
	Notify func(err error, wait time.Duration)
}

// Default allows one retry with a five second timeout per attempt.
func Default() Policy {
	return Policy{Timeout: 5 * time.Second, Attempts: 2, Wait: 200 * time.Millisecond}
}

// Permanent marks err as not worth retrying. Do returns the unwrapped error.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do calls op until it succeeds, returns a Permanent error, or the policy
// is exhausted. Each attempt receives its own deadline derived from ctx.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	if p.Attempts == 0 {
		p.Attempts = 1
	}

	attempt := func() (T, error) {
		if p.Timeout <= 0 {
			return op(ctx)
		}
		attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
		defer cancel()
		return op(attemptCtx)
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(p.Wait)),
		backoff.WithMaxTries(p.Attempts),
	}
	if p.Notify != nil {
		opts = append(opts, backoff.WithNotify(p.Notify))
	}
	return backoff.Retry(ctx, attempt, opts...)
}
