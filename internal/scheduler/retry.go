package scheduler

import (
	"context"
	"time"

	"github.com/aristath/sentinel/internal/apperr"
)

// backoff returns the delay before retry attempt n (1-indexed): 1s,
// 2s, 4s, 8s, ... capped at 30s, matching the "exponential backoff"
// retry policy.
func backoff(attempt int) time.Duration {
	d := time.Second << uint(attempt-1)
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// runWithRetry invokes handler, retrying only apperr.KindTransientDependencyError
// failures up to maxRetries times with exponential backoff. Any other
// error (StateMachineViolation, ContractViolation, ModelLoadFailure,
// DQGateFailure, ...) is returned immediately without retry: those
// are not transient and a retry would not help.
func runWithRetry(ctx context.Context, maxRetries int, handler func() (Summary, error)) (Summary, error) {
	var last Summary
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return last, ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}
		summary, err := handler()
		if err == nil {
			return summary, nil
		}
		last, lastErr = summary, err
		if !apperr.Is(err, apperr.KindTransientDependencyError) {
			return last, lastErr
		}
	}
	return last, lastErr
}
