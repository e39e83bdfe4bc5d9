package processor

import (
	"time"

	apperrors "invoicepdf/internal/pkg/errors"
)

// RetryPolicy decides what to do with a failed render attempt.
// attemptCount is the number of attempts already consumed before the one
// that just failed, so backoff grows base, 2*base, 4*base, ...
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, first try included.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    5 * time.Minute,
	}
}

type Decision struct {
	Retry bool
	After time.Duration
}

// Decide classifies err and checks the remaining budget. Terminal failure
// kinds and an exhausted budget both end the job.
func (p RetryPolicy) Decide(attemptCount int, err error) Decision {
	if !apperrors.IsRetryableRender(err) {
		return Decision{}
	}
	if attemptCount+1 >= p.MaxAttempts {
		return Decision{}
	}
	return Decision{Retry: true, After: p.Backoff(attemptCount)}
}

// Backoff is base_delay * 2^attemptCount, capped at MaxDelay.
func (p RetryPolicy) Backoff(attemptCount int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attemptCount; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
