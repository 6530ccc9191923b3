package pipeline

import (
	"math/rand"
	"time"
)

// RetryPolicy is the single retry/backoff policy applied uniformly to
// every generation attempt; call sites never roll their own loops.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Delay computes the backoff before the given (1-based) next attempt:
// exponential with up to 25% jitter, capped at MaxDelay. The delay is
// applied as a queue readiness time, never by blocking a worker.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay << (attempt - 1)
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

// Exhausted reports whether attemptsMade used up the retry budget.
func (p RetryPolicy) Exhausted(attemptsMade int) bool {
	return attemptsMade >= p.MaxAttempts
}
