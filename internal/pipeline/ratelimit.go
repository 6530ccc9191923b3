package pipeline

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket shared across all outbound calls to one
// backend class. Acquire blocks until a token is available or the
// context ends.
type Limiter struct {
	mu        sync.Mutex
	tokens    float64
	capacity  float64
	perSecond float64
	last      time.Time
}

// NewLimiter allows perMinute calls sustained with the given burst.
func NewLimiter(perMinute, burst int) *Limiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		tokens:    float64(burst),
		capacity:  float64(burst),
		perSecond: float64(perMinute) / 60.0,
		last:      time.Now(),
	}
}

// Acquire takes one token, waiting as needed.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refill(time.Now())
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := time.Duration((1 - l.tokens) / l.perSecond * float64(time.Second))
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Limiter) refill(now time.Time) {
	elapsed := now.Sub(l.last).Seconds()
	if elapsed <= 0 {
		return
	}
	l.last = now
	l.tokens += elapsed * l.perSecond
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
}
