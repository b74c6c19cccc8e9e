package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// XRateLimiter adapts golang.org/x/time/rate.Limiter to the Limiter
// interface. It is offered as an alternative to Bucket for operators who
// want the standard library-adjacent limiter's exact-interval scheduling
// (WaitN-style smoothing) instead of Bucket's simple burst-then-refill
// behavior; both are driven by the same capacity/rate configuration.
type XRateLimiter struct {
	l *rate.Limiter
}

// NewXRateLimiter builds a limiter allowing ratePerSecond sustained,
// bursting up to capacity.
func NewXRateLimiter(ratePerSecond float64, capacity int) *XRateLimiter {
	return &XRateLimiter{l: rate.NewLimiter(rate.Limit(ratePerSecond), capacity)}
}

func (x *XRateLimiter) Allow() bool { return x.l.Allow() }

func (x *XRateLimiter) AllowN(n int) bool {
	return x.l.AllowN(time.Now(), n)
}

// RetryAfter estimates the wait for one token by reserving it and
// immediately cancelling the reservation, so the estimate doesn't actually
// consume a slot a subsequent real Allow/AllowN would need.
func (x *XRateLimiter) RetryAfter() time.Duration {
	r := x.l.Reserve()
	delay := r.Delay()
	r.Cancel()
	if delay < 0 {
		return 0
	}
	return delay
}
