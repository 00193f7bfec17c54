package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy schedules ledger sync retries with exponential backoff.
// Jitter spreads each delay by up to ±Jitter of its value so tasks failed by
// the same Sheets outage do not retry in lockstep.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        float64

	random func() float64
}

// Exhausted reports whether a task that just failed its attempt-th try
// (1-based) should be marked failed instead of rescheduled.
func (r RetryPolicy) Exhausted(attempt int) bool {
	return r.MaxRetries > 0 && attempt >= r.MaxRetries
}

// NextDelay returns the backoff before retry number attempt (1-based),
// clamped to MaxDelay after jitter.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	if j := math.Min(r.Jitter, 1); j > 0 {
		random := r.random
		if random == nil {
			random = rand.Float64
		}
		delay *= 1 + j*(2*random()-1)
	}
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}
	if delay < float64(time.Second) {
		return time.Second
	}
	return time.Duration(delay)
}

// NextRetryAt is the UTC time the sync queue should pick the task up again.
func (r RetryPolicy) NextRetryAt(now time.Time, attempt int) time.Time {
	return now.Add(r.NextDelay(attempt)).UTC()
}
