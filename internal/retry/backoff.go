// Package retry reopens frame sources after a transport loss, waiting
// with exponential backoff between attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// PermanentError wraps an error to signal that retrying will not help.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  Do returns the inner error
// without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Backoff is an exponential retry policy with optional jitter.
type Backoff struct {
	// InitialDelay is the wait before the second attempt (default 1s).
	InitialDelay time.Duration
	// MaxDelay caps a single wait (default 60s).
	MaxDelay time.Duration
	// Multiplier grows the wait after every attempt (default 2.0).
	Multiplier float64
	// MaxAttempts is the total number of tries including the first;
	// 0 retries until the context ends.
	MaxAttempts int
	// Jitter randomises every wait by ±25%.
	Jitter bool

	// Retryable classifies failures.  When set, an error it rejects
	// ends the loop as if it were Permanent.
	Retryable func(error) bool
	// OnRetry runs before each wait with the failed attempt number.
	OnRetry func(attempt int, wait time.Duration, err error)
}

// DefaultBackoff returns the policy used for reconnecting to a source.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
		Jitter:       true,
	}
}

// Do calls fn until it succeeds, fails permanently, or the attempt
// budget or ctx runs out.  attempt is 1-based.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	r := b.Retrier()
	defer r.Stop()

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if b.Retryable != nil && !b.Retryable(err) {
			return err
		}
		if err := r.Wait(ctx, err); err != nil {
			return err
		}
	}
}

// ── Retrier ──────────────────────────────────────────────────────────

// Retrier is one run of attempts under a Backoff, for loops that decide
// for themselves what counts as a failed attempt.  Do is the closure
// form.  Retryable is not consulted.
type Retrier struct {
	b        *Backoff
	attempts int
	delay    time.Duration
	timer    *time.Timer
}

// Retrier starts a run with a full attempt budget.
func (b *Backoff) Retrier() *Retrier {
	r := &Retrier{b: b}
	r.Reset()
	return r
}

// Reset forgets earlier failures: the budget is full again and the next
// wait is InitialDelay.
func (r *Retrier) Reset() {
	r.attempts = 0
	r.delay = r.b.InitialDelay
	if r.delay <= 0 {
		r.delay = time.Second
	}
}

// Attempts returns the failures recorded since the last Reset.
func (r *Retrier) Attempts() int { return r.attempts }

// Wait records err as a failed attempt and sleeps before the next one.
// It returns an error wrapping err once MaxAttempts failures have been
// recorded, and the ctx error when ctx ends during the wait.
func (r *Retrier) Wait(ctx context.Context, err error) error {
	r.attempts++
	if r.b.MaxAttempts > 0 && r.attempts >= r.b.MaxAttempts {
		return fmt.Errorf("giving up after %d attempts: %w", r.attempts, err)
	}

	wait := r.delay
	if r.b.Jitter {
		wait = addJitter(wait)
	}
	if r.b.OnRetry != nil {
		r.b.OnRetry(r.attempts, wait, err)
	}

	if r.timer == nil {
		r.timer = time.NewTimer(wait)
	} else {
		r.timer.Reset(wait)
	}
	select {
	case <-ctx.Done():
		r.timer.Stop()
		return fmt.Errorf("retry cancelled: %w", ctx.Err())
	case <-r.timer.C:
	}

	multiplier := r.b.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	maxDelay := r.b.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 60 * time.Second
	}
	r.delay = min(time.Duration(float64(r.delay)*multiplier), maxDelay)
	return nil
}

// Stop releases the timer.
func (r *Retrier) Stop() {
	if r.timer != nil {
		r.timer.Stop()
	}
}

// addJitter adds ±25% randomisation to d, never returning less than
// a millisecond.
func addJitter(d time.Duration) time.Duration {
	quarter := float64(d) * 0.25
	delta := rand.Float64()*2*quarter - quarter
	return time.Duration(math.Max(float64(d)+delta, float64(time.Millisecond)))
}
