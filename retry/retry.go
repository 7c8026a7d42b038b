// Package retry runs transient-failure-prone operations under an
// exponential backoff policy. The message store uses it for best-effort
// compensation work, like deleting an orphaned blob after a failed
// metadata write.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Policy configures backoff behavior. The zero value makes up to 4
// attempts starting at 100ms, doubling up to 30s, without jitter.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Initial is the delay before the first retry.
	Initial time.Duration

	// Max caps the backoff delay.
	Max time.Duration

	// Multiplier grows the delay after each retry.
	Multiplier float64

	// Jitter randomizes each delay by +/- this fraction (0..1).
	Jitter float64

	// Retryable decides whether an error is worth another try.
	// Nil treats every error as transient except those wrapped by
	// Permanent.
	Retryable func(error) bool
}

// Sentinel errors.
var (
	// ErrPermanent marks errors that must not be retried.
	ErrPermanent = errors.New("retry: permanent error")

	// ErrExhausted is reported when every attempt failed.
	ErrExhausted = errors.New("retry: attempts exhausted")
)

// Error carries the outcome of a failed run.
type Error struct {
	// Cause is the last error the operation returned.
	Cause error

	// Attempts is how many tries were made.
	Attempts int

	// Reason is ErrExhausted, ErrPermanent, or a context error.
	Reason error
}

func (e *Error) Error() string {
	return fmt.Sprintf("retry: gave up after %d attempts (%s): %s", e.Attempts, e.Reason, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	return errors.Is(e.Reason, target) || errors.Is(e.Cause, target)
}

// Permanent wraps err so Do stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 4
	}
	if p.Initial <= 0 {
		p.Initial = 100 * time.Millisecond
	}
	if p.Max <= 0 {
		p.Max = 30 * time.Second
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2.0
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Jitter > 1 {
		p.Jitter = 1
	}
	if p.Retryable == nil {
		p.Retryable = func(err error) bool { return !errors.Is(err, ErrPermanent) }
	}
	return p
}

// delay computes the backoff before retry number n (zero-based).
func (p Policy) delay(n int) time.Duration {
	d := float64(p.Initial) * math.Pow(p.Multiplier, float64(n))
	if d > float64(p.Max) {
		d = float64(p.Max)
	}
	if p.Jitter > 0 {
		spread := d * p.Jitter
		d = d - spread + rand.Float64()*2*spread
	}
	return time.Duration(d)
}

// Do runs fn until it succeeds, returns a permanent error, exhausts the
// policy's attempts, or the context ends.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var last error
	for attempt := 0; attempt < p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last == nil {
				return err
			}
			return &Error{Cause: last, Attempts: attempt, Reason: err}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = err

		if !p.Retryable(err) {
			return &Error{Cause: err, Attempts: attempt + 1, Reason: ErrPermanent}
		}
		if attempt == p.Attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return &Error{Cause: last, Attempts: attempt + 1, Reason: ctx.Err()}
		case <-time.After(p.delay(attempt)):
		}
	}
	return &Error{Cause: last, Attempts: p.Attempts, Reason: ErrExhausted}
}
