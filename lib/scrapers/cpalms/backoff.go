package cpalms

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
)

// Backoff describes the wait before a retry: Base * 2^(retry-1), capped at
// Max, shifted by a random amount in [-Jitter, Jitter].
type Backoff struct {
	Base time.Duration
	// zero means Base * 2^10
	Max    time.Duration
	Jitter time.Duration
}

func DefaultBackoff() Backoff {
	return Backoff{
		Base:   2 * time.Second,
		Max:    2 * time.Minute,
		Jitter: time.Second,
	}
}

func (b Backoff) maxDelay() time.Duration {
	if b.Max <= 0 {
		return b.Base << 10
	}
	return max(b.Max, b.Base)
}

func (b Backoff) exponential(retry int) time.Duration {
	d := b.Base
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= b.maxDelay() {
			return b.maxDelay()
		}
	}
	return d
}

// Bounds returns the inclusive range the wait before the `retry`-th retry
// falls into (retry 1 follows the first attempt).
func (b Backoff) Bounds(retry int) (time.Duration, time.Duration) {
	if retry < 1 {
		return 0, 0
	}
	d := b.exponential(retry)
	return max(d-b.Jitter, 0), d + b.Jitter
}

func isTransient(err error) bool {
	var transient *TransientFetchError
	return errors.As(err, &transient)
}

// retryPolicy retries transient failures only, anything else aborts the
// execution and is returned as is.
func (b Backoff) retryPolicy(ctx context.Context, rawUrl string, maxAttempts int) retrypolicy.RetryPolicy[Page] {
	builder := retrypolicy.NewBuilder[Page]().
		HandleIf(func(_ Page, err error) bool {
			return err != nil
		}).
		AbortIf(func(_ Page, err error) bool {
			return err != nil && !isTransient(err)
		}).
		WithMaxAttempts(maxAttempts).
		ReturnLastFailure().
		OnRetryScheduled(func(e failsafe.ExecutionScheduledEvent[Page]) {
			slog.DebugContext(ctx, "waiting before retry",
				"url", rawUrl,
				"attempt", e.Attempts()+1,
				"delay", e.Delay,
			)
		})
	if b.maxDelay() > b.Base {
		builder = builder.WithBackoff(b.Base, b.maxDelay())
	} else {
		builder = builder.WithDelay(b.Base)
	}
	if b.Jitter > 0 {
		builder = builder.WithJitter(b.Jitter)
	}
	return builder.Build()
}

// SleepContext waits for d, returning early with ctx.Err() if ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
