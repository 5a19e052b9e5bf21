// Package retry provides the synchronous exponential backoff wrapper applied
// around flaky remote calls: agent invocations, status document writes, and
// tool-output submission.
package retry

import (
	"context"
	"errors"
	"time"
)

const (
	defaultAttempts   = 3
	defaultDelay      = 1500 * time.Millisecond
	defaultMultiplier = 1.5
)

// Options controls the retry loop.
type Options struct {
	// Attempts is the total number of invocations, including the first.
	Attempts int
	// Delay is the sleep before the second attempt.
	Delay time.Duration
	// Multiplier scales the delay after each failed attempt.
	Multiplier float64
	// Sleeper overrides how delays are performed (used in tests).
	Sleeper func(time.Duration)
}

func (o Options) normalized() Options {
	if o.Attempts <= 0 {
		o.Attempts = defaultAttempts
	}
	if o.Delay < 0 {
		o.Delay = 0
	} else if o.Delay == 0 {
		o.Delay = defaultDelay
	}
	if o.Multiplier <= 0 {
		o.Multiplier = defaultMultiplier
	}
	return o
}

// Do invokes op until it succeeds or attempts are exhausted, sleeping with
// exponential backoff between attempts. The last error is returned as-is so
// callers can inspect it. Context cancellation stops the loop immediately.
func Do(ctx context.Context, op func() error, opts Options) error {
	opts = opts.normalized()

	delay := opts.Delay
	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		if attempt == opts.Attempts {
			break
		}
		if err := sleep(ctx, delay, opts.Sleeper); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * opts.Multiplier)
	}
	return lastErr
}

// Value invokes op with the same policy as Do and returns its result.
func Value[T any](ctx context.Context, op func() (T, error), opts Options) (T, error) {
	var out T
	err := Do(ctx, func() error {
		value, opErr := op()
		if opErr != nil {
			return opErr
		}
		out = value
		return nil
	}, opts)
	return out, err
}

func sleep(ctx context.Context, delay time.Duration, sleeper func(time.Duration)) error {
	if delay <= 0 {
		return nil
	}
	if sleeper != nil {
		sleeper(delay)
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	if ctx == nil {
		<-timer.C
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
