// Package wait holds the bounded polling and settle primitives used by the
// navigator and the locator. Nothing here waits without a deadline.
package wait

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a condition is still false at the deadline.
var ErrTimeout = errors.New("wait: timed out")

// DefaultInterval is used when Until is given a non-positive interval.
const DefaultInterval = 250 * time.Millisecond

// Condition reports whether the awaited state holds. A non-nil error stops
// the wait immediately.
type Condition func() (bool, error)

// Until evaluates cond, then every interval, until it returns true, it
// fails, ctx is done, or timeout elapses. A zero timeout means a single
// evaluation. The condition is always evaluated at least once.
func Until(ctx context.Context, timeout, interval time.Duration, cond Condition) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	deadline := time.Now().Add(timeout)

	for {
		ok, err := cond()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrTimeout
		}
		if interval > remaining {
			interval = remaining
		}

		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Settle sleeps for d unless ctx ends first. It is for places where the
// remote page exposes no readiness signal to poll.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
