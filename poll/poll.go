// Package poll provides the bounded wait-for-condition loop used by the
// collectors. Every wait against the portal UI goes through Until, so
// every wait has an explicit interval and wall-clock budget.
package poll

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ErrTimeout is returned when the condition did not hold within the
// budget. It is a recoverable-by-retry condition for callers, not a crash.
var ErrTimeout = errors.New("poll: condition not met within budget")

// Until polls fn every interval until it returns true, the budget elapses,
// or ctx is cancelled. fn errors propagate immediately; a timeout returns
// ErrTimeout. fn is invoked once before the first sleep.
func Until(ctx context.Context, interval, budget time.Duration, fn func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(budget)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := fn(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Pause sleeps a random duration in [min, max], emulating human pacing
// between input actions. min is clamped to 50ms so network-driven state
// has a chance to settle before the next probe.
func Pause(ctx context.Context, min, max time.Duration) {
	const floor = 50 * time.Millisecond
	if min < floor {
		min = floor
	}
	if max < min {
		max = min
	}
	d := min
	if span := max - min; span > 0 {
		d += rand.N(span)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
