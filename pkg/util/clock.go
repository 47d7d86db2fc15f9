package util

import (
	"context"
	"time"
)

// Clock abstracts time for components that wait: the price gate's
// inter-attempt delay, the scheduler's retry backoff, and the simulated
// venue/settlement latencies.
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

type RealClock struct{}

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Now() time.Time                         { return time.Now() }

// Wait blocks for d or until ctx is done, whichever comes first.
func Wait(ctx context.Context, clock Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clock.After(d):
		return nil
	}
}
