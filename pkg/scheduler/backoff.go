package scheduler

import "time"

const maxBackoff = 60 * time.Second

// retryBackoff returns the delay before re-running a failed order run:
// base * 2^attempt, capped at maxBackoff. attempt is zero-based.
func retryBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		return base
	}
	if attempt > 30 {
		return maxBackoff
	}
	d := base * time.Duration(1<<attempt)
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
