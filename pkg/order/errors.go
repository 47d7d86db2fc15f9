package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrQuoteUnavailable marks a venue that failed to quote. Treated as a
// transient infrastructure fault: the scheduler may re-run the whole order.
var ErrQuoteUnavailable = errors.New("quote unavailable")

// ErrNotExecutable marks an order whose kind has no execution path
// (MARKET and SNIPER are reserved). Terminal, never retried.
var ErrNotExecutable = errors.New("order kind not executable")

// LimitNotReachedError is the business outcome of a price gate that
// exhausted its attempt budget. It is a legitimate terminal failure and
// must never trigger a scheduler-level retry.
type LimitNotReachedError struct {
	Attempts      int
	LastEffective decimal.Decimal
}

func (e *LimitNotReachedError) Error() string {
	return fmt.Sprintf("limit not reached after %d attempts (last effective price %s)",
		e.Attempts, e.LastEffective)
}

// ExecutionFailedError reports a settlement failure from the execution
// venue. Terminal: the venue made an informed rejection, not a glitch.
type ExecutionFailedError struct {
	Venue  string
	Reason string
}

func (e *ExecutionFailedError) Error() string {
	return fmt.Sprintf("execution failed on %s: %s", e.Venue, e.Reason)
}

// Retryable reports whether a run error is an infrastructure fault the
// scheduler should re-attempt. Business outcomes (limit never reached,
// venue rejection) and context cancellation are not retryable.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var limitErr *LimitNotReachedError
	var execErr *ExecutionFailedError
	if errors.As(err, &limitErr) || errors.As(err, &execErr) {
		return false
	}
	if errors.Is(err, ErrNotExecutable) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
