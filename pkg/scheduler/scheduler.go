package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/orderpilot/pkg/order"
	"github.com/quantfold/orderpilot/pkg/util"
)

// Runner is one whole-order state machine run. Implemented by
// pipeline.Machine.
type Runner interface {
	// Run drives the order to a terminal state. A nil return means the
	// order confirmed; a non-retryable error means it failed for a
	// business reason and is already persisted; a retryable error means
	// an infrastructure fault interrupted the run.
	Run(ctx context.Context, orderID string) error
	// Fail records a terminal failure for an order whose retries are
	// exhausted.
	Fail(orderID, reason string)
}

// Config bounds the worker pool.
type Config struct {
	// Workers caps concurrently active order runs.
	Workers int
	// MaxRetries bounds re-runs after a retryable infrastructure fault.
	MaxRetries int
	// RetryBase is the first re-run delay; it doubles per attempt.
	RetryBase time.Duration
}

func DefaultConfig() Config {
	return Config{Workers: 10, MaxRetries: 3, RetryBase: 500 * time.Millisecond}
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Waiting   int   `json:"waiting"`
	Active    int   `json:"active"`
	Completed int64 `json:"completedCount"`
	Failed    int64 `json:"failedCount"`
}

// Scheduler pulls queued order ids and runs the state machine for each,
// capping in-flight runs at Config.Workers. A run is retried as a unit
// only on infrastructure faults; business failures (limit not reached,
// venue rejection) are terminal and never re-attempted.
type Scheduler struct {
	cfg    Config
	queue  *Queue
	runner Runner
	clock  util.Clock
	log    *zap.SugaredLogger

	active    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func New(log *zap.SugaredLogger, cfg Config, runner Runner, clock util.Clock) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	return &Scheduler{
		cfg:    cfg,
		queue:  NewQueue(),
		runner: runner,
		clock:  clock,
		log:    log,
	}
}

// Submit enqueues an order for execution. Safe from any goroutine; the
// order waits in the queue until a worker slot frees up.
func (s *Scheduler) Submit(orderID string) {
	s.queue.Enqueue(orderID)
	s.log.Debugw("order_enqueued", "order_id", orderID, "waiting", s.queue.Len())
}

// Run starts the worker pool and blocks until ctx is cancelled and every
// in-flight run has returned.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Infow("scheduler_starting",
		"workers", s.cfg.Workers,
		"max_retries", s.cfg.MaxRetries,
		"retry_base_ms", s.cfg.RetryBase.Milliseconds())

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				orderID, err := s.queue.Dequeue(ctx)
				if err != nil {
					return
				}
				s.active.Add(1)
				s.runWithRetry(ctx, orderID)
				s.active.Add(-1)
			}
		}(i)
	}
	wg.Wait()
	return ctx.Err()
}

// Stats returns the current queue depth, active run count and terminal
// outcome totals.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Waiting:   s.queue.Len(),
		Active:    int(s.active.Load()),
		Completed: s.completed.Load(),
		Failed:    s.failed.Load(),
	}
}

func (s *Scheduler) runWithRetry(ctx context.Context, orderID string) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := retryBackoff(s.cfg.RetryBase, attempt-1)
			s.log.Warnw("order_run_retry",
				"order_id", orderID,
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
				"err", lastErr)
			if err := util.Wait(ctx, s.clock, delay); err != nil {
				s.abandon(orderID, lastErr)
				return
			}
		}

		err := s.runner.Run(ctx, orderID)
		if err == nil {
			s.completed.Add(1)
			return
		}
		if !order.Retryable(err) {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				s.abandon(orderID, err)
				return
			}
			// Business failure: the run already persisted and broadcast it.
			s.failed.Add(1)
			return
		}
		lastErr = err
	}

	reason := fmt.Sprintf("run failed after %d retries: %v", s.cfg.MaxRetries, lastErr)
	s.runner.Fail(orderID, reason)
	s.failed.Add(1)
}

// abandon leaves whatever status was last persisted standing; shutdown is
// not a failure of the order.
func (s *Scheduler) abandon(orderID string, err error) {
	s.log.Infow("order_run_abandoned", "order_id", orderID, "err", err)
}
