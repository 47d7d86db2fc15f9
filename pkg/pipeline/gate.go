package pipeline

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/orderpilot/pkg/order"
	"github.com/quantfold/orderpilot/pkg/util"
	"github.com/quantfold/orderpilot/pkg/venue"
)

// GateConfig bounds the price gate's retry loop.
type GateConfig struct {
	MaxAttempts int
	// Delay is the fixed wait between attempts. Constant spacing, not
	// exponential: the gate is polling a market, not backing off a fault.
	Delay time.Duration
}

// AttemptFunc observes each gate evaluation before the verdict, so the
// caller can broadcast a limit_check event per attempt.
type AttemptFunc func(attempt int, d venue.Decision)

// PriceGate re-routes until the best effective price satisfies the
// order's limit condition or the attempt budget runs out. Buy side only:
// effective <= limit passes, and equality counts as satisfied.
type PriceGate struct {
	router *venue.Router
	cfg    GateConfig
	clock  util.Clock
	log    *zap.SugaredLogger
}

func NewPriceGate(log *zap.SugaredLogger, router *venue.Router, cfg GateConfig, clock util.Clock) *PriceGate {
	return &PriceGate{router: router, cfg: cfg, clock: clock, log: log}
}

// Satisfy returns the first routing decision whose effective price is at
// or below limit. Each attempt fetches fresh quotes. After MaxAttempts
// misses it fails with LimitNotReachedError carrying the last effective
// price. Router errors bubble up unchanged for the scheduler to classify.
func (g *PriceGate) Satisfy(ctx context.Context, pair string, amount, limit decimal.Decimal, onAttempt AttemptFunc) (venue.Decision, error) {
	var lastEffective decimal.Decimal
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		d, err := g.router.Route(ctx, pair, amount)
		if err != nil {
			return venue.Decision{}, err
		}
		if onAttempt != nil {
			onAttempt(attempt, d)
		}
		if d.Effective.LessThanOrEqual(limit) {
			return d, nil
		}
		lastEffective = d.Effective
		g.log.Debugw("limit_not_met",
			"pair", pair,
			"attempt", attempt,
			"effective", d.Effective.String(),
			"limit", limit.String())
		if attempt < g.cfg.MaxAttempts {
			if err := util.Wait(ctx, g.clock, g.cfg.Delay); err != nil {
				return venue.Decision{}, err
			}
		}
	}
	return venue.Decision{}, &order.LimitNotReachedError{
		Attempts:      g.cfg.MaxAttempts,
		LastEffective: lastEffective,
	}
}
