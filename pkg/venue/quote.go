package venue

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/orderpilot/pkg/util"
)

// Quote is one venue's answer for a pair/amount. Quotes are ephemeral:
// produced fresh on every router call, never cached across stages.
type Quote struct {
	Venue string          `json:"venue"`
	Price decimal.Decimal `json:"price"`
	Fee   decimal.Decimal `json:"fee"` // fraction in [0,1)
}

// Effective returns the fee-adjusted price: price * (1 - fee).
func (q Quote) Effective() decimal.Decimal {
	return q.Price.Mul(decimal.NewFromInt(1).Sub(q.Fee))
}

// QuoteSource produces quotes for a trading counterparty.
type QuoteSource interface {
	Name() string
	Quote(ctx context.Context, pair string, amount decimal.Decimal) (Quote, error)
}

// PriceFn lets callers script the price a SimSource returns. Tests use
// this to pin quotes to exact values or step through a sequence.
type PriceFn func(pair string, amount decimal.Decimal) decimal.Decimal

// SimSource is a simulated venue: fixed fee, artificial latency, and a
// base price with uniform jitter unless a PriceFn overrides it.
type SimSource struct {
	name    string
	fee     decimal.Decimal
	latency time.Duration
	clock   util.Clock
	priceFn PriceFn

	mu   sync.Mutex
	rng  *rand.Rand
	base decimal.Decimal
	// jitter is the max relative deviation from base, e.g. 0.05 for +/-5%.
	jitter float64
}

// SimConfig configures a simulated venue.
type SimConfig struct {
	Name      string
	Fee       decimal.Decimal
	Latency   time.Duration
	BasePrice decimal.Decimal
	Jitter    float64
	PriceFn   PriceFn // optional; overrides BasePrice/Jitter
	Seed      int64   // 0 means time-seeded
}

func NewSimSource(cfg SimConfig, clock util.Clock) *SimSource {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimSource{
		name:    cfg.Name,
		fee:     cfg.Fee,
		latency: cfg.Latency,
		clock:   clock,
		priceFn: cfg.PriceFn,
		rng:     rand.New(rand.NewSource(seed)),
		base:    cfg.BasePrice,
		jitter:  cfg.Jitter,
	}
}

func (s *SimSource) Name() string { return s.name }

// Quote waits the configured latency, then prices the pair.
func (s *SimSource) Quote(ctx context.Context, pair string, amount decimal.Decimal) (Quote, error) {
	if s.latency > 0 {
		if err := util.Wait(ctx, s.clock, s.latency); err != nil {
			return Quote{}, err
		}
	}
	price := s.price(pair, amount)
	return Quote{Venue: s.name, Price: price, Fee: s.fee}, nil
}

func (s *SimSource) price(pair string, amount decimal.Decimal) decimal.Decimal {
	if s.priceFn != nil {
		return s.priceFn(pair, amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.jitter <= 0 {
		return s.base
	}
	// Uniform in [1-jitter, 1+jitter].
	factor := 1 + s.jitter*(2*s.rng.Float64()-1)
	return s.base.Mul(decimal.NewFromFloat(factor))
}
