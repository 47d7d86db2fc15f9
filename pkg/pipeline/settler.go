package pipeline

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quantfold/orderpilot/pkg/util"
	"github.com/quantfold/orderpilot/pkg/venue"
)

// Receipt records a simulated completed trade.
type Receipt struct {
	SettlementID  string          `json:"settlementId"`
	ExecutedPrice decimal.Decimal `json:"executedPrice"`
	CompletedAt   time.Time       `json:"completedAt"`
}

// Settler turns a routing decision into a settlement. The simulator never
// fails, but the error return is part of the contract: a real venue
// reports rejections and timeouts through it as ExecutionFailedError.
type Settler interface {
	Execute(ctx context.Context, d venue.Decision, orderID string) (Receipt, error)
}

// SimSettler settles after a latency drawn uniformly from [Min, Max].
type SimSettler struct {
	min   time.Duration
	max   time.Duration
	clock util.Clock

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimSettler(min, max time.Duration, clock util.Clock) *SimSettler {
	if max < min {
		max = min
	}
	return &SimSettler{
		min:   min,
		max:   max,
		clock: clock,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SimSettler) Execute(ctx context.Context, d venue.Decision, orderID string) (Receipt, error) {
	if err := util.Wait(ctx, s.clock, s.latency()); err != nil {
		return Receipt{}, err
	}
	return Receipt{
		SettlementID:  uuid.NewString(),
		ExecutedPrice: d.Effective,
		CompletedAt:   s.clock.Now(),
	}, nil
}

func (s *SimSettler) latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max == s.min {
		return s.min
	}
	return s.min + time.Duration(s.rng.Int63n(int64(s.max-s.min)))
}

var _ Settler = (*SimSettler)(nil)
