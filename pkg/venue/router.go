package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/orderpilot/pkg/order"
)

// Decision is the outcome of one routing pass: the venue with the best
// effective price for the order's buy side, plus the numbers behind it.
type Decision struct {
	Venue     string          `json:"venue"`
	Price     decimal.Decimal `json:"price"`
	Fee       decimal.Decimal `json:"fee"`
	Effective decimal.Decimal `json:"effective"`
}

// Router queries all configured quote sources concurrently and selects
// the venue with the lowest effective price. On an exact tie the venue
// configured first wins, so selection is deterministic.
type Router struct {
	sources []QuoteSource
	timeout time.Duration
	log     *zap.SugaredLogger
}

func NewRouter(log *zap.SugaredLogger, timeout time.Duration, sources ...QuoteSource) *Router {
	return &Router{sources: sources, timeout: timeout, log: log}
}

// Route fans out to every source at once and joins the results. A single
// failed or timed-out source fails the whole pass with ErrQuoteUnavailable:
// venue selection needs the full picture.
func (r *Router) Route(ctx context.Context, pair string, amount decimal.Decimal) (Decision, error) {
	if len(r.sources) == 0 {
		return Decision{}, fmt.Errorf("%w: no venues configured", order.ErrQuoteUnavailable)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	quotes := make([]Quote, len(r.sources))
	errs := make([]error, len(r.sources))
	var wg sync.WaitGroup
	for i, src := range r.sources {
		wg.Add(1)
		go func(i int, src QuoteSource) {
			defer wg.Done()
			quotes[i], errs[i] = src.Quote(ctx, pair, amount)
		}(i, src)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return Decision{}, fmt.Errorf("%w: venue %s: %v", order.ErrQuoteUnavailable, r.sources[i].Name(), err)
		}
	}

	// Scan in configuration order with a strict comparison: the first
	// configured venue keeps a tie.
	best := quotes[0]
	for _, q := range quotes[1:] {
		if q.Effective().LessThan(best.Effective()) {
			best = q
		}
	}

	d := Decision{Venue: best.Venue, Price: best.Price, Fee: best.Fee, Effective: best.Effective()}
	r.log.Infow("route_selected",
		"pair", pair,
		"amount", amount.String(),
		"venue", d.Venue,
		"price", d.Price.String(),
		"fee", d.Fee.String(),
		"effective", d.Effective.String())
	return d, nil
}
