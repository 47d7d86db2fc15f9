package venue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/orderpilot/pkg/order"
	"github.com/quantfold/orderpilot/pkg/util"
)

func fixedSource(name string, price, fee float64, latency time.Duration) *SimSource {
	p := decimal.NewFromFloat(price)
	return NewSimSource(SimConfig{
		Name:    name,
		Fee:     decimal.NewFromFloat(fee),
		Latency: latency,
		PriceFn: func(string, decimal.Decimal) decimal.Decimal { return p },
	}, util.RealClock{})
}

// failSource always errors, standing in for a venue that cannot quote.
type failSource struct{ name string }

func (f failSource) Name() string { return f.name }
func (f failSource) Quote(context.Context, string, decimal.Decimal) (Quote, error) {
	return Quote{}, errors.New("venue down")
}

func TestQuoteEffective(t *testing.T) {
	tests := []struct {
		name  string
		price string
		fee   string
		want  string
	}{
		{"quarter percent fee", "100", "0.0025", "99.75"},
		{"zero fee", "42.5", "0", "42.5"},
		{"high fee", "200", "0.1", "180"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Quote{
				Venue: "x",
				Price: decimal.RequireFromString(tt.price),
				Fee:   decimal.RequireFromString(tt.fee),
			}
			if got := q.Effective(); !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Effective() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRouterPicksLowestEffective(t *testing.T) {
	// raydium: 100 * (1-0.0025) = 99.75, orca: 100 * (1-0.0030) = 99.70
	router := NewRouter(zap.NewNop().Sugar(), 0,
		fixedSource("raydium", 100, 0.0025, 0),
		fixedSource("orca", 100, 0.0030, 0),
	)

	d, err := router.Route(context.Background(), "SOL/USDC", decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("Route() error: %v", err)
	}
	if d.Venue != "orca" {
		t.Errorf("selected venue = %s, want orca", d.Venue)
	}
	if !d.Effective.Equal(decimal.RequireFromString("99.7")) {
		t.Errorf("effective = %s, want 99.7", d.Effective)
	}
}

func TestRouterTieBreakIsDeterministic(t *testing.T) {
	// Identical effective prices: the first configured venue must win
	// every single time.
	router := NewRouter(zap.NewNop().Sugar(), 0,
		fixedSource("raydium", 100, 0.01, 0),
		fixedSource("orca", 100, 0.01, 0),
	)

	for i := 0; i < 20; i++ {
		d, err := router.Route(context.Background(), "SOL/USDC", decimal.NewFromInt(1))
		if err != nil {
			t.Fatalf("Route() error: %v", err)
		}
		if d.Venue != "raydium" {
			t.Fatalf("iteration %d: tie went to %s, want raydium", i, d.Venue)
		}
	}
}

func TestRouterQueriesVenuesConcurrently(t *testing.T) {
	latency := 100 * time.Millisecond
	router := NewRouter(zap.NewNop().Sugar(), 0,
		fixedSource("raydium", 100, 0.0025, latency),
		fixedSource("orca", 100, 0.0030, latency),
	)

	start := time.Now()
	if _, err := router.Route(context.Background(), "SOL/USDC", decimal.NewFromInt(1)); err != nil {
		t.Fatalf("Route() error: %v", err)
	}
	elapsed := time.Since(start)

	// Sequential calls would take ~2x latency.
	if elapsed >= 2*latency {
		t.Errorf("Route() took %v, want < %v (venues must be queried concurrently)", elapsed, 2*latency)
	}
}

func TestRouterFailsWhenAnyVenueFails(t *testing.T) {
	router := NewRouter(zap.NewNop().Sugar(), 0,
		fixedSource("raydium", 100, 0.0025, 0),
		failSource{name: "orca"},
	)

	_, err := router.Route(context.Background(), "SOL/USDC", decimal.NewFromInt(1))
	if !errors.Is(err, order.ErrQuoteUnavailable) {
		t.Fatalf("Route() error = %v, want ErrQuoteUnavailable", err)
	}
}

func TestRouterTimeout(t *testing.T) {
	router := NewRouter(zap.NewNop().Sugar(), 20*time.Millisecond,
		fixedSource("raydium", 100, 0.0025, 500*time.Millisecond),
		fixedSource("orca", 100, 0.0030, 0),
	)

	_, err := router.Route(context.Background(), "SOL/USDC", decimal.NewFromInt(1))
	if !errors.Is(err, order.ErrQuoteUnavailable) {
		t.Fatalf("Route() error = %v, want ErrQuoteUnavailable on timeout", err)
	}
}
