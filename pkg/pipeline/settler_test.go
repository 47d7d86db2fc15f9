package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantfold/orderpilot/pkg/util"
	"github.com/quantfold/orderpilot/pkg/venue"
)

func TestSimSettlerReceipt(t *testing.T) {
	s := NewSimSettler(time.Millisecond, 3*time.Millisecond, util.RealClock{})
	d := venue.Decision{
		Venue:     "raydium",
		Price:     decimal.NewFromInt(100),
		Fee:       decimal.NewFromFloat(0.0025),
		Effective: decimal.RequireFromString("99.75"),
	}

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		rcpt, err := s.Execute(context.Background(), d, "ord-1")
		if err != nil {
			t.Fatalf("Execute() error: %v", err)
		}
		if rcpt.SettlementID == "" {
			t.Fatal("settlement id must be non-empty")
		}
		if seen[rcpt.SettlementID] {
			t.Fatalf("settlement id %s reused", rcpt.SettlementID)
		}
		seen[rcpt.SettlementID] = true
		if !rcpt.ExecutedPrice.Equal(d.Effective) {
			t.Errorf("executed price = %s, want %s", rcpt.ExecutedPrice, d.Effective)
		}
		if rcpt.CompletedAt.IsZero() {
			t.Error("completion timestamp missing")
		}
	}
}

func TestSimSettlerLatencyWithinRange(t *testing.T) {
	min, max := 20*time.Millisecond, 40*time.Millisecond
	s := NewSimSettler(min, max, util.RealClock{})
	d := venue.Decision{Venue: "raydium", Effective: decimal.NewFromInt(100)}

	start := time.Now()
	if _, err := s.Execute(context.Background(), d, "ord-1"); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < min {
		t.Errorf("settled in %v, want >= %v", elapsed, min)
	}
	// Generous upper bound: scheduling noise, not the draw itself.
	if elapsed > max+100*time.Millisecond {
		t.Errorf("settled in %v, want about <= %v", elapsed, max)
	}
}

func TestSimSettlerHonorsCancellation(t *testing.T) {
	s := NewSimSettler(10*time.Second, 10*time.Second, util.RealClock{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Execute(ctx, venue.Decision{Venue: "raydium"}, "ord-1"); err == nil {
		t.Fatal("Execute() with cancelled context must fail")
	}
}
