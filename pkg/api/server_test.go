package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantfold/orderpilot/pkg/order"
	"github.com/quantfold/orderpilot/pkg/pipeline"
	"github.com/quantfold/orderpilot/pkg/scheduler"
	"github.com/quantfold/orderpilot/pkg/storage"
	"github.com/quantfold/orderpilot/pkg/util"
)

// idleRunner satisfies scheduler.Runner for handler tests; workers are
// never started so it is never invoked.
type idleRunner struct{}

func (idleRunner) Run(context.Context, string) error { return nil }
func (idleRunner) Fail(string, string)               {}

func orderAmount(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func newTestServer(t *testing.T) (*Server, *storage.MemStore, *scheduler.Scheduler) {
	t.Helper()
	log := zap.NewNop().Sugar()
	store := storage.NewMemStore()
	sched := scheduler.New(log, scheduler.DefaultConfig(), idleRunner{}, util.RealClock{})
	bc := pipeline.NewBroadcaster()
	return NewServer(log, store, sched, bc), store, sched
}

func TestSubmitOrder(t *testing.T) {
	s, store, sched := newTestServer(t)

	body := `{"tokenIn":"SOL","tokenOut":"USDC","amountIn":"1.5","limitPrice":"98.5"}`
	req := httptest.NewRequest("POST", "/api/v1/orders", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var resp SubmitOrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "accepted" || resp.OrderID == "" {
		t.Errorf("response = %+v", resp)
	}

	stored, ok, _ := store.Get(resp.OrderID)
	if !ok {
		t.Fatal("order not persisted")
	}
	if stored.Kind != order.KindLimit || stored.Status != order.StatusPending {
		t.Errorf("stored order = %+v", stored)
	}
	if st := sched.Stats(); st.Waiting != 1 {
		t.Errorf("waiting = %d, want 1 (order must be enqueued)", st.Waiting)
	}
}

func TestSubmitOrderValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing tokens", `{"amountIn":"1","limitPrice":"100"}`},
		{"zero amount", `{"tokenIn":"SOL","tokenOut":"USDC","amountIn":"0","limitPrice":"100"}`},
		{"limit order without limit price", `{"tokenIn":"SOL","tokenOut":"USDC","amountIn":"1"}`},
		{"bad slippage", `{"tokenIn":"SOL","tokenOut":"USDC","amountIn":"1","limitPrice":"100","slippage":"1.5"}`},
		{"malformed json", `{"tokenIn":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestServer(t)
			req := httptest.NewRequest("POST", "/api/v1/orders", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestGetOrder(t *testing.T) {
	s, store, _ := newTestServer(t)

	o, _ := order.New("SOL", "USDC", orderAmount(t, "2"), order.KindLimit, orderAmount(t, "99"))
	if err := store.Create(o); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/api/v1/orders/"+o.ID, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got order.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != o.ID || got.TokenIn != "SOL" {
		t.Errorf("got %+v", got)
	}

	req = httptest.NewRequest("GET", "/api/v1/orders/nope", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status for unknown id = %d, want 404", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s, store, _ := newTestServer(t)

	o, _ := order.New("SOL", "USDC", orderAmount(t, "1"), order.KindLimit, orderAmount(t, "100"))
	store.Create(o)

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCounts["pending"] != 1 {
		t.Errorf("statusCounts = %v, want pending=1", resp.StatusCounts)
	}
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
