package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the externally observable lifecycle state of an order.
// It only ever moves forward; confirmed and failed are terminal.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRouting    Status = "routing"
	StatusLimitCheck Status = "limit_check"
	StatusBuilding   Status = "building"
	StatusSubmitted  Status = "submitted"
	StatusConfirmed  Status = "confirmed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Kind discriminates order types. Only LIMIT has behavior today;
// MARKET and SNIPER are reserved for future strategies.
type Kind string

const (
	KindLimit  Kind = "LIMIT"
	KindMarket Kind = "MARKET"
	KindSniper Kind = "SNIPER"
)

// DefaultSlippage is applied when a submission omits a tolerance.
var DefaultSlippage = decimal.NewFromFloat(0.02)

// Order is the unit of work driven through the execution pipeline.
// Status, Attempts and the outcome fields are mutated exclusively by
// the pipeline machine during one run.
type Order struct {
	ID       string          `json:"id"`
	TokenIn  string          `json:"tokenIn"`
	TokenOut string          `json:"tokenOut"`
	AmountIn decimal.Decimal `json:"amountIn"`
	Kind     Kind            `json:"kind"`

	// LimitPrice is required and positive for LIMIT orders.
	LimitPrice decimal.Decimal `json:"limitPrice"`
	Slippage   decimal.Decimal `json:"slippage"`

	Status   Status `json:"status"`
	Attempts int    `json:"attempts"`

	// Outcome fields, populated on a terminal transition.
	Venue         string          `json:"venue,omitempty"`
	ExecutedPrice decimal.Decimal `json:"executedPrice,omitempty"`
	SettlementID  string          `json:"settlementId,omitempty"`
	FailReason    string          `json:"failReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New builds a pending order with a fresh ID and validates it.
func New(tokenIn, tokenOut string, amountIn decimal.Decimal, kind Kind, limitPrice decimal.Decimal) (*Order, error) {
	now := time.Now()
	o := &Order{
		ID:         uuid.NewString(),
		TokenIn:    tokenIn,
		TokenOut:   tokenOut,
		AmountIn:   amountIn,
		Kind:       kind,
		LimitPrice: limitPrice,
		Slippage:   DefaultSlippage,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// Pair returns the order's trading pair in "IN/OUT" form.
func (o *Order) Pair() string {
	return o.TokenIn + "/" + o.TokenOut
}

func (o *Order) Validate() error {
	if o.TokenIn == "" || o.TokenOut == "" {
		return fmt.Errorf("order %s: tokenIn and tokenOut are required", o.ID)
	}
	if !o.AmountIn.IsPositive() {
		return fmt.Errorf("order %s: amountIn must be positive, got %s", o.ID, o.AmountIn)
	}
	switch o.Kind {
	case KindLimit:
		if !o.LimitPrice.IsPositive() {
			return fmt.Errorf("order %s: limit orders require a positive limitPrice", o.ID)
		}
	case KindMarket, KindSniper:
		// Reserved kinds: accepted by validation, rejected at execution time.
	default:
		return fmt.Errorf("order %s: unknown kind %q", o.ID, o.Kind)
	}
	if o.Slippage.IsNegative() || o.Slippage.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("order %s: slippage must be within [0,1], got %s", o.ID, o.Slippage)
	}
	return nil
}
