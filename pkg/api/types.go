package api

import "github.com/shopspring/decimal"

// API request/response types for REST endpoints and WebSocket messages

// ==============================
// REST Types
// ==============================

// SubmitOrderRequest is the payload for POST /api/v1/orders.
// Numeric fields accept JSON numbers or strings.
type SubmitOrderRequest struct {
	TokenIn    string           `json:"tokenIn"`
	TokenOut   string           `json:"tokenOut"`
	AmountIn   decimal.Decimal  `json:"amountIn"`
	Kind       string           `json:"kind,omitempty"`       // defaults to "LIMIT"
	LimitPrice decimal.Decimal  `json:"limitPrice"`
	Slippage   *decimal.Decimal `json:"slippage,omitempty"` // defaults to 0.02
}

// SubmitOrderResponse acknowledges an accepted order.
type SubmitOrderResponse struct {
	Status  string `json:"status"` // "accepted"
	OrderID string `json:"orderId"`
}

// StatsResponse combines scheduler counters with store status counts.
type StatsResponse struct {
	Waiting      int            `json:"waiting"`
	Active       int            `json:"active"`
	Completed    int64          `json:"completedCount"`
	Failed       int64          `json:"failedCount"`
	StatusCounts map[string]int `json:"statusCounts"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by a client to follow or drop order streams.
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	OrderIDs []string `json:"orderIds"` // order ids to follow
}
