package order

import "time"

// Event is a status-change notification for one order, delivered to
// broadcaster subscribers. Payload is stage-specific: a routing message,
// venue/price at limit checks, settlement details on confirmation, or an
// error string on failure.
type Event struct {
	OrderID   string         `json:"orderId"`
	Status    Status         `json:"status"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp int64          `json:"timestamp"` // Unix milliseconds
}

// NewEvent stamps an event with the current wall clock.
func NewEvent(orderID string, status Status, payload map[string]any) Event {
	return Event{
		OrderID:   orderID,
		Status:    status,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}
