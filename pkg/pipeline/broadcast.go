package pipeline

import (
	"sync"

	"github.com/quantfold/orderpilot/pkg/order"
)

// subscriptionBuffer bounds how many undelivered events a subscriber may
// hold. A full subscriber misses the event rather than stalling publishers.
const subscriptionBuffer = 32

// Subscription is one listener's handle on a single order's events.
// Receive from C; the channel is closed on Unsubscribe or broadcaster Close.
type Subscription struct {
	OrderID string
	C       chan order.Event
}

// Broadcaster fans out lifecycle events to per-order subscribers. It owns
// only the subscriber registry, never order data. Registry mutation and
// snapshot-then-send run under one lock, so two publishes for the same
// order never interleave their per-subscriber sends, and each subscriber
// sees one order's events in publish order.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscribe registers a new listener for orderID. Events published before
// the call are not replayed.
func (b *Broadcaster) Subscribe(orderID string) *Subscription {
	sub := &Subscription{OrderID: orderID, C: make(chan order.Event, subscriptionBuffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.C)
		return sub
	}
	set, ok := b.subs[orderID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[orderID] = set
	}
	set[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. The registry entry for
// an order disappears with its last subscriber so churn does not leak.
func (b *Broadcaster) Unsubscribe(orderID string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[orderID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.C)
	if len(set) == 0 {
		delete(b.subs, orderID)
	}
}

// Publish delivers ev to exactly the subscribers registered for orderID at
// the moment of the call. A subscriber whose buffer is full misses ev.
func (b *Broadcaster) Publish(orderID string, ev order.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[orderID] {
		select {
		case sub.C <- ev:
		default:
			// Slow consumer: drop for this subscriber only.
		}
	}
}

// SubscriberCount reports how many listeners orderID currently has.
func (b *Broadcaster) SubscriberCount(orderID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[orderID])
}

// Close tears down the registry and closes every subscriber channel.
// Further publishes are no-ops; further subscribes get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, set := range b.subs {
		for sub := range set {
			close(sub.C)
		}
	}
	b.subs = make(map[string]map[*Subscription]struct{})
}
