package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quantfold/orderpilot/pkg/order"
	"github.com/quantfold/orderpilot/pkg/storage"
	"github.com/quantfold/orderpilot/pkg/util"
	"github.com/quantfold/orderpilot/pkg/venue"
)

// Machine drives one order through
// pending -> routing -> limit_check* -> building -> submitted -> confirmed|failed,
// persisting the status and broadcasting an event at every transition.
// It holds no concurrency state: one Run is one order on one logical
// thread of control, and all its waits are cooperative suspensions.
type Machine struct {
	store      storage.Store
	gate       *PriceGate
	settler    Settler
	bc         *Broadcaster
	clock      util.Clock
	buildDelay time.Duration
	log        *zap.SugaredLogger
}

func NewMachine(log *zap.SugaredLogger, store storage.Store, gate *PriceGate, settler Settler, bc *Broadcaster, clock util.Clock, buildDelay time.Duration) *Machine {
	return &Machine{
		store:      store,
		gate:       gate,
		settler:    settler,
		bc:         bc,
		clock:      clock,
		buildDelay: buildDelay,
		log:        log,
	}
}

// Run executes the state machine for orderID. Business outcomes (limit
// never reached, venue rejection) are persisted as terminal failed here
// and returned as non-retryable errors; infrastructure faults are
// returned without touching the record so the scheduler can re-run.
func (m *Machine) Run(ctx context.Context, orderID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected fault: %v", r)
		}
	}()

	o, ok, err := m.store.Get(orderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	if o.Status.Terminal() {
		return nil
	}
	if o.Kind != order.KindLimit {
		reason := fmt.Sprintf("order kind %s is not executable", o.Kind)
		m.fail(o, reason)
		return fmt.Errorf("%w: %s", order.ErrNotExecutable, reason)
	}

	if err := m.transition(o, order.StatusRouting, map[string]any{
		"message": "selecting venue",
	}); err != nil {
		return err
	}

	d, err := m.gate.Satisfy(ctx, o.Pair(), o.AmountIn, o.LimitPrice, func(attempt int, d venue.Decision) {
		o.Attempts = attempt
		o.Status = order.StatusLimitCheck
		o.UpdatedAt = m.clock.Now()
		if uerr := m.store.Update(o); uerr != nil {
			m.log.Warnw("limit_check_persist_failed", "order_id", o.ID, "err", uerr)
		}
		m.bc.Publish(o.ID, order.NewEvent(o.ID, order.StatusLimitCheck, map[string]any{
			"attempt":        attempt,
			"venue":          d.Venue,
			"effectivePrice": d.Effective.String(),
			"limitPrice":     o.LimitPrice.String(),
		}))
	})
	if err != nil {
		var limitErr *order.LimitNotReachedError
		if errors.As(err, &limitErr) {
			m.fail(o, limitErr.Error())
		}
		return err
	}

	if err := m.transition(o, order.StatusBuilding, map[string]any{
		"venue":          d.Venue,
		"effectivePrice": d.Effective.String(),
	}); err != nil {
		return err
	}
	if err := util.Wait(ctx, m.clock, m.buildDelay); err != nil {
		return err
	}

	if err := m.transition(o, order.StatusSubmitted, nil); err != nil {
		return err
	}

	rcpt, err := m.settler.Execute(ctx, d, o.ID)
	if err != nil {
		var execErr *order.ExecutionFailedError
		if errors.As(err, &execErr) {
			m.fail(o, execErr.Error())
		}
		return err
	}

	o.Venue = d.Venue
	o.ExecutedPrice = rcpt.ExecutedPrice
	o.SettlementID = rcpt.SettlementID
	if err := m.transition(o, order.StatusConfirmed, map[string]any{
		"venue":         d.Venue,
		"executedPrice": rcpt.ExecutedPrice.String(),
		"settlementId":  rcpt.SettlementID,
	}); err != nil {
		return err
	}

	m.log.Infow("order_confirmed",
		"order_id", o.ID,
		"venue", d.Venue,
		"executed_price", rcpt.ExecutedPrice.String(),
		"settlement_id", rcpt.SettlementID)
	return nil
}

// Fail moves an order to terminal failed with the given reason. The
// scheduler calls this after exhausting run-level retries; an order
// already terminal is left untouched.
func (m *Machine) Fail(orderID, reason string) {
	o, ok, err := m.store.Get(orderID)
	if err != nil || !ok {
		m.log.Warnw("fail_load_failed", "order_id", orderID, "err", err)
		return
	}
	if o.Status.Terminal() {
		return
	}
	m.fail(o, reason)
}

func (m *Machine) fail(o *order.Order, reason string) {
	o.Status = order.StatusFailed
	o.FailReason = reason
	o.UpdatedAt = m.clock.Now()
	if err := m.store.Update(o); err != nil {
		m.log.Warnw("fail_persist_failed", "order_id", o.ID, "err", err)
	}
	m.bc.Publish(o.ID, order.NewEvent(o.ID, order.StatusFailed, map[string]any{
		"error": reason,
	}))
	m.log.Infow("order_failed", "order_id", o.ID, "reason", reason)
}

func (m *Machine) transition(o *order.Order, st order.Status, payload map[string]any) error {
	o.Status = st
	o.UpdatedAt = m.clock.Now()
	if err := m.store.Update(o); err != nil {
		return fmt.Errorf("persist %s: %w", st, err)
	}
	m.bc.Publish(o.ID, order.NewEvent(o.ID, st, payload))
	return nil
}
