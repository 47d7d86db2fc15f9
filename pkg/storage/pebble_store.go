package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/quantfold/orderpilot/pkg/order"
)

// PebbleStore persists order records in a Pebble KV database.
// Values are JSON; keys are prefixed so orders can be scanned in one pass.
type PebbleStore struct {
	db *pebble.DB
}

func NewPebbleStore(path string) (*PebbleStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

func (s *PebbleStore) Create(o *order.Order) error {
	key := orderKey(o.ID)
	_, closer, err := s.db.Get(key)
	if err == nil {
		closer.Close()
		return fmt.Errorf("order %s already exists", o.ID)
	}
	if err != pebble.ErrNotFound {
		return fmt.Errorf("failed to check order: %w", err)
	}
	return s.put(key, o)
}

func (s *PebbleStore) Get(id string) (*order.Order, bool, error) {
	data, closer, err := s.db.Get(orderKey(id))
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get order: %w", err)
	}
	defer closer.Close()

	var o order.Order
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &o, true, nil
}

func (s *PebbleStore) Update(o *order.Order) error {
	key := orderKey(o.ID)
	_, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return fmt.Errorf("order %s not found", o.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to check order: %w", err)
	}
	closer.Close()
	return s.put(key, o)
}

func (s *PebbleStore) List() ([]*order.Order, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: orderPrefix,
		UpperBound: keyUpperBound(orderPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var orders []*order.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o order.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // skip invalid entries
		}
		orders = append(orders, &o)
	}
	return orders, nil
}

func (s *PebbleStore) CountByStatus() (map[order.Status]int, error) {
	orders, err := s.List()
	if err != nil {
		return nil, err
	}
	counts := make(map[order.Status]int)
	for _, o := range orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (s *PebbleStore) put(key []byte, o *order.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.db.Set(key, data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

var _ Store = (*PebbleStore)(nil)
