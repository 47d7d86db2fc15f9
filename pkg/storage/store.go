package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/quantfold/orderpilot/pkg/order"
)

// Store is the order record store consumed by the pipeline and the API.
// Implementations must be safe for concurrent use.
type Store interface {
	Create(o *order.Order) error
	// Get returns a copy of the record; the second return is false when
	// the id is unknown.
	Get(id string) (*order.Order, bool, error)
	Update(o *order.Order) error
	List() ([]*order.Order, error)
	CountByStatus() (map[order.Status]int, error)
	Close() error
}

// MemStore is a mutex-guarded in-memory store for tests and dev runs.
type MemStore struct {
	mu     sync.RWMutex
	orders map[string]order.Order
}

func NewMemStore() *MemStore {
	return &MemStore{orders: make(map[string]order.Order)}
}

func (s *MemStore) Create(o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *MemStore) Get(id string) (*order.Order, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, false, nil
	}
	cp := o
	return &cp, true, nil
}

func (s *MemStore) Update(o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return fmt.Errorf("order %s not found", o.ID)
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *MemStore) List() ([]*order.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*order.Order, 0, len(s.orders))
	for _, o := range s.orders {
		cp := o
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) CountByStatus() (map[order.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[order.Status]int)
	for _, o := range s.orders {
		counts[o.Status]++
	}
	return counts, nil
}

func (s *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)
