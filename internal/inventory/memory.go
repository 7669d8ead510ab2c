package inventory

import (
	"context"
	"sync"
)

type counter struct {
	mu  sync.Mutex
	qty int
}

// MemoryStore holds stock in process with one lock per product. The product
// set is fixed at construction so lookups need no lock of their own.
type MemoryStore struct {
	stock map[int64]*counter
}

func NewMemoryStore(seed map[int64]int) *MemoryStore {
	s := &MemoryStore{stock: make(map[int64]*counter, len(seed))}
	for id, qty := range seed {
		if qty < 0 {
			qty = 0
		}
		s.stock[id] = &counter{qty: qty}
	}
	return s
}

func (s *MemoryStore) Reserve(_ context.Context, productID int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}
	c, ok := s.stock[productID]
	if !ok {
		return false, ErrUnknownProduct
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.qty < qty {
		return false, nil
	}
	c.qty -= qty
	return true, nil
}

func (s *MemoryStore) Release(_ context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	c, ok := s.stock[productID]
	if !ok {
		return ErrUnknownProduct
	}
	c.mu.Lock()
	c.qty += qty
	c.mu.Unlock()
	return nil
}

func (s *MemoryStore) Available(_ context.Context, productID int64) (int, error) {
	c, ok := s.stock[productID]
	if !ok {
		return 0, ErrUnknownProduct
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.qty, nil
}
