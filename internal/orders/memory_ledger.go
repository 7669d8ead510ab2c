package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-process ledger with the same semantics as Repo. It backs
// local runs without Postgres and the saga tests.
type MemoryRepo struct {
	mu      sync.RWMutex
	orders  map[string]*Order
	history map[string][]StatusChange
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		orders:  make(map[string]*Order),
		history: make(map[string][]StatusChange),
	}
}

func (m *MemoryRepo) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.ID]; ok {
		return ErrStatusConflict
	}
	m.orders[o.ID] = o.clone()
	m.history[o.ID] = []StatusChange{{OrderID: o.ID, To: o.Status, ChangedAt: o.CreatedAt}}
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (*Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o.clone(), nil
}

func (m *MemoryRepo) ListByUser(_ context.Context, userID int64) ([]Order, error) {
	m.mu.RLock()
	out := []Order{}
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o.clone())
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryRepo) UpdateStatus(_ context.Context, id string, from, to Status) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Status != from {
		return nil, ErrStatusConflict
	}
	now := time.Now().UTC()
	o.Status = to
	o.UpdatedAt = now
	m.history[id] = append(m.history[id], StatusChange{OrderID: id, From: from, To: to, ChangedAt: now})
	return o.clone(), nil
}

func (m *MemoryRepo) History(_ context.Context, id string) ([]StatusChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.history[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]StatusChange(nil), h...), nil
}

func (m *MemoryRepo) Stats(ctx context.Context, userID int64) (Stats, error) {
	list, _ := m.ListByUser(ctx, userID)
	st := NewStats()
	for _, o := range list {
		st.Add(o)
	}
	return st, nil
}

func (o *Order) clone() *Order {
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	return &c
}
