package saga

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

type fakeCarts struct {
	cart orders.Cart
	err  error
}

func (f *fakeCarts) GetCart(context.Context, int64, string) (orders.Cart, error) {
	return f.cart, f.err
}

type fakeUsers struct {
	id  orders.Identity
	err error
}

func (f *fakeUsers) Resolve(context.Context, string) (orders.Identity, error) {
	return f.id, f.err
}

type published struct {
	eventType string
	payload   any
}

type recorder struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (r *recorder) Publish(_ context.Context, eventType string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, published{eventType, payload})
	return r.err
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.eventType)
	}
	return out
}

// trackingStore wraps a MemoryStore, records releases and can fail or stall
// chosen products.
type trackingStore struct {
	*inventory.MemoryStore
	mu       sync.Mutex
	released map[int64]int
	failOn   map[int64]error
	stallOn  map[int64]bool
	// releaseErr fails every release.
	releaseErr error
	// releaseNeedsLiveCtx fails releases whose context is already done.
	releaseNeedsLiveCtx bool
}

func newTrackingStore(seed map[int64]int) *trackingStore {
	return &trackingStore{
		MemoryStore: inventory.NewMemoryStore(seed),
		released:    map[int64]int{},
		failOn:      map[int64]error{},
		stallOn:     map[int64]bool{},
	}
}

func (s *trackingStore) Reserve(ctx context.Context, productID int64, qty int) (bool, error) {
	if err := s.failOn[productID]; err != nil {
		return false, err
	}
	if s.stallOn[productID] {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return s.MemoryStore.Reserve(ctx, productID, qty)
}

func (s *trackingStore) Release(ctx context.Context, productID int64, qty int) error {
	if s.releaseNeedsLiveCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	if s.releaseErr != nil {
		return s.releaseErr
	}
	s.mu.Lock()
	s.released[productID] += qty
	s.mu.Unlock()
	return s.MemoryStore.Release(ctx, productID, qty)
}

func (s *trackingStore) stock(id int64) int {
	n, _ := s.Available(context.Background(), id)
	return n
}

// flakyLedger fails Create, or reports a status conflict a number of times.
type flakyLedger struct {
	*orders.MemoryRepo
	createErr error
	onCreate  func()
	conflicts int
}

func (l *flakyLedger) Create(ctx context.Context, o *orders.Order) error {
	if l.onCreate != nil {
		l.onCreate()
	}
	if l.createErr != nil {
		return l.createErr
	}
	return l.MemoryRepo.Create(ctx, o)
}

func (l *flakyLedger) UpdateStatus(ctx context.Context, id string, from, to orders.Status) (*orders.Order, error) {
	if l.conflicts > 0 {
		l.conflicts--
		return nil, orders.ErrStatusConflict
	}
	return l.MemoryRepo.UpdateStatus(ctx, id, from, to)
}

type harness struct {
	carts  *fakeCarts
	users  *fakeUsers
	store  *trackingStore
	ledger *flakyLedger
	events *recorder
	deps   Deps
}

func newHarness(stock map[int64]int, lines ...orders.CartLine) *harness {
	h := &harness{
		carts:  &fakeCarts{cart: orders.Cart{Items: lines}},
		users:  &fakeUsers{id: orders.Identity{UserID: 1, Email: "ann@example.com", FirstName: "Ann", LastName: "Lee"}},
		store:  newTrackingStore(stock),
		ledger: &flakyLedger{MemoryRepo: orders.NewMemoryRepo()},
		events: &recorder{},
	}
	h.deps = Deps{
		Carts:  h.carts,
		Users:  h.users,
		Stock:  h.store,
		Ledger: h.ledger,
		Releaser: &inventory.Releaser{
			Store:           h.store,
			Log:             zap.NewNop(),
			MaxAttempts:     2,
			InitialInterval: time.Millisecond,
			MaxInterval:     time.Millisecond,
		},
		Events:      h.events,
		Log:         zap.NewNop(),
		CallTimeout: 50 * time.Millisecond,
	}
	return h
}

func line(productID int64, name string, qty int, price string) orders.CartLine {
	return orders.CartLine{ProductID: productID, ProductName: name, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func input() CreateOrderInput {
	return CreateOrderInput{UserID: 1, Credential: "token", ShippingAddress: "221B Baker Street"}
}

var errBoom = errors.New("boom")
