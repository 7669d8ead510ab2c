package saga

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

func TestCreateOrderHappyPath(t *testing.T) {
	h := newHarness(map[int64]int{42: 5}, line(42, "Kettle", 3, "10.00"))
	c := NewCoordinator(h.deps)

	o, err := c.CreateOrder(context.Background(), input())
	require.NoError(t, err)

	assert.Equal(t, orders.StatusPending, o.Status)
	assert.Equal(t, "30.00", o.TotalAmount.StringFixed(2))
	assert.Equal(t, "Ann Lee", o.UserName)
	assert.Equal(t, "ann@example.com", o.UserEmail)
	assert.Equal(t, 2, h.store.stock(42))
	assert.Equal(t, []string{orders.EventOrderCreated}, h.events.types())

	stored, err := h.ledger.Get(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 3, stored.Items[0].Quantity)

	p := h.events.events[0].payload.(orders.OrderCreatedPayload)
	assert.Equal(t, o.ID, p.OrderID)
	assert.Equal(t, "30.00", p.TotalAmount)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	h := newHarness(map[int64]int{42: 2}, line(42, "Kettle", 3, "10.00"))

	_, err := NewCoordinator(h.deps).CreateOrder(context.Background(), input())
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "Kettle")

	assert.Equal(t, 2, h.store.stock(42))
	list, _ := h.ledger.ListByUser(context.Background(), 1)
	assert.Empty(t, list)
	assert.Empty(t, h.events.types())
	assert.Empty(t, h.store.released)
}

func TestCreateOrderReleasesEarlierLinesOnMidListFailure(t *testing.T) {
	h := newHarness(map[int64]int{1: 5, 2: 1, 3: 5},
		line(1, "A", 2, "1.00"), line(2, "B", 5, "1.00"), line(3, "C", 1, "1.00"))

	_, err := NewCoordinator(h.deps).CreateOrder(context.Background(), input())
	require.ErrorIs(t, err, orders.ErrInsufficientStock)

	assert.Equal(t, 5, h.store.stock(1))
	assert.Equal(t, 1, h.store.stock(2))
	assert.Equal(t, 5, h.store.stock(3))
	assert.Equal(t, map[int64]int{1: 2}, h.store.released, "only granted lines are released")
}

func TestCreateOrderTransportFailureIsDependencyUnavailable(t *testing.T) {
	h := newHarness(map[int64]int{1: 5, 2: 5}, line(1, "A", 2, "1.00"), line(2, "B", 1, "1.00"))
	h.store.failOn[2] = fmt.Errorf("inventory service: %w: %w", orders.ErrDependencyUnavailable, errBoom)

	_, err := NewCoordinator(h.deps).CreateOrder(context.Background(), input())
	require.ErrorIs(t, err, orders.ErrDependencyUnavailable)
	var oe *orders.Error
	require.True(t, errors.As(err, &oe))
	assert.False(t, oe.Business())
	assert.Equal(t, 5, h.store.stock(1))
}

func TestCreateOrderTimedOutReservationIsNotReleased(t *testing.T) {
	h := newHarness(map[int64]int{1: 5, 2: 5}, line(1, "A", 2, "1.00"), line(2, "B", 1, "1.00"))
	h.store.stallOn[2] = true

	_, err := NewCoordinator(h.deps).CreateOrder(context.Background(), input())
	require.ErrorIs(t, err, orders.ErrDependencyUnavailable)
	assert.Equal(t, map[int64]int{1: 2}, h.store.released)
	assert.Equal(t, 5, h.store.stock(2))
}

func TestCreateOrderUnknownProduct(t *testing.T) {
	h := newHarness(map[int64]int{1: 5}, line(1, "A", 1, "1.00"), line(77, "Ghost", 1, "1.00"))

	_, err := NewCoordinator(h.deps).CreateOrder(context.Background(), input())
	require.ErrorIs(t, err, orders.ErrInsufficientStock)
	assert.ErrorIs(t, err, inventory.ErrUnknownProduct)
	assert.Equal(t, 5, h.store.stock(1))
}

func TestCreateOrderPersistenceFailureCompensates(t *testing.T) {
	h := newHarness(map[int64]int{42: 5}, line(42, "Kettle", 3, "10.00"))
	h.ledger.createErr = errors.New("pg: connection reset")

	_, err := NewCoordinator(h.deps).CreateOrder(context.Background(), input())
	require.ErrorIs(t, err, orders.ErrPersistenceFailed)
	var oe *orders.Error
	require.True(t, errors.As(err, &oe))
	assert.NotContains(t, oe.Public(), "pg:")

	assert.Equal(t, 5, h.store.stock(42))
	assert.Empty(t, h.events.types())
}

func TestCompensationSurvivesCallerCancellation(t *testing.T) {
	h := newHarness(map[int64]int{42: 5}, line(42, "Kettle", 3, "10.00"))
	h.store.releaseNeedsLiveCtx = true
	ctx, cancel := context.WithCancel(context.Background())
	h.ledger.onCreate = cancel
	h.ledger.createErr = context.Canceled

	_, err := NewCoordinator(h.deps).CreateOrder(ctx, input())
	require.ErrorIs(t, err, orders.ErrPersistenceFailed)
	assert.Equal(t, 5, h.store.stock(42))
}

func TestCreateOrderEventFailureKeepsOrder(t *testing.T) {
	h := newHarness(map[int64]int{42: 5}, line(42, "Kettle", 3, "10.00"))
	h.events.err = errors.New("kafka down")

	o, err := NewCoordinator(h.deps).CreateOrder(context.Background(), input())
	require.NoError(t, err)
	_, err = h.ledger.Get(context.Background(), o.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, h.store.stock(42))
}

func TestCreateOrderCollaboratorFailures(t *testing.T) {
	cases := []struct {
		name  string
		setup func(h *harness)
		in    func(in *CreateOrderInput)
		want  error
	}{
		{"blank address", nil, func(in *CreateOrderInput) { in.ShippingAddress = "   " }, orders.ErrInvalidInput},
		{"short address", nil, func(in *CreateOrderInput) { in.ShippingAddress = " Baker St " }, orders.ErrInvalidInput},
		{"empty cart", func(h *harness) { h.carts.cart = orders.Cart{} }, nil, orders.ErrEmptyCart},
		{"cart down", func(h *harness) {
			h.carts.err = fmt.Errorf("cart: %w", orders.ErrDependencyUnavailable)
		}, nil, orders.ErrDependencyUnavailable},
		{"cart rejects token", func(h *harness) {
			h.carts.err = fmt.Errorf("cart: %w", orders.ErrUnauthenticated)
		}, nil, orders.ErrUnauthenticated},
		{"user down", func(h *harness) { h.users.err = errBoom }, nil, orders.ErrDependencyUnavailable},
		{"someone else's token", func(h *harness) { h.users.id.UserID = 2 }, nil, orders.ErrUnauthenticated},
		{"malformed cart line", func(h *harness) { h.carts.cart.Items[0].Quantity = 0 }, nil, orders.ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(map[int64]int{42: 5}, line(42, "Kettle", 3, "10.00"))
			if tc.setup != nil {
				tc.setup(h)
			}
			in := input()
			if tc.in != nil {
				tc.in(&in)
			}
			_, err := NewCoordinator(h.deps).CreateOrder(context.Background(), in)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, 5, h.store.stock(42), "nothing reserved")
		})
	}
}

func TestCreateOrderCustomerInfoAndInstructions(t *testing.T) {
	h := newHarness(map[int64]int{42: 5}, line(42, "Kettle", 1, "10.00"))
	in := input()
	in.SpecialInstructions = "  Leave at the door "
	in.Customer = orders.CustomerInfo{FirstName: "Sherlock", LastName: "Holmes", Email: "sh@example.com"}

	o, err := NewCoordinator(h.deps).CreateOrder(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "221B Baker Street\n\nSpecial Instructions: Leave at the door", o.ShippingAddress)
	assert.Equal(t, "Sherlock Holmes", o.UserName)
	assert.Equal(t, "sh@example.com", o.UserEmail)

	p := h.events.events[0].payload.(orders.OrderCreatedPayload)
	assert.Equal(t, "sh@example.com", p.CustomerInfo.Email)
}

func TestQueriesAreScopedToOwner(t *testing.T) {
	h := newHarness(map[int64]int{42: 5}, line(42, "Kettle", 1, "10.00"))
	c := NewCoordinator(h.deps)
	ctx := context.Background()
	o, err := c.CreateOrder(ctx, input())
	require.NoError(t, err)

	got, err := c.GetOrder(ctx, o.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	_, err = c.GetOrder(ctx, o.ID, 2)
	assert.ErrorIs(t, err, orders.ErrNotFound)
	_, err = c.GetOrder(ctx, "nope", 1)
	assert.ErrorIs(t, err, orders.ErrNotFound)

	list, err := c.ListOrders(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	st, err := c.Statistics(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ByStatus[orders.StatusPending])
	assert.Equal(t, "10.00", st.TotalSpent.StringFixed(2))

	hist, err := c.History(ctx, o.ID, 1)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
	_, err = c.History(ctx, o.ID, 2)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}
