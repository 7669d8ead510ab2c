package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

const minAddressLen = 10

type CreateOrderInput struct {
	UserID              int64
	Credential          string
	ShippingAddress     string
	SpecialInstructions string
	Customer            orders.CustomerInfo
}

type Coordinator struct {
	d Deps
}

func NewCoordinator(d Deps) *Coordinator {
	return &Coordinator{d: d.withDefaults()}
}

// CreateOrder runs the saga: cart, identity, reservations, persistence, event.
// Any failure after the first reservation releases what was reserved before
// the error is returned.
func (c *Coordinator) CreateOrder(ctx context.Context, in CreateOrderInput) (*orders.Order, error) {
	ctx, span := tracer.Start(ctx, "saga.create_order", trace.WithAttributes(attribute.Int64("user.id", in.UserID)))
	defer span.End()

	o, err := c.createOrder(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("order.id", o.ID), attribute.String("order.total", o.TotalAmount.StringFixed(2)))
	return o, nil
}

func (c *Coordinator) createOrder(ctx context.Context, in CreateOrderInput) (*orders.Order, error) {
	log := c.d.Log.With(zap.Int64("user_id", in.UserID))

	// 1) validasi alamat
	address, err := shippingAddress(in.ShippingAddress, in.SpecialInstructions)
	if err != nil {
		return nil, err
	}

	// 2) cart
	cctx, cancel := c.d.call(ctx)
	cart, err := c.d.Carts.GetCart(cctx, in.UserID, in.Credential)
	cancel()
	if err != nil {
		return nil, collaboratorFailure("cart service", err)
	}
	if len(cart.Items) == 0 {
		return nil, orders.Fail(orders.ErrEmptyCart, "cart is empty", nil)
	}
	for _, l := range cart.Items {
		if l.Quantity <= 0 || l.UnitPrice.IsNegative() {
			return nil, orders.Fail(orders.ErrInvalidInput, fmt.Sprintf("cart line for product %d is malformed", l.ProductID), nil)
		}
	}

	// 3) identity
	uctx, cancel := c.d.call(ctx)
	id, err := c.d.Users.Resolve(uctx, in.Credential)
	cancel()
	if err != nil {
		return nil, collaboratorFailure("user service", err)
	}
	if id.UserID != in.UserID {
		return nil, orders.Fail(orders.ErrUnauthenticated, "credential does not belong to the requesting user", nil)
	}

	draft := orders.NewOrder(in.UserID, address, customerEmail(in.Customer, id), customerName(in.Customer, id), snapshot(cart))
	log = log.With(zap.String("order_id", draft.ID))
	if !cart.Total.IsZero() && !cart.Total.Round(2).Equal(draft.TotalAmount) {
		log.Warn("cart total differs from line items",
			zap.String("cart_total", cart.Total.StringFixed(2)),
			zap.String("computed_total", draft.TotalAmount.StringFixed(2)))
	}

	// 4) reserve per line, urut sesuai cart
	batch := NewBatch(c.d.Stock)
	for _, it := range draft.Items {
		rctx, cancel := c.d.call(ctx)
		ok, err := batch.Reserve(rctx, it.ProductID, it.Quantity)
		cancel()
		if err == nil && ok {
			continue
		}
		c.compensate(ctx, log, draft.ID, batch)
		return nil, reservationFailure(it, err)
	}
	log.Info("inventory reserved", zap.Int("lines", len(draft.Items)))

	// 5) persist order + items atomically
	if err := c.d.Ledger.Create(ctx, draft); err != nil {
		log.Error("persist order failed", zap.Error(err))
		c.compensate(ctx, log, draft.ID, batch)
		return nil, orders.Fail(orders.ErrPersistenceFailed, "could not store the order", err)
	}
	log.Info("order created", zap.String("total_amount", draft.TotalAmount.StringFixed(2)))

	// 6) event, best-effort
	if err := c.d.Events.Publish(ctx, orders.EventOrderCreated, orders.CreatedPayload(draft, in.Customer)); err != nil {
		log.Warn("publish order.created failed", zap.Error(err))
	}
	return draft, nil
}

func (c *Coordinator) compensate(ctx context.Context, log *zap.Logger, orderID string, b *Batch) {
	if b.Empty() {
		return
	}
	lines := b.Lines()
	log.Warn("releasing reservations", zap.Any("lines", lines))

	dctx, cancel := c.d.detached(ctx)
	defer cancel()
	pending, err := c.d.Releaser.ReleaseAll(dctx, orderID, inventory.ReasonSagaCompensation, lines)
	if len(pending) > 0 {
		log.Warn("reservations left to reconciliation", zap.Any("pending", pending))
	}
	if err != nil {
		log.Error("reservations not released", zap.Error(err))
	}
}

func reservationFailure(it orders.OrderItem, err error) error {
	switch {
	case err == nil:
		return orders.Fail(orders.ErrInsufficientStock,
			fmt.Sprintf("insufficient stock for %s (product %d, requested %d)", it.ProductName, it.ProductID, it.Quantity), nil)
	case errors.Is(err, inventory.ErrUnknownProduct):
		return orders.Fail(orders.ErrInsufficientStock,
			fmt.Sprintf("product %d is not available", it.ProductID), err)
	}
	return orders.Fail(orders.ErrDependencyUnavailable, "inventory service unavailable", err)
}

func shippingAddress(addr, instructions string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", orders.Fail(orders.ErrInvalidInput, "shipping address is required", nil)
	}
	if len([]rune(addr)) < minAddressLen {
		return "", orders.Fail(orders.ErrInvalidInput, "shipping address is too short", nil)
	}
	if s := strings.TrimSpace(instructions); s != "" {
		addr += "\n\nSpecial Instructions: " + s
	}
	return addr, nil
}

func customerName(ci orders.CustomerInfo, id orders.Identity) string {
	if n := ci.FullName(); n != "" {
		return n
	}
	return id.FullName()
}

func customerEmail(ci orders.CustomerInfo, id orders.Identity) string {
	if ci.Email != "" {
		return ci.Email
	}
	return id.Email
}

func snapshot(cart orders.Cart) []orders.OrderItem {
	items := make([]orders.OrderItem, 0, len(cart.Items))
	for _, l := range cart.Items {
		items = append(items, orders.OrderItem{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}
	return items
}

// ---- queries ----

// GetOrder returns the order only to its owner; anyone else gets not found.
func (c *Coordinator) GetOrder(ctx context.Context, orderID string, userID int64) (*orders.Order, error) {
	o, err := c.d.Ledger.Get(ctx, orderID)
	if err != nil {
		return nil, ledgerFailure("read order", err)
	}
	if o.UserID != userID {
		return nil, orders.Fail(orders.ErrNotFound, "order not found", nil)
	}
	return o, nil
}

func (c *Coordinator) ListOrders(ctx context.Context, userID int64) ([]orders.Order, error) {
	list, err := c.d.Ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, ledgerFailure("list orders", err)
	}
	return list, nil
}

func (c *Coordinator) Statistics(ctx context.Context, userID int64) (orders.Stats, error) {
	st, err := c.d.Ledger.Stats(ctx, userID)
	if err != nil {
		return orders.Stats{}, ledgerFailure("order statistics", err)
	}
	return st, nil
}

func (c *Coordinator) History(ctx context.Context, orderID string, userID int64) ([]orders.StatusChange, error) {
	if _, err := c.GetOrder(ctx, orderID, userID); err != nil {
		return nil, err
	}
	h, err := c.d.Ledger.History(ctx, orderID)
	if err != nil {
		return nil, ledgerFailure("order history", err)
	}
	return h, nil
}
