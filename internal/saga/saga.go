// Package saga turns a cart into an order across the cart, user and inventory
// services, and drives the order through its status lifecycle.
package saga

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/events"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-shop-orders/internal/saga")

type CartReader interface {
	GetCart(ctx context.Context, userID int64, credential string) (orders.Cart, error)
}

type UserDirectory interface {
	Resolve(ctx context.Context, credential string) (orders.Identity, error)
}

// Ledger is the durable order store. UpdateStatus is conditional on from and
// returns orders.ErrStatusConflict when the stored status moved.
type Ledger interface {
	Create(ctx context.Context, o *orders.Order) error
	Get(ctx context.Context, id string) (*orders.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]orders.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to orders.Status) (*orders.Order, error)
	History(ctx context.Context, id string) ([]orders.StatusChange, error)
	Stats(ctx context.Context, userID int64) (orders.Stats, error)
}

// Compensator gives reserved stock back. It returns the lines it could only
// hand to reconciliation.
type Compensator interface {
	ReleaseAll(ctx context.Context, orderID, reason string, lines []orders.ItemQty) ([]orders.ItemQty, error)
}

type Deps struct {
	Carts    CartReader
	Users    UserDirectory
	Stock    inventory.Store
	Ledger   Ledger
	Releaser Compensator
	Events   events.Publisher
	Log      *zap.Logger

	// CallTimeout bounds each collaborator call.
	CallTimeout time.Duration
	// CompensationTimeout bounds a release batch. It runs detached from the
	// caller's cancellation.
	CompensationTimeout time.Duration
}

const (
	defaultCallTimeout         = 10 * time.Second
	defaultCompensationTimeout = 30 * time.Second
)

func (d Deps) withDefaults() Deps {
	if d.Events == nil {
		d.Events = events.Discard{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.CallTimeout <= 0 {
		d.CallTimeout = defaultCallTimeout
	}
	if d.CompensationTimeout <= 0 {
		d.CompensationTimeout = defaultCompensationTimeout
	}
	return d
}

func (d Deps) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.CallTimeout)
}

// detached survives the caller going away so stock is never left reserved.
func (d Deps) detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), d.CompensationTimeout)
}

// collaboratorFailure maps a cart or user service error into the taxonomy.
func collaboratorFailure(service string, err error) error {
	if errors.Is(err, orders.ErrUnauthenticated) {
		return orders.Fail(orders.ErrUnauthenticated, "credential rejected by "+service, err)
	}
	return orders.Fail(orders.ErrDependencyUnavailable, service+" unavailable", err)
}

func ledgerFailure(op string, err error) error {
	if errors.Is(err, orders.ErrNotFound) {
		return orders.Fail(orders.ErrNotFound, "order not found", nil)
	}
	return orders.Fail(orders.ErrPersistenceFailed, op, err)
}
