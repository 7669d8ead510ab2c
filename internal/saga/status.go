package saga

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

// conflict retries: a concurrent writer moved the order between read and write
const maxTransitionAttempts = 3

type StatusMachine struct {
	d Deps
}

func NewStatusMachine(d Deps) *StatusMachine {
	return &StatusMachine{d: d.withDefaults()}
}

// Transition applies one edge of the status table. Cancelling releases the
// quantities recorded on the order's items.
func (m *StatusMachine) Transition(ctx context.Context, orderID string, to orders.Status) (*orders.Order, error) {
	ctx, span := tracer.Start(ctx, "saga.transition_status", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status.to", string(to))))
	defer span.End()

	o, err := m.transition(ctx, orderID, to)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return nil, err
	}
	return o, nil
}

func (m *StatusMachine) transition(ctx context.Context, orderID string, to orders.Status) (*orders.Order, error) {
	if !to.Valid() {
		return nil, orders.Fail(orders.ErrInvalidInput, fmt.Sprintf("unknown status %q", to), nil)
	}

	var (
		from    orders.Status
		updated *orders.Order
	)
	for attempt := 1; ; attempt++ {
		cur, err := m.d.Ledger.Get(ctx, orderID)
		if err != nil {
			return nil, ledgerFailure("read order", err)
		}
		from = cur.Status
		if !orders.CanTransition(from, to) {
			detail := fmt.Sprintf("cannot change status from %s to %s", from, to)
			if from.Terminal() {
				detail = fmt.Sprintf("order is already %s and can no longer change", from)
			}
			return nil, orders.Fail(orders.ErrInvalidTransition, detail, nil)
		}
		updated, err = m.d.Ledger.UpdateStatus(ctx, orderID, from, to)
		if err == nil {
			break
		}
		if errors.Is(err, orders.ErrStatusConflict) && attempt < maxTransitionAttempts {
			continue
		}
		return nil, ledgerFailure("update status", err)
	}

	log := m.d.Log.With(zap.String("order_id", orderID), zap.Int64("user_id", updated.UserID))
	log.Info("order status changed", zap.String("from", string(from)), zap.String("to", string(to)))

	if err := m.d.Events.Publish(ctx, orders.EventOrderStatusChanged, orders.StatusChangedPayload{
		OrderID:   orderID,
		UserID:    updated.UserID,
		OldStatus: from,
		NewStatus: to,
	}); err != nil {
		log.Warn("publish order.status_changed failed", zap.Error(err))
	}

	if to == orders.StatusCancelled {
		m.cancelled(ctx, log, updated)
	}
	return updated, nil
}

// cancelled returns the order's stock and announces it. A release that cannot
// be applied now is retried and then reconciled; the order stays cancelled.
func (m *StatusMachine) cancelled(ctx context.Context, log *zap.Logger, o *orders.Order) {
	lines := o.Lines()
	dctx, cancel := m.d.detached(ctx)
	defer cancel()

	pending, err := m.d.Releaser.ReleaseAll(dctx, o.ID, inventory.ReasonOrderCancelled, lines)
	if err != nil {
		log.Error("cancellation release incomplete", zap.Error(err))
	}
	if len(pending) > 0 {
		log.Warn("cancellation release pending reconciliation", zap.Any("pending", pending))
	}

	if err := m.d.Events.Publish(ctx, orders.EventOrderCancelled, orders.OrderCancelledPayload{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Items:          lines,
		PendingRelease: pending,
	}); err != nil {
		log.Warn("publish order.cancelled failed", zap.Error(err))
	}
}
