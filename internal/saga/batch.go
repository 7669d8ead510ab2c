package saga

import (
	"context"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
)

// Batch records the reservations one saga run holds. Only confirmed grants are
// recorded, so compensation never returns stock that was not taken.
type Batch struct {
	store inventory.Store
	lines []orders.ItemQty
}

func NewBatch(store inventory.Store) *Batch {
	return &Batch{store: store}
}

// Reserve forwards to the store and records the line on success. A call that
// fails or times out is treated as not granted.
func (b *Batch) Reserve(ctx context.Context, productID int64, qty int) (bool, error) {
	ok, err := b.store.Reserve(ctx, productID, qty)
	if err != nil || !ok {
		return false, err
	}
	b.lines = append(b.lines, orders.ItemQty{ProductID: productID, Quantity: qty})
	return true, nil
}

func (b *Batch) Lines() []orders.ItemQty {
	return append([]orders.ItemQty(nil), b.lines...)
}

func (b *Batch) Empty() bool { return len(b.lines) == 0 }
