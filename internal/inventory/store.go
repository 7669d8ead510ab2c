package inventory

import (
	"context"
	"errors"
)

var (
	ErrUnknownProduct  = errors.New("unknown product")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Store is the reservation primitive. Reserve is an atomic check-and-decrement
// per product: it reports false, not an error, when stock is short. Release
// adds back and never fails for a known product.
type Store interface {
	Reserve(ctx context.Context, productID int64, qty int) (bool, error)
	Release(ctx context.Context, productID int64, qty int) error
}

type StockReader interface {
	Available(ctx context.Context, productID int64) (int, error)
}
