package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps stock in the products table. Reserve is one conditional
// UPDATE, so the row lock Postgres takes for it is the only serialization.
type PostgresStore struct{ DB *pgxpool.Pool }

func (s *PostgresStore) Reserve(ctx context.Context, productID int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, ErrInvalidQuantity
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE products SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("reserve product %d: %w", productID, err)
	}
	if ct.RowsAffected() == 1 {
		return true, nil
	}
	// 0 rows: stok kurang atau produk tidak ada
	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id=$1)`, productID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrUnknownProduct
	}
	return false, nil
}

func (s *PostgresStore) Release(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	ct, err := s.DB.Exec(ctx, `UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("release product %d: %w", productID, err)
	}
	if ct.RowsAffected() == 0 {
		return ErrUnknownProduct
	}
	return nil
}

func (s *PostgresStore) Available(ctx context.Context, productID int64) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrUnknownProduct
	}
	return n, err
}

// Seed inserts products that do not exist yet. Existing stock is left alone.
func (s *PostgresStore) Seed(ctx context.Context, stock map[int64]int) error {
	if len(stock) == 0 {
		return nil
	}
	b := &pgx.Batch{}
	for id, qty := range stock {
		b.Queue(`INSERT INTO products(id, stock) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`, id, qty)
	}
	return s.DB.SendBatch(ctx, b).Close()
}
