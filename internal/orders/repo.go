package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo is the Postgres order ledger. Money columns travel as text so the
// NUMERIC scale survives the round trip into decimal.Decimal.
type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id::text, user_id, status, total_amount::text, shipping_address,
	user_email, user_name, created_at, updated_at`

// Create inserts the order, its items and the initial history row in one tx.
func (r *Repo) Create(ctx context.Context, o *Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, user_id, status, total_amount, shipping_address, user_email, user_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9)
	`, o.ID, o.UserID, o.Status, o.TotalAmount.StringFixed(2), o.ShippingAddress,
		o.UserEmail, o.UserName, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	// insert items dalam satu round trip
	b := &pgx.Batch{}
	for i, it := range o.Items {
		b.Queue(`
			INSERT INTO order_items(order_id, line_no, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
			o.ID, i+1, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice.StringFixed(2))
	}
	b.Queue(`INSERT INTO order_status_history(order_id, from_status, to_status, changed_at) VALUES ($1, NULL, $2, $3)`,
		o.ID, o.Status, o.CreatedAt)
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("insert items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id=$1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.items(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListByUser returns the user's orders newest first.
func (r *Repo) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
		WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	var ids []string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Order{}, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// UpdateStatus moves the order from -> to only if it is still in from.
func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	ct, err := tx.Exec(ctx, `UPDATE orders SET status=$3, updated_at=$4 WHERE id=$1 AND status=$2`, id, from, to, now)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	if ct.RowsAffected() != 1 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrStatusConflict
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO order_status_history(order_id, from_status, to_status, changed_at)
		VALUES ($1, $2, $3, $4)`, id, from, to, now); err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *Repo) History(ctx context.Context, id string) ([]StatusChange, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	rows, err := r.DB.Query(ctx, `
		SELECT COALESCE(from_status, ''), to_status, changed_at
		FROM order_status_history WHERE order_id=$1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusChange
	for rows.Next() {
		c := StatusChange{OrderID: id}
		if err := rows.Scan(&c.From, &c.To, &c.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (r *Repo) Stats(ctx context.Context, userID int64) (Stats, error) {
	st := NewStats()
	rows, err := r.DB.Query(ctx, `
		SELECT status, COUNT(*), COALESCE(SUM(total_amount), 0)::text
		FROM orders WHERE user_id=$1 GROUP BY status`, userID)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s     Status
			n     int
			spent string
		)
		if err := rows.Scan(&s, &n, &spent); err != nil {
			return st, err
		}
		sum, err := decimal.NewFromString(spent)
		if err != nil {
			return st, fmt.Errorf("parse total: %w", err)
		}
		st.Total += n
		st.ByStatus[s] += n
		if s != StatusCancelled {
			st.TotalSpent = st.TotalSpent.Add(sum)
		}
	}
	return st, rows.Err()
}

func (r *Repo) items(ctx context.Context, orderIDs []string) (map[string][]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id::text, product_id, product_name, quantity, unit_price::text
		FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, line_no`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			oid   string
			it    OrderItem
			price string
		)
		if err := rows.Scan(&oid, &it.ProductID, &it.ProductName, &it.Quantity, &price); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse price: %w", err)
		}
		out[oid] = append(out[oid], it)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o     Order
		total string
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.Status, &total, &o.ShippingAddress,
		&o.UserEmail, &o.UserName, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	t, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	o.TotalAmount = t
	o.CreatedAt, o.UpdatedAt = o.CreatedAt.UTC(), o.UpdatedAt.UTC()
	return &o, nil
}
