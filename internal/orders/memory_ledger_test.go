package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder(userID int64) *Order {
	return NewOrder(userID, "221B Baker Street", "a@b.c", "Ann", []OrderItem{
		{ProductID: 1, ProductName: "Pen", Quantity: 1, UnitPrice: decimal.NewFromInt(2)},
	})
}

func TestMemoryRepoRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRepo()
	o := newTestOrder(1)
	require.NoError(t, m.Create(ctx, o))

	got, err := m.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	got.Items[0].Quantity = 50
	again, _ := m.Get(ctx, o.ID)
	assert.Equal(t, 1, again.Items[0].Quantity, "callers get copies")

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepoConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRepo()
	o := newTestOrder(1)
	require.NoError(t, m.Create(ctx, o))

	up, err := m.UpdateStatus(ctx, o.ID, StatusPending, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, up.Status)

	_, err = m.UpdateStatus(ctx, o.ID, StatusPending, StatusCancelled)
	assert.ErrorIs(t, err, ErrStatusConflict)

	h, err := m.History(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, h, 2)
	assert.Equal(t, Status(""), h[0].From)
	assert.Equal(t, StatusConfirmed, h[1].To)
}

func TestMemoryRepoListNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryRepo()
	older := newTestOrder(9)
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := newTestOrder(9)
	require.NoError(t, m.Create(ctx, older))
	require.NoError(t, m.Create(ctx, newer))
	require.NoError(t, m.Create(ctx, newTestOrder(10)))

	list, err := m.ListByUser(ctx, 9)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)

	st, err := m.Stats(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, "4.00", st.TotalSpent.StringFixed(2))
}
