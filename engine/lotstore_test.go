package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almacen/stock-engine/engine"
)

func TestLotStore_OldestFirst_SortsByDateThenID(t *testing.T) {
	// Same-day lots fall back to creation order.

	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	first := addLot(t, mem, product, 5, "1.00", day(2024, time.March, 1))
	second := addLot(t, mem, product, 5, "1.10", day(2024, time.March, 1))
	third := addLot(t, mem, product, 5, "1.20", day(2024, time.February, 1))

	got, err := lots.LotsFor(ctx, product, day(2024, time.April, 1), engine.OldestFirst)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, third, got[0].ID)
	assert.Equal(t, first, got[1].ID)
	assert.Equal(t, second, got[2].ID)
}

func TestLotStore_NewestFirst_ReversesOrder(t *testing.T) {
	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	first := addLot(t, mem, product, 5, "1.00", day(2024, time.March, 1))
	second := addLot(t, mem, product, 5, "1.10", day(2024, time.March, 1))
	third := addLot(t, mem, product, 5, "1.20", day(2024, time.February, 1))

	got, err := lots.LotsFor(ctx, product, day(2024, time.April, 1), engine.NewestFirst)
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, second, got[0].ID)
	assert.Equal(t, first, got[1].ID)
	assert.Equal(t, third, got[2].ID)
}

func TestLotStore_FiltersFutureAndEmptyLots(t *testing.T) {
	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	visible := addLot(t, mem, product, 5, "1.00", day(2024, time.March, 1))
	drained := addLot(t, mem, product, 5, "1.10", day(2024, time.March, 2))
	addLot(t, mem, product, 5, "1.20", day(2024, time.May, 1)) // future

	require.NoError(t, lots.Decrement(ctx, drained, 5))

	got, err := lots.LotsFor(ctx, product, day(2024, time.April, 1), engine.OldestFirst)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, visible, got[0].ID)
}

func TestLotStore_AsOfBoundaryIsInclusive(t *testing.T) {
	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	lotID := addLot(t, mem, product, 5, "1.00", day(2024, time.March, 1))

	got, err := lots.LotsFor(ctx, product, day(2024, time.March, 1), engine.OldestFirst)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, lotID, got[0].ID)
}

func TestLotStore_DecrementBelowZero_InvariantError(t *testing.T) {
	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	lotID := addLot(t, mem, product, 5, "1.00", day(2024, time.March, 1))

	err := lots.Decrement(ctx, lotID, 6)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInvariantViolation)

	var invErr *engine.InvariantError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, lotID, invErr.LotID)

	// The failed adjustment leaves the lot untouched.
	assert.Equal(t, int64(5), remaining(t, mem, lotID))
}

func TestLotStore_IncrementAboveOriginal_InvariantError(t *testing.T) {
	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	lotID := addLot(t, mem, product, 5, "1.00", day(2024, time.March, 1))

	err := lots.Increment(ctx, lotID, 1)
	assert.ErrorIs(t, err, engine.ErrInvariantViolation)
}

func TestLotStore_DecrementThenIncrement_RoundTrips(t *testing.T) {
	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	lotID := addLot(t, mem, product, 5, "1.00", day(2024, time.March, 1))

	require.NoError(t, lots.Decrement(ctx, lotID, 3))
	assert.Equal(t, int64(2), remaining(t, mem, lotID))

	require.NoError(t, lots.Increment(ctx, lotID, 3))
	assert.Equal(t, int64(5), remaining(t, mem, lotID))
}

func TestLotStore_UnknownLot_NotFound(t *testing.T) {
	mem, lots := newTestStock(t)
	_ = mem

	err := lots.Decrement(context.Background(), 404, 1)
	assert.ErrorIs(t, err, engine.ErrLotNotFound)
}
