package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almacen/stock-engine/engine"
	"github.com/almacen/stock-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func addSale(t *testing.T, mem *store.Memory, date time.Time, lines ...engine.SaleLine) engine.SaleID {
	t.Helper()
	s, err := mem.CreateSale(context.Background(), engine.Sale{Date: date, Lines: lines})
	require.NoError(t, err)
	return s.ID
}

func saleLine(product engine.ProductID, qty int64) engine.SaleLine {
	return engine.SaleLine{ProductID: product, Quantity: qty, UnitPrice: decimal.NewFromInt(10)}
}

func remaining(t *testing.T, mem *store.Memory, id engine.LotID) int64 {
	t.Helper()
	lot, err := mem.GetLot(context.Background(), id)
	require.NoError(t, err)
	return lot.Remaining
}

// =============================================================================
// RELEASE
// =============================================================================

func TestRelease_OldestFirst_CommitsAllocations(t *testing.T) {
	// GIVEN: Lots of 10@2.00 (Jan 1) and 5@3.00 (Jan 10), a sale of 12
	// WHEN: The sale is released oldest-first on Jan 15
	// THEN: 10 from the old lot, 2 from the new, total cost 26.00

	mem, _ := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	oldLot := addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))
	newLot := addLot(t, mem, product, 5, "3.00", day(2024, time.January, 10))
	saleID := addSale(t, mem, day(2024, time.January, 15), saleLine(product, 12))

	svc := engine.NewReleaseService(mem)
	release, allocs, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.OldestFirst)
	require.NoError(t, err)

	assert.NotEmpty(t, release.ID)
	assert.Equal(t, saleID, release.SaleID)
	assert.True(t, release.Total.Equal(decimal.RequireFromString("26.00")),
		"total was %s", release.Total)

	require.Len(t, allocs, 2)
	assert.Equal(t, oldLot, allocs[0].LotID)
	assert.Equal(t, int64(10), allocs[0].Quantity)
	assert.Equal(t, newLot, allocs[1].LotID)
	assert.Equal(t, int64(2), allocs[1].Quantity)

	assert.Equal(t, int64(0), remaining(t, mem, oldLot))
	assert.Equal(t, int64(3), remaining(t, mem, newLot))
}

func TestRelease_NewestFirst_ReversesConsumption(t *testing.T) {
	mem, _ := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	oldLot := addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))
	newLot := addLot(t, mem, product, 5, "3.00", day(2024, time.January, 10))
	saleID := addSale(t, mem, day(2024, time.January, 15), saleLine(product, 12))

	svc := engine.NewReleaseService(mem)
	release, _, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.NewestFirst)
	require.NoError(t, err)

	assert.True(t, release.Total.Equal(decimal.RequireFromString("29.00")),
		"total was %s", release.Total)
	assert.Equal(t, int64(3), remaining(t, mem, oldLot))
	assert.Equal(t, int64(0), remaining(t, mem, newLot))
}

func TestRelease_SecondRelease_Rejected(t *testing.T) {
	// One sale gets exactly one release.

	mem, _ := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))
	saleID := addSale(t, mem, day(2024, time.January, 15), saleLine(product, 3))

	svc := engine.NewReleaseService(mem)
	_, _, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.OldestFirst)
	require.NoError(t, err)

	_, _, err = svc.Release(ctx, saleID, day(2024, time.January, 15), engine.OldestFirst)
	assert.ErrorIs(t, err, engine.ErrAlreadyReleased)
}

func TestRelease_EmptySale_Rejected(t *testing.T) {
	mem, _ := newTestStock(t)
	ctx := context.Background()

	saleID := addSale(t, mem, day(2024, time.January, 15))

	svc := engine.NewReleaseService(mem)
	_, _, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.OldestFirst)
	assert.ErrorIs(t, err, engine.ErrEmptySale)
}

func TestRelease_MissingSale_NotFound(t *testing.T) {
	mem, _ := newTestStock(t)

	svc := engine.NewReleaseService(mem)
	_, _, err := svc.Release(context.Background(), 404, day(2024, time.January, 15), engine.OldestFirst)
	assert.ErrorIs(t, err, engine.ErrSaleNotFound)
}

func TestRelease_Shortage_NothingMutates(t *testing.T) {
	// GIVEN: 15 units on hand, a sale of 20
	// WHEN: The release is attempted
	// THEN: It fails with shortage 5 and no lot changes

	mem, _ := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	lotA := addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))
	lotB := addLot(t, mem, product, 5, "3.00", day(2024, time.January, 10))
	saleID := addSale(t, mem, day(2024, time.January, 15), saleLine(product, 20))

	svc := engine.NewReleaseService(mem)
	_, _, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.OldestFirst)

	var shortErr *engine.InsufficientStockError
	require.ErrorAs(t, err, &shortErr)
	assert.Equal(t, int64(5), shortErr.Shortage())

	assert.Equal(t, int64(10), remaining(t, mem, lotA))
	assert.Equal(t, int64(5), remaining(t, mem, lotB))

	_, err = mem.GetReleaseBySale(ctx, saleID)
	assert.ErrorIs(t, err, engine.ErrReleaseNotFound)
}

func TestRelease_MultiLine_AllOrNothing(t *testing.T) {
	// GIVEN: A sale with one coverable line and one uncoverable line
	// WHEN: The release is attempted
	// THEN: Neither line consumes anything

	mem, _ := newTestStock(t)
	ctx := context.Background()

	flour := addProduct(t, mem, "flour")
	sugar := addProduct(t, mem, "sugar")
	flourLot := addLot(t, mem, flour, 50, "1.00", day(2024, time.January, 1))
	sugarLot := addLot(t, mem, sugar, 2, "4.00", day(2024, time.January, 1))

	saleID := addSale(t, mem, day(2024, time.January, 15),
		saleLine(flour, 10), saleLine(sugar, 5))

	svc := engine.NewReleaseService(mem)
	_, _, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.OldestFirst)
	require.Error(t, err)

	assert.Equal(t, int64(50), remaining(t, mem, flourLot))
	assert.Equal(t, int64(2), remaining(t, mem, sugarLot))
}

func TestRelease_RepeatedProductLines_ShareStock(t *testing.T) {
	// Two lines for the same product must not double-count lot stock.

	mem, _ := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))

	saleID := addSale(t, mem, day(2024, time.January, 15),
		saleLine(product, 6), saleLine(product, 6))

	svc := engine.NewReleaseService(mem)
	_, _, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.OldestFirst)

	var shortErr *engine.InsufficientStockError
	require.ErrorAs(t, err, &shortErr)
	assert.Equal(t, int64(2), shortErr.Shortage())
}

func TestRelease_AllocationsCoverEachLine(t *testing.T) {
	mem, _ := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	addLot(t, mem, product, 4, "2.00", day(2024, time.January, 1))
	addLot(t, mem, product, 4, "2.50", day(2024, time.January, 5))
	addLot(t, mem, product, 4, "3.00", day(2024, time.January, 9))

	saleID := addSale(t, mem, day(2024, time.January, 15), saleLine(product, 9))

	svc := engine.NewReleaseService(mem)
	_, allocs, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.OldestFirst)
	require.NoError(t, err)

	var total int64
	for _, a := range allocs {
		total += a.Quantity
		assert.True(t, a.Subtotal.Equal(decimal.NewFromInt(a.Quantity).Mul(a.UnitCost)))
	}
	assert.Equal(t, int64(9), total)
}

// =============================================================================
// UNRELEASE
// =============================================================================

func TestUnrelease_RestoresLotsExactly(t *testing.T) {
	// GIVEN: A committed release spanning two lots
	// WHEN: It is undone
	// THEN: Every touched lot is back at its prior remaining and the
	//       release record is gone

	mem, _ := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	lotA := addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))
	lotB := addLot(t, mem, product, 5, "3.00", day(2024, time.January, 10))
	saleID := addSale(t, mem, day(2024, time.January, 15), saleLine(product, 12))

	svc := engine.NewReleaseService(mem)
	release, _, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.OldestFirst)
	require.NoError(t, err)

	require.NoError(t, svc.Unrelease(ctx, release.ID))

	assert.Equal(t, int64(10), remaining(t, mem, lotA))
	assert.Equal(t, int64(5), remaining(t, mem, lotB))

	_, err = mem.GetRelease(ctx, release.ID)
	assert.ErrorIs(t, err, engine.ErrReleaseNotFound)

	allocs, err := mem.AllocationsByRelease(ctx, release.ID)
	require.NoError(t, err)
	assert.Empty(t, allocs)
}

func TestUnrelease_ThenReleaseAgain(t *testing.T) {
	// Undoing frees the sale for a new release under a different order.

	mem, _ := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))
	addLot(t, mem, product, 5, "3.00", day(2024, time.January, 10))
	saleID := addSale(t, mem, day(2024, time.January, 15), saleLine(product, 12))

	svc := engine.NewReleaseService(mem)
	first, _, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.OldestFirst)
	require.NoError(t, err)
	require.NoError(t, svc.Unrelease(ctx, first.ID))

	second, _, err := svc.Release(ctx, saleID, day(2024, time.January, 15), engine.NewestFirst)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.Total.Equal(decimal.RequireFromString("29.00")))
}

func TestUnrelease_Unknown_NotFound(t *testing.T) {
	mem, _ := newTestStock(t)

	svc := engine.NewReleaseService(mem)
	err := svc.Unrelease(context.Background(), engine.ReleaseID("missing"))
	assert.ErrorIs(t, err, engine.ErrReleaseNotFound)
}
