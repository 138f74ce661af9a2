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

func newTestStock(t *testing.T) (*store.Memory, *engine.LotStore) {
	t.Helper()
	mem := store.NewMemory()
	return mem, engine.NewLotStore(mem)
}

func addProduct(t *testing.T, mem *store.Memory, name string) engine.ProductID {
	t.Helper()
	p, err := mem.CreateProduct(context.Background(), engine.Product{Name: name})
	require.NoError(t, err)
	return p.ID
}

// addLot records a single-line purchase, which creates exactly one lot.
func addLot(t *testing.T, mem *store.Memory, product engine.ProductID, qty int64, cost string, date time.Time) engine.LotID {
	t.Helper()
	p, err := mem.CreatePurchase(context.Background(), engine.Purchase{
		Date: date,
		Lines: []engine.PurchaseLine{
			{ProductID: product, Quantity: qty, UnitCost: decimal.RequireFromString(cost)},
		},
	})
	require.NoError(t, err)

	lots, err := mem.LotsByProduct(context.Background(), product)
	require.NoError(t, err)
	for _, l := range lots {
		if l.PurchaseID == p.ID {
			return l.ID
		}
	}
	t.Fatalf("no lot created for purchase %d", p.ID)
	return 0
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// GREEDY ALLOCATION
// =============================================================================

func TestAllocator_OldestFirst_SpansLots(t *testing.T) {
	// GIVEN: Two lots, 10 units at 2.00 (Jan 1) and 5 units at 3.00 (Jan 10)
	// WHEN: Allocating 12 units oldest-first
	// THEN: 10 come from the old lot and 2 from the new one

	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	oldLot := addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))
	newLot := addLot(t, mem, product, 5, "3.00", day(2024, time.January, 10))

	var alloc engine.Allocator
	takes, err := alloc.Allocate(ctx, lots, product, 12, engine.OldestFirst, day(2024, time.January, 15))
	require.NoError(t, err)

	require.Len(t, takes, 2)
	assert.Equal(t, oldLot, takes[0].LotID)
	assert.Equal(t, int64(10), takes[0].Quantity)
	assert.Equal(t, newLot, takes[1].LotID)
	assert.Equal(t, int64(2), takes[1].Quantity)

	total := takes[0].Subtotal().Add(takes[1].Subtotal())
	assert.True(t, total.Equal(decimal.RequireFromString("26.00")), "total was %s", total)
}

func TestAllocator_NewestFirst_SpansLots(t *testing.T) {
	// GIVEN: The same two lots
	// WHEN: Allocating 12 units newest-first
	// THEN: All 5 come from the new lot and 7 from the old one

	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	oldLot := addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))
	newLot := addLot(t, mem, product, 5, "3.00", day(2024, time.January, 10))

	var alloc engine.Allocator
	takes, err := alloc.Allocate(ctx, lots, product, 12, engine.NewestFirst, day(2024, time.January, 15))
	require.NoError(t, err)

	require.Len(t, takes, 2)
	assert.Equal(t, newLot, takes[0].LotID)
	assert.Equal(t, int64(5), takes[0].Quantity)
	assert.Equal(t, oldLot, takes[1].LotID)
	assert.Equal(t, int64(7), takes[1].Quantity)

	total := takes[0].Subtotal().Add(takes[1].Subtotal())
	assert.True(t, total.Equal(decimal.RequireFromString("29.00")), "total was %s", total)
}

func TestAllocator_ExactFit_ConsumesSingleLot(t *testing.T) {
	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	lotID := addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))

	var alloc engine.Allocator
	takes, err := alloc.Allocate(ctx, lots, product, 10, engine.OldestFirst, day(2024, time.January, 2))
	require.NoError(t, err)

	require.Len(t, takes, 1)
	assert.Equal(t, lotID, takes[0].LotID)
	assert.Equal(t, int64(10), takes[0].Quantity)
}

func TestAllocator_Shortage_ReportsExactAmount(t *testing.T) {
	// GIVEN: 15 units on hand across two lots
	// WHEN: Allocating 20
	// THEN: A typed shortage error reports requested 20, available 15, short 5

	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))
	addLot(t, mem, product, 5, "3.00", day(2024, time.January, 10))

	var alloc engine.Allocator
	takes, err := alloc.Allocate(ctx, lots, product, 20, engine.OldestFirst, day(2024, time.January, 15))

	assert.Nil(t, takes)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrInsufficientStock)

	var shortErr *engine.InsufficientStockError
	require.ErrorAs(t, err, &shortErr)
	assert.Equal(t, product, shortErr.ProductID)
	assert.Equal(t, int64(20), shortErr.Requested)
	assert.Equal(t, int64(15), shortErr.Available)
	assert.Equal(t, int64(5), shortErr.Shortage())
}

func TestAllocator_IgnoresLotsAcquiredAfterAsOf(t *testing.T) {
	// A lot acquired after the allocation date does not exist yet
	// from the allocator's point of view.

	mem, lots := newTestStock(t)
	ctx := context.Background()

	product := addProduct(t, mem, "widget")
	addLot(t, mem, product, 10, "2.00", day(2024, time.January, 1))
	addLot(t, mem, product, 50, "1.00", day(2024, time.February, 1))

	var alloc engine.Allocator
	_, err := alloc.Allocate(ctx, lots, product, 20, engine.OldestFirst, day(2024, time.January, 15))

	var shortErr *engine.InsufficientStockError
	require.ErrorAs(t, err, &shortErr)
	assert.Equal(t, int64(10), shortErr.Available)
}

func TestPartitionLots_SkipsEmptyLots(t *testing.T) {
	lots := []engine.Lot{
		{ID: 1, Remaining: 0, UnitCost: decimal.RequireFromString("2.00")},
		{ID: 2, Remaining: 4, UnitCost: decimal.RequireFromString("3.00")},
	}

	takes, short := engine.PartitionLots(lots, 3)
	assert.Zero(t, short)
	require.Len(t, takes, 1)
	assert.Equal(t, engine.LotID(2), takes[0].LotID)
	assert.Equal(t, int64(3), takes[0].Quantity)
}

func TestPartitionLots_ZeroQuantity_NoTakes(t *testing.T) {
	lots := []engine.Lot{{ID: 1, Remaining: 5, UnitCost: decimal.NewFromInt(1)}}

	takes, short := engine.PartitionLots(lots, 0)
	assert.Empty(t, takes)
	assert.Zero(t, short)
}
