package engine_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/almacen/stock-engine/engine"
)

func TestWeightedAverage_BlendsPurchases(t *testing.T) {
	// GIVEN: 10 units at 2.00 already on hand
	// WHEN: 5 more arrive at 3.50
	// THEN: The average becomes (10*2.00 + 5*3.50) / 15

	tr := engine.NewWeightedAverageTracker()
	tr.ApplyPurchase(1, 10, decimal.RequireFromString("2.00"))
	state := tr.ApplyPurchase(1, 5, decimal.RequireFromString("3.50"))

	assert.Equal(t, int64(15), state.Quantity)
	want := decimal.RequireFromString("37.50").Div(decimal.NewFromInt(15))
	assert.True(t, state.AverageUnitCost.Equal(want),
		"average was %s, want %s", state.AverageUnitCost, want)
}

func TestWeightedAverage_SaleKeepsAverage(t *testing.T) {
	// Sales reduce quantity but never move the average.

	tr := engine.NewWeightedAverageTracker()
	tr.ApplyPurchase(1, 10, decimal.RequireFromString("2.00"))
	tr.ApplyPurchase(1, 5, decimal.RequireFromString("3.50"))
	before := tr.State(1).AverageUnitCost

	state, short := tr.ApplySale(1, 8)
	assert.Zero(t, short)
	assert.Equal(t, int64(7), state.Quantity)
	assert.True(t, state.AverageUnitCost.Equal(before))
}

func TestWeightedAverage_ShortageIsDataNotError(t *testing.T) {
	// GIVEN: 5 units on hand
	// WHEN: A sale of 8 is applied
	// THEN: 5 are consumed, 3 reported short, balance is zero

	tr := engine.NewWeightedAverageTracker()
	tr.ApplyPurchase(1, 5, decimal.RequireFromString("4.00"))

	state, short := tr.ApplySale(1, 8)
	assert.Equal(t, int64(3), short)
	assert.Equal(t, int64(0), state.Quantity)
}

func TestWeightedAverage_AverageSurvivesZeroBalance(t *testing.T) {
	// After stock hits zero, the stale average still seeds the next blend.

	tr := engine.NewWeightedAverageTracker()
	tr.ApplyPurchase(1, 10, decimal.RequireFromString("2.00"))
	tr.ApplySale(1, 10)

	state := tr.State(1)
	assert.Equal(t, int64(0), state.Quantity)
	assert.True(t, state.AverageUnitCost.Equal(decimal.RequireFromString("2.00")))

	// Blending from zero quantity adopts the new cost outright.
	state = tr.ApplyPurchase(1, 4, decimal.RequireFromString("5.00"))
	assert.Equal(t, int64(4), state.Quantity)
	assert.True(t, state.AverageUnitCost.Equal(decimal.RequireFromString("5.00")))
}

func TestWeightedAverage_ProductsAreIndependent(t *testing.T) {
	tr := engine.NewWeightedAverageTracker()
	tr.ApplyPurchase(1, 10, decimal.RequireFromString("2.00"))
	tr.ApplyPurchase(2, 3, decimal.RequireFromString("9.00"))

	tr.ApplySale(1, 4)

	assert.Equal(t, int64(6), tr.State(1).Quantity)
	assert.Equal(t, int64(3), tr.State(2).Quantity)
	assert.True(t, tr.State(2).AverageUnitCost.Equal(decimal.RequireFromString("9.00")))
}

func TestAverageState_Value(t *testing.T) {
	s := engine.AverageState{Quantity: 7, AverageUnitCost: decimal.RequireFromString("1.50")}
	assert.True(t, s.Value().Equal(decimal.RequireFromString("10.50")))
}
