/*
average.go - Moving weighted average cost per product

PURPOSE:
  Tracks a single (quantity, average unit cost) pair per product. Lot
  identity plays no role: a purchase blends into the average, a sale
  consumes at the current average without changing it.

  State here is report-scoped, not stock-scoped: the ledger replay builds
  a fresh tracker per invocation and never persists it.

SHORTAGES:
  A sale exceeding the tracked quantity is NOT an error on this path. The
  tracker consumes what is there and reports the unmet remainder, which
  the replay prices at zero. Committed stock control lives in the release
  workflow, not here.
*/
package engine

import "github.com/shopspring/decimal"

// AverageState is one product's running weighted-average position.
type AverageState struct {
	Quantity        int64
	AverageUnitCost decimal.Decimal
}

// Value returns Quantity * AverageUnitCost.
func (s AverageState) Value() decimal.Decimal {
	return decimal.NewFromInt(s.Quantity).Mul(s.AverageUnitCost)
}

// WeightedAverageTracker holds per-product average state for one costing
// run. Not safe for concurrent use; each replay owns its own tracker.
type WeightedAverageTracker struct {
	states map[ProductID]AverageState
}

func NewWeightedAverageTracker() *WeightedAverageTracker {
	return &WeightedAverageTracker{states: make(map[ProductID]AverageState)}
}

// State returns the product's current position (zero value if untouched).
func (t *WeightedAverageTracker) State(id ProductID) AverageState {
	return t.states[id]
}

// ApplyPurchase blends qty at unitCost into the product's average:
// newAvg = (q0*avg0 + qty*cost) / (q0+qty), or zero when the combined
// quantity is zero.
func (t *WeightedAverageTracker) ApplyPurchase(id ProductID, qty int64, unitCost decimal.Decimal) AverageState {
	s := t.states[id]

	combined := s.Quantity + qty
	if combined == 0 {
		s.Quantity = 0
		s.AverageUnitCost = decimal.Zero
		t.states[id] = s
		return s
	}

	total := s.Value().Add(decimal.NewFromInt(qty).Mul(unitCost))
	s.Quantity = combined
	s.AverageUnitCost = total.Div(decimal.NewFromInt(combined))
	t.states[id] = s
	return s
}

// ApplySale consumes min(quantity, qty) at the current average, leaving
// the average unchanged. Returns the resulting state and the shortage
// (zero when fully covered).
func (t *WeightedAverageTracker) ApplySale(id ProductID, qty int64) (AverageState, int64) {
	s := t.states[id]

	consumed := qty
	shortage := int64(0)
	if consumed > s.Quantity {
		shortage = consumed - s.Quantity
		consumed = s.Quantity
	}

	// The average survives a zero balance; the next purchase re-blends
	// from whatever quantity is left.
	s.Quantity -= consumed
	t.states[id] = s
	return s, shortage
}
