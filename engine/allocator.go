/*
allocator.go - Greedy partition of a requested quantity across ordered lots

PURPOSE:
  Given an ordered view of a product's lots, split a requested quantity
  across them: take min(lot remaining, still needed) from each lot until
  the request is covered or the lots run out.

  The allocator NEVER mutates anything. It either returns takes covering
  the full request, or an InsufficientStockError with the exact unmet
  amount, and the caller decides what to commit. This keeps the algorithm
  testable in isolation and makes the release workflow all-or-nothing.

SEE ALSO:
  - lotstore.go: produces the ordered as-of views consumed here
  - release.go:  commits takes against the store
*/
package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Take is one allocator decision: quantity to draw from one lot.
type Take struct {
	LotID    LotID
	Quantity int64
	UnitCost decimal.Decimal
}

// Subtotal is Quantity * UnitCost.
func (t Take) Subtotal() decimal.Decimal {
	return decimal.NewFromInt(t.Quantity).Mul(t.UnitCost)
}

// LotView is the read side the allocator needs; satisfied by LotStore.
type LotView interface {
	LotsFor(ctx context.Context, productID ProductID, asOf time.Time, order LotOrder) ([]Lot, error)
}

// Allocator partitions requests across lots. Stateless.
type Allocator struct{}

// Allocate covers qty from the product's lots eligible at asOf, in the
// given order. Returns the per-lot takes or an InsufficientStockError;
// performs no mutation either way.
func (a *Allocator) Allocate(ctx context.Context, view LotView, productID ProductID, qty int64, order LotOrder, asOf time.Time) ([]Take, error) {
	lots, err := view.LotsFor(ctx, productID, asOf, order)
	if err != nil {
		return nil, err
	}

	takes, remaining := PartitionLots(lots, qty)
	if remaining > 0 {
		return nil, &InsufficientStockError{
			ProductID: productID,
			Requested: qty,
			Available: qty - remaining,
		}
	}
	return takes, nil
}

// PartitionLots greedily draws qty from lots in the order given. Returns
// the takes and the quantity that could not be covered (zero on full
// coverage). Shared with the ledger replay, which partitions its own
// working lot copies the same way.
func PartitionLots(lots []Lot, qty int64) ([]Take, int64) {
	var takes []Take
	remaining := qty

	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		if lot.Remaining <= 0 {
			continue
		}
		take := lot.Remaining
		if remaining < take {
			take = remaining
		}
		takes = append(takes, Take{LotID: lot.ID, Quantity: take, UnitCost: lot.UnitCost})
		remaining -= take
	}
	return takes, remaining
}
