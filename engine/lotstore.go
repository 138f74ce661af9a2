/*
lotstore.go - Ordered, as-of views over a product's lots

PURPOSE:
  LotStore is the engine's only reader/writer of lot quantities. It
  produces the ordered views the allocator consumes and funnels every
  decrement/increment through the store's invariant check.

ORDERING:
  Lots are ordered by (acquisition date, lot id). The id tiebreak keeps
  consumption deterministic when two lots share a date.
*/
package engine

import (
	"context"
	"sort"
	"time"
)

// LotStore owns lot mutability and exposes ordered as-of views.
type LotStore struct {
	store RecordStore
}

func NewLotStore(store RecordStore) *LotStore {
	return &LotStore{store: store}
}

// LotsFor returns the product's lots with remaining stock acquired on or
// before asOf, in the given consumption order.
func (s *LotStore) LotsFor(ctx context.Context, productID ProductID, asOf time.Time, order LotOrder) ([]Lot, error) {
	all, err := s.store.LotsByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	var lots []Lot
	for _, lot := range all {
		if lot.Remaining <= 0 {
			continue
		}
		if lot.AcquiredAt.After(asOf) {
			continue
		}
		lots = append(lots, lot)
	}

	sortLots(lots, order)
	return lots, nil
}

// Decrement reduces a lot's remaining quantity. Fails with an
// InvariantError if the result would go below zero.
func (s *LotStore) Decrement(ctx context.Context, id LotID, qty int64) error {
	return s.store.AdjustLotRemaining(ctx, id, -qty)
}

// Increment restores quantity to a lot. Fails with an InvariantError if
// the result would exceed the lot's original quantity.
func (s *LotStore) Increment(ctx context.Context, id LotID, qty int64) error {
	return s.store.AdjustLotRemaining(ctx, id, qty)
}

// sortLots orders lots by (acquired_at, id), ascending for OldestFirst
// and descending for NewestFirst.
func sortLots(lots []Lot, order LotOrder) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if !a.AcquiredAt.Equal(b.AcquiredAt) {
			if order == NewestFirst {
				return a.AcquiredAt.After(b.AcquiredAt)
			}
			return a.AcquiredAt.Before(b.AcquiredAt)
		}
		if order == NewestFirst {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}
