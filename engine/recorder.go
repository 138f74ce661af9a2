/*
recorder.go - Single-line purchase/sale recording

The convenience surface external collaborators use for the common case of
one product per document. Multi-line documents go through the store
directly.
*/
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity indicates a non-positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrInvalidUnitCost indicates a negative cost or price.
	ErrInvalidUnitCost = errors.New("unit cost must be >= 0")
)

// Recorder records purchases and sales against the store.
type Recorder struct {
	store RecordStore
}

func NewRecorder(store RecordStore) *Recorder {
	return &Recorder{store: store}
}

// RecordPurchase creates a one-line purchase and returns the identity of
// the lot it produced.
func (r *Recorder) RecordPurchase(ctx context.Context, productID ProductID, qty int64, unitCost decimal.Decimal, date time.Time) (LotID, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	if unitCost.IsNegative() {
		return 0, ErrInvalidUnitCost
	}
	if _, err := r.store.GetProduct(ctx, productID); err != nil {
		return 0, err
	}

	created, err := r.store.CreatePurchase(ctx, Purchase{
		Date: date,
		Lines: []PurchaseLine{
			{ProductID: productID, Quantity: qty, UnitCost: unitCost},
		},
	})
	if err != nil {
		return 0, err
	}

	lots, err := r.store.LotsByProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	for _, lot := range lots {
		if lot.PurchaseID == created.ID {
			return lot.ID, nil
		}
	}
	return 0, ErrLotNotFound
}

// RecordSale creates a one-line sale and returns the sale line identity.
// Revenue bookkeeping only; stock moves when the sale is released.
func (r *Recorder) RecordSale(ctx context.Context, productID ProductID, qty int64, unitPrice decimal.Decimal, date time.Time) (int64, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	if unitPrice.IsNegative() {
		return 0, ErrInvalidUnitCost
	}
	if _, err := r.store.GetProduct(ctx, productID); err != nil {
		return 0, err
	}

	created, err := r.store.CreateSale(ctx, Sale{
		Date: date,
		Lines: []SaleLine{
			{ProductID: productID, Quantity: qty, UnitPrice: unitPrice},
		},
	})
	if err != nil {
		return 0, err
	}
	return created.Lines[0].ID, nil
}
