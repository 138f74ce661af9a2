/*
store.go - Persistence contract for the costing engine

PURPOSE:
  Defines the narrow record-store interface the engine runs against. Any
  relational or embedded store can satisfy it; the engine never sees SQL.

WRITE DISCIPLINE:
  - Purchases create lots exactly once, at purchase time
  - Lot remaining quantity changes ONLY through AdjustLotRemaining,
    CommitRelease and RevertRelease
  - CommitRelease and RevertRelease are atomic: either every allocation
    and lot adjustment lands, or none does

IMPLEMENTATIONS:
  - store/sqlite: production store on mattn/go-sqlite3
  - engine/store:  in-memory store for tests and development
*/
package engine

import (
	"context"
	"time"
)

// RecordStore persists the engine's records.
type RecordStore interface {
	// ---- master data ----

	CreateProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, id ProductID) (Product, error)
	ListProducts(ctx context.Context) ([]Product, error)

	CreateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	ListSuppliers(ctx context.Context) ([]Supplier, error)

	CreateClient(ctx context.Context, c Client) (Client, error)
	ListClients(ctx context.Context) ([]Client, error)

	// ---- purchases ----

	// CreatePurchase persists the purchase, its lines, and one lot per
	// line, atomically. Returns the purchase with assigned identities.
	CreatePurchase(ctx context.Context, p Purchase) (Purchase, error)

	GetPurchase(ctx context.Context, id PurchaseID) (Purchase, error)

	// ListPurchases returns purchases with date in [from, to], ascending
	// by (date, id). Zero times mean unbounded.
	ListPurchases(ctx context.Context, from, to time.Time) ([]Purchase, error)

	// DeletePurchase removes the purchase, its lines, its lots, and any
	// allocations/releases referencing those lots. Administrative
	// correction path; atomic.
	DeletePurchase(ctx context.Context, id PurchaseID) error

	// ---- sales ----

	CreateSale(ctx context.Context, s Sale) (Sale, error)
	GetSale(ctx context.Context, id SaleID) (Sale, error)
	ListSales(ctx context.Context, from, to time.Time) ([]Sale, error)

	// DeleteSale removes an unreleased sale and its lines. Fails with
	// ErrSaleReleased if a release still references it.
	DeleteSale(ctx context.Context, id SaleID) error

	// ---- lots ----

	GetLot(ctx context.Context, id LotID) (Lot, error)

	// LotsByProduct returns every lot of the product (any remaining
	// quantity), ascending by (acquired_at, id).
	LotsByProduct(ctx context.Context, id ProductID) ([]Lot, error)

	// AdjustLotRemaining applies a signed delta to a lot's remaining
	// quantity, failing with an InvariantError if the result would leave
	// [0, original].
	AdjustLotRemaining(ctx context.Context, id LotID, delta int64) error

	// ---- releases ----

	GetRelease(ctx context.Context, id ReleaseID) (Release, error)

	// GetReleaseBySale returns the release referencing the sale, or
	// ErrReleaseNotFound.
	GetReleaseBySale(ctx context.Context, id SaleID) (Release, error)

	AllocationsByRelease(ctx context.Context, id ReleaseID) ([]Allocation, error)

	// CommitRelease persists the release and its allocations and
	// decrements each allocated lot, atomically.
	CommitRelease(ctx context.Context, r Release, allocs []Allocation) error

	// RevertRelease increments each allocated lot by its taken quantity,
	// then deletes the allocations and the release, atomically.
	RevertRelease(ctx context.Context, id ReleaseID) error
}
