/*
Package engine implements the inventory costing core: lot bookkeeping,
greedy cost allocation, and the release workflow that permanently commits
a sale's cost against specific purchase lots.

KEY CONCEPTS IN THIS FILE (types.go):
  - Product/Purchase/Sale: the raw records handed in by collaborators
  - Lot: one purchase line's remaining stock, with its own cost and date
  - Release/Allocation: the committed, auditable result of costing a sale
  - LotOrder: oldest-first (FIFO) or newest-first (LIFO) consumption

DESIGN PRINCIPLES:
  1. Precision: unit costs and totals use decimal.Decimal, never float64
  2. Integer stock: quantities are whole units, as the source records them
  3. Explicit records: every field has one semantic type; no loose tuples

SEE ALSO:
  - allocator.go: greedy partition of a request across ordered lots
  - release.go: the only code path that mutates committed lot state
  - store.go: persistence contract the engine runs against
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	ProductID  int64
	SupplierID int64
	ClientID   int64
	PurchaseID int64
	SaleID     int64
	LotID      int64

	// ReleaseID is a UUID string; releases are created by the engine rather
	// than the store, so they carry their own identity.
	ReleaseID string
)

// LotOrder selects the consumption order over a product's lots.
type LotOrder string

const (
	// OldestFirst consumes lots ascending by acquisition date (FIFO).
	OldestFirst LotOrder = "oldest_first"
	// NewestFirst consumes lots descending by acquisition date (LIFO).
	NewestFirst LotOrder = "newest_first"
)

// =============================================================================
// MASTER DATA
// =============================================================================

// Product is a catalogue entry. Immutable once referenced by a purchase
// or sale line.
type Product struct {
	ID             ProductID
	Name           string
	ReferencePrice decimal.Decimal
	SupplierID     SupplierID
}

// Supplier is a master-data record for purchase provenance.
type Supplier struct {
	ID      SupplierID
	Name    string
	Contact string
	Address string
}

// Client is a master-data record for sale attribution.
type Client struct {
	ID      ClientID
	Name    string
	Contact string
}

// =============================================================================
// PURCHASES AND LOTS
// =============================================================================

// Purchase is an inbound document. Each line creates exactly one Lot.
type Purchase struct {
	ID         PurchaseID
	Date       time.Time
	SupplierID SupplierID
	Lines      []PurchaseLine
}

// PurchaseLine is one product position of a purchase.
type PurchaseLine struct {
	ID         int64
	PurchaseID PurchaseID
	ProductID  ProductID
	Quantity   int64
	UnitCost   decimal.Decimal
}

// Total sums quantity * unit cost over all lines.
func (p Purchase) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(decimal.NewFromInt(l.Quantity).Mul(l.UnitCost))
	}
	return total
}

// Lot is the remaining stock of a single purchase line.
//
// INVARIANTS:
//   - 0 <= Remaining <= Quantity at all times
//   - UnitCost and AcquiredAt never change after creation
//   - only the release workflow (and its reversal) mutates Remaining
type Lot struct {
	ID             LotID
	ProductID      ProductID
	PurchaseID     PurchaseID
	PurchaseLineID int64
	Quantity       int64 // original quantity, fixed at purchase time
	Remaining      int64
	UnitCost       decimal.Decimal
	AcquiredAt     time.Time
}

// Value returns the remaining quantity valued at the lot's unit cost.
func (l Lot) Value() decimal.Decimal {
	return decimal.NewFromInt(l.Remaining).Mul(l.UnitCost)
}

// =============================================================================
// SALES
// =============================================================================

// Sale is an outbound document. Unit prices are revenue bookkeeping only;
// costing is decided by the release against lots, never by the sale price.
type Sale struct {
	ID       SaleID
	Date     time.Time
	ClientID ClientID
	Lines    []SaleLine
}

// SaleLine is one product position of a sale.
type SaleLine struct {
	ID        int64
	SaleID    SaleID
	ProductID ProductID
	Quantity  int64
	UnitPrice decimal.Decimal
}

// Total sums quantity * unit price over all lines.
func (s Sale) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range s.Lines {
		total = total.Add(decimal.NewFromInt(l.Quantity).Mul(l.UnitPrice))
	}
	return total
}

// =============================================================================
// RELEASES AND ALLOCATIONS
// =============================================================================

// Release commits a sale's cost allocation. At most one release exists per
// sale at any time. The release date bounds which lots were eligible; it
// is independent of the sale date.
type Release struct {
	ID        ReleaseID
	SaleID    SaleID
	Date      time.Time
	Order     LotOrder
	Total     decimal.Decimal // sum of allocation subtotals
	CreatedAt time.Time
}

// Allocation records quantity taken from one lot for one release.
type Allocation struct {
	ID        int64
	ReleaseID ReleaseID
	LotID     LotID
	ProductID ProductID
	Quantity  int64
	UnitCost  decimal.Decimal
	Subtotal  decimal.Decimal // Quantity * UnitCost, fixed at release time
}
