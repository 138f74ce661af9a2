/*
Package kardex reconstructs the historical inventory ledger.

PURPOSE:
  A kardex is the chronological report of entries, exits and running
  balances for each product over a date window, valued under a selected
  costing method: FIFO (PEPS), LIFO (UEPS) or moving weighted average
  (PMP).

  The replay here is a pure function of the raw purchase/sale history.
  It does NOT consult committed releases or allocations: every invocation
  rebuilds its own private lot lists and average state from the events,
  in strict chronological order. The report for a given sale can
  therefore diverge from the lots the release workflow actually
  decremented, whenever release dates were not in chronological order.
  That divergence is deliberate; the kardex answers "what did the stock
  history look like", not "what was committed".

KEY CONCEPTS IN THIS FILE (kardex.go):
  - Method: the costing convention for one replay run
  - Row: one ledger line with entry/exit/balance column groups
  - Movement: a (quantity, unit cost, total) cell group; nil means the
    dash placeholder in rendered output
  - Total: per-product closing position

SEE ALSO:
  - replay.go: the two-pass replay algorithm
  - export/:   spreadsheet rendering of the row sequence
*/
package kardex

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/almacen/stock-engine/engine"
)

// Method selects the costing convention for a replay run.
type Method string

const (
	// FIFO consumes oldest lots first (PEPS).
	FIFO Method = "fifo"
	// LIFO consumes newest lots first (UEPS).
	LIFO Method = "lifo"
	// WeightedAverage tracks one blended average cost per product (PMP).
	WeightedAverage Method = "average"
)

// Valid reports whether m names a supported method.
func (m Method) Valid() bool {
	switch m {
	case FIFO, LIFO, WeightedAverage:
		return true
	}
	return false
}

// Order maps the method to a lot consumption order. Meaningless for
// WeightedAverage, which ignores lot identity.
func (m Method) Order() engine.LotOrder {
	if m == LIFO {
		return engine.NewestFirst
	}
	return engine.OldestFirst
}

// RowKind distinguishes the three ledger line shapes.
type RowKind string

const (
	KindEntry RowKind = "entry"
	KindExit  RowKind = "exit"
	KindTotal RowKind = "total"
)

// Movement is one column group of a row: quantity, unit cost, total.
type Movement struct {
	Quantity int64
	UnitCost decimal.Decimal
	Total    decimal.Decimal
}

func newMovement(qty int64, unitCost decimal.Decimal) *Movement {
	return &Movement{
		Quantity: qty,
		UnitCost: unitCost,
		Total:    decimal.NewFromInt(qty).Mul(unitCost),
	}
}

// Row is one ledger line. Exactly one of Entry/Exit is set for entry and
// exit rows; a nil group renders as the dash placeholder. Balance is nil
// when the affected lot (or product) is exhausted.
type Row struct {
	Date      time.Time
	Kind      RowKind
	ProductID engine.ProductID
	Product   string
	SourceID  int64 // originating purchase or sale identity

	Entry   *Movement
	Exit    *Movement
	Balance *Movement
}

// Total is the closing position of one product. Products with zero or
// negative closing quantity are omitted from reports.
type Total struct {
	ProductID engine.ProductID
	Product   string
	Quantity  int64
	Value     decimal.Decimal
}

// Report is the result of one replay run.
type Report struct {
	From   time.Time
	To     time.Time
	Method Method
	Rows   []Row
	Totals []Total
}
