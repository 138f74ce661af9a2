/*
errors.go - Centralized error types for the costing engine

ERROR CATEGORIES:
  1. Release errors  - business-rule rejections (recoverable by the caller)
  2. Invariant errors - lot state corruption (always fatal)
  3. Store errors    - missing records

Callers should match with errors.Is / errors.As; structured errors wrap
the matching sentinel.
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAlreadyReleased is returned when a sale already has a release.
	// The caller must unrelease first; the second call performs no mutation.
	ErrAlreadyReleased = errors.New("sale already released")

	// ErrEmptySale is returned when the sale has no lines. This is a
	// data-integrity precondition failure, not a stock problem.
	ErrEmptySale = errors.New("sale has no lines")

	// ErrInsufficientStock is returned when eligible lots cannot cover a
	// requested quantity. No lot is mutated when this is returned.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvariantViolation is returned when a lot mutation would leave
	// remaining quantity outside [0, original]. Indicates a bug or
	// corrupted state; never silently clamped on the release path.
	ErrInvariantViolation = errors.New("lot quantity invariant violation")

	// ErrReleaseNotFound is returned when a release id resolves to nothing.
	ErrReleaseNotFound = errors.New("release not found")

	// ErrSaleNotFound is returned when a sale id resolves to nothing.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrProductNotFound is returned when a product id resolves to nothing.
	ErrProductNotFound = errors.New("product not found")

	// ErrLotNotFound is returned when a lot id resolves to nothing.
	ErrLotNotFound = errors.New("lot not found")

	// ErrPurchaseNotFound is returned when a purchase id resolves to nothing.
	ErrPurchaseNotFound = errors.New("purchase not found")

	// ErrSaleReleased is returned when deleting a sale that still has a
	// committed release. Unrelease first.
	ErrSaleReleased = errors.New("sale has a committed release")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports the exact unmet amount for one product.
type InsufficientStockError struct {
	ProductID ProductID
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d (short %d)",
		e.ProductID, e.Requested, e.Available, e.Shortage())
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// Shortage is the unmet portion of the request.
func (e *InsufficientStockError) Shortage() int64 { return e.Requested - e.Available }

// InvariantError reports an attempted out-of-range lot mutation.
type InvariantError struct {
	LotID     LotID
	Remaining int64
	Delta     int64
	Original  int64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("lot %d: remaining %d%+d outside [0, %d]",
		e.LotID, e.Remaining, e.Delta, e.Original)
}

func (e *InvariantError) Unwrap() error { return ErrInvariantViolation }

// IsClientError reports whether the error is a business-rule rejection the
// caller can act on, as opposed to a bug or store failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAlreadyReleased) ||
		errors.Is(err, ErrEmptySale) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrSaleReleased)
}

// IsNotFound reports whether the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReleaseNotFound) ||
		errors.Is(err, ErrSaleNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrLotNotFound) ||
		errors.Is(err, ErrPurchaseNotFound)
}
