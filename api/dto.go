/*
dto.go - Data transfer objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY AND DATES:
  Monetary amounts cross the wire as decimal strings ("12.50"), never as
  floats. Dates use YYYY-MM-DD in requests and responses; full timestamps
  use RFC3339.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Route wiring
*/
package api

import (
	"time"

	"github.com/almacen/stock-engine/engine"
	"github.com/almacen/stock-engine/kardex"
)

const dateLayout = "2006-01-02"

// =============================================================================
// MASTER DATA
// =============================================================================

// ProductDTO represents a product in API responses.
type ProductDTO struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	ReferencePrice string `json:"reference_price"`
	SupplierID     int64  `json:"supplier_id,omitempty"`
}

// CreateProductRequest is the request to create a product.
type CreateProductRequest struct {
	Name           string `json:"name"`
	ReferencePrice string `json:"reference_price"`
	SupplierID     int64  `json:"supplier_id,omitempty"`
}

// SupplierDTO represents a supplier.
type SupplierDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
	Address string `json:"address,omitempty"`
}

// ClientDTO represents a client.
type ClientDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
}

// =============================================================================
// PURCHASES AND SALES
// =============================================================================

// PurchaseLineDTO is one line of a purchase document.
type PurchaseLineDTO struct {
	ID        int64  `json:"id,omitempty"`
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitCost  string `json:"unit_cost"`
}

// PurchaseDTO represents a purchase document.
type PurchaseDTO struct {
	ID         int64             `json:"id"`
	Date       string            `json:"date"`
	SupplierID int64             `json:"supplier_id,omitempty"`
	Lines      []PurchaseLineDTO `json:"lines"`
}

// CreatePurchaseRequest is the request to record a purchase.
type CreatePurchaseRequest struct {
	Date       string            `json:"date"`
	SupplierID int64             `json:"supplier_id,omitempty"`
	Lines      []PurchaseLineDTO `json:"lines"`
}

// SaleLineDTO is one line of a sale document.
type SaleLineDTO struct {
	ID        int64  `json:"id,omitempty"`
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

// SaleDTO represents a sale document.
type SaleDTO struct {
	ID       int64         `json:"id"`
	Date     string        `json:"date"`
	ClientID int64         `json:"client_id,omitempty"`
	Lines    []SaleLineDTO `json:"lines"`
	Released bool          `json:"released"`
}

// CreateSaleRequest is the request to record a sale.
type CreateSaleRequest struct {
	Date     string        `json:"date"`
	ClientID int64         `json:"client_id,omitempty"`
	Lines    []SaleLineDTO `json:"lines"`
}

// =============================================================================
// LOTS AND RELEASES
// =============================================================================

// LotDTO represents one stock lot.
type LotDTO struct {
	ID         int64  `json:"id"`
	ProductID  int64  `json:"product_id"`
	PurchaseID int64  `json:"purchase_id"`
	Quantity   int64  `json:"quantity"`
	Remaining  int64  `json:"remaining"`
	UnitCost   string `json:"unit_cost"`
	AcquiredAt string `json:"acquired_at"`
}

// ReleaseRequest asks the engine to cost a sale against stock.
type ReleaseRequest struct {
	SaleID int64  `json:"sale_id"`
	Date   string `json:"date,omitempty"`  // defaults to the sale date
	Order  string `json:"order,omitempty"` // "oldest" (default) or "newest"
}

// AllocationDTO is one lot consumption inside a release.
type AllocationDTO struct {
	LotID    int64  `json:"lot_id"`
	Quantity int64  `json:"quantity"`
	UnitCost string `json:"unit_cost"`
	Subtotal string `json:"subtotal"`
}

// ReleaseDTO represents a committed release.
type ReleaseDTO struct {
	ID          string          `json:"id"`
	SaleID      int64           `json:"sale_id"`
	Date        string          `json:"date"`
	Order       string          `json:"order"`
	Total       string          `json:"total"`
	CreatedAt   string          `json:"created_at"`
	Allocations []AllocationDTO `json:"allocations,omitempty"`
}

// =============================================================================
// KARDEX REPORTS
// =============================================================================

// MovementDTO is a quantity/cost/total triple; absent fields render as null.
type MovementDTO struct {
	Quantity int64  `json:"quantity"`
	UnitCost string `json:"unit_cost"`
	Total    string `json:"total"`
}

// KardexRowDTO is one report row.
type KardexRowDTO struct {
	Date     string       `json:"date,omitempty"`
	Kind     string       `json:"kind"`
	Product  string       `json:"product"`
	SourceID int64        `json:"source_id,omitempty"`
	Entry    *MovementDTO `json:"entry,omitempty"`
	Exit     *MovementDTO `json:"exit,omitempty"`
	Balance  *MovementDTO `json:"balance,omitempty"`
}

// KardexTotalDTO is the closing position of one product.
type KardexTotalDTO struct {
	ProductID int64  `json:"product_id"`
	Product   string `json:"product"`
	Quantity  int64  `json:"quantity"`
	Value     string `json:"value"`
}

// KardexReportDTO is the full report payload.
type KardexReportDTO struct {
	From   string           `json:"from"`
	To     string           `json:"to"`
	Method string           `json:"method"`
	Rows   []KardexRowDTO   `json:"rows"`
	Totals []KardexTotalDTO `json:"totals"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toProductDTO(p engine.Product) ProductDTO {
	return ProductDTO{
		ID:             int64(p.ID),
		Name:           p.Name,
		ReferencePrice: p.ReferencePrice.String(),
		SupplierID:     int64(p.SupplierID),
	}
}

func toPurchaseDTO(p engine.Purchase) PurchaseDTO {
	dto := PurchaseDTO{
		ID:         int64(p.ID),
		Date:       p.Date.Format(dateLayout),
		SupplierID: int64(p.SupplierID),
	}
	for _, l := range p.Lines {
		dto.Lines = append(dto.Lines, PurchaseLineDTO{
			ID:        l.ID,
			ProductID: int64(l.ProductID),
			Quantity:  l.Quantity,
			UnitCost:  l.UnitCost.String(),
		})
	}
	return dto
}

func toSaleDTO(s engine.Sale, released bool) SaleDTO {
	dto := SaleDTO{
		ID:       int64(s.ID),
		Date:     s.Date.Format(dateLayout),
		ClientID: int64(s.ClientID),
		Released: released,
	}
	for _, l := range s.Lines {
		dto.Lines = append(dto.Lines, SaleLineDTO{
			ID:        l.ID,
			ProductID: int64(l.ProductID),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.String(),
		})
	}
	return dto
}

func toLotDTO(l engine.Lot) LotDTO {
	return LotDTO{
		ID:         int64(l.ID),
		ProductID:  int64(l.ProductID),
		PurchaseID: int64(l.PurchaseID),
		Quantity:   l.Quantity,
		Remaining:  l.Remaining,
		UnitCost:   l.UnitCost.String(),
		AcquiredAt: l.AcquiredAt.Format(dateLayout),
	}
}

func toReleaseDTO(r engine.Release, allocs []engine.Allocation) ReleaseDTO {
	dto := ReleaseDTO{
		ID:        string(r.ID),
		SaleID:    int64(r.SaleID),
		Date:      r.Date.Format(dateLayout),
		Order:     string(r.Order),
		Total:     r.Total.String(),
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
	for _, a := range allocs {
		dto.Allocations = append(dto.Allocations, AllocationDTO{
			LotID:    int64(a.LotID),
			Quantity: a.Quantity,
			UnitCost: a.UnitCost.String(),
			Subtotal: a.Subtotal.String(),
		})
	}
	return dto
}

func toMovementDTO(m *kardex.Movement) *MovementDTO {
	if m == nil {
		return nil
	}
	return &MovementDTO{
		Quantity: m.Quantity,
		UnitCost: m.UnitCost.String(),
		Total:    m.Total.String(),
	}
}

func toKardexReportDTO(rep *kardex.Report) KardexReportDTO {
	dto := KardexReportDTO{
		From:   rep.From.Format(dateLayout),
		To:     rep.To.Format(dateLayout),
		Method: string(rep.Method),
		Rows:   []KardexRowDTO{},
		Totals: []KardexTotalDTO{},
	}
	for _, t := range rep.Totals {
		dto.Totals = append(dto.Totals, KardexTotalDTO{
			ProductID: int64(t.ProductID),
			Product:   t.Product,
			Quantity:  t.Quantity,
			Value:     t.Value.String(),
		})
	}
	for _, row := range rep.Rows {
		r := KardexRowDTO{
			Kind:     string(row.Kind),
			Product:  row.Product,
			SourceID: row.SourceID,
			Entry:    toMovementDTO(row.Entry),
			Exit:     toMovementDTO(row.Exit),
			Balance:  toMovementDTO(row.Balance),
		}
		if !row.Date.IsZero() {
			r.Date = row.Date.Format(dateLayout)
		}
		dto.Rows = append(dto.Rows, r)
	}
	return dto
}
