/*
handlers.go - HTTP API handlers for the stock engine

PURPOSE:
  Exposes the costing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Master data:
    GET    /api/products               List products
    POST   /api/products               Create product
    GET    /api/products/{id}          Get product
    GET    /api/products/{id}/lots     List the product's lots
    GET    /api/suppliers              List suppliers
    POST   /api/suppliers              Create supplier
    GET    /api/clients                List clients
    POST   /api/clients                Create client

  Documents:
    GET    /api/purchases              List purchases (?from=&to= or ?month=YYYY-MM)
    POST   /api/purchases              Record a purchase
    GET    /api/purchases/{id}         Get purchase
    DELETE /api/purchases/{id}         Delete purchase and its lots
    GET    /api/sales                  List sales (?from=&to=)
    POST   /api/sales                  Record a sale
    GET    /api/sales/{id}             Get sale
    DELETE /api/sales/{id}             Delete sale (409 if released)

  Costing:
    POST   /api/releases               Release a sale against stock
    GET    /api/releases/{id}          Get release with allocations
    DELETE /api/releases/{id}          Undo a release, restoring lots

  Reports:
    GET    /api/kardex                 Replay report (?from=&to=&method=)
    GET    /api/kardex/export          Same report as an xlsx download

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (already released, sale has a release, stock shortage)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - seed.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/almacen/stock-engine/engine"
	"github.com/almacen/stock-engine/kardex"
	"github.com/almacen/stock-engine/kardex/export"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    engine.RecordStore
	Releases *engine.ReleaseService
	Kardex   *kardex.Engine
}

// NewHandler creates a new handler over the given store.
func NewHandler(store engine.RecordStore) *Handler {
	return &Handler{
		Store:    store,
		Releases: engine.NewReleaseService(store),
		Kardex:   kardex.NewEngine(store),
	}
}

// =============================================================================
// MASTER DATA HANDLERS
// =============================================================================

// ListProducts returns all products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list products", err)
		return
	}

	dtos := make([]ProductDTO, len(products))
	for i, p := range products {
		dtos[i] = toProductDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product id", err)
		return
	}

	p, err := h.Store.GetProduct(r.Context(), engine.ProductID(id))
	if err != nil {
		writeDomainError(w, "Failed to get product", err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// CreateProduct creates a new product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Product name is required", nil)
		return
	}

	price := decimal.Zero
	if req.ReferencePrice != "" {
		var err error
		if price, err = decimal.NewFromString(req.ReferencePrice); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid reference_price", err)
			return
		}
	}

	p, err := h.Store.CreateProduct(r.Context(), engine.Product{
		Name:           req.Name,
		ReferencePrice: price,
		SupplierID:     engine.SupplierID(req.SupplierID),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create product", err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

// ListProductLots returns the product's lots, oldest first.
func (h *Handler) ListProductLots(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid product id", err)
		return
	}

	lots, err := h.Store.LotsByProduct(r.Context(), engine.ProductID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list lots", err)
		return
	}

	dtos := make([]LotDTO, len(lots))
	for i, l := range lots {
		dtos[i] = toLotDTO(l)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListSuppliers returns all suppliers.
func (h *Handler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.Store.ListSuppliers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list suppliers", err)
		return
	}

	dtos := make([]SupplierDTO, len(suppliers))
	for i, s := range suppliers {
		dtos[i] = SupplierDTO{ID: int64(s.ID), Name: s.Name, Contact: s.Contact, Address: s.Address}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSupplier creates a new supplier.
func (h *Handler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req SupplierDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Supplier name is required", nil)
		return
	}

	s, err := h.Store.CreateSupplier(r.Context(), engine.Supplier{
		Name: req.Name, Contact: req.Contact, Address: req.Address,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create supplier", err)
		return
	}
	writeJSON(w, http.StatusCreated, SupplierDTO{ID: int64(s.ID), Name: s.Name, Contact: s.Contact, Address: s.Address})
}

// ListClients returns all clients.
func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Store.ListClients(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list clients", err)
		return
	}

	dtos := make([]ClientDTO, len(clients))
	for i, c := range clients {
		dtos[i] = ClientDTO{ID: int64(c.ID), Name: c.Name, Contact: c.Contact}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateClient creates a new client.
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Client name is required", nil)
		return
	}

	c, err := h.Store.CreateClient(r.Context(), engine.Client{Name: req.Name, Contact: req.Contact})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create client", err)
		return
	}
	writeJSON(w, http.StatusCreated, ClientDTO{ID: int64(c.ID), Name: c.Name, Contact: c.Contact})
}

// =============================================================================
// PURCHASE HANDLERS
// =============================================================================

// CreatePurchase records a purchase and creates one lot per line.
func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	var req CreatePurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "Purchase needs at least one line", nil)
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	purchase := engine.Purchase{
		Date:       date,
		SupplierID: engine.SupplierID(req.SupplierID),
	}
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "Line quantity must be positive", nil)
			return
		}
		cost, err := decimal.NewFromString(l.UnitCost)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unit_cost", err)
			return
		}
		if cost.IsNegative() {
			writeError(w, http.StatusBadRequest, "Unit cost must not be negative", nil)
			return
		}
		purchase.Lines = append(purchase.Lines, engine.PurchaseLine{
			ProductID: engine.ProductID(l.ProductID),
			Quantity:  l.Quantity,
			UnitCost:  cost,
		})
	}

	created, err := h.Store.CreatePurchase(r.Context(), purchase)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record purchase", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPurchaseDTO(created))
}

// GetPurchase returns one purchase with its lines.
func (h *Handler) GetPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid purchase id", err)
		return
	}

	p, err := h.Store.GetPurchase(r.Context(), engine.PurchaseID(id))
	if err != nil {
		writeDomainError(w, "Failed to get purchase", err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseDTO(p))
}

// ListPurchases returns purchases, optionally filtered by date range or month.
func (h *Handler) ListPurchases(w http.ResponseWriter, r *http.Request) {
	from, to, err := windowFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date filter", err)
		return
	}

	purchases, err := h.Store.ListPurchases(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list purchases", err)
		return
	}

	dtos := make([]PurchaseDTO, len(purchases))
	for i, p := range purchases {
		dtos[i] = toPurchaseDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeletePurchase removes a purchase, its lines and its lots.
func (h *Handler) DeletePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid purchase id", err)
		return
	}

	if err := h.Store.DeletePurchase(r.Context(), engine.PurchaseID(id)); err != nil {
		writeDomainError(w, "Failed to delete purchase", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SALE HANDLERS
// =============================================================================

// CreateSale records a sale document. No stock moves until it is released.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Lines) == 0 {
		writeError(w, http.StatusBadRequest, "Sale needs at least one line", nil)
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	sale := engine.Sale{
		Date:     date,
		ClientID: engine.ClientID(req.ClientID),
	}
	for _, l := range req.Lines {
		if l.Quantity <= 0 {
			writeError(w, http.StatusBadRequest, "Line quantity must be positive", nil)
			return
		}
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid unit_price", err)
			return
		}
		sale.Lines = append(sale.Lines, engine.SaleLine{
			ProductID: engine.ProductID(l.ProductID),
			Quantity:  l.Quantity,
			UnitPrice: price,
		})
	}

	created, err := h.Store.CreateSale(r.Context(), sale)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(created, false))
}

// GetSale returns one sale with its lines and release status.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale id", err)
		return
	}

	sale, err := h.Store.GetSale(r.Context(), engine.SaleID(id))
	if err != nil {
		writeDomainError(w, "Failed to get sale", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaleDTO(sale, h.saleReleased(r, sale.ID)))
}

// ListSales returns sales, optionally filtered by date range.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	from, to, err := windowFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date filter", err)
		return
	}

	sales, err := h.Store.ListSales(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sales", err)
		return
	}

	dtos := make([]SaleDTO, len(sales))
	for i, s := range sales {
		dtos[i] = toSaleDTO(s, h.saleReleased(r, s.ID))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DeleteSale removes an unreleased sale.
func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sale id", err)
		return
	}

	if err := h.Store.DeleteSale(r.Context(), engine.SaleID(id)); err != nil {
		writeDomainError(w, "Failed to delete sale", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) saleReleased(r *http.Request, id engine.SaleID) bool {
	_, err := h.Store.GetReleaseBySale(r.Context(), id)
	return err == nil
}

// =============================================================================
// RELEASE HANDLERS
// =============================================================================

// CreateRelease costs a sale against stock and commits the result.
func (h *Handler) CreateRelease(w http.ResponseWriter, r *http.Request) {
	var req ReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	order, err := parseOrder(req.Order)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid order", err)
		return
	}

	date := time.Time{}
	if req.Date != "" {
		if date, err = time.Parse(dateLayout, req.Date); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
			return
		}
	} else {
		sale, err := h.Store.GetSale(r.Context(), engine.SaleID(req.SaleID))
		if err != nil {
			writeDomainError(w, "Failed to get sale", err)
			return
		}
		date = sale.Date
	}

	release, allocs, err := h.Releases.Release(r.Context(), engine.SaleID(req.SaleID), date, order)
	if err != nil {
		writeDomainError(w, "Failed to release sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReleaseDTO(release, allocs))
}

// GetRelease returns one release with its allocations.
func (h *Handler) GetRelease(w http.ResponseWriter, r *http.Request) {
	id := engine.ReleaseID(chi.URLParam(r, "id"))

	release, err := h.Store.GetRelease(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get release", err)
		return
	}
	allocs, err := h.Store.AllocationsByRelease(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load allocations", err)
		return
	}
	writeJSON(w, http.StatusOK, toReleaseDTO(release, allocs))
}

// DeleteRelease undoes a release and restores lot quantities.
func (h *Handler) DeleteRelease(w http.ResponseWriter, r *http.Request) {
	id := engine.ReleaseID(chi.URLParam(r, "id"))

	if err := h.Releases.Unrelease(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to undo release", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// KARDEX HANDLERS
// =============================================================================

// GetKardex replays the ledger for a date window and returns the report.
func (h *Handler) GetKardex(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.kardexReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toKardexReportDTO(rep))
}

// ExportKardex replays the ledger and streams the report as xlsx.
func (h *Handler) ExportKardex(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.kardexReport(w, r)
	if !ok {
		return
	}

	filename := fmt.Sprintf("kardex_%s_%s_%s.xlsx",
		rep.Method, rep.From.Format(dateLayout), rep.To.Format(dateLayout))
	w.Header().Set("Content-Type",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	if err := export.Write(rep, w); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to export report", err)
	}
}

func (h *Handler) kardexReport(w http.ResponseWriter, r *http.Request) (*kardex.Report, bool) {
	q := r.URL.Query()

	method := kardex.Method(q.Get("method"))
	if method == "" {
		method = kardex.FIFO
	}
	if !method.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid method (use fifo, lifo or average)", nil)
		return nil, false
	}

	from, err := time.Parse(dateLayout, q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
		return nil, false
	}
	to, err := time.Parse(dateLayout, q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
		return nil, false
	}

	rep, err := h.Kardex.Replay(r.Context(), from, to, method)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to build report", err)
		return nil, false
	}
	return rep, true
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case engine.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, engine.ErrAlreadyReleased),
		errors.Is(err, engine.ErrSaleReleased),
		errors.Is(err, engine.ErrInsufficientStock):
		writeError(w, http.StatusConflict, message, err)
	case engine.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func parseOrder(s string) (engine.LotOrder, error) {
	switch s {
	case "", "oldest", string(engine.OldestFirst):
		return engine.OldestFirst, nil
	case "newest", string(engine.NewestFirst):
		return engine.NewestFirst, nil
	}
	return "", fmt.Errorf("unknown lot order %q", s)
}

// windowFromQuery parses ?from=&to= or ?month=YYYY-MM into a date window.
// Missing bounds stay zero, which the store treats as unbounded.
func windowFromQuery(r *http.Request) (time.Time, time.Time, error) {
	q := r.URL.Query()

	if month := q.Get("month"); month != "" {
		start, err := time.Parse("2006-01", month)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return start, start.AddDate(0, 1, -1), nil
	}

	var from, to time.Time
	var err error
	if s := q.Get("from"); s != "" {
		if from, err = time.Parse(dateLayout, s); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if s := q.Get("to"); s != "" {
		if to, err = time.Parse(dateLayout, s); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return from, to, nil
}
