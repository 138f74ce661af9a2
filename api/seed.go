/*
seed.go - Demo data loader for testing and demonstrations

PURPOSE:

	Populates an empty database with a small, realistic data set so the
	API can be exercised immediately: suppliers, clients, products, a few
	purchases spread over two months, and one released sale.

USAGE VIA API:

	POST /api/seed

NOTE:

	The loader assumes an empty database. Loading twice duplicates the
	documents; use a fresh database file for demos.

SEE ALSO:
  - handlers.go: Handler dependencies
  - server.go: Route wiring
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/almacen/stock-engine/engine"
)

// SeedDemo loads the demo data set.
func (h *Handler) SeedDemo(w http.ResponseWriter, r *http.Request) {
	if err := h.loadDemo(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "seeded"})
}

func (h *Handler) loadDemo(ctx context.Context) error {
	supplier, err := h.Store.CreateSupplier(ctx, engine.Supplier{
		Name:    "Distribuidora Norte",
		Contact: "ventas@norte.example",
		Address: "Av. Industrial 420",
	})
	if err != nil {
		return err
	}

	client, err := h.Store.CreateClient(ctx, engine.Client{
		Name:    "Comercial del Centro",
		Contact: "compras@centro.example",
	})
	if err != nil {
		return err
	}

	type seedProduct struct {
		name  string
		price string
	}
	var products []engine.Product
	for _, sp := range []seedProduct{
		{"Harina 1kg", "3.50"},
		{"Aceite 900ml", "8.20"},
		{"Azucar 1kg", "4.10"},
	} {
		p, err := h.Store.CreateProduct(ctx, engine.Product{
			Name:           sp.name,
			ReferencePrice: decimal.RequireFromString(sp.price),
			SupplierID:     supplier.ID,
		})
		if err != nil {
			return err
		}
		products = append(products, p)
	}

	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	// Two purchase waves so FIFO and LIFO replays diverge.
	purchases := []engine.Purchase{
		{
			Date:       day(2026, time.July, 3),
			SupplierID: supplier.ID,
			Lines: []engine.PurchaseLine{
				{ProductID: products[0].ID, Quantity: 100, UnitCost: decimal.RequireFromString("2.10")},
				{ProductID: products[1].ID, Quantity: 60, UnitCost: decimal.RequireFromString("6.40")},
			},
		},
		{
			Date:       day(2026, time.August, 5),
			SupplierID: supplier.ID,
			Lines: []engine.PurchaseLine{
				{ProductID: products[0].ID, Quantity: 80, UnitCost: decimal.RequireFromString("2.35")},
				{ProductID: products[2].ID, Quantity: 50, UnitCost: decimal.RequireFromString("2.90")},
			},
		},
	}
	for _, p := range purchases {
		if _, err := h.Store.CreatePurchase(ctx, p); err != nil {
			return err
		}
	}

	sale, err := h.Store.CreateSale(ctx, engine.Sale{
		Date:     day(2026, time.August, 12),
		ClientID: client.ID,
		Lines: []engine.SaleLine{
			{ProductID: products[0].ID, Quantity: 120, UnitPrice: decimal.RequireFromString("3.50")},
		},
	})
	if err != nil {
		return err
	}

	_, _, err = h.Releases.Release(ctx, sale.ID, sale.Date, engine.OldestFirst)
	return err
}
