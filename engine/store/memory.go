// Package store provides RecordStore implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/almacen/stock-engine/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements engine.RecordStore with maps behind one mutex. Commit
// and revert are atomic by construction: all mutation happens under the
// lock after every check has passed.
type Memory struct {
	mu sync.RWMutex

	products  map[engine.ProductID]engine.Product
	suppliers map[engine.SupplierID]engine.Supplier
	clients   map[engine.ClientID]engine.Client
	purchases map[engine.PurchaseID]engine.Purchase
	sales     map[engine.SaleID]engine.Sale
	lots      map[engine.LotID]engine.Lot
	releases  map[engine.ReleaseID]engine.Release
	allocs    map[engine.ReleaseID][]engine.Allocation

	nextProduct  int64
	nextSupplier int64
	nextClient   int64
	nextPurchase int64
	nextLine     int64
	nextSale     int64
	nextLot      int64
	nextAlloc    int64
}

func NewMemory() *Memory {
	return &Memory{
		products:  make(map[engine.ProductID]engine.Product),
		suppliers: make(map[engine.SupplierID]engine.Supplier),
		clients:   make(map[engine.ClientID]engine.Client),
		purchases: make(map[engine.PurchaseID]engine.Purchase),
		sales:     make(map[engine.SaleID]engine.Sale),
		lots:      make(map[engine.LotID]engine.Lot),
		releases:  make(map[engine.ReleaseID]engine.Release),
		allocs:    make(map[engine.ReleaseID][]engine.Allocation),
	}
}

// ---- master data ----

func (m *Memory) CreateProduct(_ context.Context, p engine.Product) (engine.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextProduct++
	p.ID = engine.ProductID(m.nextProduct)
	m.products[p.ID] = p
	return p, nil
}

func (m *Memory) GetProduct(_ context.Context, id engine.ProductID) (engine.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return engine.Product{}, engine.ErrProductNotFound
	}
	return p, nil
}

func (m *Memory) ListProducts(_ context.Context) ([]engine.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateSupplier(_ context.Context, s engine.Supplier) (engine.Supplier, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSupplier++
	s.ID = engine.SupplierID(m.nextSupplier)
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *Memory) ListSuppliers(_ context.Context) ([]engine.Supplier, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Supplier, 0, len(m.suppliers))
	for _, s := range m.suppliers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CreateClient(_ context.Context, c engine.Client) (engine.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextClient++
	c.ID = engine.ClientID(m.nextClient)
	m.clients[c.ID] = c
	return c, nil
}

func (m *Memory) ListClients(_ context.Context) ([]engine.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Client, 0, len(m.clients))
	for _, c := range m.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- purchases ----

func (m *Memory) CreatePurchase(_ context.Context, p engine.Purchase) (engine.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPurchase++
	p.ID = engine.PurchaseID(m.nextPurchase)

	for i := range p.Lines {
		m.nextLine++
		p.Lines[i].ID = m.nextLine
		p.Lines[i].PurchaseID = p.ID

		m.nextLot++
		lot := engine.Lot{
			ID:             engine.LotID(m.nextLot),
			ProductID:      p.Lines[i].ProductID,
			PurchaseID:     p.ID,
			PurchaseLineID: p.Lines[i].ID,
			Quantity:       p.Lines[i].Quantity,
			Remaining:      p.Lines[i].Quantity,
			UnitCost:       p.Lines[i].UnitCost,
			AcquiredAt:     p.Date,
		}
		m.lots[lot.ID] = lot
	}

	m.purchases[p.ID] = clonePurchase(p)
	return p, nil
}

func (m *Memory) GetPurchase(_ context.Context, id engine.PurchaseID) (engine.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.purchases[id]
	if !ok {
		return engine.Purchase{}, engine.ErrPurchaseNotFound
	}
	return clonePurchase(p), nil
}

func (m *Memory) ListPurchases(_ context.Context, from, to time.Time) ([]engine.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Purchase
	for _, p := range m.purchases {
		if inRange(p.Date, from, to) {
			out = append(out, clonePurchase(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeletePurchase(_ context.Context, id engine.PurchaseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.purchases[id]; !ok {
		return engine.ErrPurchaseNotFound
	}

	// Cascade: lots of this purchase, then allocations touching those
	// lots, then releases left with no allocations.
	doomed := make(map[engine.LotID]bool)
	for lotID, lot := range m.lots {
		if lot.PurchaseID == id {
			doomed[lotID] = true
			delete(m.lots, lotID)
		}
	}
	for relID, allocs := range m.allocs {
		var kept []engine.Allocation
		for _, a := range allocs {
			if !doomed[a.LotID] {
				kept = append(kept, a)
			}
		}
		if len(kept) == 0 {
			delete(m.allocs, relID)
			delete(m.releases, relID)
		} else {
			m.allocs[relID] = kept
		}
	}

	delete(m.purchases, id)
	return nil
}

// ---- sales ----

func (m *Memory) CreateSale(_ context.Context, s engine.Sale) (engine.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSale++
	s.ID = engine.SaleID(m.nextSale)
	for i := range s.Lines {
		m.nextLine++
		s.Lines[i].ID = m.nextLine
		s.Lines[i].SaleID = s.ID
	}
	m.sales[s.ID] = cloneSale(s)
	return s, nil
}

func (m *Memory) GetSale(_ context.Context, id engine.SaleID) (engine.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sales[id]
	if !ok {
		return engine.Sale{}, engine.ErrSaleNotFound
	}
	return cloneSale(s), nil
}

func (m *Memory) ListSales(_ context.Context, from, to time.Time) ([]engine.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Sale
	for _, s := range m.sales {
		if inRange(s.Date, from, to) {
			out = append(out, cloneSale(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) DeleteSale(_ context.Context, id engine.SaleID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sales[id]; !ok {
		return engine.ErrSaleNotFound
	}
	for _, r := range m.releases {
		if r.SaleID == id {
			return engine.ErrSaleReleased
		}
	}
	delete(m.sales, id)
	return nil
}

// ---- lots ----

func (m *Memory) GetLot(_ context.Context, id engine.LotID) (engine.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lot, ok := m.lots[id]
	if !ok {
		return engine.Lot{}, engine.ErrLotNotFound
	}
	return lot, nil
}

func (m *Memory) LotsByProduct(_ context.Context, id engine.ProductID) ([]engine.Lot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []engine.Lot
	for _, lot := range m.lots {
		if lot.ProductID == id {
			out = append(out, lot)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AcquiredAt.Equal(out[j].AcquiredAt) {
			return out[i].AcquiredAt.Before(out[j].AcquiredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) AdjustLotRemaining(_ context.Context, id engine.LotID, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustLocked(id, delta)
}

func (m *Memory) adjustLocked(id engine.LotID, delta int64) error {
	lot, ok := m.lots[id]
	if !ok {
		return engine.ErrLotNotFound
	}
	next := lot.Remaining + delta
	if next < 0 || next > lot.Quantity {
		return &engine.InvariantError{
			LotID:     id,
			Remaining: lot.Remaining,
			Delta:     delta,
			Original:  lot.Quantity,
		}
	}
	lot.Remaining = next
	m.lots[id] = lot
	return nil
}

// ---- releases ----

func (m *Memory) GetRelease(_ context.Context, id engine.ReleaseID) (engine.Release, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.releases[id]
	if !ok {
		return engine.Release{}, engine.ErrReleaseNotFound
	}
	return r, nil
}

func (m *Memory) GetReleaseBySale(_ context.Context, id engine.SaleID) (engine.Release, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.releases {
		if r.SaleID == id {
			return r, nil
		}
	}
	return engine.Release{}, engine.ErrReleaseNotFound
}

func (m *Memory) AllocationsByRelease(_ context.Context, id engine.ReleaseID) ([]engine.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]engine.Allocation, len(m.allocs[id]))
	copy(out, m.allocs[id])
	return out, nil
}

func (m *Memory) CommitRelease(_ context.Context, r engine.Release, allocs []engine.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.releases[r.ID]; ok {
		return engine.ErrAlreadyReleased
	}
	for _, existing := range m.releases {
		if existing.SaleID == r.SaleID {
			return engine.ErrAlreadyReleased
		}
	}

	// Validate every decrement before applying any.
	pending := make(map[engine.LotID]int64)
	for _, a := range allocs {
		pending[a.LotID] += a.Quantity
	}
	for lotID, qty := range pending {
		lot, ok := m.lots[lotID]
		if !ok {
			return engine.ErrLotNotFound
		}
		if lot.Remaining-qty < 0 {
			return &engine.InvariantError{
				LotID:     lotID,
				Remaining: lot.Remaining,
				Delta:     -qty,
				Original:  lot.Quantity,
			}
		}
	}

	stored := make([]engine.Allocation, len(allocs))
	copy(stored, allocs)
	for i := range stored {
		m.nextAlloc++
		stored[i].ID = m.nextAlloc
		if err := m.adjustLocked(stored[i].LotID, -stored[i].Quantity); err != nil {
			return err
		}
	}

	m.releases[r.ID] = r
	m.allocs[r.ID] = stored
	return nil
}

func (m *Memory) RevertRelease(_ context.Context, id engine.ReleaseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.releases[id]; !ok {
		return engine.ErrReleaseNotFound
	}
	for _, a := range m.allocs[id] {
		if err := m.adjustLocked(a.LotID, a.Quantity); err != nil {
			return err
		}
	}
	delete(m.allocs, id)
	delete(m.releases, id)
	return nil
}

// ---- helpers ----

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

func clonePurchase(p engine.Purchase) engine.Purchase {
	lines := make([]engine.PurchaseLine, len(p.Lines))
	copy(lines, p.Lines)
	p.Lines = lines
	return p
}

func cloneSale(s engine.Sale) engine.Sale {
	lines := make([]engine.SaleLine, len(s.Lines))
	copy(lines, s.Lines)
	s.Lines = lines
	return s
}
