/*
release.go - The release workflow: committing a sale's cost against lots

PURPOSE:
  A release is the one irreversible-looking act in the system: it pins a
  sale to specific lots, decrements their remaining stock, and records
  the allocations for audit. "Irreversible-looking" because unrelease is
  its exact algebraic inverse and restores lot state bit for bit.

GUARANTEES:
  - At most one release per sale, ever
  - All-or-nothing across every line of the sale: one short product
    fails the whole operation with no mutation
  - Release then unrelease restores every lot's remaining quantity
    exactly

CONCURRENCY:
  Release and unrelease read-then-write shared lot quantities, so the
  service serializes them behind one mutex. Two concurrent releases must
  not both observe sufficient stock and jointly overdraw a lot. The
  ledger replay is unaffected; it never touches this state.
*/
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReleaseService orchestrates release and unrelease against the store.
type ReleaseService struct {
	store RecordStore
	lots  *LotStore
	alloc *Allocator

	mu sync.Mutex // serializes release/unrelease; see package comment
}

func NewReleaseService(store RecordStore) *ReleaseService {
	return &ReleaseService{
		store: store,
		lots:  NewLotStore(store),
		alloc: &Allocator{},
	}
}

// Release allocates every line of the sale against lots eligible at
// releaseDate and commits the result atomically.
//
// Failure modes, in check order:
//   - ErrAlreadyReleased: the sale already has a release
//   - ErrEmptySale: the sale has no lines
//   - InsufficientStockError: some line cannot be covered
//
// On any failure no lot is mutated and no release row exists.
func (s *ReleaseService) Release(ctx context.Context, saleID SaleID, releaseDate time.Time, order LotOrder) (Release, []Allocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetReleaseBySale(ctx, saleID); err == nil {
		return Release{}, nil, ErrAlreadyReleased
	} else if !IsNotFound(err) {
		return Release{}, nil, err
	}

	sale, err := s.store.GetSale(ctx, saleID)
	if err != nil {
		return Release{}, nil, err
	}
	if len(sale.Lines) == 0 {
		return Release{}, nil, ErrEmptySale
	}

	// Allocate all lines before touching anything. Lines may repeat a
	// product, so earlier takes are shadowed out of later views.
	view := &pendingView{base: s.lots, taken: make(map[LotID]int64)}

	release := Release{
		ID:        ReleaseID(uuid.NewString()),
		SaleID:    saleID,
		Date:      releaseDate,
		Order:     order,
		Total:     decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}

	var allocs []Allocation
	for _, line := range sale.Lines {
		takes, err := s.alloc.Allocate(ctx, view, line.ProductID, line.Quantity, order, releaseDate)
		if err != nil {
			return Release{}, nil, err
		}
		for _, take := range takes {
			view.taken[take.LotID] += take.Quantity
			allocs = append(allocs, Allocation{
				ReleaseID: release.ID,
				LotID:     take.LotID,
				ProductID: line.ProductID,
				Quantity:  take.Quantity,
				UnitCost:  take.UnitCost,
				Subtotal:  take.Subtotal(),
			})
			release.Total = release.Total.Add(take.Subtotal())
		}
	}

	if err := s.store.CommitRelease(ctx, release, allocs); err != nil {
		return Release{}, nil, fmt.Errorf("commit release for sale %d: %w", saleID, err)
	}

	committed, err := s.store.AllocationsByRelease(ctx, release.ID)
	if err != nil {
		return Release{}, nil, err
	}
	return release, committed, nil
}

// Unrelease reverses a committed release: every allocated lot gets its
// quantity back, then the allocations and the release are deleted. The
// exact inverse of Release's commit step.
func (s *ReleaseService) Unrelease(ctx context.Context, id ReleaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetRelease(ctx, id); err != nil {
		return err
	}
	return s.store.RevertRelease(ctx, id)
}

// pendingView shadows quantities already claimed by earlier lines of the
// same release out of the base view.
type pendingView struct {
	base  LotView
	taken map[LotID]int64
}

func (v *pendingView) LotsFor(ctx context.Context, productID ProductID, asOf time.Time, order LotOrder) ([]Lot, error) {
	lots, err := v.base.LotsFor(ctx, productID, asOf, order)
	if err != nil {
		return nil, err
	}
	var out []Lot
	for _, lot := range lots {
		lot.Remaining -= v.taken[lot.ID]
		if lot.Remaining <= 0 {
			continue
		}
		out = append(out, lot)
	}
	return out, nil
}
