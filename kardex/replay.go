/*
replay.go - Two-pass chronological replay of purchase/sale events

ALGORITHM:
  1. Collect every purchase line and sale line dated <= window end, from
     the beginning of recorded history. Opening balances need the full
     history, not just the window.
  2. Sort events by (date, purchases-before-sales, source id, line id).
  3. Opening pass: apply every event dated before the window start to
     fresh working state, emitting nothing.
  4. Reporting pass: apply the in-window events to the same state,
     emitting one entry row per purchase line and one exit row per lot
     touched by a sale (single row for weighted average). A sale
     exceeding available stock gets a terminal zero-cost row for the
     unmet remainder; shortages are data here, never errors.
  5. Totals: one row per product with positive closing quantity.

STATELESSNESS:
  Every invocation builds its own working lots and average tracker and
  discards them. Replays may run concurrently with each other and with
  releases; nothing here touches committed lot state.
*/
package kardex

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/almacen/stock-engine/engine"
)

// Engine replays raw event history into ledger reports.
type Engine struct {
	store engine.RecordStore
}

func NewEngine(store engine.RecordStore) *Engine {
	return &Engine{store: store}
}

// Replay produces the ledger for [from, to] under the given method.
func (e *Engine) Replay(ctx context.Context, from, to time.Time, method Method) (*Report, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("unknown costing method %q", method)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("window end %s before start %s", to.Format("2006-01-02"), from.Format("2006-01-02"))
	}

	events, err := e.collectEvents(ctx, to)
	if err != nil {
		return nil, err
	}
	names, err := e.productNames(ctx)
	if err != nil {
		return nil, err
	}

	run := &replayRun{
		method:  method,
		names:   names,
		books:   make(map[engine.ProductID][]*workingLot),
		tracker: engine.NewWeightedAverageTracker(),
	}

	// Opening pass: everything before the window, no rows.
	for _, ev := range events {
		if !ev.date.Before(from) {
			break
		}
		run.apply(ev, false)
	}
	// Reporting pass: the window itself.
	for _, ev := range events {
		if ev.date.Before(from) {
			continue
		}
		run.apply(ev, true)
	}

	return &Report{
		From:   from,
		To:     to,
		Method: method,
		Rows:   run.rows,
		Totals: run.totals(),
	}, nil
}

// =============================================================================
// EVENT COLLECTION AND ORDERING
// =============================================================================

const (
	eventPurchase = 0 // sorts before sales on the same date
	eventSale     = 1
)

type event struct {
	date      time.Time
	kind      int
	sourceID  int64
	lineID    int64
	productID engine.ProductID
	qty       int64
	unitCost  decimal.Decimal // purchases only
}

func (e *Engine) collectEvents(ctx context.Context, to time.Time) ([]event, error) {
	purchases, err := e.store.ListPurchases(ctx, time.Time{}, to)
	if err != nil {
		return nil, err
	}
	sales, err := e.store.ListSales(ctx, time.Time{}, to)
	if err != nil {
		return nil, err
	}

	var events []event
	for _, p := range purchases {
		for _, line := range p.Lines {
			events = append(events, event{
				date:      p.Date,
				kind:      eventPurchase,
				sourceID:  int64(p.ID),
				lineID:    line.ID,
				productID: line.ProductID,
				qty:       line.Quantity,
				unitCost:  line.UnitCost,
			})
		}
	}
	for _, s := range sales {
		for _, line := range s.Lines {
			events = append(events, event{
				date:      s.Date,
				kind:      eventSale,
				sourceID:  int64(s.ID),
				lineID:    line.ID,
				productID: line.ProductID,
				qty:       line.Quantity,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.date.Equal(b.date) {
			return a.date.Before(b.date)
		}
		if a.kind != b.kind {
			return a.kind < b.kind
		}
		if a.sourceID != b.sourceID {
			return a.sourceID < b.sourceID
		}
		return a.lineID < b.lineID
	})
	return events, nil
}

func (e *Engine) productNames(ctx context.Context) (map[engine.ProductID]string, error) {
	products, err := e.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[engine.ProductID]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}

// =============================================================================
// WORKING STATE
// =============================================================================

// workingLot is the replay's private copy of a lot position. Keyed by the
// purchase line that created it, never by committed lot identity.
type workingLot struct {
	lineID   int64
	date     time.Time
	qty      int64
	unitCost decimal.Decimal
}

func (w *workingLot) value() decimal.Decimal {
	return decimal.NewFromInt(w.qty).Mul(w.unitCost)
}

type replayRun struct {
	method  Method
	names   map[engine.ProductID]string
	books   map[engine.ProductID][]*workingLot // appended in event order
	tracker *engine.WeightedAverageTracker
	rows    []Row
}

func (r *replayRun) apply(ev event, emit bool) {
	if ev.kind == eventPurchase {
		r.applyPurchase(ev, emit)
	} else {
		r.applySale(ev, emit)
	}
}

func (r *replayRun) applyPurchase(ev event, emit bool) {
	var balance *Movement

	if r.method == WeightedAverage {
		state := r.tracker.ApplyPurchase(ev.productID, ev.qty, ev.unitCost)
		balance = &Movement{Quantity: state.Quantity, UnitCost: state.AverageUnitCost, Total: state.Value()}
	} else {
		lot := &workingLot{lineID: ev.lineID, date: ev.date, qty: ev.qty, unitCost: ev.unitCost}
		r.books[ev.productID] = append(r.books[ev.productID], lot)
		balance = newMovement(lot.qty, lot.unitCost)
	}

	if !emit {
		return
	}
	r.rows = append(r.rows, Row{
		Date:      ev.date,
		Kind:      KindEntry,
		ProductID: ev.productID,
		Product:   r.names[ev.productID],
		SourceID:  ev.sourceID,
		Entry:     newMovement(ev.qty, ev.unitCost),
		Balance:   balance,
	})
}

func (r *replayRun) applySale(ev event, emit bool) {
	if r.method == WeightedAverage {
		r.applyAverageSale(ev, emit)
		return
	}

	remaining := ev.qty
	for _, lot := range r.consumptionOrder(ev.productID) {
		if remaining == 0 {
			break
		}
		if lot.qty <= 0 {
			continue
		}
		take := lot.qty
		if remaining < take {
			take = remaining
		}
		lot.qty -= take
		remaining -= take

		if !emit {
			continue
		}
		var balance *Movement
		if lot.qty > 0 {
			balance = newMovement(lot.qty, lot.unitCost)
		}
		r.rows = append(r.rows, Row{
			Date:      ev.date,
			Kind:      KindExit,
			ProductID: ev.productID,
			Product:   r.names[ev.productID],
			SourceID:  ev.sourceID,
			Exit:      newMovement(take, lot.unitCost),
			Balance:   balance,
		})
	}

	// Whatever the lots could not cover leaves at zero cost. The report
	// reproduces the shortage as data; it never fails.
	if remaining > 0 && emit {
		r.rows = append(r.rows, Row{
			Date:      ev.date,
			Kind:      KindExit,
			ProductID: ev.productID,
			Product:   r.names[ev.productID],
			SourceID:  ev.sourceID,
			Exit:      &Movement{Quantity: remaining, UnitCost: decimal.Zero, Total: decimal.Zero},
		})
	}
}

func (r *replayRun) applyAverageSale(ev event, emit bool) {
	state, shortage := r.tracker.ApplySale(ev.productID, ev.qty)
	if !emit {
		return
	}

	consumed := ev.qty - shortage
	if consumed > 0 {
		var balance *Movement
		if state.Quantity > 0 {
			balance = &Movement{Quantity: state.Quantity, UnitCost: state.AverageUnitCost, Total: state.Value()}
		}
		r.rows = append(r.rows, Row{
			Date:      ev.date,
			Kind:      KindExit,
			ProductID: ev.productID,
			Product:   r.names[ev.productID],
			SourceID:  ev.sourceID,
			Exit:      newMovement(consumed, state.AverageUnitCost),
			Balance:   balance,
		})
	}
	if shortage > 0 {
		r.rows = append(r.rows, Row{
			Date:      ev.date,
			Kind:      KindExit,
			ProductID: ev.productID,
			Product:   r.names[ev.productID],
			SourceID:  ev.sourceID,
			Exit:      &Movement{Quantity: shortage, UnitCost: decimal.Zero, Total: decimal.Zero},
		})
	}
}

// consumptionOrder returns the product's working lots in the method's
// order. Books are appended chronologically, so LIFO walks them
// backwards.
func (r *replayRun) consumptionOrder(id engine.ProductID) []*workingLot {
	lots := r.books[id]
	if r.method != LIFO {
		return lots
	}
	reversed := make([]*workingLot, len(lots))
	for i, lot := range lots {
		reversed[len(lots)-1-i] = lot
	}
	return reversed
}

// =============================================================================
// TOTALS
// =============================================================================

func (r *replayRun) totals() []Total {
	var totals []Total

	if r.method == WeightedAverage {
		for id := range r.names {
			state := r.tracker.State(id)
			if state.Quantity <= 0 {
				continue
			}
			totals = append(totals, Total{
				ProductID: id,
				Product:   r.names[id],
				Quantity:  state.Quantity,
				Value:     state.Value(),
			})
		}
	} else {
		for id, lots := range r.books {
			var qty int64
			value := decimal.Zero
			for _, lot := range lots {
				if lot.qty <= 0 {
					continue
				}
				qty += lot.qty
				value = value.Add(lot.value())
			}
			if qty <= 0 {
				continue
			}
			totals = append(totals, Total{
				ProductID: id,
				Product:   r.names[id],
				Quantity:  qty,
				Value:     value,
			})
		}
	}

	sort.Slice(totals, func(i, j int) bool { return totals[i].ProductID < totals[j].ProductID })
	return totals
}
