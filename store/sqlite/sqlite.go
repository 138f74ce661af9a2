/*
Package sqlite provides the SQLite-backed RecordStore.

PURPOSE:
  Implements engine.RecordStore on mattn/go-sqlite3. The same SQL shapes
  port to PostgreSQL with minor dialect changes; nothing engine-visible
  depends on SQLite.

KEY TABLES:
  products / suppliers / clients   master data
  purchases / purchase_lines       inbound documents
  lots                             one row per purchase line; remaining
                                   quantity is the only mutable stock state
  sales / sale_lines               outbound documents (revenue only)
  releases / allocations           committed costing of sales

ATOMICITY:
  CommitRelease, RevertRelease, CreatePurchase and DeletePurchase each
  run in a single SQL transaction. A UNIQUE constraint on
  releases.sale_id backs the one-release-per-sale invariant at the
  storage layer, independent of the service-level check.

CONCURRENCY:
  A sync.Mutex serializes writers; SQLite is opened in WAL mode so
  readers do not block.

NUMERIC STORAGE:
  Unit costs and totals are stored as decimal strings and parsed with
  shopspring/decimal. Quantities are integers.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/almacen/stock-engine/engine"
)

// Store implements engine.RecordStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps ":memory:" databases coherent across the pool.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS suppliers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		contact TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		contact TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		reference_price TEXT NOT NULL DEFAULT '0',
		supplier_id INTEGER REFERENCES suppliers(id)
	);

	CREATE TABLE IF NOT EXISTS purchases (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		supplier_id INTEGER REFERENCES suppliers(id)
	);

	CREATE TABLE IF NOT EXISTS purchase_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		purchase_id INTEGER NOT NULL REFERENCES purchases(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_cost TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS lots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id),
		purchase_id INTEGER NOT NULL REFERENCES purchases(id),
		purchase_line_id INTEGER NOT NULL REFERENCES purchase_lines(id),
		quantity INTEGER NOT NULL,
		remaining INTEGER NOT NULL,
		unit_cost TEXT NOT NULL,
		acquired_at TEXT NOT NULL,
		CHECK (remaining >= 0 AND remaining <= quantity)
	);

	CREATE INDEX IF NOT EXISTS idx_lots_product
		ON lots(product_id, acquired_at, id);

	CREATE TABLE IF NOT EXISTS sales (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TEXT NOT NULL,
		client_id INTEGER REFERENCES clients(id)
	);

	CREATE TABLE IF NOT EXISTS sale_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sale_id INTEGER NOT NULL REFERENCES sales(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS releases (
		id TEXT PRIMARY KEY,
		sale_id INTEGER NOT NULL UNIQUE REFERENCES sales(id),
		date TEXT NOT NULL,
		lot_order TEXT NOT NULL,
		total TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS allocations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		release_id TEXT NOT NULL REFERENCES releases(id),
		lot_id INTEGER NOT NULL REFERENCES lots(id),
		product_id INTEGER NOT NULL REFERENCES products(id),
		quantity INTEGER NOT NULL,
		unit_cost TEXT NOT NULL,
		subtotal TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_release
		ON allocations(release_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_lot
		ON allocations(lot_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// MASTER DATA
// =============================================================================

func (s *Store) CreateProduct(ctx context.Context, p engine.Product) (engine.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, reference_price, supplier_id) VALUES (?, ?, ?)`,
		p.Name, p.ReferencePrice.String(), nullableID(int64(p.SupplierID)))
	if err != nil {
		return engine.Product{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return engine.Product{}, err
	}
	p.ID = engine.ProductID(id)
	return p, nil
}

func (s *Store) GetProduct(ctx context.Context, id engine.ProductID) (engine.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, reference_price, COALESCE(supplier_id, 0) FROM products WHERE id = ?`, int64(id))
	return scanProduct(row)
}

func (s *Store) ListProducts(ctx context.Context) ([]engine.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, reference_price, COALESCE(supplier_id, 0) FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) CreateSupplier(ctx context.Context, sup engine.Supplier) (engine.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO suppliers (name, contact, address) VALUES (?, ?, ?)`,
		sup.Name, sup.Contact, sup.Address)
	if err != nil {
		return engine.Supplier{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return engine.Supplier{}, err
	}
	sup.ID = engine.SupplierID(id)
	return sup, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]engine.Supplier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, contact, address FROM suppliers ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Supplier
	for rows.Next() {
		var sup engine.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.Contact, &sup.Address); err != nil {
			return nil, err
		}
		out = append(out, sup)
	}
	return out, rows.Err()
}

func (s *Store) CreateClient(ctx context.Context, c engine.Client) (engine.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO clients (name, contact) VALUES (?, ?)`, c.Name, c.Contact)
	if err != nil {
		return engine.Client{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return engine.Client{}, err
	}
	c.ID = engine.ClientID(id)
	return c, nil
}

func (s *Store) ListClients(ctx context.Context) ([]engine.Client, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, contact FROM clients ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Client
	for rows.Next() {
		var c engine.Client
		if err := rows.Scan(&c.ID, &c.Name, &c.Contact); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// =============================================================================
// PURCHASES
// =============================================================================

func (s *Store) CreatePurchase(ctx context.Context, p engine.Purchase) (engine.Purchase, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.Purchase{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO purchases (date, supplier_id) VALUES (?, ?)`,
		formatTime(p.Date), nullableID(int64(p.SupplierID)))
	if err != nil {
		return engine.Purchase{}, err
	}
	purchaseID, err := res.LastInsertId()
	if err != nil {
		return engine.Purchase{}, err
	}
	p.ID = engine.PurchaseID(purchaseID)

	for i := range p.Lines {
		line := &p.Lines[i]
		line.PurchaseID = p.ID

		res, err := tx.ExecContext(ctx,
			`INSERT INTO purchase_lines (purchase_id, product_id, quantity, unit_cost) VALUES (?, ?, ?, ?)`,
			purchaseID, int64(line.ProductID), line.Quantity, line.UnitCost.String())
		if err != nil {
			return engine.Purchase{}, err
		}
		lineID, err := res.LastInsertId()
		if err != nil {
			return engine.Purchase{}, err
		}
		line.ID = lineID

		// One lot per line, created exactly once, at purchase time.
		_, err = tx.ExecContext(ctx,
			`INSERT INTO lots (product_id, purchase_id, purchase_line_id, quantity, remaining, unit_cost, acquired_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			int64(line.ProductID), purchaseID, lineID, line.Quantity, line.Quantity,
			line.UnitCost.String(), formatTime(p.Date))
		if err != nil {
			return engine.Purchase{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return engine.Purchase{}, err
	}
	return p, nil
}

func (s *Store) GetPurchase(ctx context.Context, id engine.PurchaseID) (engine.Purchase, error) {
	purchases, err := s.queryPurchases(ctx, `WHERE p.id = ?`, int64(id))
	if err != nil {
		return engine.Purchase{}, err
	}
	if len(purchases) == 0 {
		return engine.Purchase{}, engine.ErrPurchaseNotFound
	}
	return purchases[0], nil
}

func (s *Store) ListPurchases(ctx context.Context, from, to time.Time) ([]engine.Purchase, error) {
	where, args := dateRange("p.date", from, to)
	return s.queryPurchases(ctx, where, args...)
}

func (s *Store) queryPurchases(ctx context.Context, where string, args ...any) ([]engine.Purchase, error) {
	query := `
		SELECT p.id, p.date, COALESCE(p.supplier_id, 0),
		       l.id, l.product_id, l.quantity, l.unit_cost
		FROM purchases p
		JOIN purchase_lines l ON l.purchase_id = p.id
		` + where + `
		ORDER BY p.date ASC, p.id ASC, l.id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Purchase
	byID := make(map[engine.PurchaseID]int)
	for rows.Next() {
		var (
			p    engine.Purchase
			l    engine.PurchaseLine
			date string
			cost string
		)
		if err := rows.Scan(&p.ID, &date, &p.SupplierID, &l.ID, &l.ProductID, &l.Quantity, &cost); err != nil {
			return nil, err
		}
		if p.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		if l.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		l.PurchaseID = p.ID

		idx, ok := byID[p.ID]
		if !ok {
			idx = len(out)
			byID[p.ID] = idx
			out = append(out, p)
		}
		out[idx].Lines = append(out[idx].Lines, l)
	}
	return out, rows.Err()
}

func (s *Store) DeletePurchase(ctx context.Context, id engine.PurchaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM purchases WHERE id = ?`, int64(id)).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return engine.ErrPurchaseNotFound
	}

	// Cascade: allocations on this purchase's lots, releases left empty,
	// then lots, lines, purchase.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM allocations WHERE lot_id IN (SELECT id FROM lots WHERE purchase_id = ?)`, int64(id)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM releases WHERE id NOT IN (SELECT DISTINCT release_id FROM allocations)`); err != nil {
		return err
	}
	for _, stmt := range []string{
		`DELETE FROM lots WHERE purchase_id = ?`,
		`DELETE FROM purchase_lines WHERE purchase_id = ?`,
		`DELETE FROM purchases WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, int64(id)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// SALES
// =============================================================================

func (s *Store) CreateSale(ctx context.Context, sale engine.Sale) (engine.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return engine.Sale{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO sales (date, client_id) VALUES (?, ?)`,
		formatTime(sale.Date), nullableID(int64(sale.ClientID)))
	if err != nil {
		return engine.Sale{}, err
	}
	saleID, err := res.LastInsertId()
	if err != nil {
		return engine.Sale{}, err
	}
	sale.ID = engine.SaleID(saleID)

	for i := range sale.Lines {
		line := &sale.Lines[i]
		line.SaleID = sale.ID

		res, err := tx.ExecContext(ctx,
			`INSERT INTO sale_lines (sale_id, product_id, quantity, unit_price) VALUES (?, ?, ?, ?)`,
			saleID, int64(line.ProductID), line.Quantity, line.UnitPrice.String())
		if err != nil {
			return engine.Sale{}, err
		}
		if line.ID, err = res.LastInsertId(); err != nil {
			return engine.Sale{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return engine.Sale{}, err
	}
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, id engine.SaleID) (engine.Sale, error) {
	sales, err := s.querySales(ctx, `WHERE v.id = ?`, int64(id))
	if err != nil {
		return engine.Sale{}, err
	}
	if len(sales) == 0 {
		return engine.Sale{}, engine.ErrSaleNotFound
	}
	return sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, from, to time.Time) ([]engine.Sale, error) {
	where, args := dateRange("v.date", from, to)
	return s.querySales(ctx, where, args...)
}

func (s *Store) querySales(ctx context.Context, where string, args ...any) ([]engine.Sale, error) {
	query := `
		SELECT v.id, v.date, COALESCE(v.client_id, 0),
		       l.id, l.product_id, l.quantity, l.unit_price
		FROM sales v
		JOIN sale_lines l ON l.sale_id = v.id
		` + where + `
		ORDER BY v.date ASC, v.id ASC, l.id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Sale
	byID := make(map[engine.SaleID]int)
	for rows.Next() {
		var (
			sale  engine.Sale
			line  engine.SaleLine
			date  string
			price string
		)
		if err := rows.Scan(&sale.ID, &date, &sale.ClientID, &line.ID, &line.ProductID, &line.Quantity, &price); err != nil {
			return nil, err
		}
		if sale.Date, err = parseTime(date); err != nil {
			return nil, err
		}
		if line.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, err
		}
		line.SaleID = sale.ID

		idx, ok := byID[sale.ID]
		if !ok {
			idx = len(out)
			byID[sale.ID] = idx
			out = append(out, sale)
		}
		out[idx].Lines = append(out[idx].Lines, line)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSale(ctx context.Context, id engine.SaleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM sales WHERE id = ?`, int64(id)).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return engine.ErrSaleNotFound
	}

	var released int64
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM releases WHERE sale_id = ?`, int64(id)).Scan(&released); err != nil {
		return err
	}
	if released > 0 {
		return engine.ErrSaleReleased
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sale_lines WHERE sale_id = ?`, int64(id)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sales WHERE id = ?`, int64(id)); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// LOTS
// =============================================================================

func (s *Store) GetLot(ctx context.Context, id engine.LotID) (engine.Lot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, product_id, purchase_id, purchase_line_id, quantity, remaining, unit_cost, acquired_at
		FROM lots WHERE id = ?`, int64(id))
	lot, err := scanLot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Lot{}, engine.ErrLotNotFound
	}
	return lot, err
}

func (s *Store) LotsByProduct(ctx context.Context, id engine.ProductID) ([]engine.Lot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, purchase_id, purchase_line_id, quantity, remaining, unit_cost, acquired_at
		FROM lots WHERE product_id = ?
		ORDER BY acquired_at ASC, id ASC`, int64(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Lot
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lot)
	}
	return out, rows.Err()
}

func (s *Store) AdjustLotRemaining(ctx context.Context, id engine.LotID, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := adjustLot(ctx, tx, id, delta); err != nil {
		return err
	}
	return tx.Commit()
}

// adjustLot applies a checked delta inside an open transaction.
func adjustLot(ctx context.Context, tx *sql.Tx, id engine.LotID, delta int64) error {
	var remaining, original int64
	err := tx.QueryRowContext(ctx,
		`SELECT remaining, quantity FROM lots WHERE id = ?`, int64(id)).Scan(&remaining, &original)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.ErrLotNotFound
	}
	if err != nil {
		return err
	}

	next := remaining + delta
	if next < 0 || next > original {
		return &engine.InvariantError{
			LotID:     id,
			Remaining: remaining,
			Delta:     delta,
			Original:  original,
		}
	}
	_, err = tx.ExecContext(ctx, `UPDATE lots SET remaining = ? WHERE id = ?`, next, int64(id))
	return err
}

// =============================================================================
// RELEASES
// =============================================================================

func (s *Store) GetRelease(ctx context.Context, id engine.ReleaseID) (engine.Release, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sale_id, date, lot_order, total, created_at
		FROM releases WHERE id = ?`, string(id))
	return scanRelease(row)
}

func (s *Store) GetReleaseBySale(ctx context.Context, id engine.SaleID) (engine.Release, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, sale_id, date, lot_order, total, created_at
		FROM releases WHERE sale_id = ?`, int64(id))
	return scanRelease(row)
}

func (s *Store) AllocationsByRelease(ctx context.Context, id engine.ReleaseID) ([]engine.Allocation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, release_id, lot_id, product_id, quantity, unit_cost, subtotal
		FROM allocations WHERE release_id = ? ORDER BY id`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Allocation
	for rows.Next() {
		var (
			a        engine.Allocation
			cost     string
			subtotal string
		)
		if err := rows.Scan(&a.ID, &a.ReleaseID, &a.LotID, &a.ProductID, &a.Quantity, &cost, &subtotal); err != nil {
			return nil, err
		}
		if a.UnitCost, err = decimal.NewFromString(cost); err != nil {
			return nil, err
		}
		if a.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) CommitRelease(ctx context.Context, r engine.Release, allocs []engine.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO releases (id, sale_id, date, lot_order, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(r.ID), int64(r.SaleID), formatTime(r.Date), string(r.Order),
		r.Total.String(), formatTime(r.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: releases.sale_id") {
			return engine.ErrAlreadyReleased
		}
		return err
	}

	for _, a := range allocs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO allocations (release_id, lot_id, product_id, quantity, unit_cost, subtotal)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(r.ID), int64(a.LotID), int64(a.ProductID), a.Quantity,
			a.UnitCost.String(), a.Subtotal.String())
		if err != nil {
			return err
		}
		if err := adjustLot(ctx, tx, a.LotID, -a.Quantity); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) RevertRelease(ctx context.Context, id engine.ReleaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT lot_id, quantity FROM allocations WHERE release_id = ?`, string(id))
	if err != nil {
		return err
	}
	type restore struct {
		lotID engine.LotID
		qty   int64
	}
	var restores []restore
	for rows.Next() {
		var r restore
		if err := rows.Scan(&r.lotID, &r.qty); err != nil {
			rows.Close()
			return err
		}
		restores = append(restores, r)
	}
	if err := rows.Close(); err != nil {
		return err
	}

	for _, r := range restores {
		if err := adjustLot(ctx, tx, r.lotID, r.qty); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM allocations WHERE release_id = ?`, string(id)); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM releases WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrReleaseNotFound
	}
	return tx.Commit()
}

// =============================================================================
// SCAN AND FORMAT HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (engine.Product, error) {
	var (
		p     engine.Product
		price string
	)
	err := row.Scan(&p.ID, &p.Name, &price, &p.SupplierID)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Product{}, engine.ErrProductNotFound
	}
	if err != nil {
		return engine.Product{}, err
	}
	if p.ReferencePrice, err = decimal.NewFromString(price); err != nil {
		return engine.Product{}, err
	}
	return p, nil
}

func scanLot(row rowScanner) (engine.Lot, error) {
	var (
		lot  engine.Lot
		cost string
		date string
	)
	err := row.Scan(&lot.ID, &lot.ProductID, &lot.PurchaseID, &lot.PurchaseLineID,
		&lot.Quantity, &lot.Remaining, &cost, &date)
	if err != nil {
		return engine.Lot{}, err
	}
	if lot.UnitCost, err = decimal.NewFromString(cost); err != nil {
		return engine.Lot{}, err
	}
	if lot.AcquiredAt, err = parseTime(date); err != nil {
		return engine.Lot{}, err
	}
	return lot, nil
}

func scanRelease(row rowScanner) (engine.Release, error) {
	var (
		r       engine.Release
		date    string
		total   string
		created string
	)
	err := row.Scan(&r.ID, &r.SaleID, &date, &r.Order, &total, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return engine.Release{}, engine.ErrReleaseNotFound
	}
	if err != nil {
		return engine.Release{}, err
	}
	if r.Date, err = parseTime(date); err != nil {
		return engine.Release{}, err
	}
	if r.Total, err = decimal.NewFromString(total); err != nil {
		return engine.Release{}, err
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return engine.Release{}, err
	}
	return r, nil
}

func dateRange(column string, from, to time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, column+" >= ?")
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		conds = append(conds, column+" <= ?")
		args = append(args, formatTime(to))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func nullableID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}
