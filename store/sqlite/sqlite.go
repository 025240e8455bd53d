/*
Package sqlite provides a SQLite-backed implementation of the
inventory storage interfaces.

PURPOSE:
  Implements inventory.TxStore (books, vendors, transaction groups,
  line items) using SQLite. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  books:              Catalog entries with on-hand stock and status
  vendors:            Counterparties with optional buyback rates
  transaction_groups: Purchase orders / sales reconciliations / buybacks
  line_items:         Rows of each group, ordered by position

INVARIANT BACKSTOP:
  books.stock carries a CHECK(stock >= 0) constraint. The engine
  validates the net delta before applying it; the constraint means a
  bug there surfaces as a rolled-back transaction, never as corrupt
  persisted state.

CONCURRENCY:
  WithTx takes the store-wide write lock and wraps the callback in one
  database transaction, so validate-then-apply is a single atomic,
  serial unit: a stock value read inside the callback is still current
  when the delta lands. SQLite is opened in WAL mode so readers are
  not blocked.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - inventory/store.go: interface definitions
  - inventory/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/quarto/inventory-engine/inventory"
)

// Store implements inventory.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// A second pooled connection would see a fresh empty database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		isbn_13 TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'active',
		stock INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_books_status ON books(status);

	CREATE TABLE IF NOT EXISTS vendors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		buyback_rate TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transaction_groups (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		date TEXT NOT NULL,
		vendor_id TEXT REFERENCES vendors(id),
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_groups_kind_date
		ON transaction_groups(kind, date DESC);

	CREATE TABLE IF NOT EXISTS line_items (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL REFERENCES transaction_groups(id) ON DELETE CASCADE,
		book_id TEXT NOT NULL REFERENCES books(id),
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_line_items_group ON line_items(group_id, position);

	-- prior-purchase lookups (hot path for sale/buyback validation)
	CREATE INDEX IF NOT EXISTS idx_line_items_book ON line_items(book_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONAL STORE (inventory.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction under the store's
// write lock. A returned error rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&queries{db: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds every operation once. Store delegates to it with the
// bare connection, WithTx delegates with the open transaction.
type queries struct {
	db dbtx
}

// =============================================================================
// BOOK STORE
// =============================================================================

func (s *Store) GetBook(ctx context.Context, id inventory.BookID) (*inventory.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&queries{db: s.db}).GetBook(ctx, id)
}

func (s *Store) GetBookByISBN(ctx context.Context, isbn13 string) (*inventory.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&queries{db: s.db}).GetBookByISBN(ctx, isbn13)
}

func (s *Store) ListBooks(ctx context.Context) ([]inventory.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&queries{db: s.db}).ListBooks(ctx)
}

func (s *Store) SaveBook(ctx context.Context, b inventory.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&queries{db: s.db}).SaveBook(ctx, b)
}

func (s *Store) ApplyStockDelta(ctx context.Context, id inventory.BookID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&queries{db: s.db}).ApplyStockDelta(ctx, id, delta)
}

func (q *queries) GetBook(ctx context.Context, id inventory.BookID) (*inventory.Book, error) {
	return scanBook(q.db.QueryRowContext(ctx,
		"SELECT id, title, isbn_13, status, stock FROM books WHERE id = ?", id))
}

func (q *queries) GetBookByISBN(ctx context.Context, isbn13 string) (*inventory.Book, error) {
	return scanBook(q.db.QueryRowContext(ctx,
		"SELECT id, title, isbn_13, status, stock FROM books WHERE isbn_13 = ?", isbn13))
}

func scanBook(row *sql.Row) (*inventory.Book, error) {
	var b inventory.Book
	err := row.Scan(&b.ID, &b.Title, &b.ISBN13, &b.Status, &b.Stock)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan book: %w", err)
	}
	return &b, nil
}

func (q *queries) ListBooks(ctx context.Context) ([]inventory.Book, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, title, isbn_13, status, stock FROM books ORDER BY title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []inventory.Book
	for rows.Next() {
		var b inventory.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.ISBN13, &b.Status, &b.Stock); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (q *queries) SaveBook(ctx context.Context, b inventory.Book) error {
	query := `
		INSERT INTO books (id, title, isbn_13, status, stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			isbn_13 = excluded.isbn_13,
			status = excluded.status,
			stock = excluded.stock
	`
	_, err := q.db.ExecContext(ctx, query,
		b.ID, b.Title, b.ISBN13, b.Status, b.Stock,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (q *queries) ApplyStockDelta(ctx context.Context, id inventory.BookID, delta int) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE books SET stock = stock + ? WHERE id = ?", delta, id)
	if err != nil {
		return fmt.Errorf("failed to apply stock delta: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", inventory.ErrBookNotFound, id)
	}
	return nil
}

// =============================================================================
// VENDOR STORE
// =============================================================================

func (s *Store) GetVendor(ctx context.Context, id inventory.VendorID) (*inventory.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&queries{db: s.db}).GetVendor(ctx, id)
}

func (s *Store) ListVendors(ctx context.Context) ([]inventory.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&queries{db: s.db}).ListVendors(ctx)
}

func (s *Store) SaveVendor(ctx context.Context, v inventory.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&queries{db: s.db}).SaveVendor(ctx, v)
}

func (q *queries) GetVendor(ctx context.Context, id inventory.VendorID) (*inventory.Vendor, error) {
	var (
		v    inventory.Vendor
		rate sql.NullString
	)
	err := q.db.QueryRowContext(ctx,
		"SELECT id, name, buyback_rate FROM vendors WHERE id = ?", id,
	).Scan(&v.ID, &v.Name, &rate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := parseRate(rate, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (q *queries) ListVendors(ctx context.Context) ([]inventory.Vendor, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, name, buyback_rate FROM vendors ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vendors []inventory.Vendor
	for rows.Next() {
		var (
			v    inventory.Vendor
			rate sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.Name, &rate); err != nil {
			return nil, err
		}
		if err := parseRate(rate, &v); err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

func parseRate(rate sql.NullString, v *inventory.Vendor) error {
	if !rate.Valid {
		return nil
	}
	d, err := decimal.NewFromString(rate.String)
	if err != nil {
		return fmt.Errorf("failed to parse buyback rate: %w", err)
	}
	v.BuybackRate = &d
	return nil
}

func (q *queries) SaveVendor(ctx context.Context, v inventory.Vendor) error {
	var rate sql.NullString
	if v.BuybackRate != nil {
		rate = sql.NullString{String: v.BuybackRate.String(), Valid: true}
	}
	query := `
		INSERT INTO vendors (id, name, buyback_rate, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			buyback_rate = excluded.buyback_rate
	`
	_, err := q.db.ExecContext(ctx, query,
		v.ID, v.Name, rate, time.Now().UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// GROUP STORE
// =============================================================================

func (s *Store) GetGroup(ctx context.Context, kind inventory.GroupKind, id inventory.GroupID) (*inventory.TransactionGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&queries{db: s.db}).GetGroup(ctx, kind, id)
}

func (s *Store) ListGroups(ctx context.Context, kind inventory.GroupKind) ([]inventory.TransactionGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&queries{db: s.db}).ListGroups(ctx, kind)
}

func (s *Store) InsertGroup(ctx context.Context, g *inventory.TransactionGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&queries{db: s.db}).InsertGroup(ctx, g)
}

func (s *Store) UpdateGroupFields(ctx context.Context, g *inventory.TransactionGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&queries{db: s.db}).UpdateGroupFields(ctx, g)
}

func (s *Store) DeleteGroup(ctx context.Context, kind inventory.GroupKind, id inventory.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&queries{db: s.db}).DeleteGroup(ctx, kind, id)
}

func (s *Store) InsertLine(ctx context.Context, groupID inventory.GroupID, li inventory.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&queries{db: s.db}).InsertLine(ctx, groupID, li)
}

func (s *Store) UpdateLine(ctx context.Context, li inventory.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&queries{db: s.db}).UpdateLine(ctx, li)
}

func (s *Store) DeleteLine(ctx context.Context, id inventory.LineItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&queries{db: s.db}).DeleteLine(ctx, id)
}

func (s *Store) HasPurchaseOnOrBefore(ctx context.Context, bookID inventory.BookID, date time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return (&queries{db: s.db}).HasPurchaseOnOrBefore(ctx, bookID, date)
}

func (q *queries) GetGroup(ctx context.Context, kind inventory.GroupKind, id inventory.GroupID) (*inventory.TransactionGroup, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT id, kind, date, vendor_id, created_by FROM transaction_groups WHERE id = ? AND kind = ?",
		id, kind)

	g, err := scanGroup(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if g.Lines, err = q.loadLines(ctx, g.ID); err != nil {
		return nil, err
	}
	return g, nil
}

func (q *queries) ListGroups(ctx context.Context, kind inventory.GroupKind) ([]inventory.TransactionGroup, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, kind, date, vendor_id, created_by FROM transaction_groups WHERE kind = ? ORDER BY date DESC, created_at DESC",
		kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []inventory.TransactionGroup
	for rows.Next() {
		g, err := scanGroup(rows.Scan)
		if err != nil {
			return nil, err
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		if groups[i].Lines, err = q.loadLines(ctx, groups[i].ID); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

func scanGroup(scan func(dest ...any) error) (*inventory.TransactionGroup, error) {
	var (
		g        inventory.TransactionGroup
		date     string
		vendorID sql.NullString
		creator  sql.NullString
	)
	if err := scan(&g.ID, &g.Kind, &date, &vendorID, &creator); err != nil {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339, date)
	if err != nil {
		return nil, fmt.Errorf("failed to parse group date: %w", err)
	}
	g.Date = parsed
	g.VendorID = inventory.VendorID(vendorID.String)
	g.CreatedBy = creator.String
	return &g, nil
}

func (q *queries) loadLines(ctx context.Context, groupID inventory.GroupID) ([]inventory.LineItem, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT id, book_id, quantity, unit_price FROM line_items WHERE group_id = ? ORDER BY position, rowid",
		groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []inventory.LineItem
	for rows.Next() {
		var (
			li    inventory.LineItem
			price string
		)
		if err := rows.Scan(&li.ID, &li.BookID, &li.Quantity, &price); err != nil {
			return nil, err
		}
		if li.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("failed to parse unit price: %w", err)
		}
		lines = append(lines, li)
	}
	return lines, rows.Err()
}

func (q *queries) InsertGroup(ctx context.Context, g *inventory.TransactionGroup) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO transaction_groups (id, kind, date, vendor_id, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		g.ID, g.Kind, g.Date.Format(time.RFC3339),
		nullString(string(g.VendorID)), nullString(g.CreatedBy),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}
	for i, li := range g.Lines {
		if err := q.insertLineAt(ctx, g.ID, li, i); err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) UpdateGroupFields(ctx context.Context, g *inventory.TransactionGroup) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE transaction_groups SET date = ?, vendor_id = ? WHERE id = ?",
		g.Date.Format(time.RFC3339), nullString(string(g.VendorID)), g.ID)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", inventory.ErrGroupNotFound, g.ID)
	}
	return nil
}

func (q *queries) DeleteGroup(ctx context.Context, kind inventory.GroupKind, id inventory.GroupID) error {
	// Explicit line delete rather than leaning on cascade config.
	if _, err := q.db.ExecContext(ctx, "DELETE FROM line_items WHERE group_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete line items: %w", err)
	}
	res, err := q.db.ExecContext(ctx,
		"DELETE FROM transaction_groups WHERE id = ? AND kind = ?", id, kind)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", inventory.ErrGroupNotFound, id)
	}
	return nil
}

func (q *queries) InsertLine(ctx context.Context, groupID inventory.GroupID, li inventory.LineItem) error {
	var next int
	err := q.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM line_items WHERE group_id = ?", groupID,
	).Scan(&next)
	if err != nil {
		return err
	}
	return q.insertLineAt(ctx, groupID, li, next)
}

func (q *queries) insertLineAt(ctx context.Context, groupID inventory.GroupID, li inventory.LineItem, position int) error {
	_, err := q.db.ExecContext(ctx,
		"INSERT INTO line_items (id, group_id, book_id, quantity, unit_price, position) VALUES (?, ?, ?, ?, ?, ?)",
		li.ID, groupID, li.BookID, li.Quantity, li.UnitPrice.String(), position)
	if err != nil {
		return fmt.Errorf("failed to insert line item: %w", err)
	}
	return nil
}

func (q *queries) UpdateLine(ctx context.Context, li inventory.LineItem) error {
	res, err := q.db.ExecContext(ctx,
		"UPDATE line_items SET book_id = ?, quantity = ?, unit_price = ? WHERE id = ?",
		li.BookID, li.Quantity, li.UnitPrice.String(), li.ID)
	if err != nil {
		return fmt.Errorf("failed to update line item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", inventory.ErrLineItemNotFound, li.ID)
	}
	return nil
}

func (q *queries) DeleteLine(ctx context.Context, id inventory.LineItemID) error {
	_, err := q.db.ExecContext(ctx, "DELETE FROM line_items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete line item: %w", err)
	}
	return nil
}

func (q *queries) HasPurchaseOnOrBefore(ctx context.Context, bookID inventory.BookID, date time.Time) (bool, error) {
	var count int
	err := q.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM line_items li
		JOIN transaction_groups g ON g.id = li.group_id
		WHERE li.book_id = ? AND g.kind = ? AND g.date <= ?
	`, bookID, inventory.KindPurchase, date.Format(time.RFC3339)).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"line_items", "transaction_groups", "books", "vendors"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// IsConstraintError reports whether err is a database constraint
// violation (e.g. the stock CHECK backstop firing).
func IsConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
