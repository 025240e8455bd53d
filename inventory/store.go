/*
store.go - Persistence interfaces for the reconciliation engine

PURPOSE:
  Defines the interface between the engine and the database. The engine
  never talks to SQL directly; it composes these interfaces so the same
  algorithm runs against SQLite in production and the in-memory store
  in tests.

ATOMICITY CONTRACT:
  Every engine operation runs inside TxStore.WithTx. The Store handed
  to the callback observes and mutates a single database transaction:
  a stock value read there is still current when the delta is applied,
  and a returned error rolls the whole operation back. No partial
  commit is ever visible.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - inventory/store: in-memory store for tests
*/
package inventory

import (
	"context"
	"time"
)

// =============================================================================
// BOOK LEDGER STORE
// =============================================================================

// BookStore reads and mutates the book ledger. Books are never
// deleted, only retired; stock is mutated exclusively through
// ApplyStockDelta inside an engine transaction.
type BookStore interface {
	// GetBook returns the book or nil if the id is unknown.
	GetBook(ctx context.Context, id BookID) (*Book, error)

	// GetBookByISBN resolves a canonical ISBN-13 to a book, nil if unknown.
	GetBookByISBN(ctx context.Context, isbn13 string) (*Book, error)

	// ListBooks returns all books ordered by title.
	ListBooks(ctx context.Context) ([]Book, error)

	// SaveBook inserts or updates a book record.
	SaveBook(ctx context.Context, b Book) error

	// ApplyStockDelta adds a signed quantity to the book's stock.
	ApplyStockDelta(ctx context.Context, id BookID, delta int) error
}

// =============================================================================
// VENDOR STORE
// =============================================================================

type VendorStore interface {
	// GetVendor returns the vendor or nil if the id is unknown.
	GetVendor(ctx context.Context, id VendorID) (*Vendor, error)

	ListVendors(ctx context.Context) ([]Vendor, error)

	SaveVendor(ctx context.Context, v Vendor) error
}

// =============================================================================
// GROUP STORE
// =============================================================================

// GroupStore persists transaction groups and their line items.
type GroupStore interface {
	// GetGroup returns the group with its line items in insertion
	// order, or nil if the id is unknown or belongs to another kind.
	GetGroup(ctx context.Context, kind GroupKind, id GroupID) (*TransactionGroup, error)

	// ListGroups returns all groups of a kind, newest date first, with
	// their line items.
	ListGroups(ctx context.Context, kind GroupKind) ([]TransactionGroup, error)

	// InsertGroup persists a group and all of its line items.
	InsertGroup(ctx context.Context, g *TransactionGroup) error

	// UpdateGroupFields updates the non-line-item fields (date, vendor).
	UpdateGroupFields(ctx context.Context, g *TransactionGroup) error

	// DeleteGroup removes the group and its line items.
	DeleteGroup(ctx context.Context, kind GroupKind, id GroupID) error

	// InsertLine adds one line item to an existing group.
	InsertLine(ctx context.Context, groupID GroupID, li LineItem) error

	// UpdateLine rewrites the book, quantity, and price of a line item.
	UpdateLine(ctx context.Context, li LineItem) error

	// DeleteLine removes one line item.
	DeleteLine(ctx context.Context, id LineItemID) error

	// HasPurchaseOnOrBefore reports whether any purchase order dated on
	// or before the given date contains the book.
	HasPurchaseOnOrBefore(ctx context.Context, bookID BookID, date time.Time) (bool, error)
}

// =============================================================================
// COMPOSED STORE
// =============================================================================

// Store is the full persistence surface the engine operates on.
type Store interface {
	BookStore
	VendorStore
	GroupStore
}

// TxStore executes a function against a transactional view of the
// store. If fn returns an error the transaction is rolled back,
// otherwise it is committed. Implementations must guarantee that the
// validate-then-apply sequence inside fn is serializable with respect
// to concurrent calls touching the same books.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
