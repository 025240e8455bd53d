/*
Package inventory provides the stock reconciliation engine.

PURPOSE:
  This package contains the data model and algorithms that turn a batch
  of book line items (a purchase order, a sales reconciliation, or a
  buyback order) into a consistent change to each book's on-hand stock.
  The same engine handles all three batch kinds; the differences between
  them are captured in a small capability record per kind.

KEY CONCEPTS IN THIS FILE (types.go):
  - Book: a catalog entry with an on-hand stock count and a status
  - LineItem: one row of a batch, tied to one book, quantity, and price
  - TransactionGroup: a dated batch of line items with shared metadata
  - GroupKind / KindSpec: tagged variant + capability record per kind
  - Vendor: counterparty for purchase and buyback orders

DESIGN PRINCIPLES:
  1. Stock is never negative at rest, after any committed operation
  2. Prices use decimal.Decimal to avoid floating-point errors
  3. Kind behavior is data (KindSpec), not reflection or string dispatch
  4. Derived fields (totals, uniqueness counts) are computed on read

SEE ALSO:
  - engine.go: create/update/delete reconciliation algorithm
  - delta.go: per-book net stock change accumulation
  - store.go: persistence interfaces
*/
package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BookID string
type GroupID string
type LineItemID string
type VendorID string

// =============================================================================
// BOOK - Catalog entry backing the stock ledger
// =============================================================================

// BookStatus is the lifecycle state of a catalog entry. Retired books
// stay in the store so historical transactions remain referenceable,
// but they cannot participate in new transactions.
type BookStatus string

const (
	BookActive  BookStatus = "active"
	BookRetired BookStatus = "retired"
)

type Book struct {
	ID     BookID
	Title  string
	ISBN13 string
	Status BookStatus
	Stock  int
}

func (b *Book) Retired() bool { return b.Status == BookRetired }

// =============================================================================
// GROUP KIND - Tagged variant with a capability record per kind
// =============================================================================

type GroupKind string

const (
	KindPurchase GroupKind = "purchase_order"
	KindSale     GroupKind = "sales_reconciliation"
	KindBuyback  GroupKind = "buyback_order"
)

// Measure names the money field a kind contributes to: purchases cost
// money, sales and buybacks bring revenue.
type Measure string

const (
	MeasureCost    Measure = "cost"
	MeasureRevenue Measure = "revenue"
)

// KindSpec captures everything that differs between the three batch
// kinds. The engine is written once against this record; adding a kind
// means adding a row here, not a new code path.
type KindSpec struct {
	// Sign is the stock direction of one line item: +1 for stock-increasing
	// kinds (purchases), -1 for stock-decreasing kinds (sales, buybacks).
	Sign int

	// RequiresPriorPurchase demands that every referenced book has a
	// recorded purchase on or before the group date. A book cannot be
	// sold or bought back before it was ever bought in.
	RequiresPriorPurchase bool

	// CounterpartyRequired demands a vendor on the group.
	CounterpartyRequired bool

	Measure Measure

	// PriceColumn is the per-kind price header expected in CSV imports.
	PriceColumn string
}

var kindSpecs = map[GroupKind]KindSpec{
	KindPurchase: {
		Sign:        +1,
		Measure:     MeasureCost,
		PriceColumn: "unit_wholesale_price",

		CounterpartyRequired: true,
	},
	KindSale: {
		Sign:        -1,
		Measure:     MeasureRevenue,
		PriceColumn: "unit_retail_price",

		RequiresPriorPurchase: true,
	},
	KindBuyback: {
		Sign:        -1,
		Measure:     MeasureRevenue,
		PriceColumn: "unit_buyback_price",

		RequiresPriorPurchase: true,
		CounterpartyRequired:  true,
	},
}

// Spec returns the capability record for the kind.
func (k GroupKind) Spec() (KindSpec, bool) {
	spec, ok := kindSpecs[k]
	return spec, ok
}

func (k GroupKind) Valid() bool {
	_, ok := kindSpecs[k]
	return ok
}

// Kinds returns all known group kinds.
func Kinds() []GroupKind {
	return []GroupKind{KindPurchase, KindSale, KindBuyback}
}

// =============================================================================
// LINE ITEM - One row within a transaction group
// =============================================================================

type LineItem struct {
	ID        LineItemID
	BookID    BookID
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal is quantity times unit price, rounded to cents.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity))).Round(2)
}

// =============================================================================
// TRANSACTION GROUP - A dated batch of line items
// =============================================================================

type TransactionGroup struct {
	ID        GroupID
	Kind      GroupKind
	Date      time.Time
	VendorID  VendorID // empty for sales reconciliations
	CreatedBy string   // acting user, recorded only
	Lines     []LineItem
}

// NumBooks is the sum of line quantities.
func (g *TransactionGroup) NumBooks() int {
	n := 0
	for _, li := range g.Lines {
		n += li.Quantity
	}
	return n
}

// NumUniqueBooks is the count of distinct books referenced.
func (g *TransactionGroup) NumUniqueBooks() int {
	seen := make(map[BookID]struct{}, len(g.Lines))
	for _, li := range g.Lines {
		seen[li.BookID] = struct{}{}
	}
	return len(seen)
}

// TotalAmount is the sum of line subtotals, rounded to cents.
func (g *TransactionGroup) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, li := range g.Lines {
		total = total.Add(li.Subtotal())
	}
	return total.Round(2)
}

// GroupResult is the read model returned by every engine operation:
// the persisted group plus its derived fields.
type GroupResult struct {
	Group          TransactionGroup
	NumBooks       int
	NumUniqueBooks int
	TotalAmount    decimal.Decimal

	// IsDeletable is false when any referenced book has been retired.
	// Deleting such a group is still allowed by the engine (history
	// removal must restore stock); the flag is a UI affordance.
	IsDeletable bool
}

// =============================================================================
// VENDOR - Counterparty for purchases and buybacks
// =============================================================================

type Vendor struct {
	ID   VendorID
	Name string

	// BuybackRate is the vendor's buyback policy as a percentage of
	// wholesale price. Nil means the vendor does not buy books back.
	BuybackRate *decimal.Decimal
}

func (v *Vendor) HasBuybackPolicy() bool { return v.BuybackRate != nil }
