/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All engine error types in one place. Two families are kept distinct:
  validation errors (client-fixable: fix the batch and resubmit) and
  invariant violations (the aggregate effect of a batch would drive a
  book's stock negative). Storage failures are wrapped, never folded
  into either family.

USAGE:
  Callers branch with errors.Is / errors.As:

    var stockErr *inventory.InsufficientStockError
    if errors.As(err, &stockErr) {
        // report stockErr.BookID, stockErr.Stock
    }
*/
package inventory

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmptyGroup is returned when a group is submitted with no line items.
	ErrEmptyGroup = errors.New("transaction group has no line items")

	// ErrInvalidKind is returned for an unknown group kind.
	ErrInvalidKind = errors.New("unknown transaction group kind")

	// ErrInvalidLineItem is returned for a non-positive quantity or a
	// negative unit price.
	ErrInvalidLineItem = errors.New("invalid line item")

	// ErrBookRetired is returned when a new transaction references a
	// book that is no longer in the active catalog.
	ErrBookRetired = errors.New("book not in active inventory")

	// ErrInsufficientStock is returned when the net effect of a batch
	// would drive a book's stock below zero.
	ErrInsufficientStock = errors.New("would drive stock negative")

	// ErrNoPriorPurchase is returned when a sale or buyback references
	// a book with no purchase recorded on or before the group date.
	ErrNoPriorPurchase = errors.New("book has no purchase history")

	// ErrNoBuybackPolicy is returned when a buyback order names a
	// vendor without a buyback rate.
	ErrNoBuybackPolicy = errors.New("vendor has no buyback policy")

	// ErrVendorRequired is returned when a kind demands a counterparty
	// and none was supplied.
	ErrVendorRequired = errors.New("vendor required")

	// ErrBookNotFound / ErrVendorNotFound / ErrGroupNotFound identify
	// missing referenced records.
	ErrBookNotFound   = errors.New("book not found")
	ErrVendorNotFound = errors.New("vendor not found")
	ErrGroupNotFound  = errors.New("transaction group not found")

	// ErrLineItemNotFound is returned when an update supplies a line
	// item id that does not belong to the group.
	ErrLineItemNotFound = errors.New("line item not found in group")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError reports the offending book, its current
// stock, and the net change the rejected batch implied.
type InsufficientStockError struct {
	BookID BookID
	Title  string
	Stock  int
	Delta  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("would drive stock negative: %q has %d in stock, change is %+d",
		e.Title, e.Stock, e.Delta)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// RetiredBookError identifies a retired book referenced by a new
// transaction.
type RetiredBookError struct {
	BookID BookID
	Title  string
}

func (e *RetiredBookError) Error() string {
	return fmt.Sprintf("%q was previously removed from the catalog; re-add it before transacting", e.Title)
}

func (e *RetiredBookError) Unwrap() error { return ErrBookRetired }

// NoPriorPurchaseError identifies a book sold or bought back with no
// purchase history as of the group date.
type NoPriorPurchaseError struct {
	BookID BookID
	Title  string
	AsOf   time.Time
}

func (e *NoPriorPurchaseError) Error() string {
	return fmt.Sprintf("%q has not been purchased as of %s", e.Title, e.AsOf.Format("2006-01-02"))
}

func (e *NoPriorPurchaseError) Unwrap() error { return ErrNoPriorPurchase }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is fixable by correcting the
// submitted batch.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyGroup) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidLineItem) ||
		errors.Is(err, ErrBookRetired) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrNoPriorPurchase) ||
		errors.Is(err, ErrNoBuybackPolicy) ||
		errors.Is(err, ErrVendorRequired)
}

// IsNotFound reports whether the error identifies a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrBookNotFound) ||
		errors.Is(err, ErrVendorNotFound) ||
		errors.Is(err, ErrGroupNotFound) ||
		errors.Is(err, ErrLineItemNotFound)
}
