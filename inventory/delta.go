package inventory

import "sort"

// =============================================================================
// STOCK DELTA - Net signed stock change per book for one operation
// =============================================================================

// StockDelta maps each touched book to the net signed change one
// engine operation implies for its stock. It exists only for the
// duration of a single reconciliation call and is never persisted.
//
// Accumulating the net delta, rather than judging each line item in
// isolation, is what makes simultaneous edits correct: removing a
// 5-copy line and adding another 5-copy line for the same book nets to
// zero and must be accepted even when either half alone would not be.
type StockDelta map[BookID]int

// Add accumulates a signed quantity for a book.
func (d StockDelta) Add(id BookID, qty int) {
	d[id] += qty
}

// BookIDs returns the touched books in ascending id order. All stock
// reads and writes iterate in this order so concurrent operations that
// overlap acquire rows deterministically.
func (d StockDelta) BookIDs() []BookID {
	ids := make([]BookID, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
