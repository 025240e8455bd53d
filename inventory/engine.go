/*
engine.go - Create/update/delete reconciliation for transaction groups

PURPOSE:
  The Engine turns a requested set of line items (a new group, or a
  replacement set for an existing group) into a consistent change to
  each book's stock, or rejects the whole batch.

ALGORITHM (two-pass, compute-then-apply):
  1. Accumulate the net StockDelta of the operation: additions
     contribute their full signed quantity, id-carrying edits
     contribute only the difference versus the stored row, omitted
     rows contribute the reversal of their original effect.
  2. Validate the aggregate: every touched book must end with
     stock >= 0, new outbound lines must reference active books with
     purchase history as of the group date.
  3. Only then mutate: upsert/delete line-item rows, update group
     fields, and apply the delta to each book, all in one store
     transaction.

  Validating the net delta rather than each line in isolation is
  required for correctness: simultaneous edits can be net-neutral even
  when each half looks unsafe alone.

INVARIANTS:
  - No partial apply: validation fully precedes mutation, and the
    whole operation shares one TxStore transaction.
  - Stock reads happen inside that transaction; a value observed
    during validation is still current at apply time.
  - Deleting a group is never blocked by retired books. Only creating
    new transactions against a retired book is blocked.

SEE ALSO:
  - delta.go: StockDelta accumulation
  - store.go: the transactional store contract
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Engine reconciles transaction groups against the book ledger.
type Engine struct {
	store TxStore
}

func NewEngine(store TxStore) *Engine {
	return &Engine{store: store}
}

// =============================================================================
// INPUTS
// =============================================================================

// LineInput is one requested line item. ID is set only when editing a
// line that already exists in the group being updated.
type LineInput struct {
	ID        LineItemID
	BookID    BookID
	Quantity  int
	UnitPrice decimal.Decimal
}

// GroupInput carries the requested state of a group.
type GroupInput struct {
	Kind     GroupKind
	Date     time.Time
	VendorID VendorID // ignored for kinds without a counterparty
	Lines    []LineInput
}

func (in GroupInput) validate() (KindSpec, error) {
	spec, ok := in.Kind.Spec()
	if !ok {
		return KindSpec{}, fmt.Errorf("%w: %q", ErrInvalidKind, in.Kind)
	}
	if len(in.Lines) == 0 {
		return KindSpec{}, ErrEmptyGroup
	}
	for i, li := range in.Lines {
		if li.Quantity <= 0 {
			return KindSpec{}, fmt.Errorf("%w: line %d: quantity must be positive", ErrInvalidLineItem, i)
		}
		if li.UnitPrice.IsNegative() {
			return KindSpec{}, fmt.Errorf("%w: line %d: unit price must not be negative", ErrInvalidLineItem, i)
		}
	}
	return spec, nil
}

// =============================================================================
// CREATE
// =============================================================================

// CreateGroup validates and persists a new transaction group, applying
// its stock effect atomically. Actor is recorded as the submitting
// user.
func (e *Engine) CreateGroup(ctx context.Context, actor string, in GroupInput) (*GroupResult, error) {
	spec, err := in.validate()
	if err != nil {
		return nil, err
	}

	var result *GroupResult
	err = e.store.WithTx(ctx, func(s Store) error {
		vendorID, err := checkVendor(ctx, s, spec, in)
		if err != nil {
			return err
		}

		books, err := loadBooks(ctx, s, inputBookIDs(in.Lines))
		if err != nil {
			return err
		}
		if err := checkActive(books, inputBookIDs(in.Lines)); err != nil {
			return err
		}

		delta := StockDelta{}
		for _, li := range in.Lines {
			delta.Add(li.BookID, spec.Sign*li.Quantity)
		}

		if spec.RequiresPriorPurchase {
			if err := checkPriorPurchase(ctx, s, books, delta, in.Date); err != nil {
				return err
			}
		}
		if err := validateStock(books, delta); err != nil {
			return err
		}

		group := &TransactionGroup{
			ID:        GroupID(uuid.NewString()),
			Kind:      in.Kind,
			Date:      in.Date,
			VendorID:  vendorID,
			CreatedBy: actor,
			Lines:     make([]LineItem, len(in.Lines)),
		}
		for i, li := range in.Lines {
			group.Lines[i] = LineItem{
				ID:        LineItemID(uuid.NewString()),
				BookID:    li.BookID,
				Quantity:  li.Quantity,
				UnitPrice: li.UnitPrice,
			}
		}

		if err := s.InsertGroup(ctx, group); err != nil {
			return err
		}
		if err := applyDelta(ctx, s, delta); err != nil {
			return err
		}

		result = buildResult(group, books)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdateGroup replaces a group's line-item set. Submitted lines that
// carry an id edit the stored row (a changed book makes the edit a
// delete-then-create for stock purposes); lines without an id are
// additions; stored rows whose id is not resubmitted are removed and
// their stock effect reversed.
func (e *Engine) UpdateGroup(ctx context.Context, actor string, groupID GroupID, in GroupInput) (*GroupResult, error) {
	spec, err := in.validate()
	if err != nil {
		return nil, err
	}

	var result *GroupResult
	err = e.store.WithTx(ctx, func(s Store) error {
		group, err := s.GetGroup(ctx, in.Kind, groupID)
		if err != nil {
			return err
		}
		if group == nil {
			return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
		}

		vendorID, err := checkVendor(ctx, s, spec, in)
		if err != nil {
			return err
		}

		existing := make(map[LineItemID]LineItem, len(group.Lines))
		for _, li := range group.Lines {
			existing[li.ID] = li
		}

		// Books on both sides of the update participate in the ghost
		// check: an update is blocked while any book in the group has
		// been retired, even if that particular line is untouched.
		bookIDs := inputBookIDs(in.Lines)
		for _, li := range group.Lines {
			bookIDs = append(bookIDs, li.BookID)
		}
		books, err := loadBooks(ctx, s, bookIDs)
		if err != nil {
			return err
		}
		if err := checkActive(books, bookIDs); err != nil {
			return err
		}

		// reversal: stored rows whose original stock effect must be
		// undone. Pure quantity/price edits drop out; everything else
		// (omitted rows, edits that switch books) stays in.
		reversal := make(map[LineItemID]struct{}, len(existing))
		// remove: stored rows whose database row goes away. Any
		// resubmitted id keeps its row (edits rewrite it in place).
		remove := make(map[LineItemID]struct{}, len(existing))
		for id := range existing {
			reversal[id] = struct{}{}
			remove[id] = struct{}{}
		}

		delta := StockDelta{}
		outbound := StockDelta{} // net-new outbound lines needing prior-purchase checks
		for _, li := range in.Lines {
			if li.ID == "" {
				delta.Add(li.BookID, spec.Sign*li.Quantity)
				outbound.Add(li.BookID, li.Quantity)
				continue
			}
			old, ok := existing[li.ID]
			if !ok {
				return fmt.Errorf("%w: %s", ErrLineItemNotFound, li.ID)
			}
			delete(remove, li.ID)
			if old.BookID == li.BookID {
				// Pure quantity/price edit: only the difference moves stock.
				delete(reversal, li.ID)
				delta.Add(li.BookID, spec.Sign*(li.Quantity-old.Quantity))
			} else {
				// Book switched: full new effect here, old effect
				// reversed below with the other removals.
				delta.Add(li.BookID, spec.Sign*li.Quantity)
				outbound.Add(li.BookID, li.Quantity)
			}
		}

		for id := range reversal {
			old := existing[id]
			delta.Add(old.BookID, -spec.Sign*old.Quantity)
		}

		if spec.RequiresPriorPurchase && len(outbound) > 0 {
			if err := checkPriorPurchase(ctx, s, books, outbound, in.Date); err != nil {
				return err
			}
		}
		if err := validateStock(books, delta); err != nil {
			return err
		}

		// Validation passed: make the rows match the submitted set.
		updated := &TransactionGroup{
			ID:        group.ID,
			Kind:      group.Kind,
			Date:      in.Date,
			VendorID:  vendorID,
			CreatedBy: group.CreatedBy,
			Lines:     make([]LineItem, len(in.Lines)),
		}
		for i, li := range in.Lines {
			row := LineItem{
				ID:        li.ID,
				BookID:    li.BookID,
				Quantity:  li.Quantity,
				UnitPrice: li.UnitPrice,
			}
			if row.ID == "" {
				row.ID = LineItemID(uuid.NewString())
				if err := s.InsertLine(ctx, group.ID, row); err != nil {
					return err
				}
			} else {
				if err := s.UpdateLine(ctx, row); err != nil {
					return err
				}
			}
			updated.Lines[i] = row
		}
		for _, old := range group.Lines {
			if _, gone := remove[old.ID]; gone {
				if err := s.DeleteLine(ctx, old.ID); err != nil {
					return err
				}
			}
		}
		if err := s.UpdateGroupFields(ctx, updated); err != nil {
			return err
		}
		if err := applyDelta(ctx, s, delta); err != nil {
			return err
		}

		result = buildResult(updated, books)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteGroup reverses the group's aggregate stock effect and removes
// it. Retired books never block deletion; the non-negative invariant
// still holds, so deleting a purchase whose copies are already gone is
// rejected.
func (e *Engine) DeleteGroup(ctx context.Context, kind GroupKind, groupID GroupID) error {
	spec, ok := kind.Spec()
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}

	return e.store.WithTx(ctx, func(s Store) error {
		group, err := s.GetGroup(ctx, kind, groupID)
		if err != nil {
			return err
		}
		if group == nil {
			return fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
		}

		delta := StockDelta{}
		for _, li := range group.Lines {
			delta.Add(li.BookID, -spec.Sign*li.Quantity)
		}

		books, err := loadBooks(ctx, s, itemBookIDs(group.Lines))
		if err != nil {
			return err
		}
		if err := validateStock(books, delta); err != nil {
			return err
		}

		if err := s.DeleteGroup(ctx, kind, groupID); err != nil {
			return err
		}
		return applyDelta(ctx, s, delta)
	})
}

// =============================================================================
// READ PATH
// =============================================================================

// GetGroup returns one group with its derived fields.
func (e *Engine) GetGroup(ctx context.Context, kind GroupKind, groupID GroupID) (*GroupResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	group, err := e.store.GetGroup(ctx, kind, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, groupID)
	}
	books, err := loadBooks(ctx, e.store, itemBookIDs(group.Lines))
	if err != nil {
		return nil, err
	}
	return buildResult(group, books), nil
}

// ListGroups returns all groups of a kind with derived fields, newest
// date first.
func (e *Engine) ListGroups(ctx context.Context, kind GroupKind) ([]GroupResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	groups, err := e.store.ListGroups(ctx, kind)
	if err != nil {
		return nil, err
	}
	results := make([]GroupResult, 0, len(groups))
	for i := range groups {
		books, err := loadBooks(ctx, e.store, itemBookIDs(groups[i].Lines))
		if err != nil {
			return nil, err
		}
		results = append(results, *buildResult(&groups[i], books))
	}
	return results, nil
}

// =============================================================================
// VALIDATION HELPERS
// =============================================================================

func checkVendor(ctx context.Context, s Store, spec KindSpec, in GroupInput) (VendorID, error) {
	if !spec.CounterpartyRequired {
		return "", nil
	}
	if in.VendorID == "" {
		return "", ErrVendorRequired
	}
	vendor, err := s.GetVendor(ctx, in.VendorID)
	if err != nil {
		return "", err
	}
	if vendor == nil {
		return "", fmt.Errorf("%w: %s", ErrVendorNotFound, in.VendorID)
	}
	if in.Kind == KindBuyback && !vendor.HasBuybackPolicy() {
		return "", fmt.Errorf("%w: %s", ErrNoBuybackPolicy, vendor.Name)
	}
	return vendor.ID, nil
}

func loadBooks(ctx context.Context, s Store, ids []BookID) (map[BookID]*Book, error) {
	books := make(map[BookID]*Book, len(ids))
	for _, id := range ids {
		if _, done := books[id]; done {
			continue
		}
		book, err := s.GetBook(ctx, id)
		if err != nil {
			return nil, err
		}
		if book == nil {
			return nil, fmt.Errorf("%w: %s", ErrBookNotFound, id)
		}
		books[id] = book
	}
	return books, nil
}

func checkActive(books map[BookID]*Book, ids []BookID) error {
	for _, id := range ids {
		if book := books[id]; book.Retired() {
			return &RetiredBookError{BookID: book.ID, Title: book.Title}
		}
	}
	return nil
}

func checkPriorPurchase(ctx context.Context, s Store, books map[BookID]*Book, touched StockDelta, date time.Time) error {
	for _, id := range touched.BookIDs() {
		ok, err := s.HasPurchaseOnOrBefore(ctx, id, date)
		if err != nil {
			return err
		}
		if !ok {
			book := books[id]
			return &NoPriorPurchaseError{BookID: id, Title: book.Title, AsOf: date}
		}
	}
	return nil
}

func validateStock(books map[BookID]*Book, delta StockDelta) error {
	for _, id := range delta.BookIDs() {
		book := books[id]
		if book.Stock+delta[id] < 0 {
			return &InsufficientStockError{
				BookID: id,
				Title:  book.Title,
				Stock:  book.Stock,
				Delta:  delta[id],
			}
		}
	}
	return nil
}

func applyDelta(ctx context.Context, s Store, delta StockDelta) error {
	for _, id := range delta.BookIDs() {
		if delta[id] == 0 {
			continue
		}
		if err := s.ApplyStockDelta(ctx, id, delta[id]); err != nil {
			return err
		}
	}
	return nil
}

func buildResult(g *TransactionGroup, books map[BookID]*Book) *GroupResult {
	deletable := true
	for _, li := range g.Lines {
		if book, ok := books[li.BookID]; ok && book.Retired() {
			deletable = false
			break
		}
	}
	return &GroupResult{
		Group:          *g,
		NumBooks:       g.NumBooks(),
		NumUniqueBooks: g.NumUniqueBooks(),
		TotalAmount:    g.TotalAmount(),
		IsDeletable:    deletable,
	}
}

func inputBookIDs(lines []LineInput) []BookID {
	ids := make([]BookID, 0, len(lines))
	for _, li := range lines {
		ids = append(ids, li.BookID)
	}
	return ids
}

func itemBookIDs(lines []LineItem) []BookID {
	ids := make([]BookID, 0, len(lines))
	for _, li := range lines {
		ids = append(ids, li.BookID)
	}
	return ids
}
