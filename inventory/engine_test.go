package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarto/inventory-engine/inventory"
	"github.com/quarto/inventory-engine/inventory/store"
)

// =============================================================================
// FIXTURES
// =============================================================================

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store  *store.Memory
	engine *inventory.Engine
}

// newFixture seeds two active books, one retired book and two vendors
// (one with a buyback policy, one without).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	books := []inventory.Book{
		{ID: "book-a", Title: "The Left Hand of Darkness", ISBN13: "9780441478125", Status: inventory.BookActive, Stock: 10},
		{ID: "book-b", Title: "A Wizard of Earthsea", ISBN13: "9780547773742", Status: inventory.BookActive, Stock: 2},
		{ID: "book-r", Title: "Out of Print Omnibus", ISBN13: "9780306406157", Status: inventory.BookRetired, Stock: 4},
	}
	for _, b := range books {
		require.NoError(t, mem.SaveBook(ctx, b))
	}

	rate := price("0.30")
	vendors := []inventory.Vendor{
		{ID: "vendor-1", Name: "Ingram", BuybackRate: &rate},
		{ID: "vendor-2", Name: "No Returns Press"},
	}
	for _, v := range vendors {
		require.NoError(t, mem.SaveVendor(ctx, v))
	}

	return &fixture{store: mem, engine: inventory.NewEngine(mem)}
}

func (f *fixture) stock(t *testing.T, id inventory.BookID) int {
	t.Helper()
	book, err := f.store.GetBook(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, book)
	return book.Stock
}

// seedPurchase creates a purchase so later sales have a prior purchase
// on record.
func (f *fixture) seedPurchase(t *testing.T, day string, bookID inventory.BookID, qty int) inventory.GroupID {
	t.Helper()
	result, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date(day),
		VendorID: "vendor-1",
		Lines: []inventory.LineInput{
			{BookID: bookID, Quantity: qty, UnitPrice: price("3.00")},
		},
	})
	require.NoError(t, err)
	return result.Group.ID
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreatePurchase_IncreasesStock(t *testing.T) {
	// GIVEN: book-a has 10 copies on hand
	// WHEN: A purchase order for 5 copies at 3.00 is created
	// THEN: Stock rises to 15 and the derived figures are computed

	f := newFixture(t)
	result, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date("2024-03-01"),
		VendorID: "vendor-1",
		Lines: []inventory.LineInput{
			{BookID: "book-a", Quantity: 5, UnitPrice: price("3.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 15, f.stock(t, "book-a"))
	assert.Equal(t, 5, result.NumBooks)
	assert.Equal(t, 1, result.NumUniqueBooks)
	assert.True(t, result.TotalAmount.Equal(price("15.00")))
	assert.True(t, result.IsDeletable)
	assert.Equal(t, "clerk", result.Group.CreatedBy)
	assert.NotEmpty(t, result.Group.ID)
	assert.NotEmpty(t, result.Group.Lines[0].ID)
}

func TestCreatePurchase_MultipleLines_AggregatesPerBook(t *testing.T) {
	// GIVEN: A purchase with two lines for the same book at different prices
	// WHEN: The purchase is created
	// THEN: Both lines count toward stock; unique book count stays 1

	f := newFixture(t)
	result, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date("2024-03-01"),
		VendorID: "vendor-1",
		Lines: []inventory.LineInput{
			{BookID: "book-a", Quantity: 3, UnitPrice: price("3.00")},
			{BookID: "book-a", Quantity: 2, UnitPrice: price("2.50")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 15, f.stock(t, "book-a"))
	assert.Equal(t, 5, result.NumBooks)
	assert.Equal(t, 1, result.NumUniqueBooks)
	assert.True(t, result.TotalAmount.Equal(price("14.00")))
}

func TestCreatePurchase_VendorRequired(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindPurchase,
		Date: date("2024-03-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-a", Quantity: 1, UnitPrice: price("3.00")},
		},
	})
	assert.ErrorIs(t, err, inventory.ErrVendorRequired)

	_, err = f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date("2024-03-01"),
		VendorID: "nobody",
		Lines: []inventory.LineInput{
			{BookID: "book-a", Quantity: 1, UnitPrice: price("3.00")},
		},
	})
	assert.ErrorIs(t, err, inventory.ErrVendorNotFound)
}

func TestCreateSale_InsufficientStockRejected(t *testing.T) {
	// GIVEN: book-b has 2 copies and a prior purchase on record
	// WHEN: A sale of 5 copies is submitted
	// THEN: The sale is rejected and stock is untouched

	f := newFixture(t)
	f.seedPurchase(t, "2024-01-01", "book-b", 2) // book-b now has 4

	_, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-03-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 5, UnitPrice: price("9.99")},
		},
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	var stockErr *inventory.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, inventory.BookID("book-b"), stockErr.BookID)
	assert.Equal(t, 4, stockErr.Stock)
	assert.Equal(t, -5, stockErr.Delta)
	assert.Equal(t, 4, f.stock(t, "book-b"))
}

func TestCreateSale_ToExactlyZeroAllowed(t *testing.T) {
	f := newFixture(t)
	f.seedPurchase(t, "2024-01-01", "book-b", 2) // stock 4

	_, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-03-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 4, UnitPrice: price("9.99")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, f.stock(t, "book-b"))
}

func TestCreateSale_NetDeltaAcrossLines(t *testing.T) {
	// GIVEN: book-b has 4 copies after a seeded purchase
	// WHEN: One sale lists the book twice, 3 + 2 copies
	// THEN: The aggregated delta of -5 is what gets validated

	f := newFixture(t)
	f.seedPurchase(t, "2024-01-01", "book-b", 2) // stock 4

	_, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-03-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 3, UnitPrice: price("9.99")},
			{BookID: "book-b", Quantity: 2, UnitPrice: price("7.99")},
		},
	})
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 4, f.stock(t, "book-b"))
}

func TestCreateSale_RequiresPriorPurchase(t *testing.T) {
	// GIVEN: book-a has stock but no purchase on record
	// WHEN: A sale is submitted
	// THEN: It is rejected; a purchase dated after the sale does not help

	f := newFixture(t)

	sale := inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-03-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-a", Quantity: 1, UnitPrice: price("9.99")},
		},
	}
	_, err := f.engine.CreateGroup(context.Background(), "clerk", sale)
	assert.ErrorIs(t, err, inventory.ErrNoPriorPurchase)

	// Purchase dated after the sale date still does not satisfy the check.
	f.seedPurchase(t, "2024-04-01", "book-a", 5)
	_, err = f.engine.CreateGroup(context.Background(), "clerk", sale)
	assert.ErrorIs(t, err, inventory.ErrNoPriorPurchase)

	// Purchase on the sale date itself does.
	f.seedPurchase(t, "2024-03-01", "book-a", 5)
	_, err = f.engine.CreateGroup(context.Background(), "clerk", sale)
	assert.NoError(t, err)
}

func TestCreateBuyback_RequiresBuybackPolicy(t *testing.T) {
	f := newFixture(t)
	f.seedPurchase(t, "2024-01-01", "book-a", 5)

	buyback := inventory.GroupInput{
		Kind:     inventory.KindBuyback,
		Date:     date("2024-03-01"),
		VendorID: "vendor-2",
		Lines: []inventory.LineInput{
			{BookID: "book-a", Quantity: 2, UnitPrice: price("1.00")},
		},
	}
	_, err := f.engine.CreateGroup(context.Background(), "clerk", buyback)
	assert.ErrorIs(t, err, inventory.ErrNoBuybackPolicy)

	buyback.VendorID = "vendor-1"
	result, err := f.engine.CreateGroup(context.Background(), "clerk", buyback)
	require.NoError(t, err)
	assert.Equal(t, 13, f.stock(t, "book-a"))
	assert.True(t, result.TotalAmount.Equal(price("2.00")))
}

func TestCreate_RetiredBookRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date("2024-03-01"),
		VendorID: "vendor-1",
		Lines: []inventory.LineInput{
			{BookID: "book-r", Quantity: 1, UnitPrice: price("3.00")},
		},
	})
	assert.ErrorIs(t, err, inventory.ErrBookRetired)
}

func TestCreate_InputValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.CreateGroup(ctx, "clerk", inventory.GroupInput{
		Kind: "donation", Date: date("2024-03-01"),
		Lines: []inventory.LineInput{{BookID: "book-a", Quantity: 1, UnitPrice: price("1.00")}},
	})
	assert.ErrorIs(t, err, inventory.ErrInvalidKind)

	_, err = f.engine.CreateGroup(ctx, "clerk", inventory.GroupInput{
		Kind: inventory.KindPurchase, Date: date("2024-03-01"), VendorID: "vendor-1",
	})
	assert.ErrorIs(t, err, inventory.ErrEmptyGroup)

	_, err = f.engine.CreateGroup(ctx, "clerk", inventory.GroupInput{
		Kind: inventory.KindPurchase, Date: date("2024-03-01"), VendorID: "vendor-1",
		Lines: []inventory.LineInput{{BookID: "book-a", Quantity: 0, UnitPrice: price("1.00")}},
	})
	assert.ErrorIs(t, err, inventory.ErrInvalidLineItem)

	_, err = f.engine.CreateGroup(ctx, "clerk", inventory.GroupInput{
		Kind: inventory.KindPurchase, Date: date("2024-03-01"), VendorID: "vendor-1",
		Lines: []inventory.LineInput{{BookID: "book-a", Quantity: 1, UnitPrice: price("-1.00")}},
	})
	assert.ErrorIs(t, err, inventory.ErrInvalidLineItem)

	_, err = f.engine.CreateGroup(ctx, "clerk", inventory.GroupInput{
		Kind: inventory.KindPurchase, Date: date("2024-03-01"), VendorID: "vendor-1",
		Lines: []inventory.LineInput{{BookID: "missing", Quantity: 1, UnitPrice: price("1.00")}},
	})
	assert.ErrorIs(t, err, inventory.ErrBookNotFound)
}

// =============================================================================
// UPDATE
// =============================================================================

func TestUpdate_QuantityEdit_AppliesDifference(t *testing.T) {
	// GIVEN: A purchase of 5 copies of book-a (stock 15)
	// WHEN: The line is edited down to 3 copies
	// THEN: Only the difference of -2 hits stock; the row id is kept

	f := newFixture(t)
	id := f.seedPurchase(t, "2024-01-01", "book-a", 5)
	before, err := f.engine.GetGroup(context.Background(), inventory.KindPurchase, id)
	require.NoError(t, err)
	lineID := before.Group.Lines[0].ID

	result, err := f.engine.UpdateGroup(context.Background(), "manager", id, inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date("2024-01-01"),
		VendorID: "vendor-1",
		Lines: []inventory.LineInput{
			{ID: lineID, BookID: "book-a", Quantity: 3, UnitPrice: price("3.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 13, f.stock(t, "book-a"))
	assert.Equal(t, lineID, result.Group.Lines[0].ID)
	// The original submitter stays on record.
	assert.Equal(t, "clerk", result.Group.CreatedBy)
}

func TestUpdate_BookSwitch_MovesFullQuantities(t *testing.T) {
	// GIVEN: A purchase line of 5 copies of book-a
	// WHEN: The line's book is switched to book-b, quantity 4
	// THEN: book-a loses all 5, book-b gains 4, the row id survives

	f := newFixture(t)
	id := f.seedPurchase(t, "2024-01-01", "book-a", 5) // a: 15
	before, err := f.engine.GetGroup(context.Background(), inventory.KindPurchase, id)
	require.NoError(t, err)
	lineID := before.Group.Lines[0].ID

	result, err := f.engine.UpdateGroup(context.Background(), "manager", id, inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date("2024-01-01"),
		VendorID: "vendor-1",
		Lines: []inventory.LineInput{
			{ID: lineID, BookID: "book-b", Quantity: 4, UnitPrice: price("3.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 10, f.stock(t, "book-a"))
	assert.Equal(t, 6, f.stock(t, "book-b"))
	assert.Equal(t, lineID, result.Group.Lines[0].ID)
}

func TestUpdate_RemoveAndAdd_NetNeutral(t *testing.T) {
	// GIVEN: A sale of 4 copies emptied book-b (stock 0)
	// WHEN: The update drops the stored line and adds a fresh one for
	//       the same book and quantity
	// THEN: The net delta is zero, so zero stock does not block it

	f := newFixture(t)
	f.seedPurchase(t, "2024-01-01", "book-b", 2) // stock 4

	sale, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-02-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 4, UnitPrice: price("9.99")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 0, f.stock(t, "book-b"))

	result, err := f.engine.UpdateGroup(context.Background(), "manager", sale.Group.ID, inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-02-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 4, UnitPrice: price("8.99")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, f.stock(t, "book-b"))
	require.Len(t, result.Group.Lines, 1)
	assert.NotEqual(t, sale.Group.Lines[0].ID, result.Group.Lines[0].ID)
	assert.True(t, result.TotalAmount.Equal(price("35.96")))
}

func TestUpdate_OmittedLineReversed(t *testing.T) {
	// GIVEN: A purchase with two lines for different books
	// WHEN: Only one line is resubmitted
	// THEN: The omitted line's stock effect is reversed and its row gone

	f := newFixture(t)
	result, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date("2024-01-01"),
		VendorID: "vendor-1",
		Lines: []inventory.LineInput{
			{BookID: "book-a", Quantity: 5, UnitPrice: price("3.00")},
			{BookID: "book-b", Quantity: 3, UnitPrice: price("2.00")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 15, f.stock(t, "book-a"))
	require.Equal(t, 5, f.stock(t, "book-b"))

	kept := result.Group.Lines[0]
	updated, err := f.engine.UpdateGroup(context.Background(), "manager", result.Group.ID, inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date("2024-01-01"),
		VendorID: "vendor-1",
		Lines: []inventory.LineInput{
			{ID: kept.ID, BookID: "book-a", Quantity: 5, UnitPrice: price("3.00")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 15, f.stock(t, "book-a"))
	assert.Equal(t, 2, f.stock(t, "book-b"))
	assert.Len(t, updated.Group.Lines, 1)
}

func TestUpdate_ReducedPurchaseBoundary(t *testing.T) {
	// GIVEN: book-b at 2, purchased 5 (-> 7), then 5 sold (-> 2)
	// WHEN: The purchase is reduced to 3 copies (stock would hit 0)
	// THEN: Accepted; reducing to 2 (stock -1) is rejected

	f := newFixture(t)
	id := f.seedPurchase(t, "2024-01-01", "book-b", 5)

	_, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-02-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 5, UnitPrice: price("9.99")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, "book-b"))

	before, err := f.engine.GetGroup(context.Background(), inventory.KindPurchase, id)
	require.NoError(t, err)
	lineID := before.Group.Lines[0].ID

	reduceTo := func(qty int) error {
		_, err := f.engine.UpdateGroup(context.Background(), "manager", id, inventory.GroupInput{
			Kind:     inventory.KindPurchase,
			Date:     date("2024-01-01"),
			VendorID: "vendor-1",
			Lines: []inventory.LineInput{
				{ID: lineID, BookID: "book-b", Quantity: qty, UnitPrice: price("3.00")},
			},
		})
		return err
	}

	require.NoError(t, reduceTo(3))
	assert.Equal(t, 0, f.stock(t, "book-b"))

	err = reduceTo(2)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 0, f.stock(t, "book-b"))
}

func TestUpdate_UnknownLineIDRejected(t *testing.T) {
	f := newFixture(t)
	id := f.seedPurchase(t, "2024-01-01", "book-a", 5)

	_, err := f.engine.UpdateGroup(context.Background(), "manager", id, inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date("2024-01-01"),
		VendorID: "vendor-1",
		Lines: []inventory.LineInput{
			{ID: "no-such-line", BookID: "book-a", Quantity: 5, UnitPrice: price("3.00")},
		},
	})
	assert.ErrorIs(t, err, inventory.ErrLineItemNotFound)
	assert.Equal(t, 15, f.stock(t, "book-a"))
}

func TestUpdate_GroupNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.UpdateGroup(context.Background(), "manager", "missing", inventory.GroupInput{
		Kind:     inventory.KindPurchase,
		Date:     date("2024-01-01"),
		VendorID: "vendor-1",
		Lines: []inventory.LineInput{
			{BookID: "book-a", Quantity: 1, UnitPrice: price("3.00")},
		},
	})
	assert.ErrorIs(t, err, inventory.ErrGroupNotFound)
}

func TestUpdate_InsufficientStockRollsBack(t *testing.T) {
	// GIVEN: A sale of 2 of book-b (stock 4 -> 2)
	// WHEN: The update raises the quantity beyond what is on hand
	// THEN: Nothing changes, neither rows nor stock

	f := newFixture(t)
	f.seedPurchase(t, "2024-01-01", "book-b", 2) // stock 4

	sale, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-02-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 2, UnitPrice: price("9.99")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, f.stock(t, "book-b"))

	_, err = f.engine.UpdateGroup(context.Background(), "manager", sale.Group.ID, inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-02-01"),
		Lines: []inventory.LineInput{
			{ID: sale.Group.Lines[0].ID, BookID: "book-b", Quantity: 9, UnitPrice: price("9.99")},
		},
	})
	require.ErrorIs(t, err, inventory.ErrInsufficientStock)

	assert.Equal(t, 2, f.stock(t, "book-b"))
	after, err := f.engine.GetGroup(context.Background(), inventory.KindSale, sale.Group.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, after.Group.Lines[0].Quantity)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDeletePurchase_ReversesStock(t *testing.T) {
	f := newFixture(t)
	id := f.seedPurchase(t, "2024-01-01", "book-a", 5) // stock 15

	require.NoError(t, f.engine.DeleteGroup(context.Background(), inventory.KindPurchase, id))
	assert.Equal(t, 10, f.stock(t, "book-a"))

	_, err := f.engine.GetGroup(context.Background(), inventory.KindPurchase, id)
	assert.ErrorIs(t, err, inventory.ErrGroupNotFound)
}

func TestDeletePurchase_BlockedWhenCopiesAlreadySold(t *testing.T) {
	// GIVEN: A purchase of 5 of book-b, then a sale of 8 of its 9
	// WHEN: The purchase is deleted (would take stock to -4)
	// THEN: The deletion is rejected and stock untouched

	f := newFixture(t)
	id := f.seedPurchase(t, "2024-01-01", "book-b", 5) // stock 7

	_, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-02-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 6, UnitPrice: price("9.99")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.stock(t, "book-b"))

	err = f.engine.DeleteGroup(context.Background(), inventory.KindPurchase, id)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	assert.Equal(t, 1, f.stock(t, "book-b"))
}

func TestDeletePurchase_ToExactlyZeroAllowed(t *testing.T) {
	f := newFixture(t)
	id := f.seedPurchase(t, "2024-01-01", "book-b", 5) // stock 7

	_, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-02-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 2, UnitPrice: price("9.99")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 5, f.stock(t, "book-b"))

	require.NoError(t, f.engine.DeleteGroup(context.Background(), inventory.KindPurchase, id))
	assert.Equal(t, 0, f.stock(t, "book-b"))
}

func TestDeleteSale_RestoresStock(t *testing.T) {
	f := newFixture(t)
	f.seedPurchase(t, "2024-01-01", "book-b", 2) // stock 4

	sale, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-02-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 3, UnitPrice: price("9.99")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.stock(t, "book-b"))

	require.NoError(t, f.engine.DeleteGroup(context.Background(), inventory.KindSale, sale.Group.ID))
	assert.Equal(t, 4, f.stock(t, "book-b"))
}

func TestDelete_RetiredBookDoesNotBlock(t *testing.T) {
	// GIVEN: A purchase whose book is retired afterwards
	// WHEN: The purchase is deleted
	// THEN: Retirement does not block it; only the stock invariant can

	f := newFixture(t)
	ctx := context.Background()
	id := f.seedPurchase(t, "2024-01-01", "book-a", 5) // stock 15

	book, err := f.store.GetBook(ctx, "book-a")
	require.NoError(t, err)
	book.Status = inventory.BookRetired
	require.NoError(t, f.store.SaveBook(ctx, *book))

	// Read model flags it as undeletable for the UI.
	result, err := f.engine.GetGroup(ctx, inventory.KindPurchase, id)
	require.NoError(t, err)
	assert.False(t, result.IsDeletable)

	require.NoError(t, f.engine.DeleteGroup(ctx, inventory.KindPurchase, id))
	assert.Equal(t, 10, f.stock(t, "book-a"))
}

func TestDelete_WrongKindIsNotFound(t *testing.T) {
	f := newFixture(t)
	id := f.seedPurchase(t, "2024-01-01", "book-a", 5)

	err := f.engine.DeleteGroup(context.Background(), inventory.KindSale, id)
	assert.ErrorIs(t, err, inventory.ErrGroupNotFound)
	assert.Equal(t, 15, f.stock(t, "book-a"))
}

// =============================================================================
// READ PATH
// =============================================================================

func TestListGroups_NewestFirst(t *testing.T) {
	f := newFixture(t)
	f.seedPurchase(t, "2024-01-01", "book-a", 1)
	f.seedPurchase(t, "2024-03-01", "book-a", 1)
	f.seedPurchase(t, "2024-02-01", "book-a", 1)

	results, err := f.engine.ListGroups(context.Background(), inventory.KindPurchase)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, date("2024-03-01"), results[0].Group.Date)
	assert.Equal(t, date("2024-02-01"), results[1].Group.Date)
	assert.Equal(t, date("2024-01-01"), results[2].Group.Date)
}

func TestListGroups_FiltersByKind(t *testing.T) {
	f := newFixture(t)
	f.seedPurchase(t, "2024-01-01", "book-b", 2)

	_, err := f.engine.CreateGroup(context.Background(), "clerk", inventory.GroupInput{
		Kind: inventory.KindSale,
		Date: date("2024-02-01"),
		Lines: []inventory.LineInput{
			{BookID: "book-b", Quantity: 1, UnitPrice: price("9.99")},
		},
	})
	require.NoError(t, err)

	sales, err := f.engine.ListGroups(context.Background(), inventory.KindSale)
	require.NoError(t, err)
	assert.Len(t, sales, 1)

	purchases, err := f.engine.ListGroups(context.Background(), inventory.KindPurchase)
	require.NoError(t, err)
	assert.Len(t, purchases, 1)
}
