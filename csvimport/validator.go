/*
Package csvimport validates uploaded delimited files into candidate
line-item batches.

PURPOSE:
  A purchase order, sales reconciliation, or buyback order can be
  bulk-entered from a CSV upload. This package checks the file's header
  shape, validates every cell, and cross-references the book ledger
  (existence, active status, sufficient stock for outbound kinds). The
  output reports every row, valid or not, so the caller can fix the
  file and resubmit; nothing here ever mutates persisted state.

VALIDATE TWICE, ON PURPOSE:
  The checks here are advisory: a book's stock can change between
  upload and submission. The reconciliation engine re-validates the
  authoritative invariant when the cleaned batch is committed, so the
  two layers are intentionally redundant.

COLUMN SHAPE:
  Every import kind expects `isbn`, `quantity`, and one kind-specific
  price column (unit_wholesale_price, unit_retail_price, or
  unit_buyback_price). Missing required columns reject the whole file;
  unknown columns are dropped with a warning; a duplicated required
  column rejects the file.

SEE ALSO:
  - errors.go: file-level errors and per-cell error codes
  - inventory/engine.go: the authoritative commit-time validation
*/
package csvimport

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quarto/inventory-engine/inventory"
	"github.com/quarto/inventory-engine/isbn"
)

// =============================================================================
// COLUMN CATEGORIES
// =============================================================================

// Category classifies a required column. The per-category check
// functions are selected through an explicit map built at construction
// time, so every price column shares one set of rules no matter which
// import kind names it.
type Category string

const (
	CategoryIdentifier Category = "identifier"
	CategoryQuantity   Category = "quantity"
	CategoryPrice      Category = "price"
)

const (
	columnISBN     = "isbn"
	columnQuantity = "quantity"
)

// requiredColumns returns the expected header set for a kind, in
// output order.
func requiredColumns(spec inventory.KindSpec) []string {
	return []string{columnISBN, columnQuantity, spec.PriceColumn}
}

func categoryOf(column string, spec inventory.KindSpec) Category {
	switch column {
	case columnISBN:
		return CategoryIdentifier
	case columnQuantity:
		return CategoryQuantity
	case spec.PriceColumn:
		return CategoryPrice
	}
	return ""
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Validator turns raw CSV bytes into per-row results. It reads the
// book ledger but never writes it.
type Validator struct {
	books  inventory.BookStore
	checks map[Category]checkFunc
}

type checkFunc func(ctx context.Context, v *Validator, spec inventory.KindSpec, row *Row) error

func NewValidator(books inventory.BookStore) *Validator {
	return &Validator{
		books: books,
		checks: map[Category]checkFunc{
			CategoryIdentifier: checkIdentifier,
			CategoryQuantity:   checkQuantity,
			CategoryPrice:      checkPrice,
		},
	}
}

// Row is the validation outcome for one data row. Raw cells are echoed
// back so the caller can redisplay the file; the book fields are
// populated once the identifier resolves.
type Row struct {
	ISBN     string
	Quantity string
	Price    string

	BookID    inventory.BookID
	BookTitle string
	ISBN13    string

	// Errors maps column name to an error code. An empty map means the
	// row is a valid candidate line item.
	Errors map[string]string

	book *inventory.Book
}

func (r *Row) OK() bool { return len(r.Errors) == 0 }

// LineInput converts a clean row into an engine line input. Only valid
// when OK() is true.
func (r *Row) LineInput() inventory.LineInput {
	qty, _ := strconv.Atoi(r.Quantity)
	price, _ := decimal.NewFromString(r.Price)
	return inventory.LineInput{
		BookID:    r.BookID,
		Quantity:  qty,
		UnitPrice: price,
	}
}

// Result is the outcome for a whole file.
type Result struct {
	Rows []Row

	// DroppedColumns lists unknown headers that were ignored.
	DroppedColumns []string
}

// Validate parses and validates one uploaded file for the given import
// kind. File-shape problems (unparseable, empty, missing or duplicate
// headers) are returned as errors; cell-level problems are reported
// per row in the Result.
func (v *Validator) Validate(ctx context.Context, kind inventory.GroupKind, file []byte) (*Result, error) {
	spec, ok := kind.Spec()
	if !ok {
		return nil, fmt.Errorf("%w: %q", inventory.ErrInvalidKind, kind)
	}

	records, err := parse(file)
	if err != nil {
		return nil, err
	}

	header := records[0]
	required := requiredColumns(spec)
	index, dropped, err := mapHeader(header, required)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Rows:           make([]Row, 0, len(records)-1),
		DroppedColumns: dropped,
	}
	for _, record := range records[1:] {
		row := Row{
			ISBN:     cell(record, index[columnISBN]),
			Quantity: cell(record, index[columnQuantity]),
			Price:    cell(record, index[spec.PriceColumn]),
			Errors:   map[string]string{},
		}
		// Identifier first: the quantity check needs the resolved book
		// for outbound stock limits.
		for _, column := range required {
			check := v.checks[categoryOf(column, spec)]
			if err := check(ctx, v, spec, &row); err != nil {
				return nil, err
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return result, nil
}

func parse(file []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(file))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		records = append(records, record)
	}
	if len(records) == 0 {
		return nil, ErrEmptyFile
	}
	return records, nil
}

// mapHeader resolves each required column to its index in the header
// row. Unknown headers are collected, not fatal; missing or duplicated
// required headers are.
func mapHeader(header []string, required []string) (map[string]int, []string, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = strings.ToLower(strings.TrimSpace(h))
	}

	index := make(map[string]int, len(required))
	var missing []string
	for _, want := range required {
		found := -1
		for i, h := range normalized {
			if h != want {
				continue
			}
			if found >= 0 {
				return nil, nil, &DuplicateHeaderError{Header: want}
			}
			found = i
		}
		if found < 0 {
			missing = append(missing, want)
			continue
		}
		index[want] = found
	}
	if len(missing) > 0 {
		return nil, nil, &MissingHeadersError{Missing: missing}
	}

	var dropped []string
	for _, h := range normalized {
		known := false
		for _, want := range required {
			if h == want {
				known = true
				break
			}
		}
		if !known {
			dropped = append(dropped, h)
		}
	}
	return index, dropped, nil
}

func cell(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return record[i]
}

// =============================================================================
// PER-CATEGORY CHECKS
// =============================================================================

func checkIdentifier(ctx context.Context, v *Validator, _ inventory.KindSpec, row *Row) error {
	if row.ISBN == "" {
		row.Errors[columnISBN] = CodeEmptyValue
		return nil
	}
	canonical, err := isbn.Canonical(row.ISBN)
	if err != nil {
		row.Errors[columnISBN] = CodeInvalidISBN
		return nil
	}
	book, err := v.books.GetBookByISBN(ctx, canonical)
	if err != nil {
		return err
	}
	if book == nil {
		row.Errors[columnISBN] = CodeNotInCatalog
		return nil
	}
	if book.Retired() {
		row.Errors[columnISBN] = CodeBookRetired
		return nil
	}
	row.book = book
	row.BookID = book.ID
	row.BookTitle = book.Title
	row.ISBN13 = canonical
	return nil
}

func checkQuantity(_ context.Context, _ *Validator, spec inventory.KindSpec, row *Row) error {
	if row.Quantity == "" {
		row.Errors[columnQuantity] = CodeEmptyValue
		return nil
	}
	qty, err := strconv.Atoi(row.Quantity)
	if err != nil {
		if _, ferr := strconv.ParseFloat(row.Quantity, 64); ferr != nil {
			row.Errors[columnQuantity] = CodeNotANumber
		} else {
			row.Errors[columnQuantity] = CodeNotAnInteger
		}
		return nil
	}
	if qty < 0 {
		row.Errors[columnQuantity] = CodeNegative
		return nil
	}
	// Outbound kinds cannot take more copies than are on hand. Only
	// checkable once the identifier resolved; advisory either way.
	if spec.Sign < 0 && row.book != nil && qty > row.book.Stock {
		row.Errors[columnQuantity] = InsufficientStockCode(row.book.Stock)
	}
	return nil
}

func checkPrice(_ context.Context, _ *Validator, spec inventory.KindSpec, row *Row) error {
	if row.Price == "" {
		row.Errors[spec.PriceColumn] = CodeEmptyValue
		return nil
	}
	price, err := strconv.ParseFloat(row.Price, 64)
	if err != nil {
		row.Errors[spec.PriceColumn] = CodeNotANumber
		return nil
	}
	if price < 0 {
		row.Errors[spec.PriceColumn] = CodeNegative
	}
	return nil
}
