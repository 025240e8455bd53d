package csvimport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// CELL ERROR CODES
// =============================================================================
// Stable, machine-readable codes reported per column per row. Callers
// map them to display text; the validator never localizes.

const (
	CodeEmptyValue   = "empty_value"
	CodeNotANumber   = "not_a_number"
	CodeNotAnInteger = "not_an_int"
	CodeNegative     = "negative"
	CodeInvalidISBN  = "invalid_isbn"
	CodeNotInCatalog = "not_in_db"
	CodeBookRetired  = "book_retired"
)

// InsufficientStockCode builds the code for an outbound quantity that
// exceeds the book's current stock, embedding the stock on hand.
func InsufficientStockCode(stock int) string {
	return "insufficient_stock_" + strconv.Itoa(stock)
}

// =============================================================================
// FILE-LEVEL ERRORS
// =============================================================================

// ErrEmptyFile is returned for a file with no records at all.
var ErrEmptyFile = errors.New("empty_csv")

// ParseError wraps a CSV syntax error from the underlying reader.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "malformed csv: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// MissingHeadersError rejects a file whose header row lacks required
// columns. The whole file is rejected; no rows are processed.
type MissingHeadersError struct {
	Missing []string
}

func (e *MissingHeadersError) Error() string {
	return "missing required headers: " + strings.Join(e.Missing, ", ")
}

// DuplicateHeaderError rejects a file in which a required column name
// appears more than once; there is no way to tell which occurrence the
// uploader meant.
type DuplicateHeaderError struct {
	Header string
}

func (e *DuplicateHeaderError) Error() string {
	return fmt.Sprintf("duplicate header: %s", e.Header)
}

// IsFileError reports whether the error describes the file's shape
// (as opposed to a storage failure), i.e. the uploader can fix it.
func IsFileError(err error) bool {
	if errors.Is(err, ErrEmptyFile) {
		return true
	}
	var (
		parseErr   *ParseError
		missingErr *MissingHeadersError
		dupErr     *DuplicateHeaderError
	)
	return errors.As(err, &parseErr) || errors.As(err, &missingErr) || errors.As(err, &dupErr)
}
