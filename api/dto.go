/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - inventory/types.go: Domain types these mirror
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/quarto/inventory-engine/csvimport"
	"github.com/quarto/inventory-engine/inventory"
)

// =============================================================================
// BOOK / VENDOR TYPES
// =============================================================================

// BookDTO represents a catalog entry in API responses.
type BookDTO struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	ISBN13 string `json:"isbn_13"`
	Status string `json:"status"`
	Stock  int    `json:"stock"`
}

// CreateBookRequest is the body for creating or updating a book.
type CreateBookRequest struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	ISBN13 string `json:"isbn_13"`
	Status string `json:"status"`
	Stock  int    `json:"stock"`
}

// VendorDTO represents a counterparty in API responses.
type VendorDTO struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	BuybackRate *string `json:"buyback_rate,omitempty"`
}

// CreateVendorRequest is the body for creating or updating a vendor.
type CreateVendorRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	BuybackRate *string `json:"buyback_rate,omitempty"`
}

// =============================================================================
// TRANSACTION GROUP TYPES
// =============================================================================

// LineItemDTO is one row of a group in responses.
type LineItemDTO struct {
	ID        string          `json:"id"`
	BookID    string          `json:"book_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// GroupDTO represents a transaction group in API responses, with the
// derived figures clients display in listings.
type GroupDTO struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	Date           string          `json:"date"`
	VendorID       string          `json:"vendor_id,omitempty"`
	CreatedBy      string          `json:"created_by,omitempty"`
	LineItems      []LineItemDTO   `json:"line_items"`
	NumBooks       int             `json:"num_books"`
	NumUniqueBooks int             `json:"num_unique_books"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	IsDeletable    bool            `json:"is_deletable"`
}

// LineItemRequest is one requested row. ID is set only when editing an
// existing row of the group being updated.
type LineItemRequest struct {
	ID        string          `json:"id,omitempty"`
	BookID    string          `json:"book_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// GroupRequest is the body for creating or updating a group. Kind comes
// from the route, not the body.
type GroupRequest struct {
	Date      string            `json:"date"`
	VendorID  string            `json:"vendor_id,omitempty"`
	LineItems []LineItemRequest `json:"line_items"`
}

// =============================================================================
// CSV VALIDATION TYPES
// =============================================================================

// CSVRowDTO echoes one validated row of an uploaded file.
type CSVRowDTO struct {
	ISBN     string `json:"isbn"`
	Quantity string `json:"quantity"`
	Price    string `json:"price"`

	BookID    string `json:"book_id,omitempty"`
	BookTitle string `json:"book_title,omitempty"`
	ISBN13    string `json:"isbn_13,omitempty"`

	// Errors maps column name to a stable error code; empty means the
	// row is a valid candidate line item.
	Errors map[string]string `json:"errors,omitempty"`
}

// CSVValidationDTO is the outcome for a whole uploaded file.
type CSVValidationDTO struct {
	Rows           []CSVRowDTO `json:"rows"`
	DroppedColumns []string    `json:"dropped_columns,omitempty"`
	NumValid       int         `json:"num_valid"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toGroupDTO(res *inventory.GroupResult) GroupDTO {
	g := res.Group
	lines := make([]LineItemDTO, len(g.Lines))
	for i, li := range g.Lines {
		lines[i] = LineItemDTO{
			ID:        string(li.ID),
			BookID:    string(li.BookID),
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
			Subtotal:  li.Subtotal(),
		}
	}
	return GroupDTO{
		ID:             string(g.ID),
		Kind:           string(g.Kind),
		Date:           g.Date.Format("2006-01-02"),
		VendorID:       string(g.VendorID),
		CreatedBy:      g.CreatedBy,
		LineItems:      lines,
		NumBooks:       res.NumBooks,
		NumUniqueBooks: res.NumUniqueBooks,
		TotalAmount:    res.TotalAmount,
		IsDeletable:    res.IsDeletable,
	}
}

func toBookDTO(b inventory.Book) BookDTO {
	return BookDTO{
		ID:     string(b.ID),
		Title:  b.Title,
		ISBN13: b.ISBN13,
		Status: string(b.Status),
		Stock:  b.Stock,
	}
}

func toVendorDTO(v inventory.Vendor) VendorDTO {
	dto := VendorDTO{ID: string(v.ID), Name: v.Name}
	if v.BuybackRate != nil {
		s := v.BuybackRate.String()
		dto.BuybackRate = &s
	}
	return dto
}

func toCSVValidationDTO(res *csvimport.Result) CSVValidationDTO {
	dto := CSVValidationDTO{
		Rows:           make([]CSVRowDTO, len(res.Rows)),
		DroppedColumns: res.DroppedColumns,
	}
	for i, row := range res.Rows {
		dto.Rows[i] = CSVRowDTO{
			ISBN:      row.ISBN,
			Quantity:  row.Quantity,
			Price:     row.Price,
			BookID:    string(row.BookID),
			BookTitle: row.BookTitle,
			ISBN13:    row.ISBN13,
			Errors:    row.Errors,
		}
		if row.OK() {
			dto.NumValid++
		}
	}
	return dto
}
