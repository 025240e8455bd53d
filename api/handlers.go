/*
handlers.go - HTTP API handlers for the inventory reconciliation system

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Transaction groups (one route group per kind):
    GET    /api/purchase-orders               List purchase orders
    POST   /api/purchase-orders               Create purchase order
    GET    /api/purchase-orders/{id}          Get one purchase order
    PUT    /api/purchase-orders/{id}          Update (reconcile diff)
    DELETE /api/purchase-orders/{id}          Delete (reverse stock)
    POST   /api/purchase-orders/csv/validate  Validate a CSV upload
    (same shape under /api/sales-reconciliations and /api/buyback-orders)

  Catalog:
    GET    /api/books                  List books
    POST   /api/books                  Create/update book
    GET    /api/books/{id}             Get book
    DELETE /api/books/{id}             Retire book (history survives)
    GET    /api/vendors                List vendors
    POST   /api/vendors                Create/update vendor
    GET    /api/vendors/{id}           Get vendor

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, validator)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, malformed uploads
  - 403: Deletion blocked by the stock invariant
  - 404: Resource not found
  - 409: ISBN already registered to another book
  - 500: Internal errors

AUTHENTICATION:
  The submitting user is taken from the X-User header, set by the
  gateway in front of this service. No authorization is enforced here.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - inventory/engine.go: Domain logic
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/quarto/inventory-engine/csvimport"
	"github.com/quarto/inventory-engine/inventory"
	"github.com/quarto/inventory-engine/isbn"
)

// maxUploadBytes caps CSV upload size.
const maxUploadBytes = 5 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine    *inventory.Engine
	Validator *csvimport.Validator
	Store     inventory.TxStore
}

// NewHandler creates a new handler on top of the given store.
func NewHandler(store inventory.TxStore) *Handler {
	return &Handler{
		Engine:    inventory.NewEngine(store),
		Validator: csvimport.NewValidator(store),
		Store:     store,
	}
}

// actor extracts the submitting user from the request.
func actor(r *http.Request) string {
	if u := r.Header.Get("X-User"); u != "" {
		return u
	}
	return "anonymous"
}

// =============================================================================
// TRANSACTION GROUP HANDLERS
// =============================================================================
// Each handler is parameterized by kind; the router binds one instance
// per route group.

// ListGroups returns all groups of one kind, newest first.
func (h *Handler) ListGroups(kind inventory.GroupKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := h.Engine.ListGroups(r.Context(), kind)
		if err != nil {
			writeEngineError(w, "Failed to list transaction groups", err)
			return
		}
		dtos := make([]GroupDTO, len(results))
		for i := range results {
			dtos[i] = toGroupDTO(&results[i])
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

// GetGroup returns a single group with derived figures.
func (h *Handler) GetGroup(kind inventory.GroupKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := inventory.GroupID(chi.URLParam(r, "id"))
		result, err := h.Engine.GetGroup(r.Context(), kind, id)
		if err != nil {
			writeEngineError(w, "Failed to get transaction group", err)
			return
		}
		writeJSON(w, http.StatusOK, toGroupDTO(result))
	}
}

// CreateGroup validates and persists a new group, applying its stock
// effect atomically.
func (h *Handler) CreateGroup(kind inventory.GroupKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeGroupRequest(w, r, kind)
		if !ok {
			return
		}
		result, err := h.Engine.CreateGroup(r.Context(), actor(r), in)
		if err != nil {
			writeEngineError(w, "Failed to create transaction group", err)
			return
		}
		writeJSON(w, http.StatusCreated, toGroupDTO(result))
	}
}

// UpdateGroup reconciles the submitted state against the stored group
// and applies the net stock difference.
func (h *Handler) UpdateGroup(kind inventory.GroupKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, ok := decodeGroupRequest(w, r, kind)
		if !ok {
			return
		}
		id := inventory.GroupID(chi.URLParam(r, "id"))
		result, err := h.Engine.UpdateGroup(r.Context(), actor(r), id, in)
		if err != nil {
			writeEngineError(w, "Failed to update transaction group", err)
			return
		}
		writeJSON(w, http.StatusOK, toGroupDTO(result))
	}
}

// DeleteGroup removes a group and reverses its stock effect. A delete
// that would push any stock negative is forbidden.
func (h *Handler) DeleteGroup(kind inventory.GroupKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := inventory.GroupID(chi.URLParam(r, "id"))
		err := h.Engine.DeleteGroup(r.Context(), kind, id)
		if err != nil {
			if errors.Is(err, inventory.ErrInsufficientStock) {
				writeError(w, http.StatusForbidden, "Deletion would make stock negative", err)
				return
			}
			writeEngineError(w, "Failed to delete transaction group", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
	}
}

// ValidateCSV checks an uploaded file against the kind's column shape
// and the catalog. Nothing is persisted.
func (h *Handler) ValidateCSV(kind inventory.GroupKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, err := readUpload(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Failed to read upload", err)
			return
		}
		result, err := h.Validator.Validate(r.Context(), kind, file)
		if err != nil {
			if csvimport.IsFileError(err) {
				writeError(w, http.StatusBadRequest, "Invalid file", err)
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to validate file", err)
			return
		}
		writeJSON(w, http.StatusOK, toCSVValidationDTO(result))
	}
}

// readUpload accepts either a multipart form with a "file" field or a
// raw CSV body.
func readUpload(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxUploadBytes)

	if f, _, err := r.FormFile("file"); err == nil {
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(r.Body)
}

func decodeGroupRequest(w http.ResponseWriter, r *http.Request, kind inventory.GroupKind) (inventory.GroupInput, bool) {
	var req GroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return inventory.GroupInput{}, false
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return inventory.GroupInput{}, false
	}

	in := inventory.GroupInput{
		Kind:     kind,
		Date:     date,
		VendorID: inventory.VendorID(req.VendorID),
		Lines:    make([]inventory.LineInput, len(req.LineItems)),
	}
	for i, li := range req.LineItems {
		in.Lines[i] = inventory.LineInput{
			ID:        inventory.LineItemID(li.ID),
			BookID:    inventory.BookID(li.BookID),
			Quantity:  li.Quantity,
			UnitPrice: li.UnitPrice,
		}
	}
	return in, true
}

// =============================================================================
// BOOK HANDLERS
// =============================================================================

// ListBooks returns the catalog.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.Store.ListBooks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list books", err)
		return
	}
	dtos := make([]BookDTO, len(books))
	for i, b := range books {
		dtos[i] = toBookDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBook returns a single book.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	id := inventory.BookID(chi.URLParam(r, "id"))
	book, err := h.Store.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get book", err)
		return
	}
	if book == nil {
		writeError(w, http.StatusNotFound, "Book not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

// CreateBook creates or updates a catalog entry.
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Title == "" || req.ISBN13 == "" {
		writeError(w, http.StatusBadRequest, "id, title and isbn_13 are required", nil)
		return
	}
	if req.Stock < 0 {
		writeError(w, http.StatusBadRequest, "stock must not be negative", nil)
		return
	}
	status := inventory.BookStatus(req.Status)
	if status == "" {
		status = inventory.BookActive
	}
	if status != inventory.BookActive && status != inventory.BookRetired {
		writeError(w, http.StatusBadRequest, "invalid status", nil)
		return
	}

	canonical, err := isbn.Canonical(req.ISBN13)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid isbn_13", err)
		return
	}

	// The ISBN is the natural key; a second id for the same ISBN is a
	// conflict, not an upsert.
	if existing, err := h.Store.GetBookByISBN(r.Context(), canonical); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check ISBN", err)
		return
	} else if existing != nil && existing.ID != inventory.BookID(req.ID) {
		writeError(w, http.StatusConflict, "Another book already carries this ISBN", nil)
		return
	}

	book := inventory.Book{
		ID:     inventory.BookID(req.ID),
		Title:  req.Title,
		ISBN13: canonical,
		Status: status,
		Stock:  req.Stock,
	}
	if err := h.Store.SaveBook(r.Context(), book); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save book", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookDTO(book))
}

// RetireBook marks a book as retired. Its transaction history stays;
// new transactions referencing it are rejected by the engine.
func (h *Handler) RetireBook(w http.ResponseWriter, r *http.Request) {
	id := inventory.BookID(chi.URLParam(r, "id"))
	book, err := h.Store.GetBook(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get book", err)
		return
	}
	if book == nil {
		writeError(w, http.StatusNotFound, "Book not found", nil)
		return
	}
	book.Status = inventory.BookRetired
	if err := h.Store.SaveBook(r.Context(), *book); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save book", err)
		return
	}
	writeJSON(w, http.StatusOK, toBookDTO(*book))
}

// =============================================================================
// VENDOR HANDLERS
// =============================================================================

// ListVendors returns all counterparties.
func (h *Handler) ListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.Store.ListVendors(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list vendors", err)
		return
	}
	dtos := make([]VendorDTO, len(vendors))
	for i, v := range vendors {
		dtos[i] = toVendorDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetVendor returns a single vendor.
func (h *Handler) GetVendor(w http.ResponseWriter, r *http.Request) {
	id := inventory.VendorID(chi.URLParam(r, "id"))
	vendor, err := h.Store.GetVendor(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get vendor", err)
		return
	}
	if vendor == nil {
		writeError(w, http.StatusNotFound, "Vendor not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toVendorDTO(*vendor))
}

// CreateVendor creates or updates a counterparty.
func (h *Handler) CreateVendor(w http.ResponseWriter, r *http.Request) {
	var req CreateVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	vendor := inventory.Vendor{
		ID:   inventory.VendorID(req.ID),
		Name: req.Name,
	}
	if req.BuybackRate != nil {
		rate, err := decimal.NewFromString(*req.BuybackRate)
		if err != nil || rate.IsNegative() {
			writeError(w, http.StatusBadRequest, "invalid buyback_rate", err)
			return
		}
		vendor.BuybackRate = &rate
	}
	if err := h.Store.SaveVendor(r.Context(), vendor); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save vendor", err)
		return
	}
	writeJSON(w, http.StatusCreated, toVendorDTO(vendor))
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps domain errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case inventory.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case inventory.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
