// Package store provides an in-memory inventory.TxStore for tests and dev.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/quarto/inventory-engine/inventory"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.Mutex
	books   map[inventory.BookID]inventory.Book
	vendors map[inventory.VendorID]inventory.Vendor
	groups  map[inventory.GroupID]*inventory.TransactionGroup
	// insertion order of groups, for stable listings
	groupOrder []inventory.GroupID
}

func NewMemory() *Memory {
	return &Memory{
		books:   make(map[inventory.BookID]inventory.Book),
		vendors: make(map[inventory.VendorID]inventory.Vendor),
		groups:  make(map[inventory.GroupID]*inventory.TransactionGroup),
	}
}

// WithTx simulates a transaction with a snapshot plus rollback on error.
// The mutex makes the whole callback a critical section, which gives
// the same serializability the SQLite store gets from its single-writer
// transaction.
func (m *Memory) WithTx(ctx context.Context, fn func(inventory.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&memoryView{m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	books := make(map[inventory.BookID]inventory.Book, len(m.books))
	for k, v := range m.books {
		books[k] = v
	}
	vendors := make(map[inventory.VendorID]inventory.Vendor, len(m.vendors))
	for k, v := range m.vendors {
		vendors[k] = v
	}
	groups := make(map[inventory.GroupID]*inventory.TransactionGroup, len(m.groups))
	for k, v := range m.groups {
		groups[k] = copyGroup(v)
	}
	order := append([]inventory.GroupID(nil), m.groupOrder...)
	return memorySnapshot{books: books, vendors: vendors, groups: groups, order: order}
}

func (m *Memory) restore(s memorySnapshot) {
	m.books = s.books
	m.vendors = s.vendors
	m.groups = s.groups
	m.groupOrder = s.order
}

type memorySnapshot struct {
	books   map[inventory.BookID]inventory.Book
	vendors map[inventory.VendorID]inventory.Vendor
	groups  map[inventory.GroupID]*inventory.TransactionGroup
	order   []inventory.GroupID
}

func copyGroup(g *inventory.TransactionGroup) *inventory.TransactionGroup {
	cp := *g
	cp.Lines = append([]inventory.LineItem(nil), g.Lines...)
	return &cp
}

// =============================================================================
// DIRECT (NON-TRANSACTIONAL) ACCESS
// =============================================================================
// Reads outside WithTx lock briefly and copy; writes are for fixtures.

func (m *Memory) GetBook(ctx context.Context, id inventory.BookID) (*inventory.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).GetBook(ctx, id)
}

func (m *Memory) GetBookByISBN(ctx context.Context, isbn13 string) (*inventory.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).GetBookByISBN(ctx, isbn13)
}

func (m *Memory) ListBooks(ctx context.Context) ([]inventory.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).ListBooks(ctx)
}

func (m *Memory) SaveBook(ctx context.Context, b inventory.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).SaveBook(ctx, b)
}

func (m *Memory) ApplyStockDelta(ctx context.Context, id inventory.BookID, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).ApplyStockDelta(ctx, id, delta)
}

func (m *Memory) GetVendor(ctx context.Context, id inventory.VendorID) (*inventory.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).GetVendor(ctx, id)
}

func (m *Memory) ListVendors(ctx context.Context) ([]inventory.Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).ListVendors(ctx)
}

func (m *Memory) SaveVendor(ctx context.Context, v inventory.Vendor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).SaveVendor(ctx, v)
}

func (m *Memory) GetGroup(ctx context.Context, kind inventory.GroupKind, id inventory.GroupID) (*inventory.TransactionGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).GetGroup(ctx, kind, id)
}

func (m *Memory) ListGroups(ctx context.Context, kind inventory.GroupKind) ([]inventory.TransactionGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).ListGroups(ctx, kind)
}

func (m *Memory) InsertGroup(ctx context.Context, g *inventory.TransactionGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).InsertGroup(ctx, g)
}

func (m *Memory) UpdateGroupFields(ctx context.Context, g *inventory.TransactionGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).UpdateGroupFields(ctx, g)
}

func (m *Memory) DeleteGroup(ctx context.Context, kind inventory.GroupKind, id inventory.GroupID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).DeleteGroup(ctx, kind, id)
}

func (m *Memory) InsertLine(ctx context.Context, groupID inventory.GroupID, li inventory.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).InsertLine(ctx, groupID, li)
}

func (m *Memory) UpdateLine(ctx context.Context, li inventory.LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).UpdateLine(ctx, li)
}

func (m *Memory) DeleteLine(ctx context.Context, id inventory.LineItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).DeleteLine(ctx, id)
}

func (m *Memory) HasPurchaseOnOrBefore(ctx context.Context, bookID inventory.BookID, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryView{m}).HasPurchaseOnOrBefore(ctx, bookID, date)
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

type memoryView struct {
	m *Memory
}

func (v *memoryView) GetBook(_ context.Context, id inventory.BookID) (*inventory.Book, error) {
	book, ok := v.m.books[id]
	if !ok {
		return nil, nil
	}
	return &book, nil
}

func (v *memoryView) GetBookByISBN(_ context.Context, isbn13 string) (*inventory.Book, error) {
	for _, book := range v.m.books {
		if book.ISBN13 == isbn13 {
			b := book
			return &b, nil
		}
	}
	return nil, nil
}

func (v *memoryView) ListBooks(_ context.Context) ([]inventory.Book, error) {
	books := make([]inventory.Book, 0, len(v.m.books))
	for _, b := range v.m.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].Title < books[j].Title })
	return books, nil
}

func (v *memoryView) SaveBook(_ context.Context, b inventory.Book) error {
	v.m.books[b.ID] = b
	return nil
}

func (v *memoryView) ApplyStockDelta(_ context.Context, id inventory.BookID, delta int) error {
	book, ok := v.m.books[id]
	if !ok {
		return inventory.ErrBookNotFound
	}
	book.Stock += delta
	v.m.books[id] = book
	return nil
}

func (v *memoryView) GetVendor(_ context.Context, id inventory.VendorID) (*inventory.Vendor, error) {
	vendor, ok := v.m.vendors[id]
	if !ok {
		return nil, nil
	}
	return &vendor, nil
}

func (v *memoryView) ListVendors(_ context.Context) ([]inventory.Vendor, error) {
	vendors := make([]inventory.Vendor, 0, len(v.m.vendors))
	for _, vn := range v.m.vendors {
		vendors = append(vendors, vn)
	}
	sort.Slice(vendors, func(i, j int) bool { return vendors[i].Name < vendors[j].Name })
	return vendors, nil
}

func (v *memoryView) SaveVendor(_ context.Context, vn inventory.Vendor) error {
	v.m.vendors[vn.ID] = vn
	return nil
}

func (v *memoryView) GetGroup(_ context.Context, kind inventory.GroupKind, id inventory.GroupID) (*inventory.TransactionGroup, error) {
	g, ok := v.m.groups[id]
	if !ok || g.Kind != kind {
		return nil, nil
	}
	return copyGroup(g), nil
}

func (v *memoryView) ListGroups(_ context.Context, kind inventory.GroupKind) ([]inventory.TransactionGroup, error) {
	var out []inventory.TransactionGroup
	for _, id := range v.m.groupOrder {
		g := v.m.groups[id]
		if g == nil || g.Kind != kind {
			continue
		}
		out = append(out, *copyGroup(g))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (v *memoryView) InsertGroup(_ context.Context, g *inventory.TransactionGroup) error {
	v.m.groups[g.ID] = copyGroup(g)
	v.m.groupOrder = append(v.m.groupOrder, g.ID)
	return nil
}

func (v *memoryView) UpdateGroupFields(_ context.Context, g *inventory.TransactionGroup) error {
	stored, ok := v.m.groups[g.ID]
	if !ok {
		return inventory.ErrGroupNotFound
	}
	stored.Date = g.Date
	stored.VendorID = g.VendorID
	return nil
}

func (v *memoryView) DeleteGroup(_ context.Context, kind inventory.GroupKind, id inventory.GroupID) error {
	g, ok := v.m.groups[id]
	if !ok || g.Kind != kind {
		return inventory.ErrGroupNotFound
	}
	delete(v.m.groups, id)
	for i, gid := range v.m.groupOrder {
		if gid == id {
			v.m.groupOrder = append(v.m.groupOrder[:i], v.m.groupOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (v *memoryView) InsertLine(_ context.Context, groupID inventory.GroupID, li inventory.LineItem) error {
	g, ok := v.m.groups[groupID]
	if !ok {
		return inventory.ErrGroupNotFound
	}
	g.Lines = append(g.Lines, li)
	return nil
}

func (v *memoryView) UpdateLine(_ context.Context, li inventory.LineItem) error {
	for _, g := range v.m.groups {
		for i := range g.Lines {
			if g.Lines[i].ID == li.ID {
				g.Lines[i] = li
				return nil
			}
		}
	}
	return inventory.ErrLineItemNotFound
}

func (v *memoryView) DeleteLine(_ context.Context, id inventory.LineItemID) error {
	for _, g := range v.m.groups {
		for i := range g.Lines {
			if g.Lines[i].ID == id {
				g.Lines = append(g.Lines[:i], g.Lines[i+1:]...)
				return nil
			}
		}
	}
	return inventory.ErrLineItemNotFound
}

func (v *memoryView) HasPurchaseOnOrBefore(_ context.Context, bookID inventory.BookID, date time.Time) (bool, error) {
	for _, g := range v.m.groups {
		if g.Kind != inventory.KindPurchase || g.Date.After(date) {
			continue
		}
		for _, li := range g.Lines {
			if li.BookID == bookID {
				return true, nil
			}
		}
	}
	return false, nil
}
