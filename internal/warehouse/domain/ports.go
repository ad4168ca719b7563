package domain

import (
	"context"
	"time"
)

// Clock supplies the current time. Ledger order depends on it being monotonic.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Sequencer hands out gap-tolerant, strictly increasing daily counters.
type Sequencer interface {
	Next(ctx context.Context, prefix string, day time.Time) (int64, error)
}

// ItemRepository persists items and their stock projection.
type ItemRepository interface {
	Get(ctx context.Context, id string) (*Item, error)
	GetForUpdate(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context) ([]*Item, error)
	ListLowStock(ctx context.Context) ([]*Item, error)
	Create(ctx context.Context, item *Item) error
	// UpdateDefinition writes catalog fields only.
	UpdateDefinition(ctx context.Context, item *Item) error
	// UpdateStock writes quantities and cost when item.Version still matches,
	// then bumps the version. A mismatch is an IntegrityConflict.
	UpdateStock(ctx context.Context, item *Item) error
}

// LotRepository persists lots.
type LotRepository interface {
	Get(ctx context.Context, id string) (*Lot, error)
	GetForUpdate(ctx context.Context, id string) (*Lot, error)
	// FindByNumberForUpdate returns a NotFound error when the lot does not exist.
	FindByNumberForUpdate(ctx context.Context, itemID, lotNumber string) (*Lot, error)
	ListByItem(ctx context.Context, itemID string) ([]*Lot, error)
	ListNearExpiry(ctx context.Context, cutoff time.Time) ([]*Lot, error)
	ListInStock(ctx context.Context) ([]*Lot, error)
	Create(ctx context.Context, lot *Lot) error
	Update(ctx context.Context, lot *Lot) error
}

// LocationRepository persists locations and the per-location stock rows.
type LocationRepository interface {
	Get(ctx context.Context, id string) (*Location, error)
	GetForUpdate(ctx context.Context, id string) (*Location, error)
	Create(ctx context.Context, loc *Location) error
	Upsert(ctx context.Context, loc *Location) error
	UpdateOccupancy(ctx context.Context, loc *Location) error

	ListStockByItem(ctx context.Context, itemID string) ([]*LocationStock, error)
	ListStockByItemForUpdate(ctx context.Context, itemID string) ([]*LocationStock, error)
	// GetStockForUpdate returns a NotFound error when no row exists.
	GetStockForUpdate(ctx context.Context, itemID, lotID, locationID string) (*LocationStock, error)
	SaveStock(ctx context.Context, row *LocationStock) error
	DeleteStock(ctx context.Context, itemID, lotID, locationID string) error
}

// ReceiptRepository persists receipt documents with their lines.
type ReceiptRepository interface {
	Create(ctx context.Context, doc *ReceiptDocument) error
	Get(ctx context.Context, id string) (*ReceiptDocument, error)
	GetForUpdate(ctx context.Context, id string) (*ReceiptDocument, error)
	// Update writes the header status fields and each line's lot reference.
	Update(ctx context.Context, doc *ReceiptDocument) error
}

// IssuanceRepository persists issuance documents with lines and allocations.
type IssuanceRepository interface {
	Create(ctx context.Context, doc *IssuanceDocument) error
	Get(ctx context.Context, id string) (*IssuanceDocument, error)
	GetForUpdate(ctx context.Context, id string) (*IssuanceDocument, error)
	// Update writes the header, line costs and issued quantities, and
	// replaces the allocation set.
	Update(ctx context.Context, doc *IssuanceDocument) error
}

// MovementRepository is the append-only stock ledger.
type MovementRepository interface {
	Append(ctx context.Context, m *StockMovement) error
	// ListByItem returns movements in ledger order; nil bounds are open.
	ListByItem(ctx context.Context, itemID string, from, to *time.Time) ([]*StockMovement, error)
	ListByDocument(ctx context.Context, documentID string) ([]*StockMovement, error)
}

// NoteRepository is the append-only document audit trail.
type NoteRepository interface {
	Append(ctx context.Context, n *DocumentNote) error
	ListByDocument(ctx context.Context, documentID string) ([]*DocumentNote, error)
}

// Repositories bundles the repositories bound to one unit of work.
type Repositories interface {
	Items() ItemRepository
	Lots() LotRepository
	Locations() LocationRepository
	Receipts() ReceiptRepository
	Issuances() IssuanceRepository
	Movements() MovementRepository
	Notes() NoteRepository
}

// TransactionScope runs fn atomically: every change made through repos is
// committed together or not at all.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos Repositories) error) error
	// Read returns repositories for queries outside a transaction.
	Read() Repositories
}
