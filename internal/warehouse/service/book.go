package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/errors"
	"github.com/shopspring/decimal"
)

func newID() string {
	return uuid.New().String()
}

// stockBook is the only code path that changes stock quantities. Each post
// updates the item, lot and location projections and appends exactly one
// ledger entry, all inside the caller's transaction.
type stockBook struct {
	ctx     context.Context
	repos   domain.Repositories
	now     time.Time
	actorID string
	window  time.Duration

	docType *domain.DocumentType
	docID   *string
	docCode *string

	items     map[string]*domain.Item
	lots      map[string]*domain.Lot
	movements []*domain.StockMovement
}

func (s *WarehouseService) newBook(ctx context.Context, repos domain.Repositories, now time.Time, actorID string) *stockBook {
	return &stockBook{
		ctx:     ctx,
		repos:   repos,
		now:     now,
		actorID: actorID,
		window:  s.opts.NearExpiryWindow,
		items:   make(map[string]*domain.Item),
		lots:    make(map[string]*domain.Lot),
	}
}

func (b *stockBook) forDocument(t domain.DocumentType, id, code string) *stockBook {
	b.docType, b.docID, b.docCode = &t, &id, &code
	return b
}

// lockItems locks items in ascending ID order so concurrent approvals
// touching the same items always queue in the same order.
func (b *stockBook) lockItems(ids []string) error {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)

	for _, id := range unique {
		if _, err := b.item(id); err != nil {
			return err
		}
	}
	return nil
}

func (b *stockBook) item(id string) (*domain.Item, error) {
	if item, ok := b.items[id]; ok {
		return item, nil
	}
	item, err := b.repos.Items().GetForUpdate(b.ctx, id)
	if err != nil {
		return nil, err
	}
	b.items[id] = item
	return item, nil
}

func (b *stockBook) lot(id string) (*domain.Lot, error) {
	if lot, ok := b.lots[id]; ok {
		return lot, nil
	}
	lot, err := b.repos.Lots().GetForUpdate(b.ctx, id)
	if err != nil {
		return nil, err
	}
	b.lots[id] = lot
	return lot, nil
}

// posting is one signed quantity change. Lot and LocationID are set together
// for lot-tracked items and left empty otherwise.
type posting struct {
	Type       domain.MovementType
	Item       *domain.Item
	Lot        *domain.Lot
	LocationID string
	Delta      int64
	UnitCost   decimal.Decimal
	Reason     string
}

func (b *stockBook) post(p posting) (*domain.StockMovement, error) {
	item := p.Item
	before := item.TotalQuantity

	if item.IssuableQuantity+p.Delta < 0 {
		return nil, domain.InsufficientStock(item, -p.Delta, item.IssuableQuantity, nil)
	}

	var lotID, locationID *string
	if p.Lot != nil {
		if err := b.moveLot(p); err != nil {
			return nil, err
		}
		lotID, locationID = &p.Lot.ID, &p.LocationID
	}

	item.ApplyDelta(p.Delta)
	item.UpdatedAt = b.now
	if err := b.repos.Items().UpdateStock(b.ctx, item); err != nil {
		return nil, err
	}

	m := &domain.StockMovement{
		ID:             newID(),
		ItemID:         item.ID,
		LotID:          lotID,
		LocationID:     locationID,
		MovementType:   p.Type,
		QuantityBefore: before,
		QuantityDelta:  p.Delta,
		QuantityAfter:  item.TotalQuantity,
		UnitCost:       p.UnitCost.Round(domain.CostPlaces),
		DocumentType:   b.docType,
		DocumentID:     b.docID,
		DocumentCode:   b.docCode,
		ActorID:        b.actorID,
		CreatedAt:      b.now,
	}
	if p.Reason != "" {
		reason := p.Reason
		m.Reason = &reason
	}
	if err := b.repos.Movements().Append(b.ctx, m); err != nil {
		return nil, err
	}

	b.movements = append(b.movements, m)
	return m, nil
}

// moveLot applies the delta to the lot and to its row at the location.
func (b *stockBook) moveLot(p posting) error {
	lot := p.Lot
	if lot.CurrentQuantity+p.Delta < 0 {
		return domain.InsufficientStock(p.Item, -p.Delta, lot.CurrentQuantity, nil)
	}

	locations := b.repos.Locations()
	row, err := locations.GetStockForUpdate(b.ctx, p.Item.ID, lot.ID, p.LocationID)
	switch {
	case errors.Is(err, errors.ErrNotFound):
		row = &domain.LocationStock{ItemID: p.Item.ID, LotID: lot.ID, LocationID: p.LocationID}
	case err != nil:
		return err
	}
	if row.Quantity+p.Delta < 0 {
		return domain.InsufficientStock(p.Item, -p.Delta, row.Quantity, nil)
	}

	row.Quantity += p.Delta
	row.UpdatedAt = b.now
	if row.Quantity == 0 {
		err = locations.DeleteStock(b.ctx, row.ItemID, row.LotID, row.LocationID)
	} else {
		err = locations.SaveStock(b.ctx, row)
	}
	if err != nil {
		return err
	}

	loc, err := locations.GetForUpdate(b.ctx, p.LocationID)
	if err != nil {
		return err
	}
	loc.Occupy(p.Delta)
	loc.UpdatedAt = b.now
	if err := locations.UpdateOccupancy(b.ctx, loc); err != nil {
		return err
	}

	lot.CurrentQuantity += p.Delta
	if p.Type == domain.MovementReceipt || p.Type == domain.MovementUnapproveReceipt {
		lot.ReceivedQuantity += p.Delta
	}
	lot.Reclassify(b.now, b.window)
	lot.UpdatedAt = b.now
	return b.repos.Lots().Update(b.ctx, lot)
}

func (b *stockBook) lowStockItems() []*domain.Item {
	var low []*domain.Item
	for _, item := range b.items {
		if item.IsLowStock() {
			low = append(low, item)
		}
	}
	sort.Slice(low, func(i, j int) bool { return low[i].Code < low[j].Code })
	return low
}

// trackLot registers a lot loaded or created outside the book.
func (b *stockBook) trackLot(lot *domain.Lot) {
	b.lots[lot.ID] = lot
}
