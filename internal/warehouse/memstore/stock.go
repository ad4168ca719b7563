package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/errors"
)

// ---------------------------------------------------------------- items

type itemRepo struct{ v *view }

func (r *itemRepo) Get(ctx context.Context, id string) (*domain.Item, error) {
	var out *domain.Item
	err := r.v.read(func(st *state) error {
		item, ok := st.items[id]
		if !ok {
			return errors.NotFound("item")
		}
		out = &item
		return nil
	})
	return out, err
}

func (r *itemRepo) GetForUpdate(ctx context.Context, id string) (*domain.Item, error) {
	return r.Get(ctx, id)
}

func (r *itemRepo) List(ctx context.Context) ([]*domain.Item, error) {
	return r.filter(func(*domain.Item) bool { return true })
}

func (r *itemRepo) ListLowStock(ctx context.Context) ([]*domain.Item, error) {
	return r.filter((*domain.Item).IsLowStock)
}

func (r *itemRepo) filter(keep func(*domain.Item) bool) ([]*domain.Item, error) {
	var out []*domain.Item
	err := r.v.read(func(st *state) error {
		for _, item := range st.items {
			item := item
			if keep(&item) {
				out = append(out, &item)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, err
}

func (r *itemRepo) Create(ctx context.Context, item *domain.Item) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.items[item.ID]; ok {
			return errors.Conflict("an item with this id already exists")
		}
		for _, existing := range st.items {
			if existing.Code == item.Code {
				return errors.Conflict("an item with this code already exists")
			}
		}
		st.items[item.ID] = *item
		return nil
	})
}

func (r *itemRepo) UpdateDefinition(ctx context.Context, item *domain.Item) error {
	return r.v.write(func(st *state) error {
		stored, ok := st.items[item.ID]
		if !ok {
			return errors.NotFound("item")
		}
		for id, existing := range st.items {
			if id != item.ID && existing.Code == item.Code {
				return errors.Conflict("an item with this code already exists")
			}
		}
		stored.Code = item.Code
		stored.Name = item.Name
		stored.Unit = item.Unit
		stored.TracksLots = item.TracksLots
		stored.HasExpiry = item.HasExpiry
		stored.MinQuantity = item.MinQuantity
		stored.MaxQuantity = item.MaxQuantity
		stored.UpdatedAt = item.UpdatedAt
		st.items[item.ID] = stored
		return nil
	})
}

func (r *itemRepo) UpdateStock(ctx context.Context, item *domain.Item) error {
	return r.v.write(func(st *state) error {
		stored, ok := st.items[item.ID]
		if !ok {
			return errors.NotFound("item")
		}
		if stored.Version != item.Version {
			return errors.IntegrityConflict("item " + item.Code + " was modified concurrently")
		}
		if item.TotalQuantity < 0 || item.IssuableQuantity < 0 {
			return errors.IntegrityConflict("stock quantity constraint violated for item " + item.Code)
		}
		stored.TotalQuantity = item.TotalQuantity
		stored.IssuableQuantity = item.IssuableQuantity
		stored.ReservedQuantity = item.ReservedQuantity
		stored.AvgReceiptCost = item.AvgReceiptCost
		stored.UpdatedAt = item.UpdatedAt
		stored.Version++
		st.items[item.ID] = stored
		item.Version = stored.Version
		return nil
	})
}

// ---------------------------------------------------------------- lots

type lotRepo struct{ v *view }

func (r *lotRepo) Get(ctx context.Context, id string) (*domain.Lot, error) {
	var out *domain.Lot
	err := r.v.read(func(st *state) error {
		lot, ok := st.lots[id]
		if !ok {
			return errors.NotFound("lot")
		}
		out = &lot
		return nil
	})
	return out, err
}

func (r *lotRepo) GetForUpdate(ctx context.Context, id string) (*domain.Lot, error) {
	return r.Get(ctx, id)
}

func (r *lotRepo) FindByNumberForUpdate(ctx context.Context, itemID, lotNumber string) (*domain.Lot, error) {
	var out *domain.Lot
	err := r.v.read(func(st *state) error {
		for _, lot := range st.lots {
			if lot.ItemID == itemID && lot.LotNumber == lotNumber {
				lot := lot
				out = &lot
				return nil
			}
		}
		return errors.NotFound("lot")
	})
	return out, err
}

func (r *lotRepo) ListByItem(ctx context.Context, itemID string) ([]*domain.Lot, error) {
	return r.filter(func(l *domain.Lot) bool { return l.ItemID == itemID }, bySeq)
}

func (r *lotRepo) ListNearExpiry(ctx context.Context, cutoff time.Time) ([]*domain.Lot, error) {
	return r.filter(func(l *domain.Lot) bool { return l.ExpiresWithin(cutoff) }, byExpiry)
}

func (r *lotRepo) ListInStock(ctx context.Context) ([]*domain.Lot, error) {
	return r.filter(func(l *domain.Lot) bool { return l.CurrentQuantity > 0 }, bySeq)
}

func bySeq(a, b *domain.Lot) bool { return a.Seq < b.Seq }

func byExpiry(a, b *domain.Lot) bool {
	if !a.ExpiryDate.Equal(*b.ExpiryDate) {
		return a.ExpiryDate.Before(*b.ExpiryDate)
	}
	return a.Seq < b.Seq
}

func (r *lotRepo) filter(keep func(*domain.Lot) bool, less func(a, b *domain.Lot) bool) ([]*domain.Lot, error) {
	var out []*domain.Lot
	err := r.v.read(func(st *state) error {
		for _, lot := range st.lots {
			lot := lot
			if keep(&lot) {
				out = append(out, &lot)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, err
}

func (r *lotRepo) Create(ctx context.Context, lot *domain.Lot) error {
	return r.v.write(func(st *state) error {
		for _, existing := range st.lots {
			if existing.ItemID == lot.ItemID && existing.LotNumber == lot.LotNumber {
				return errors.Conflict("this lot number is already registered for the item")
			}
		}
		st.lotSeq++
		lot.Seq = st.lotSeq
		st.lots[lot.ID] = *lot
		return nil
	})
}

func (r *lotRepo) Update(ctx context.Context, lot *domain.Lot) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.lots[lot.ID]; !ok {
			return errors.NotFound("lot")
		}
		if lot.CurrentQuantity < 0 {
			return errors.IntegrityConflict("stock quantity constraint violated for lot " + lot.LotNumber)
		}
		st.lots[lot.ID] = *lot
		return nil
	})
}

// ---------------------------------------------------------------- locations

type locationRepo struct{ v *view }

func (r *locationRepo) Get(ctx context.Context, id string) (*domain.Location, error) {
	var out *domain.Location
	err := r.v.read(func(st *state) error {
		loc, ok := st.locations[id]
		if !ok {
			return errors.NotFound("location")
		}
		out = &loc
		return nil
	})
	return out, err
}

func (r *locationRepo) GetForUpdate(ctx context.Context, id string) (*domain.Location, error) {
	return r.Get(ctx, id)
}

func (r *locationRepo) Create(ctx context.Context, loc *domain.Location) error {
	return r.v.write(func(st *state) error {
		if _, ok := st.locations[loc.ID]; ok {
			return errors.Conflict("a location with this id already exists")
		}
		for _, existing := range st.locations {
			if existing.Code == loc.Code {
				return errors.Conflict("a location with this code already exists")
			}
		}
		st.locations[loc.ID] = *loc
		return nil
	})
}

func (r *locationRepo) Upsert(ctx context.Context, loc *domain.Location) error {
	return r.v.write(func(st *state) error {
		for id, existing := range st.locations {
			if id != loc.ID && existing.Code == loc.Code {
				return errors.Conflict("a location with this code already exists")
			}
		}
		if stored, ok := st.locations[loc.ID]; ok {
			// occupancy belongs to the stock map, not to reference data
			loc.Occupied = stored.Occupied
			loc.CreatedAt = stored.CreatedAt
		}
		loc.Status = domain.OccupancyFor(loc.Occupied, loc.Capacity)
		st.locations[loc.ID] = *loc
		return nil
	})
}

func (r *locationRepo) UpdateOccupancy(ctx context.Context, loc *domain.Location) error {
	return r.v.write(func(st *state) error {
		stored, ok := st.locations[loc.ID]
		if !ok {
			return errors.NotFound("location")
		}
		if loc.Occupied < 0 {
			return errors.IntegrityConflict("stock quantity constraint violated for location " + loc.Code)
		}
		stored.Occupied = loc.Occupied
		stored.Status = loc.Status
		stored.UpdatedAt = loc.UpdatedAt
		st.locations[loc.ID] = stored
		return nil
	})
}

func (r *locationRepo) ListStockByItem(ctx context.Context, itemID string) ([]*domain.LocationStock, error) {
	var out []*domain.LocationStock
	err := r.v.read(func(st *state) error {
		for key, row := range st.stock {
			if key.itemID != itemID {
				continue
			}
			row := row
			row.WarehouseID = st.locations[key.locationID].WarehouseID
			out = append(out, &row)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].LotID != out[j].LotID {
			return out[i].LotID < out[j].LotID
		}
		return out[i].LocationID < out[j].LocationID
	})
	return out, err
}

func (r *locationRepo) ListStockByItemForUpdate(ctx context.Context, itemID string) ([]*domain.LocationStock, error) {
	return r.ListStockByItem(ctx, itemID)
}

func (r *locationRepo) GetStockForUpdate(ctx context.Context, itemID, lotID, locationID string) (*domain.LocationStock, error) {
	var out *domain.LocationStock
	err := r.v.read(func(st *state) error {
		row, ok := st.stock[stockKey{itemID, lotID, locationID}]
		if !ok {
			return errors.NotFound("location stock")
		}
		row.WarehouseID = st.locations[locationID].WarehouseID
		out = &row
		return nil
	})
	return out, err
}

func (r *locationRepo) SaveStock(ctx context.Context, row *domain.LocationStock) error {
	return r.v.write(func(st *state) error {
		if row.Quantity <= 0 {
			return errors.IntegrityConflict("location stock rows must hold a positive quantity")
		}
		if _, ok := st.locations[row.LocationID]; !ok {
			return errors.NotFound("location")
		}
		st.stock[stockKey{row.ItemID, row.LotID, row.LocationID}] = *row
		return nil
	})
}

func (r *locationRepo) DeleteStock(ctx context.Context, itemID, lotID, locationID string) error {
	return r.v.write(func(st *state) error {
		delete(st.stock, stockKey{itemID, lotID, locationID})
		return nil
	})
}
