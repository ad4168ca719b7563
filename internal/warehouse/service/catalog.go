package service

import (
	"context"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/errors"
	"github.com/medflow/medflow-warehouse/pkg/validation"
)

// UpsertItemDefinition creates an item or refreshes its catalog fields.
// Stock quantities and cost are never touched.
func (s *WarehouseService) UpsertItemDefinition(ctx context.Context, def domain.ItemDefinition) (*domain.Item, error) {
	if err := validation.Struct(def); err != nil {
		return nil, err
	}
	if def.MaxQuantity > 0 && def.MaxQuantity < def.MinQuantity {
		return nil, errors.Validation(map[string]string{"max_quantity": "must not be below min_quantity"})
	}

	var item *domain.Item
	err := s.inTx(ctx, "upsert_item", func(repos domain.Repositories) error {
		now := s.clock.Now()
		existing, err := repos.Items().GetForUpdate(ctx, def.ID)
		switch {
		case errors.Is(err, errors.ErrNotFound):
			item = domain.NewItem(def, now)
			return repos.Items().Create(ctx, item)
		case err != nil:
			return err
		}

		if existing.TracksLots != def.TracksLots && existing.TotalQuantity > 0 {
			return errors.Conflict("item " + existing.Code + " holds stock; lot tracking cannot be changed")
		}
		existing.ApplyDefinition(def, now)
		item = existing
		return repos.Items().UpdateDefinition(ctx, item)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("item_id", item.ID).Str("item_code", item.Code).Msg("item definition upserted")
	return item, nil
}

// UpsertLocation creates a location or refreshes its reference data.
// Occupancy is owned by the stock map and kept as is.
func (s *WarehouseService) UpsertLocation(ctx context.Context, req LocationRequest) (*domain.Location, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var loc *domain.Location
	err := s.inTx(ctx, "upsert_location", func(repos domain.Repositories) error {
		now := s.clock.Now()
		existing, err := repos.Locations().GetForUpdate(ctx, req.ID)
		switch {
		case errors.Is(err, errors.ErrNotFound):
			loc = &domain.Location{
				ID:          req.ID,
				WarehouseID: req.WarehouseID,
				Code:        req.Code,
				Name:        req.Name,
				Capacity:    req.Capacity,
				Status:      domain.OccupancyEmpty,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			return repos.Locations().Create(ctx, loc)
		case err != nil:
			return err
		}

		if existing.WarehouseID != req.WarehouseID && existing.Occupied > 0 {
			return errors.Conflict("location " + existing.Code + " holds stock; it cannot move to another warehouse")
		}
		existing.WarehouseID = req.WarehouseID
		existing.Code = req.Code
		existing.Name = req.Name
		existing.Capacity = req.Capacity
		existing.UpdatedAt = now
		loc = existing
		return repos.Locations().Upsert(ctx, loc)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug().Str("location_id", loc.ID).Str("location_code", loc.Code).Msg("location upserted")
	return loc, nil
}
