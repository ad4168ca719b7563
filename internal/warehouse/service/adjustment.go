package service

import (
	"context"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/actor"
	"github.com/medflow/medflow-warehouse/pkg/errors"
	"github.com/medflow/medflow-warehouse/pkg/permissions"
	"github.com/medflow/medflow-warehouse/pkg/validation"
)

// AdjustStock applies a signed correction outside any document, e.g. after a
// stock count. Lot-tracked items are adjusted on one lot at one location.
func (s *WarehouseService) AdjustStock(ctx context.Context, req AdjustStockRequest) (*domain.StockMovement, error) {
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	by := actor.OrSystem(ctx)
	if !by.Can(permissions.StockAdjust) {
		return nil, errors.Forbidden("missing permission " + permissions.StockAdjust)
	}

	var (
		movement *domain.StockMovement
		low      bool
		item     *domain.Item
	)
	err := s.inTx(ctx, "adjust_stock", func(repos domain.Repositories) error {
		book := s.newBook(ctx, repos, s.clock.Now(), by.ID)
		if err := book.lockItems([]string{req.ItemID}); err != nil {
			return err
		}
		item = book.items[req.ItemID]

		p := posting{
			Type:     domain.MovementAdjustment,
			Item:     item,
			Delta:    req.Delta,
			UnitCost: item.AvgReceiptCost,
			Reason:   req.Reason,
		}

		problems := domain.FieldErrors{}
		if item.TracksLots {
			if req.LotID == "" {
				problems.Add("lot_id", "required for lot-tracked item "+item.Code)
			}
			if req.LocationID == "" {
				problems.Add("location_id", "required for lot-tracked item "+item.Code)
			}
			if err := problems.Err(); err != nil {
				return err
			}

			lot, err := book.lot(req.LotID)
			if errors.Is(err, errors.ErrNotFound) {
				problems.Add("lot_id", "lot not found")
			} else if err != nil {
				return err
			} else if lot.ItemID != item.ID {
				problems.Add("lot_id", "lot "+lot.LotNumber+" belongs to another item")
			}
			if _, err := repos.Locations().Get(ctx, req.LocationID); errors.Is(err, errors.ErrNotFound) {
				problems.Add("location_id", "location not found")
			} else if err != nil {
				return err
			}
			if err := problems.Err(); err != nil {
				return err
			}

			p.Lot = lot
			p.LocationID = req.LocationID
			p.UnitCost = lot.ReceiptCost
		} else {
			if req.LotID != "" {
				problems.Add("lot_id", "item "+item.Code+" does not track lots")
			}
			if req.LocationID != "" {
				problems.Add("location_id", "item "+item.Code+" is not stocked by location")
			}
			if err := problems.Err(); err != nil {
				return err
			}
		}

		var err error
		movement, err = book.post(p)
		if err != nil {
			return err
		}
		low = item.IsLowStock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithActor(by.ID).Info().
		Str("item_code", item.Code).
		Int64("delta", req.Delta).
		Str("reason", req.Reason).
		Msg("stock adjusted")
	s.events.StockAdjusted(ctx, movement)
	if low {
		s.events.LowStock(ctx, item)
	}
	return movement, nil
}
