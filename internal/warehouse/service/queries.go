package service

import (
	"context"
	"time"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/errors"
)

// GetItem returns an item with its stock projection.
func (s *WarehouseService) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return s.scope.Read().Items().Get(ctx, id)
}

// ListItems returns every item ordered by code.
func (s *WarehouseService) ListItems(ctx context.Context) ([]*domain.Item, error) {
	return s.scope.Read().Items().List(ctx)
}

// ListLots returns the lots of an item in creation order.
func (s *WarehouseService) ListLots(ctx context.Context, itemID string) ([]*domain.Lot, error) {
	repos := s.scope.Read()
	if _, err := repos.Items().Get(ctx, itemID); err != nil {
		return nil, err
	}
	return repos.Lots().ListByItem(ctx, itemID)
}

// ListLocationStock returns where an item's lots are physically held.
func (s *WarehouseService) ListLocationStock(ctx context.Context, itemID string) ([]*domain.LocationStock, error) {
	repos := s.scope.Read()
	if _, err := repos.Items().Get(ctx, itemID); err != nil {
		return nil, err
	}
	return repos.Locations().ListStockByItem(ctx, itemID)
}

// GetLocation returns a location with its occupancy.
func (s *WarehouseService) GetLocation(ctx context.Context, id string) (*domain.Location, error) {
	return s.scope.Read().Locations().Get(ctx, id)
}

// QueryStockMovements returns an item's ledger in order. Nil bounds are open.
func (s *WarehouseService) QueryStockMovements(ctx context.Context, itemID string, from, to *time.Time) ([]*domain.StockMovement, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, errors.BadRequest("from must not be after to")
	}
	repos := s.scope.Read()
	if _, err := repos.Items().Get(ctx, itemID); err != nil {
		return nil, err
	}
	return repos.Movements().ListByItem(ctx, itemID, from, to)
}

// QueryLotsNearExpiry returns lots still holding stock that expire within
// days from now, earliest expiry first. Already expired lots are included.
func (s *WarehouseService) QueryLotsNearExpiry(ctx context.Context, days int) ([]*domain.Lot, error) {
	if days < 0 {
		return nil, errors.Validation(map[string]string{"days": "must be greater than or equal to 0"})
	}
	cutoff := s.clock.Now().AddDate(0, 0, days)
	return s.scope.Read().Lots().ListNearExpiry(ctx, cutoff)
}

// QueryLowStockItems returns items whose issuable quantity is below their minimum.
func (s *WarehouseService) QueryLowStockItems(ctx context.Context) ([]*domain.Item, error) {
	return s.scope.Read().Items().ListLowStock(ctx)
}

// DocumentNotes returns the audit trail of a document.
func (s *WarehouseService) DocumentNotes(ctx context.Context, documentID string) ([]*domain.DocumentNote, error) {
	return s.scope.Read().Notes().ListByDocument(ctx, documentID)
}

// ReconcileItem replays an item's ledger and compares it with the stored
// item, lot and location projections. The item is locked while reading so
// the comparison sees one consistent state.
func (s *WarehouseService) ReconcileItem(ctx context.Context, itemID string) (*domain.Reconciliation, error) {
	var result *domain.Reconciliation
	err := s.scope.Execute(ctx, func(repos domain.Repositories) error {
		item, err := repos.Items().GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		movements, err := repos.Movements().ListByItem(ctx, itemID, nil, nil)
		if err != nil {
			return err
		}
		lots, err := repos.Lots().ListByItem(ctx, itemID)
		if err != nil {
			return err
		}
		stock, err := repos.Locations().ListStockByItem(ctx, itemID)
		if err != nil {
			return err
		}

		result = domain.Replay(itemID, movements)
		result.Compare(item, lots, stock)
		if !result.Consistent {
			s.logger.Error().
				Str("item_id", item.ID).
				Str("item_code", item.Code).
				Int64("ledger_total", result.LedgerTotal).
				Int64("projected_total", result.ProjectedTotal).
				Bool("chain_broken", result.ChainBroken).
				Msg("stock projection does not match ledger")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
