package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/database"
)

const locationColumns = `id, warehouse_id, code, name, capacity, occupied, status, created_at, updated_at`

const stockColumns = `s.item_id, s.lot_id, s.location_id, l.warehouse_id, s.quantity, s.updated_at`

// LocationRepository handles locations and the per-location stock rows
type LocationRepository struct {
	q sqlx.ExtContext
}

// Get gets a location by ID
func (r *LocationRepository) Get(ctx context.Context, id string) (*domain.Location, error) {
	var loc domain.Location
	if err := getOne(ctx, r.q, &loc, "location", `SELECT `+locationColumns+` FROM locations WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &loc, nil
}

// GetForUpdate gets a location and locks its row
func (r *LocationRepository) GetForUpdate(ctx context.Context, id string) (*domain.Location, error) {
	var loc domain.Location
	if err := getOne(ctx, r.q, &loc, "location", `SELECT `+locationColumns+` FROM locations WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &loc, nil
}

// Create creates a new location
func (r *LocationRepository) Create(ctx context.Context, loc *domain.Location) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO locations (id, warehouse_id, code, name, capacity, occupied, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, loc.ID, loc.WarehouseID, loc.Code, loc.Name, loc.Capacity, loc.Occupied, loc.Status, loc.CreatedAt, loc.UpdatedAt)
	return database.MapError(err)
}

// Upsert writes reference data. Occupancy is kept and the status is
// recomputed against the new capacity.
func (r *LocationRepository) Upsert(ctx context.Context, loc *domain.Location) error {
	query := `
		INSERT INTO locations (id, warehouse_id, code, name, capacity, occupied, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 'EMPTY', $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			warehouse_id = EXCLUDED.warehouse_id,
			code = EXCLUDED.code,
			name = EXCLUDED.name,
			capacity = EXCLUDED.capacity,
			status = CASE
				WHEN locations.occupied <= 0 THEN 'EMPTY'
				WHEN EXCLUDED.capacity > 0 AND locations.occupied >= EXCLUDED.capacity THEN 'FULL'
				ELSE 'PARTIAL'
			END,
			updated_at = EXCLUDED.updated_at
		RETURNING occupied, status, created_at
	`
	err := r.q.QueryRowxContext(ctx, query,
		loc.ID, loc.WarehouseID, loc.Code, loc.Name, loc.Capacity, loc.CreatedAt, loc.UpdatedAt,
	).Scan(&loc.Occupied, &loc.Status, &loc.CreatedAt)
	return database.MapError(err)
}

// UpdateOccupancy writes the occupied quantity and status
func (r *LocationRepository) UpdateOccupancy(ctx context.Context, loc *domain.Location) error {
	return execOne(ctx, r.q, "location", `
		UPDATE locations SET occupied = $2, status = $3, updated_at = $4 WHERE id = $1
	`, loc.ID, loc.Occupied, loc.Status, loc.UpdatedAt)
}

// ListStockByItem lists where an item's lots are held
func (r *LocationRepository) ListStockByItem(ctx context.Context, itemID string) ([]*domain.LocationStock, error) {
	var rows []*domain.LocationStock
	err := selectAll(ctx, r.q, &rows, `
		SELECT `+stockColumns+`
		FROM location_stock s
		JOIN locations l ON l.id = s.location_id
		WHERE s.item_id = $1
		ORDER BY s.lot_id, s.location_id
	`, itemID)
	return rows, err
}

// ListStockByItemForUpdate lists and locks an item's stock rows
func (r *LocationRepository) ListStockByItemForUpdate(ctx context.Context, itemID string) ([]*domain.LocationStock, error) {
	var rows []*domain.LocationStock
	err := selectAll(ctx, r.q, &rows, `
		SELECT `+stockColumns+`
		FROM location_stock s
		JOIN locations l ON l.id = s.location_id
		WHERE s.item_id = $1
		ORDER BY s.lot_id, s.location_id
		FOR UPDATE OF s
	`, itemID)
	return rows, err
}

// GetStockForUpdate gets and locks one stock row
func (r *LocationRepository) GetStockForUpdate(ctx context.Context, itemID, lotID, locationID string) (*domain.LocationStock, error) {
	var row domain.LocationStock
	err := getOne(ctx, r.q, &row, "location stock", `
		SELECT `+stockColumns+`
		FROM location_stock s
		JOIN locations l ON l.id = s.location_id
		WHERE s.item_id = $1 AND s.lot_id = $2 AND s.location_id = $3
		FOR UPDATE OF s
	`, itemID, lotID, locationID)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// SaveStock inserts or overwrites a stock row
func (r *LocationRepository) SaveStock(ctx context.Context, row *domain.LocationStock) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO location_stock (item_id, lot_id, location_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, lot_id, location_id) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			updated_at = EXCLUDED.updated_at
	`, row.ItemID, row.LotID, row.LocationID, row.Quantity, row.UpdatedAt)
	return database.MapError(err)
}

// DeleteStock removes an emptied stock row
func (r *LocationRepository) DeleteStock(ctx context.Context, itemID, lotID, locationID string) error {
	_, err := r.q.ExecContext(ctx, `
		DELETE FROM location_stock WHERE item_id = $1 AND lot_id = $2 AND location_id = $3
	`, itemID, lotID, locationID)
	return database.MapError(err)
}
