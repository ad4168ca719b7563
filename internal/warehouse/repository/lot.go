package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/database"
)

const lotColumns = `id, seq, item_id, lot_number, manufacture_date, expiry_date,
	received_quantity, current_quantity, receipt_cost, status, created_at, updated_at`

// LotRepository handles lot persistence
type LotRepository struct {
	q sqlx.ExtContext
}

// Get gets a lot by ID
func (r *LotRepository) Get(ctx context.Context, id string) (*domain.Lot, error) {
	var lot domain.Lot
	if err := getOne(ctx, r.q, &lot, "lot", `SELECT `+lotColumns+` FROM lots WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &lot, nil
}

// GetForUpdate gets a lot and locks its row
func (r *LotRepository) GetForUpdate(ctx context.Context, id string) (*domain.Lot, error) {
	var lot domain.Lot
	if err := getOne(ctx, r.q, &lot, "lot", `SELECT `+lotColumns+` FROM lots WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &lot, nil
}

// FindByNumberForUpdate finds an item's lot by its number and locks it
func (r *LotRepository) FindByNumberForUpdate(ctx context.Context, itemID, lotNumber string) (*domain.Lot, error) {
	var lot domain.Lot
	err := getOne(ctx, r.q, &lot, "lot", `
		SELECT `+lotColumns+` FROM lots
		WHERE item_id = $1 AND lot_number = $2
		FOR UPDATE
	`, itemID, lotNumber)
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

// ListByItem lists an item's lots in creation order
func (r *LotRepository) ListByItem(ctx context.Context, itemID string) ([]*domain.Lot, error) {
	var lots []*domain.Lot
	err := selectAll(ctx, r.q, &lots, `SELECT `+lotColumns+` FROM lots WHERE item_id = $1 ORDER BY seq`, itemID)
	return lots, err
}

// ListNearExpiry lists stocked lots expiring on or before cutoff, soonest first
func (r *LotRepository) ListNearExpiry(ctx context.Context, cutoff time.Time) ([]*domain.Lot, error) {
	var lots []*domain.Lot
	err := selectAll(ctx, r.q, &lots, `
		SELECT `+lotColumns+` FROM lots
		WHERE current_quantity > 0 AND expiry_date IS NOT NULL AND expiry_date <= $1
		ORDER BY expiry_date, seq
	`, cutoff)
	return lots, err
}

// ListInStock lists lots that still hold stock
func (r *LotRepository) ListInStock(ctx context.Context) ([]*domain.Lot, error) {
	var lots []*domain.Lot
	err := selectAll(ctx, r.q, &lots, `SELECT `+lotColumns+` FROM lots WHERE current_quantity > 0 ORDER BY seq`)
	return lots, err
}

// Create creates a new lot and assigns its sequence number
func (r *LotRepository) Create(ctx context.Context, lot *domain.Lot) error {
	query := `
		INSERT INTO lots (
			id, item_id, lot_number, manufacture_date, expiry_date,
			received_quantity, current_quantity, receipt_cost, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING seq
	`
	err := r.q.QueryRowxContext(ctx, query,
		lot.ID, lot.ItemID, lot.LotNumber, lot.ManufactureDate, lot.ExpiryDate,
		lot.ReceivedQuantity, lot.CurrentQuantity, lot.ReceiptCost, lot.Status, lot.CreatedAt, lot.UpdatedAt,
	).Scan(&lot.Seq)
	return database.MapError(err)
}

// Update writes a lot's quantities, cost, expiry and status
func (r *LotRepository) Update(ctx context.Context, lot *domain.Lot) error {
	return execOne(ctx, r.q, "lot", `
		UPDATE lots SET
			manufacture_date = $2, expiry_date = $3, received_quantity = $4, current_quantity = $5,
			receipt_cost = $6, status = $7, updated_at = $8
		WHERE id = $1
	`, lot.ID, lot.ManufactureDate, lot.ExpiryDate, lot.ReceivedQuantity, lot.CurrentQuantity,
		lot.ReceiptCost, lot.Status, lot.UpdatedAt)
}
