package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/database"
	"github.com/medflow/medflow-warehouse/pkg/errors"
)

const itemColumns = `id, code, name, unit, tracks_lots, has_expiry,
	total_quantity, issuable_quantity, reserved_quantity, min_quantity, max_quantity,
	avg_receipt_cost, version, created_at, updated_at`

// ItemRepository handles item persistence
type ItemRepository struct {
	q sqlx.ExtContext
}

// Get gets an item by ID
func (r *ItemRepository) Get(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	if err := getOne(ctx, r.q, &item, "item", `SELECT `+itemColumns+` FROM items WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetForUpdate gets an item and locks its row
func (r *ItemRepository) GetForUpdate(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	if err := getOne(ctx, r.q, &item, "item", `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &item, nil
}

// List lists all items ordered by code
func (r *ItemRepository) List(ctx context.Context) ([]*domain.Item, error) {
	var items []*domain.Item
	err := selectAll(ctx, r.q, &items, `SELECT `+itemColumns+` FROM items ORDER BY code`)
	return items, err
}

// ListLowStock lists items whose issuable quantity is below their minimum
func (r *ItemRepository) ListLowStock(ctx context.Context) ([]*domain.Item, error) {
	var items []*domain.Item
	err := selectAll(ctx, r.q, &items, `
		SELECT `+itemColumns+` FROM items
		WHERE issuable_quantity < min_quantity
		ORDER BY code
	`)
	return items, err
}

// Create creates a new item
func (r *ItemRepository) Create(ctx context.Context, item *domain.Item) error {
	query := `
		INSERT INTO items (
			id, code, name, unit, tracks_lots, has_expiry,
			total_quantity, issuable_quantity, reserved_quantity, min_quantity, max_quantity,
			avg_receipt_cost, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.q.ExecContext(ctx, query,
		item.ID, item.Code, item.Name, item.Unit, item.TracksLots, item.HasExpiry,
		item.TotalQuantity, item.IssuableQuantity, item.ReservedQuantity, item.MinQuantity, item.MaxQuantity,
		item.AvgReceiptCost, item.Version, item.CreatedAt, item.UpdatedAt,
	)
	return database.MapError(err)
}

// UpdateDefinition updates the catalog fields of an item
func (r *ItemRepository) UpdateDefinition(ctx context.Context, item *domain.Item) error {
	return execOne(ctx, r.q, "item", `
		UPDATE items SET
			code = $2, name = $3, unit = $4, tracks_lots = $5, has_expiry = $6,
			min_quantity = $7, max_quantity = $8, updated_at = $9
		WHERE id = $1
	`, item.ID, item.Code, item.Name, item.Unit, item.TracksLots, item.HasExpiry,
		item.MinQuantity, item.MaxQuantity, item.UpdatedAt)
}

// UpdateStock writes the stock projection when the version still matches
func (r *ItemRepository) UpdateStock(ctx context.Context, item *domain.Item) error {
	query := `
		UPDATE items SET
			total_quantity = $3, issuable_quantity = $4, reserved_quantity = $5,
			avg_receipt_cost = $6, updated_at = $7, version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING version
	`
	var version int64
	err := r.q.QueryRowxContext(ctx, query,
		item.ID, item.Version, item.TotalQuantity, item.IssuableQuantity, item.ReservedQuantity,
		item.AvgReceiptCost, item.UpdatedAt,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.IntegrityConflict("item " + item.Code + " was modified concurrently")
	}
	if err != nil {
		return database.MapError(err)
	}

	item.Version = version
	return nil
}
