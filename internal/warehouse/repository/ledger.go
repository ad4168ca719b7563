package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/database"
)

const movementColumns = `id, seq, item_id, lot_id, location_id, movement_type,
	quantity_before, quantity_delta, quantity_after, unit_cost,
	document_type, document_id, document_code, reason, actor_id, created_at`

// MovementRepository is the append-only stock ledger. Updates and deletes
// are rejected by a trigger.
type MovementRepository struct {
	q sqlx.ExtContext
}

// Append inserts a movement and assigns its sequence number
func (r *MovementRepository) Append(ctx context.Context, m *domain.StockMovement) error {
	query := `
		INSERT INTO stock_movements (
			id, item_id, lot_id, location_id, movement_type,
			quantity_before, quantity_delta, quantity_after, unit_cost,
			document_type, document_id, document_code, reason, actor_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING seq
	`
	err := r.q.QueryRowxContext(ctx, query,
		m.ID, m.ItemID, m.LotID, m.LocationID, m.MovementType,
		m.QuantityBefore, m.QuantityDelta, m.QuantityAfter, m.UnitCost,
		m.DocumentType, m.DocumentID, m.DocumentCode, m.Reason, m.ActorID, m.CreatedAt,
	).Scan(&m.Seq)
	return database.MapError(err)
}

// ListByItem lists an item's movements in ledger order. Nil bounds are open.
func (r *MovementRepository) ListByItem(ctx context.Context, itemID string, from, to *time.Time) ([]*domain.StockMovement, error) {
	var movements []*domain.StockMovement
	err := selectAll(ctx, r.q, &movements, `
		SELECT `+movementColumns+` FROM stock_movements
		WHERE item_id = $1
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
		ORDER BY created_at, seq
	`, itemID, from, to)
	return movements, err
}

// ListByDocument lists the movements posted for a document
func (r *MovementRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.StockMovement, error) {
	var movements []*domain.StockMovement
	err := selectAll(ctx, r.q, &movements, `
		SELECT `+movementColumns+` FROM stock_movements
		WHERE document_id = $1
		ORDER BY created_at, seq
	`, documentID)
	return movements, err
}

// NoteRepository is the document audit trail
type NoteRepository struct {
	q sqlx.ExtContext
}

// Append inserts a note
func (r *NoteRepository) Append(ctx context.Context, n *domain.DocumentNote) error {
	err := r.q.QueryRowxContext(ctx, `
		INSERT INTO document_notes (id, document_type, document_id, action, reason, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq
	`, n.ID, n.DocumentType, n.DocumentID, n.Action, n.Reason, n.ActorID, n.CreatedAt).Scan(&n.Seq)
	return database.MapError(err)
}

// ListByDocument lists a document's notes oldest first
func (r *NoteRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.DocumentNote, error) {
	var notes []*domain.DocumentNote
	err := selectAll(ctx, r.q, &notes, `
		SELECT id, seq, document_type, document_id, action, reason, actor_id, created_at
		FROM document_notes
		WHERE document_id = $1
		ORDER BY seq
	`, documentID)
	return notes, err
}
