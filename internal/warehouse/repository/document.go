package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/pkg/database"
)

const receiptColumns = `id, code, supplier_id, warehouse_id, location_id, status, note, created_by,
	submitted_at, approved_by, approved_at, cancelled_by, cancelled_at, cancel_reason, created_at, updated_at`

const receiptLineColumns = `id, receipt_id, line_no, item_id, lot_number, location_id, quantity, unit_cost,
	manufacture_date, expiry_date, lot_id`

const issuanceColumns = `id, code, department_id, warehouse_id, status, note, created_by,
	submitted_at, approved_by, approved_at, delivered_by, delivered_at,
	cancelled_by, cancelled_at, cancel_reason, created_at, updated_at`

const issuanceLineColumns = `id, issuance_id, line_no, item_id, requested_qty, issued_qty, lot_id, location_id, unit_cost`

const allocationColumns = `id, issuance_id, line_id, lot_id, location_id, quantity, unit_cost, seq`

// ReceiptRepository handles receipt documents
type ReceiptRepository struct {
	q sqlx.ExtContext
}

// Create creates a receipt with its lines
func (r *ReceiptRepository) Create(ctx context.Context, doc *domain.ReceiptDocument) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO receipts (`+receiptColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, doc.ID, doc.Code, doc.SupplierID, doc.WarehouseID, doc.LocationID, doc.Status, doc.Note, doc.CreatedBy,
		doc.SubmittedAt, doc.ApprovedBy, doc.ApprovedAt, doc.CancelledBy, doc.CancelledAt, doc.CancelReason,
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return database.MapError(err)
	}

	for _, line := range doc.Lines {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO receipt_lines (`+receiptLineColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, line.ID, doc.ID, line.LineNo, line.ItemID, line.LotNumber, line.LocationID, line.Quantity, line.UnitCost,
			line.ManufactureDate, line.ExpiryDate, line.LotID)
		if err != nil {
			return database.MapError(err)
		}
	}
	return nil
}

// Get gets a receipt with its lines
func (r *ReceiptRepository) Get(ctx context.Context, id string) (*domain.ReceiptDocument, error) {
	return r.get(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1`, id)
}

// GetForUpdate gets a receipt and locks its header row
func (r *ReceiptRepository) GetForUpdate(ctx context.Context, id string) (*domain.ReceiptDocument, error) {
	return r.get(ctx, `SELECT `+receiptColumns+` FROM receipts WHERE id = $1 FOR UPDATE`, id)
}

func (r *ReceiptRepository) get(ctx context.Context, query, id string) (*domain.ReceiptDocument, error) {
	var doc domain.ReceiptDocument
	if err := getOne(ctx, r.q, &doc, "receipt", query, id); err != nil {
		return nil, err
	}
	if err := selectAll(ctx, r.q, &doc.Lines, `
		SELECT `+receiptLineColumns+` FROM receipt_lines WHERE receipt_id = $1 ORDER BY line_no
	`, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Update writes the status fields and each line's lot reference
func (r *ReceiptRepository) Update(ctx context.Context, doc *domain.ReceiptDocument) error {
	err := execOne(ctx, r.q, "receipt", `
		UPDATE receipts SET
			status = $2, submitted_at = $3, approved_by = $4, approved_at = $5,
			cancelled_by = $6, cancelled_at = $7, cancel_reason = $8, updated_at = $9
		WHERE id = $1
	`, doc.ID, doc.Status, doc.SubmittedAt, doc.ApprovedBy, doc.ApprovedAt,
		doc.CancelledBy, doc.CancelledAt, doc.CancelReason, doc.UpdatedAt)
	if err != nil {
		return err
	}

	for _, line := range doc.Lines {
		if err := execOne(ctx, r.q, "receipt line", `
			UPDATE receipt_lines SET lot_id = $2 WHERE id = $1
		`, line.ID, line.LotID); err != nil {
			return err
		}
	}
	return nil
}

// IssuanceRepository handles issuance documents
type IssuanceRepository struct {
	q sqlx.ExtContext
}

// Create creates an issuance with its lines
func (r *IssuanceRepository) Create(ctx context.Context, doc *domain.IssuanceDocument) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO issuances (`+issuanceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, doc.ID, doc.Code, doc.DepartmentID, doc.WarehouseID, doc.Status, doc.Note, doc.CreatedBy,
		doc.SubmittedAt, doc.ApprovedBy, doc.ApprovedAt, doc.DeliveredBy, doc.DeliveredAt,
		doc.CancelledBy, doc.CancelledAt, doc.CancelReason, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return database.MapError(err)
	}

	for _, line := range doc.Lines {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO issuance_lines (`+issuanceLineColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, line.ID, doc.ID, line.LineNo, line.ItemID, line.RequestedQty, line.IssuedQty,
			line.LotID, line.LocationID, line.UnitCost)
		if err != nil {
			return database.MapError(err)
		}
	}
	return r.insertAllocations(ctx, doc)
}

// Get gets an issuance with its lines and allocations
func (r *IssuanceRepository) Get(ctx context.Context, id string) (*domain.IssuanceDocument, error) {
	return r.get(ctx, `SELECT `+issuanceColumns+` FROM issuances WHERE id = $1`, id)
}

// GetForUpdate gets an issuance and locks its header row
func (r *IssuanceRepository) GetForUpdate(ctx context.Context, id string) (*domain.IssuanceDocument, error) {
	return r.get(ctx, `SELECT `+issuanceColumns+` FROM issuances WHERE id = $1 FOR UPDATE`, id)
}

func (r *IssuanceRepository) get(ctx context.Context, query, id string) (*domain.IssuanceDocument, error) {
	var doc domain.IssuanceDocument
	if err := getOne(ctx, r.q, &doc, "issuance", query, id); err != nil {
		return nil, err
	}
	if err := selectAll(ctx, r.q, &doc.Lines, `
		SELECT `+issuanceLineColumns+` FROM issuance_lines WHERE issuance_id = $1 ORDER BY line_no
	`, id); err != nil {
		return nil, err
	}
	if err := selectAll(ctx, r.q, &doc.Allocations, `
		SELECT `+allocationColumns+` FROM issuance_allocations WHERE issuance_id = $1 ORDER BY seq
	`, id); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Update writes the header, line costs and quantities, and replaces the allocations
func (r *IssuanceRepository) Update(ctx context.Context, doc *domain.IssuanceDocument) error {
	err := execOne(ctx, r.q, "issuance", `
		UPDATE issuances SET
			status = $2, submitted_at = $3, approved_by = $4, approved_at = $5,
			delivered_by = $6, delivered_at = $7, cancelled_by = $8, cancelled_at = $9,
			cancel_reason = $10, updated_at = $11
		WHERE id = $1
	`, doc.ID, doc.Status, doc.SubmittedAt, doc.ApprovedBy, doc.ApprovedAt,
		doc.DeliveredBy, doc.DeliveredAt, doc.CancelledBy, doc.CancelledAt,
		doc.CancelReason, doc.UpdatedAt)
	if err != nil {
		return err
	}

	for _, line := range doc.Lines {
		if err := execOne(ctx, r.q, "issuance line", `
			UPDATE issuance_lines SET issued_qty = $2, unit_cost = $3 WHERE id = $1
		`, line.ID, line.IssuedQty, line.UnitCost); err != nil {
			return err
		}
	}

	if _, err := r.q.ExecContext(ctx, `DELETE FROM issuance_allocations WHERE issuance_id = $1`, doc.ID); err != nil {
		return database.MapError(err)
	}
	return r.insertAllocations(ctx, doc)
}

func (r *IssuanceRepository) insertAllocations(ctx context.Context, doc *domain.IssuanceDocument) error {
	for _, a := range doc.Allocations {
		_, err := r.q.ExecContext(ctx, `
			INSERT INTO issuance_allocations (`+allocationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, a.ID, doc.ID, a.LineID, a.LotID, a.LocationID, a.Quantity, a.UnitCost, a.Seq)
		if err != nil {
			return database.MapError(err)
		}
	}
	return nil
}
