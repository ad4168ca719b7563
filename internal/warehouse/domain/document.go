package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType distinguishes the two stock documents.
type DocumentType string

const (
	DocumentReceipt  DocumentType = "RECEIPT"
	DocumentIssuance DocumentType = "ISSUANCE"
)

// Prefix returns the document code prefix.
func (t DocumentType) Prefix() string {
	if t == DocumentReceipt {
		return "GR"
	}
	return "GI"
}

// DocumentStatus is the approval state of a stock document.
type DocumentStatus string

const (
	StatusDraft     DocumentStatus = "DRAFT"
	StatusPending   DocumentStatus = "PENDING"
	StatusApproved  DocumentStatus = "APPROVED"
	StatusDelivered DocumentStatus = "DELIVERED"
	StatusCancelled DocumentStatus = "CANCELLED"
)

var transitions = map[DocumentType]map[DocumentStatus][]DocumentStatus{
	DocumentReceipt: {
		StatusDraft:    {StatusPending, StatusApproved, StatusCancelled},
		StatusPending:  {StatusApproved, StatusCancelled},
		StatusApproved: {StatusPending},
	},
	DocumentIssuance: {
		StatusDraft:    {StatusPending, StatusApproved, StatusCancelled},
		StatusPending:  {StatusApproved, StatusCancelled},
		StatusApproved: {StatusDelivered, StatusPending},
	},
}

// CanTransition reports whether a document of type t may move from -> to.
// APPROVED -> PENDING is the unapprove compensation.
func CanTransition(t DocumentType, from, to DocumentStatus) bool {
	for _, allowed := range transitions[t][from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidStateTransition error when from -> to is not allowed.
func CheckTransition(t DocumentType, code string, from, to DocumentStatus) error {
	if CanTransition(t, from, to) {
		return nil
	}
	return InvalidTransition(t, code, from, to)
}

// FormatDocumentCode renders GR-20261018-0001 style codes.
func FormatDocumentCode(t DocumentType, day time.Time, n int64) string {
	return fmt.Sprintf("%s-%s-%04d", t.Prefix(), day.Format("20060102"), n)
}

// ReceiptDocument brings stock into the warehouse once approved.
type ReceiptDocument struct {
	ID           string         `db:"id" json:"id"`
	Code         string         `db:"code" json:"code"`
	SupplierID   *string        `db:"supplier_id" json:"supplier_id,omitempty"`
	WarehouseID  string         `db:"warehouse_id" json:"warehouse_id"`
	LocationID   *string        `db:"location_id" json:"location_id,omitempty"`
	Status       DocumentStatus `db:"status" json:"status"`
	Note         *string        `db:"note" json:"note,omitempty"`
	CreatedBy    string         `db:"created_by" json:"created_by"`
	SubmittedAt  *time.Time     `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedBy   *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	CancelledBy  *string        `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason *string        `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
	Lines        []ReceiptLine  `db:"-" json:"lines"`
}

// ReceiptLine is one received quantity of an item.
type ReceiptLine struct {
	ID              string          `db:"id" json:"id"`
	ReceiptID       string          `db:"receipt_id" json:"receipt_id"`
	LineNo          int             `db:"line_no" json:"line_no"`
	ItemID          string          `db:"item_id" json:"item_id"`
	LotNumber       *string         `db:"lot_number" json:"lot_number,omitempty"`
	LocationID      *string         `db:"location_id" json:"location_id,omitempty"`
	Quantity        int64           `db:"quantity" json:"quantity"`
	UnitCost        decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	ManufactureDate *time.Time      `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	LotID           *string         `db:"lot_id" json:"lot_id,omitempty"`
}

// TargetLocation is the line's location, falling back to the document default.
func (r *ReceiptDocument) TargetLocation(line *ReceiptLine) *string {
	if line.LocationID != nil {
		return line.LocationID
	}
	return r.LocationID
}

// IssuanceDocument takes stock out of the warehouse for a department once approved.
type IssuanceDocument struct {
	ID           string               `db:"id" json:"id"`
	Code         string               `db:"code" json:"code"`
	DepartmentID string               `db:"department_id" json:"department_id"`
	WarehouseID  string               `db:"warehouse_id" json:"warehouse_id"`
	Status       DocumentStatus       `db:"status" json:"status"`
	Note         *string              `db:"note" json:"note,omitempty"`
	CreatedBy    string               `db:"created_by" json:"created_by"`
	SubmittedAt  *time.Time           `db:"submitted_at" json:"submitted_at,omitempty"`
	ApprovedBy   *string              `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time           `db:"approved_at" json:"approved_at,omitempty"`
	DeliveredBy  *string              `db:"delivered_by" json:"delivered_by,omitempty"`
	DeliveredAt  *time.Time           `db:"delivered_at" json:"delivered_at,omitempty"`
	CancelledBy  *string              `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time           `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason *string              `db:"cancel_reason" json:"cancel_reason,omitempty"`
	CreatedAt    time.Time            `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time            `db:"updated_at" json:"updated_at"`
	Lines        []IssuanceLine       `db:"-" json:"lines"`
	Allocations  []IssuanceAllocation `db:"-" json:"allocations,omitempty"`
}

// IssuanceLine requests a quantity of an item. LotID pins a lot and
// LocationID narrows allocation to one location.
type IssuanceLine struct {
	ID           string          `db:"id" json:"id"`
	IssuanceID   string          `db:"issuance_id" json:"issuance_id"`
	LineNo       int             `db:"line_no" json:"line_no"`
	ItemID       string          `db:"item_id" json:"item_id"`
	RequestedQty int64           `db:"requested_qty" json:"requested_qty"`
	IssuedQty    int64           `db:"issued_qty" json:"issued_qty"`
	LotID        *string         `db:"lot_id" json:"lot_id,omitempty"`
	LocationID   *string         `db:"location_id" json:"location_id,omitempty"`
	UnitCost     decimal.Decimal `db:"unit_cost" json:"unit_cost"`
}

// QuantityToIssue is the issued quantity, defaulting to the requested one.
func (l *IssuanceLine) QuantityToIssue() int64 {
	if l.IssuedQty > 0 {
		return l.IssuedQty
	}
	return l.RequestedQty
}

// IssuanceAllocation records which lot and location supplied part of a line.
// Unapprove restores stock from these rows.
type IssuanceAllocation struct {
	ID         string          `db:"id" json:"id"`
	IssuanceID string          `db:"issuance_id" json:"issuance_id"`
	LineID     string          `db:"line_id" json:"line_id"`
	LotID      string          `db:"lot_id" json:"lot_id"`
	LocationID string          `db:"location_id" json:"location_id"`
	Quantity   int64           `db:"quantity" json:"quantity"`
	UnitCost   decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	Seq        int             `db:"seq" json:"seq"`
}

// AllocationsFor returns the allocations of one line in draw order.
func (d *IssuanceDocument) AllocationsFor(lineID string) []IssuanceAllocation {
	var out []IssuanceAllocation
	for _, a := range d.Allocations {
		if a.LineID == lineID {
			out = append(out, a)
		}
	}
	return out
}

// NoteAction names an audited document action.
type NoteAction string

const (
	NoteSubmit    NoteAction = "SUBMIT"
	NoteApprove   NoteAction = "APPROVE"
	NoteUnapprove NoteAction = "UNAPPROVE"
	NoteDeliver   NoteAction = "DELIVER"
	NoteCancel    NoteAction = "CANCEL"
)

// DocumentNote is an append-only audit entry on a document.
type DocumentNote struct {
	ID           string       `db:"id" json:"id"`
	Seq          int64        `db:"seq" json:"-"`
	DocumentType DocumentType `db:"document_type" json:"document_type"`
	DocumentID   string       `db:"document_id" json:"document_id"`
	Action       NoteAction   `db:"action" json:"action"`
	Reason       string       `db:"reason" json:"reason"`
	ActorID      string       `db:"actor_id" json:"actor_id"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}
