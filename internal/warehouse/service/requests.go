package service

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/medflow/medflow-warehouse/pkg/errors"
	"github.com/shopspring/decimal"
)

// Date is a calendar date accepted as YYYY-MM-DD or RFC3339.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.BadRequest("dates must be strings")
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format("2006-01-02"))
}

// ParseDate parses YYYY-MM-DD or RFC3339 into a UTC time.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errors.BadRequest("invalid date " + s + ", expected YYYY-MM-DD")
}

func (d *Date) timePtr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CreateReceiptRequest is the input for CreateReceipt.
type CreateReceiptRequest struct {
	SupplierID  string               `json:"supplier_id"`
	WarehouseID string               `json:"warehouse_id" validate:"required"`
	LocationID  string               `json:"location_id"`
	Note        string               `json:"note" validate:"max=1000"`
	Lines       []ReceiptLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ReceiptLineRequest is one line of a receipt.
type ReceiptLineRequest struct {
	ItemID          string          `json:"item_id" validate:"required"`
	LotNumber       string          `json:"lot_number" validate:"max=64"`
	LocationID      string          `json:"location_id"`
	Quantity        int64           `json:"quantity" validate:"gt=0"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ManufactureDate *Date           `json:"manufacture_date"`
	ExpiryDate      *Date           `json:"expiry_date"`
}

// CreateIssuanceRequest is the input for CreateIssuance.
type CreateIssuanceRequest struct {
	DepartmentID string                `json:"department_id" validate:"required"`
	WarehouseID  string                `json:"warehouse_id" validate:"required"`
	Note         string                `json:"note" validate:"max=1000"`
	Lines        []IssuanceLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// IssuanceLineRequest is one line of an issuance. IssuedQty of zero means
// the full requested quantity.
type IssuanceLineRequest struct {
	ItemID       string `json:"item_id" validate:"required"`
	RequestedQty int64  `json:"requested_qty" validate:"gt=0"`
	IssuedQty    int64  `json:"issued_qty" validate:"gte=0,ltefield=RequestedQty"`
	LotID        string `json:"lot_id"`
	LocationID   string `json:"location_id"`
}

// ReasonRequest carries the mandatory reason of cancel and unapprove.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// AdjustStockRequest is a signed correction of an item's stock.
type AdjustStockRequest struct {
	ItemID     string `json:"item_id" validate:"required"`
	LotID      string `json:"lot_id"`
	LocationID string `json:"location_id"`
	Delta      int64  `json:"delta" validate:"required"`
	Reason     string `json:"reason" validate:"required,max=1000"`
}

// LocationRequest creates or updates a location.
type LocationRequest struct {
	ID          string `json:"id" validate:"required,uuid"`
	WarehouseID string `json:"warehouse_id" validate:"required"`
	Code        string `json:"code" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=255"`
	Capacity    int64  `json:"capacity" validate:"gte=0"`
}
