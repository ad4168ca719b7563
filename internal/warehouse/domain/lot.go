package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotStatus is the lifecycle status of a lot.
type LotStatus string

const (
	LotNew        LotStatus = "NEW"
	LotInUse      LotStatus = "IN_USE"
	LotNearExpiry LotStatus = "NEAR_EXPIRY"
	LotExpired    LotStatus = "EXPIRED"
	LotDepleted   LotStatus = "DEPLETED"
)

// Lot is a batch of one item sharing a lot number and expiry date.
// Seq is the creation order and breaks FEFO ties.
type Lot struct {
	ID               string          `db:"id" json:"id"`
	Seq              int64           `db:"seq" json:"seq"`
	ItemID           string          `db:"item_id" json:"item_id"`
	LotNumber        string          `db:"lot_number" json:"lot_number"`
	ManufactureDate  *time.Time      `db:"manufacture_date" json:"manufacture_date,omitempty"`
	ExpiryDate       *time.Time      `db:"expiry_date" json:"expiry_date,omitempty"`
	ReceivedQuantity int64           `db:"received_quantity" json:"received_quantity"`
	CurrentQuantity  int64           `db:"current_quantity" json:"current_quantity"`
	ReceiptCost      decimal.Decimal `db:"receipt_cost" json:"receipt_cost"`
	Status           LotStatus       `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Reclassify derives the status from quantity and expiry at now.
// Reports whether the status changed.
func (l *Lot) Reclassify(now time.Time, nearExpiry time.Duration) bool {
	next := l.classify(now, nearExpiry)
	if next == l.Status {
		return false
	}
	l.Status = next
	return true
}

func (l *Lot) classify(now time.Time, nearExpiry time.Duration) LotStatus {
	switch {
	case l.CurrentQuantity == 0:
		return LotDepleted
	case l.ExpiryDate != nil && l.ExpiryDate.Before(now):
		return LotExpired
	case l.ExpiryDate != nil && !l.ExpiryDate.After(now.Add(nearExpiry)):
		return LotNearExpiry
	case l.CurrentQuantity < l.ReceivedQuantity:
		return LotInUse
	default:
		return LotNew
	}
}

// ExpiresWithin reports whether the lot still holds stock and expires on or before cutoff.
func (l *Lot) ExpiresWithin(cutoff time.Time) bool {
	return l.CurrentQuantity > 0 && l.ExpiryDate != nil && !l.ExpiryDate.After(cutoff)
}
