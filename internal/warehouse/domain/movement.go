package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType classifies a ledger entry.
type MovementType string

const (
	MovementReceipt           MovementType = "RECEIPT"
	MovementIssuance          MovementType = "ISSUANCE"
	MovementAdjustment        MovementType = "ADJUSTMENT"
	MovementUnapproveReceipt  MovementType = "UNAPPROVE_RECEIPT"
	MovementUnapproveIssuance MovementType = "UNAPPROVE_ISSUANCE"
)

// StockMovement is one immutable ledger entry. Before/after are the item's
// total quantity around this entry, so After == Before + Delta always holds.
type StockMovement struct {
	ID             string          `db:"id" json:"id"`
	Seq            int64           `db:"seq" json:"seq"`
	ItemID         string          `db:"item_id" json:"item_id"`
	LotID          *string         `db:"lot_id" json:"lot_id,omitempty"`
	LocationID     *string         `db:"location_id" json:"location_id,omitempty"`
	MovementType   MovementType    `db:"movement_type" json:"movement_type"`
	QuantityBefore int64           `db:"quantity_before" json:"quantity_before"`
	QuantityDelta  int64           `db:"quantity_delta" json:"quantity_delta"`
	QuantityAfter  int64           `db:"quantity_after" json:"quantity_after"`
	UnitCost       decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	DocumentType   *DocumentType   `db:"document_type" json:"document_type,omitempty"`
	DocumentID     *string         `db:"document_id" json:"document_id,omitempty"`
	DocumentCode   *string         `db:"document_code" json:"document_code,omitempty"`
	Reason         *string         `db:"reason" json:"reason,omitempty"`
	ActorID        string          `db:"actor_id" json:"actor_id"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// Reconciliation compares the ledger replay of one item with its projections.
type Reconciliation struct {
	ItemID            string           `json:"item_id"`
	Movements         int              `json:"movements"`
	LedgerTotal       int64            `json:"ledger_total"`
	ProjectedTotal    int64            `json:"projected_total"`
	LedgerByLot       map[string]int64 `json:"ledger_by_lot,omitempty"`
	ProjectedByLot    map[string]int64 `json:"projected_by_lot,omitempty"`
	LedgerByLocation  map[string]int64 `json:"ledger_by_location,omitempty"`
	StockedByLocation map[string]int64 `json:"stocked_by_location,omitempty"`
	ChainBroken       bool             `json:"chain_broken"`
	Consistent        bool             `json:"consistent"`
}

// Replay folds movements (in ledger order) into per-item, per-lot and
// per-location balances. ChainBroken is set when an entry's before does not
// match the running total.
func Replay(itemID string, movements []*StockMovement) *Reconciliation {
	r := &Reconciliation{
		ItemID:           itemID,
		Movements:        len(movements),
		LedgerByLot:      make(map[string]int64),
		LedgerByLocation: make(map[string]int64),
	}
	for _, m := range movements {
		if m.QuantityBefore != r.LedgerTotal || m.QuantityAfter != m.QuantityBefore+m.QuantityDelta {
			r.ChainBroken = true
		}
		r.LedgerTotal += m.QuantityDelta
		if m.LotID != nil {
			r.LedgerByLot[*m.LotID] += m.QuantityDelta
		}
		if m.LotID != nil && m.LocationID != nil {
			r.LedgerByLocation[*m.LotID+"@"+*m.LocationID] += m.QuantityDelta
		}
	}
	dropZeros(r.LedgerByLot)
	dropZeros(r.LedgerByLocation)
	return r
}

// Compare fills the projected side and sets Consistent.
func (r *Reconciliation) Compare(item *Item, lots []*Lot, stock []*LocationStock) {
	r.ProjectedTotal = item.TotalQuantity
	r.ProjectedByLot = make(map[string]int64)
	for _, l := range lots {
		r.ProjectedByLot[l.ID] = l.CurrentQuantity
	}
	r.StockedByLocation = make(map[string]int64)
	for _, s := range stock {
		r.StockedByLocation[s.LotID+"@"+s.LocationID] = s.Quantity
	}
	dropZeros(r.ProjectedByLot)
	dropZeros(r.StockedByLocation)

	r.Consistent = !r.ChainBroken &&
		r.LedgerTotal == r.ProjectedTotal &&
		sameBalances(r.LedgerByLot, r.ProjectedByLot) &&
		sameBalances(r.LedgerByLocation, r.StockedByLocation)
}

func dropZeros(m map[string]int64) {
	for k, v := range m {
		if v == 0 {
			delete(m, k)
		}
	}
}

func sameBalances(a, b map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
