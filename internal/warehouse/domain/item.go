// Package domain holds the warehouse stock model: items, lots, locations,
// stock documents and the movement ledger, plus the pure rules applied to them.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a catalog item together with its stock projection.
// Quantity fields change only through ledger postings.
type Item struct {
	ID               string          `db:"id" json:"id"`
	Code             string          `db:"code" json:"code"`
	Name             string          `db:"name" json:"name"`
	Unit             string          `db:"unit" json:"unit"`
	TracksLots       bool            `db:"tracks_lots" json:"tracks_lots"`
	HasExpiry        bool            `db:"has_expiry" json:"has_expiry"`
	TotalQuantity    int64           `db:"total_quantity" json:"total_quantity"`
	IssuableQuantity int64           `db:"issuable_quantity" json:"issuable_quantity"`
	ReservedQuantity int64           `db:"reserved_quantity" json:"reserved_quantity"`
	MinQuantity      int64           `db:"min_quantity" json:"min_quantity"`
	MaxQuantity      int64           `db:"max_quantity" json:"max_quantity"`
	AvgReceiptCost   decimal.Decimal `db:"avg_receipt_cost" json:"avg_receipt_cost"`
	Version          int64           `db:"version" json:"version"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// IsLowStock reports whether the issuable quantity fell below the minimum.
func (i *Item) IsLowStock() bool {
	return i.IssuableQuantity < i.MinQuantity
}

// ApplyDelta moves total and issuable together, keeping the reserved share fixed.
func (i *Item) ApplyDelta(delta int64) {
	i.TotalQuantity += delta
	i.IssuableQuantity = i.TotalQuantity - i.ReservedQuantity
}

// ItemDefinition is the catalog-owned part of an item. Syncing a definition
// never touches stock quantities or cost.
type ItemDefinition struct {
	ID          string `json:"id" validate:"required,uuid"`
	Code        string `json:"code" validate:"required,max=64"`
	Name        string `json:"name" validate:"required,max=255"`
	Unit        string `json:"unit" validate:"omitempty,max=32"`
	TracksLots  bool   `json:"tracks_lots"`
	HasExpiry   bool   `json:"has_expiry"`
	MinQuantity int64  `json:"min_quantity" validate:"gte=0"`
	MaxQuantity int64  `json:"max_quantity" validate:"gte=0"`
}

// NewItem builds an empty-stock item from its definition.
func NewItem(def ItemDefinition, now time.Time) *Item {
	unit := def.Unit
	if unit == "" {
		unit = "unit"
	}
	return &Item{
		ID:             def.ID,
		Code:           def.Code,
		Name:           def.Name,
		Unit:           unit,
		TracksLots:     def.TracksLots,
		HasExpiry:      def.HasExpiry,
		MinQuantity:    def.MinQuantity,
		MaxQuantity:    def.MaxQuantity,
		AvgReceiptCost: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ApplyDefinition copies catalog fields onto an existing item.
func (i *Item) ApplyDefinition(def ItemDefinition, now time.Time) {
	i.Code = def.Code
	i.Name = def.Name
	if def.Unit != "" {
		i.Unit = def.Unit
	}
	i.TracksLots = def.TracksLots
	i.HasExpiry = def.HasExpiry
	i.MinQuantity = def.MinQuantity
	i.MaxQuantity = def.MaxQuantity
	i.UpdatedAt = now
}
