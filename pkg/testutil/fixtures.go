package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/shopspring/decimal"
)

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
	Now      time.Time
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{Now: time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)}
}

func (f *FixtureFactory) next() int {
	f.sequence++
	return f.sequence
}

// ItemDefinition returns a lot-tracked, expiring item definition
func (f *FixtureFactory) ItemDefinition() domain.ItemDefinition {
	n := f.next()
	return domain.ItemDefinition{
		ID:          uuid.New().String(),
		Code:        fmt.Sprintf("MED-%04d", n),
		Name:        fmt.Sprintf("Test Medicine %d", n),
		Unit:        "box",
		TracksLots:  true,
		HasExpiry:   true,
		MinQuantity: 5,
	}
}

// Item returns an empty-stock item built from ItemDefinition
func (f *FixtureFactory) Item() *domain.Item {
	return domain.NewItem(f.ItemDefinition(), f.Now)
}

// Location returns an empty location in warehouse "wh-main"
func (f *FixtureFactory) Location(capacity int64) *domain.Location {
	n := f.next()
	return &domain.Location{
		ID:          uuid.New().String(),
		WarehouseID: "wh-main",
		Code:        fmt.Sprintf("A-%02d", n),
		Name:        fmt.Sprintf("Shelf %d", n),
		Capacity:    capacity,
		Status:      domain.OccupancyEmpty,
		CreatedAt:   f.Now,
		UpdatedAt:   f.Now,
	}
}

// Lot returns an empty lot of item expiring at expiry
func (f *FixtureFactory) Lot(itemID string, expiry time.Time) *domain.Lot {
	n := f.next()
	return &domain.Lot{
		ID:          uuid.New().String(),
		ItemID:      itemID,
		LotNumber:   fmt.Sprintf("LOT-%04d", n),
		ExpiryDate:  &expiry,
		ReceiptCost: decimal.Zero,
		Status:      domain.LotNew,
		CreatedAt:   f.Now,
		UpdatedAt:   f.Now,
	}
}
