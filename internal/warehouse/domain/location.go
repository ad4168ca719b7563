package domain

import "time"

// OccupancyStatus summarises how full a location is.
type OccupancyStatus string

const (
	OccupancyEmpty   OccupancyStatus = "EMPTY"
	OccupancyPartial OccupancyStatus = "PARTIAL"
	OccupancyFull    OccupancyStatus = "FULL"
)

// Location is a physical storage slot inside a warehouse. Capacity 0 means unlimited.
type Location struct {
	ID          string          `db:"id" json:"id"`
	WarehouseID string          `db:"warehouse_id" json:"warehouse_id"`
	Code        string          `db:"code" json:"code"`
	Name        string          `db:"name" json:"name"`
	Capacity    int64           `db:"capacity" json:"capacity"`
	Occupied    int64           `db:"occupied" json:"occupied"`
	Status      OccupancyStatus `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// OccupancyFor computes the occupancy status from the capacity ratio.
func OccupancyFor(occupied, capacity int64) OccupancyStatus {
	switch {
	case occupied <= 0:
		return OccupancyEmpty
	case capacity > 0 && occupied >= capacity:
		return OccupancyFull
	default:
		return OccupancyPartial
	}
}

// Occupy applies a quantity change and refreshes the status.
func (l *Location) Occupy(delta int64) {
	l.Occupied += delta
	l.Status = OccupancyFor(l.Occupied, l.Capacity)
}

// LocationStock is the quantity of one lot of one item held at one location.
// Rows exist only while Quantity > 0.
type LocationStock struct {
	ItemID      string    `db:"item_id" json:"item_id"`
	LotID       string    `db:"lot_id" json:"lot_id"`
	LocationID  string    `db:"location_id" json:"location_id"`
	WarehouseID string    `db:"warehouse_id" json:"warehouse_id"`
	Quantity    int64     `db:"quantity" json:"quantity"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
