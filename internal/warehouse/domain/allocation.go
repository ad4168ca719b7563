package domain

import (
	"sort"
	"time"
)

// LotCandidate is a lot with the quantity available inside an allocation scope.
type LotCandidate struct {
	LotID      string
	LotNumber  string
	ExpiryDate *time.Time
	Seq        int64
	Available  int64
}

// LotDraw is the quantity taken from one lot.
type LotDraw struct {
	LotID    string
	Quantity int64
}

// SortFEFO orders candidates first-expired-first-out: earliest expiry first,
// lots without expiry last, ties broken by creation order.
func SortFEFO(candidates []LotCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch {
		case a.ExpiryDate == nil && b.ExpiryDate == nil:
			return a.Seq < b.Seq
		case a.ExpiryDate == nil:
			return false
		case b.ExpiryDate == nil:
			return true
		case !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		default:
			return a.Seq < b.Seq
		}
	})
}

// AllocateFEFO draws needed units from candidates in FEFO order. It returns
// the draws, the total available in scope, and whether the need was covered.
// Nothing is drawn when the scope cannot cover the need.
func AllocateFEFO(needed int64, candidates []LotCandidate) ([]LotDraw, int64, bool) {
	usable := make([]LotCandidate, 0, len(candidates))
	var available int64
	for _, c := range candidates {
		if c.Available > 0 {
			usable = append(usable, c)
			available += c.Available
		}
	}
	if available < needed {
		return nil, available, false
	}

	SortFEFO(usable)

	var draws []LotDraw
	remaining := needed
	for _, c := range usable {
		if remaining == 0 {
			break
		}
		take := min(c.Available, remaining)
		draws = append(draws, LotDraw{LotID: c.LotID, Quantity: take})
		remaining -= take
	}
	return draws, available, true
}

// LocationDraw is the quantity taken from one location row of a lot.
type LocationDraw struct {
	LocationID string
	Quantity   int64
}

// DrawFromLocations consumes rows greedily in location ID order.
// The caller guarantees the rows hold at least qty.
func DrawFromLocations(rows []*LocationStock, qty int64) []LocationDraw {
	ordered := make([]*LocationStock, len(rows))
	copy(ordered, rows)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].LocationID < ordered[j].LocationID })

	var draws []LocationDraw
	remaining := qty
	for _, row := range ordered {
		if remaining == 0 {
			break
		}
		if row.Quantity <= 0 {
			continue
		}
		take := min(row.Quantity, remaining)
		draws = append(draws, LocationDraw{LocationID: row.LocationID, Quantity: take})
		remaining -= take
	}
	return draws
}

// Scope narrows where stock may be drawn from. Empty fields do not filter.
type Scope struct {
	WarehouseID string
	LocationID  string
	LotID       string
}

// Contains reports whether a location row falls inside the scope.
func (s Scope) Contains(row *LocationStock) bool {
	if s.WarehouseID != "" && row.WarehouseID != s.WarehouseID {
		return false
	}
	if s.LocationID != "" && row.LocationID != s.LocationID {
		return false
	}
	if s.LotID != "" && row.LotID != s.LotID {
		return false
	}
	return true
}
