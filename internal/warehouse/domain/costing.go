package domain

import "github.com/shopspring/decimal"

// CostPlaces is the precision of every stored cost.
const CostPlaces = 2

// WeightedAverageCost blends a receipt into the running average:
// round((avg*qty + cost*received) / (qty + received), 2), half away from zero.
func WeightedAverageCost(avg decimal.Decimal, qty int64, cost decimal.Decimal, received int64) decimal.Decimal {
	total := qty + received
	if total <= 0 {
		return avg
	}
	value := avg.Mul(decimal.NewFromInt(qty)).Add(cost.Mul(decimal.NewFromInt(received)))
	return value.Div(decimal.NewFromInt(total)).Round(CostPlaces)
}

// ReverseWeightedAverageCost removes a previously blended receipt. When no
// stock remains the average is left unchanged; it never goes below zero.
func ReverseWeightedAverageCost(avg decimal.Decimal, qty int64, cost decimal.Decimal, removed int64) decimal.Decimal {
	remaining := qty - removed
	if remaining <= 0 {
		return avg
	}
	value := avg.Mul(decimal.NewFromInt(qty)).Sub(cost.Mul(decimal.NewFromInt(removed)))
	if value.IsNegative() {
		return decimal.Zero
	}
	return value.Div(decimal.NewFromInt(remaining)).Round(CostPlaces)
}

// CostedQuantity is a quantity drawn at a unit cost.
type CostedQuantity struct {
	Quantity int64
	UnitCost decimal.Decimal
}

// BlendedCost is the quantity-weighted unit cost of several draws.
func BlendedCost(parts []CostedQuantity) decimal.Decimal {
	var qty int64
	value := decimal.Zero
	for _, p := range parts {
		qty += p.Quantity
		value = value.Add(p.UnitCost.Mul(decimal.NewFromInt(p.Quantity)))
	}
	if qty == 0 {
		return decimal.Zero
	}
	return value.Div(decimal.NewFromInt(qty)).Round(CostPlaces)
}
