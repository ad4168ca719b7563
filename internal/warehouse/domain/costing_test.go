package domain_test

import (
	"testing"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestWeightedAverageCost(t *testing.T) {
	tests := []struct {
		name     string
		avg      string
		qty      int64
		cost     string
		received int64
		want     string
	}{
		{name: "blend two receipts", avg: "3.00", qty: 10, cost: "5.00", received: 10, want: "4"},
		{name: "first receipt", avg: "0", qty: 0, cost: "2.75", received: 8, want: "2.75"},
		{name: "rounds half up", avg: "1.00", qty: 1, cost: "1.01", received: 1, want: "1.01"},
		{name: "repeating fraction", avg: "1.00", qty: 2, cost: "2.00", received: 1, want: "1.33"},
		{name: "nothing received", avg: "3.10", qty: 0, cost: "9.99", received: 0, want: "3.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.WeightedAverageCost(dec(tt.avg), tt.qty, dec(tt.cost), tt.received)
			assert.True(t, dec(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestReverseWeightedAverageCost(t *testing.T) {
	// 10 @ 3.00 then 10 @ 5.00 -> 4.00; removing the second receipt restores 3.00
	got := domain.ReverseWeightedAverageCost(dec("4.00"), 20, dec("5.00"), 10)
	assert.True(t, dec("3.00").Equal(got), "got %s", got)

	// emptying the item keeps the last average
	got = domain.ReverseWeightedAverageCost(dec("4.00"), 10, dec("4.00"), 10)
	assert.True(t, dec("4.00").Equal(got), "got %s", got)

	// rounding drift never produces a negative average
	got = domain.ReverseWeightedAverageCost(dec("0.01"), 3, dec("5.00"), 1)
	assert.True(t, got.IsZero(), "got %s", got)
}

func TestBlendedCost(t *testing.T) {
	got := domain.BlendedCost([]domain.CostedQuantity{
		{Quantity: 5, UnitCost: dec("2.00")},
		{Quantity: 2, UnitCost: dec("3.00")},
	})
	assert.True(t, dec("2.29").Equal(got), "got %s", got)

	assert.True(t, domain.BlendedCost(nil).IsZero())
}
