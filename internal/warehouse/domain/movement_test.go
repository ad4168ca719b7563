package domain_test

import (
	"testing"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestReplay_MatchesProjection(t *testing.T) {
	movements := []*domain.StockMovement{
		{MovementType: domain.MovementReceipt, LotID: strPtr("L1"), LocationID: strPtr("A"), QuantityBefore: 0, QuantityDelta: 10, QuantityAfter: 10},
		{MovementType: domain.MovementIssuance, LotID: strPtr("L1"), LocationID: strPtr("A"), QuantityBefore: 10, QuantityDelta: -4, QuantityAfter: 6},
		{MovementType: domain.MovementUnapproveIssuance, LotID: strPtr("L1"), LocationID: strPtr("A"), QuantityBefore: 6, QuantityDelta: 4, QuantityAfter: 10},
	}

	r := domain.Replay("item-1", movements)
	r.Compare(
		&domain.Item{ID: "item-1", TotalQuantity: 10},
		[]*domain.Lot{{ID: "L1", CurrentQuantity: 10}},
		[]*domain.LocationStock{{LotID: "L1", LocationID: "A", Quantity: 10}},
	)

	assert.Equal(t, int64(10), r.LedgerTotal)
	assert.False(t, r.ChainBroken)
	assert.True(t, r.Consistent)
}

func TestReplay_DetectsDrift(t *testing.T) {
	movements := []*domain.StockMovement{
		{MovementType: domain.MovementReceipt, QuantityBefore: 0, QuantityDelta: 10, QuantityAfter: 10},
	}

	r := domain.Replay("item-1", movements)
	r.Compare(&domain.Item{ID: "item-1", TotalQuantity: 12}, nil, nil)
	assert.False(t, r.Consistent)

	broken := domain.Replay("item-1", []*domain.StockMovement{
		{QuantityBefore: 5, QuantityDelta: 1, QuantityAfter: 6},
	})
	assert.True(t, broken.ChainBroken)
}
