package domain_test

import (
	"testing"
	"time"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/stretchr/testify/assert"
)

func TestLot_Reclassify(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	window := 90 * 24 * time.Hour

	tests := []struct {
		name string
		lot  domain.Lot
		want domain.LotStatus
	}{
		{"untouched", domain.Lot{ReceivedQuantity: 10, CurrentQuantity: 10, ExpiryDate: date(2028, 1, 1)}, domain.LotNew},
		{"partly issued", domain.Lot{ReceivedQuantity: 10, CurrentQuantity: 4, ExpiryDate: date(2028, 1, 1)}, domain.LotInUse},
		{"no expiry", domain.Lot{ReceivedQuantity: 10, CurrentQuantity: 4}, domain.LotInUse},
		{"near expiry", domain.Lot{ReceivedQuantity: 10, CurrentQuantity: 10, ExpiryDate: date(2026, 12, 1)}, domain.LotNearExpiry},
		{"expired", domain.Lot{ReceivedQuantity: 10, CurrentQuantity: 10, ExpiryDate: date(2026, 10, 1)}, domain.LotExpired},
		{"empty beats expired", domain.Lot{ReceivedQuantity: 10, CurrentQuantity: 0, ExpiryDate: date(2026, 10, 1)}, domain.LotDepleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lot := tt.lot
			lot.Reclassify(now, window)
			assert.Equal(t, tt.want, lot.Status)
		})
	}
}

func TestLot_ReclassifyReportsChange(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	lot := domain.Lot{ReceivedQuantity: 5, CurrentQuantity: 5, Status: domain.LotNew}

	assert.False(t, lot.Reclassify(now, 0))
	lot.CurrentQuantity = 0
	assert.True(t, lot.Reclassify(now, 0))
	assert.Equal(t, domain.LotDepleted, lot.Status)
}

func TestOccupancyFor(t *testing.T) {
	assert.Equal(t, domain.OccupancyEmpty, domain.OccupancyFor(0, 100))
	assert.Equal(t, domain.OccupancyPartial, domain.OccupancyFor(40, 100))
	assert.Equal(t, domain.OccupancyFull, domain.OccupancyFor(100, 100))
	assert.Equal(t, domain.OccupancyPartial, domain.OccupancyFor(1000, 0))
}
