package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/internal/warehouse/events"
	"github.com/medflow/medflow-warehouse/internal/warehouse/memstore"
	"github.com/medflow/medflow-warehouse/internal/warehouse/service"
	"github.com/medflow/medflow-warehouse/pkg/actor"
	"github.com/medflow/medflow-warehouse/pkg/logger"
	"github.com/medflow/medflow-warehouse/pkg/messaging"
	"github.com/medflow/medflow-warehouse/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type steppingClock struct{ now time.Time }

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func TestService_PublishesOnlyCommittedChanges(t *testing.T) {
	const gauzeID = "0b7f2a52-6a5e-4d3c-9f0e-2f6c1e0a0102"

	mock := testutil.NewMockPublisher()
	svc := service.NewWarehouseService(
		memstore.New(), memstore.NewSequencer(),
		&steppingClock{now: time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)},
		events.NewWithSink(mock, logger.Nop()),
		service.Options{MaxRetries: 1, RetryDelay: time.Millisecond},
		logger.Nop(),
	)
	ctx := actor.WithActor(context.Background(), actor.SystemActor())

	_, err := svc.UpsertItemDefinition(ctx, domain.ItemDefinition{ID: gauzeID, Code: "SUP-GAU-10", Name: "Gauze 10x10", MinQuantity: 5})
	require.NoError(t, err)

	receipt, err := svc.CreateReceipt(ctx, service.CreateReceiptRequest{
		WarehouseID: "wh-main",
		Lines:       []service.ReceiptLineRequest{{ItemID: gauzeID, Quantity: 6, UnitCost: decimal.RequireFromString("1.20")}},
	})
	require.NoError(t, err)
	_, err = svc.ApproveReceipt(ctx, receipt.ID)
	require.NoError(t, err)
	mock.AssertEventPublished(t, messaging.EventReceiptApproved)

	mock.Reset()
	tooMuch, err := svc.CreateIssuance(ctx, service.CreateIssuanceRequest{
		DepartmentID: "dept-er", WarehouseID: "wh-main",
		Lines: []service.IssuanceLineRequest{{ItemID: gauzeID, RequestedQty: 7}},
	})
	require.NoError(t, err)
	_, err = svc.ApproveIssuance(ctx, tooMuch.ID)
	testutil.AssertAppError(t, err, "INSUFFICIENT_STOCK")
	mock.AssertNoEventsPublished(t)

	issuance, err := svc.CreateIssuance(ctx, service.CreateIssuanceRequest{
		DepartmentID: "dept-er", WarehouseID: "wh-main",
		Lines: []service.IssuanceLineRequest{{ItemID: gauzeID, RequestedQty: 3}},
	})
	require.NoError(t, err)
	_, err = svc.ApproveIssuance(ctx, issuance.ID)
	require.NoError(t, err)
	mock.AssertEventPublished(t, messaging.EventIssuanceApproved)
	mock.AssertEventPublished(t, messaging.EventLowStock)
}
