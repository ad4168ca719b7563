package service_test

import (
	"testing"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/internal/warehouse/service"
	"github.com/medflow/medflow-warehouse/pkg/actor"
	"github.com/medflow/medflow-warehouse/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func salineLine(lot string, qty int64, cost, expiry string) service.ReceiptLineRequest {
	return service.ReceiptLineRequest{
		ItemID:     salineID,
		LotNumber:  lot,
		LocationID: shelfAID,
		Quantity:   qty,
		UnitCost:   dec(cost),
		ExpiryDate: date(expiry),
	}
}

func TestApproveReceipt_CreatesLotAndPostsLedger(t *testing.T) {
	e := newEnv(t)

	doc, err := e.svc.CreateReceipt(e.ctx, service.CreateReceiptRequest{
		WarehouseID: warehouseID,
		Lines:       []service.ReceiptLineRequest{salineLine("SAL-2401", 10, "3.00", "2025-06-30")},
	})
	require.NoError(t, err)
	assert.Equal(t, "GR-20250115-0001", doc.Code)
	assert.Equal(t, domain.StatusDraft, doc.Status)

	result, err := e.svc.ApproveReceipt(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, result.Status)
	require.Len(t, result.Movements, 1)

	m := result.Movements[0]
	assert.Equal(t, domain.MovementReceipt, m.MovementType)
	assert.Equal(t, int64(0), m.QuantityBefore)
	assert.Equal(t, int64(10), m.QuantityDelta)
	assert.Equal(t, int64(10), m.QuantityAfter)
	assert.Equal(t, pharmacist().ID, m.ActorID)
	require.NotNil(t, m.DocumentCode)
	assert.Equal(t, doc.Code, *m.DocumentCode)

	item := e.item(t, salineID)
	assert.Equal(t, int64(10), item.TotalQuantity)
	assert.Equal(t, int64(10), item.IssuableQuantity)
	assert.True(t, item.AvgReceiptCost.Equal(dec("3.00")))

	lot := e.lotByNumber(t, salineID, "SAL-2401")
	assert.Equal(t, int64(10), lot.ReceivedQuantity)
	assert.Equal(t, int64(10), lot.CurrentQuantity)
	assert.Equal(t, domain.LotNew, lot.Status)
	assert.True(t, lot.ReceiptCost.Equal(dec("3.00")))

	loc := e.location(t, shelfAID)
	assert.Equal(t, int64(10), loc.Occupied)
	assert.Equal(t, domain.OccupancyPartial, loc.Status)

	approved, err := e.svc.GetReceipt(e.ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, pharmacist().ID, *approved.ApprovedBy)
	require.NotNil(t, approved.Lines[0].LotID)
	assert.Equal(t, lot.ID, *approved.Lines[0].LotID)

	e.assertConsistent(t, salineID)
}

func TestApproveReceipt_WeightedAverageCost(t *testing.T) {
	e := newEnv(t)

	e.receive(t, salineLine("SAL-2401", 10, "3.00", "2025-06-30"))
	e.receive(t, salineLine("SAL-2402", 10, "5.00", "2025-09-30"))

	item := e.item(t, salineID)
	assert.Equal(t, int64(20), item.TotalQuantity)
	assert.True(t, item.AvgReceiptCost.Equal(dec("4.00")), "got %s", item.AvgReceiptCost)
}

func TestApproveReceipt_ExistingLotBlendsCost(t *testing.T) {
	e := newEnv(t)

	e.receive(t, salineLine("SAL-2401", 10, "3.00", "2025-06-30"))
	e.receive(t, salineLine("SAL-2401", 30, "4.00", "2025-06-30"))

	lots, err := e.svc.ListLots(e.ctx, salineID)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, int64(40), lots[0].ReceivedQuantity)
	assert.Equal(t, int64(40), lots[0].CurrentQuantity)
	assert.True(t, lots[0].ReceiptCost.Equal(dec("3.75")), "got %s", lots[0].ReceiptCost)

	stock, err := e.svc.ListLocationStock(e.ctx, salineID)
	require.NoError(t, err)
	require.Len(t, stock, 1)
	assert.Equal(t, int64(40), stock[0].Quantity)
}

func TestApproveReceipt_ExpiryMismatchOnExistingLot(t *testing.T) {
	e := newEnv(t)
	e.receive(t, salineLine("SAL-2401", 10, "3.00", "2025-06-30"))

	doc, err := e.svc.CreateReceipt(e.ctx, service.CreateReceiptRequest{
		WarehouseID: warehouseID,
		Lines:       []service.ReceiptLineRequest{salineLine("SAL-2401", 5, "3.00", "2025-07-31")},
	})
	require.NoError(t, err)

	_, err = e.svc.ApproveReceipt(e.ctx, doc.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))

	assert.Equal(t, int64(10), e.item(t, salineID).TotalQuantity)
}

func TestApproveReceipt_NonLotItemHasNoPlacement(t *testing.T) {
	e := newEnv(t)
	e.receive(t, service.ReceiptLineRequest{ItemID: gauzeID, Quantity: 8, UnitCost: dec("2.10")})

	item := e.item(t, gauzeID)
	assert.Equal(t, int64(8), item.TotalQuantity)

	lots, err := e.svc.ListLots(e.ctx, gauzeID)
	require.NoError(t, err)
	assert.Empty(t, lots)

	movements, err := e.svc.QueryStockMovements(e.ctx, gauzeID, nil, nil)
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Nil(t, movements[0].LotID)
	assert.Nil(t, movements[0].LocationID)
}

func TestApproveReceipt_UsesDocumentDefaultLocation(t *testing.T) {
	e := newEnv(t)

	doc, err := e.svc.CreateReceipt(e.ctx, service.CreateReceiptRequest{
		WarehouseID: warehouseID,
		LocationID:  shelfBID,
		Lines: []service.ReceiptLineRequest{{
			ItemID: glovesID, LotNumber: "GLV-01", Quantity: 50, UnitCost: dec("6.40"),
		}},
	})
	require.NoError(t, err)
	_, err = e.svc.ApproveReceipt(e.ctx, doc.ID)
	require.NoError(t, err)

	loc := e.location(t, shelfBID)
	assert.Equal(t, int64(50), loc.Occupied)
	assert.Equal(t, domain.OccupancyFull, loc.Status)
}

func TestCreateReceipt_Validation(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		name  string
		req   service.CreateReceiptRequest
		field string
	}{
		{
			name:  "no lines",
			req:   service.CreateReceiptRequest{WarehouseID: warehouseID},
			field: "lines",
		},
		{
			name: "zero quantity",
			req: service.CreateReceiptRequest{WarehouseID: warehouseID, Lines: []service.ReceiptLineRequest{
				salineLine("SAL-1", 0, "3.00", "2025-06-30"),
			}},
			field: "lines[0].quantity",
		},
		{
			name: "zero unit cost",
			req: service.CreateReceiptRequest{WarehouseID: warehouseID, Lines: []service.ReceiptLineRequest{
				salineLine("SAL-1", 5, "0", "2025-06-30"),
			}},
			field: "lines[0].unit_cost",
		},
		{
			name: "unknown item",
			req: service.CreateReceiptRequest{WarehouseID: warehouseID, Lines: []service.ReceiptLineRequest{
				{ItemID: "missing", Quantity: 1, UnitCost: dec("1.00")},
			}},
			field: "lines[0].item_id",
		},
		{
			name: "lot number missing",
			req: service.CreateReceiptRequest{WarehouseID: warehouseID, Lines: []service.ReceiptLineRequest{
				salineLine("", 5, "3.00", "2025-06-30"),
			}},
			field: "lines[0].lot_number",
		},
		{
			name: "expiry missing",
			req: service.CreateReceiptRequest{WarehouseID: warehouseID, Lines: []service.ReceiptLineRequest{
				{ItemID: salineID, LotNumber: "SAL-1", LocationID: shelfAID, Quantity: 5, UnitCost: dec("3.00")},
			}},
			field: "lines[0].expiry_date",
		},
		{
			name: "expiry before manufacture",
			req: service.CreateReceiptRequest{WarehouseID: warehouseID, Lines: []service.ReceiptLineRequest{{
				ItemID: salineID, LotNumber: "SAL-1", LocationID: shelfAID, Quantity: 5, UnitCost: dec("3.00"),
				ManufactureDate: date("2025-03-01"), ExpiryDate: date("2025-02-01"),
			}}},
			field: "lines[0].expiry_date",
		},
		{
			name: "location missing for lot item",
			req: service.CreateReceiptRequest{WarehouseID: warehouseID, Lines: []service.ReceiptLineRequest{
				{ItemID: glovesID, LotNumber: "GLV-1", Quantity: 5, UnitCost: dec("3.00")},
			}},
			field: "lines[0].location_id",
		},
		{
			name: "location on non-lot item",
			req: service.CreateReceiptRequest{WarehouseID: warehouseID, Lines: []service.ReceiptLineRequest{
				{ItemID: gauzeID, LocationID: shelfAID, Quantity: 5, UnitCost: dec("1.00")},
			}},
			field: "lines[0].location_id",
		},
		{
			name: "location in another warehouse",
			req: service.CreateReceiptRequest{WarehouseID: warehouseID, Lines: []service.ReceiptLineRequest{
				{ItemID: glovesID, LotNumber: "GLV-1", LocationID: annexLoc, Quantity: 5, UnitCost: dec("3.00")},
			}},
			field: "lines[0].location_id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.svc.CreateReceipt(e.ctx, tt.req)
			require.Error(t, err)

			var appErr *errors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
			assert.Contains(t, appErr.Details, tt.field)
		})
	}
}

func TestReceipt_StateMachine(t *testing.T) {
	e := newEnv(t)

	doc, err := e.svc.CreateReceipt(e.ctx, service.CreateReceiptRequest{
		WarehouseID: warehouseID,
		Lines:       []service.ReceiptLineRequest{salineLine("SAL-2401", 10, "3.00", "2025-06-30")},
	})
	require.NoError(t, err)

	submitted, err := e.svc.SubmitReceipt(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, submitted.Status)

	_, err = e.svc.SubmitReceipt(e.ctx, doc.ID)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))

	_, err = e.svc.ApproveReceipt(e.ctx, doc.ID)
	require.NoError(t, err)

	_, err = e.svc.ApproveReceipt(e.ctx, doc.ID)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
	assert.Equal(t, int64(10), e.item(t, salineID).TotalQuantity)

	_, err = e.svc.CancelReceipt(e.ctx, doc.ID, service.ReasonRequest{Reason: "duplicate"})
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
}

func TestCancelReceipt(t *testing.T) {
	e := newEnv(t)

	doc, err := e.svc.CreateReceipt(e.ctx, service.CreateReceiptRequest{
		WarehouseID: warehouseID,
		Lines:       []service.ReceiptLineRequest{salineLine("SAL-2401", 10, "3.00", "2025-06-30")},
	})
	require.NoError(t, err)

	_, err = e.svc.CancelReceipt(e.ctx, doc.ID, service.ReasonRequest{})
	assert.True(t, errors.Is(err, errors.ErrValidation))

	cancelled, err := e.svc.CancelReceipt(e.ctx, doc.ID, service.ReasonRequest{Reason: "supplier recalled delivery"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "supplier recalled delivery", *cancelled.CancelReason)

	_, err = e.svc.CancelReceipt(e.ctx, doc.ID, service.ReasonRequest{Reason: "again"})
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))

	_, err = e.svc.ApproveReceipt(e.ctx, doc.ID)
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))

	notes, err := e.svc.DocumentNotes(e.ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NoteCancel, notes[0].Action)

	assert.Equal(t, int64(0), e.item(t, salineID).TotalQuantity)
}

func TestUnapproveReceipt_DisabledByDefault(t *testing.T) {
	e := newEnv(t)
	doc := e.receive(t, salineLine("SAL-2401", 10, "3.00", "2025-06-30"))

	_, err := e.svc.UnapproveReceipt(e.ctx, doc.ID, service.ReasonRequest{Reason: "wrong supplier"})
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))
	assert.Equal(t, int64(10), e.item(t, salineID).TotalQuantity)
}

func allowReceiptUnapprove(o *service.Options) { o.AllowReceiptUnapprove = true }

func TestUnapproveReceipt_ReversesStockAndCost(t *testing.T) {
	e := newEnv(t, allowReceiptUnapprove)

	e.receive(t, salineLine("SAL-2401", 10, "3.00", "2025-06-30"))
	doc := e.receive(t, salineLine("SAL-2402", 10, "5.00", "2025-09-30"))
	require.True(t, e.item(t, salineID).AvgReceiptCost.Equal(dec("4.00")))

	result, err := e.svc.UnapproveReceipt(e.ctx, doc.ID, service.ReasonRequest{Reason: "posted twice"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, result.Status)
	require.Len(t, result.Movements, 1)
	assert.Equal(t, domain.MovementUnapproveReceipt, result.Movements[0].MovementType)
	assert.Equal(t, int64(-10), result.Movements[0].QuantityDelta)

	item := e.item(t, salineID)
	assert.Equal(t, int64(10), item.TotalQuantity)
	assert.True(t, item.AvgReceiptCost.Equal(dec("3.00")), "got %s", item.AvgReceiptCost)

	lot := e.lotByNumber(t, salineID, "SAL-2402")
	assert.Equal(t, int64(0), lot.CurrentQuantity)
	assert.Equal(t, domain.LotDepleted, lot.Status)

	assert.Equal(t, int64(10), e.location(t, shelfAID).Occupied)

	reverted, err := e.svc.GetReceipt(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, reverted.ApprovedBy)
	assert.Nil(t, reverted.Lines[0].LotID)

	_, err = e.svc.UnapproveReceipt(e.ctx, doc.ID, service.ReasonRequest{Reason: "again"})
	assert.True(t, errors.Is(err, errors.ErrInvalidStateTransition))

	e.assertConsistent(t, salineID)
}

func TestUnapproveReceipt_FailsWhenStockConsumed(t *testing.T) {
	e := newEnv(t, allowReceiptUnapprove)
	doc := e.receive(t, salineLine("SAL-2401", 10, "3.00", "2025-06-30"))

	e.issue(t, service.IssuanceLineRequest{ItemID: salineID, RequestedQty: 4})

	_, err := e.svc.UnapproveReceipt(e.ctx, doc.ID, service.ReasonRequest{Reason: "wrong lot"})
	assert.True(t, errors.Is(err, errors.ErrInsufficientStock))

	assert.Equal(t, int64(6), e.item(t, salineID).TotalQuantity)
	reverted, err := e.svc.GetReceipt(e.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, reverted.Status)
}

func TestUnapproveReceipt_RequiresPermission(t *testing.T) {
	e := newEnv(t, allowReceiptUnapprove)
	doc := e.receive(t, salineLine("SAL-2401", 10, "3.00", "2025-06-30"))

	ctx := actor.WithActor(e.ctx, clerk())
	_, err := e.svc.UnapproveReceipt(ctx, doc.ID, service.ReasonRequest{Reason: "wrong lot"})
	assert.True(t, errors.Is(err, errors.ErrForbidden))
}
