package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/medflow/medflow-warehouse/internal/warehouse/domain"
	"github.com/medflow/medflow-warehouse/internal/warehouse/repository"
	"github.com/medflow/medflow-warehouse/internal/warehouse/service"
	"github.com/medflow/medflow-warehouse/pkg/actor"
	"github.com/medflow/medflow-warehouse/pkg/logger"
	"github.com/medflow/medflow-warehouse/pkg/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	ctx := context.Background()

	if !testing.Short() {
		var err error
		suite, err = testutil.NewIntegrationSuite(ctx)
		if err != nil {
			log.Printf("integration tests disabled: %v", err)
			suite = nil
		}
	}

	code := m.Run()
	suite.Cleanup(ctx)
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

// tickClock advances one second per reading so ledger order is stable.
type tickClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type pgEnv struct {
	ctx   context.Context
	svc   *service.WarehouseService
	store *repository.Store
	items []domain.ItemDefinition
	locs  []*domain.Location
}

func newPGEnv(t *testing.T) *pgEnv {
	t.Helper()
	suite.Require(t)
	suite.Reset(t)

	store := repository.NewStore(suite.DB)
	svc := service.NewWarehouseService(store, repository.NewPostgresSequencer(suite.DB), &tickClock{now: time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)}, nil, service.Options{
		NearExpiryWindow: 90 * 24 * time.Hour,
		MaxRetries:       5,
		RetryDelay:       5 * time.Millisecond,
	}, logger.Nop())

	env := &pgEnv{
		ctx: actor.WithActor(context.Background(), &actor.Actor{
			ID:          "7e0f5d1a-0000-4000-8000-000000000001",
			Name:        "Head Pharmacist",
			Permissions: []string{"warehouse.*"},
		}),
		svc:   svc,
		store: store,
	}

	fixtures := testutil.NewFixtureFactory()
	def := fixtures.ItemDefinition()
	_, err := svc.UpsertItemDefinition(env.ctx, def)
	require.NoError(t, err)
	env.items = append(env.items, def)

	for _, capacity := range []int64{100, 50} {
		loc := fixtures.Location(capacity)
		_, err := svc.UpsertLocation(env.ctx, service.LocationRequest{
			ID: loc.ID, WarehouseID: loc.WarehouseID, Code: loc.Code, Name: loc.Name, Capacity: loc.Capacity,
		})
		require.NoError(t, err)
		env.locs = append(env.locs, loc)
	}
	return env
}

func (e *pgEnv) receive(t *testing.T, lot, expiry string, qty int64, cost string, loc *domain.Location) {
	t.Helper()
	exp, err := service.ParseDate(expiry)
	require.NoError(t, err)

	doc, err := e.svc.CreateReceipt(e.ctx, service.CreateReceiptRequest{
		WarehouseID: "wh-main",
		Lines: []service.ReceiptLineRequest{{
			ItemID: e.items[0].ID, LotNumber: lot, LocationID: loc.ID, Quantity: qty,
			UnitCost: decimal.RequireFromString(cost), ExpiryDate: &service.Date{Time: exp},
		}},
	})
	require.NoError(t, err)
	_, err = e.svc.ApproveReceipt(e.ctx, doc.ID)
	require.NoError(t, err)
}

func (e *pgEnv) issue(t *testing.T, qty int64) (*domain.IssuanceDocument, error) {
	t.Helper()
	doc, err := e.svc.CreateIssuance(e.ctx, service.CreateIssuanceRequest{
		DepartmentID: "dept-icu",
		WarehouseID:  "wh-main",
		Lines:        []service.IssuanceLineRequest{{ItemID: e.items[0].ID, RequestedQty: qty}},
	})
	require.NoError(t, err)
	_, err = e.svc.ApproveIssuance(e.ctx, doc.ID)
	return doc, err
}

func (e *pgEnv) assertConsistent(t *testing.T) {
	t.Helper()
	rec, err := e.svc.ReconcileItem(e.ctx, e.items[0].ID)
	require.NoError(t, err)
	assert.True(t, rec.Consistent, "ledger and projections diverged: %+v", rec)
}

func TestPostgres_FEFOIssueAndUnapprove(t *testing.T) {
	env := newPGEnv(t)
	env.receive(t, "L2", "2025-06-30", 20, "4.00", env.locs[1])
	env.receive(t, "L1", "2025-03-31", 5, "3.00", env.locs[0])

	doc, err := env.issue(t, 7)
	require.NoError(t, err)

	doc, err = env.svc.GetIssuance(env.ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, doc.Allocations, 2)
	assert.Equal(t, int64(5), doc.Allocations[0].Quantity)
	assert.Equal(t, int64(2), doc.Allocations[1].Quantity)
	assert.True(t, doc.Lines[0].UnitCost.Equal(decimal.RequireFromString("3.29")), "got %s", doc.Lines[0].UnitCost)

	item, err := env.svc.GetItem(env.ctx, env.items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(18), item.TotalQuantity)
	env.assertConsistent(t)

	_, err = env.svc.UnapproveIssuance(env.ctx, doc.ID, service.ReasonRequest{Reason: "wrong department"})
	require.NoError(t, err)

	item, err = env.svc.GetItem(env.ctx, env.items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), item.TotalQuantity)

	doc, err = env.svc.GetIssuance(env.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, doc.Status)
	assert.Empty(t, doc.Allocations)
	env.assertConsistent(t)

	notes, err := env.svc.DocumentNotes(env.ctx, doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, notes)
	assert.Equal(t, domain.NoteUnapprove, notes[len(notes)-1].Action)
}

func TestPostgres_ShortfallLeavesNoTrace(t *testing.T) {
	env := newPGEnv(t)
	env.receive(t, "L1", "2025-03-31", 5, "3.00", env.locs[0])

	doc, err := env.issue(t, 6)
	testutil.AssertAppError(t, err, "INSUFFICIENT_STOCK")

	movements, err := env.svc.QueryStockMovements(env.ctx, env.items[0].ID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, movements, 1)

	doc, err = env.svc.GetIssuance(env.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, doc.Status)
}

func TestPostgres_ConcurrentApprovalsNeverOversell(t *testing.T) {
	env := newPGEnv(t)
	env.receive(t, "L1", "2025-03-31", 10, "3.00", env.locs[0])

	var ids []string
	for i := 0; i < 2; i++ {
		doc, err := env.svc.CreateIssuance(env.ctx, service.CreateIssuanceRequest{
			DepartmentID: "dept-icu",
			WarehouseID:  "wh-main",
			Lines:        []service.IssuanceLineRequest{{ItemID: env.items[0].ID, RequestedQty: 6}},
		})
		require.NoError(t, err)
		ids = append(ids, doc.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = env.svc.ApproveIssuance(env.ctx, id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)

	item, err := env.svc.GetItem(env.ctx, env.items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), item.TotalQuantity)
	env.assertConsistent(t)
}

func TestPostgres_LedgerIsAppendOnly(t *testing.T) {
	env := newPGEnv(t)
	env.receive(t, "L1", "2025-03-31", 5, "3.00", env.locs[0])

	_, err := suite.RawDB.Exec(`UPDATE stock_movements SET quantity_delta = 50`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "append-only")

	_, err = suite.RawDB.Exec(`DELETE FROM stock_movements`)
	require.Error(t, err)
}

func TestPostgres_DocumentCodesIncrease(t *testing.T) {
	suite.Require(t)
	suite.Reset(t)

	seq := repository.NewPostgresSequencer(suite.DB)
	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

	first, err := seq.Next(context.Background(), "GR", day)
	require.NoError(t, err)
	second, err := seq.Next(context.Background(), "GR", day)
	require.NoError(t, err)
	other, err := seq.Next(context.Background(), "GI", day)
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)
	assert.Equal(t, int64(1), other)
}
