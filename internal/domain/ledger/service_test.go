package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/memory"
)

func q(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

func setup(t *testing.T) (*app.Services, *memory.Store) {
	t.Helper()
	backend, store := app.MemoryBackend()
	return app.NewServices(backend, app.DefaultLedgerConfig()), store
}

func createItem(t *testing.T, svc *app.Services, code string, baseline, safety int64) *entity.StockItem {
	t.Helper()
	item := entity.NewStockItem(code, "cat-"+code, q(baseline), q(safety), types.MustMoney("2.50"))
	require.NoError(t, svc.Ledger.CreateItem(context.Background(), item))
	return item
}

func TestService_CreateItem(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()

	item := createItem(t, svc, "BOLT-M8", 100, 10)

	got, err := svc.Ledger.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "BOLT-M8", got.Code)

	dup := entity.NewStockItem("BOLT-M8", "", 0, 0, types.Zero())
	err = svc.Ledger.CreateItem(ctx, dup)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeDuplicate, mustAppErr(t, err).Code)

	invalid := entity.NewStockItem("", "", 0, 0, types.Zero())
	assert.True(t, apperror.IsValidation(svc.Ledger.CreateItem(ctx, invalid)))

	require.Len(t, store.AuditEntries(), 1)
	assert.Equal(t, domain.AuditActionCreate, store.AuditEntries()[0].Action)
}

func TestService_GetQuantities_UnknownItem(t *testing.T) {
	svc, _ := setup(t)

	_, err := svc.Ledger.GetQuantities(context.Background(), id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_GetQuantities_AdvisoryFields(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	item := createItem(t, svc, "NUT-M8", 8, 10)

	level, err := svc.Ledger.GetQuantities(ctx, item.ID)
	require.NoError(t, err)

	assert.Equal(t, q(8), level.OnHand)
	assert.Equal(t, q(8), level.Available)
	assert.True(t, level.BelowSafety)
	assert.Equal(t, "20", level.Valuation.String())

	byCode, err := svc.Ledger.GetQuantitiesByCode(ctx, "NUT-M8")
	require.NoError(t, err)
	assert.Equal(t, level.Quantities, byCode.Quantities)
}

func TestService_RecordReceiptAndAdjustment(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	item := createItem(t, svc, "WASHER", 10, 0)

	_, err := svc.Ledger.RecordReceipt(ctx, item.ID, q(5), "delivery 42")
	require.NoError(t, err)

	_, err = svc.Ledger.RecordAdjustment(ctx, item.ID, entity.DirectionSubtract, q(3), "stocktake")
	require.NoError(t, err)

	level, err := svc.Ledger.GetQuantities(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, q(12), level.OnHand)
	assert.Equal(t, 3, level.Version, "each write bumps the item version")

	_, err = svc.Ledger.RecordReceipt(ctx, item.ID, 0, "")
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Ledger.RecordAdjustment(ctx, item.ID, entity.Direction("sideways"), q(1), "")
	assert.True(t, apperror.IsValidation(err))

	history, err := svc.Ledger.History(ctx, item.ID, ledger.MovementFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), history.TotalCount)

	events := store.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventStockReceived, events[0].EventType)
	assert.Equal(t, domain.EventStockAdjusted, events[1].EventType)
}

func TestService_RetriesConcurrencyConflicts(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	item := createItem(t, svc, "PIN", 0, 0)

	store.InjectConflicts(2)
	_, err := svc.Ledger.RecordReceipt(ctx, item.ID, q(4), "")
	require.NoError(t, err)

	level, err := svc.Ledger.GetQuantities(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, q(4), level.OnHand, "rolled back attempts leave no trace")
}

func TestService_GivesUpAfterMaxRetries(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	item := createItem(t, svc, "CLIP", 0, 0)

	store.InjectConflicts(10)
	_, err := svc.Ledger.RecordReceipt(ctx, item.ID, q(4), "")
	require.Error(t, err)
	assert.True(t, apperror.IsConcurrentModification(err))

	store.InjectConflicts(0)
	level, err := svc.Ledger.GetQuantities(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), level.OnHand)
	assert.Empty(t, store.Events())
}

func TestService_AdjustBaseline(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	item := createItem(t, svc, "SPRING", 10, 2)

	updated, err := svc.Ledger.AdjustBaseline(ctx, item.ID, q(25), q(5), item.Version)
	require.NoError(t, err)
	assert.Equal(t, q(25), updated.BaselineQty)
	assert.Equal(t, item.Version+1, updated.Version)

	_, err = svc.Ledger.AdjustBaseline(ctx, item.ID, q(30), q(5), item.Version)
	assert.True(t, apperror.IsConcurrentModification(err), "stale expected version")

	_, err = svc.Ledger.AdjustBaseline(ctx, item.ID, q(-1), q(5), 0)
	assert.True(t, apperror.IsValidation(err))

	level, err := svc.Ledger.GetQuantities(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, q(25), level.OnHand)
	assert.Equal(t, q(5), level.SafetyStock)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventBaselineChanged, events[0].EventType)
}

func TestService_ListItems(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()
	createItem(t, svc, "B-2", 1, 0)
	createItem(t, svc, "A-1", 1, 0)
	createItem(t, svc, "C-3", 1, 0)

	res, err := svc.Ledger.ListItems(ctx, domain.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalCount)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "A-1", res.Items[0].Code)

	res, err = svc.Ledger.ListItems(ctx, domain.ListFilter{Search: "c-"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "C-3", res.Items[0].Code)
}

func mustAppErr(t *testing.T, err error) *apperror.AppError {
	t.Helper()
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	return appErr
}
