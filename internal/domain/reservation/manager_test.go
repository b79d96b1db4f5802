package reservation_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app"
	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

func q(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

func setup(t *testing.T, enforce bool) (*app.Services, *entity.StockItem) {
	t.Helper()
	backend, _ := app.MemoryBackend()
	cfg := app.DefaultLedgerConfig()
	cfg.EnforceAvailability = enforce
	svc := app.NewServices(backend, cfg)

	item := entity.NewStockItem("GEAR-12", "", q(50), q(5), types.Zero())
	require.NoError(t, svc.Ledger.CreateItem(context.Background(), item))
	return svc, item
}

func quantities(t *testing.T, svc *app.Services, itemID id.ID) ledger.Quantities {
	t.Helper()
	level, err := svc.Ledger.GetQuantities(context.Background(), itemID)
	require.NoError(t, err)
	return level.Quantities
}

func TestManager_ScenarioB(t *testing.T) {
	svc, item := setup(t, true)
	ctx := context.Background()
	orderX := id.New()

	_, err := svc.Reservations.Request(ctx, item.ID, orderX, q(20))
	require.NoError(t, err)

	mv, err := svc.Reservations.Adjust(ctx, item.ID, orderX, q(35))
	require.NoError(t, err)
	require.NotNil(t, mv)
	assert.True(t, mv.Is(entity.KindIssue, entity.DirectionSubtract, entity.StatusPending))
	assert.Equal(t, q(15), mv.Quantity)

	got := quantities(t, svc, item.ID)
	assert.Equal(t, q(50), got.OnHand)
	assert.Equal(t, q(35), got.Reserved)
	assert.Equal(t, q(15), got.Available)
}

func TestManager_AdjustDown(t *testing.T) {
	svc, item := setup(t, true)
	ctx := context.Background()
	order := id.New()

	_, err := svc.Reservations.Request(ctx, item.ID, order, q(20))
	require.NoError(t, err)

	mv, err := svc.Reservations.Adjust(ctx, item.ID, order, q(12))
	require.NoError(t, err)
	require.NotNil(t, mv)
	assert.True(t, mv.Is(entity.KindIssue, entity.DirectionAdd, entity.StatusPending))
	assert.Equal(t, q(8), mv.Quantity)
	assert.Equal(t, q(12), quantities(t, svc, item.ID).Reserved)

	mv, err = svc.Reservations.Adjust(ctx, item.ID, order, q(12))
	require.NoError(t, err)
	assert.Nil(t, mv, "no movement when nothing changes")

	mv, err = svc.Reservations.Adjust(ctx, item.ID, order, 0)
	require.NoError(t, err)
	require.NotNil(t, mv)
	assert.Equal(t, q(12), mv.Quantity)

	got := quantities(t, svc, item.ID)
	assert.Equal(t, types.Quantity(0), got.Reserved)
	assert.Equal(t, q(50), got.Available)

	movements, err := svc.Ledger.OrderMovements(ctx, order)
	require.NoError(t, err)
	assert.Len(t, movements, 3, "corrections are appended, never rewritten")
	assert.Equal(t, q(20), movements[0].Quantity)
}

func TestManager_AdjustIsScopedToOrder(t *testing.T) {
	svc, item := setup(t, true)
	ctx := context.Background()
	a, b := id.New(), id.New()

	_, err := svc.Reservations.Request(ctx, item.ID, a, q(10))
	require.NoError(t, err)

	mv, err := svc.Reservations.Adjust(ctx, item.ID, b, q(4))
	require.NoError(t, err)
	require.NotNil(t, mv)
	assert.Equal(t, q(4), mv.Quantity)
	assert.Equal(t, q(14), quantities(t, svc, item.ID).Reserved)
}

func TestManager_Validation(t *testing.T) {
	svc, item := setup(t, true)
	ctx := context.Background()

	_, err := svc.Reservations.Request(ctx, item.ID, id.New(), 0)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Reservations.Adjust(ctx, item.ID, id.New(), q(-1))
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Reservations.Request(ctx, id.New(), id.New(), q(1))
	assert.True(t, apperror.IsNotFound(err))
}

func TestManager_EnforcesAvailability(t *testing.T) {
	svc, item := setup(t, true)
	ctx := context.Background()
	order := id.New()

	_, err := svc.Reservations.Request(ctx, item.ID, order, q(51))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)

	_, err = svc.Reservations.Request(ctx, item.ID, order, q(50))
	require.NoError(t, err)

	_, err = svc.Reservations.Adjust(ctx, item.ID, order, q(51))
	require.Error(t, err)

	ok, level, err := svc.Reservations.CanSatisfy(ctx, item.ID, q(1))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, types.Quantity(0), level.Available)
}

func TestManager_OverbookingAllowedWhenNotEnforced(t *testing.T) {
	svc, item := setup(t, false)
	ctx := context.Background()

	_, err := svc.Reservations.Request(ctx, item.ID, id.New(), q(80))
	require.NoError(t, err)

	got := quantities(t, svc, item.ID)
	assert.Equal(t, q(80), got.Reserved)
	assert.Equal(t, types.Quantity(0), got.Available)
}

func TestManager_ConcurrentRequestsSerializePerItem(t *testing.T) {
	svc, item := setup(t, true)
	ctx := context.Background()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		refused  int
	)
	for i := 0; i < 80; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Reservations.Request(ctx, item.ID, id.New(), q(1))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				refused++
				return
			}
			accepted++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, accepted)
	assert.Equal(t, 30, refused)

	got := quantities(t, svc, item.ID)
	assert.Equal(t, q(50), got.Reserved)
	assert.Equal(t, types.Quantity(0), got.Available)
}
