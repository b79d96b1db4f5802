package order_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/app"
	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/order"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/storage/memory"
)

func q(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

type fixture struct {
	svc   *app.Services
	store *memory.Store
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend, store := app.MemoryBackend()
	return &fixture{
		svc:   app.NewServices(backend, app.DefaultLedgerConfig()),
		store: store,
		ctx:   appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "emp-7"}),
	}
}

func (f *fixture) item(t *testing.T, code string, baseline, safety int64) *entity.StockItem {
	t.Helper()
	item := entity.NewStockItem(code, "", q(baseline), q(safety), types.Zero())
	require.NoError(t, f.svc.Ledger.CreateItem(f.ctx, item))
	return item
}

func (f *fixture) quantities(t *testing.T, itemID id.ID) ledger.Quantities {
	t.Helper()
	level, err := f.svc.Ledger.GetQuantities(f.ctx, itemID)
	require.NoError(t, err)
	return level.Quantities
}

func TestService_Create(t *testing.T) {
	f := newFixture(t)
	a := f.item(t, "DRILL", 10, 0)
	b := f.item(t, "BIT-6", 40, 0)

	doc, err := f.svc.Orders.Create(f.ctx, []order.Line{
		{ItemID: a.ID, Quantity: q(2)},
		{ItemID: b.ID, Quantity: q(15)},
	}, "line 3 maintenance")
	require.NoError(t, err)

	assert.Equal(t, entity.StatusPending, doc.Status)
	assert.True(t, strings.HasPrefix(doc.Number, "WO-"), doc.Number)
	assert.Equal(t, "emp-7", doc.RequestedBy)
	assert.Equal(t, "emp-7", doc.CreatedBy)
	assert.Equal(t, 2, doc.Lines[1].LineNo)

	movements, err := f.svc.Orders.Movements(f.ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.True(t, m.Is(entity.KindIssue, entity.DirectionSubtract, entity.StatusPending))
		assert.Equal(t, "emp-7", m.CreatedBy)
	}

	assert.Equal(t, q(8), f.quantities(t, a.ID).Available)
	assert.Equal(t, q(25), f.quantities(t, b.ID).Available)

	loaded, err := f.svc.Orders.GetByID(f.ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Lines, 2)

	byNumber, err := f.svc.Orders.GetByNumber(f.ctx, doc.Number)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byNumber.ID)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderCreated, events[0].EventType)
}

func TestService_Create_Validation(t *testing.T) {
	f := newFixture(t)
	a := f.item(t, "SAW", 10, 0)

	tests := []struct {
		name  string
		lines []order.Line
	}{
		{"no lines", nil},
		{"zero quantity", []order.Line{{ItemID: a.ID, Quantity: 0}}},
		{"negative quantity", []order.Line{{ItemID: a.ID, Quantity: q(-1)}}},
		{"missing item", []order.Line{{Quantity: q(1)}}},
		{"duplicate item", []order.Line{{ItemID: a.ID, Quantity: q(1)}, {ItemID: a.ID, Quantity: q(2)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Orders.Create(f.ctx, tt.lines, "")
			assert.True(t, apperror.IsValidation(err), "got %v", err)
		})
	}

	_, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: id.New(), Quantity: q(1)}}, "")
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_Create_IsAtomic(t *testing.T) {
	f := newFixture(t)
	a := f.item(t, "TAPE", 10, 0)
	b := f.item(t, "GLUE", 1, 0)

	_, err := f.svc.Orders.Create(f.ctx, []order.Line{
		{ItemID: a.ID, Quantity: q(3)},
		{ItemID: b.ID, Quantity: q(5)},
	}, "")
	require.Error(t, err)

	assert.Equal(t, q(10), f.quantities(t, a.ID).Available, "first line reservation rolled back")

	list, err := f.svc.Orders.List(f.ctx, order.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)
	assert.Empty(t, f.store.Events())
}

func TestService_ScenarioA(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "VALVE", 100, 10)

	doc, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(30)}}, "")
	require.NoError(t, err)
	assert.Equal(t, ledger.Quantities{OnHand: q(100), Reserved: q(30), Available: q(70)}, f.quantities(t, item.ID))

	approved, err := f.svc.Orders.Approve(f.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusApproved, approved.Status)
	assert.NotNil(t, approved.ResolvedAt)
	assert.Equal(t, ledger.Quantities{OnHand: q(70), Reserved: 0, Available: q(70)}, f.quantities(t, item.ID))
}

func TestService_ScenarioD(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "HOSE", 20, 0)

	doc, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(5)}}, "")
	require.NoError(t, err)

	_, err = f.svc.Orders.UpdateLines(f.ctx, doc.ID, []order.Line{{ItemID: item.ID, Quantity: q(3)}})
	require.NoError(t, err)

	movements, err := f.svc.Orders.Movements(f.ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, movements, 2)
	assert.True(t, movements[0].Is(entity.KindIssue, entity.DirectionSubtract, entity.StatusPending))
	assert.Equal(t, q(5), movements[0].Quantity)
	assert.True(t, movements[1].Is(entity.KindIssue, entity.DirectionAdd, entity.StatusPending))
	assert.Equal(t, q(2), movements[1].Quantity)

	_, err = f.svc.Orders.Reject(f.ctx, doc.ID)
	require.NoError(t, err)

	movements, err = f.svc.Orders.Movements(f.ctx, doc.ID)
	require.NoError(t, err)
	for _, m := range movements {
		assert.Equal(t, entity.StatusRejected, m.Status)
		assert.NotNil(t, m.ResolvedAt)
	}

	assert.Equal(t, ledger.Quantities{OnHand: q(20), Reserved: 0, Available: q(20)}, f.quantities(t, item.ID))
}

func TestService_TerminalOrderConflicts(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "FUSE", 10, 0)

	doc, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(4)}}, "")
	require.NoError(t, err)
	_, err = f.svc.Orders.Approve(f.ctx, doc.ID)
	require.NoError(t, err)

	_, err = f.svc.Orders.Reject(f.ctx, doc.ID)
	assert.True(t, apperror.IsStateConflict(err))
	assert.False(t, apperror.IsRetryable(err))

	_, err = f.svc.Orders.Approve(f.ctx, doc.ID)
	assert.True(t, apperror.IsStateConflict(err))

	_, err = f.svc.Orders.UpdateLines(f.ctx, doc.ID, []order.Line{{ItemID: item.ID, Quantity: q(1)}})
	assert.True(t, apperror.IsStateConflict(err))

	assert.True(t, apperror.IsStateConflict(f.svc.Orders.Delete(f.ctx, doc.ID)))

	assert.Equal(t, ledger.Quantities{OnHand: q(6), Reserved: 0, Available: q(6)}, f.quantities(t, item.ID))
}

func TestService_RejectedMovementsNeverReapproved(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "RELAY", 10, 0)

	doc, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(4)}}, "")
	require.NoError(t, err)
	_, err = f.svc.Orders.Reject(f.ctx, doc.ID)
	require.NoError(t, err)

	_, err = f.svc.Orders.Approve(f.ctx, doc.ID)
	require.Error(t, err)

	movements, err := f.svc.Orders.Movements(f.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRejected, movements[0].Status)
}

func TestService_SetStatus_Validation(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "CABLE", 10, 0)

	doc, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(1)}}, "")
	require.NoError(t, err)

	_, err = f.svc.Orders.SetStatus(f.ctx, doc.ID, entity.StatusPending)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.Orders.SetStatus(f.ctx, id.New(), entity.StatusApproved)
	assert.True(t, apperror.IsNotFound(err))

	_, err = order.ParseStatus("approved")
	assert.NoError(t, err)
	_, err = order.ParseStatus("done")
	assert.True(t, apperror.IsValidation(err))
}

func TestService_UpdateLines(t *testing.T) {
	f := newFixture(t)
	a := f.item(t, "SCREW", 100, 0)
	b := f.item(t, "ANCHOR", 100, 0)
	c := f.item(t, "PLUG", 100, 0)

	doc, err := f.svc.Orders.Create(f.ctx, []order.Line{
		{ItemID: a.ID, Quantity: q(10)},
		{ItemID: b.ID, Quantity: q(20)},
	}, "")
	require.NoError(t, err)

	updated, err := f.svc.Orders.UpdateLines(f.ctx, doc.ID, []order.Line{
		{ItemID: a.ID, Quantity: q(25)},
		{ItemID: c.ID, Quantity: q(7)},
	})
	require.NoError(t, err)
	assert.Len(t, updated.Lines, 2)
	assert.Equal(t, doc.Version+1, updated.Version)

	assert.Equal(t, q(25), f.quantities(t, a.ID).Reserved)
	assert.Equal(t, types.Quantity(0), f.quantities(t, b.ID).Reserved, "removed line fully unwound")
	assert.Equal(t, q(7), f.quantities(t, c.ID).Reserved)

	loaded, err := f.svc.Orders.GetByID(f.ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, loaded.Lines, 2)
	assert.Equal(t, c.ID, loaded.Lines[1].ItemID)

	_, err = f.svc.Orders.Approve(f.ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, ledger.Quantities{OnHand: q(75), Reserved: 0, Available: q(75)}, f.quantities(t, a.ID))
	assert.Equal(t, ledger.Quantities{OnHand: q(100), Reserved: 0, Available: q(100)}, f.quantities(t, b.ID),
		"approved compensation nets to zero")
	assert.Equal(t, q(93), f.quantities(t, c.ID).OnHand)
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "BELT", 10, 0)

	doc, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(6)}}, "")
	require.NoError(t, err)

	require.NoError(t, f.svc.Orders.Delete(f.ctx, doc.ID))
	assert.Equal(t, q(10), f.quantities(t, item.ID).Available)

	loaded, err := f.svc.Orders.GetByID(f.ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, loaded.DeletionMark)

	list, err := f.svc.Orders.List(f.ctx, order.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, list.TotalCount)

	list, err = f.svc.Orders.List(f.ctx, order.ListFilter{ListFilter: domain.ListFilter{IncludeDeleted: true}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.TotalCount)

	_, err = f.svc.Orders.Approve(f.ctx, doc.ID)
	assert.True(t, apperror.IsStateConflict(err))
}

func TestService_List(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "LAMP", 100, 0)

	first, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(1)}}, "")
	require.NoError(t, err)
	_, err = f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(1)}}, "")
	require.NoError(t, err)
	_, err = f.svc.Orders.Approve(f.ctx, first.ID)
	require.NoError(t, err)

	approved := entity.StatusApproved
	list, err := f.svc.Orders.List(f.ctx, order.ListFilter{Status: &approved})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, first.ID, list.Items[0].ID)

	list, err = f.svc.Orders.List(f.ctx, order.ListFilter{ItemID: &item.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.TotalCount)
}

func TestService_ApproveRetriesConflicts(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "GASKET", 10, 0)

	doc, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(3)}}, "")
	require.NoError(t, err)

	f.store.InjectConflicts(1)
	_, err = f.svc.Orders.Approve(f.ctx, doc.ID)
	require.NoError(t, err)

	assert.Equal(t, q(7), f.quantities(t, item.ID).OnHand)

	var approvals int
	for _, e := range f.store.Events() {
		if e.EventType == domain.EventOrderApproved {
			approvals++
		}
	}
	assert.Equal(t, 1, approvals, "the failed attempt left no event behind")
}

func TestService_Create_UsesNumerator(t *testing.T) {
	backend, _ := app.MemoryBackend()
	var gotPrefix string
	backend.Numerator = &numerator.MockGenerator{
		GetNextNumberFunc: func(_ context.Context, cfg numerator.Config, _ *numerator.Options, _ time.Time) (string, error) {
			gotPrefix = cfg.Prefix
			return "WO-TEST-00042", nil
		},
	}
	svc := app.NewServices(backend, app.DefaultLedgerConfig())
	ctx := context.Background()

	item := entity.NewStockItem("SPRING", "", q(10), 0, types.Zero())
	require.NoError(t, svc.Ledger.CreateItem(ctx, item))

	doc, err := svc.Orders.Create(ctx, []order.Line{{ItemID: item.ID, Quantity: q(1)}}, "")
	require.NoError(t, err)
	assert.Equal(t, order.NumberPrefix, gotPrefix)
	assert.Equal(t, "WO-TEST-00042", doc.Number)

	byNumber, err := svc.Orders.GetByNumber(ctx, "WO-TEST-00042")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byNumber.ID)
}

func TestService_Create_NumeratorFailure(t *testing.T) {
	backend, _ := app.MemoryBackend()
	backend.Numerator = &numerator.MockGenerator{
		GetNextNumberFunc: func(context.Context, numerator.Config, *numerator.Options, time.Time) (string, error) {
			return "", errors.New("sequence unavailable")
		},
	}
	svc := app.NewServices(backend, app.DefaultLedgerConfig())
	ctx := context.Background()

	item := entity.NewStockItem("SPRING", "", q(10), 0, types.Zero())
	require.NoError(t, svc.Ledger.CreateItem(ctx, item))

	_, err := svc.Orders.Create(ctx, []order.Line{{ItemID: item.ID, Quantity: q(1)}}, "")
	require.Error(t, err)

	level, err := svc.Ledger.GetQuantities(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), level.Reserved)
}

func TestService_Hooks(t *testing.T) {
	f := newFixture(t)
	item := f.item(t, "GASKET", 20, 0)

	var resolved []entity.Status
	f.svc.Orders.Hooks().OnAfterUpdate(func(_ context.Context, o *order.Order) error {
		resolved = append(resolved, o.Status)
		return errors.New("notification channel down")
	})
	f.svc.Orders.Hooks().OnBeforeCreate(func(_ context.Context, o *order.Order) error {
		if o.Comment == "blocked" {
			return apperror.NewValidation("blocked by hook")
		}
		return nil
	})

	_, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(1)}}, "blocked")
	assert.True(t, apperror.IsValidation(err), err)
	assert.Equal(t, q(20), f.quantities(t, item.ID).Available)

	doc, err := f.svc.Orders.Create(f.ctx, []order.Line{{ItemID: item.ID, Quantity: q(1)}}, "")
	require.NoError(t, err)

	// A failing after-update hook is logged, the approval stands.
	_, err = f.svc.Orders.Approve(f.ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, []entity.Status{entity.StatusApproved}, resolved)
}
