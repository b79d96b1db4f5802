package features

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cucumber/godog"

	"stockledger/internal/app"
	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/documents/order"
)

type ledgerTestContext struct {
	ctx      context.Context
	svc      *app.Services
	items    map[string]*entity.StockItem
	orders   map[string]*order.Order
	returned types.Quantity
	err      error
}

func (c *ledgerTestContext) reset() {
	backend, _ := app.MemoryBackend()
	c.ctx = appctx.WithUser(context.Background(), &appctx.UserContext{UserID: "emp-1"})
	c.svc = app.NewServices(backend, app.DefaultLedgerConfig())
	c.items = make(map[string]*entity.StockItem)
	c.orders = make(map[string]*order.Order)
	c.returned = 0
	c.err = nil
}

func qty(v int) types.Quantity { return types.NewQuantityFromInt(int64(v)) }

func (c *ledgerTestContext) item(code string) (*entity.StockItem, error) {
	item, ok := c.items[code]
	if !ok {
		return nil, fmt.Errorf("unknown item %q", code)
	}
	return item, nil
}

func (c *ledgerTestContext) order(name string) (*order.Order, error) {
	doc, ok := c.orders[name]
	if !ok {
		return nil, fmt.Errorf("unknown order %q", name)
	}
	return doc, nil
}

func (c *ledgerTestContext) aStockItemWithBaselineAndSafetyStock(code string, baseline, safety int) error {
	item := entity.NewStockItem(code, "", qty(baseline), qty(safety), types.Zero())
	if err := c.svc.Ledger.CreateItem(c.ctx, item); err != nil {
		return err
	}
	c.items[code] = item
	return nil
}

func (c *ledgerTestContext) orderRequestsOf(name string, quantity int, code string) error {
	item, err := c.item(code)
	if err != nil {
		return err
	}
	doc, err := c.svc.Orders.Create(c.ctx, []order.Line{{ItemID: item.ID, Quantity: qty(quantity)}}, "")
	c.err = err
	if err == nil {
		c.orders[name] = doc
	}
	return nil
}

func (c *ledgerTestContext) theLineOfOrderForIsChangedTo(name, code string, quantity int) error {
	doc, err := c.order(name)
	if err != nil {
		return err
	}
	item, err := c.item(code)
	if err != nil {
		return err
	}
	_, c.err = c.svc.Orders.UpdateLines(c.ctx, doc.ID, []order.Line{{ItemID: item.ID, Quantity: qty(quantity)}})
	return c.err
}

func (c *ledgerTestContext) orderIsApproved(name string) error {
	doc, err := c.order(name)
	if err != nil {
		return err
	}
	_, c.err = c.svc.Orders.Approve(c.ctx, doc.ID)
	return c.err
}

func (c *ledgerTestContext) orderIsRejected(name string) error {
	doc, err := c.order(name)
	if err != nil {
		return err
	}
	_, c.err = c.svc.Orders.Reject(c.ctx, doc.ID)
	return nil
}

func (c *ledgerTestContext) areReturnedAgainstOrder(quantity int, code, name string) error {
	doc, err := c.order(name)
	if err != nil {
		return err
	}
	item, err := c.item(code)
	if err != nil {
		return err
	}
	result, err := c.svc.Returns.SubmitReturn(c.ctx, doc.ID, item.ID, qty(quantity))
	c.err = err
	c.returned = result.Returned
	return nil
}

func (c *ledgerTestContext) areAcceptedAsReturned(quantity int) error {
	if c.err != nil {
		return c.err
	}
	if c.returned != qty(quantity) {
		return fmt.Errorf("expected %s returned, got %s", qty(quantity), c.returned)
	}
	return nil
}

func (c *ledgerTestContext) hasQuantities(code string, onHand, reserved, available int) error {
	item, err := c.item(code)
	if err != nil {
		return err
	}
	level, err := c.svc.Ledger.GetQuantities(c.ctx, item.ID)
	if err != nil {
		return err
	}
	if level.OnHand != qty(onHand) || level.Reserved != qty(reserved) || level.Available != qty(available) {
		return fmt.Errorf("expected %d/%d/%d, got %s/%s/%s",
			onHand, reserved, available, level.OnHand, level.Reserved, level.Available)
	}
	return nil
}

func (c *ledgerTestContext) orderHasStatus(name, status string) error {
	doc, err := c.order(name)
	if err != nil {
		return err
	}
	stored, err := c.svc.Orders.GetByID(c.ctx, doc.ID)
	if err != nil {
		return err
	}
	if string(stored.Status) != status {
		return fmt.Errorf("expected status %q, got %q", status, stored.Status)
	}
	return nil
}

func (c *ledgerTestContext) orderHasPendingMovements(name string, count int) error {
	doc, err := c.order(name)
	if err != nil {
		return err
	}
	movements, err := c.svc.Orders.Movements(c.ctx, doc.ID)
	if err != nil {
		return err
	}
	pending := 0
	for _, m := range movements {
		if m.Status == entity.StatusPending {
			pending++
		}
	}
	if pending != count {
		return fmt.Errorf("expected %d pending movements, got %d", count, pending)
	}
	return nil
}

func (c *ledgerTestContext) everyMovementOfOrderIs(name, status string) error {
	doc, err := c.order(name)
	if err != nil {
		return err
	}
	movements, err := c.svc.Orders.Movements(c.ctx, doc.ID)
	if err != nil {
		return err
	}
	if len(movements) == 0 {
		return errors.New("order has no movements")
	}
	for _, m := range movements {
		if string(m.Status) != status {
			return fmt.Errorf("movement %s is %q, expected %q", m.ID, m.Status, status)
		}
	}
	return nil
}

func (c *ledgerTestContext) theRequestFailsWith(code string) error {
	if c.err == nil {
		return errors.New("expected an error, got none")
	}
	appErr, ok := apperror.AsAppError(c.err)
	if !ok {
		return fmt.Errorf("expected an application error, got %v", c.err)
	}
	if appErr.Code != code {
		return fmt.Errorf("expected code %q, got %q", code, appErr.Code)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &ledgerTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^a stock item "([^"]*)" with baseline (\d+) and safety stock (\d+)$`, tc.aStockItemWithBaselineAndSafetyStock)

	// When steps
	ctx.Step(`^order "([^"]*)" requests (\d+) of "([^"]*)"$`, tc.orderRequestsOf)
	ctx.Step(`^the line of order "([^"]*)" for "([^"]*)" is changed to (\d+)$`, tc.theLineOfOrderForIsChangedTo)
	ctx.Step(`^order "([^"]*)" is approved$`, tc.orderIsApproved)
	ctx.Step(`^order "([^"]*)" is rejected$`, tc.orderIsRejected)
	ctx.Step(`^(\d+) of "([^"]*)" are returned against order "([^"]*)"$`, tc.areReturnedAgainstOrder)

	// Then steps
	ctx.Step(`^"([^"]*)" has onHand (\d+), reserved (\d+) and available (\d+)$`, tc.hasQuantities)
	ctx.Step(`^order "([^"]*)" has status "([^"]*)"$`, tc.orderHasStatus)
	ctx.Step(`^order "([^"]*)" has (\d+) pending movements$`, tc.orderHasPendingMovements)
	ctx.Step(`^every movement of order "([^"]*)" is "([^"]*)"$`, tc.everyMovementOfOrderIs)
	ctx.Step(`^(\d+) are accepted as returned$`, tc.areAcceptedAsReturned)
	ctx.Step(`^the request fails with "([^"]*)"$`, tc.theRequestFailsWith)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"ledger.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
