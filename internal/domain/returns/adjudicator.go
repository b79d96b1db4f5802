// Package returns books items brought back against an approved order.
package returns

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/order"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// Adjudicator caps returns at what the order actually consumed.
type Adjudicator struct {
	orders order.Repository
	ledger *ledger.Service
	events domain.EventPublisher
	audit  domain.AuditLogger
}

// NewAdjudicator creates a return adjudicator.
func NewAdjudicator(
	orders order.Repository,
	ledgerService *ledger.Service,
	events domain.EventPublisher,
	auditLog domain.AuditLogger,
) *Adjudicator {
	if events == nil {
		events = domain.NopPublisher{}
	}
	if auditLog == nil {
		auditLog = domain.NopAudit{}
	}
	return &Adjudicator{
		orders: orders,
		ledger: ledgerService,
		events: events,
		audit:  auditLog,
	}
}

// Result is the outcome of a submitted return.
type Result struct {
	OrderID   id.ID           `json:"orderId"`
	ItemID    id.ID           `json:"itemId"`
	Requested types.Quantity  `json:"requested"`
	Returned  types.Quantity  `json:"returned"`
	Truncated bool            `json:"truncated"`
	Movement  entity.Movement `json:"movement"`
}

// ComputeReturnable returns borrowed minus approved returns for (order, item),
// floored at zero.
func (a *Adjudicator) ComputeReturnable(ctx context.Context, orderID, itemID id.ID) (types.Quantity, error) {
	doc, err := a.orders.GetByID(ctx, orderID)
	if err != nil {
		return 0, err
	}
	item, err := a.ledger.GetItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	_, movements, err := a.ledger.Snapshot(ctx, item)
	if err != nil {
		return 0, err
	}
	return maxReturnable(movements, doc.ID), nil
}

// SubmitReturn books min(requested, returnable) as an approved return/add
// movement and reports how much was actually accepted. Nothing left to
// return is a state conflict.
func (a *Adjudicator) SubmitReturn(ctx context.Context, orderID, itemID id.ID, requested types.Quantity) (Result, error) {
	if !requested.IsPositive() {
		return Result{}, apperror.NewValidation("return quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", requested.String())
	}

	var result Result
	err := tx.Retry(ctx, a.ledger.TxManager(), a.ledger.RetryPolicy(), func(ctx context.Context) error {
		doc, err := a.orders.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if doc.Status != entity.StatusApproved {
			return apperror.NewStateConflict("order", orderID.String(), string(doc.Status))
		}

		lines, err := a.orders.GetLines(ctx, orderID)
		if err != nil {
			return err
		}
		doc.Lines = lines
		if !doc.HasItem(itemID) {
			return apperror.NewValidation("item is not part of the order").
				WithDetail("order_id", orderID.String()).
				WithDetail("item_id", itemID.String())
		}

		locked, err := a.ledger.LockItems(ctx, itemID)
		if err != nil {
			return err
		}
		item := locked[itemID]

		_, movements, err := a.ledger.Snapshot(ctx, item)
		if err != nil {
			return err
		}

		actual := types.MinQuantity(requested, maxReturnable(movements, orderID))
		if !actual.IsPositive() {
			return apperror.NewAlreadyReturned(orderID.String(), itemID.String())
		}

		mv, err := entity.NewMovement(itemID, &orderID, entity.KindReturn, entity.DirectionAdd, actual, entity.StatusApproved)
		if err != nil {
			return err
		}
		if err := a.ledger.Commit(ctx, item, mv); err != nil {
			return err
		}

		result = Result{
			OrderID:   orderID,
			ItemID:    itemID,
			Requested: requested,
			Returned:  actual,
			Truncated: actual < requested,
			Movement:  mv,
		}

		if err := a.audit.LogChange(ctx, domain.AggregateOrder, orderID, domain.AuditActionReturn, map[string]any{
			"itemId":    itemID,
			"requested": requested,
			"returned":  actual,
		}); err != nil {
			return err
		}

		return a.events.Publish(ctx, domain.DomainEvent{
			AggregateType: domain.AggregateOrder,
			AggregateID:   orderID,
			EventType:     domain.EventReturnSubmitted,
			Payload:       result,
		})
	})
	if err != nil {
		return Result{}, err
	}

	logger.Info(ctx, "return submitted",
		"order_id", orderID,
		"item_id", itemID,
		"requested", requested,
		"returned", result.Returned)

	return result, nil
}

func maxReturnable(movements []entity.Movement, orderID id.ID) types.Quantity {
	return types.MaxQuantity(ledger.Borrowed(movements, orderID)-ledger.Returned(movements, orderID), 0)
}
