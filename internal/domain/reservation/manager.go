// Package reservation turns order demand into pending issue movements.
//
// A reservation is never edited in place: every change in the desired
// quantity appends a compensating movement with the difference.
package reservation

import (
	"context"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
	"stockledger/pkg/logger"
)

// Manager creates and corrects reservations.
//
// Request and Adjust join the caller's transaction when there is one, so an
// order service can reserve several lines atomically. Otherwise each call runs
// in its own transaction.
type Manager struct {
	ledger *ledger.Service

	// enforceAvailability rejects reservation growth beyond available stock.
	enforceAvailability bool
}

// NewManager creates a reservation manager.
func NewManager(ledgerService *ledger.Service, enforceAvailability bool) *Manager {
	return &Manager{
		ledger:              ledgerService,
		enforceAvailability: enforceAvailability,
	}
}

// CanSatisfy reports whether qty can be freshly promised from the item.
func (m *Manager) CanSatisfy(ctx context.Context, itemID id.ID, qty types.Quantity) (bool, ledger.StockLevel, error) {
	level, err := m.ledger.GetQuantities(ctx, itemID)
	if err != nil {
		return false, ledger.StockLevel{}, err
	}
	return level.Available >= qty, level, nil
}

// Request appends a pending issue/subtract of desired for (item, order).
func (m *Manager) Request(ctx context.Context, itemID, orderID id.ID, desired types.Quantity) (entity.Movement, error) {
	if !desired.IsPositive() {
		return entity.Movement{}, apperror.NewValidation("reservation quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", desired.String())
	}

	var reserved entity.Movement
	err := m.ledger.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		item, q, _, err := m.lock(ctx, itemID)
		if err != nil {
			return err
		}
		if err := m.checkAvailable(item, q, desired); err != nil {
			return err
		}

		mv, err := entity.NewMovement(itemID, &orderID, entity.KindIssue, entity.DirectionSubtract, desired, entity.StatusPending)
		if err != nil {
			return err
		}
		if err := m.ledger.Commit(ctx, item, mv); err != nil {
			return err
		}
		reserved = mv
		return nil
	})
	if err != nil {
		return entity.Movement{}, err
	}

	logger.Debug(ctx, "reservation requested",
		"item_id", itemID,
		"order_id", orderID,
		"quantity", desired)

	return reserved, nil
}

// Adjust moves the net pending reservation of (item, order) to newDesired.
//
// It appends at most one movement: issue/subtract for growth, issue/add for
// shrinkage. A nil movement means the reservation already matched.
// newDesired = 0 unwinds the reservation completely.
func (m *Manager) Adjust(ctx context.Context, itemID, orderID id.ID, newDesired types.Quantity) (*entity.Movement, error) {
	if newDesired.IsNegative() {
		return nil, apperror.NewValidation("reservation quantity must not be negative").
			WithDetail("field", "quantity").
			WithDetail("value", newDesired.String())
	}

	var appended *entity.Movement
	var delta types.Quantity
	err := m.ledger.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		item, q, movements, err := m.lock(ctx, itemID)
		if err != nil {
			return err
		}

		delta = newDesired - ledger.NetReserved(movements, orderID)

		var direction entity.Direction
		switch {
		case delta.IsZero():
			return nil
		case delta.IsPositive():
			if err := m.checkAvailable(item, q, delta); err != nil {
				return err
			}
			direction = entity.DirectionSubtract
		default:
			direction = entity.DirectionAdd
		}

		mv, err := entity.NewMovement(itemID, &orderID, entity.KindIssue, direction, delta.Abs(), entity.StatusPending)
		if err != nil {
			return err
		}
		if err := m.ledger.Commit(ctx, item, mv); err != nil {
			return err
		}
		appended = &mv
		return nil
	})
	if err != nil {
		return nil, err
	}

	if appended != nil {
		logger.Debug(ctx, "reservation adjusted",
			"item_id", itemID,
			"order_id", orderID,
			"delta", delta,
			"target", newDesired)
	}

	return appended, nil
}

func (m *Manager) lock(ctx context.Context, itemID id.ID) (*entity.StockItem, ledger.Quantities, []entity.Movement, error) {
	locked, err := m.ledger.LockItems(ctx, itemID)
	if err != nil {
		return nil, ledger.Quantities{}, nil, err
	}
	item := locked[itemID]
	q, movements, err := m.ledger.Snapshot(ctx, item)
	if err != nil {
		return nil, ledger.Quantities{}, nil, err
	}
	return item, q, movements, nil
}

func (m *Manager) checkAvailable(item *entity.StockItem, q ledger.Quantities, want types.Quantity) error {
	if !m.enforceAvailability || want <= q.Available {
		return nil
	}
	return apperror.NewInsufficientStock(item.ID.String(), want.String(), q.Available.String()).
		WithDetail("code", item.Code)
}
