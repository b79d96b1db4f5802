package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
	"stockledger/pkg/logger"
)

// StockLevel is the read model returned by GetQuantities.
type StockLevel struct {
	ItemID id.ID  `json:"itemId"`
	Code   string `json:"code"`
	Quantities

	// SafetyStock and BelowSafety are advisory; nothing is blocked by them.
	SafetyStock types.Quantity `json:"safetyStock"`
	BelowSafety bool           `json:"belowSafety"`

	// Valuation is onHand x unitPrice.
	Valuation types.Money `json:"valuation"`

	Version int `json:"version"`
}

// Service is the single entry point to stock state.
// Reads fold the movement log on every call; writes lock the item aggregate,
// append movements and bump the item version in one transaction.
type Service struct {
	items     ItemRepository
	movements MovementRepository
	txManager tx.Manager
	retry     tx.RetryPolicy
	events    domain.EventPublisher
	audit     domain.AuditLogger
}

// NewService creates a new ledger service.
func NewService(
	items ItemRepository,
	movements MovementRepository,
	txManager tx.Manager,
	retry tx.RetryPolicy,
	events domain.EventPublisher,
	auditLog domain.AuditLogger,
) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	if auditLog == nil {
		auditLog = domain.NopAudit{}
	}
	return &Service{
		items:     items,
		movements: movements,
		txManager: txManager,
		retry:     retry,
		events:    events,
		audit:     auditLog,
	}
}

// TxManager returns the transaction manager writes run in.
func (s *Service) TxManager() tx.Manager {
	return s.txManager
}

// RetryPolicy returns the policy used for conflicting writes.
func (s *Service) RetryPolicy() tx.RetryPolicy {
	return s.retry
}

// --- Reads ---

// GetQuantities derives onHand, reserved and available for an item.
func (s *Service) GetQuantities(ctx context.Context, itemID id.ID) (StockLevel, error) {
	var level StockLevel
	err := s.view(ctx, func(ctx context.Context) error {
		item, err := s.items.GetByID(ctx, itemID)
		if err != nil {
			return err
		}
		level, err = s.level(ctx, item)
		return err
	})
	return level, err
}

// GetQuantitiesByCode is GetQuantities addressed by item code.
func (s *Service) GetQuantitiesByCode(ctx context.Context, code string) (StockLevel, error) {
	var level StockLevel
	err := s.view(ctx, func(ctx context.Context) error {
		item, err := s.items.GetByCode(ctx, code)
		if err != nil {
			return err
		}
		level, err = s.level(ctx, item)
		return err
	})
	return level, err
}

// view runs a multi-statement read in one snapshot when the transaction
// manager supports it.
func (s *Service) view(ctx context.Context, fn func(ctx context.Context) error) error {
	if ro, ok := s.txManager.(tx.ReadOnlyManager); ok {
		return ro.ReadOnly(ctx, fn)
	}
	return fn(ctx)
}

func (s *Service) level(ctx context.Context, item *entity.StockItem) (StockLevel, error) {
	q, _, err := s.Snapshot(ctx, item)
	if err != nil {
		return StockLevel{}, err
	}
	return StockLevel{
		ItemID:      item.ID,
		Code:        item.Code,
		Quantities:  q,
		SafetyStock: item.SafetyStock,
		BelowSafety: q.Available < item.SafetyStock,
		Valuation:   q.OnHand.MulPrice(item.UnitPrice),
		Version:     item.Version,
	}, nil
}

// Snapshot loads the movements of item and reduces them.
// The movements are returned so callers can compute per-order aggregates
// from the same view.
func (s *Service) Snapshot(ctx context.Context, item *entity.StockItem) (Quantities, []entity.Movement, error) {
	movements, err := s.movements.ListByItem(ctx, item.ID)
	if err != nil {
		return Quantities{}, nil, fmt.Errorf("list movements: %w", err)
	}
	return Reduce(item.BaselineQty, movements), movements, nil
}

// History returns the movement log of an item.
func (s *Service) History(ctx context.Context, itemID id.ID, filter MovementFilter) (domain.ListResult[entity.Movement], error) {
	if _, err := s.items.GetByID(ctx, itemID); err != nil {
		return domain.ListResult[entity.Movement]{}, err
	}
	return s.movements.History(ctx, itemID, filter)
}

// GetItem returns a stock item.
func (s *Service) GetItem(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	return s.items.GetByID(ctx, itemID)
}

// ListItems returns stock items.
func (s *Service) ListItems(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.StockItem], error) {
	return s.items.List(ctx, filter)
}

// OrderMovements returns every movement linked to an order.
func (s *Service) OrderMovements(ctx context.Context, orderID id.ID) ([]entity.Movement, error) {
	return s.movements.ListByOrder(ctx, orderID)
}

// --- Write building blocks (must run inside a transaction) ---

// LockItems locks the given items in ascending id order and returns them by id.
// A fixed lock order keeps multi-item writers from deadlocking each other.
func (s *Service) LockItems(ctx context.Context, itemIDs ...id.ID) (map[id.ID]*entity.StockItem, error) {
	ids := uniqueSorted(itemIDs)
	locked := make(map[id.ID]*entity.StockItem, len(ids))
	for _, itemID := range ids {
		item, err := s.items.GetForUpdate(ctx, itemID)
		if err != nil {
			return nil, err
		}
		locked[itemID] = item
	}
	return locked, nil
}

// Commit appends movements to a locked item and bumps its version.
func (s *Service) Commit(ctx context.Context, item *entity.StockItem, movements ...entity.Movement) error {
	for i := range movements {
		if movements[i].ItemID != item.ID {
			return fmt.Errorf("movement %s belongs to item %s, not %s", movements[i].ID, movements[i].ItemID, item.ID)
		}
		if movements[i].CreatedBy == "" {
			movements[i].CreatedBy = audit.Actor(ctx)
		}
	}
	if len(movements) > 0 {
		if err := s.movements.Append(ctx, movements...); err != nil {
			return fmt.Errorf("append movements: %w", err)
		}
	}
	if err := s.items.BumpVersion(ctx, item); err != nil {
		return err
	}
	return nil
}

// ResolveOrder flips every pending movement of an order to status to.
// Items touched by the order are locked and their versions bumped so the
// cascade serializes with reservation writers on the same items.
func (s *Service) ResolveOrder(ctx context.Context, orderID id.ID, to entity.Status) (int64, error) {
	if !to.IsTerminal() {
		return 0, apperror.NewValidation("target status must be approved or rejected").
			WithDetail("status", string(to))
	}

	movements, err := s.movements.ListByOrder(ctx, orderID)
	if err != nil {
		return 0, fmt.Errorf("list order movements: %w", err)
	}

	var itemIDs []id.ID
	for _, m := range movements {
		if m.Status == entity.StatusPending {
			itemIDs = append(itemIDs, m.ItemID)
		}
	}
	if len(itemIDs) == 0 {
		return 0, nil
	}

	locked, err := s.LockItems(ctx, itemIDs...)
	if err != nil {
		return 0, err
	}

	n, err := s.movements.SetStatusByOrder(ctx, orderID, entity.StatusPending, to, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("set movement status: %w", err)
	}

	for _, itemID := range uniqueSorted(itemIDs) {
		if err := s.items.BumpVersion(ctx, locked[itemID]); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// --- Item writes ---

// CreateItem registers a stock item (catalog import).
func (s *Service) CreateItem(ctx context.Context, item *entity.StockItem) error {
	if err := item.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.items.GetByCode(ctx, item.Code)
		if err != nil && !apperror.IsNotFound(err) {
			return fmt.Errorf("check code: %w", err)
		}
		if existing != nil {
			return apperror.NewDuplicate("stock item", "code", item.Code)
		}

		if err := s.items.Create(ctx, item); err != nil {
			return fmt.Errorf("create item: %w", err)
		}

		return s.audit.LogChange(ctx, domain.AggregateStockItem, item.ID, domain.AuditActionCreate, map[string]any{
			"code":        item.Code,
			"baselineQty": item.BaselineQty,
			"safetyStock": item.SafetyStock,
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stock item created",
		"item_id", item.ID,
		"code", item.Code,
		"baseline", item.BaselineQty)

	return nil
}

// AdjustBaseline is the manual stock/safety correction of the item itself.
// expectedVersion, when non-zero, must match the stored version.
func (s *Service) AdjustBaseline(
	ctx context.Context,
	itemID id.ID,
	baseline, safety types.Quantity,
	expectedVersion int,
) (*entity.StockItem, error) {
	var item *entity.StockItem

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		item, err = s.items.GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		if expectedVersion != 0 && item.Version != expectedVersion {
			return apperror.NewConcurrentModification("stock_items", itemID.String()).
				WithDetail("expected_version", expectedVersion).
				WithDetail("actual_version", item.Version)
		}

		before := map[string]any{"baselineQty": item.BaselineQty, "safetyStock": item.SafetyStock}
		item.BaselineQty = baseline
		item.SafetyStock = safety
		if err := item.Validate(ctx); err != nil {
			return err
		}

		if err := s.items.Update(ctx, item); err != nil {
			return err
		}

		if err := s.audit.LogChange(ctx, domain.AggregateStockItem, item.ID, domain.AuditActionUpdate, map[string]any{
			"before":      before,
			"baselineQty": baseline,
			"safetyStock": safety,
		}); err != nil {
			return err
		}

		return s.events.Publish(ctx, domain.DomainEvent{
			AggregateType: domain.AggregateStockItem,
			AggregateID:   item.ID,
			EventType:     domain.EventBaselineChanged,
			Payload: map[string]any{
				"baselineQty": baseline,
				"safetyStock": safety,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "baseline adjusted",
		"item_id", itemID,
		"baseline", baseline,
		"safety", safety)

	return item, nil
}

// RecordReceipt books incoming stock as an approved receipt/add movement.
func (s *Service) RecordReceipt(ctx context.Context, itemID id.ID, qty types.Quantity, note string) (entity.Movement, error) {
	return s.recordApproved(ctx, itemID, entity.KindReceipt, entity.DirectionAdd, qty, note, domain.EventStockReceived)
}

// RecordAdjustment books a manual correction as an approved adjustment movement.
func (s *Service) RecordAdjustment(
	ctx context.Context,
	itemID id.ID,
	direction entity.Direction,
	qty types.Quantity,
	note string,
) (entity.Movement, error) {
	return s.recordApproved(ctx, itemID, entity.KindAdjustment, direction, qty, note, domain.EventStockAdjusted)
}

func (s *Service) recordApproved(
	ctx context.Context,
	itemID id.ID,
	kind entity.MovementKind,
	direction entity.Direction,
	qty types.Quantity,
	note string,
	eventType string,
) (entity.Movement, error) {
	if !qty.IsPositive() {
		return entity.Movement{}, apperror.NewValidation("quantity must be positive").
			WithDetail("field", "quantity").
			WithDetail("value", qty.String())
	}

	var recorded entity.Movement
	err := tx.Retry(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		locked, err := s.LockItems(ctx, itemID)
		if err != nil {
			return err
		}

		m, err := entity.NewMovement(itemID, nil, kind, direction, qty, entity.StatusApproved)
		if err != nil {
			return err
		}
		m.Note = note

		if err := s.Commit(ctx, locked[itemID], m); err != nil {
			return err
		}

		if err := s.audit.LogChange(ctx, domain.AggregateStockItem, itemID, domain.AuditActionUpdate, map[string]any{
			"movementId": m.ID,
			"kind":       m.Kind,
			"direction":  m.Direction,
			"quantity":   m.Quantity,
		}); err != nil {
			return err
		}

		if err := s.events.Publish(ctx, domain.DomainEvent{
			AggregateType: domain.AggregateStockItem,
			AggregateID:   itemID,
			EventType:     eventType,
			Payload:       m,
		}); err != nil {
			return err
		}

		recorded = m
		return nil
	})
	if err != nil {
		return entity.Movement{}, err
	}

	logger.Info(ctx, "stock movement recorded",
		"item_id", itemID,
		"kind", kind,
		"direction", direction,
		"quantity", qty)

	return recorded, nil
}

func uniqueSorted(ids []id.ID) []id.ID {
	seen := make(map[id.ID]struct{}, len(ids))
	out := make([]id.ID, 0, len(ids))
	for _, v := range ids {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
