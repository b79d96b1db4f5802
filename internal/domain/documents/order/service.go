package order

import (
	"context"
	"fmt"
	"sort"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/core/types"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/reservation"
	"stockledger/pkg/logger"
)

// Service drives withdrawal orders through pending -> approved | rejected.
//
// Every write runs in one transaction that locks the order row first and the
// affected stock items second (ascending id), and is re-run on optimistic
// locking conflicts up to the configured retry policy.
type Service struct {
	repo         Repository
	ledger       *ledger.Service
	reservations *reservation.Manager
	numerator    numerator.Generator
	events       domain.EventPublisher
	audit        domain.AuditLogger
	hooks        *domain.HookRegistry[*Order]
}

// NewService creates a new order service.
func NewService(
	repo Repository,
	ledgerService *ledger.Service,
	reservations *reservation.Manager,
	numerator numerator.Generator,
	events domain.EventPublisher,
	auditLog domain.AuditLogger,
) *Service {
	if events == nil {
		events = domain.NopPublisher{}
	}
	if auditLog == nil {
		auditLog = domain.NopAudit{}
	}
	s := &Service{
		repo:         repo,
		ledger:       ledgerService,
		reservations: reservations,
		numerator:    numerator,
		events:       events,
		audit:        auditLog,
		hooks:        domain.NewHookRegistry[*Order](),
	}

	s.hooks.OnBeforeCreate(func(ctx context.Context, o *Order) error {
		audit.EnrichCreatedByDirect(ctx, &o.CreatedBy, &o.UpdatedBy)
		if o.RequestedBy == "" {
			o.RequestedBy = o.CreatedBy
		}
		return nil
	})
	s.hooks.OnBeforeUpdate(func(ctx context.Context, o *Order) error {
		audit.EnrichUpdatedByDirect(ctx, &o.UpdatedBy)
		return nil
	})

	return s
}

// Hooks returns the hook registry for registering callbacks.
func (s *Service) Hooks() *domain.HookRegistry[*Order] {
	return s.hooks
}

func (s *Service) run(ctx context.Context, fn func(ctx context.Context) error) error {
	return tx.Retry(ctx, s.ledger.TxManager(), s.ledger.RetryPolicy(), fn)
}

// Create creates a pending order and reserves every line.
func (s *Service) Create(ctx context.Context, lines []Line, note string) (*Order, error) {
	doc := NewOrder(lines, note)

	if err := s.hooks.Run(ctx, domain.BeforeCreate, doc); err != nil {
		return nil, err
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, err
	}

	cfg := numerator.DefaultConfig(NumberPrefix)
	number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, doc.Date)
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	doc.Number = number

	err = s.run(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if err := s.repo.SaveLines(ctx, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		if _, err := s.ledger.LockItems(ctx, itemIDs(doc.Lines)...); err != nil {
			return err
		}
		for _, line := range doc.Lines {
			if _, err := s.reservations.Request(ctx, line.ItemID, doc.ID, line.Quantity); err != nil {
				return err
			}
		}

		if err := s.audit.LogChange(ctx, domain.AggregateOrder, doc.ID, domain.AuditActionCreate, map[string]any{
			"number": doc.Number,
			"lines":  doc.Lines,
		}); err != nil {
			return err
		}

		return s.events.Publish(ctx, domain.DomainEvent{
			AggregateType: domain.AggregateOrder,
			AggregateID:   doc.ID,
			EventType:     domain.EventOrderCreated,
			Payload:       doc,
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterCreate, doc); err != nil {
		logger.Warn(ctx, "after-create hook failed", "error", err)
	}

	logger.Info(ctx, "order created",
		"id", doc.ID,
		"number", doc.Number,
		"lines", len(doc.Lines))

	return doc, nil
}

// UpdateLines replaces the table part of a pending order. Each item in the
// old or new lines gets its reservation adjusted to the new quantity, which
// is zero for removed items.
func (s *Service) UpdateLines(ctx context.Context, orderID id.ID, lines []Line) (*Order, error) {
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}

	var doc *Order
	err := s.run(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := doc.CanModify(); err != nil {
			return err
		}

		oldLines, err := s.repo.GetLines(ctx, orderID)
		if err != nil {
			return fmt.Errorf("get lines: %w", err)
		}

		doc.SetLines(lines)
		target := doc.Quantities()
		affected := append(itemIDs(oldLines), itemIDs(doc.Lines)...)

		locked, err := s.ledger.LockItems(ctx, affected...)
		if err != nil {
			return err
		}

		changes := make(map[string]types.Quantity)
		for _, itemID := range sortedKeys(locked) {
			mv, err := s.reservations.Adjust(ctx, itemID, orderID, target[itemID])
			if err != nil {
				return err
			}
			if mv != nil {
				changes[itemID.String()] = target[itemID]
			}
		}

		if err := s.repo.SaveLines(ctx, orderID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}

		if err := s.hooks.Run(ctx, domain.BeforeUpdate, doc); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		if err := s.audit.LogChange(ctx, domain.AggregateOrder, doc.ID, domain.AuditActionUpdate, map[string]any{
			"before":  oldLines,
			"after":   doc.Lines,
			"changed": changes,
		}); err != nil {
			return err
		}

		return s.events.Publish(ctx, domain.DomainEvent{
			AggregateType: domain.AggregateOrder,
			AggregateID:   doc.ID,
			EventType:     domain.EventOrderLinesChanged,
			Payload:       map[string]any{"lines": doc.Lines, "changed": changes},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "order lines updated",
		"id", doc.ID,
		"number", doc.Number,
		"lines", len(doc.Lines))

	return doc, nil
}

// Approve approves the order and all of its pending movements.
func (s *Service) Approve(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.SetStatus(ctx, orderID, entity.StatusApproved)
}

// Reject rejects the order; its pending movements become permanently inert.
func (s *Service) Reject(ctx context.Context, orderID id.ID) (*Order, error) {
	return s.SetStatus(ctx, orderID, entity.StatusRejected)
}

// SetStatus moves a pending order to approved or rejected and cascades the
// status onto every pending movement of the order in the same transaction.
// A terminal order yields a state conflict, which is never retried.
func (s *Service) SetStatus(ctx context.Context, orderID id.ID, to entity.Status) (*Order, error) {
	if !to.IsTerminal() {
		return nil, apperror.NewValidation("status must be approved or rejected").
			WithDetail("field", "status").
			WithDetail("value", string(to))
	}

	var (
		doc     *Order
		flipped int64
	)
	err := s.run(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := doc.Transition(to); err != nil {
			return err
		}

		flipped, err = s.ledger.ResolveOrder(ctx, orderID, to)
		if err != nil {
			return err
		}

		if err := s.hooks.Run(ctx, domain.BeforeUpdate, doc); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		action, event := domain.AuditActionApprove, domain.EventOrderApproved
		if to == entity.StatusRejected {
			action, event = domain.AuditActionReject, domain.EventOrderRejected
		}

		if err := s.audit.LogChange(ctx, domain.AggregateOrder, doc.ID, action, map[string]any{
			"status":    to,
			"movements": flipped,
		}); err != nil {
			return err
		}

		return s.events.Publish(ctx, domain.DomainEvent{
			AggregateType: domain.AggregateOrder,
			AggregateID:   doc.ID,
			EventType:     event,
			Payload:       map[string]any{"number": doc.Number, "status": to, "movements": flipped},
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.hooks.Run(ctx, domain.AfterUpdate, doc); err != nil {
		logger.Warn(ctx, "after-update hook failed", "error", err)
	}

	logger.Info(ctx, "order status changed",
		"id", doc.ID,
		"number", doc.Number,
		"status", to,
		"movements", flipped)

	return doc, nil
}

// Delete explicitly removes a pending order: its reservations are rejected
// and the order is marked deleted in one transaction.
func (s *Service) Delete(ctx context.Context, orderID id.ID) error {
	var doc *Order
	err := s.run(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if err := doc.Transition(entity.StatusRejected); err != nil {
			return err
		}

		if _, err := s.ledger.ResolveOrder(ctx, orderID, entity.StatusRejected); err != nil {
			return err
		}

		doc.MarkDeleted()
		if err := s.hooks.Run(ctx, domain.BeforeUpdate, doc); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, doc); err != nil {
			return err
		}

		if err := s.audit.LogChange(ctx, domain.AggregateOrder, doc.ID, domain.AuditActionDelete, map[string]any{
			"number": doc.Number,
		}); err != nil {
			return err
		}

		return s.events.Publish(ctx, domain.DomainEvent{
			AggregateType: domain.AggregateOrder,
			AggregateID:   doc.ID,
			EventType:     domain.EventOrderDeleted,
			Payload:       map[string]any{"number": doc.Number},
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "order deleted",
		"id", doc.ID,
		"number", doc.Number)

	return nil
}

// GetByID retrieves an order with lines.
func (s *Service) GetByID(ctx context.Context, orderID id.ID) (*Order, error) {
	doc, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines

	return doc, nil
}

// GetByNumber retrieves an order with lines by document number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Order, error) {
	doc, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, doc.ID)
}

// List retrieves orders with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error) {
	return s.repo.List(ctx, filter)
}

// Movements returns the movements the order produced.
func (s *Service) Movements(ctx context.Context, orderID id.ID) ([]entity.Movement, error) {
	if _, err := s.repo.GetByID(ctx, orderID); err != nil {
		return nil, err
	}
	return s.ledger.OrderMovements(ctx, orderID)
}

// ParseStatus converts wire input into a target status.
func ParseStatus(raw string) (entity.Status, error) {
	st := entity.Status(raw)
	if !st.IsTerminal() {
		return "", apperror.NewValidation("status must be approved or rejected").
			WithDetail("field", "status").
			WithDetail("value", raw)
	}
	return st, nil
}

func itemIDs(lines []Line) []id.ID {
	out := make([]id.ID, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.ItemID)
	}
	return out
}

func sortedKeys(m map[id.ID]*entity.StockItem) []id.ID {
	keys := make([]id.ID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
