package domain

import (
	"context"

	"stockledger/internal/core/id"
)

// Event types published through the transactional outbox.
const (
	EventOrderCreated      = "OrderCreated"
	EventOrderLinesChanged = "OrderLinesChanged"
	EventOrderApproved     = "OrderApproved"
	EventOrderRejected     = "OrderRejected"
	EventOrderDeleted      = "OrderDeleted"
	EventReturnSubmitted   = "ReturnSubmitted"
	EventStockReceived     = "StockReceived"
	EventStockAdjusted     = "StockAdjusted"
	EventBaselineChanged   = "BaselineChanged"
)

// Aggregate types.
const (
	AggregateOrder     = "Order"
	AggregateStockItem = "StockItem"
)

// DomainEvent represents an event to be published via outbox.
type DomainEvent struct {
	AggregateType string
	AggregateID   id.ID
	EventType     string
	Payload       any
}

// EventPublisher writes events inside the caller's transaction.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
}

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionUpdate  AuditAction = "update"
	AuditActionDelete  AuditAction = "delete"
	AuditActionApprove AuditAction = "approve"
	AuditActionReject  AuditAction = "reject"
	AuditActionReturn  AuditAction = "return"
)

// AuditLogger records entity changes inside the caller's transaction.
type AuditLogger interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action AuditAction, changes map[string]any) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, DomainEvent) error { return nil }

// NopAudit discards audit entries.
type NopAudit struct{}

func (NopAudit) LogChange(context.Context, string, id.ID, AuditAction, map[string]any) error {
	return nil
}
