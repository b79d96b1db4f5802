package memory

import (
	"context"
	"time"

	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/audit"
)

// AuditEntry is a recorded change.
type AuditEntry struct {
	EntityType string
	EntityID   id.ID
	Action     domain.AuditAction
	UserID     string
	Changes    map[string]any
	CreatedAt  time.Time
}

// Publisher implements domain.EventPublisher; events are kept in the store
// and rolled back together with the transaction that published them.
type Publisher struct {
	store *Store
}

// NewPublisher creates an in-memory event publisher.
func NewPublisher(store *Store) *Publisher {
	return &Publisher{store: store}
}

var _ domain.EventPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	return p.store.write(ctx, func() error {
		p.store.events = append(p.store.events, event)
		return nil
	})
}

// AuditLog implements domain.AuditLogger.
type AuditLog struct {
	store *Store
}

// NewAuditLog creates an in-memory audit log.
func NewAuditLog(store *Store) *AuditLog {
	return &AuditLog{store: store}
}

var _ domain.AuditLogger = (*AuditLog)(nil)

func (a *AuditLog) LogChange(ctx context.Context, entityType string, entityID id.ID, action domain.AuditAction, changes map[string]any) error {
	return a.store.write(ctx, func() error {
		a.store.audit = append(a.store.audit, AuditEntry{
			EntityType: entityType,
			EntityID:   entityID,
			Action:     action,
			UserID:     audit.Actor(ctx),
			Changes:    changes,
			CreatedAt:  time.Now().UTC(),
		})
		return nil
	})
}
