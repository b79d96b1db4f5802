// Package app wires repositories and domain services together.
package app

import (
	"stockledger/internal/core/numerator"
	"stockledger/internal/core/tx"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/order"
	"stockledger/internal/domain/ledger"
	"stockledger/internal/domain/reservation"
	"stockledger/internal/domain/returns"
	"stockledger/internal/infrastructure/storage/memory"
	"stockledger/pkg/config"
)

// Backend is a storage implementation of every repository the services need.
type Backend struct {
	TxManager tx.Manager
	Items     ledger.ItemRepository
	Movements ledger.MovementRepository
	Orders    order.Repository
	Numerator numerator.Generator
	Events    domain.EventPublisher
	Audit     domain.AuditLogger
}

// Services are the domain entry points used by transports.
type Services struct {
	Ledger       *ledger.Service
	Reservations *reservation.Manager
	Orders       *order.Service
	Returns      *returns.Adjudicator
}

// NewServices builds the domain services on top of a backend.
func NewServices(b Backend, cfg config.LedgerConfig) *Services {
	policy := tx.RetryPolicy{
		MaxAttempts: cfg.MaxRetries,
		Backoff:     cfg.RetryBackoff,
	}

	ledgerService := ledger.NewService(b.Items, b.Movements, b.TxManager, policy, b.Events, b.Audit)
	reservations := reservation.NewManager(ledgerService, cfg.EnforceAvailability)

	return &Services{
		Ledger:       ledgerService,
		Reservations: reservations,
		Orders:       order.NewService(b.Orders, ledgerService, reservations, b.Numerator, b.Events, b.Audit),
		Returns:      returns.NewAdjudicator(b.Orders, ledgerService, b.Events, b.Audit),
	}
}

// MemoryBackend returns a backend on a fresh in-memory store.
func MemoryBackend() (Backend, *memory.Store) {
	store := memory.NewStore()
	return Backend{
		TxManager: store,
		Items:     memory.NewItemRepo(store),
		Movements: memory.NewMovementRepo(store),
		Orders:    memory.NewOrderRepo(store),
		Numerator: memory.NewNumerator(store),
		Events:    memory.NewPublisher(store),
		Audit:     memory.NewAuditLog(store),
	}, store
}

// DefaultLedgerConfig mirrors the configuration defaults.
func DefaultLedgerConfig() config.LedgerConfig {
	p := tx.DefaultRetryPolicy()
	return config.LedgerConfig{
		MaxRetries:          p.MaxAttempts,
		RetryBackoff:        p.Backoff,
		EnforceAvailability: true,
	}
}
