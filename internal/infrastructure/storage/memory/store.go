// Package memory provides an in-memory implementation of every repository
// and of tx.Manager. It backs unit tests and local runs without PostgreSQL.
//
// Transactions are serialized by a single store-wide lock and simulated with
// a snapshot that is restored when the transaction function fails.
package memory

import (
	"context"
	"sync"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/order"
)

type (
	txKey       struct{}
	readOnlyKey struct{}
)

// Store holds all in-memory state.
type Store struct {
	mu sync.RWMutex

	items     map[id.ID]entity.StockItem
	movements []entity.Movement
	orders    map[id.ID]order.Order
	lines     map[id.ID][]order.Line
	events    []domain.DomainEvent
	audit     []AuditEntry
	sequences map[string]int64

	// conflicts makes the next N version bumps fail, to exercise retries.
	conflicts int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		items:     make(map[id.ID]entity.StockItem),
		orders:    make(map[id.ID]order.Order),
		lines:     make(map[id.ID][]order.Line),
		sequences: make(map[string]int64),
	}
}

type snapshot struct {
	items     map[id.ID]entity.StockItem
	movements []entity.Movement
	orders    map[id.ID]order.Order
	lines     map[id.ID][]order.Line
	events    []domain.DomainEvent
	audit     []AuditEntry
	sequences map[string]int64
}

func (s *Store) snapshot() snapshot {
	items := make(map[id.ID]entity.StockItem, len(s.items))
	for k, v := range s.items {
		items[k] = v
	}
	orders := make(map[id.ID]order.Order, len(s.orders))
	for k, v := range s.orders {
		orders[k] = v
	}
	lines := make(map[id.ID][]order.Line, len(s.lines))
	for k, v := range s.lines {
		lines[k] = append([]order.Line(nil), v...)
	}
	sequences := make(map[string]int64, len(s.sequences))
	for k, v := range s.sequences {
		sequences[k] = v
	}
	return snapshot{
		items:     items,
		movements: append([]entity.Movement(nil), s.movements...),
		orders:    orders,
		lines:     lines,
		events:    append([]domain.DomainEvent(nil), s.events...),
		audit:     append([]AuditEntry(nil), s.audit...),
		sequences: sequences,
	}
}

func (s *Store) restore(snap snapshot) {
	s.items = snap.items
	s.movements = snap.movements
	s.orders = snap.orders
	s.lines = snap.lines
	s.events = snap.events
	s.audit = snap.audit
	s.sequences = snap.sequences
}

// RunInTransaction implements tx.Manager.
// Nested calls reuse the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		if readOnly(ctx) {
			return apperror.NewInternal(nil).WithDetail("reason", "write inside a read-only transaction")
		}
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// ReadOnly implements tx.ReadOnlyManager. fn runs under the read lock and
// sees one consistent state; writes inside it fail.
func (s *Store) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTx(ctx) {
		return fn(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(context.WithValue(ctx, readOnlyKey{}, true))
}

// InjectConflicts makes the next n version bumps fail with a concurrent
// modification error.
func (s *Store) InjectConflicts(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

// Events returns the published events.
func (s *Store) Events() []domain.DomainEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.DomainEvent(nil), s.events...)
}

// AuditEntries returns the recorded audit entries.
func (s *Store) AuditEntries() []AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]AuditEntry(nil), s.audit...)
}

func inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{}).(bool)
	return v
}

func readOnly(ctx context.Context) bool {
	v, _ := ctx.Value(readOnlyKey{}).(bool)
	return v
}

// read runs fn under the read lock unless the caller already holds the
// store lock through a transaction.
func (s *Store) read(ctx context.Context, fn func()) {
	if inTx(ctx) {
		fn()
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn()
}

// write runs fn inside the caller's transaction or a new one.
func (s *Store) write(ctx context.Context, fn func() error) error {
	return s.RunInTransaction(ctx, func(context.Context) error {
		return fn()
	})
}

func requireTx(ctx context.Context, op string) error {
	if !inTx(ctx) || readOnly(ctx) {
		return apperror.NewInternal(nil).WithDetail("reason", op+" requires a read-write transaction")
	}
	return nil
}
