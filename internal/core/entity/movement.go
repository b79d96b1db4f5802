// Package entity provides core domain entities.
package entity

import (
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// MovementKind classifies what happened to the stock.
type MovementKind string

const (
	// KindIssue is stock handed out against an order (or a correction of it).
	KindIssue MovementKind = "issue"
	// KindReturn is stock brought back by the borrower.
	KindReturn MovementKind = "return"
	// KindAdjustment is a manual stock correction.
	KindAdjustment MovementKind = "adjustment"
	// KindReceipt is incoming stock.
	KindReceipt MovementKind = "receipt"
)

// Valid reports whether k is one of the known kinds.
func (k MovementKind) Valid() bool {
	switch k {
	case KindIssue, KindReturn, KindAdjustment, KindReceipt:
		return true
	}
	return false
}

// Direction is the sign of a movement.
type Direction string

const (
	DirectionAdd      Direction = "add"
	DirectionSubtract Direction = "subtract"
)

// Valid reports whether d is add or subtract.
func (d Direction) Valid() bool {
	return d == DirectionAdd || d == DirectionSubtract
}

// Status is the lifecycle state shared by movements and orders.
// pending -> approved | rejected, both terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether from -> to is a legal transition.
func CanTransition(from, to Status) bool {
	return from == StatusPending && to.IsTerminal()
}

// Movement is an append-only fact against a stock item.
// Only Status may change, and only once (pending -> approved | rejected).
type Movement struct {
	ID        id.ID          `db:"id" json:"id"`
	ItemID    id.ID          `db:"item_id" json:"itemId"`
	OrderID   *id.ID         `db:"order_id" json:"orderId,omitempty"`
	Kind      MovementKind   `db:"kind" json:"kind"`
	Direction Direction      `db:"direction" json:"direction"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	Status    Status         `db:"status" json:"status"`
	Note      string         `db:"note" json:"note,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	CreatedBy string         `db:"created_by" json:"createdBy,omitempty"`

	// ResolvedAt is set when the movement leaves pending.
	ResolvedAt *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`
}

// NewMovement validates the arguments and builds a movement.
// Malformed quantities are rejected here so the reducer never sees them.
func NewMovement(
	itemID id.ID,
	orderID *id.ID,
	kind MovementKind,
	direction Direction,
	quantity types.Quantity,
	status Status,
) (Movement, error) {
	m := Movement{
		ID:        id.New(),
		ItemID:    itemID,
		OrderID:   orderID,
		Kind:      kind,
		Direction: direction,
		Quantity:  quantity,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	if status.IsTerminal() {
		m.ResolvedAt = &m.CreatedAt
	}
	if err := m.Validate(); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// Validate checks movement invariants.
func (m *Movement) Validate() error {
	if id.IsNil(m.ItemID) {
		return apperror.NewValidation("item is required").
			WithDetail("field", "itemId")
	}
	if !m.Kind.Valid() {
		return apperror.NewValidation("unknown movement kind").
			WithDetail("field", "kind").
			WithDetail("value", string(m.Kind))
	}
	if !m.Direction.Valid() {
		return apperror.NewValidation("unknown movement direction").
			WithDetail("field", "direction").
			WithDetail("value", string(m.Direction))
	}
	if !m.Status.Valid() {
		return apperror.NewValidation("unknown movement status").
			WithDetail("field", "status").
			WithDetail("value", string(m.Status))
	}
	if m.Quantity.IsNegative() {
		return apperror.NewValidation("quantity must not be negative").
			WithDetail("field", "quantity").
			WithDetail("value", m.Quantity.String())
	}
	if !m.Quantity.InRange() {
		return apperror.NewValidation("quantity is out of range").
			WithDetail("field", "quantity").
			WithDetail("value", m.Quantity.String())
	}
	if m.OrderID != nil && id.IsNil(*m.OrderID) {
		return apperror.NewValidation("order reference is empty").
			WithDetail("field", "orderId")
	}
	return nil
}

// Transition moves a pending movement to a terminal status.
func (m *Movement) Transition(to Status) error {
	if !CanTransition(m.Status, to) {
		return apperror.NewStateConflict("movement", m.ID.String(), string(m.Status)).
			WithDetail("target", string(to))
	}
	now := time.Now().UTC()
	m.Status = to
	m.ResolvedAt = &now
	return nil
}

// BelongsTo reports whether the movement is linked to the given order.
func (m *Movement) BelongsTo(orderID id.ID) bool {
	return m.OrderID != nil && *m.OrderID == orderID
}

// Is matches kind, direction and status at once.
func (m *Movement) Is(kind MovementKind, direction Direction, status Status) bool {
	return m.Kind == kind && m.Direction == direction && m.Status == status
}
