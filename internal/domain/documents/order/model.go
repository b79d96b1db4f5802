// Package order provides the withdrawal order document and its fulfillment
// state machine.
package order

import (
	"context"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Order is a withdrawal request for one or more stock items.
// Its status drives the status of every pending movement it owns.
type Order struct {
	entity.Document

	Status entity.Status `db:"status" json:"status"`

	// RequestedBy is the opaque employee id of the requester.
	RequestedBy string `db:"requested_by" json:"requestedBy,omitempty"`

	// ResolvedAt is set when the order is approved or rejected.
	ResolvedAt *time.Time `db:"resolved_at" json:"resolvedAt,omitempty"`

	// Table part: requested items
	Lines []Line `db:"-" json:"lines"`
}

// Line is one requested item of an order.
type Line struct {
	LineNo   int            `db:"line_no" json:"lineNo"`
	ItemID   id.ID          `db:"item_id" json:"itemId"`
	Quantity types.Quantity `db:"quantity" json:"quantity"`
}

// NewOrder creates a pending order.
func NewOrder(lines []Line, note string) *Order {
	o := &Order{
		Document: entity.NewDocument(),
		Status:   entity.StatusPending,
	}
	o.Comment = note
	o.SetLines(lines)
	return o
}

// SetLines replaces the table part and renumbers it.
func (o *Order) SetLines(lines []Line) {
	o.Lines = make([]Line, 0, len(lines))
	for i, l := range lines {
		l.LineNo = i + 1
		o.Lines = append(o.Lines, l)
	}
}

// Quantities returns the requested quantity per item.
func (o *Order) Quantities() map[id.ID]types.Quantity {
	out := make(map[id.ID]types.Quantity, len(o.Lines))
	for _, l := range o.Lines {
		out[l.ItemID] += l.Quantity
	}
	return out
}

// HasItem reports whether the order requested the item.
func (o *Order) HasItem(itemID id.ID) bool {
	for _, l := range o.Lines {
		if l.ItemID == itemID {
			return true
		}
	}
	return false
}

// Validate implements entity.Validatable.
func (o *Order) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}

	if !o.Status.Valid() {
		return apperror.NewValidation("unknown order status").
			WithDetail("field", "status").
			WithDetail("value", string(o.Status))
	}

	return ValidateLines(o.Lines)
}

// ValidateLines checks a table part before it is reserved.
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}

	seen := make(map[id.ID]int, len(lines))
	for i, line := range lines {
		if id.IsNil(line.ItemID) {
			return apperror.NewValidation("item is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if prev, ok := seen[line.ItemID]; ok {
			return apperror.NewValidation("item is listed twice").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1).
				WithDetail("duplicateOf", prev)
		}
		seen[line.ItemID] = i + 1
	}

	return nil
}

// CanModify returns an error if the order no longer accepts changes.
func (o *Order) CanModify() error {
	if o.DeletionMark {
		return apperror.NewStateConflict("order", o.ID.String(), "deleted")
	}
	if o.Status.IsTerminal() {
		return apperror.NewStateConflict("order", o.ID.String(), string(o.Status))
	}
	return nil
}

// Transition moves a pending order to a terminal status.
func (o *Order) Transition(to entity.Status) error {
	if err := o.CanModify(); err != nil {
		return err
	}
	if !entity.CanTransition(o.Status, to) {
		return apperror.NewValidation("target status must be approved or rejected").
			WithDetail("field", "status").
			WithDetail("value", string(to))
	}
	now := time.Now().UTC()
	o.Status = to
	o.ResolvedAt = &now
	return nil
}
