// Package ledger derives stock quantities from the movement log.
//
// Stock state is never stored: every read folds the item's baseline and its
// movements through Reduce. Reduce is the only place the kind/direction/status
// rule table lives; callers must not re-derive quantities on their own.
package ledger

import (
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

// Quantities is the derived state of one stock item.
type Quantities struct {
	OnHand    types.Quantity `json:"onHand"`
	Reserved  types.Quantity `json:"reserved"`
	Available types.Quantity `json:"available"`
}

// delta is the contribution of a single movement to the two buckets.
type delta struct {
	onHand   types.Quantity
	reserved types.Quantity
}

// Active returns the movements that take part in the fold.
// Rejected movements are terminal and inert, so they are removed before any
// rule is applied rather than relying on the rule table to ignore them.
func Active(movements []entity.Movement) []entity.Movement {
	out := make([]entity.Movement, 0, len(movements))
	for _, m := range movements {
		if m.Status == entity.StatusRejected {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Reduce folds baseline and movements into Quantities.
//
// The fold sums per bucket and clamps only at the end, so the result does not
// depend on the order of movements. It never fails: malformed quantities are
// rejected when a movement is created, and bucket sums saturate rather than
// wrap.
func Reduce(baseline types.Quantity, movements []entity.Movement) Quantities {
	onHand := baseline
	var reserved types.Quantity

	for _, m := range Active(movements) {
		d := effect(m)
		onHand = types.AddQuantity(onHand, d.onHand)
		reserved = types.AddQuantity(reserved, d.reserved)
	}

	reserved = types.MaxQuantity(reserved, 0)
	return Quantities{
		OnHand:    onHand,
		Reserved:  reserved,
		Available: types.MaxQuantity(types.AddQuantity(onHand, -reserved), 0),
	}
}

// effect applies the rule table to one non-rejected movement.
//
//	kind        add/pending   add/approved  subtract/pending  subtract/approved
//	issue       reserved -q   onHand +q     reserved +q       onHand -q
//	return      -             onHand +q     -                 -
//	adjustment  -             onHand +q     -                 onHand -q
//	receipt     -             onHand +q     -                 -
func effect(m entity.Movement) delta {
	q := m.Quantity
	approved := m.Status == entity.StatusApproved
	pending := m.Status == entity.StatusPending
	add := m.Direction == entity.DirectionAdd

	switch m.Kind {
	case entity.KindIssue:
		switch {
		case pending && add:
			return delta{reserved: -q}
		case pending:
			return delta{reserved: q}
		case approved && add:
			return delta{onHand: q}
		case approved:
			return delta{onHand: -q}
		}
	case entity.KindAdjustment:
		switch {
		case approved && add:
			return delta{onHand: q}
		case approved:
			return delta{onHand: -q}
		}
	case entity.KindReturn, entity.KindReceipt:
		if approved && add {
			return delta{onHand: q}
		}
	}
	return delta{}
}

// NetReserved is the outstanding reservation of one order on one item:
// pending issue/subtract minus pending issue/add. It is not clamped so that
// callers can compute an exact correction delta.
func NetReserved(movements []entity.Movement, orderID id.ID) types.Quantity {
	var net types.Quantity
	for _, m := range Active(movements) {
		if !m.BelongsTo(orderID) {
			continue
		}
		switch {
		case m.Is(entity.KindIssue, entity.DirectionSubtract, entity.StatusPending):
			net = types.AddQuantity(net, m.Quantity)
		case m.Is(entity.KindIssue, entity.DirectionAdd, entity.StatusPending):
			net = types.AddQuantity(net, -m.Quantity)
		}
	}
	return net
}

// Borrowed is what the order actually consumed from the item:
// approved issue/subtract minus approved issue/add.
func Borrowed(movements []entity.Movement, orderID id.ID) types.Quantity {
	var borrowed types.Quantity
	for _, m := range Active(movements) {
		if !m.BelongsTo(orderID) {
			continue
		}
		switch {
		case m.Is(entity.KindIssue, entity.DirectionSubtract, entity.StatusApproved):
			borrowed = types.AddQuantity(borrowed, m.Quantity)
		case m.Is(entity.KindIssue, entity.DirectionAdd, entity.StatusApproved):
			borrowed = types.AddQuantity(borrowed, -m.Quantity)
		}
	}
	return borrowed
}

// Returned sums approved returns booked against the order.
func Returned(movements []entity.Movement, orderID id.ID) types.Quantity {
	var returned types.Quantity
	for _, m := range Active(movements) {
		if m.BelongsTo(orderID) && m.Is(entity.KindReturn, entity.DirectionAdd, entity.StatusApproved) {
			returned = types.AddQuantity(returned, m.Quantity)
		}
	}
	return returned
}
