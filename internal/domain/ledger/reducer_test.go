package ledger

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/core/types"
)

func qty(v int64) types.Quantity { return types.NewQuantityFromInt(v) }

func mov(t *testing.T, order *id.ID, kind entity.MovementKind, dir entity.Direction, q int64, status entity.Status) entity.Movement {
	t.Helper()
	m, err := entity.NewMovement(id.New(), order, kind, dir, qty(q), status)
	require.NoError(t, err)
	return m
}

func TestReduce_RuleTable(t *testing.T) {
	tests := []struct {
		name      string
		kind      entity.MovementKind
		dir       entity.Direction
		status    entity.Status
		wantOn    int64
		wantRes   int64
		wantAvail int64
	}{
		{"issue subtract pending reserves", entity.KindIssue, entity.DirectionSubtract, entity.StatusPending, 100, 10, 90},
		{"issue subtract approved depletes", entity.KindIssue, entity.DirectionSubtract, entity.StatusApproved, 90, 0, 90},
		{"issue add pending floors at zero", entity.KindIssue, entity.DirectionAdd, entity.StatusPending, 100, 0, 100},
		{"issue add approved restocks", entity.KindIssue, entity.DirectionAdd, entity.StatusApproved, 110, 0, 110},
		{"return add approved", entity.KindReturn, entity.DirectionAdd, entity.StatusApproved, 110, 0, 110},
		{"return add pending ignored", entity.KindReturn, entity.DirectionAdd, entity.StatusPending, 100, 0, 100},
		{"return subtract ignored", entity.KindReturn, entity.DirectionSubtract, entity.StatusApproved, 100, 0, 100},
		{"adjustment add approved", entity.KindAdjustment, entity.DirectionAdd, entity.StatusApproved, 110, 0, 110},
		{"adjustment subtract approved", entity.KindAdjustment, entity.DirectionSubtract, entity.StatusApproved, 90, 0, 90},
		{"adjustment pending ignored", entity.KindAdjustment, entity.DirectionSubtract, entity.StatusPending, 100, 0, 100},
		{"receipt add approved", entity.KindReceipt, entity.DirectionAdd, entity.StatusApproved, 110, 0, 110},
		{"receipt subtract ignored", entity.KindReceipt, entity.DirectionSubtract, entity.StatusApproved, 100, 0, 100},
		{"receipt pending ignored", entity.KindReceipt, entity.DirectionAdd, entity.StatusPending, 100, 0, 100},
		{"rejected issue ignored", entity.KindIssue, entity.DirectionSubtract, entity.StatusRejected, 100, 0, 100},
		{"rejected receipt ignored", entity.KindReceipt, entity.DirectionAdd, entity.StatusRejected, 100, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reduce(qty(100), []entity.Movement{mov(t, nil, tt.kind, tt.dir, 10, tt.status)})
			assert.Equal(t, qty(tt.wantOn), got.OnHand)
			assert.Equal(t, qty(tt.wantRes), got.Reserved)
			assert.Equal(t, qty(tt.wantAvail), got.Available)
		})
	}
}

func TestReduce_EmptyStream(t *testing.T) {
	got := Reduce(qty(7), nil)
	assert.Equal(t, Quantities{OnHand: qty(7), Reserved: 0, Available: qty(7)}, got)
}

func TestReduce_AvailableNeverNegative(t *testing.T) {
	got := Reduce(qty(5), []entity.Movement{
		mov(t, nil, entity.KindIssue, entity.DirectionSubtract, 8, entity.StatusPending),
	})
	assert.Equal(t, qty(5), got.OnHand)
	assert.Equal(t, qty(8), got.Reserved)
	assert.Equal(t, types.Quantity(0), got.Available)
}

func TestReduce_ScenarioA(t *testing.T) {
	order := id.New()
	pending := mov(t, &order, entity.KindIssue, entity.DirectionSubtract, 30, entity.StatusPending)

	got := Reduce(qty(100), []entity.Movement{pending})
	assert.Equal(t, Quantities{OnHand: qty(100), Reserved: qty(30), Available: qty(70)}, got)

	require.NoError(t, pending.Transition(entity.StatusApproved))
	got = Reduce(qty(100), []entity.Movement{pending})
	assert.Equal(t, Quantities{OnHand: qty(70), Reserved: 0, Available: qty(70)}, got)
}

func TestReduce_DuplicateRecordsCountOncePerRecord(t *testing.T) {
	a := mov(t, nil, entity.KindReceipt, entity.DirectionAdd, 5, entity.StatusApproved)
	b := mov(t, nil, entity.KindReceipt, entity.DirectionAdd, 5, entity.StatusApproved)

	assert.Equal(t, qty(5), Reduce(0, []entity.Movement{a}).OnHand)
	assert.Equal(t, qty(10), Reduce(0, []entity.Movement{a, b}).OnHand)
}

func TestActive_DropsRejectedFirst(t *testing.T) {
	kept := mov(t, nil, entity.KindReceipt, entity.DirectionAdd, 1, entity.StatusApproved)
	stream := []entity.Movement{
		mov(t, nil, entity.KindIssue, entity.DirectionSubtract, 3, entity.StatusRejected),
		kept,
		mov(t, nil, entity.KindIssue, entity.DirectionAdd, 2, entity.StatusRejected),
	}

	active := Active(stream)
	require.Len(t, active, 1)
	assert.Equal(t, kept.ID, active[0].ID)
	assert.Len(t, stream, 3, "input must not be modified")
}

// randomStream builds a stream covering every kind/direction/status combination.
func randomStream(t *testing.T, r *rand.Rand, n int, orders []id.ID) []entity.Movement {
	kinds := []entity.MovementKind{entity.KindIssue, entity.KindReturn, entity.KindAdjustment, entity.KindReceipt}
	dirs := []entity.Direction{entity.DirectionAdd, entity.DirectionSubtract}
	statuses := []entity.Status{entity.StatusPending, entity.StatusApproved, entity.StatusRejected}

	out := make([]entity.Movement, 0, n)
	for i := 0; i < n; i++ {
		order := orders[r.Intn(len(orders))]
		m, err := entity.NewMovement(
			id.New(),
			&order,
			kinds[r.Intn(len(kinds))],
			dirs[r.Intn(len(dirs))],
			types.Quantity(r.Int63n(500_000)),
			statuses[r.Intn(len(statuses))],
		)
		require.NoError(t, err)
		out = append(out, m)
	}
	return out
}

func TestReduce_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	orders := []id.ID{id.New(), id.New(), id.New()}

	for i := 0; i < 200; i++ {
		baseline := types.Quantity(r.Int63n(1_000_000))
		stream := randomStream(t, r, r.Intn(40), orders)
		want := Reduce(baseline, stream)

		assert.False(t, want.Reserved.IsNegative(), "reserved >= 0")
		assert.Equal(t, types.MaxQuantity(want.OnHand-want.Reserved, 0), want.Available)

		shuffled := append([]entity.Movement(nil), stream...)
		r.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Reduce(baseline, shuffled), "order independent")

		assert.Equal(t, want, Reduce(baseline, Active(stream)), "rejected are invisible")
	}
}

func TestReduce_OnHandEqualsBaselinePlusApproved(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	stream := randomStream(t, r, 100, []id.ID{id.New()})

	var realized types.Quantity
	for _, m := range stream {
		if m.Status != entity.StatusApproved {
			continue
		}
		d := effect(m)
		realized += d.onHand
		assert.Zero(t, d.reserved, "approved movements never touch reserved")
	}
	assert.Equal(t, qty(10)+realized, Reduce(qty(10), stream).OnHand)
}

func TestNetReserved(t *testing.T) {
	x, y := id.New(), id.New()
	stream := []entity.Movement{
		mov(t, &x, entity.KindIssue, entity.DirectionSubtract, 20, entity.StatusPending),
		mov(t, &x, entity.KindIssue, entity.DirectionSubtract, 15, entity.StatusPending),
		mov(t, &x, entity.KindIssue, entity.DirectionAdd, 5, entity.StatusPending),
		mov(t, &x, entity.KindIssue, entity.DirectionSubtract, 99, entity.StatusRejected),
		mov(t, &x, entity.KindIssue, entity.DirectionSubtract, 7, entity.StatusApproved),
		mov(t, &y, entity.KindIssue, entity.DirectionSubtract, 50, entity.StatusPending),
		mov(t, nil, entity.KindIssue, entity.DirectionSubtract, 50, entity.StatusPending),
	}

	assert.Equal(t, qty(30), NetReserved(stream, x))
	assert.Equal(t, qty(50), NetReserved(stream, y))
	assert.Equal(t, types.Quantity(0), NetReserved(stream, id.New()))
}

func TestBorrowedAndReturned(t *testing.T) {
	x := id.New()
	stream := []entity.Movement{
		mov(t, &x, entity.KindIssue, entity.DirectionSubtract, 12, entity.StatusApproved),
		mov(t, &x, entity.KindIssue, entity.DirectionAdd, 2, entity.StatusApproved),
		mov(t, &x, entity.KindIssue, entity.DirectionSubtract, 4, entity.StatusPending),
		mov(t, &x, entity.KindReturn, entity.DirectionAdd, 3, entity.StatusApproved),
		mov(t, &x, entity.KindReturn, entity.DirectionAdd, 1, entity.StatusRejected),
		mov(t, nil, entity.KindReturn, entity.DirectionAdd, 8, entity.StatusApproved),
	}

	assert.Equal(t, qty(10), Borrowed(stream, x))
	assert.Equal(t, qty(3), Returned(stream, x))
}

func TestReduce_QuantityBounds(t *testing.T) {
	_, err := entity.NewMovement(id.New(), nil, entity.KindReceipt, entity.DirectionAdd,
		types.NewQuantityFromInt(900_000_000_000_000), entity.StatusApproved)
	require.Error(t, err)

	largest, err := entity.NewMovement(id.New(), nil, entity.KindReceipt, entity.DirectionAdd,
		types.QuantityLimit, entity.StatusApproved)
	require.NoError(t, err)

	stream := make([]entity.Movement, 20)
	for i := range stream {
		stream[i] = largest
	}
	got := Reduce(0, stream)
	assert.Equal(t, 20*types.QuantityLimit, got.OnHand)
	assert.Equal(t, got.OnHand, got.Available)
}

func TestReduce_SaturatesInsteadOfWrapping(t *testing.T) {
	huge := entity.Movement{
		ItemID:    id.New(),
		Kind:      entity.KindReceipt,
		Direction: entity.DirectionAdd,
		Quantity:  types.Quantity(math.MaxInt64 / 10),
		Status:    entity.StatusApproved,
	}
	stream := make([]entity.Movement, 20)
	for i := range stream {
		stream[i] = huge
	}

	got := Reduce(0, stream)
	assert.Equal(t, types.Quantity(math.MaxInt64), got.OnHand)
	assert.Equal(t, types.Quantity(math.MaxInt64), got.Available)
	assert.Equal(t, types.Quantity(0), got.Reserved)
}
