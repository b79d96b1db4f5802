package memory

import (
	"context"
	"sort"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
)

// MovementRepo implements ledger.MovementRepository.
type MovementRepo struct {
	store *Store
}

// NewMovementRepo creates an in-memory movement log.
func NewMovementRepo(store *Store) *MovementRepo {
	return &MovementRepo{store: store}
}

var _ ledger.MovementRepository = (*MovementRepo)(nil)

func (r *MovementRepo) Append(ctx context.Context, movements ...entity.Movement) error {
	return r.store.write(ctx, func() error {
		for _, m := range movements {
			if err := m.Validate(); err != nil {
				return err
			}
			if _, ok := r.store.items[m.ItemID]; !ok {
				return apperror.NewNotFound("stock item", m.ItemID.String())
			}
		}
		r.store.movements = append(r.store.movements, movements...)
		return nil
	})
}

func (r *MovementRepo) ListByItem(ctx context.Context, itemID id.ID) ([]entity.Movement, error) {
	return r.filter(ctx, func(m entity.Movement) bool { return m.ItemID == itemID }), nil
}

func (r *MovementRepo) ListByOrder(ctx context.Context, orderID id.ID) ([]entity.Movement, error) {
	return r.filter(ctx, func(m entity.Movement) bool { return m.BelongsTo(orderID) }), nil
}

func (r *MovementRepo) History(ctx context.Context, itemID id.ID, filter ledger.MovementFilter) (domain.ListResult[entity.Movement], error) {
	out := r.filter(ctx, func(m entity.Movement) bool {
		if m.ItemID != itemID {
			return false
		}
		if filter.OrderID != nil && !m.BelongsTo(*filter.OrderID) {
			return false
		}
		if filter.Kind != nil && m.Kind != *filter.Kind {
			return false
		}
		if filter.Status != nil && m.Status != *filter.Status {
			return false
		}
		return true
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return domain.Page(out, domain.ListFilter{Limit: filter.Limit, Offset: filter.Offset}), nil
}

func (r *MovementRepo) SetStatusByOrder(ctx context.Context, orderID id.ID, from, to entity.Status, at time.Time) (int64, error) {
	var n int64
	err := r.store.write(ctx, func() error {
		for i := range r.store.movements {
			m := &r.store.movements[i]
			if !m.BelongsTo(orderID) || m.Status != from {
				continue
			}
			resolved := at
			m.Status = to
			m.ResolvedAt = &resolved
			n++
		}
		return nil
	})
	return n, err
}

func (r *MovementRepo) filter(ctx context.Context, keep func(entity.Movement) bool) []entity.Movement {
	var out []entity.Movement
	r.store.read(ctx, func() {
		for _, m := range r.store.movements {
			if keep(m) {
				out = append(out, m)
			}
		}
	})
	return out
}
