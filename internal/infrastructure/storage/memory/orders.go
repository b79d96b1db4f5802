package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/documents/order"
)

// OrderRepo implements order.Repository.
type OrderRepo struct {
	store *Store
}

// NewOrderRepo creates an in-memory order repository.
func NewOrderRepo(store *Store) *OrderRepo {
	return &OrderRepo{store: store}
}

var _ order.Repository = (*OrderRepo)(nil)

func (r *OrderRepo) Create(ctx context.Context, doc *order.Order) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.orders[doc.ID]; ok {
			return apperror.NewDuplicate("order", "id", doc.ID.String())
		}
		for _, existing := range r.store.orders {
			if doc.Number != "" && existing.Number == doc.Number {
				return apperror.NewDuplicate("order", "number", doc.Number)
			}
		}
		stored := *doc
		stored.Lines = nil
		r.store.orders[doc.ID] = stored
		return nil
	})
}

func (r *OrderRepo) GetByID(ctx context.Context, docID id.ID) (*order.Order, error) {
	var (
		doc order.Order
		ok  bool
	)
	r.store.read(ctx, func() {
		doc, ok = r.store.orders[docID]
	})
	if !ok {
		return nil, apperror.NewNotFound("order", docID.String())
	}
	return &doc, nil
}

func (r *OrderRepo) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	var found *order.Order
	r.store.read(ctx, func() {
		for _, doc := range r.store.orders {
			if doc.Number == number {
				doc := doc
				found = &doc
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("order", number)
	}
	return found, nil
}

func (r *OrderRepo) GetForUpdate(ctx context.Context, docID id.ID) (*order.Order, error) {
	if err := requireTx(ctx, "select for update"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, docID)
}

// Update saves the header with optimistic locking.
func (r *OrderRepo) Update(ctx context.Context, doc *order.Order) error {
	return r.store.write(ctx, func() error {
		stored, ok := r.store.orders[doc.ID]
		if !ok {
			return apperror.NewNotFound("order", doc.ID.String())
		}
		if stored.Version != doc.Version {
			return apperror.NewConcurrentModification("orders", doc.ID.String())
		}
		doc.Version++
		doc.UpdatedAt = time.Now().UTC()
		updated := *doc
		updated.Lines = nil
		r.store.orders[doc.ID] = updated
		return nil
	})
}

func (r *OrderRepo) GetLines(ctx context.Context, docID id.ID) ([]order.Line, error) {
	var lines []order.Line
	r.store.read(ctx, func() {
		lines = append([]order.Line(nil), r.store.lines[docID]...)
	})
	return lines, nil
}

func (r *OrderRepo) SaveLines(ctx context.Context, docID id.ID, lines []order.Line) error {
	return r.store.write(ctx, func() error {
		r.store.lines[docID] = append([]order.Line(nil), lines...)
		return nil
	})
}

func (r *OrderRepo) List(ctx context.Context, filter order.ListFilter) (domain.ListResult[*order.Order], error) {
	var out []*order.Order
	search := strings.ToLower(filter.Search)
	r.store.read(ctx, func() {
		for _, doc := range r.store.orders {
			if doc.DeletionMark && !filter.IncludeDeleted {
				continue
			}
			if filter.Status != nil && doc.Status != *filter.Status {
				continue
			}
			if filter.RequestedBy != "" && doc.RequestedBy != filter.RequestedBy {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(doc.Number), search) {
				continue
			}
			if filter.ItemID != nil && !hasItem(r.store.lines[doc.ID], *filter.ItemID) {
				continue
			}
			doc := doc
			doc.Lines = append([]order.Line(nil), r.store.lines[doc.ID]...)
			out = append(out, &doc)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return domain.Page(out, filter.ListFilter), nil
}

func hasItem(lines []order.Line, itemID id.ID) bool {
	for _, l := range lines {
		if l.ItemID == itemID {
			return true
		}
	}
	return false
}
