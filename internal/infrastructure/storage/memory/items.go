package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
	"stockledger/internal/domain/ledger"
)

// ItemRepo implements ledger.ItemRepository.
type ItemRepo struct {
	store *Store
}

// NewItemRepo creates an in-memory stock item repository.
func NewItemRepo(store *Store) *ItemRepo {
	return &ItemRepo{store: store}
}

var _ ledger.ItemRepository = (*ItemRepo)(nil)

func (r *ItemRepo) Create(ctx context.Context, item *entity.StockItem) error {
	return r.store.write(ctx, func() error {
		if _, ok := r.store.items[item.ID]; ok {
			return apperror.NewDuplicate("stock item", "id", item.ID.String())
		}
		for _, existing := range r.store.items {
			if existing.Code == item.Code {
				return apperror.NewDuplicate("stock item", "code", item.Code)
			}
		}
		r.store.items[item.ID] = *item
		return nil
	})
}

func (r *ItemRepo) GetByID(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	var (
		item entity.StockItem
		ok   bool
	)
	r.store.read(ctx, func() {
		item, ok = r.store.items[itemID]
	})
	if !ok {
		return nil, apperror.NewNotFound("stock item", itemID.String())
	}
	return &item, nil
}

func (r *ItemRepo) GetByCode(ctx context.Context, code string) (*entity.StockItem, error) {
	var found *entity.StockItem
	r.store.read(ctx, func() {
		for _, item := range r.store.items {
			if item.Code == code {
				item := item
				found = &item
				return
			}
		}
	})
	if found == nil {
		return nil, apperror.NewNotFound("stock item", code)
	}
	return found, nil
}

// GetForUpdate returns the item; the store lock held by the transaction
// already excludes other writers.
func (r *ItemRepo) GetForUpdate(ctx context.Context, itemID id.ID) (*entity.StockItem, error) {
	if err := requireTx(ctx, "select for update"); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, itemID)
}

func (r *ItemRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.StockItem], error) {
	var out []*entity.StockItem
	search := strings.ToLower(filter.Search)
	r.store.read(ctx, func() {
		for _, item := range r.store.items {
			if item.DeletionMark && !filter.IncludeDeleted {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(item.Code), search) {
				continue
			}
			item := item
			out = append(out, &item)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return domain.Page(out, filter), nil
}

func (r *ItemRepo) Update(ctx context.Context, item *entity.StockItem) error {
	return r.store.write(ctx, func() error {
		stored, err := r.checkVersion(item)
		if err != nil {
			return err
		}
		stored.BaselineQty = item.BaselineQty
		stored.SafetyStock = item.SafetyStock
		stored.UnitPrice = item.UnitPrice
		stored.CatalogRef = item.CatalogRef
		stored.DeletionMark = item.DeletionMark
		r.bump(&stored, item)
		return nil
	})
}

func (r *ItemRepo) BumpVersion(ctx context.Context, item *entity.StockItem) error {
	return r.store.write(ctx, func() error {
		stored, err := r.checkVersion(item)
		if err != nil {
			return err
		}
		r.bump(&stored, item)
		return nil
	})
}

func (r *ItemRepo) checkVersion(item *entity.StockItem) (entity.StockItem, error) {
	stored, ok := r.store.items[item.ID]
	if !ok {
		return entity.StockItem{}, apperror.NewNotFound("stock item", item.ID.String())
	}
	if r.store.conflicts > 0 {
		r.store.conflicts--
		return entity.StockItem{}, apperror.NewConcurrentModification("stock_items", item.ID.String())
	}
	if stored.Version != item.Version {
		return entity.StockItem{}, apperror.NewConcurrentModification("stock_items", item.ID.String())
	}
	return stored, nil
}

func (r *ItemRepo) bump(stored, item *entity.StockItem) {
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	r.store.items[stored.ID] = *stored
	item.Version = stored.Version
	item.UpdatedAt = stored.UpdatedAt
}
