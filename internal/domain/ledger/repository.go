package ledger

import (
	"context"
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// ItemRepository persists the StockItem aggregate.
type ItemRepository interface {
	Create(ctx context.Context, item *entity.StockItem) error
	GetByID(ctx context.Context, itemID id.ID) (*entity.StockItem, error)
	GetByCode(ctx context.Context, code string) (*entity.StockItem, error)

	// GetForUpdate loads the item with a row lock (must run inside a transaction).
	GetForUpdate(ctx context.Context, itemID id.ID) (*entity.StockItem, error)

	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*entity.StockItem], error)

	// Update saves baseline/safety/price with optimistic locking and
	// increments item.Version on success.
	Update(ctx context.Context, item *entity.StockItem) error

	// BumpVersion increments the aggregate version without changing data.
	// Every ledger write calls it so that concurrent writers on the same item
	// conflict instead of appending from a stale view.
	BumpVersion(ctx context.Context, item *entity.StockItem) error
}

// MovementRepository persists the append-only movement log.
type MovementRepository interface {
	// Append inserts new movements. Existing rows are never rewritten.
	Append(ctx context.Context, movements ...entity.Movement) error

	// ListByItem returns every movement of the item, rejected ones included.
	ListByItem(ctx context.Context, itemID id.ID) ([]entity.Movement, error)

	// ListByOrder returns every movement linked to the order.
	ListByOrder(ctx context.Context, orderID id.ID) ([]entity.Movement, error)

	// History returns a filtered, paginated view for display.
	History(ctx context.Context, itemID id.ID, filter MovementFilter) (domain.ListResult[entity.Movement], error)

	// SetStatusByOrder flips every movement of the order in status from to
	// status to. It is the only status mutation in the log.
	SetStatusByOrder(ctx context.Context, orderID id.ID, from, to entity.Status, at time.Time) (int64, error)
}

// MovementFilter narrows History.
type MovementFilter struct {
	OrderID *id.ID
	Kind    *entity.MovementKind
	Status  *entity.Status
	Limit   int
	Offset  int
}
