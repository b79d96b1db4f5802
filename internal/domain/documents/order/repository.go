package order

import (
	"context"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/id"
	"stockledger/internal/domain"
)

// Repository defines operations for withdrawal orders.
type Repository interface {
	// CRUD operations
	Create(ctx context.Context, doc *Order) error
	GetByID(ctx context.Context, docID id.ID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	Update(ctx context.Context, doc *Order) error

	// Line operations
	GetLines(ctx context.Context, docID id.ID) ([]Line, error)
	SaveLines(ctx context.Context, docID id.ID, lines []Line) error

	// List operations
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Order], error)

	// Locking
	GetForUpdate(ctx context.Context, docID id.ID) (*Order, error)
}

// ListFilter for filtering orders.
type ListFilter struct {
	domain.ListFilter

	Status      *entity.Status
	RequestedBy string
	ItemID      *id.ID
}
