package dto

import (
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/ledger"
)

// --- Request DTOs ---

// CreateItemRequest imports an item from the product catalog.
type CreateItemRequest struct {
	Code        string         `json:"code" binding:"required"`
	CatalogRef  string         `json:"catalogRef"`
	BaselineQty types.Quantity `json:"baselineQty"`
	SafetyStock types.Quantity `json:"safetyStock"`
	UnitPrice   types.Money    `json:"unitPrice"`
}

func (r *CreateItemRequest) ToEntity() *entity.StockItem {
	return entity.NewStockItem(r.Code, r.CatalogRef, r.BaselineQty, r.SafetyStock, r.UnitPrice)
}

// AdjustBaselineRequest is the manual baseline/safety correction.
type AdjustBaselineRequest struct {
	BaselineQty types.Quantity `json:"baselineQty"`
	SafetyStock types.Quantity `json:"safetyStock"`
	Version     int            `json:"version" binding:"omitempty,min=1"`
}

// ReceiptRequest books incoming stock.
type ReceiptRequest struct {
	Quantity types.Quantity `json:"quantity"`
	Note     string         `json:"note"`
}

// AdjustmentRequest books a manual correction movement.
type AdjustmentRequest struct {
	Direction entity.Direction `json:"direction" binding:"required"`
	Quantity  types.Quantity   `json:"quantity"`
	Note      string           `json:"note"`
}

// MovementQuery filters the movement history.
type MovementQuery struct {
	OrderID string `form:"orderId"`
	Kind    string `form:"kind"`
	Status  string `form:"status"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter validates enums and builds the ledger filter.
func (q MovementQuery) ToFilter() (ledger.MovementFilter, error) {
	f := ledger.MovementFilter{Limit: 100, Offset: q.Offset}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	if q.OrderID != "" {
		orderID, err := ParseID("orderId", q.OrderID)
		if err != nil {
			return f, err
		}
		f.OrderID = &orderID
	}
	if q.Kind != "" {
		kind := entity.MovementKind(q.Kind)
		if !kind.Valid() {
			return f, newInvalidEnum("kind", q.Kind)
		}
		f.Kind = &kind
	}
	if q.Status != "" {
		status := entity.Status(q.Status)
		if !status.Valid() {
			return f, newInvalidEnum("status", q.Status)
		}
		f.Status = &status
	}
	return f, nil
}

// --- Response DTOs ---

// ItemResponse is a stock item with its current quantities.
type ItemResponse struct {
	ID           string         `json:"id"`
	Code         string         `json:"code"`
	CatalogRef   string         `json:"catalogRef,omitempty"`
	BaselineQty  types.Quantity `json:"baselineQty"`
	SafetyStock  types.Quantity `json:"safetyStock"`
	UnitPrice    types.Money    `json:"unitPrice"`
	DeletionMark bool           `json:"deletionMark"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// FromStockItem maps the entity.
func FromStockItem(item *entity.StockItem) ItemResponse {
	return ItemResponse{
		ID:           item.ID.String(),
		Code:         item.Code,
		CatalogRef:   item.CatalogRef,
		BaselineQty:  item.BaselineQty,
		SafetyStock:  item.SafetyStock,
		UnitPrice:    item.UnitPrice,
		DeletionMark: item.DeletionMark,
		Version:      item.Version,
		CreatedAt:    item.CreatedAt,
		UpdatedAt:    item.UpdatedAt,
	}
}

// QuantitiesResponse is the getQuantities result.
type QuantitiesResponse struct {
	ItemID      string         `json:"itemId"`
	Code        string         `json:"code"`
	OnHand      types.Quantity `json:"onHand"`
	Reserved    types.Quantity `json:"reserved"`
	Available   types.Quantity `json:"available"`
	SafetyStock types.Quantity `json:"safetyStock"`
	BelowSafety bool           `json:"belowSafety"`
	Valuation   types.Money    `json:"valuation"`
	Version     int            `json:"version"`
}

// FromStockLevel maps a ledger stock level.
func FromStockLevel(l ledger.StockLevel) QuantitiesResponse {
	return QuantitiesResponse{
		ItemID:      l.ItemID.String(),
		Code:        l.Code,
		OnHand:      l.OnHand,
		Reserved:    l.Reserved,
		Available:   l.Available,
		SafetyStock: l.SafetyStock,
		BelowSafety: l.BelowSafety,
		Valuation:   l.Valuation,
		Version:     l.Version,
	}
}

// MovementResponse is one ledger record.
type MovementResponse struct {
	ID         string              `json:"id"`
	ItemID     string              `json:"itemId"`
	OrderID    *string             `json:"orderId,omitempty"`
	Kind       entity.MovementKind `json:"kind"`
	Direction  entity.Direction    `json:"direction"`
	Quantity   types.Quantity      `json:"quantity"`
	Status     entity.Status       `json:"status"`
	Note       string              `json:"note,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
	CreatedBy  string              `json:"createdBy,omitempty"`
	ResolvedAt *time.Time          `json:"resolvedAt,omitempty"`
}

// FromMovement maps a movement.
func FromMovement(m entity.Movement) MovementResponse {
	resp := MovementResponse{
		ID:         m.ID.String(),
		ItemID:     m.ItemID.String(),
		Kind:       m.Kind,
		Direction:  m.Direction,
		Quantity:   m.Quantity,
		Status:     m.Status,
		Note:       m.Note,
		CreatedAt:  m.CreatedAt,
		CreatedBy:  m.CreatedBy,
		ResolvedAt: m.ResolvedAt,
	}
	if m.OrderID != nil {
		s := m.OrderID.String()
		resp.OrderID = &s
	}
	return resp
}

// FromMovements maps a slice of movements.
func FromMovements(movs []entity.Movement) []MovementResponse {
	out := make([]MovementResponse, 0, len(movs))
	for _, m := range movs {
		out = append(out, FromMovement(m))
	}
	return out
}
