package entity

import (
	"context"
	"strings"
	"time"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/types"
)

// StockItem is the aggregate all movements of one item belong to.
// BaselineQty is the authoritative starting point for the ledger fold and is
// changed only by an explicit manual adjustment. Version is bumped by every
// write touching the item's ledger, which serializes writers per item.
type StockItem struct {
	BaseEntity

	// Code is the internal item code (unique).
	Code string `db:"code" json:"code"`

	// CatalogRef is the opaque id of the item in the external product catalog.
	CatalogRef string `db:"catalog_ref" json:"catalogRef,omitempty"`

	BaselineQty types.Quantity `db:"baseline_qty" json:"baselineQty"`

	// SafetyStock is advisory only.
	SafetyStock types.Quantity `db:"safety_stock" json:"safetyStock"`

	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewStockItem creates a stock item at catalog import time.
func NewStockItem(code, catalogRef string, baseline, safety types.Quantity, unitPrice types.Money) *StockItem {
	now := time.Now().UTC()
	return &StockItem{
		BaseEntity:  NewBaseEntity(),
		Code:        strings.TrimSpace(code),
		CatalogRef:  strings.TrimSpace(catalogRef),
		BaselineQty: baseline,
		SafetyStock: safety,
		UnitPrice:   unitPrice,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate implements Validatable.
func (s *StockItem) Validate(ctx context.Context) error {
	if s.Code == "" {
		return apperror.NewValidation("code is required").
			WithDetail("field", "code")
	}
	if s.BaselineQty.IsNegative() {
		return apperror.NewValidation("baseline quantity must not be negative").
			WithDetail("field", "baselineQty")
	}
	if !s.BaselineQty.InRange() || !s.SafetyStock.InRange() {
		return apperror.NewValidation("quantity is out of range").
			WithDetail("field", "baselineQty")
	}
	if s.SafetyStock.IsNegative() {
		return apperror.NewValidation("safety stock must not be negative").
			WithDetail("field", "safetyStock")
	}
	if s.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price must not be negative").
			WithDetail("field", "unitPrice")
	}
	return nil
}
