package dto

import (
	"time"

	"stockledger/internal/core/entity"
	"stockledger/internal/core/types"
	"stockledger/internal/domain/documents/order"
	"stockledger/internal/domain/returns"
)

// --- Request DTOs ---

// OrderLineRequest is one requested item.
type OrderLineRequest struct {
	ItemID   string         `json:"itemId" binding:"required"`
	Quantity types.Quantity `json:"quantity"`
}

// CreateOrderRequest is the withdrawal request.
type CreateOrderRequest struct {
	Lines []OrderLineRequest `json:"lines" binding:"required,dive"`
	Note  string             `json:"note"`
}

// ToLines converts request lines into order lines.
func (r *CreateOrderRequest) ToLines() ([]order.Line, error) {
	return toLines(r.Lines)
}

// UpdateLinesRequest replaces the lines of a pending order.
type UpdateLinesRequest struct {
	Lines []OrderLineRequest `json:"lines" binding:"required,dive"`
}

func (r *UpdateLinesRequest) ToLines() ([]order.Line, error) {
	return toLines(r.Lines)
}

func toLines(in []OrderLineRequest) ([]order.Line, error) {
	lines := make([]order.Line, 0, len(in))
	for _, l := range in {
		itemID, err := ParseID("itemId", l.ItemID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, order.Line{ItemID: itemID, Quantity: l.Quantity})
	}
	return lines, nil
}

// SetStatusRequest is the manager's fulfillment decision.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ReturnRequest submits a return against an approved order.
type ReturnRequest struct {
	ItemID   string         `json:"itemId" binding:"required"`
	Quantity types.Quantity `json:"quantity"`
}

// OrderListQuery filters the order list.
type OrderListQuery struct {
	ListQuery
	Status      string `form:"status"`
	RequestedBy string `form:"requestedBy"`
	ItemID      string `form:"itemId"`
}

// ToFilter validates the query and builds the order filter.
func (q OrderListQuery) ToFilter() (order.ListFilter, error) {
	f := order.ListFilter{
		ListFilter:  q.ListQuery.ToFilter(),
		RequestedBy: q.RequestedBy,
	}
	if q.Status != "" {
		st := entity.Status(q.Status)
		if !st.Valid() {
			return f, newInvalidEnum("status", q.Status)
		}
		f.Status = &st
	}
	if q.ItemID != "" {
		itemID, err := ParseID("itemId", q.ItemID)
		if err != nil {
			return f, err
		}
		f.ItemID = &itemID
	}
	return f, nil
}

// --- Response DTOs ---

// OrderLineResponse is one order line.
type OrderLineResponse struct {
	LineNo   int            `json:"lineNo"`
	ItemID   string         `json:"itemId"`
	Quantity types.Quantity `json:"quantity"`
}

// OrderResponse is an order with its lines.
type OrderResponse struct {
	ID           string              `json:"id"`
	Number       string              `json:"number"`
	Date         time.Time           `json:"date"`
	Status       entity.Status       `json:"status"`
	RequestedBy  string              `json:"requestedBy,omitempty"`
	Note         string              `json:"note,omitempty"`
	Lines        []OrderLineResponse `json:"lines"`
	DeletionMark bool                `json:"deletionMark"`
	Version      int                 `json:"version"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
	ResolvedAt   *time.Time          `json:"resolvedAt,omitempty"`
}

// FromOrder maps the order document.
func FromOrder(o *order.Order) OrderResponse {
	lines := make([]OrderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderLineResponse{
			LineNo:   l.LineNo,
			ItemID:   l.ItemID.String(),
			Quantity: l.Quantity,
		})
	}
	return OrderResponse{
		ID:           o.ID.String(),
		Number:       o.Number,
		Date:         o.Date,
		Status:       o.Status,
		RequestedBy:  o.RequestedBy,
		Note:         o.Comment,
		Lines:        lines,
		DeletionMark: o.DeletionMark,
		Version:      o.Version,
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
		ResolvedAt:   o.ResolvedAt,
	}
}

// ReturnableResponse is the computeReturnable result.
type ReturnableResponse struct {
	OrderID    string         `json:"orderId"`
	ItemID     string         `json:"itemId"`
	Returnable types.Quantity `json:"returnable"`
}

// ReturnResponse is the outcome of submitReturn.
type ReturnResponse struct {
	OrderID   string           `json:"orderId"`
	ItemID    string           `json:"itemId"`
	Requested types.Quantity   `json:"requested"`
	Returned  types.Quantity   `json:"returned"`
	Truncated bool             `json:"truncated"`
	Movement  MovementResponse `json:"movement"`
}

// FromReturnResult maps the adjudicator result.
func FromReturnResult(r returns.Result) ReturnResponse {
	return ReturnResponse{
		OrderID:   r.OrderID.String(),
		ItemID:    r.ItemID.String(),
		Requested: r.Requested,
		Returned:  r.Returned,
		Truncated: r.Truncated,
		Movement:  FromMovement(r.Movement),
	}
}
