package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/core/entity"
	"stockledger/internal/domain/documents/order"
	"stockledger/internal/domain/returns"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// OrderHandler handles withdrawal orders, their fulfillment and returns.
type OrderHandler struct {
	*BaseHandler
	orders  *order.Service
	returns *returns.Adjudicator
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(base *BaseHandler, orders *order.Service, adjudicator *returns.Adjudicator) *OrderHandler {
	return &OrderHandler{
		BaseHandler: base,
		orders:      orders,
		returns:     adjudicator,
	}
}

// Create handles POST /orders - reserves every line as a pending issue.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	lines, err := req.ToLines()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.orders.Create(c.Request.Context(), lines, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromOrder(doc))
}

// List handles GET /orders.
func (h *OrderHandler) List(c *gin.Context) {
	var query dto.OrderListQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.orders.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, dto.FromOrder))
}

// Get handles GET /orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	doc, err := h.orders.GetByID(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOrder(doc))
}

// Movements handles GET /orders/:id/movements.
func (h *OrderHandler) Movements(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	movs, err := h.orders.Movements(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, gin.H{"items": dto.FromMovements(movs)})
}

// UpdateLines handles PUT /orders/:id/lines.
func (h *OrderHandler) UpdateLines(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateLinesRequest
	if !h.BindJSON(c, &req) {
		return
	}
	lines, err := req.ToLines()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.orders.UpdateLines(c.Request.Context(), orderID, lines)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOrder(doc))
}

// SetStatus handles POST /orders/:id/status.
func (h *OrderHandler) SetStatus(c *gin.Context) {
	var req dto.SetStatusRequest
	if !h.BindJSON(c, &req) {
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.transition(c, status)
}

// Approve handles POST /orders/:id/approve.
func (h *OrderHandler) Approve(c *gin.Context) {
	h.transition(c, entity.StatusApproved)
}

// Reject handles POST /orders/:id/reject.
func (h *OrderHandler) Reject(c *gin.Context) {
	h.transition(c, entity.StatusRejected)
}

func (h *OrderHandler) transition(c *gin.Context, status entity.Status) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	doc, err := h.orders.SetStatus(c.Request.Context(), orderID, status)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromOrder(doc))
}

// Delete handles DELETE /orders/:id.
func (h *OrderHandler) Delete(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.orders.Delete(c.Request.Context(), orderID); err != nil {
		h.Error(c, err)
		return
	}

	h.NoContent(c)
}

// Returnable handles GET /orders/:id/returnable/:itemId.
func (h *OrderHandler) Returnable(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	itemID, ok := h.ParamID(c, "itemId")
	if !ok {
		return
	}

	qty, err := h.returns.ComputeReturnable(c.Request.Context(), orderID, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.ReturnableResponse{
		OrderID:    orderID.String(),
		ItemID:     itemID.String(),
		Returnable: qty,
	})
}

// SubmitReturn handles POST /orders/:id/returns.
// The returned quantity may be lower than requested; see "truncated".
func (h *OrderHandler) SubmitReturn(c *gin.Context) {
	orderID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.ReturnRequest
	if !h.BindJSON(c, &req) {
		return
	}
	itemID, err := dto.ParseID("itemId", req.ItemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.returns.SubmitReturn(c.Request.Context(), orderID, itemID, req.Quantity)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromReturnResult(result))
}

// RegisterRoutes registers order routes. decide guards the approve/reject
// endpoints and may be nil.
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup, decide gin.HandlerFunc) {
	guarded := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		if decide == nil {
			return []gin.HandlerFunc{handler}
		}
		return []gin.HandlerFunc{decide, handler}
	}

	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/movements", h.Movements)
	rg.PUT("/:id/lines", h.UpdateLines)
	rg.POST("/:id/status", guarded(h.SetStatus)...)
	rg.POST("/:id/approve", guarded(h.Approve)...)
	rg.POST("/:id/reject", guarded(h.Reject)...)
	rg.DELETE("/:id", h.Delete)
	rg.GET("/:id/returnable/:itemId", h.Returnable)
	rg.POST("/:id/returns", h.SubmitReturn)
}
