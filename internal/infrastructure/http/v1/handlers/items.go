package handlers

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/ledger"
	"stockledger/internal/infrastructure/http/v1/dto"
)

// ItemHandler handles stock items and their ledger.
type ItemHandler struct {
	*BaseHandler
	ledger *ledger.Service
}

// NewItemHandler creates a new item handler.
func NewItemHandler(base *BaseHandler, service *ledger.Service) *ItemHandler {
	return &ItemHandler{BaseHandler: base, ledger: service}
}

// Create handles POST /items - catalog import of a stock item.
func (h *ItemHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item := req.ToEntity()
	if err := h.ledger.CreateItem(c.Request.Context(), item); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromStockItem(item))
}

// List handles GET /items.
func (h *ItemHandler) List(c *gin.Context) {
	var query dto.ListQuery
	if !h.BindQuery(c, &query) {
		return
	}

	result, err := h.ledger.ListItems(c.Request.Context(), query.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, dto.FromStockItem))
}

// Get handles GET /items/:id.
func (h *ItemHandler) Get(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	item, err := h.ledger.GetItem(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStockItem(item))
}

// Quantities handles GET /items/:id/quantities.
func (h *ItemHandler) Quantities(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	level, err := h.ledger.GetQuantities(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStockLevel(level))
}

// Movements handles GET /items/:id/movements - newest first.
func (h *ItemHandler) Movements(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var query dto.MovementQuery
	if !h.BindQuery(c, &query) {
		return
	}
	filter, err := query.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.ledger.History(c.Request.Context(), itemID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.NewListResponse(result, dto.FromMovement))
}

// Receipt handles POST /items/:id/receipts.
func (h *ItemHandler) Receipt(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.ReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}

	mov, err := h.ledger.RecordReceipt(c.Request.Context(), itemID, req.Quantity, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromMovement(mov))
}

// Adjustment handles POST /items/:id/adjustments.
func (h *ItemHandler) Adjustment(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	mov, err := h.ledger.RecordAdjustment(c.Request.Context(), itemID, req.Direction, req.Quantity, req.Note)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromMovement(mov))
}

// Baseline handles PUT /items/:id/baseline - manual correction of the
// authoritative starting quantity.
func (h *ItemHandler) Baseline(c *gin.Context) {
	itemID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	var req dto.AdjustBaselineRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.ledger.AdjustBaseline(c.Request.Context(), itemID, req.BaselineQty, req.SafetyStock, req.Version)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStockItem(item))
}

// RegisterRoutes registers item routes.
func (h *ItemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.GET("/:id/quantities", h.Quantities)
	rg.GET("/:id/movements", h.Movements)
	rg.POST("/:id/receipts", h.Receipt)
	rg.POST("/:id/adjustments", h.Adjustment)
	rg.PUT("/:id/baseline", h.Baseline)
}
