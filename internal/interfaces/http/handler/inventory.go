package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	inventoryapp "github.com/retail/backend/internal/application/inventory"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/interfaces/http/router"
)

// defaultHistoryLimit caps product history when no limit is given
const defaultHistoryLimit = 50

// InventoryHandler serves the batch ledger
type InventoryHandler struct {
	BaseHandler
	ledger       *inventoryapp.BatchLedgerService
	expiringDays int
}

// NewInventoryHandler creates a new InventoryHandler. expiringDays is used
// by the expiring-batches query when the request names no window.
func NewInventoryHandler(ledger *inventoryapp.BatchLedgerService, expiringDays int) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, expiringDays: expiringDays}
}

// Routes returns the /inventory routes
func (h *InventoryHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("inventory", "/inventory")
	g.Handle("POST", "/batches", "Record a supplier batch", h.AddBatch)
	g.Handle("GET", "/batches/expiring", "Batches expiring within ?days=", h.FindExpiring)
	g.Handle("GET", "/batches/expired", "Batches past their expiry date with stock left", h.FindExpired)
	g.Handle("GET", "/batches/:id", "Get a batch", h.GetBatch)
	g.Handle("GET", "/batches/:id/history", "Audit records of a batch", h.BatchHistory)
	g.Handle("POST", "/batches/:id/adjust", "Correct a batch's remaining quantity", h.AdjustQuantity)
	g.Handle("GET", "/batches", "Batches by ?supplier= or ?from=&to= purchase dates", h.SearchBatches)
	g.Handle("GET", "/products/:code/batches", "Batches with stock left in FIFO order", h.FindAvailableBatches)
	g.Handle("GET", "/products/:code/history", "Audit records of a product", h.ProductHistory)
	g.Handle("GET", "/products/:code/value", "Remaining quantity and cost value of a product", h.ProductValue)
	g.Handle("GET", "/summary", "Per-product ledger totals", h.Summary)
	return g
}

// AddBatch records a supplier receipt
// @Summary      Record a supplier batch
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        request body inventoryapp.AddBatchRequest true "Batch receipt"
// @Success      201 {object} dto.Response{data=inventoryapp.BatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/batches [post]
func (h *InventoryHandler) AddBatch(c *gin.Context) {
	var req inventoryapp.AddBatchRequest
	if !h.bindJSON(c, &req) {
		return
	}
	batch, err := h.ledger.AddBatch(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// GetBatch returns one batch
// @Summary      Get a batch
// @Tags         inventory
// @Produce      json
// @Param        id path string true "Batch ID" format(uuid)
// @Success      200 {object} dto.Response{data=inventoryapp.BatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/batches/{id} [get]
func (h *InventoryHandler) GetBatch(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	batch, err := h.ledger.GetBatch(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// AdjustQuantity applies a manual correction to a batch
// @Summary      Correct a batch's remaining quantity
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Param        id path string true "Batch ID" format(uuid)
// @Param        request body inventoryapp.AdjustQuantityRequest true "Adjustment"
// @Success      200 {object} dto.Response{data=inventoryapp.BatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/batches/{id}/adjust [post]
func (h *InventoryHandler) AdjustQuantity(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req inventoryapp.AdjustQuantityRequest
	if !h.bindJSON(c, &req) {
		return
	}
	batch, err := h.ledger.AdjustQuantity(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batch)
}

// FindAvailableBatches lists a product's batches with stock left
// @Summary      List batches with stock left in FIFO order
// @Tags         inventory
// @Produce      json
// @Param        code path string true "Product code"
// @Success      200 {object} dto.Response{data=[]inventoryapp.BatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/products/{code}/batches [get]
func (h *InventoryHandler) FindAvailableBatches(c *gin.Context) {
	batches, err := h.ledger.FindAvailableBatches(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// FindExpiring lists batches expiring within ?days= days
// @Summary      List batches expiring soon
// @Tags         inventory
// @Produce      json
// @Param        days query int false "Days ahead" minimum(0)
// @Success      200 {object} dto.Response{data=[]inventoryapp.BatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/batches/expiring [get]
func (h *InventoryHandler) FindExpiring(c *gin.Context) {
	days, ok := h.intQuery(c, "days", h.expiringDays)
	if !ok {
		return
	}
	batches, err := h.ledger.FindExpiring(c.Request.Context(), days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// FindExpired lists expired batches that still hold stock
// @Summary      List expired batches with stock left
// @Tags         inventory
// @Produce      json
// @Success      200 {object} dto.Response{data=[]inventoryapp.BatchResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/batches/expired [get]
func (h *InventoryHandler) FindExpired(c *gin.Context) {
	batches, err := h.ledger.FindExpired(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// SearchBatches finds batches by supplier or by purchase date range
// @Summary      Search batches by supplier or purchase date
// @Tags         inventory
// @Produce      json
// @Param        supplier query string false "Supplier name"
// @Param        from query string false "First purchase date" format(date)
// @Param        to query string false "Last purchase date" format(date)
// @Success      200 {object} dto.Response{data=[]inventoryapp.BatchResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/batches [get]
func (h *InventoryHandler) SearchBatches(c *gin.Context) {
	if supplier := c.Query("supplier"); supplier != "" {
		batches, err := h.ledger.FindBySupplier(c.Request.Context(), supplier)
		if err != nil {
			h.HandleError(c, err)
			return
		}
		h.Success(c, batches)
		return
	}

	from, ok := h.dateQuery(c, "from")
	if !ok {
		return
	}
	to, ok := h.dateQuery(c, "to")
	if !ok {
		return
	}
	if from.IsZero() || to.IsZero() {
		h.HandleError(c, shared.FieldError("supplier", "Either supplier or both from and to are required"))
		return
	}
	batches, err := h.ledger.FindByPurchaseDateRange(c.Request.Context(), from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// BatchHistory lists the audit records of one batch
// @Summary      List the audit records of a batch
// @Tags         inventory
// @Produce      json
// @Param        id path string true "Batch ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]inventoryapp.TransactionRecordResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/batches/{id}/history [get]
func (h *InventoryHandler) BatchHistory(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	records, err := h.ledger.BatchHistory(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// ProductHistory lists the latest audit records of a product
// @Summary      List the latest audit records of a product
// @Tags         inventory
// @Produce      json
// @Param        code path string true "Product code"
// @Param        limit query int false "Maximum records" minimum(0)
// @Success      200 {object} dto.Response{data=[]inventoryapp.TransactionRecordResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/products/{code}/history [get]
func (h *InventoryHandler) ProductHistory(c *gin.Context) {
	limit, ok := h.intQuery(c, "limit", defaultHistoryLimit)
	if !ok {
		return
	}
	records, err := h.ledger.ProductHistory(c.Request.Context(), c.Param("code"), limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, records)
}

// ProductValueResponse reports what is left of a product in the ledger
type ProductValueResponse struct {
	ProductCode    string    `json:"product_code"`
	TotalRemaining int       `json:"total_remaining"`
	Value          string    `json:"value"`
	AsOf           time.Time `json:"as_of"`
}

// ProductValue reports a product's remaining quantity and its cost value
// @Summary      Get remaining quantity and cost value of a product
// @Tags         inventory
// @Produce      json
// @Param        code path string true "Product code"
// @Success      200 {object} dto.Response{data=ProductValueResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/products/{code}/value [get]
func (h *InventoryHandler) ProductValue(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")
	total, err := h.ledger.TotalRemaining(ctx, code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	value, err := h.ledger.InventoryValue(ctx, code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ProductValueResponse{
		ProductCode:    code,
		TotalRemaining: total,
		Value:          value.StringFixed(2),
		AsOf:           time.Now().UTC(),
	})
}

// Summary lists per-product totals of the ledger
// @Summary      Per-product ledger totals
// @Tags         inventory
// @Produce      json
// @Success      200 {object} dto.Response{data=[]inventoryapp.StockSummaryResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /inventory/summary [get]
func (h *InventoryHandler) Summary(c *gin.Context) {
	summary, err := h.ledger.Summary(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
