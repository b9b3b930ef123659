package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	inventoryapp "github.com/retail/backend/internal/application/inventory"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/infrastructure/scheduler"
	"github.com/retail/backend/internal/interfaces/http/dto"
	"github.com/retail/backend/internal/interfaces/http/router"
)

// StoreHandler serves the per-channel store stock
type StoreHandler struct {
	BaseHandler
	stocks            *inventoryapp.ChannelStocks
	async             map[inventory.Channel]*inventoryapp.AsyncStock
	lowStockThreshold int
}

// NewStoreHandler creates a new StoreHandler. lowStockThreshold is used when
// the low-stock query names no threshold. With a non-nil pool, FIFO restocks
// run on it.
func NewStoreHandler(stocks *inventoryapp.ChannelStocks, pool *scheduler.WorkerPool, lowStockThreshold int) *StoreHandler {
	h := &StoreHandler{
		stocks:            stocks,
		async:             make(map[inventory.Channel]*inventoryapp.AsyncStock),
		lowStockThreshold: lowStockThreshold,
	}
	if pool != nil {
		for _, s := range stocks.All() {
			h.async[s.Channel()] = inventoryapp.NewAsyncStock(s, pool)
		}
	}
	return h
}

// Routes returns the /stores routes
func (h *StoreHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("stores", "/stores/:channel")
	g.Handle("POST", "/restock", "Move ledger stock onto the channel", h.Restock)
	g.Handle("GET", "/products/:code/availability", "Sellable quantity of a product", h.Availability)
	g.Handle("GET", "/products/:code/entries", "Channel rows of a product in FIFO order", h.Entries)
	g.Handle("GET", "/low-stock", "Products below ?threshold=", h.LowStock)
	g.Handle("GET", "/summary", "Every product on the channel", h.Summary)
	return g
}

// stock resolves the :channel parameter
func (h *StoreHandler) stock(c *gin.Context) (inventoryapp.ChannelStock, bool) {
	ch, ok := h.channelParam(c)
	if !ok {
		return nil, false
	}
	s, err := h.stocks.For(ch)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return s, true
}

// Restock moves stock from the batch ledger onto the channel. With
// batch_id set only that batch is used.
// @Summary      Move ledger stock onto a channel
// @Tags         stores
// @Accept       json
// @Produce      json
// @Param        channel path string true "Sales channel" Enums(physical, online)
// @Param        request body inventoryapp.RestockRequest true "Restock request"
// @Success      200 {object} dto.Response{data=inventoryapp.RestockOutcome}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stores/{channel}/restock [post]
func (h *StoreHandler) Restock(c *gin.Context) {
	stock, ok := h.stock(c)
	if !ok {
		return
	}
	var req inventoryapp.RestockRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		outcome *inventoryapp.RestockOutcome
		err     error
	)
	switch {
	case req.BatchID != nil:
		outcome, err = stock.RestockFromBatch(ctx, *req.BatchID, req.Quantity)
	case h.async[stock.Channel()] != nil:
		outcome, err = h.async[stock.Channel()].RestockAsync(req.ProductCode, req.Quantity).Await(ctx)
	default:
		outcome, err = stock.Restock(ctx, req.ProductCode, req.Quantity)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !outcome.Success {
		resp := dto.NewErrorResponse(dto.ErrCodeInsufficientStock, outcome.Message)
		resp.Error.Details = outcome
		resp.Error.RequestID = getRequestID(c)
		c.JSON(http.StatusConflict, resp)
		return
	}
	h.Success(c, outcome)
}

// Availability reports the sellable quantity of a product
// @Summary      Get the sellable quantity of a product
// @Tags         stores
// @Produce      json
// @Param        channel path string true "Sales channel" Enums(physical, online)
// @Param        code path string true "Product code"
// @Success      200 {object} dto.Response{data=inventoryapp.AvailabilityResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stores/{channel}/products/{code}/availability [get]
func (h *StoreHandler) Availability(c *gin.Context) {
	stock, ok := h.stock(c)
	if !ok {
		return
	}
	code := c.Param("code")
	qty, err := stock.GetAvailableQuantity(c.Request.Context(), code)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inventoryapp.AvailabilityResponse{
		ProductCode: code,
		Channel:     stock.Channel().String(),
		Available:   qty,
		InStock:     qty > 0,
	})
}

// StockEntryResponse is one channel row
type StockEntryResponse struct {
	BatchID    uuid.UUID  `json:"batch_id"`
	Quantity   int        `json:"quantity"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Entries lists a product's channel rows in FIFO order
// @Summary      List a product's channel rows in FIFO order
// @Tags         stores
// @Produce      json
// @Param        channel path string true "Sales channel" Enums(physical, online)
// @Param        code path string true "Product code"
// @Success      200 {object} dto.Response{data=[]StockEntryResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stores/{channel}/products/{code}/entries [get]
func (h *StoreHandler) Entries(c *gin.Context) {
	stock, ok := h.stock(c)
	if !ok {
		return
	}
	rows, err := stock.Entries(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]StockEntryResponse, len(rows))
	for i, r := range rows {
		out[i] = StockEntryResponse{BatchID: r.BatchID, Quantity: r.Quantity, ExpiryDate: r.ExpiryDate, CreatedAt: r.CreatedAt}
	}
	h.Success(c, out)
}

// LowStock lists products whose channel total is below ?threshold=
// @Summary      List products below a threshold
// @Tags         stores
// @Produce      json
// @Param        channel path string true "Sales channel" Enums(physical, online)
// @Param        threshold query int false "Low stock threshold" minimum(0)
// @Success      200 {object} dto.Response{data=[]inventoryapp.ChannelStockResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stores/{channel}/low-stock [get]
func (h *StoreHandler) LowStock(c *gin.Context) {
	stock, ok := h.stock(c)
	if !ok {
		return
	}
	threshold, ok := h.intQuery(c, "threshold", h.lowStockThreshold)
	if !ok {
		return
	}
	rows, err := stock.LowStock(c.Request.Context(), threshold)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inventoryapp.ToChannelStockResponses(rows))
}

// Summary lists every product on the channel
// @Summary      List every product on a channel
// @Tags         stores
// @Produce      json
// @Param        channel path string true "Sales channel" Enums(physical, online)
// @Success      200 {object} dto.Response{data=[]inventoryapp.ChannelStockResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /stores/{channel}/summary [get]
func (h *StoreHandler) Summary(c *gin.Context) {
	stock, ok := h.stock(c)
	if !ok {
		return
	}
	rows, err := stock.Summary(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, inventoryapp.ToChannelStockResponses(rows))
}
