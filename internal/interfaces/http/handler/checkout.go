package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	salesapp "github.com/retail/backend/internal/application/sales"
	"github.com/retail/backend/internal/infrastructure/scheduler"
	"github.com/retail/backend/internal/interfaces/http/dto"
	"github.com/retail/backend/internal/interfaces/http/router"
)

// CheckoutHandler serves the one-call checkout
type CheckoutHandler struct {
	BaseHandler
	sales *salesapp.Service
	pool  *scheduler.WorkerPool
}

// NewCheckoutHandler creates a new CheckoutHandler. With a non-nil pool,
// checkouts run on it and a full queue is answered with 503.
func NewCheckoutHandler(sales *salesapp.Service, pool *scheduler.WorkerPool) *CheckoutHandler {
	return &CheckoutHandler{sales: sales, pool: pool}
}

// Routes returns the /checkout routes
func (h *CheckoutHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("checkout", "/checkout")
	g.Handle("POST", "", "Sell every item in one call, or nothing", h.Checkout)
	g.Handle("POST", "/stock-check", "Report whether items can be sold on a channel", h.CheckStock)
	return g
}

// CheckoutFailure is the details payload of a rejected checkout
type CheckoutFailure struct {
	Errors []string `json:"errors"`
}

// Checkout sells every requested item or nothing. A rejected checkout is
// answered with the status and code of its first failure and every
// failure message in details.
// @Summary      Sell every item in one call, or nothing
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Param        X-Operator header string false "Cashier or operator name"
// @Param        request body salesapp.CheckoutRequest true "Checkout request"
// @Success      201 {object} dto.Response{data=salesapp.CheckoutResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /checkout [post]
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req salesapp.CheckoutRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = getOperator(c)
	}

	result, err := h.run(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !result.Success {
		var first error = errors.New("checkout rejected")
		if len(result.Failures) > 0 {
			first = result.Failures[0]
		}
		info, status := dto.ErrorInfoFromError(first)
		info.Details = CheckoutFailure{Errors: result.Errors}
		info.RequestID = getRequestID(c)
		c.JSON(status, dto.Response{Success: false, Error: info})
		return
	}
	h.Created(c, result)
}

func (h *CheckoutHandler) run(ctx context.Context, req salesapp.CheckoutRequest) (*salesapp.CheckoutResult, error) {
	if h.pool == nil {
		return h.sales.Checkout(ctx, req)
	}
	// the request context carries the logger and trace of this request
	return scheduler.SubmitValue(h.pool, func(context.Context) (*salesapp.CheckoutResult, error) {
		return h.sales.Checkout(ctx, req)
	}).Await(ctx)
}

// CheckStock reports, per product, whether the channel can sell the requested quantity
// @Summary      Report whether items can be sold on a channel
// @Tags         checkout
// @Accept       json
// @Produce      json
// @Param        request body salesapp.StockCheckRequest true "Items to check"
// @Success      200 {object} dto.Response{data=[]salesapp.StockCheckResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /checkout/stock-check [post]
func (h *CheckoutHandler) CheckStock(c *gin.Context) {
	var req salesapp.StockCheckRequest
	if !h.bindJSON(c, &req) {
		return
	}
	results, err := h.sales.CheckStock(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, results)
}
