package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	salesapp "github.com/retail/backend/internal/application/sales"
	"github.com/retail/backend/internal/interfaces/http/router"
)

// BillHandler serves bills through their whole lifecycle
type BillHandler struct {
	BaseHandler
	sales *salesapp.Service
}

// NewBillHandler creates a new BillHandler
func NewBillHandler(sales *salesapp.Service) *BillHandler {
	return &BillHandler{sales: sales}
}

// Routes returns the /bills routes
func (h *BillHandler) Routes() *router.DomainGroup {
	g := router.NewDomainGroup("bills", "/bills")
	g.Handle("POST", "", "Open an in-progress bill", h.CreateBill)
	g.Handle("GET", "", "Finalized bills by ?date=, ?customer= or the latest ?limit=", h.ListBills)
	g.Handle("GET", "/open", "In-progress bills", h.OpenBills)
	g.Handle("GET", "/serial/:serial", "Find a finalized bill by serial number", h.FindBySerialNumber)
	g.Handle("GET", "/:id", "Get a bill", h.GetBill)
	g.Handle("POST", "/:id/items", "Add units of a product", h.AddItem)
	g.Handle("PUT", "/:id/items/:code", "Set a product's quantity", h.UpdateItemQuantity)
	g.Handle("DELETE", "/:id/items/:code", "Remove a product", h.RemoveItem)
	g.Handle("DELETE", "/:id/items", "Remove every product", h.ClearItems)
	g.Handle("POST", "/:id/discount", "Apply a discount", h.ApplyDiscount)
	g.Handle("POST", "/:id/tax", "Set the tax amount", h.SetTax)
	g.Handle("POST", "/:id/payments/cash", "Take a cash payment", h.ProcessCashPayment)
	g.Handle("POST", "/:id/payments/online", "Take an online payment", h.ProcessOnlinePayment)
	g.Handle("GET", "/:id/validation", "Check whether the bill can be finalized", h.ValidateForFinalization)
	g.Handle("POST", "/:id/finalize", "Deduct stock and finalize", h.FinalizeBill)
	g.Handle("POST", "/:id/cancel", "Cancel an in-progress bill", h.CancelBill)
	return g
}

// SalesRoutes returns the /sales routes
func (h *BillHandler) SalesRoutes() *router.DomainGroup {
	g := router.NewDomainGroup("sales", "/sales")
	g.Handle("GET", "/today", "Count and total of today's finalized bills", h.TodaysSales)
	return g
}

// onBill runs fn on the :id bill and answers with the bill it returns
func (h *BillHandler) onBill(c *gin.Context, fn func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error)) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	bill, err := fn(c, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bill)
}

// CreateBill opens an in-progress bill. created_by defaults to the X-Operator header.
// @Summary      Open an in-progress bill
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        X-Operator header string false "Cashier or operator name"
// @Param        request body salesapp.CreateBillRequest true "New bill"
// @Success      201 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills [post]
func (h *BillHandler) CreateBill(c *gin.Context) {
	var req salesapp.CreateBillRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = getOperator(c)
	}
	bill, err := h.sales.CreateBill(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, bill)
}

// GetBill returns a bill, in progress or persisted
// @Summary      Get a bill
// @Tags         bills
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id} [get]
func (h *BillHandler) GetBill(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		return h.sales.GetBill(c.Request.Context(), id)
	})
}

// AddItem adds units of a product to the bill
// @Summary      Add units of a product
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Param        request body salesapp.AddItemRequest true "Item"
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/items [post]
func (h *BillHandler) AddItem(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		var req salesapp.AddItemRequest
		if err := h.bind(c, &req); err != nil {
			return nil, err
		}
		return h.sales.AddItem(c.Request.Context(), id, req)
	})
}

// UpdateItemQuantity sets a product's quantity; zero removes it
// @Summary      Set a product's quantity
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Param        code path string true "Product code"
// @Param        request body salesapp.UpdateItemRequest true "New quantity"
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/items/{code} [put]
func (h *BillHandler) UpdateItemQuantity(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		var req salesapp.UpdateItemRequest
		if err := h.bind(c, &req); err != nil {
			return nil, err
		}
		return h.sales.UpdateItemQuantity(c.Request.Context(), id, c.Param("code"), req.Quantity)
	})
}

// RemoveItem removes a product from the bill
// @Summary      Remove a product
// @Tags         bills
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Param        code path string true "Product code"
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/items/{code} [delete]
func (h *BillHandler) RemoveItem(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		return h.sales.RemoveItem(c.Request.Context(), id, c.Param("code"))
	})
}

// ClearItems removes every product from the bill
// @Summary      Remove every product
// @Tags         bills
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/items [delete]
func (h *BillHandler) ClearItems(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		return h.sales.ClearItems(c.Request.Context(), id)
	})
}

// ApplyDiscount sets the bill's discount
// @Summary      Apply a discount
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Param        request body salesapp.AmountRequest true "Discount amount"
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/discount [post]
func (h *BillHandler) ApplyDiscount(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		var req salesapp.AmountRequest
		if err := h.bind(c, &req); err != nil {
			return nil, err
		}
		return h.sales.ApplyDiscount(c.Request.Context(), id, req.Amount)
	})
}

// SetTax sets the bill's tax amount
// @Summary      Set the tax amount
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Param        request body salesapp.AmountRequest true "Tax amount"
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/tax [post]
func (h *BillHandler) SetTax(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		var req salesapp.AmountRequest
		if err := h.bind(c, &req); err != nil {
			return nil, err
		}
		return h.sales.SetTax(c.Request.Context(), id, req.Amount)
	})
}

// ProcessCashPayment records the cash tendered and computes change
// @Summary      Take a cash payment
// @Tags         bills
// @Accept       json
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Param        request body salesapp.CashPaymentRequest true "Tendered cash"
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/payments/cash [post]
func (h *BillHandler) ProcessCashPayment(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		var req salesapp.CashPaymentRequest
		if err := h.bind(c, &req); err != nil {
			return nil, err
		}
		return h.sales.ProcessCashPayment(c.Request.Context(), id, req.Tendered)
	})
}

// ProcessOnlinePayment marks the bill paid in full online
// @Summary      Take an online payment
// @Tags         bills
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/payments/online [post]
func (h *BillHandler) ProcessOnlinePayment(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		return h.sales.ProcessOnlinePayment(c.Request.Context(), id)
	})
}

// ValidateForFinalization lists what still blocks finalization
// @Summary      Check whether a bill can be finalized
// @Tags         bills
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Success      200 {object} dto.Response{data=salesapp.ValidationResult}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/validation [get]
func (h *BillHandler) ValidateForFinalization(c *gin.Context) {
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	result, err := h.sales.ValidateForFinalization(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// FinalizeBill deducts stock and assigns a serial number
// @Summary      Deduct stock and finalize a bill
// @Tags         bills
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/finalize [post]
func (h *BillHandler) FinalizeBill(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		return h.sales.FinalizeBill(c.Request.Context(), id)
	})
}

// CancelBill cancels an in-progress bill
// @Summary      Cancel an in-progress bill
// @Tags         bills
// @Produce      json
// @Param        id path string true "Bill ID" format(uuid)
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/{id}/cancel [post]
func (h *BillHandler) CancelBill(c *gin.Context) {
	h.onBill(c, func(c *gin.Context, id uuid.UUID) (*salesapp.BillResponse, error) {
		return h.sales.CancelBill(c.Request.Context(), id)
	})
}

// OpenBills lists in-progress bills
// @Summary      List in-progress bills
// @Tags         bills
// @Produce      json
// @Success      200 {object} dto.Response{data=[]salesapp.BillResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/open [get]
func (h *BillHandler) OpenBills(c *gin.Context) {
	bills, err := h.sales.OpenBills(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bills)
}

// FindBySerialNumber returns a finalized bill by its serial number
// @Summary      Find a finalized bill by serial number
// @Tags         bills
// @Produce      json
// @Param        serial path string true "Serial number"
// @Success      200 {object} dto.Response{data=salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills/serial/{serial} [get]
func (h *BillHandler) FindBySerialNumber(c *gin.Context) {
	bill, err := h.sales.FindBySerialNumber(c.Request.Context(), c.Param("serial"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bill)
}

// ListBills returns finalized bills of ?date=, of ?customer=, or the latest ?limit=
// @Summary      List finalized bills
// @Tags         bills
// @Produce      json
// @Param        date query string false "Bill date" format(date)
// @Param        customer query string false "Customer reference"
// @Param        limit query int false "Latest N bills" minimum(0)
// @Success      200 {object} dto.Response{data=[]salesapp.BillResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /bills [get]
func (h *BillHandler) ListBills(c *gin.Context) {
	ctx := c.Request.Context()
	day, ok := h.dateQuery(c, "date")
	if !ok {
		return
	}
	var (
		bills []salesapp.BillResponse
		err   error
	)
	switch customer := c.Query("customer"); {
	case !day.IsZero():
		bills, err = h.sales.FindByDate(ctx, day)
	case customer != "":
		bills, err = h.sales.FindByCustomer(ctx, customer)
	default:
		limit, ok := h.intQuery(c, "limit", 0)
		if !ok {
			return
		}
		bills, err = h.sales.FindRecent(ctx, limit)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, bills)
}

// TodaysSales counts and sums today's finalized bills
// @Summary      Count and total of today's finalized bills
// @Tags         sales
// @Produce      json
// @Success      200 {object} dto.Response{data=salesapp.SalesSummaryResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /sales/today [get]
func (h *BillHandler) TodaysSales(c *gin.Context) {
	summary, err := h.sales.TodaysSales(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}
