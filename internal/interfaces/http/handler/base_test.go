package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/infrastructure/scheduler"
	"github.com/retail/backend/internal/interfaces/http/dto"
	"github.com/retail/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
)

func failingWith(err error) gin.HandlerFunc {
	h := &BaseHandler{}
	return func(c *gin.Context) { h.HandleError(c, err) }
}

func TestBaseHandler_HandleError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
		fields []string
	}{
		{shared.NewNotFoundError("Product", "X"), http.StatusNotFound, "NOT_FOUND", nil},
		{shared.FieldError("quantity", "Must be positive").Add("product_code", "Required"), http.StatusBadRequest, "VALIDATION_ERROR", []string{"quantity", "product_code"}},
		{shared.NewInsufficientStockError("X", 1, 2), http.StatusConflict, "INSUFFICIENT_STOCK", nil},
		{shared.NewInvalidPaymentError("Tendered amount is below total"), http.StatusUnprocessableEntity, "INVALID_PAYMENT", nil},
		{shared.NewIllegalStateError("Bill", "FINALIZED", "cancel"), http.StatusConflict, "ILLEGAL_STATE_TRANSITION", nil},
		{fmt.Errorf("restock: %w", scheduler.ErrPoolQueueFull), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", nil},
		{errors.New("connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR", nil},
	}

	for _, tc := range cases {
		testutil.RunHTTPTestCase(t, failingWith(tc.err), testutil.HTTPTestCase{
			Name:           tc.code,
			RequestID:      "req-42",
			ExpectedStatus: tc.status,
			ExpectedCode:   tc.code,
			ExpectedFields: tc.fields,
		})
	}

	testutil.RunHTTPTestCase(t, failingWith(shared.NewInsufficientStockError("RICE", 3, 5)), testutil.HTTPTestCase{
		Name:           "stock details",
		ExpectedStatus: http.StatusConflict,
		Validate: func(t *testing.T, ctx *testutil.TestContext) {
			e := testutil.AssertErrorResponse(t, ctx, "INSUFFICIENT_STOCK")
			detail := testutil.DetailsAs[dto.InsufficientStockDetail](t, e)
			assert.Equal(t, dto.InsufficientStockDetail{ProductCode: "RICE", Available: 3, Requested: 5}, detail)
		},
	})

	testutil.RunHTTPTestCase(t, failingWith(errors.New("pq: password authentication failed")), testutil.HTTPTestCase{
		Name:         "internal errors stay opaque",
		ExpectedCode: "INTERNAL_ERROR",
		Validate: func(t *testing.T, ctx *testutil.TestContext) {
			assert.NotContains(t, string(ctx.ResponseBody()), "password")
		},
	})
}

func TestBaseHandler_QueryParsing(t *testing.T) {
	h := &BaseHandler{}
	echo := func(c *gin.Context) {
		limit, ok := h.intQuery(c, "limit", 20)
		if !ok {
			return
		}
		from, ok := h.dateQuery(c, "from")
		if !ok {
			return
		}
		h.Success(c, gin.H{"limit": limit, "from_set": !from.IsZero()})
	}

	testutil.RunHTTPTestCases(t, echo, []testutil.HTTPTestCase{
		{
			Name:           "defaults",
			Path:           "/",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, ctx *testutil.TestContext) {
				data := testutil.DataAs[map[string]any](t, ctx)
				assert.EqualValues(t, 20, data["limit"])
				assert.Equal(t, false, data["from_set"])
			},
		},
		{
			Name:           "explicit values",
			Path:           "/?limit=5&from=2026-01-31",
			ExpectedStatus: http.StatusOK,
			Validate: func(t *testing.T, ctx *testutil.TestContext) {
				data := testutil.DataAs[map[string]any](t, ctx)
				assert.EqualValues(t, 5, data["limit"])
				assert.Equal(t, true, data["from_set"])
			},
		},
		{
			Name:           "negative limit",
			Path:           "/?limit=-1",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   "VALIDATION_ERROR",
			ExpectedFields: []string{"limit"},
		},
		{
			Name:           "bad date",
			Path:           "/?from=31/01/2026",
			ExpectedStatus: http.StatusBadRequest,
			ExpectedCode:   "VALIDATION_ERROR",
			ExpectedFields: []string{"from"},
		},
	})
}
