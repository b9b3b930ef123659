package dto

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/retail/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInsufficientStock, http.StatusConflict},
		{ErrCodeInvalidPayment, http.StatusUnprocessableEntity},
		{ErrCodeIllegalStateTransition, http.StatusConflict},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestErrorInfoFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
		details any
	}{
		{
			name:    "not found",
			err:     shared.NewNotFoundError("Bill", "42"),
			status:  http.StatusNotFound,
			code:    ErrCodeNotFound,
			message: "Bill not found: 42",
		},
		{
			name:    "wrapped validation",
			err:     fmt.Errorf("add batch: %w", shared.FieldError("quantity", "Quantity must be greater than zero")),
			status:  http.StatusBadRequest,
			code:    ErrCodeValidation,
			message: "Validation failed",
			details: map[string]string{"quantity": "Quantity must be greater than zero"},
		},
		{
			name:    "insufficient stock",
			err:     shared.NewInsufficientStockError("MILK", 3, 5),
			status:  http.StatusConflict,
			code:    ErrCodeInsufficientStock,
			message: "Insufficient stock for product MILK: available 3, requested 5",
			details: InsufficientStockDetail{ProductCode: "MILK", Available: 3, Requested: 5},
		},
		{
			name:    "invalid payment",
			err:     shared.NewInvalidPaymentError("Tendered amount is less than the total"),
			status:  http.StatusUnprocessableEntity,
			code:    ErrCodeInvalidPayment,
			message: "Tendered amount is less than the total",
		},
		{
			name:    "illegal state",
			err:     shared.NewIllegalStateError("bill", "CANCELLED", "cancel"),
			status:  http.StatusConflict,
			code:    ErrCodeIllegalStateTransition,
			message: "cannot cancel bill in state CANCELLED",
		},
		{
			name:    "infrastructure",
			err:     fmt.Errorf("failed to save bill: %w", errors.New("pq: connection refused")),
			status:  http.StatusInternalServerError,
			code:    ErrCodeInternal,
			message: "An unexpected error occurred",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, status := ErrorInfoFromError(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, info.Code)
			assert.Equal(t, tt.message, info.Message)
			assert.Equal(t, tt.details, info.Details)
		})
	}
}

func TestResponseEnvelope(t *testing.T) {
	ok, err := json.Marshal(NewSuccessResponse(CountResponse{Count: 2}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"data":{"count":2}}`, string(ok))

	resp, status := NewErrorResponseFromError(shared.FieldError("channel", "Channel is required"), "req-1")
	assert.Equal(t, http.StatusBadRequest, status)
	failed, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": false,
		"error": {
			"code": "VALIDATION_ERROR",
			"message": "Validation failed",
			"details": {"channel": "Channel is required"},
			"request_id": "req-1"
		}
	}`, string(failed))

	plain, err := json.Marshal(NewErrorResponse(ErrCodeRouteNotFound, "Route not found"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"ROUTE_NOT_FOUND","message":"Route not found"}}`, string(plain))
}
