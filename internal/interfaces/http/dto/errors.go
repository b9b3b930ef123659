package dto

import (
	"errors"
	"net/http"

	"github.com/retail/backend/internal/domain/shared"
)

// Error codes of the API envelope. Business codes are the domain codes.
const (
	ErrCodeNotFound               = shared.CodeNotFound
	ErrCodeValidation             = shared.CodeValidation
	ErrCodeInsufficientStock      = shared.CodeInsufficientStock
	ErrCodeInvalidPayment         = shared.CodeInvalidPayment
	ErrCodeIllegalStateTransition = shared.CodeIllegalStateTransition

	// ErrCodeInternal is used for every infrastructure failure
	ErrCodeInternal = "INTERNAL_ERROR"
	// ErrCodeRouteNotFound is used for unknown routes
	ErrCodeRouteNotFound = "ROUTE_NOT_FOUND"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	// ErrCodeUnavailable is used by the health check
	ErrCodeUnavailable = "SERVICE_UNAVAILABLE"
)

// internalMessage hides infrastructure details from clients
const internalMessage = "An unexpected error occurred"

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeNotFound:               http.StatusNotFound,
	ErrCodeValidation:             http.StatusBadRequest,
	ErrCodeInsufficientStock:      http.StatusConflict,
	ErrCodeInvalidPayment:         http.StatusUnprocessableEntity,
	ErrCodeIllegalStateTransition: http.StatusConflict,
	ErrCodeInternal:               http.StatusInternalServerError,
	ErrCodeRouteNotFound:          http.StatusNotFound,
	ErrCodeRequestTooLarge:        http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:            http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status of an error code; unknown codes are 500
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// InsufficientStockDetail is the details payload of an INSUFFICIENT_STOCK error
type InsufficientStockDetail struct {
	ProductCode string `json:"product_code,omitempty"`
	Available   int    `json:"available"`
	Requested   int    `json:"requested"`
}

// ErrorInfoFromError converts err into the envelope's error object and its
// HTTP status. Errors without a domain code become a generic 500.
func ErrorInfoFromError(err error) (*ErrorInfo, int) {
	var validationErr *shared.ValidationError
	if errors.As(err, &validationErr) {
		return &ErrorInfo{
			Code:    ErrCodeValidation,
			Message: shared.ErrValidation.Message,
			Details: validationErr.Fields,
		}, http.StatusBadRequest
	}

	var stockErr *shared.InsufficientStockError
	if errors.As(err, &stockErr) {
		return &ErrorInfo{
			Code:    ErrCodeInsufficientStock,
			Message: stockErr.Error(),
			Details: InsufficientStockDetail{
				ProductCode: stockErr.ProductCode,
				Available:   stockErr.Available,
				Requested:   stockErr.Requested,
			},
		}, http.StatusConflict
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return &ErrorInfo{Code: domainErr.Code, Message: domainErr.Message}, GetHTTPStatus(domainErr.Code)
	}

	return &ErrorInfo{Code: ErrCodeInternal, Message: internalMessage}, http.StatusInternalServerError
}
