package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error codes shared by the domain error types
const (
	CodeNotFound               = "NOT_FOUND"
	CodeValidation             = "VALIDATION_ERROR"
	CodeInsufficientStock      = "INSUFFICIENT_STOCK"
	CodeInvalidPayment         = "INVALID_PAYMENT"
	CodeIllegalStateTransition = "ILLEGAL_STATE_TRANSITION"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target carries the same error code, so that
// errors.Is(err, ErrNotFound) matches every not-found error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrValidation             = NewDomainError(CodeValidation, "Validation failed")
	ErrInsufficientStock      = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrInvalidPayment         = NewDomainError(CodeInvalidPayment, "Invalid payment")
	ErrIllegalStateTransition = NewDomainError(CodeIllegalStateTransition, "Operation not allowed in current state")
)

// NewNotFoundError reports a missing entity, e.g. NewNotFoundError("Batch", id).
func NewNotFoundError(entity string, id any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found: %v", entity, id))
}

// NewInvalidPaymentError reports a rejected payment
func NewInvalidPaymentError(message string) *DomainError {
	return NewDomainError(CodeInvalidPayment, message)
}

// NewIllegalStateError reports an action attempted from a state that does not allow it
func NewIllegalStateError(entity, state, action string) *DomainError {
	return NewDomainError(CodeIllegalStateTransition,
		fmt.Sprintf("cannot %s %s in state %s", action, entity, state))
}

// ValidationError collects field-level validation failures.
// Several fields may be invalid at once.
type ValidationError struct {
	Fields map[string]string `json:"fields"`
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// FieldError is shorthand for a ValidationError with a single field
func FieldError(field, message string) *ValidationError {
	return NewValidationError().Add(field, message)
}

// Add records a message for field. The first message for a field wins.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
	return e
}

// HasErrors returns true if at least one field failed validation
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// OrNil returns nil when no field failed, so it can be returned as an error directly.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// Messages returns "field: message" strings sorted by field name
func (e *ValidationError) Messages() []string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, k+": "+e.Fields[k])
	}
	return msgs
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return "Validation failed: " + strings.Join(e.Messages(), "; ")
}

// Is matches ErrValidation
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == CodeValidation
}

// InsufficientStockError is returned when fewer units are available than requested.
// It is a business condition, not a malformed request.
type InsufficientStockError struct {
	ProductCode string `json:"product_code,omitempty"`
	Available   int    `json:"available"`
	Requested   int    `json:"requested"`
}

// NewInsufficientStockError creates an InsufficientStockError
func NewInsufficientStockError(productCode string, available, requested int) *InsufficientStockError {
	return &InsufficientStockError{
		ProductCode: productCode,
		Available:   available,
		Requested:   requested,
	}
}

// Error implements the error interface
func (e *InsufficientStockError) Error() string {
	if e.ProductCode == "" {
		return fmt.Sprintf("Insufficient stock: available %d, requested %d", e.Available, e.Requested)
	}
	return fmt.Sprintf("Insufficient stock for product %s: available %d, requested %d",
		e.ProductCode, e.Available, e.Requested)
}

// Is matches ErrInsufficientStock
func (e *InsufficientStockError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == CodeInsufficientStock
}

// ErrorCode returns the domain code carried anywhere in err's chain,
// or "" for infrastructure errors.
func ErrorCode(err error) string {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return CodeValidation
	}
	var stockErr *InsufficientStockError
	if errors.As(err, &stockErr) {
		return CodeInsufficientStock
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}
