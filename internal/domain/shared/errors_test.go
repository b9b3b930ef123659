package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewNotFoundError("Batch", "b-1")

	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "Batch not found: b-1", err.Error())

	wrapped := fmt.Errorf("load batch: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, CodeNotFound, ErrorCode(wrapped))
}

func TestValidationError(t *testing.T) {
	t.Run("collects several fields", func(t *testing.T) {
		verr := NewValidationError().
			Add("quantity", "must be greater than zero").
			Add("unitCost", "must not be negative")

		require.True(t, verr.HasErrors())
		assert.Len(t, verr.Fields, 2)
		assert.Equal(t, []string{
			"quantity: must be greater than zero",
			"unitCost: must not be negative",
		}, verr.Messages())
		assert.True(t, errors.Is(verr, ErrValidation))
		assert.Equal(t, CodeValidation, ErrorCode(verr))
	})

	t.Run("first message per field wins", func(t *testing.T) {
		verr := FieldError("quantity", "is required").Add("quantity", "must be positive")
		assert.Equal(t, "is required", verr.Fields["quantity"])
	})

	t.Run("OrNil on empty is nil", func(t *testing.T) {
		assert.NoError(t, NewValidationError().OrNil())
		assert.Error(t, FieldError("x", "bad").OrNil())
	})
}

func TestInsufficientStockError(t *testing.T) {
	err := NewInsufficientStockError("P-1", 3, 5)

	assert.Equal(t, "Insufficient stock for product P-1: available 3, requested 5", err.Error())
	assert.True(t, errors.Is(err, ErrInsufficientStock))

	var target *InsufficientStockError
	require.True(t, errors.As(fmt.Errorf("checkout: %w", err), &target))
	assert.Equal(t, 3, target.Available)
	assert.Equal(t, 5, target.Requested)

	joined := errors.Join(NewInsufficientStockError("P-1", 3, 5), NewInsufficientStockError("P-2", 0, 1))
	assert.Equal(t, CodeInsufficientStock, ErrorCode(joined))
}

func TestErrorCode_InfrastructureErrorHasNoCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(errors.New("connection refused")))
	assert.Equal(t, CodeIllegalStateTransition, ErrorCode(NewIllegalStateError("bill", "FINALIZED", "cancel")))
	assert.Equal(t, CodeInvalidPayment, ErrorCode(NewInvalidPaymentError("tendered amount is less than total")))
}
