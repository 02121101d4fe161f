package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderTransitions(t *testing.T) {
	tests := []struct {
		from OrderStatus
		to   OrderStatus
		want bool
	}{
		{OrderStatusCreated, OrderStatusConfirmed, true},
		{OrderStatusCreated, OrderStatusCancelled, true},
		{OrderStatusCreated, OrderStatusPaid, false},
		{OrderStatusConfirmed, OrderStatusPaid, true},
		{OrderStatusConfirmed, OrderStatusCancelled, true},
		{OrderStatusConfirmed, OrderStatusShipped, false},
		{OrderStatusPaid, OrderStatusShipped, true},
		{OrderStatusPaid, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusCompleted, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusConfirmed, false},
		{OrderStatusCreated, OrderStatusCreated, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_to_%s", tt.from, tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}

	assert.True(t, OrderStatusCompleted.IsTerminal())
	assert.True(t, OrderStatusCancelled.IsTerminal())
	assert.False(t, OrderStatusPaid.IsTerminal())
	assert.False(t, OrderStatus("LOST").Valid())
}

func TestCalculateTotal(t *testing.T) {
	items := []OrderItem{
		{ProductID: "p1", Quantity: 5, UnitPrice: 1999},
		{ProductID: "p2", Quantity: 2, UnitPrice: 250},
		{ProductID: "p3", Quantity: 1, UnitPrice: 0},
	}
	assert.Equal(t, int64(10495), CalculateTotal(items))
	assert.Zero(t, CalculateTotal(nil))
}

func TestTransactionTypeEffects(t *testing.T) {
	assert.Equal(t, 4, TransactionTypeReceipt.StockDelta(4))
	assert.Equal(t, 4, TransactionTypeReturn.StockDelta(4))
	assert.Equal(t, -4, TransactionTypeShipment.StockDelta(4))
	assert.True(t, TransactionTypeAdjustment.SetsAbsolute())
	assert.False(t, TransactionTypeShipment.SetsAbsolute())
	assert.False(t, TransactionType("THEFT").Valid())
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &StockError{Kind: ErrInsufficientAvailableStock, ProductID: "p", WarehouseID: "w", Requested: 3, Available: 1})
	assert.True(t, errors.Is(err, ErrInsufficientAvailableStock))
	assert.False(t, errors.Is(err, ErrInsufficientStock))

	assert.ErrorIs(t, NewNotFound("order", "o1"), ErrNotFound)
	assert.ErrorIs(t, NewValidation("x"), ErrValidation)
	assert.ErrorIs(t, &StateError{Entity: "order", ID: "o1", Current: "CREATED", Target: "PAID"}, ErrInvalidState)
}
