package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiscountedPrice(t *testing.T) {
	tests := []struct {
		price    int64
		discount float64
		want     int64
	}{
		{1_000_000, 0, 1_000_000},
		{1_000_000, 25, 750_000},
		{999, 10, 899}, // 899.1 rounds down
		{999, 15, 849}, // 849.15 rounds down
		{100, 100, 0},
		{0, 50, 0},
	}
	for _, tt := range tests {
		p := Product{Price: tt.price, Discount: tt.discount}
		assert.Equal(t, tt.want, p.DiscountedPrice())
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusProcessing))
	assert.True(t, CanTransition(OrderStatusPending, OrderStatusCancelled))
	assert.True(t, CanTransition(OrderStatusProcessing, OrderStatusCompleted))
	assert.True(t, CanTransition(OrderStatusProcessing, OrderStatusCancelled))

	assert.False(t, CanTransition(OrderStatusPending, OrderStatusCompleted))
	assert.False(t, CanTransition(OrderStatusCompleted, OrderStatusCancelled))
	assert.False(t, CanTransition(OrderStatusCancelled, OrderStatusPending))
	assert.False(t, CanTransition(OrderStatusPending, OrderStatusPending))
	assert.False(t, CanTransition("unknown", OrderStatusPending))
}

func TestCalculateTotal(t *testing.T) {
	items := []CartItem{
		{ProductID: 1, Quantity: 2, Price: 100_000},
		{ProductID: 2, Quantity: 1, Price: 50_000},
	}
	assert.Equal(t, int64(250_000), CalculateTotal(items))
	assert.Equal(t, int64(0), CalculateTotal([]OrderItem{}))
}
